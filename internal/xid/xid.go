package xid

import "github.com/google/uuid"

// New returns an id of the form "<prefix>-<uuid>".
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

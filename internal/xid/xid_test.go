package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewUsesPrefixAndUUID(t *testing.T) {
	id := New("item")
	if !strings.HasPrefix(id, "item-") {
		t.Fatalf("expected item- prefix, got %q", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, "item-")); err != nil {
		t.Fatalf("expected uuid suffix: %v", err)
	}
	if New("item") == id {
		t.Fatalf("expected unique ids")
	}
}

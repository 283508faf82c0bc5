// Package authz decides whether an actor may perform an action, optionally
// on a resource owned by someone.
package authz

import (
	"fmt"

	"stockroom/backend/internal/domain"
)

type Action string

const (
	StockAdjust   Action = "stock:adjust"
	CatalogRead   Action = "catalog:read"
	CatalogWrite  Action = "catalog:write"
	CategoryRead  Action = "category:read"
	CategoryWrite Action = "category:write"
	SaleCreate    Action = "sale:create"
	SaleRead      Action = "sale:read"
	DashboardRead Action = "dashboard:read"
	UserManage    Action = "user:manage"
)

var elevatedOnly = map[Action]bool{
	StockAdjust:  true,
	CatalogWrite: true,
	UserManage:   true,
}

// Resource identifies what is being acted on. An empty OwnerID means the
// action does not touch an existing resource.
type Resource struct {
	Kind    string
	ID      string
	OwnerID string
}

func IsElevated(role string) bool {
	return role == domain.RoleAdmin || role == domain.RoleManager
}

func knownRole(role string) bool {
	return role == domain.RoleAdmin || role == domain.RoleManager || role == domain.RoleStaff
}

// Can returns nil when the actor may act. Role failures wrap
// domain.ErrForbidden; ownership failures wrap domain.ErrUnauthorized.
func Can(actor domain.Actor, action Action, resource Resource) error {
	if actor.UserID == "" || !knownRole(actor.Role) {
		return fmt.Errorf("%s: %w", action, domain.ErrUnauthorized)
	}
	if elevatedOnly[action] && !IsElevated(actor.Role) {
		return fmt.Errorf("%s requires admin or manager: %w", action, domain.ErrForbidden)
	}
	if resource.OwnerID != "" && resource.OwnerID != actor.UserID {
		return fmt.Errorf("%s %s belongs to another user: %w", resource.Kind, resource.ID, domain.ErrUnauthorized)
	}
	return nil
}

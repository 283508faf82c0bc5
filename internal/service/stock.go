package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stockroom/backend/internal/authz"
	"stockroom/backend/internal/domain"
)

// AdjustStock moves an item's quantity by delta. A decrement that would take
// the quantity below zero fails with *domain.InsufficientStockError and leaves
// the item untouched.
func (s *Service) AdjustStock(ctx context.Context, itemID string, delta int) (domain.Item, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return domain.Item{}, domain.NewValidationError("item", "is required")
	}
	if delta == 0 {
		return domain.Item{}, domain.NewValidationError("amount", "must not be zero")
	}
	if delta > domain.MaxQuantity || delta < -domain.MaxQuantity {
		return domain.Item{}, domain.NewValidationError("amount", fmt.Sprintf("must be at most %d", domain.MaxQuantity))
	}

	actor, _ := ActorFromContext(ctx)
	if err := authz.Can(actor, authz.StockAdjust, authz.Resource{}); err != nil {
		return domain.Item{}, err
	}

	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return domain.Item{}, err
	}
	if err := authz.Can(actor, authz.StockAdjust, authz.Resource{Kind: "item", ID: item.ID, OwnerID: item.OwnerID}); err != nil {
		return domain.Item{}, err
	}
	if delta > 0 && item.Quantity > domain.MaxQuantity-delta {
		return domain.Item{}, domain.NewValidationError("amount", fmt.Sprintf("would raise stock above %d", domain.MaxQuantity))
	}

	updated, err := s.repo.AdjustQuantity(ctx, itemID, delta, s.now())
	if err != nil {
		var stockErr *domain.InsufficientStockError
		if errors.As(err, &stockErr) {
			s.logger.InfoContext(ctx, "stock decrement rejected",
				"item_id", itemID, "available", stockErr.Available, "requested", stockErr.Requested)
		}
		return domain.Item{}, err
	}

	if updated.IsLowStock() && !item.IsLowStock() {
		s.logger.InfoContext(ctx, "item crossed low-stock threshold",
			"item_id", updated.ID, "quantity", updated.Quantity, "threshold", updated.LowStockThreshold)
	}
	return *updated, nil
}

func (s *Service) IncreaseStock(ctx context.Context, itemID string, amount int) (domain.Item, error) {
	if amount <= 0 {
		return domain.Item{}, domain.NewValidationError("amount", "must be positive")
	}
	return s.AdjustStock(ctx, itemID, amount)
}

func (s *Service) DecreaseStock(ctx context.Context, itemID string, amount int) (domain.Item, error) {
	if amount <= 0 {
		return domain.Item{}, domain.NewValidationError("amount", "must be positive")
	}
	return s.AdjustStock(ctx, itemID, -amount)
}

package service

import (
	"context"
	"fmt"
	"strings"

	"stockroom/backend/internal/authz"
	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/xid"
)

var maxQuantityMessage = fmt.Sprintf("must be at most %d", domain.MaxQuantity)

func (s *Service) ListItems(ctx context.Context) ([]domain.ItemView, error) {
	actor, err := s.authorize(ctx, authz.CatalogRead, authz.Resource{})
	if err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx, actor.UserID)
}

func (s *Service) GetItem(ctx context.Context, id string) (domain.ItemView, error) {
	item, err := s.ownedItem(ctx, authz.CatalogRead, id)
	if err != nil {
		return domain.ItemView{}, err
	}
	view := domain.ItemView{Item: item}
	if item.CategoryID != "" {
		category, err := s.repo.GetCategory(ctx, item.CategoryID)
		if err == nil {
			view.CategoryName = category.Name
		}
	}
	return view, nil
}

func (s *Service) CreateItem(ctx context.Context, req domain.ItemCreateRequest) (domain.Item, error) {
	actor, err := s.authorize(ctx, authz.CatalogWrite, authz.Resource{})
	if err != nil {
		return domain.Item{}, err
	}

	threshold := s.defaultThreshold
	if req.LowStockThreshold != nil {
		threshold = *req.LowStockThreshold
	}
	item := domain.Item{
		ID:                xid.New("item"),
		OwnerID:           actor.UserID,
		Name:              strings.TrimSpace(req.Name),
		CategoryID:        strings.TrimSpace(req.CategoryID),
		Quantity:          req.Quantity,
		PriceCents:        req.PriceCents,
		LowStockThreshold: threshold,
		CreatedAt:         s.now(),
	}
	item.UpdatedAt = item.CreatedAt

	var v domain.Validator
	v.Check(item.Name != "", "name", "is required")
	v.Check(item.Quantity >= 0, "quantity", "must not be negative")
	v.Check(item.Quantity <= domain.MaxQuantity, "quantity", maxQuantityMessage)
	v.Check(item.PriceCents >= 0, "price_cents", "must not be negative")
	v.Check(item.LowStockThreshold >= 0, "low_stock_threshold", "must not be negative")
	v.Check(item.LowStockThreshold <= domain.MaxQuantity, "low_stock_threshold", maxQuantityMessage)
	if err := v.Err(); err != nil {
		return domain.Item{}, err
	}

	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return domain.Item{}, err
	}
	return *created, nil
}

// UpdateItem changes descriptive fields only. Quantity is owned by the stock
// ledger.
func (s *Service) UpdateItem(ctx context.Context, id string, req domain.ItemUpdateRequest) (domain.Item, error) {
	existing, err := s.ownedItem(ctx, authz.CatalogWrite, id)
	if err != nil {
		return domain.Item{}, err
	}

	updated := existing
	var v domain.Validator
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
		v.Check(updated.Name != "", "name", "must not be empty")
	}
	if req.CategoryID != nil {
		updated.CategoryID = strings.TrimSpace(*req.CategoryID)
	}
	if req.PriceCents != nil {
		updated.PriceCents = *req.PriceCents
		v.Check(updated.PriceCents >= 0, "price_cents", "must not be negative")
	}
	if req.LowStockThreshold != nil {
		updated.LowStockThreshold = *req.LowStockThreshold
		v.Check(updated.LowStockThreshold >= 0, "low_stock_threshold", "must not be negative")
		v.Check(updated.LowStockThreshold <= domain.MaxQuantity, "low_stock_threshold", maxQuantityMessage)
	}
	if err := v.Err(); err != nil {
		return domain.Item{}, err
	}
	updated.UpdatedAt = s.now()

	saved, err := s.repo.UpdateItem(ctx, updated)
	if err != nil {
		return domain.Item{}, err
	}
	return *saved, nil
}

func (s *Service) DeleteItem(ctx context.Context, id string) error {
	item, err := s.ownedItem(ctx, authz.CatalogWrite, id)
	if err != nil {
		return err
	}
	return s.repo.DeleteItem(ctx, item.ID)
}

func (s *Service) ownedItem(ctx context.Context, action authz.Action, id string) (domain.Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Item{}, domain.NewValidationError("id", "is required")
	}
	if _, err := s.authorize(ctx, action, authz.Resource{}); err != nil {
		return domain.Item{}, err
	}
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return domain.Item{}, err
	}
	if _, err := s.authorize(ctx, action, authz.Resource{Kind: "item", ID: item.ID, OwnerID: item.OwnerID}); err != nil {
		return domain.Item{}, err
	}
	return *item, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	actor, err := s.authorize(ctx, authz.CategoryRead, authz.Resource{})
	if err != nil {
		return nil, err
	}
	return s.repo.ListCategories(ctx, actor.UserID)
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryRequest) (domain.Category, error) {
	actor, err := s.authorize(ctx, authz.CategoryWrite, authz.Resource{})
	if err != nil {
		return domain.Category{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Category{}, domain.NewValidationError("name", "is required")
	}

	created, err := s.repo.CreateCategory(ctx, domain.Category{
		ID:          xid.New("cat"),
		OwnerID:     actor.UserID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   s.now(),
	})
	if err != nil {
		return domain.Category{}, err
	}
	return *created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.CategoryRequest) (domain.Category, error) {
	existing, err := s.ownedCategory(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Category{}, domain.NewValidationError("name", "is required")
	}
	existing.Name = name
	existing.Description = strings.TrimSpace(req.Description)

	saved, err := s.repo.UpdateCategory(ctx, existing)
	if err != nil {
		return domain.Category{}, err
	}
	return *saved, nil
}

// DeleteCategory leaves the category's items in place without a category.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	category, err := s.ownedCategory(ctx, id)
	if err != nil {
		return err
	}
	return s.repo.DeleteCategory(ctx, category.ID)
}

func (s *Service) ownedCategory(ctx context.Context, id string) (domain.Category, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Category{}, domain.NewValidationError("id", "is required")
	}
	if _, err := s.authorize(ctx, authz.CategoryWrite, authz.Resource{}); err != nil {
		return domain.Category{}, err
	}
	category, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}
	if _, err := s.authorize(ctx, authz.CategoryWrite, authz.Resource{Kind: "category", ID: category.ID, OwnerID: category.OwnerID}); err != nil {
		return domain.Category{}, err
	}
	return *category, nil
}

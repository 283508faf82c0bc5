package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stockroom/backend/internal/authz"
	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/xid"
)

// RecordSale validates the request against live stock, prices every line from
// the catalog and hands the decrements plus the record to the store as one
// unit. Nothing is written unless every line can be fulfilled.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleRequest) (domain.TransactionView, error) {
	actor, err := s.authorize(ctx, authz.SaleCreate, authz.Resource{})
	if err != nil {
		return domain.TransactionView{}, err
	}

	lines, method, customer, err := normalizeSale(req)
	if err != nil {
		return domain.TransactionView{}, err
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ItemID)
	}
	items, err := s.repo.GetItemsByIDs(ctx, actor.UserID, ids)
	if err != nil {
		return domain.TransactionView{}, err
	}

	for _, line := range lines {
		item, ok := items[line.ItemID]
		if !ok {
			return domain.TransactionView{}, fmt.Errorf("item %s: %w", line.ItemID, domain.ErrNotFound)
		}
		if item.Quantity < line.Quantity {
			return domain.TransactionView{}, &domain.InsufficientStockError{
				ItemID:    item.ID,
				ItemName:  item.Name,
				Available: item.Quantity,
				Requested: line.Quantity,
			}
		}
	}

	entries := make([]domain.LineEntry, 0, len(lines))
	var total int64
	for _, line := range lines {
		item := items[line.ItemID]
		lineTotal, ok := domain.LineTotal(line.Quantity, item.PriceCents)
		if ok {
			total, ok = domain.AddCents(total, lineTotal)
		}
		if !ok {
			return domain.TransactionView{}, domain.NewValidationError("items", "sale total exceeds the largest recordable amount")
		}
		entries = append(entries, domain.LineEntry{
			ItemID:         item.ID,
			Quantity:       line.Quantity,
			UnitPriceCents: item.PriceCents,
			LineTotalCents: lineTotal,
		})
	}
	s.warnOnClientPricing(ctx, req.Items, items)

	saved, err := s.repo.RecordSale(ctx, domain.Transaction{
		ID:            xid.New("tx"),
		OwnerID:       actor.UserID,
		Items:         entries,
		TotalCents:    total,
		CustomerName:  customer,
		PaymentMethod: method,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return domain.TransactionView{}, err
	}

	s.logger.InfoContext(ctx, "sale recorded",
		"transaction_id", saved.ID, "owner_id", saved.OwnerID, "lines", len(saved.Items), "total_cents", saved.TotalCents)

	categories, err := s.categoryNames(ctx, actor.UserID)
	if err != nil {
		return domain.TransactionView{}, err
	}
	return toTransactionView(*saved, items, categories), nil
}

// normalizeSale checks the request shape and merges repeated items so stock
// is checked against combined demand. Lines keep the position of their first
// occurrence.
func normalizeSale(req domain.SaleRequest) ([]domain.SaleLine, domain.PaymentMethod, string, error) {
	var v domain.Validator
	v.Check(len(req.Items) > 0, "items", "must contain at least one line")

	merged := make([]domain.SaleLine, 0, len(req.Items))
	position := make(map[string]int, len(req.Items))
	for i, line := range req.Items {
		itemID := strings.TrimSpace(line.ItemID)
		v.Check(itemID != "", fmt.Sprintf("items[%d].item", i), "is required")
		field := fmt.Sprintf("items[%d].quantity", i)
		v.Check(line.Quantity > 0, field, "must be positive")
		v.Check(line.Quantity <= domain.MaxQuantity, field, fmt.Sprintf("must be at most %d", domain.MaxQuantity))
		if itemID == "" || line.Quantity <= 0 || line.Quantity > domain.MaxQuantity {
			continue
		}
		if idx, seen := position[itemID]; seen {
			combined := merged[idx].Quantity + line.Quantity
			v.Check(combined <= domain.MaxQuantity, field, fmt.Sprintf("combined quantity for %s must be at most %d", itemID, domain.MaxQuantity))
			if combined <= domain.MaxQuantity {
				merged[idx].Quantity = combined
			}
			continue
		}
		position[itemID] = len(merged)
		merged = append(merged, domain.SaleLine{ItemID: itemID, Quantity: line.Quantity})
	}

	method, ok := domain.ParsePaymentMethod(req.PaymentMethod)
	v.Check(ok, "payment_method", "must be one of Cash, Card, Online")

	if err := v.Err(); err != nil {
		return nil, "", "", err
	}

	customer := strings.TrimSpace(req.CustomerName)
	if customer == "" {
		customer = domain.WalkInCustomer
	}
	return merged, method, customer, nil
}

// warnOnClientPricing logs lines where the client showed a price or total
// that differs from the catalog. The catalog value is what gets recorded.
func (s *Service) warnOnClientPricing(ctx context.Context, lines []domain.SaleLine, items map[string]domain.Item) {
	for _, line := range lines {
		item, ok := items[strings.TrimSpace(line.ItemID)]
		if !ok {
			continue
		}
		if line.Price != nil && !sameCents(*line.Price, item.PriceCents) {
			s.logger.WarnContext(ctx, "client price differs from catalog",
				"item_id", item.ID, "client_price", line.Price.String(), "catalog_price_cents", item.PriceCents)
		}
		if line.Total == nil {
			continue
		}
		if want, ok := domain.LineTotal(line.Quantity, item.PriceCents); !ok || !sameCents(*line.Total, want) {
			s.logger.WarnContext(ctx, "client line total differs from catalog",
				"item_id", item.ID, "client_total", line.Total.String(), "catalog_price_cents", item.PriceCents, "quantity", line.Quantity)
		}
	}
}

// sameCents reports whether a client-supplied number is exactly the given
// amount of cents. Fractional or out-of-range numbers never match.
func sameCents(n json.Number, cents int64) bool {
	v, err := n.Int64()
	return err == nil && v == cents
}

func (s *Service) categoryNames(ctx context.Context, ownerID string) (map[string]string, error) {
	categories, err := s.repo.ListCategories(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names, nil
}

// toTransactionView resolves line items to summaries. Items that no longer
// exist keep only their id.
func toTransactionView(tx domain.Transaction, items map[string]domain.Item, categories map[string]string) domain.TransactionView {
	lines := make([]domain.LineView, 0, len(tx.Items))
	for _, entry := range tx.Items {
		summary := domain.ItemSummary{ID: entry.ItemID}
		if item, ok := items[entry.ItemID]; ok {
			summary.Name = item.Name
			summary.Category = categories[item.CategoryID]
		}
		lines = append(lines, domain.LineView{
			Item:           summary,
			Quantity:       entry.Quantity,
			UnitPriceCents: entry.UnitPriceCents,
			LineTotalCents: entry.LineTotalCents,
		})
	}
	return domain.TransactionView{
		ID:            tx.ID,
		OwnerID:       tx.OwnerID,
		Items:         lines,
		TotalCents:    tx.TotalCents,
		CustomerName:  tx.CustomerName,
		PaymentMethod: tx.PaymentMethod,
		CreatedAt:     tx.CreatedAt,
	}
}

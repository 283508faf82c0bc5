package service

import (
	"context"
	"strings"

	"stockroom/backend/internal/authz"
	"stockroom/backend/internal/domain"
)

const maxTransactionList = 500

func (s *Service) ListTransactions(ctx context.Context, limit int) ([]domain.TransactionView, error) {
	actor, err := s.authorize(ctx, authz.SaleRead, authz.Resource{})
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > maxTransactionList {
		limit = maxTransactionList
	}

	txs, err := s.repo.ListTransactions(ctx, actor.UserID, limit)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	ids := make([]string, 0)
	for _, tx := range txs {
		for _, entry := range tx.Items {
			if !seen[entry.ItemID] {
				seen[entry.ItemID] = true
				ids = append(ids, entry.ItemID)
			}
		}
	}
	items, err := s.repo.GetItemsByIDs(ctx, actor.UserID, ids)
	if err != nil {
		return nil, err
	}
	categories, err := s.categoryNames(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	views := make([]domain.TransactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, toTransactionView(tx, items, categories))
	}
	return views, nil
}

// GetTransaction returns domain.ErrUnauthorized when the record exists but
// belongs to someone else.
func (s *Service) GetTransaction(ctx context.Context, id string) (domain.TransactionView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.TransactionView{}, domain.NewValidationError("id", "is required")
	}
	if _, err := s.authorize(ctx, authz.SaleRead, authz.Resource{}); err != nil {
		return domain.TransactionView{}, err
	}

	tx, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return domain.TransactionView{}, err
	}
	actor, err := s.authorize(ctx, authz.SaleRead, authz.Resource{Kind: "transaction", ID: tx.ID, OwnerID: tx.OwnerID})
	if err != nil {
		return domain.TransactionView{}, err
	}

	ids := make([]string, 0, len(tx.Items))
	for _, entry := range tx.Items {
		ids = append(ids, entry.ItemID)
	}
	items, err := s.repo.GetItemsByIDs(ctx, actor.UserID, ids)
	if err != nil {
		return domain.TransactionView{}, err
	}
	categories, err := s.categoryNames(ctx, actor.UserID)
	if err != nil {
		return domain.TransactionView{}, err
	}
	return toTransactionView(*tx, items, categories), nil
}

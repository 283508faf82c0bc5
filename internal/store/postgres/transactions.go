package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/xid"
)

type transactionRow struct {
	ID            string    `db:"id"`
	OwnerID       string    `db:"owner_id"`
	TotalCents    int64     `db:"total_cents"`
	CustomerName  string    `db:"customer_name"`
	PaymentMethod string    `db:"payment_method"`
	CreatedAt     time.Time `db:"created_at"`
}

type lineRow struct {
	TransactionID  string `db:"transaction_id"`
	ItemID         string `db:"item_id"`
	Quantity       int    `db:"quantity"`
	UnitPriceCents int64  `db:"unit_price_cents"`
	LineTotalCents int64  `db:"line_total_cents"`
}

const transactionColumns = "id, owner_id, total_cents, customer_name, payment_method, created_at"

// RecordSale decrements stock and writes the transaction in one database
// transaction. Each decrement is conditional on enough stock, so a
// concurrent sale that drains an item makes this one fail and roll back.
func (s *Store) RecordSale(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if len(tx.Items) == 0 {
		return nil, domain.NewValidationError("items", "must not be empty")
	}
	for _, line := range tx.Items {
		if line.Quantity < 1 {
			return nil, domain.NewValidationError("quantity", "must be positive")
		}
	}
	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	ids, demand := sortedDemand(tx.Items)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := s.q(ctx)
		for _, id := range ids {
			if err := s.decrement(ctx, q, tx.OwnerID, id, demand[id], tx.CreatedAt); err != nil {
				return err
			}
		}
		if err := insertTransaction(ctx, q, tx); err != nil {
			return err
		}
		return insertLines(ctx, q, tx)
	})
	if err != nil {
		return nil, err
	}

	stored := tx
	stored.Items = append([]domain.LineEntry(nil), tx.Items...)
	return &stored, nil
}

func (s *Store) decrement(ctx context.Context, q Querier, ownerID, itemID string, n int, at time.Time) error {
	sql, args, err := psql.Update("items").
		Set("quantity", squirrel.Expr("quantity - ?", n)).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": itemID, "owner_id": ownerID}).
		Where(squirrel.Expr("quantity >= ?", n)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build decrement: %w", err)
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err, "item", itemID)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	item, err := s.getItem(ctx, q, itemID)
	if err != nil {
		return err
	}
	if item.OwnerID != ownerID {
		return fmt.Errorf("item %s: %w", itemID, domain.ErrNotFound)
	}
	return &domain.InsufficientStockError{
		ItemID:    item.ID,
		ItemName:  item.Name,
		Available: item.Quantity,
		Requested: n,
	}
}

func insertTransaction(ctx context.Context, q Querier, tx domain.Transaction) error {
	sql, args, err := psql.Insert("transactions").
		Columns("id", "owner_id", "total_cents", "customer_name", "payment_method", "created_at").
		Values(tx.ID, tx.OwnerID, tx.TotalCents, tx.CustomerName, string(tx.PaymentMethod), tx.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert transaction: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return mapError(err, "transaction", tx.ID)
	}
	return nil
}

func insertLines(ctx context.Context, q Querier, tx domain.Transaction) error {
	insert := psql.Insert("transaction_lines").
		Columns("transaction_id", "line_no", "item_id", "quantity", "unit_price_cents", "line_total_cents")
	for i, line := range tx.Items {
		insert = insert.Values(tx.ID, i, line.ItemID, line.Quantity, line.UnitPriceCents, line.LineTotalCents)
	}
	sql, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}
	if _, err := q.Exec(ctx, sql, args...); err != nil {
		return mapError(err, "transaction lines of", tx.ID)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	sql, args, err := psql.Select(transactionColumns).From("transactions").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get transaction: %w", err)
	}

	var row transactionRow
	if err := pgxscan.Get(ctx, s.q(ctx), &row, sql, args...); err != nil {
		return nil, mapError(err, "transaction", id)
	}

	lines, err := s.linesFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	tx := row.toTransaction(lines[id])
	return &tx, nil
}

// ListTransactions returns the newest transactions first. limit <= 0 means all.
func (s *Store) ListTransactions(ctx context.Context, ownerID string, limit int) ([]domain.Transaction, error) {
	query := psql.Select(transactionColumns).
		From("transactions").
		Where(squirrel.Eq{"owner_id": ownerID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list transactions: %w", err)
	}

	var rows []transactionRow
	if err := pgxscan.Select(ctx, s.q(ctx), &rows, sql, args...); err != nil {
		return nil, mapError(err, "transactions of", ownerID)
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	lines, err := s.linesFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toTransaction(lines[r.ID]))
	}
	return out, nil
}

func (s *Store) linesFor(ctx context.Context, txIDs []string) (map[string][]domain.LineEntry, error) {
	out := make(map[string][]domain.LineEntry, len(txIDs))
	if len(txIDs) == 0 {
		return out, nil
	}

	sql, args, err := psql.Select("transaction_id", "item_id", "quantity", "unit_price_cents", "line_total_cents").
		From("transaction_lines").
		Where(squirrel.Eq{"transaction_id": txIDs}).
		OrderBy("transaction_id", "line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list lines: %w", err)
	}

	var rows []lineRow
	if err := pgxscan.Select(ctx, s.q(ctx), &rows, sql, args...); err != nil {
		return nil, mapError(err, "transaction lines", "")
	}
	for _, r := range rows {
		out[r.TransactionID] = append(out[r.TransactionID], domain.LineEntry{
			ItemID:         r.ItemID,
			Quantity:       r.Quantity,
			UnitPriceCents: r.UnitPriceCents,
			LineTotalCents: r.LineTotalCents,
		})
	}
	return out, nil
}

func (r transactionRow) toTransaction(lines []domain.LineEntry) domain.Transaction {
	if lines == nil {
		lines = []domain.LineEntry{}
	}
	return domain.Transaction{
		ID:            r.ID,
		OwnerID:       r.OwnerID,
		Items:         lines,
		TotalCents:    r.TotalCents,
		CustomerName:  r.CustomerName,
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

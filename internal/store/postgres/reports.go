package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockroom/backend/internal/domain"
)

func (s *Store) CountTotals(ctx context.Context, ownerID string) (domain.Totals, error) {
	const sql = `SELECT
		(SELECT count(*) FROM items WHERE owner_id = $1) AS items,
		(SELECT count(*) FROM categories WHERE owner_id = $1) AS categories`

	var totals domain.Totals
	if err := s.q(ctx).QueryRow(ctx, sql, ownerID).Scan(&totals.Items, &totals.Categories); err != nil {
		return domain.Totals{}, mapError(err, "totals of", ownerID)
	}
	return totals, nil
}

func (s *Store) LowStockItems(ctx context.Context, ownerID string) ([]domain.LowStockItem, error) {
	sql, args, err := psql.
		Select("i.id", "i.name", "i.quantity", "i.low_stock_threshold", "COALESCE(c.name, '') AS category_name").
		From("items i").
		LeftJoin("categories c ON c.id = i.category_id").
		Where(squirrel.Eq{"i.owner_id": ownerID}).
		Where("i.quantity < i.low_stock_threshold").
		OrderBy("i.quantity", "i.name", "i.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build low stock: %w", err)
	}

	var rows []struct {
		ID                string `db:"id"`
		Name              string `db:"name"`
		Quantity          int    `db:"quantity"`
		LowStockThreshold int    `db:"low_stock_threshold"`
		CategoryName      string `db:"category_name"`
	}
	if err := pgxscan.Select(ctx, s.q(ctx), &rows, sql, args...); err != nil {
		return nil, mapError(err, "low stock of", ownerID)
	}

	out := make([]domain.LowStockItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.LowStockItem{
			ID:                r.ID,
			Name:              r.Name,
			Quantity:          r.Quantity,
			LowStockThreshold: r.LowStockThreshold,
			CategoryName:      r.CategoryName,
		})
	}
	return out, nil
}

// MonthlySales buckets by UTC calendar month, oldest first.
func (s *Store) MonthlySales(ctx context.Context, ownerID string) ([]domain.MonthlySales, error) {
	sql, args, err := psql.
		Select("to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM') AS month", "SUM(total_cents)::bigint AS total_cents").
		From("transactions").
		Where(squirrel.Eq{"owner_id": ownerID}).
		GroupBy("month").
		OrderBy("month").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build monthly sales: %w", err)
	}

	var rows []struct {
		Month      string `db:"month"`
		TotalCents int64  `db:"total_cents"`
	}
	if err := pgxscan.Select(ctx, s.q(ctx), &rows, sql, args...); err != nil {
		return nil, mapError(err, "monthly sales of", ownerID)
	}

	out := make([]domain.MonthlySales, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.MonthlySales{Month: r.Month, TotalCents: r.TotalCents})
	}
	return out, nil
}

// BestSeller breaks ties by earliest sale, then item id. Items deleted since
// the sale report an empty name.
func (s *Store) BestSeller(ctx context.Context, ownerID string) (*domain.BestSeller, error) {
	sql, args, err := psql.
		Select("l.item_id", "COALESCE(i.name, '') AS name", "SUM(l.quantity)::bigint AS total_sold").
		From("transaction_lines l").
		Join("transactions t ON t.id = l.transaction_id").
		LeftJoin("items i ON i.id = l.item_id").
		Where(squirrel.Eq{"t.owner_id": ownerID}).
		GroupBy("l.item_id", "i.name").
		OrderBy("total_sold DESC", "MIN(t.created_at)", "l.item_id").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build best seller: %w", err)
	}

	var rows []struct {
		ItemID    string `db:"item_id"`
		Name      string `db:"name"`
		TotalSold int    `db:"total_sold"`
	}
	if err := pgxscan.Select(ctx, s.q(ctx), &rows, sql, args...); err != nil {
		return nil, mapError(err, "best seller of", ownerID)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &domain.BestSeller{ItemID: rows[0].ItemID, Name: rows[0].Name, TotalSold: rows[0].TotalSold}, nil
}

// DailySales groups by UTC day, newest first.
func (s *Store) DailySales(ctx context.Context, ownerID string, dateRange *domain.DateRange) ([]domain.DailySales, error) {
	query := psql.
		Select(
			"to_char(t.created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day",
			"SUM(t.total_cents)::bigint AS total_sales_cents",
			"COUNT(*)::bigint AS transaction_count",
			"COALESCE(SUM(l.items_sold), 0)::bigint AS items_sold",
		).
		From("transactions t").
		LeftJoin("(SELECT transaction_id, SUM(quantity) AS items_sold FROM transaction_lines GROUP BY transaction_id) l ON l.transaction_id = t.id").
		Where(squirrel.Eq{"t.owner_id": ownerID})
	if dateRange != nil {
		query = query.
			Where(squirrel.GtOrEq{"t.created_at": dateRange.From}).
			Where(squirrel.Lt{"t.created_at": dateRange.To})
	}
	sql, args, err := query.GroupBy("day").OrderBy("day DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build daily sales: %w", err)
	}

	var rows []struct {
		Day              string `db:"day"`
		TotalSalesCents  int64  `db:"total_sales_cents"`
		TransactionCount int    `db:"transaction_count"`
		ItemsSold        int    `db:"items_sold"`
	}
	if err := pgxscan.Select(ctx, s.q(ctx), &rows, sql, args...); err != nil {
		return nil, mapError(err, "daily sales of", ownerID)
	}

	out := make([]domain.DailySales, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.DailySales{
			Date:             r.Day,
			TotalSalesCents:  r.TotalSalesCents,
			TransactionCount: r.TransactionCount,
			ItemsSold:        r.ItemsSold,
		})
	}
	return out, nil
}

package postgres

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store"
)

var _ store.Repository = (*Store)(nil)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

const itemColumns = "id, owner_id, name, COALESCE(category_id, '') AS category_id, quantity, price_cents, low_stock_threshold, created_at, updated_at"

type Store struct {
	db DB
	tx *TxManager
}

func New(db DB) *Store {
	return &Store{db: db, tx: NewTxManager(db)}
}

func (s *Store) q(ctx context.Context) Querier {
	return querierFromCtx(ctx, s.db)
}

type itemRow struct {
	ID                string    `db:"id"`
	OwnerID           string    `db:"owner_id"`
	Name              string    `db:"name"`
	CategoryID        string    `db:"category_id"`
	Quantity          int       `db:"quantity"`
	PriceCents        int64     `db:"price_cents"`
	LowStockThreshold int       `db:"low_stock_threshold"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
	CategoryName      string    `db:"category_name"`
}

func (r itemRow) toItem() domain.Item {
	return domain.Item{
		ID:                r.ID,
		OwnerID:           r.OwnerID,
		Name:              r.Name,
		CategoryID:        r.CategoryID,
		Quantity:          r.Quantity,
		PriceCents:        r.PriceCents,
		LowStockThreshold: r.LowStockThreshold,
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *Store) ListItems(ctx context.Context, ownerID string) ([]domain.ItemView, error) {
	sql, args, err := psql.
		Select("i.id", "i.owner_id", "i.name", "COALESCE(i.category_id, '') AS category_id", "i.quantity",
			"i.price_cents", "i.low_stock_threshold", "i.created_at", "i.updated_at", "COALESCE(c.name, '') AS category_name").
		From("items i").
		LeftJoin("categories c ON c.id = i.category_id").
		Where(squirrel.Eq{"i.owner_id": ownerID}).
		OrderBy("i.name", "i.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list items: %w", err)
	}

	var rows []itemRow
	if err := pgxscan.Select(ctx, s.q(ctx), &rows, sql, args...); err != nil {
		return nil, mapError(err, "items of", ownerID)
	}

	views := make([]domain.ItemView, 0, len(rows))
	for _, r := range rows {
		views = append(views, domain.ItemView{Item: r.toItem(), CategoryName: r.CategoryName})
	}
	return views, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return s.getItem(ctx, s.q(ctx), id)
}

func (s *Store) getItem(ctx context.Context, q Querier, id string) (*domain.Item, error) {
	sql, args, err := psql.Select(itemColumns).From("items").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get item: %w", err)
	}

	var row itemRow
	if err := pgxscan.Get(ctx, q, &row, sql, args...); err != nil {
		return nil, mapError(err, "item", id)
	}
	item := row.toItem()
	return &item, nil
}

func (s *Store) GetItemsByIDs(ctx context.Context, ownerID string, ids []string) (map[string]domain.Item, error) {
	out := make(map[string]domain.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	sql, args, err := psql.Select(itemColumns).
		From("items").
		Where(squirrel.Eq{"owner_id": ownerID, "id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get items: %w", err)
	}

	var rows []itemRow
	if err := pgxscan.Select(ctx, s.q(ctx), &rows, sql, args...); err != nil {
		return nil, mapError(err, "items of", ownerID)
	}
	for _, r := range rows {
		out[r.ID] = r.toItem()
	}
	return out, nil
}

func (s *Store) CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	if err := s.checkCategory(ctx, item.OwnerID, item.CategoryID); err != nil {
		return nil, err
	}

	sql, args, err := psql.Insert("items").
		Columns("id", "owner_id", "name", "category_id", "quantity", "price_cents", "low_stock_threshold", "created_at", "updated_at").
		Values(item.ID, item.OwnerID, item.Name, nullable(item.CategoryID), item.Quantity, item.PriceCents, item.LowStockThreshold, item.CreatedAt, item.UpdatedAt).
		Suffix("RETURNING " + itemColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build create item: %w", err)
	}

	var row itemRow
	if err := pgxscan.Get(ctx, s.q(ctx), &row, sql, args...); err != nil {
		return nil, mapError(err, "item", item.ID)
	}
	created := row.toItem()
	return &created, nil
}

func (s *Store) UpdateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	if err := s.checkCategory(ctx, item.OwnerID, item.CategoryID); err != nil {
		return nil, err
	}

	sql, args, err := psql.Update("items").
		Set("name", item.Name).
		Set("category_id", nullable(item.CategoryID)).
		Set("price_cents", item.PriceCents).
		Set("low_stock_threshold", item.LowStockThreshold).
		Set("updated_at", item.UpdatedAt).
		Where(squirrel.Eq{"id": item.ID}).
		Suffix("RETURNING " + itemColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update item: %w", err)
	}

	var row itemRow
	if err := pgxscan.Get(ctx, s.q(ctx), &row, sql, args...); err != nil {
		return nil, mapError(err, "item", item.ID)
	}
	updated := row.toItem()
	return &updated, nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	sql, args, err := psql.Delete("items").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete item: %w", err)
	}
	tag, err := s.q(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err, "item", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// AdjustQuantity is a single conditional UPDATE. When it matches no row the
// item is re-read to tell a missing item from a shortfall.
func (s *Store) AdjustQuantity(ctx context.Context, id string, delta int, at time.Time) (*domain.Item, error) {
	sql, args, err := psql.Update("items").
		Set("quantity", squirrel.Expr("quantity + ?", delta)).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Expr("quantity + ? >= 0", delta)).
		Suffix("RETURNING " + itemColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build adjust quantity: %w", err)
	}

	var row itemRow
	err = pgxscan.Get(ctx, s.q(ctx), &row, sql, args...)
	if err == nil {
		updated := row.toItem()
		return &updated, nil
	}
	if !isNoRows(err) {
		return nil, mapError(err, "item", id)
	}

	current, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, &domain.InsufficientStockError{
		ItemID:    current.ID,
		ItemName:  current.Name,
		Available: current.Quantity,
		Requested: -delta,
	}
}

func (s *Store) checkCategory(ctx context.Context, ownerID, categoryID string) error {
	if categoryID == "" {
		return nil
	}
	category, err := s.GetCategory(ctx, categoryID)
	if err != nil {
		return err
	}
	if category.OwnerID != ownerID {
		return fmt.Errorf("category %s: %w", categoryID, domain.ErrNotFound)
	}
	return nil
}

type categoryRow struct {
	ID          string    `db:"id"`
	OwnerID     string    `db:"owner_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r categoryRow) toCategory() domain.Category {
	return domain.Category{
		ID:          r.ID,
		OwnerID:     r.OwnerID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

const categoryColumns = "id, owner_id, name, description, created_at"

func (s *Store) ListCategories(ctx context.Context, ownerID string) ([]domain.Category, error) {
	sql, args, err := psql.Select(categoryColumns).
		From("categories").
		Where(squirrel.Eq{"owner_id": ownerID}).
		OrderBy("name", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list categories: %w", err)
	}

	var rows []categoryRow
	if err := pgxscan.Select(ctx, s.q(ctx), &rows, sql, args...); err != nil {
		return nil, mapError(err, "categories of", ownerID)
	}
	out := make([]domain.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCategory())
	}
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	sql, args, err := psql.Select(categoryColumns).From("categories").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get category: %w", err)
	}
	var row categoryRow
	if err := pgxscan.Get(ctx, s.q(ctx), &row, sql, args...); err != nil {
		return nil, mapError(err, "category", id)
	}
	c := row.toCategory()
	return &c, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	sql, args, err := psql.Insert("categories").
		Columns("id", "owner_id", "name", "description", "created_at").
		Values(category.ID, category.OwnerID, category.Name, category.Description, category.CreatedAt).
		Suffix("RETURNING " + categoryColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build create category: %w", err)
	}
	var row categoryRow
	if err := pgxscan.Get(ctx, s.q(ctx), &row, sql, args...); err != nil {
		return nil, mapError(err, "category", category.ID)
	}
	c := row.toCategory()
	return &c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	sql, args, err := psql.Update("categories").
		Set("name", category.Name).
		Set("description", category.Description).
		Where(squirrel.Eq{"id": category.ID}).
		Suffix("RETURNING " + categoryColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update category: %w", err)
	}
	var row categoryRow
	if err := pgxscan.Get(ctx, s.q(ctx), &row, sql, args...); err != nil {
		return nil, mapError(err, "category", category.ID)
	}
	c := row.toCategory()
	return &c, nil
}

// DeleteCategory relies on ON DELETE SET NULL to detach items.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	sql, args, err := psql.Delete("categories").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete category: %w", err)
	}
	tag, err := s.q(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err, "category", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// sortedDemand sums line quantities per item and returns the item ids in a
// fixed order so concurrent multi-line sales lock rows in the same sequence.
func sortedDemand(lines []domain.LineEntry) ([]string, map[string]int) {
	demand := make(map[string]int, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, seen := demand[line.ItemID]; !seen {
			ids = append(ids, line.ItemID)
		}
		demand[line.ItemID] += line.Quantity
	}
	slices.Sort(ids)
	return ids, demand
}

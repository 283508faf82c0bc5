package store

import (
	"context"
	"time"

	"stockroom/backend/internal/domain"
)

// Stores return the domain sentinels (domain.ErrNotFound, domain.ErrAlreadyExists,
// *domain.InsufficientStockError) so callers never depend on a driver.

type ItemStore interface {
	ListItems(ctx context.Context, ownerID string) ([]domain.ItemView, error)
	GetItem(ctx context.Context, id string) (*domain.Item, error)
	// GetItemsByIDs returns only the items that exist and belong to ownerID.
	GetItemsByIDs(ctx context.Context, ownerID string, ids []string) (map[string]domain.Item, error)
	CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	// UpdateItem writes descriptive fields only. Quantity moves through AdjustQuantity.
	UpdateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	DeleteItem(ctx context.Context, id string) error
	// AdjustQuantity applies delta only when the result stays >= 0.
	AdjustQuantity(ctx context.Context, id string, delta int, at time.Time) (*domain.Item, error)
}

type CategoryStore interface {
	ListCategories(ctx context.Context, ownerID string) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	// DeleteCategory also clears category_id on the items that referenced it.
	DeleteCategory(ctx context.Context, id string) error
}

type TransactionStore interface {
	// RecordSale decrements every line's item and inserts tx as one unit.
	// On any shortfall nothing is written.
	RecordSale(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, ownerID string, limit int) ([]domain.Transaction, error)
}

type ReportStore interface {
	CountTotals(ctx context.Context, ownerID string) (domain.Totals, error)
	LowStockItems(ctx context.Context, ownerID string) ([]domain.LowStockItem, error)
	MonthlySales(ctx context.Context, ownerID string) ([]domain.MonthlySales, error)
	BestSeller(ctx context.Context, ownerID string) (*domain.BestSeller, error)
	// DailySales groups by UTC day, newest first. A nil range covers all history.
	DailySales(ctx context.Context, ownerID string, dateRange *domain.DateRange) ([]domain.DailySales, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

type Repository interface {
	ItemStore
	CategoryStore
	TransactionStore
	ReportStore
	UserStore
}

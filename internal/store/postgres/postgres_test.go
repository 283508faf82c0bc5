package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockroom/backend/internal/domain"
)

var itemCols = []string{"id", "owner_id", "name", "category_id", "quantity", "price_cents", "low_stock_threshold", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock), mock
}

func itemRows(id string, qty int, now time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(itemCols).AddRow(id, "owner-1", "Bolt", "", qty, int64(50), 10, now, now)
}

func TestAdjustQuantity(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		delta   int
		setup   func(mock pgxmock.PgxPoolIface)
		wantQty int
		check   func(t *testing.T, err error)
	}{
		{
			name:  "applies delta",
			delta: -3,
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`UPDATE items SET quantity = quantity \+ \$1`).
					WithArgs(-3, pgxmock.AnyArg(), "item-1", -3).
					WillReturnRows(itemRows("item-1", 2, now))
			},
			wantQty: 2,
		},
		{
			name:  "shortfall reports availability",
			delta: -3,
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`UPDATE items`).
					WithArgs(-3, pgxmock.AnyArg(), "item-1", -3).
					WillReturnRows(pgxmock.NewRows(itemCols))
				mock.ExpectQuery(`SELECT .+ FROM items`).
					WithArgs("item-1").
					WillReturnRows(itemRows("item-1", 2, now))
			},
			check: func(t *testing.T, err error) {
				var stockErr *domain.InsufficientStockError
				require.ErrorAs(t, err, &stockErr)
				assert.Equal(t, 2, stockErr.Available)
				assert.Equal(t, 3, stockErr.Requested)
			},
		},
		{
			name:  "missing item",
			delta: 4,
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`UPDATE items`).
					WithArgs(4, pgxmock.AnyArg(), "item-1", 4).
					WillReturnRows(pgxmock.NewRows(itemCols))
				mock.ExpectQuery(`SELECT .+ FROM items`).
					WithArgs("item-1").
					WillReturnError(pgx.ErrNoRows)
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrNotFound)
			},
		},
		{
			name:  "integer overflow is a validation error",
			delta: 10,
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`UPDATE items`).
					WithArgs(10, pgxmock.AnyArg(), "item-1", 10).
					WillReturnError(&pgconn.PgError{Code: "22003", Message: "integer out of range"})
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrValidation)
				assert.NotErrorIs(t, err, domain.ErrInsufficientStock)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			tt.setup(mock)

			item, err := s.AdjustQuantity(context.Background(), "item-1", tt.delta, now)
			if tt.check != nil {
				require.Error(t, err)
				tt.check(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantQty, item.Quantity)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func saleTx(now time.Time) domain.Transaction {
	return domain.Transaction{
		ID:      "tx-1",
		OwnerID: "owner-1",
		Items: []domain.LineEntry{
			{ItemID: "item-b", Quantity: 1, UnitPriceCents: 20, LineTotalCents: 20},
			{ItemID: "item-a", Quantity: 2, UnitPriceCents: 10, LineTotalCents: 20},
		},
		TotalCents:    40,
		CustomerName:  domain.WalkInCustomer,
		PaymentMethod: domain.PaymentCash,
		CreatedAt:     now,
	}
}

func TestRecordSaleCommits(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE items`).
		WithArgs(2, pgxmock.AnyArg(), "item-a", "owner-1", 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE items`).
		WithArgs(1, pgxmock.AnyArg(), "item-b", "owner-1", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs("tx-1", "owner-1", int64(40), domain.WalkInCustomer, "Cash", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO transaction_lines`).
		WithArgs(
			"tx-1", 0, "item-b", 1, int64(20), int64(20),
			"tx-1", 1, "item-a", 2, int64(10), int64(20),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	stored, err := s.RecordSale(context.Background(), saleTx(now))
	require.NoError(t, err)
	assert.Equal(t, int64(40), stored.TotalCents)
	assert.Len(t, stored.Items, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSaleRollsBackOnShortfall(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE items`).
		WithArgs(2, pgxmock.AnyArg(), "item-a", "owner-1", 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE items`).
		WithArgs(1, pgxmock.AnyArg(), "item-b", "owner-1", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT .+ FROM items`).
		WithArgs("item-b").
		WillReturnRows(itemRows("item-b", 0, now))
	mock.ExpectRollback()

	_, err := s.RecordSale(context.Background(), saleTx(now))

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "item-b", stockErr.ItemID)
	assert.Equal(t, 0, stockErr.Available)
	assert.Equal(t, 1, stockErr.Requested)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSaleRejectsEmptySale(t *testing.T) {
	s, mock := newMockStore(t)

	_, err := s.RecordSale(context.Background(), domain.Transaction{OwnerID: "owner-1"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSortedDemandMergesLines(t *testing.T) {
	ids, demand := sortedDemand([]domain.LineEntry{
		{ItemID: "b", Quantity: 1},
		{ItemID: "a", Quantity: 2},
		{ItemID: "b", Quantity: 3},
	})
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, map[string]int{"a": 2, "b": 4}, demand)
}

func TestCountTotals(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT`).
		WithArgs("owner-1").
		WillReturnRows(pgxmock.NewRows([]string{"items", "categories"}).AddRow(3, 2))

	totals, err := s.CountTotals(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Totals{Items: 3, Categories: 2}, totals)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBestSellerWithoutSales(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM transaction_lines`).
		WithArgs("owner-1").
		WillReturnRows(pgxmock.NewRows([]string{"item_id", "name", "total_sold"}))

	best, err := s.BestSeller(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Nil(t, best)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMonthlySales(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`GROUP BY month ORDER BY month`).
		WithArgs("owner-1").
		WillReturnRows(pgxmock.NewRows([]string{"month", "total_cents"}).
			AddRow("2025-01", int64(150)).
			AddRow("2025-02", int64(30)))

	months, err := s.MonthlySales(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.MonthlySales{
		{Month: "2025-01", TotalCents: 150},
		{Month: "2025-02", TotalCents: 30},
	}, months)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDailySalesWithRange(t *testing.T) {
	s, mock := newMockStore(t)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	mock.ExpectQuery(`t.created_at >= \$2 AND t.created_at < \$3`).
		WithArgs("owner-1", from, to).
		WillReturnRows(pgxmock.NewRows([]string{"day", "total_sales_cents", "transaction_count", "items_sold"}).
			AddRow("2025-01-03", int64(90), 2, 5))

	days, err := s.DailySales(context.Background(), "owner-1", &domain.DateRange{From: from, To: to})
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, domain.DailySales{Date: "2025-01-03", TotalSalesCents: 90, TransactionCount: 2, ItemsSold: 5}, days[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "Ann", "ann@example.com", "hash", domain.RoleStaff, pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := s.CreateUser(context.Background(), domain.User{Name: "Ann", Email: " Ann@Example.com ", PasswordHash: "hash"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCategoryMissing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM categories`).
		WithArgs("cat-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteCategory(context.Background(), "cat-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.tx.RunInTx(context.Background(), func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxKeepsOriginalErrorWhenRollbackFails(t *testing.T) {
	s, mock := newMockStore(t)
	rbErr := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(rbErr)

	err := s.tx.RunInTx(context.Background(), func(ctx context.Context) error {
		return &domain.InsufficientStockError{ItemID: "item-1", Available: 1, Requested: 2}
	})
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 1, stockErr.Available)
	assert.ErrorIs(t, err, rbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: pgx.ErrNoRows, want: domain.ErrNotFound},
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, want: domain.ErrAlreadyExists},
		{name: "foreign key", err: &pgconn.PgError{Code: "23503"}, want: domain.ErrNotFound},
		{name: "check", err: &pgconn.PgError{Code: "23514"}, want: domain.ErrValidation},
		{name: "out of range", err: &pgconn.PgError{Code: "22003"}, want: domain.ErrValidation},
		{name: "deadline", err: context.DeadlineExceeded, want: context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err, "item", "x"), tt.want)
		})
	}
	assert.NoError(t, mapError(nil, "item", "x"))
}

package domain

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

const (
	WalkInCustomer           = "Walk-in Customer"
	DefaultLowStockThreshold = 10

	// MaxQuantity bounds stock counts, sale quantities and thresholds to the
	// INTEGER columns that hold them.
	MaxQuantity = math.MaxInt32
)

// LineTotal returns quantity*priceCents and false when the product does not
// fit in int64. Both inputs must be non-negative.
func LineTotal(quantity int, priceCents int64) (int64, bool) {
	if quantity == 0 || priceCents == 0 {
		return 0, true
	}
	if int64(quantity) > math.MaxInt64/priceCents {
		return 0, false
	}
	return int64(quantity) * priceCents, true
}

// AddCents returns a+b and false on overflow. Both inputs must be
// non-negative.
func AddCents(a, b int64) (int64, bool) {
	if a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "Cash"
	PaymentCard   PaymentMethod = "Card"
	PaymentOnline PaymentMethod = "Online"
)

// ParsePaymentMethod accepts any casing of the supported methods. An empty
// value means cash.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "cash":
		return PaymentCash, true
	case "card":
		return PaymentCard, true
	case "online":
		return PaymentOnline, true
	default:
		return "", false
	}
}

type Item struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"owner_id"`
	Name              string    `json:"name"`
	CategoryID        string    `json:"category_id,omitempty"`
	Quantity          int       `json:"quantity"`
	PriceCents        int64     `json:"price_cents"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsLowStock reports whether the item is strictly below its threshold. An
// item sitting exactly at the threshold is not low.
func (i Item) IsLowStock() bool {
	return i.Quantity < i.LowStockThreshold
}

type ItemView struct {
	Item
	CategoryName string `json:"category_name,omitempty"`
}

type ItemCreateRequest struct {
	Name              string `json:"name"`
	CategoryID        string `json:"category_id"`
	Quantity          int    `json:"quantity"`
	PriceCents        int64  `json:"price_cents"`
	LowStockThreshold *int   `json:"low_stock_threshold,omitempty"`
}

type ItemUpdateRequest struct {
	Name              *string `json:"name,omitempty"`
	CategoryID        *string `json:"category_id,omitempty"`
	PriceCents        *int64  `json:"price_cents,omitempty"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty"`
}

type StockAdjustRequest struct {
	Amount int `json:"amount"`
}

type Category struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type CategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LineEntry struct {
	ItemID         string `json:"item"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
}

// Transaction is an immutable sale record. Nothing updates or deletes it
// once the store has accepted it.
type Transaction struct {
	ID            string        `json:"id"`
	OwnerID       string        `json:"owner_id"`
	Items         []LineEntry   `json:"items"`
	TotalCents    int64         `json:"total_cents"`
	CustomerName  string        `json:"customer_name"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	CreatedAt     time.Time     `json:"created_at"`
}

type SaleLine struct {
	ItemID   string `json:"item"`
	Quantity int    `json:"quantity"`
	// Price and Total are what the client displayed. They are never persisted.
	Price *json.Number `json:"price,omitempty"`
	Total *json.Number `json:"total,omitempty"`
}

type SaleRequest struct {
	Items         []SaleLine `json:"items"`
	CustomerName  string     `json:"customer_name,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
}

type ItemSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

type LineView struct {
	Item           ItemSummary `json:"item"`
	Quantity       int         `json:"quantity"`
	UnitPriceCents int64       `json:"unit_price_cents"`
	LineTotalCents int64       `json:"line_total_cents"`
}

type TransactionView struct {
	ID            string        `json:"id"`
	OwnerID       string        `json:"owner_id"`
	Items         []LineView    `json:"items"`
	TotalCents    int64         `json:"total_cents"`
	CustomerName  string        `json:"customer_name"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	CreatedAt     time.Time     `json:"created_at"`
}

type LowStockItem struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Quantity          int    `json:"quantity"`
	LowStockThreshold int    `json:"low_stock_threshold"`
	CategoryName      string `json:"category_name,omitempty"`
}

type MonthlySales struct {
	Month      string `json:"month"`
	TotalCents int64  `json:"total_cents"`
}

type BestSeller struct {
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	TotalSold int    `json:"total_sold"`
}

type Totals struct {
	Items      int `json:"total_products"`
	Categories int `json:"total_categories"`
}

type Dashboard struct {
	TotalProducts   int            `json:"total_products"`
	TotalCategories int            `json:"total_categories"`
	LowStockItems   []LowStockItem `json:"low_stock_items"`
	MonthlySales    []MonthlySales `json:"monthly_sales"`
	MostSoldItem    *BestSeller    `json:"most_sold_item"`
}

type DailySales struct {
	Date             string `json:"date"`
	TotalSalesCents  int64  `json:"total_sales_cents"`
	TransactionCount int    `json:"transaction_count"`
	ItemsSold        int    `json:"items_sold"`
}

// DateRange bounds a report: From is inclusive, To is exclusive.
type DateRange struct {
	From time.Time
	To   time.Time
}

type SalesReport struct {
	StartDate string       `json:"start_date,omitempty"`
	EndDate   string       `json:"end_date,omitempty"`
	Days      []DailySales `json:"days"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type Actor struct {
	UserID string
	Role   string
}

type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserCreateRequest is the elevated path for adding users with a chosen role.
type UserCreateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

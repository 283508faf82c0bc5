package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store"
	"stockroom/backend/internal/xid"
)

var _ store.Repository = (*Store)(nil)

type Store struct {
	mu            sync.RWMutex
	items         map[string]domain.Item
	itemOrder     []string
	categories    map[string]domain.Category
	transactions  []*domain.Transaction
	txByID        map[string]*domain.Transaction
	usersByID     map[string]domain.User
	userIDByEmail map[string]string
}

func New() *Store {
	return &Store{
		items:         make(map[string]domain.Item),
		categories:    make(map[string]domain.Category),
		txByID:        make(map[string]*domain.Transaction),
		usersByID:     make(map[string]domain.User),
		userIDByEmail: make(map[string]string),
	}
}

const (
	SeedAdminID   = "user-admin"
	SeedManagerID = "user-manager"
	SeedStaffID   = "user-staff"
)

// seedUsers builds the demo accounts for dev mode. Passwords come from
// SEED_ADMIN_PASSWORD, SEED_MANAGER_PASSWORD and SEED_STAFF_PASSWORD; the
// fallbacks are only acceptable without a database.
func seedUsers(now time.Time, logger *slog.Logger) []domain.User {
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_MANAGER_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		logger.Warn("memory store using default dev credentials, set SEED_*_PASSWORD to override")
	}

	users := make([]domain.User, 0, 3)
	for _, u := range []struct {
		id       string
		name     string
		email    string
		password string
		role     string
	}{
		{SeedAdminID, "Admin", "admin@stockroom.local", envOr("SEED_ADMIN_PASSWORD", "admin12345"), domain.RoleAdmin},
		{SeedManagerID, "Manager", "manager@stockroom.local", envOr("SEED_MANAGER_PASSWORD", "manager12345"), domain.RoleManager},
		{SeedStaffID, "Staff", "staff@stockroom.local", envOr("SEED_STAFF_PASSWORD", "staff12345"), domain.RoleStaff},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			panic(fmt.Sprintf("hash seed password for %s: %v", u.email, err))
		}
		users = append(users, domain.User{
			ID:           u.id,
			Name:         u.name,
			Email:        u.email,
			PasswordHash: string(hash),
			Role:         u.role,
			CreatedAt:    now,
		})
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store holding a demo tenant owned by the seed admin.
func NewSeeded(logger *slog.Logger) *Store {
	s := New()
	now := time.Now().UTC()

	for _, u := range seedUsers(now, logger) {
		s.usersByID[u.ID] = u
		s.userIDByEmail[u.Email] = u.ID
	}

	categories := []domain.Category{
		{ID: "cat-grocery", Name: "Grocery", Description: "Dry goods and staples"},
		{ID: "cat-beverage", Name: "Beverage", Description: "Drinks"},
		{ID: "cat-household", Name: "Household", Description: "Cleaning and toiletries"},
	}
	for _, c := range categories {
		c.OwnerID = SeedAdminID
		c.CreatedAt = now
		s.categories[c.ID] = c
	}

	items := []domain.Item{
		{ID: "item-rice", Name: "Rice 5kg", CategoryID: "cat-grocery", Quantity: 40, PriceCents: 7250},
		{ID: "item-noodles", Name: "Instant Noodles", CategoryID: "cat-grocery", Quantity: 120, PriceCents: 350},
		{ID: "item-sugar", Name: "Sugar 1kg", CategoryID: "cat-grocery", Quantity: 8, PriceCents: 1740},
		{ID: "item-coffee", Name: "Coffee Sachet", CategoryID: "cat-beverage", Quantity: 200, PriceCents: 260},
		{ID: "item-water", Name: "Mineral Water 600ml", CategoryID: "cat-beverage", Quantity: 5, PriceCents: 390},
		{ID: "item-soap", Name: "Bath Soap", CategoryID: "cat-household", Quantity: 30, PriceCents: 740, LowStockThreshold: 35},
	}
	for _, item := range items {
		item.OwnerID = SeedAdminID
		if item.LowStockThreshold == 0 {
			item.LowStockThreshold = domain.DefaultLowStockThreshold
		}
		item.CreatedAt = now
		item.UpdatedAt = now
		s.items[item.ID] = item
		s.itemOrder = append(s.itemOrder, item.ID)
	}
	return s
}

func (s *Store) ListItems(_ context.Context, ownerID string) ([]domain.ItemView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]domain.ItemView, 0, len(s.items))
	for _, id := range s.itemOrder {
		item := s.items[id]
		if item.OwnerID != ownerID {
			continue
		}
		views = append(views, domain.ItemView{Item: item, CategoryName: s.categoryNameLocked(item.CategoryID)})
	}
	slices.SortStableFunc(views, func(a, b domain.ItemView) int {
		return strings.Compare(a.Name, b.Name)
	})
	return views, nil
}

func (s *Store) GetItem(_ context.Context, id string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (s *Store) GetItemsByIDs(_ context.Context, ownerID string, ids []string) (map[string]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Item, len(ids))
	for _, id := range ids {
		item, ok := s.items[id]
		if !ok || item.OwnerID != ownerID {
			continue
		}
		out[id] = item
	}
	return out, nil
}

func (s *Store) CreateItem(_ context.Context, item domain.Item) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Quantity < 0 {
		return nil, domain.NewValidationError("quantity", "must not be negative")
	}
	if item.ID == "" {
		item.ID = xid.New("item")
	}
	if _, exists := s.items[item.ID]; exists {
		return nil, domain.ErrAlreadyExists
	}
	if err := s.checkCategoryLocked(item.OwnerID, item.CategoryID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}
	s.items[item.ID] = item
	s.itemOrder = append(s.itemOrder, item.ID)
	created := item
	return &created, nil
}

func (s *Store) UpdateItem(_ context.Context, item domain.Item) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[item.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if err := s.checkCategoryLocked(existing.OwnerID, item.CategoryID); err != nil {
		return nil, err
	}
	existing.Name = item.Name
	existing.CategoryID = item.CategoryID
	existing.PriceCents = item.PriceCents
	existing.LowStockThreshold = item.LowStockThreshold
	existing.UpdatedAt = item.UpdatedAt
	if existing.UpdatedAt.IsZero() {
		existing.UpdatedAt = time.Now().UTC()
	}
	s.items[item.ID] = existing
	updated := existing
	return &updated, nil
}

func (s *Store) DeleteItem(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.items, id)
	s.itemOrder = slices.DeleteFunc(s.itemOrder, func(v string) bool { return v == id })
	return nil
}

func (s *Store) AdjustQuantity(_ context.Context, id string, delta int, at time.Time) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if delta > 0 && item.Quantity > domain.MaxQuantity-delta {
		return nil, domain.NewValidationError("amount", fmt.Sprintf("would raise stock above %d", domain.MaxQuantity))
	}
	if delta < 0 && item.Quantity < -delta {
		return nil, &domain.InsufficientStockError{
			ItemID:    item.ID,
			ItemName:  item.Name,
			Available: item.Quantity,
			Requested: -delta,
		}
	}
	item.Quantity += delta
	item.UpdatedAt = at
	s.items[id] = item
	updated := item
	return &updated, nil
}

func (s *Store) ListCategories(_ context.Context, ownerID string) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.Category) int {
		if a.Name == b.Name {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if _, exists := s.categories[category.ID]; exists {
		return nil, domain.ErrAlreadyExists
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	s.categories[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.categories[category.ID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	existing.Name = category.Name
	existing.Description = category.Description
	s.categories[category.ID] = existing
	updated := existing
	return &updated, nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.categories, id)
	for itemID, item := range s.items {
		if item.CategoryID == id {
			item.CategoryID = ""
			s.items[itemID] = item
		}
	}
	return nil
}

// RecordSale checks every line under the write lock before touching any
// quantity, so a shortfall on the last line leaves the first untouched.
func (s *Store) RecordSale(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(tx.Items) == 0 {
		return nil, domain.NewValidationError("items", "must not be empty")
	}

	demand := make(map[string]int, len(tx.Items))
	for _, line := range tx.Items {
		if line.Quantity < 1 {
			return nil, domain.NewValidationError("quantity", "must be positive")
		}
		item, ok := s.items[line.ItemID]
		if !ok || item.OwnerID != tx.OwnerID {
			return nil, fmt.Errorf("item %s: %w", line.ItemID, domain.ErrNotFound)
		}
		demand[line.ItemID] += line.Quantity
		if item.Quantity < demand[line.ItemID] {
			return nil, &domain.InsufficientStockError{
				ItemID:    item.ID,
				ItemName:  item.Name,
				Available: item.Quantity,
				Requested: demand[line.ItemID],
			}
		}
	}

	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if _, exists := s.txByID[tx.ID]; exists {
		return nil, domain.ErrAlreadyExists
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	for itemID, qty := range demand {
		item := s.items[itemID]
		item.Quantity -= qty
		item.UpdatedAt = tx.CreatedAt
		s.items[itemID] = item
	}

	stored := cloneTransaction(&tx)
	s.transactions = append(s.transactions, stored)
	s.txByID[stored.ID] = stored
	return cloneTransaction(stored), nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txByID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, ownerID string, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, 0)
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if tx.OwnerID != ownerID {
			continue
		}
		out = append(out, *cloneTransaction(tx))
	}
	slices.SortStableFunc(out, func(a, b domain.Transaction) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountTotals(_ context.Context, ownerID string) (domain.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totals domain.Totals
	for _, item := range s.items {
		if item.OwnerID == ownerID {
			totals.Items++
		}
	}
	for _, c := range s.categories {
		if c.OwnerID == ownerID {
			totals.Categories++
		}
	}
	return totals, nil
}

func (s *Store) LowStockItems(_ context.Context, ownerID string) ([]domain.LowStockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.LowStockItem, 0)
	for _, id := range s.itemOrder {
		item := s.items[id]
		if item.OwnerID != ownerID || !item.IsLowStock() {
			continue
		}
		out = append(out, domain.LowStockItem{
			ID:                item.ID,
			Name:              item.Name,
			Quantity:          item.Quantity,
			LowStockThreshold: item.LowStockThreshold,
			CategoryName:      s.categoryNameLocked(item.CategoryID),
		})
	}
	slices.SortStableFunc(out, func(a, b domain.LowStockItem) int {
		if a.Quantity != b.Quantity {
			return a.Quantity - b.Quantity
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) MonthlySales(_ context.Context, ownerID string) ([]domain.MonthlySales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byMonth := map[string]int64{}
	for _, tx := range s.transactions {
		if tx.OwnerID != ownerID {
			continue
		}
		byMonth[tx.CreatedAt.UTC().Format("2006-01")] += tx.TotalCents
	}

	out := make([]domain.MonthlySales, 0, len(byMonth))
	for month, total := range byMonth {
		out = append(out, domain.MonthlySales{Month: month, TotalCents: total})
	}
	slices.SortFunc(out, func(a, b domain.MonthlySales) int {
		return strings.Compare(a.Month, b.Month)
	})
	return out, nil
}

// BestSeller breaks ties in favour of the item that was sold first.
func (s *Store) BestSeller(_ context.Context, ownerID string) (*domain.BestSeller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sold := map[string]int{}
	order := make([]string, 0)
	for _, tx := range s.transactions {
		if tx.OwnerID != ownerID {
			continue
		}
		for _, line := range tx.Items {
			if _, seen := sold[line.ItemID]; !seen {
				order = append(order, line.ItemID)
			}
			sold[line.ItemID] += line.Quantity
		}
	}
	if len(order) == 0 {
		return nil, nil
	}

	best := order[0]
	for _, id := range order[1:] {
		if sold[id] > sold[best] {
			best = id
		}
	}
	return &domain.BestSeller{
		ItemID:    best,
		Name:      s.items[best].Name,
		TotalSold: sold[best],
	}, nil
}

func (s *Store) DailySales(_ context.Context, ownerID string, dateRange *domain.DateRange) ([]domain.DailySales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := map[string]*domain.DailySales{}
	for _, tx := range s.transactions {
		if tx.OwnerID != ownerID {
			continue
		}
		if dateRange != nil && (tx.CreatedAt.Before(dateRange.From) || !tx.CreatedAt.Before(dateRange.To)) {
			continue
		}
		day := tx.CreatedAt.UTC().Format(time.DateOnly)
		row, ok := byDay[day]
		if !ok {
			row = &domain.DailySales{Date: day}
			byDay[day] = row
		}
		row.TotalSalesCents += tx.TotalCents
		row.TransactionCount++
		for _, line := range tx.Items {
			row.ItemsSold += line.Quantity
		}
	}

	out := make([]domain.DailySales, 0, len(byDay))
	for _, row := range byDay {
		out = append(out, *row)
	}
	slices.SortFunc(out, func(a, b domain.DailySales) int {
		return strings.Compare(b.Date, a.Date)
	})
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email == "" || user.PasswordHash == "" {
		return nil, domain.NewValidationError("email", "is required")
	}
	if _, exists := s.userIDByEmail[email]; exists {
		return nil, domain.ErrAlreadyExists
	}
	user.Email = email
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByID[user.ID] = user
	s.userIDByEmail[email] = user.ID
	created := user
	return &created, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, domain.ErrNotFound
	}
	user := s.usersByID[id]
	return &user, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &user, nil
}

func (s *Store) categoryNameLocked(id string) string {
	if id == "" {
		return ""
	}
	return s.categories[id].Name
}

func (s *Store) checkCategoryLocked(ownerID, categoryID string) error {
	if categoryID == "" {
		return nil
	}
	c, ok := s.categories[categoryID]
	if !ok || c.OwnerID != ownerID {
		return fmt.Errorf("category %s: %w", categoryID, domain.ErrNotFound)
	}
	return nil
}

func cloneTransaction(src *domain.Transaction) *domain.Transaction {
	if src == nil {
		return nil
	}
	dup := *src
	lines := make([]domain.LineEntry, len(src.Items))
	copy(lines, src.Items)
	dup.Items = lines
	return &dup
}

package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/xid"
)

const userColumns = "id, name, email, password_hash, role, created_at"

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r userRow) toUser() *domain.User {
	return &domain.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

// CreateUser stores emails lowercased so lookups are case-insensitive.
func (s *Store) CreateUser(ctx context.Context, user domain.User) (*domain.User, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Email == "" || user.PasswordHash == "" {
		return nil, domain.NewValidationError("email", "is required")
	}
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	sql, args, err := psql.Insert("users").
		Columns("id", "name", "email", "password_hash", "role", "created_at").
		Values(user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.CreatedAt).
		Suffix("RETURNING " + userColumns).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build create user: %w", err)
	}

	var row userRow
	if err := pgxscan.Get(ctx, s.q(ctx), &row, sql, args...); err != nil {
		return nil, mapError(err, "user", user.Email)
	}
	return row.toUser(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return s.getUser(ctx, squirrel.Eq{"email": email}, email)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, squirrel.Eq{"id": id}, id)
}

func (s *Store) getUser(ctx context.Context, where squirrel.Eq, key string) (*domain.User, error) {
	sql, args, err := psql.Select(userColumns).From("users").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get user: %w", err)
	}
	var row userRow
	if err := pgxscan.Get(ctx, s.q(ctx), &row, sql, args...); err != nil {
		return nil, mapError(err, "user", key)
	}
	return row.toUser(), nil
}

package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"stockroom/backend/internal/authz"
	"stockroom/backend/internal/config"
	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store"
	"stockroom/backend/internal/xid"
)

const minPasswordLength = 8

var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)

type AuthManager struct {
	secret   []byte
	issuer   string
	tokenTTL time.Duration
	users    store.UserStore
	now      func() time.Time
}

type stockroomClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(cfg config.AuthConfig, users store.UserStore) *AuthManager {
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.JWTIssuer,
		tokenTTL: ttl,
		users:    users,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Signup registers a staff user. Roles above staff are granted through
// CreateUser by an elevated actor.
func (a *AuthManager) Signup(ctx context.Context, req domain.SignupRequest) (domain.User, error) {
	return a.register(ctx, req.Name, req.Email, req.Password, domain.RoleStaff)
}

func (a *AuthManager) CreateUser(ctx context.Context, actor domain.Actor, req domain.UserCreateRequest) (domain.User, error) {
	if err := authz.Can(actor, authz.UserManage, authz.Resource{Kind: "user"}); err != nil {
		return domain.User{}, err
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = domain.RoleStaff
	}
	if role == domain.RoleAdmin && actor.Role != domain.RoleAdmin {
		return domain.User{}, fmt.Errorf("only admins may create admins: %w", domain.ErrForbidden)
	}
	return a.register(ctx, req.Name, req.Email, req.Password, role)
}

func (a *AuthManager) register(ctx context.Context, name, email, password, role string) (domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	var v domain.Validator
	v.Check(name != "", "name", "is required")
	_, mailErr := mail.ParseAddress(email)
	v.Check(email != "" && mailErr == nil, "email", "must be a valid address")
	v.Check(len(password) >= minPasswordLength, "password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	v.Check(role == domain.RoleAdmin || role == domain.RoleManager || role == domain.RoleStaff, "role", "must be admin, manager or staff")
	if err := v.Err(); err != nil {
		return domain.User{}, err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := a.users.CreateUser(ctx, domain.User{
		ID:           xid.New("user"),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    a.now(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.User{}, fmt.Errorf("email %s is already registered: %w", email, domain.ErrAlreadyExists)
		}
		return domain.User{}, err
	}
	return *created, nil
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	user, err := a.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.LoginResponse{}, errInvalidCredentials
		}
		return domain.LoginResponse{}, err
	}
	if !verifyPassword(user.PasswordHash, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	expiresAt := a.now().Add(a.tokenTTL)
	token, err := a.sign(user.ID, user.Role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("sign token: %w", err)
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        user.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &stockroomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwtlib.WithValidMethods([]string{"HS256"}),
		jwtlib.WithIssuer(a.issuer),
		jwtlib.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return domain.Actor{}, fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, fmt.Errorf("invalid token subject: %w", domain.ErrUnauthorized)
	}
	return domain.Actor{UserID: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(userID, role string, expiresAt time.Time) (string, error) {
	claims := stockroomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(a.now()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    a.issuer,
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || input == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

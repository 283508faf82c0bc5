package httpapi

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"stockroom/backend/internal/config"
	"stockroom/backend/internal/domain"
	"stockroom/backend/internal/store/memory"
)

const testSecret = "test-secret-key-that-is-at-least-32-chars"

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:      testSecret,
		JWTIssuer:      "stockroom-test",
		AccessTokenTTL: time.Hour,
	}
}

func TestSignupThenLoginIssuesStaffToken(t *testing.T) {
	auth := NewAuthManager(testAuthConfig(), memory.New())
	ctx := context.Background()

	user, err := auth.Signup(ctx, domain.SignupRequest{Name: "Rina", Email: "Rina@Example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Role != domain.RoleStaff || user.Email != "rina@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}

	resp, err := auth.Login(ctx, domain.LoginRequest{Email: "rina@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.UserID != user.ID || actor.Role != domain.RoleStaff {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestSignupValidation(t *testing.T) {
	auth := NewAuthManager(testAuthConfig(), memory.New())

	_, err := auth.Signup(context.Background(), domain.SignupRequest{Name: "", Email: "not-an-email", Password: "short"})
	var validationErr *domain.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(validationErr.Errors) != 3 {
		t.Fatalf("expected 3 field errors, got %+v", validationErr.Errors)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	auth := NewAuthManager(testAuthConfig(), memory.New())
	req := domain.SignupRequest{Name: "Rina", Email: "rina@example.com", Password: "correct-horse"}

	if _, err := auth.Signup(context.Background(), req); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	if _, err := auth.Signup(context.Background(), req); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestLoginRejectsWrongPasswordAndUnknownEmail(t *testing.T) {
	auth := NewAuthManager(testAuthConfig(), memory.New())
	ctx := context.Background()
	if _, err := auth.Signup(ctx, domain.SignupRequest{Name: "Rina", Email: "rina@example.com", Password: "correct-horse"}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := auth.Login(ctx, domain.LoginRequest{Email: "rina@example.com", Password: "wrong-horse"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for wrong password, got %v", err)
	}
	if _, err := auth.Login(ctx, domain.LoginRequest{Email: "nobody@example.com", Password: "correct-horse"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for unknown email, got %v", err)
	}
}

func TestParseTokenRejectsExpiredAndForeignTokens(t *testing.T) {
	auth := NewAuthManager(testAuthConfig(), memory.New())

	expired, err := auth.sign("user-1", domain.RoleAdmin, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}

	other := NewAuthManager(config.AuthConfig{JWTSecret: "another-secret-that-is-32-characters!!", JWTIssuer: "stockroom-test"}, memory.New())
	foreign, err := other.sign("user-1", domain.RoleAdmin, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(foreign); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}

	wrongIssuer := NewAuthManager(config.AuthConfig{JWTSecret: testSecret, JWTIssuer: "elsewhere"}, memory.New())
	token, err := wrongIssuer.sign("user-1", domain.RoleAdmin, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ParseToken(token); err == nil {
		t.Fatalf("expected token from another issuer to be rejected")
	}
}

func TestParseTokenRejectsNoneAlgorithm(t *testing.T) {
	auth := NewAuthManager(testAuthConfig(), memory.New())

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, jwtlib.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "stockroom-test",
		ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := auth.ParseToken(signed); err == nil {
		t.Fatalf("expected alg=none token to be rejected")
	}
}

func TestCreateUserRequiresElevatedActor(t *testing.T) {
	auth := NewAuthManager(testAuthConfig(), memory.New())
	ctx := context.Background()
	req := domain.UserCreateRequest{Name: "Mira", Email: "mira@example.com", Password: "correct-horse", Role: domain.RoleManager}

	if _, err := auth.CreateUser(ctx, domain.Actor{UserID: "u-staff", Role: domain.RoleStaff}, req); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected staff to be forbidden, got %v", err)
	}

	adminReq := req
	adminReq.Role = domain.RoleAdmin
	adminReq.Email = "boss@example.com"
	if _, err := auth.CreateUser(ctx, domain.Actor{UserID: "u-mgr", Role: domain.RoleManager}, adminReq); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected manager creating admin to be forbidden, got %v", err)
	}

	user, err := auth.CreateUser(ctx, domain.Actor{UserID: "u-admin", Role: domain.RoleAdmin}, req)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Role != domain.RoleManager {
		t.Fatalf("expected manager role, got %q", user.Role)
	}
}

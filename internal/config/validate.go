package config

import (
	"fmt"
	"strings"
)

const minJWTSecretLength = 32

// Validate checks business rules on a loaded configuration. Load calls it.
func (c *Config) Validate() error {
	c.Auth.JWTSecret = strings.TrimSpace(c.Auth.JWTSecret)
	if len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters (got %d)", minJWTSecretLength, len(c.Auth.JWTSecret))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be positive")
	}
	if c.Auth.LoginMaxAttempts < 1 {
		return fmt.Errorf("auth.login_max_attempts must be >= 1 (got %d)", c.Auth.LoginMaxAttempts)
	}
	if c.Auth.LoginWindow <= 0 {
		return fmt.Errorf("auth.login_window must be positive")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range (got %d)", c.Server.Port)
	}
	if c.Database.Enabled() && c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) exceeds max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Inventory.DefaultLowStockThreshold < 0 {
		return fmt.Errorf("inventory.default_low_stock_threshold must be >= 0")
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}
	return nil
}

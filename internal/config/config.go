// Package config loads the service configuration from the environment.
// Components never read ambient state; cmd/api parses one Config value and
// injects the pieces each constructor needs.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the IAM service.
type Config struct {
	Addr    string `env:"IAM_ADDR" envDefault:":8080"`
	Version string `env:"IAM_VERSION" envDefault:"dev"`

	DatabaseDSN string `env:"IAM_PG_DSN"`

	// Path to the PEM-encoded RSA private key used for RS512 signing. The
	// public half is derived from it and exposed at /keys.
	PrivateKeyPath string `env:"IAM_RSA_PRIVATE_KEY" envDefault:"keys/rsa"`

	Issuer          string        `env:"IAM_ISSUER" envDefault:"strainforge-iam"`
	JWTValidity     time.Duration `env:"IAM_JWT_VALIDITY" envDefault:"10m"`
	RefreshValidity time.Duration `env:"IAM_REFRESH_VALIDITY" envDefault:"720h"`
	ResetValidity   time.Duration `env:"IAM_RESET_VALIDITY" envDefault:"1h"`

	// Feature toggles for the two authentication methods. A disabled method
	// answers 501 without touching the database.
	LocalAuthEnabled    bool `env:"IAM_FEAT_LOCAL_AUTH" envDefault:"true"`
	FirebaseAuthEnabled bool `env:"IAM_FEAT_FIREBASE_AUTH" envDefault:"false"`

	FirebaseProjectID string `env:"IAM_FIREBASE_PROJECT_ID"`

	// SMTP relay for password-reset mail. With no relay configured, reset
	// links are written to the service log instead.
	SMTPAddr string `env:"IAM_SMTP_ADDR"`
	MailFrom string `env:"IAM_MAIL_FROM" envDefault:"no-reply@strainforge.org"`
	ResetURL string `env:"IAM_RESET_URL" envDefault:"http://localhost:8080/password/reset"`

	AllowedOrigins []string `env:"IAM_ALLOWED_ORIGINS" envSeparator:","`

	RateLimitPerSecond int `env:"IAM_RATE_LIMIT_PER_SECOND" envDefault:"5"`
	RateLimitBurst     int `env:"IAM_RATE_LIMIT_BURST" envDefault:"10"`
}

// Load parses the configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

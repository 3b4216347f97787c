package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBDriver   string `env:"DB_DRIVER" envDefault:"postgres"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" envDefault:"checkin_db"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"./data/checkin.db"`

	// Local session tokens
	JWTSecret        string        `env:"JWT_SECRET"`
	JWTAccessExpiry  time.Duration `env:"JWT_ACCESS_EXPIRY" envDefault:"12h"`
	JWTRefreshExpiry time.Duration `env:"JWT_REFRESH_EXPIRY" envDefault:"168h"`

	// External identity provider (RS256). Disabled unless both are set.
	IdPDomain   string        `env:"IDP_DOMAIN"`
	IdPAudience string        `env:"IDP_AUDIENCE"`
	IdPJWKSTTL  time.Duration `env:"IDP_JWKS_TTL" envDefault:"1h"`

	// Shared HS256 secret the identity provider signs deletion webhooks with
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	// Admin
	AdminEmails    string `env:"ADMIN_EMAILS"`
	EnforceComment bool   `env:"ENFORCE_COMMENT" envDefault:"false"`

	// Events
	DefaultCheckinOpenMinutes int    `env:"DEFAULT_CHECKIN_OPEN_MINUTES" envDefault:"15"`
	DefaultTimezone           string `env:"DEFAULT_TIMEZONE" envDefault:"America/New_York"`

	// Server
	Port        string `env:"PORT" envDefault:"8080"`
	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"*"`
	RedisURL    string `env:"REDIS_URL"`
	SeedDemo    bool   `env:"SEED_DEMO" envDefault:"false"`

	// Observability
	SentryDSN string        `env:"SENTRY_DSN"`
	AppEnv    string        `env:"APP_ENV" envDefault:"development"`
	LogRetain time.Duration `env:"LOG_RETENTION" envDefault:"720h"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}
	switch cfg.DBDriver {
	case "postgres":
		if cfg.DBPassword == "" {
			return nil, errors.New("DB_PASSWORD environment variable is required")
		}
	case "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.DefaultCheckinOpenMinutes < 0 {
		return nil, errors.New("DEFAULT_CHECKIN_OPEN_MINUTES must not be negative")
	}

	return cfg, nil
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// IdentityProviderEnabled reports whether RS256 provider tokens are accepted.
func (c *Config) IdentityProviderEnabled() bool {
	return c.IdPDomain != "" && c.IdPAudience != ""
}

// AdminEmailList returns ADMIN_EMAILS split on commas, lower-cased.
func (c *Config) AdminEmailList() []string {
	return parseCSV(strings.ToLower(c.AdminEmails))
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

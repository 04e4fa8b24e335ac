package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Env      string `env:"CIRCLES_ENV,required"`
	HTTPAddr string `env:"CIRCLES_HTTP_ADDR" envDefault:":8080"`
	BaseURL  string `env:"CIRCLES_BASE_URL,required"`

	Store      string `env:"CIRCLES_STORE" envDefault:"postgres"`
	DBDSN      string `env:"CIRCLES_DB_DSN"`
	DBMaxConns int32  `env:"CIRCLES_DB_MAX_CONNS" envDefault:"25"`
	DBMinConns int32  `env:"CIRCLES_DB_MIN_CONNS" envDefault:"2"`
	SQLitePath string `env:"CIRCLES_SQLITE_PATH"`

	JWTSecret   string `env:"CIRCLES_JWT_SECRET,required"`
	SessionDays int    `env:"CIRCLES_SESSION_DAYS" envDefault:"7"`

	LogLevel string `env:"CIRCLES_LOG_LEVEL" envDefault:"info"`

	RevokedLinkRetentionDays int    `env:"CIRCLES_REVOKED_LINK_RETENTION_DAYS" envDefault:"30"`
	AuditRetentionDays       int    `env:"CIRCLES_AUDIT_RETENTION_DAYS" envDefault:"180"`
	RetentionSchedule        string `env:"CIRCLES_RETENTION_SCHEDULE"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Env = strings.TrimSpace(cfg.Env)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Store = strings.TrimSpace(cfg.Store)
	cfg.DBDSN = strings.TrimSpace(cfg.DBDSN)
	cfg.SQLitePath = strings.TrimSpace(cfg.SQLitePath)

	if cfg.RetentionSchedule == "" {
		cfg.RetentionSchedule = "0 3 * * *"
		if cfg.Env == "dev" {
			cfg.RetentionSchedule = "* * * * *"
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field requirements
func (c *Config) Validate() error {
	if c.Env != "dev" && c.Env != "prod" {
		return fmt.Errorf("CIRCLES_ENV must be one of: dev, prod (got: %s)", c.Env)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("CIRCLES_BASE_URL is required")
	}

	switch c.Store {
	case StorePostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("CIRCLES_DB_DSN is required when CIRCLES_STORE=postgres")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("CIRCLES_SQLITE_PATH is required when CIRCLES_STORE=sqlite")
		}
	case StoreMemory:
		if c.Env != "dev" {
			return fmt.Errorf("CIRCLES_STORE=memory is only allowed in dev")
		}
	default:
		return fmt.Errorf("CIRCLES_STORE must be one of: postgres, sqlite, memory (got: %s)", c.Store)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("CIRCLES_JWT_SECRET is required")
	}
	if c.Env == "prod" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("CIRCLES_JWT_SECRET must be at least 32 characters (currently %d)", len(c.JWTSecret))
	}
	if c.SessionDays <= 0 || c.SessionDays > 90 {
		return fmt.Errorf("CIRCLES_SESSION_DAYS must be between 1 and 90 (got: %d)", c.SessionDays)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("CIRCLES_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}

	if c.RevokedLinkRetentionDays <= 0 {
		return fmt.Errorf("CIRCLES_REVOKED_LINK_RETENTION_DAYS must be positive (got: %d)", c.RevokedLinkRetentionDays)
	}
	if c.AuditRetentionDays <= 0 {
		return fmt.Errorf("CIRCLES_AUDIT_RETENTION_DAYS must be positive (got: %d)", c.AuditRetentionDays)
	}

	return nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	return map[string]string{
		"CIRCLES_ENV":                         c.Env,
		"CIRCLES_HTTP_ADDR":                   c.HTTPAddr,
		"CIRCLES_BASE_URL":                    c.BaseURL,
		"CIRCLES_STORE":                       c.Store,
		"CIRCLES_DB_DSN":                      redactDSN(c.DBDSN),
		"CIRCLES_SQLITE_PATH":                 c.SQLitePath,
		"CIRCLES_JWT_SECRET":                  "[REDACTED]",
		"CIRCLES_SESSION_DAYS":                fmt.Sprintf("%d", c.SessionDays),
		"CIRCLES_LOG_LEVEL":                   c.LogLevel,
		"CIRCLES_REVOKED_LINK_RETENTION_DAYS": fmt.Sprintf("%d", c.RevokedLinkRetentionDays),
		"CIRCLES_AUDIT_RETENTION_DAYS":        fmt.Sprintf("%d", c.AuditRetentionDays),
		"CIRCLES_RETENTION_SCHEDULE":          c.RetentionSchedule,
	}
}

func redactDSN(dsn string) string {
	if start := strings.Index(dsn, "://"); start != -1 {
		if end := strings.Index(dsn[start+3:], "@"); end != -1 {
			return dsn[:start+3] + "[REDACTED]" + dsn[start+3+end:]
		}
	}
	return dsn
}

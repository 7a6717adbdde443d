// Package config loads circulation manager settings from CLI flags, the
// environment, a .env file and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Policy   PolicyConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string // sqlite3 or postgres
	DSN    string // file path for sqlite3, connection URL for postgres
}

// ServerConfig holds REST server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// AuthConfig holds API token and login throttling settings.
type AuthConfig struct {
	TokenSecret        string
	TokenTTL           time.Duration
	LoginRatePerMinute int
}

// PolicyConfig holds circulation policy defaults.
type PolicyConfig struct {
	LoanDays        int
	ReservationDays int
}

// Overrides carries values given on the command line. Empty fields fall
// through to the environment.
type Overrides struct {
	EnvFile  string
	Env      string
	LogLevel string
	DBDriver string
	DSN      string
	Port     string
}

// Load builds the configuration with precedence:
// 1. Command-line overrides.
// 2. Environment variables.
// 3. .env file.
// 4. Defaults.
func Load(o Overrides) (*Config, error) {
	envFile := o.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv.Load never overwrites variables already present in the process env.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(o.Env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(o.LogLevel, "LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Driver: getConfigValue(o.DBDriver, "DB_DRIVER", "sqlite3"),
			DSN:    getConfigValue(o.DSN, "DB_DSN", "library.db"),
		},
		Server: ServerConfig{
			Port:        getConfigValue(o.Port, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue("", "CORS_ORIGINS", "*")),
		},
		Auth: AuthConfig{
			TokenSecret:        getConfigValue("", "AUTH_TOKEN_SECRET", ""),
			LoginRatePerMinute: getIntConfigValue("AUTH_LOGIN_RATE_PER_MINUTE", 10),
		},
		Policy: PolicyConfig{
			LoanDays:        getIntConfigValue("LOAN_DAYS", 14),
			ReservationDays: getIntConfigValue("RESERVATION_DAYS", 14),
		},
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{"SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{"AUTH_TOKEN_TTL", "12h", &cfg.Auth.TokenTTL},
	}
	for _, d := range durations {
		raw := getConfigValue("", d.key, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.key, raw, err)
		}
		*d.dst = parsed
	}

	if cfg.Database.Driver == "sqlite3" {
		if err := cfg.expandDatabasePath(); err != nil {
			return nil, fmt.Errorf("invalid database path: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("invalid database driver: %q (must be sqlite3 or postgres)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("DB_DSN cannot be empty")
	}

	if c.Policy.LoanDays <= 0 {
		return fmt.Errorf("LOAN_DAYS must be positive, got %d", c.Policy.LoanDays)
	}
	if c.Policy.ReservationDays <= 0 {
		return fmt.Errorf("RESERVATION_DAYS must be positive, got %d", c.Policy.ReservationDays)
	}
	if c.Auth.LoginRatePerMinute <= 0 {
		return fmt.Errorf("AUTH_LOGIN_RATE_PER_MINUTE must be positive, got %d", c.Auth.LoginRatePerMinute)
	}
	if c.App.Environment == "production" && c.Auth.TokenSecret == "" {
		return errors.New("AUTH_TOKEN_SECRET is required in production")
	}
	return nil
}

// expandDatabasePath expands ~ and makes the sqlite path absolute.
func (c *Config) expandDatabasePath() error {
	path := c.Database.DSN
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	c.Database.DSN = filepath.Clean(abs)
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from the env var, or the default when unset
// or unparsable.
func getIntConfigValue(envKey string, defaultValue int) int {
	raw := os.Getenv(envKey)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

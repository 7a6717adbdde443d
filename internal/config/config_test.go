package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:      AppConfig{Environment: "development"},
		Logger:   LoggerConfig{Level: "info"},
		Database: DatabaseConfig{Driver: "sqlite3", DSN: "/tmp/library.db"},
		Auth:     AuthConfig{LoginRatePerMinute: 10},
		Policy:   PolicyConfig{LoanDays: 14, ReservationDays: 14},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown environment", func(c *Config) { c.App.Environment = "test" }},
		{"uppercase environment", func(c *Config) { c.App.Environment = "DEVELOPMENT" }},
		{"bad log level", func(c *Config) { c.Logger.Level = "verbose" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
		{"zero loan days", func(c *Config) { c.Policy.LoanDays = 0 }},
		{"negative reservation days", func(c *Config) { c.Policy.ReservationDays = -1 }},
		{"zero login rate", func(c *Config) { c.Auth.LoginRatePerMinute = 0 }},
		{"production without secret", func(c *Config) { c.App.Environment = "production" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"ENV", "LOG_LEVEL", "DB_DRIVER", "DB_DSN", "SERVER_PORT", "LOAN_DAYS", "AUTH_TOKEN_TTL"} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()

	cfg, err := Load(Overrides{EnvFile: filepath.Join(dir, "missing.env")})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.True(t, filepath.IsAbs(cfg.Database.DSN))
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 14, cfg.Policy.LoanDays)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "LOG_LEVEL=debug\nLOAN_DAYS=21\nSERVER_PORT=9000\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	// Process env wins over the file, flags win over both.
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOAN_DAYS", "")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("LOAN_DAYS")

	cfg, err := Load(Overrides{EnvFile: envFile, Port: "9200", DSN: filepath.Join(dir, "lib.db")})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 21, cfg.Policy.LoanDays)
	assert.Equal(t, "9200", cfg.Server.Port)
	assert.Equal(t, filepath.Join(dir, "lib.db"), cfg.Database.DSN)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("AUTH_TOKEN_TTL", "soon")
	_, err := Load(Overrides{EnvFile: filepath.Join(t.TempDir(), "none.env")})
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, splitList(" http://a , ,http://b"))
	assert.Nil(t, splitList(""))
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Auth.JWTSecret = "0123456789abcdef"
	return cfg
}

func TestDefault_NeedsOnlySecret(t *testing.T) {
	if err := Default().Validate(); err == nil {
		t.Fatal("expected default config without a JWT secret to be invalid")
	}
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected default config with a secret to be valid, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		errorString string
	}{
		{"port too low", func(c *Config) { c.Server.Port = 0 }, "invalid port 0: must be between 1 and 65535"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "invalid port 70000: must be between 1 and 65535"},
		{"empty db path", func(c *Config) { c.Server.DBPath = " " }, "database path cannot be empty"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "JWT secret must be at least 16 bytes"},
		{"bad ttl", func(c *Config) { c.Auth.TokenTTL = "forever" }, "invalid token TTL 'forever'"},
		{"negative ttl", func(c *Config) { c.Auth.TokenTTL = "-1h" }, "invalid token TTL '-1h': must be positive"},
		{"bad shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = "0s" }, "invalid shutdown timeout '0s'"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "invalid log level 'verbose'"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format 'xml'"},
		{"bad currency", func(c *Config) { c.Ledger.DefaultCurrency = "DOLLARS" }, "invalid default currency 'DOLLARS'"},
		{"bad locale", func(c *Config) { c.Ledger.Locale = "not a locale!" }, "invalid locale 'not a locale!'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorString) {
				t.Errorf("expected error containing %q, got %q", tt.errorString, err.Error())
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = -1
	cfg.Log.Level = "loud"
	cfg.Ledger.DefaultCurrency = "??"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error but got none")
	}
	for _, want := range []string{"invalid port -1", "invalid log level 'loud'", "invalid default currency '??'"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error containing %q, got %q", want, err.Error())
		}
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.TokenTTL = "90m"

	if got := cfg.TokenDuration(); got != 90*time.Minute {
		t.Errorf("expected 90m, got %v", got)
	}
	if got := cfg.ShutdownDuration(); got != 10*time.Second {
		t.Errorf("expected 10s, got %v", got)
	}
	if got := cfg.Addr(); got != ":8080" {
		t.Errorf("expected :8080, got %q", got)
	}
	if got := cfg.Language(); got != language.AmericanEnglish {
		t.Errorf("expected en-US, got %v", got)
	}
}

func TestLoad_Sources(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	configPath := filepath.Join(dir, "splitledger.toml")
	err := os.WriteFile(configPath, []byte(`
[server]
port = 9000
db_path = "/var/lib/splitledger.db"

[auth]
jwt_secret = "from-the-config-file"

[log]
level = "debug"

[ledger]
default_currency = "EUR"
locale = "de-DE"
`), 0o600)
	if err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	// .env overrides the file, the environment overrides .env
	err = os.WriteFile(filepath.Join(dir, ".env"), []byte("SPLITLEDGER_PORT=9100\nSPLITLEDGER_LOG_FORMAT=json\n"), 0o600)
	if err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("SPLITLEDGER_LOG_FORMAT") })
	t.Setenv("SPLITLEDGER_PORT", "9200")
	t.Setenv("SPLITLEDGER_METRICS_ENABLED", "false")
	t.Setenv("SPLITLEDGER_TOKEN_TTL", "1h")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9200 {
		t.Errorf("expected port from environment 9200, got %d", cfg.Server.Port)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected log format from .env, got %q", cfg.Log.Format)
	}
	if cfg.Log.Level != "debug" || cfg.Ledger.DefaultCurrency != "EUR" {
		t.Errorf("expected file values, got level %q currency %q", cfg.Log.Level, cfg.Ledger.DefaultCurrency)
	}
	if cfg.Server.DBPath != "/var/lib/splitledger.db" {
		t.Errorf("expected db path from file, got %q", cfg.Server.DBPath)
	}
	if cfg.Metrics.Enabled {
		t.Error("expected metrics disabled by environment")
	}
	if cfg.TokenDuration() != time.Hour {
		t.Errorf("expected 1h token TTL, got %v", cfg.TokenDuration())
	}
	if cfg.Server.ShutdownTimeout != "10s" {
		t.Errorf("expected default shutdown timeout, got %q", cfg.Server.ShutdownTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected loaded config to be valid, got %v", err)
	}
}

func TestLoad_NoFiles(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port, got %d", cfg.Server.Port)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for a missing config file")
	}

	t.Setenv("SPLITLEDGER_PORT", "eighty")
	t.Setenv("SPLITLEDGER_METRICS_ENABLED", "maybe")
	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for invalid environment")
	}
	for _, want := range []string{"SPLITLEDGER_PORT 'eighty'", "SPLITLEDGER_METRICS_ENABLED 'maybe'"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error containing %q, got %q", want, err.Error())
		}
	}
}

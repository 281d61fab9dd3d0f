// Package config loads server configuration from defaults, an optional TOML
// file, a .env file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"

	"github.com/mmynk/splitledger/internal/money"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "SPLITLEDGER_"

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Auth    AuthConfig    `toml:"auth"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
	Ledger  LedgerConfig  `toml:"ledger"`
}

type ServerConfig struct {
	Port   int    `toml:"port"`
	DBPath string `toml:"db_path"`
	// ShutdownTimeout bounds graceful shutdown, e.g. "10s".
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	// TokenTTL is a Go duration string, e.g. "24h".
	TokenTTL string `toml:"token_ttl"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

type LedgerConfig struct {
	DefaultCurrency string `toml:"default_currency"`
	// Locale formats display amounts, as a BCP 47 tag.
	Locale string `toml:"locale"`
}

// Default returns the configuration used when nothing overrides it.
// JWTSecret is empty and must be supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			DBPath:          "./data/splitledger.db",
			ShutdownTimeout: "10s",
		},
		Auth: AuthConfig{
			TokenTTL: "24h",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Ledger: LedgerConfig{
			DefaultCurrency: "USD",
			Locale:          "en-US",
		},
	}
}

// Load builds the configuration. path names an optional TOML file; an empty
// path skips it. A .env file in the working directory is read if present;
// variables already set in the environment win over it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []string

	setString := func(key string, dst *string) {
		if v, ok := lookupEnv(key); ok {
			*dst = v
		}
	}
	setString("DB_PATH", &c.Server.DBPath)
	setString("JWT_SECRET", &c.Auth.JWTSecret)
	setString("TOKEN_TTL", &c.Auth.TokenTTL)
	setString("LOG_LEVEL", &c.Log.Level)
	setString("LOG_FORMAT", &c.Log.Format)
	setString("DEFAULT_CURRENCY", &c.Ledger.DefaultCurrency)
	setString("LOCALE", &c.Ledger.Locale)
	setString("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	if v, ok := lookupEnv("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %sPORT '%s': must be a number", EnvPrefix, v))
		} else {
			c.Server.Port = port
		}
	}
	if v, ok := lookupEnv("METRICS_ENABLED"); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid %sMETRICS_ENABLED '%s': must be true or false", EnvPrefix, v))
		} else {
			c.Metrics.Enabled = enabled
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration environment is invalid:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Server.Port))
	}
	if strings.TrimSpace(c.Server.DBPath) == "" {
		errs = append(errs, "database path cannot be empty")
	}
	if _, err := parsePositiveDuration(c.Server.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Sprintf("invalid shutdown timeout '%s': %v", c.Server.ShutdownTimeout, err))
	}

	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, "JWT secret must be at least 16 bytes")
	}
	if _, err := parsePositiveDuration(c.Auth.TokenTTL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid token TTL '%s': %v", c.Auth.TokenTTL, err))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be one of [text json]", c.Log.Format))
	}

	if !money.ValidCurrency(strings.ToUpper(c.Ledger.DefaultCurrency)) {
		errs = append(errs, fmt.Sprintf("invalid default currency '%s': must be a 3-letter ISO 4217 code", c.Ledger.DefaultCurrency))
	}

	if _, err := language.Parse(c.Ledger.Locale); err != nil {
		errs = append(errs, fmt.Sprintf("invalid locale '%s': %v", c.Ledger.Locale, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// TokenDuration returns the parsed token TTL. Call Validate first.
func (c *Config) TokenDuration() time.Duration {
	d, _ := parsePositiveDuration(c.Auth.TokenTTL)
	return d
}

// ShutdownDuration returns the parsed shutdown timeout. Call Validate first.
func (c *Config) ShutdownDuration() time.Duration {
	d, _ := parsePositiveDuration(c.Server.ShutdownTimeout)
	return d
}

// Language returns the parsed display locale, falling back to American English.
func (c *Config) Language() language.Tag {
	tag, err := language.Parse(c.Ledger.Locale)
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func parsePositiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}

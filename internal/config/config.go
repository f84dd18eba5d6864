// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Payment platform credentials and endpoints
	PaymentClientID     string `env:"PAYMENT_CLIENT_ID,required"`
	PaymentClientSecret string `env:"PAYMENT_CLIENT_SECRET,required"`
	PaymentAuthURL      string `env:"PAYMENT_AUTH_URL" envDefault:"https://api-sec-vlc.hotmart.com/security/oauth/token"`
	PaymentAPIURL       string `env:"PAYMENT_API_URL" envDefault:"https://developers.hotmart.com/payments/api/v1"`

	// Ad platform server events API
	AdsPixelID       string `env:"ADS_PIXEL_ID,required"`
	AdsAccessToken   string `env:"ADS_ACCESS_TOKEN,required"`
	AdsAPIURL        string `env:"ADS_API_URL" envDefault:"https://graph.facebook.com/v21.0"`
	AdsTestEventCode string `env:"ADS_TEST_EVENT_CODE" envDefault:""`

	// Sales polling
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"5m"`
	PollWindow     time.Duration `env:"POLL_WINDOW" envDefault:"4h"`
	PollMaxResults int           `env:"POLL_MAX_RESULTS" envDefault:"100"`

	// Matching
	MatchWindow    time.Duration `env:"MATCH_WINDOW" envDefault:"60m"`
	MatchThreshold int           `env:"MATCH_THRESHOLD" envDefault:"60"`

	// Dedup and retention
	DedupTTL            time.Duration `env:"DEDUP_TTL" envDefault:"48h"`
	TelemetryRetention  time.Duration `env:"TELEMETRY_RETENTION" envDefault:"24h"`
	ForwardLogRetention time.Duration `env:"FORWARD_LOG_RETENTION" envDefault:"168h"`

	// Argon2id hash of the admin API key. Empty disables the admin endpoints.
	AdminAPIKeyHash string `env:"ADMIN_API_KEY_HASH" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MatchWindowMinutes returns the match window as whole minutes, as used by
// the scoring engine's hard time gate.
func (c *Config) MatchWindowMinutes() int {
	return int(c.MatchWindow / time.Minute)
}

func (c *Config) validate() error {
	if c.MatchThreshold < 1 || c.MatchThreshold > 100 {
		return fmt.Errorf("MATCH_THRESHOLD must be between 1 and 100, got %d", c.MatchThreshold)
	}
	if c.MatchWindow < time.Minute {
		return fmt.Errorf("MATCH_WINDOW must be at least 1m, got %s", c.MatchWindow)
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("POLL_INTERVAL must be at least 1s, got %s", c.PollInterval)
	}
	return nil
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port int `yaml:"port"`
	// JWTSecret signs and verifies admin API tokens (HS256).
	JWTSecret string `yaml:"jwt_secret"`
	// WebhookSecret verifies the gateway's webhook HMAC signature.
	WebhookSecret string `yaml:"webhook_secret"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type GatewayConfig struct {
	BaseURL     string `yaml:"base_url"`
	ShortCode   string `yaml:"short_code"`
	Passkey     string `yaml:"passkey"`
	CallbackURL string `yaml:"callback_url"`
	// MaxRetries bounds the retryable HTTP client talking to the gateway.
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
}

type BillingConfig struct {
	// Currency is the platform's settlement currency (ISO 4217).
	Currency string `yaml:"currency"`
	// HeuristicWindow bounds the tenant+amount correlation fallback.
	HeuristicWindow time.Duration `yaml:"heuristic_window"`
	// PollInterval / PollStaleAfter drive the status-poll job.
	PollInterval   time.Duration `yaml:"poll_interval"`
	PollStaleAfter time.Duration `yaml:"poll_stale_after"`
	// PollMaxAttempts caps per-transaction retries before a permanent
	// job failure is recorded.
	PollMaxAttempts int           `yaml:"poll_max_attempts"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	ExpiryInterval  time.Duration `yaml:"expiry_interval"`
	Workers         int           `yaml:"workers"`
}

type NotifyConfig struct {
	// EventsURL receives domain events; empty disables outbound notification.
	EventsURL string `yaml:"events_url"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Billing  BillingConfig  `yaml:"billing"`
	Notify   NotifyConfig   `yaml:"notify"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Gateway.MaxRetries <= 0 {
		cfg.Gateway.MaxRetries = 3
	}
	if cfg.Gateway.Timeout <= 0 {
		cfg.Gateway.Timeout = 15 * time.Second
	}
	if cfg.Billing.Currency == "" {
		cfg.Billing.Currency = "KES"
	}
	if cfg.Billing.HeuristicWindow <= 0 {
		cfg.Billing.HeuristicWindow = time.Hour
	}
	if cfg.Billing.PollInterval <= 0 {
		cfg.Billing.PollInterval = time.Minute
	}
	if cfg.Billing.PollStaleAfter <= 0 {
		cfg.Billing.PollStaleAfter = 10 * time.Minute
	}
	if cfg.Billing.PollMaxAttempts <= 0 {
		cfg.Billing.PollMaxAttempts = 5
	}
	if cfg.Billing.SweepInterval <= 0 {
		cfg.Billing.SweepInterval = 15 * time.Minute
	}
	if cfg.Billing.ExpiryInterval <= 0 {
		cfg.Billing.ExpiryInterval = time.Hour
	}
	if cfg.Billing.Workers <= 0 {
		cfg.Billing.Workers = 8
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.HTTP.JWTSecret == "" && !dev {
		return nil, errors.New("http.jwt_secret is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

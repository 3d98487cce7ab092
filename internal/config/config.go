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

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type TossConfig struct {
	SecretKey string `yaml:"secret_key"`
	// WebhookSecret empty means signature checking is disabled; a deployment
	// must explicitly opt out by leaving it unset.
	WebhookSecret string        `yaml:"webhook_secret"`
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type I18nConfig struct {
	Lang string `yaml:"lang"` // notification language, e.g. "ko" or "en"
}

type SecurityConfig struct {
	// EncryptionKey protects billing keys at rest. Must be 16, 24, or 32
	// bytes.
	EncryptionKey string `yaml:"encryption_key"`
}

type SchedulerConfig struct {
	RenewalInterval time.Duration `yaml:"renewal_interval"`
	RenewalHorizon  time.Duration `yaml:"renewal_horizon"`
	ExpiryInterval  time.Duration `yaml:"expiry_interval"`
	LockTTL         time.Duration `yaml:"lock_ttl"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Toss      TossConfig      `yaml:"toss"`
	Auth      AuthConfig      `yaml:"auth"`
	Security  SecurityConfig  `yaml:"security"`
	I18n      I18nConfig      `yaml:"i18n"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

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
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Toss.BaseURL == "" {
		cfg.Toss.BaseURL = "https://api.tosspayments.com"
	}
	if cfg.Toss.Timeout <= 0 {
		cfg.Toss.Timeout = 10 * time.Second
	}
	if cfg.I18n.Lang == "" {
		cfg.I18n.Lang = "ko"
	}
	if cfg.Scheduler.RenewalInterval <= 0 {
		cfg.Scheduler.RenewalInterval = time.Hour
	}
	if cfg.Scheduler.RenewalHorizon <= 0 {
		cfg.Scheduler.RenewalHorizon = 24 * time.Hour
	}
	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = time.Hour
	}
	if cfg.Scheduler.LockTTL <= 0 {
		cfg.Scheduler.LockTTL = 30 * time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Toss.SecretKey == "" {
		return nil, errors.New("toss.secret_key is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

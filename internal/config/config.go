package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/pcoptimize/pcoptimize-backend/pkg/config"
	"github.com/pcoptimize/pcoptimize-backend/pkg/logger"
)

const serviceName = "pcoptimize"

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Log      logger.Config  `yaml:"log"`
	Mail     MailConfig     `yaml:"mail"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Provider ProviderConfig `yaml:"provider"`
}

type MailConfig struct {
	SMTPHost   string `yaml:"smtp_host"`
	SMTPPort   int    `yaml:"smtp_port"`
	SMTPUser   string `yaml:"smtp_user"`
	SMTPKey    string `yaml:"smtp_key"`
	FromName   string `yaml:"from_name"`
	FromEmail  string `yaml:"from_email"`
	BookingURL string `yaml:"booking_url"`
}

// RedisConfig configures the domain event publisher.
type RedisConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type ProviderConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LoadConfig reads configs/{APP_ENV}/pcoptimize.yaml (or CONFIG_PATH)
// with PCOPTIMIZE_* environment overrides.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := pkgconfig.Load(serviceName, &cfg, pkgconfig.Options{Defaults: defaults()}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values no default can repair.
func (c *Config) Validate() error {
	switch c.Service.PayPal.Environment {
	case PayPalSandbox, PayPalProduction:
	default:
		return fmt.Errorf("service.paypal.environment must be %q or %q, got %q",
			PayPalSandbox, PayPalProduction, c.Service.PayPal.Environment)
	}
	if c.Service.BaseURL == "" {
		return fmt.Errorf("service.base_url is required")
	}
	return nil
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"service.name":                   serviceName,
		"service.environment":            "development",
		"service.base_url":               "http://localhost:3000",
		"service.client_url":             "http://localhost:3000",
		"service.require_booking_secret": false,
		"service.booking_webhook_secret": "",
		"service.stripe.secret_key":      "",
		"service.stripe.webhook_secret":  "",
		"service.paypal.client_id":       "",
		"service.paypal.client_secret":   "",
		"service.paypal.webhook_id":      "",
		"service.paypal.environment":     PayPalSandbox,
		"service.paypal.base_url":        "",

		"database.host":               "localhost",
		"database.port":               5432,
		"database.name":               "pcoptimize",
		"database.user":               "postgres",
		"database.password":           "",
		"database.sslmode":            "disable",
		"database.max_open_conns":     20,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  30 * time.Minute,
		"database.conn_max_idle_time": 5 * time.Minute,
		"database.query_timeout":      5 * time.Second,
		"database.auto_migrate":       true,

		"server.http.host":  "0.0.0.0",
		"server.http.port":  8080,
		"server.grpc.host":  "0.0.0.0",
		"server.grpc.port":  9090,
		"server.rate_limit": 5.0,
		"server.rate_burst": 10,

		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.file_path":   "",
		"log.development": false,

		"mail.smtp_host":   "smtp-relay.brevo.com",
		"mail.smtp_port":   587,
		"mail.smtp_user":   "",
		"mail.smtp_key":    "",
		"mail.from_name":   "PCOptimize",
		"mail.from_email":  "no-reply@pcoptimize.com",
		"mail.booking_url": "https://cal.com/pcoptimize",

		"redis.enabled":        false,
		"redis.addr":           "localhost:6379",
		"redis.password":       "",
		"redis.db":             0,
		"redis.channel_prefix": "pcoptimize.",

		"auth.jwt_secret": "",

		"provider.timeout": 15 * time.Second,
	}
}

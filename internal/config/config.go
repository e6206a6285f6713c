// Package config содержит логику чтения конфигурации SMM-панели.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации SMM-панели.
type Config struct {
	RunAddress         string        `env:"RUN_ADDRESS"`
	DatabaseURI        string        `env:"DATABASE_URI"`
	JWTSecret          string        `env:"JWT_SECRET"`
	WebhookSecret      string        `env:"WEBHOOK_SECRET"`
	CheckoutBaseURL    string        `env:"CHECKOUT_BASE_URL"`
	MinDepositCents    int64         `env:"MIN_DEPOSIT_CENTS" envDefault:"500"`
	ProviderTimeout    time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	StatusPollInterval time.Duration `env:"STATUS_POLL_INTERVAL" envDefault:"30s"`
}

// Parse считывает конфигурацию из .env-файла, переменных окружения и
// флагов командной строки. Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	// .env необязателен: в продакшене переменные приходят из окружения
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envJWTSecret := cfg.JWTSecret
	envWebhookSecret := cfg.WebhookSecret
	envCheckoutBaseURL := cfg.CheckoutBaseURL

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.JWTSecret, "j", "", "JWT signing secret")
	flag.StringVar(&cfg.WebhookSecret, "w", "", "payment webhook signing secret")
	flag.StringVar(&cfg.CheckoutBaseURL, "c", "", "hosted checkout base URL")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envJWTSecret != "" {
		cfg.JWTSecret = envJWTSecret
	}
	if envWebhookSecret != "" {
		cfg.WebhookSecret = envWebhookSecret
	}
	if envCheckoutBaseURL != "" {
		cfg.CheckoutBaseURL = envCheckoutBaseURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}

	return cfg, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	DatabaseURL   string
	TelegramToken string

	// Channel identity (chat id) receiving operator escalations.
	OperatorChatID int64

	// Shared secrets for webhook signature verification. A missing secret
	// is a fatal misconfiguration surfaced as 500 by the handlers.
	MessagingWebhookSecret   string
	PaymentWebhookSecret     string
	FulfillmentWebhookSecret string

	HTTPAddr string

	ResponderURL     string
	ResponderTimeout time.Duration

	FulfillmentURL     string
	FulfillmentTimeout time.Duration

	QuoteTTL   time.Duration
	ContextTTL time.Duration

	CronSpecDeadlineSweep string
	CronSpecQuoteExpiry   string
	CronSpecContextPrune  string

	LogLevel    string
	Environment string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables; a missing
	// .env file is fine.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	if operatorIDStr := os.Getenv("OPERATOR_CHAT_ID"); operatorIDStr != "" {
		cfg.OperatorChatID, err = strconv.ParseInt(operatorIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid OPERATOR_CHAT_ID: %w", err)
		}
	}

	cfg.MessagingWebhookSecret = os.Getenv("MESSAGING_WEBHOOK_SECRET")
	if cfg.MessagingWebhookSecret == "" {
		return nil, fmt.Errorf("MESSAGING_WEBHOOK_SECRET is not set")
	}
	cfg.PaymentWebhookSecret = os.Getenv("PAYMENT_WEBHOOK_SECRET")
	if cfg.PaymentWebhookSecret == "" {
		return nil, fmt.Errorf("PAYMENT_WEBHOOK_SECRET is not set")
	}
	cfg.FulfillmentWebhookSecret = os.Getenv("FULFILLMENT_WEBHOOK_SECRET")
	if cfg.FulfillmentWebhookSecret == "" {
		return nil, fmt.Errorf("FULFILLMENT_WEBHOOK_SECRET is not set")
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	// Optional; empty disables the generative fallback entirely.
	cfg.ResponderURL = os.Getenv("RESPONDER_URL")
	cfg.ResponderTimeout, err = durationFromSeconds("RESPONDER_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, err
	}

	cfg.FulfillmentURL = os.Getenv("FULFILLMENT_URL")
	if cfg.FulfillmentURL == "" {
		return nil, fmt.Errorf("FULFILLMENT_URL is not set")
	}
	cfg.FulfillmentTimeout, err = durationFromSeconds("FULFILLMENT_TIMEOUT_SECONDS", 15)
	if err != nil {
		return nil, err
	}

	quoteTTLHours, err := intFromEnv("QUOTE_TTL_HOURS", 72)
	if err != nil {
		return nil, err
	}
	cfg.QuoteTTL = time.Duration(quoteTTLHours) * time.Hour

	contextTTLMinutes, err := intFromEnv("CONTEXT_TTL_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	cfg.ContextTTL = time.Duration(contextTTLMinutes) * time.Minute

	cfg.CronSpecDeadlineSweep = os.Getenv("CRON_SPEC_DEADLINE_SWEEP")
	if cfg.CronSpecDeadlineSweep == "" {
		cfg.CronSpecDeadlineSweep = "0 9 * * *" // Default: 9 AM daily
	}
	cfg.CronSpecQuoteExpiry = os.Getenv("CRON_SPEC_QUOTE_EXPIRY")
	if cfg.CronSpecQuoteExpiry == "" {
		cfg.CronSpecQuoteExpiry = "30 * * * *" // Default: hourly
	}
	cfg.CronSpecContextPrune = os.Getenv("CRON_SPEC_CONTEXT_PRUNE")
	if cfg.CronSpecContextPrune == "" {
		cfg.CronSpecContextPrune = "*/10 * * * *" // Default: every 10 minutes
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	return cfg, nil
}

func intFromEnv(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return v, nil
}

func durationFromSeconds(name string, defSeconds int) (time.Duration, error) {
	v, err := intFromEnv(name, defSeconds)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Second, nil
}

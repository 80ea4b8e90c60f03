package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string
	HTTPAddr string

	// Database. An empty DatabaseURL switches the engine to local mode,
	// backed by SQLite at LocalDBPath.
	DatabaseURL string
	LocalDBPath string

	// Redis. Empty disables the distributed sweep lease.
	RedisURL string

	// RabbitMQ. Empty disables publishing; the outbox still fills.
	RabbitMQURL string

	// Sweep
	SweepToken    string
	SweepInterval time.Duration

	// Outbox
	OutboxPollInterval  time.Duration
	OutboxBatchSize     int
	OutboxMaxRetries    int
	OutboxRetentionDays int
	OutboxRelayEnabled  bool

	// Billing
	BankTransferIBAN    string
	BankTransferHolder  string
	PaymentInstructions string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPAddr: getEnv("HTTP_ADDR", "0.0.0.0:8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		LocalDBPath: getEnv("LOCAL_DB_PATH", "hostfolio.db"),

		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		SweepToken:    getEnv("SWEEP_TOKEN", ""),
		SweepInterval: getDurationEnv("SWEEP_INTERVAL", 5*time.Minute),

		OutboxPollInterval:  getDurationEnv("OUTBOX_POLL_INTERVAL", 100*time.Millisecond),
		OutboxBatchSize:     getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:    getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxRetentionDays: getIntEnv("OUTBOX_RETENTION_DAYS", 14),
		OutboxRelayEnabled:  getBoolEnv("OUTBOX_RELAY_ENABLED", true),

		BankTransferIBAN:   getEnv("BANK_TRANSFER_IBAN", ""),
		BankTransferHolder: getEnv("BANK_TRANSFER_HOLDER", ""),
	}
	cfg.PaymentInstructions = getEnv("PAYMENT_INSTRUCTIONS", defaultInstructions(cfg))

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// LocalMode reports whether the engine runs against SQLite instead of
// Postgres.
func (c *Config) LocalMode() bool {
	return c.DatabaseURL == ""
}

func defaultInstructions(c *Config) string {
	if c.BankTransferIBAN == "" {
		return "Transfer the final amount and quote the payment reference in the concept field."
	}
	instructions := "Transfer the final amount to " + c.BankTransferIBAN
	if c.BankTransferHolder != "" {
		instructions += " (" + c.BankTransferHolder + ")"
	}
	return instructions + " and quote the payment reference in the concept field."
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

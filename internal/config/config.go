package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	App struct {
		Name     string     `envconfig:"APP_NAME" default:"LaundryDesk"`
		Port     int        `envconfig:"PORT" default:"8080"`
		LogLevel slog.Level `envconfig:"LOG_LEVEL" default:"INFO"`
		// Storage is "postgres" or "memory". Memory starts with a demo
		// account and catalog and loses everything on exit.
		Storage string `envconfig:"STORAGE" default:"postgres"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"laundrydesk"`
		SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	// An empty address keeps drop-off locking in process.
	Redis struct {
		Addr     string `envconfig:"REDIS_ADDR"`
		Password string `envconfig:"REDIS_PASSWORD"`
		DB       int    `envconfig:"REDIS_DB" default:"0"`
	}

	// An empty URL disables domain events.
	NATS struct {
		URL string `envconfig:"NATS_URL"`
	}

	Auth struct {
		JWTSecret string `envconfig:"JWT_SECRET"`
	}

	RateLimit struct {
		Rate string `envconfig:"RATE_LIMIT" default:"120-M"`
	}

	Ledger struct {
		ReadyAfter       time.Duration `envconfig:"LEDGER_READY_AFTER" default:"24h"`
		LockTTL          time.Duration `envconfig:"LEDGER_LOCK_TTL" default:"15s"`
		CommitRetries    int           `envconfig:"LEDGER_COMMIT_RETRIES" default:"3"`
		OperationTimeout time.Duration `envconfig:"LEDGER_OPERATION_TIMEOUT" default:"10s"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.App.Storage != StoragePostgres && cfg.App.Storage != StorageMemory {
		return nil, fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, cfg.App.Storage)
	}

	if cfg.Ledger.CommitRetries < 0 {
		return nil, fmt.Errorf("LEDGER_COMMIT_RETRIES must not be negative, got %d", cfg.Ledger.CommitRetries)
	}

	return &cfg, nil
}

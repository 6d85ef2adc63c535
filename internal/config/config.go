package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env            string `env:"APP_ENV" envDefault:"development"`
	ListenAddr     string `env:"LISTEN_ADDR" envDefault:":8080"`
	MaxConnections int    `env:"MAX_CONNECTIONS" envDefault:"256"`

	StoreDriver  string        `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL  string        `env:"DATABASE_URL"`
	SQLitePath   string        `env:"SQLITE_PATH" envDefault:"dealscore.db"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	RecalcWorkers   int `env:"RECALC_WORKERS" envDefault:"4"`
	RecalcQueueSize int `env:"RECALC_QUEUE_SIZE" envDefault:"1024"`

	KafkaBrokers         []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaGroup           string   `env:"KAFKA_GROUP" envDefault:"dealscore"`
	KafkaEngagementTopic string   `env:"KAFKA_ENGAGEMENT_TOPIC" envDefault:"notifications.engagement"`
}

// Load reads an optional .env file, then the environment. A missing
// DATABASE_URL on the postgres driver is reported but not fatal, so
// callers can decide; anything unparsable or invalid is.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	if cfg.StoreDriver == DriverPostgres && cfg.DatabaseURL == "" {
		return cfg, ErrMissingDatabaseURL
	}
	return cfg, nil
}

// ErrMissingDatabaseURL is the non-fatal warning returned by Load.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL not set")

// KafkaEnabled reports whether the engagement consumer should run.
func (c Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func (c Config) validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.StoreDriver))
	}
	if c.RecalcWorkers < 1 {
		errs = append(errs, fmt.Errorf("RECALC_WORKERS must be at least 1"))
	}
	if c.RecalcQueueSize < 1 {
		errs = append(errs, fmt.Errorf("RECALC_QUEUE_SIZE must be at least 1"))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, fmt.Errorf("STORE_TIMEOUT must be positive"))
	}
	if c.MaxConnections < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONNECTIONS must be at least 1"))
	}
	return errors.Join(errs...)
}

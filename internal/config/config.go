// Package config loads server settings from the environment. A .env file in the
// working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Host      string `env:"HUDDLE_HOST"`
	Port      int    `env:"HUDDLE_PORT,default=8080"`
	Store     string `env:"HUDDLE_STORE,default=sqlite"`
	DBPath    string `env:"HUDDLE_DB_PATH,default=./data/huddle.db"`
	BadgerDir string `env:"HUDDLE_BADGER_PATH,default=./data/badger"`
	LogLevel  string `env:"HUDDLE_LOG_LEVEL,default=INFO"`

	HistoryLimit      int           `env:"HUDDLE_HISTORY_LIMIT,default=200"`
	SendBuffer        int           `env:"HUDDLE_SEND_BUFFER,default=256"`
	MessagesPerSecond float64       `env:"HUDDLE_MESSAGES_PER_SECOND,default=100"`
	MessageBurst      int           `env:"HUDDLE_MESSAGE_BURST,default=200"`
	StoreTimeout      time.Duration `env:"HUDDLE_STORE_TIMEOUT,default=5s"`

	RetentionInterval time.Duration `env:"HUDDLE_RETENTION_INTERVAL,default=10m"`
	// RetentionKeep is the number of newest messages kept per room. Zero disables retention.
	RetentionKeep int `env:"HUDDLE_RETENTION_KEEP,default=5000"`
}

// Load reads the configuration and validates it.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("HUDDLE_PORT out of range: %d", c.Port))
	}
	switch c.Store {
	case "sqlite":
		if c.DBPath == "" {
			errs = append(errs, errors.New("HUDDLE_DB_PATH is required for the sqlite store"))
		}
	case "badger":
		if c.BadgerDir == "" {
			errs = append(errs, errors.New("HUDDLE_BADGER_PATH is required for the badger store"))
		}
	default:
		errs = append(errs, fmt.Errorf("HUDDLE_STORE must be sqlite or badger, got %q", c.Store))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, errors.New("HUDDLE_HISTORY_LIMIT must be positive"))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, errors.New("HUDDLE_SEND_BUFFER must be positive"))
	}
	if c.MessagesPerSecond <= 0 || c.MessageBurst <= 0 {
		errs = append(errs, errors.New("rate limit must be positive"))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("HUDDLE_STORE_TIMEOUT must be positive"))
	}
	if c.RetentionKeep < 0 {
		errs = append(errs, errors.New("HUDDLE_RETENTION_KEEP must not be negative"))
	}
	if c.RetentionKeep > 0 && c.RetentionInterval <= 0 {
		errs = append(errs, errors.New("HUDDLE_RETENTION_INTERVAL must be positive when retention is enabled"))
	}
	return errors.Join(errs...)
}

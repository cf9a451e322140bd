package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken string `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`
	DatabasePath  string `env:"DATABASE_PATH" envDefault:"data.sqlite"`
	// MetricsAddr enables the Prometheus exporter when set, e.g. ":9090"
	MetricsAddr string `env:"METRICS_ADDR"`

	BanSweepInterval      time.Duration `env:"BAN_SWEEP_INTERVAL" envDefault:"30s"`
	TeaResetCheckInterval time.Duration `env:"TEA_RESET_CHECK_INTERVAL" envDefault:"1h"`
	BackgroundTimeout     time.Duration `env:"BACKGROUND_TIMEOUT" envDefault:"5s"`

	DuelOutcome      string `env:"DUEL_OUTCOME" envDefault:"ничего"`
	MarriagePageSize int    `env:"MARRIAGE_PAGE_SIZE" envDefault:"5"`
}

// Load reads the optional .env file and parses the environment
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("config: No .env file found")
		} else {
			slog.Warn("config: Failed to load .env file", "error", err)
		}
	} else {
		slog.Debug("config: Environment variables loaded from .env file")
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func (c Config) validate() error {
	if c.MarriagePageSize < 1 {
		return fmt.Errorf("MARRIAGE_PAGE_SIZE must be positive, got %d", c.MarriagePageSize)
	}
	if c.BanSweepInterval <= 0 || c.TeaResetCheckInterval <= 0 || c.BackgroundTimeout <= 0 {
		return errors.New("intervals and timeouts must be positive")
	}
	return nil
}

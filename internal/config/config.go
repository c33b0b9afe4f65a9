package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Core
	BotToken    string `env:"BOT_TOKEN,required"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Redis (claim locks, rate limiting)
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// Withdrawal policy
	MinWithdrawal  float64  `env:"MIN_WITHDRAWAL" envDefault:"500"`
	MaxWithdrawal  float64  `env:"MAX_WITHDRAWAL" envDefault:"100000"`
	PaymentMethods []string `env:"PAYMENT_METHODS" envSeparator:"," envDefault:"unitel,africell"`

	// Remote call timeouts
	SettlementTimeout time.Duration `env:"SETTLEMENT_TIMEOUT" envDefault:"10s"`
	StoreTimeout      time.Duration `env:"STORE_TIMEOUT" envDefault:"10s"`

	// Task catalog seed file (optional)
	TasksFile string `env:"TASKS_FILE"`

	// Ops HTTP server (metrics, health)
	Port int `env:"PORT" envDefault:"3000"`

	// Bot behavior
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`

	// Telegram logging
	LogTelegramChatID    int64 `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError        int   `env:"LOG_TOPIC_ERROR"`
	LogTopicTaskReward   int   `env:"LOG_TOPIC_TASK_REWARD"`
	LogTopicWithdrawal   int   `env:"LOG_TOPIC_WITHDRAWAL"`
	LogTopicRegistration int   `env:"LOG_TOPIC_REGISTRATION"`
}

// Load reads a local .env file when present, then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d (must be 1-65535)", c.Port)
	}
	if c.MinWithdrawal <= 0 {
		return fmt.Errorf("invalid MIN_WITHDRAWAL: %v (must be positive)", c.MinWithdrawal)
	}
	if c.MaxWithdrawal < c.MinWithdrawal {
		return fmt.Errorf("invalid MAX_WITHDRAWAL: %v (must be >= MIN_WITHDRAWAL %v)", c.MaxWithdrawal, c.MinWithdrawal)
	}
	if len(c.PaymentMethods) == 0 {
		return fmt.Errorf("PAYMENT_METHODS must list at least one provider")
	}
	if c.SettlementTimeout <= 0 || c.StoreTimeout <= 0 {
		return fmt.Errorf("SETTLEMENT_TIMEOUT and STORE_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

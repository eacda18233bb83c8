package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment   string `env:"ENV" envDefault:"development" validate:"oneof=development production test"`
	DBDSN         string `env:"DB_DSN" validate:"required"`
	LogLevel      string `env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080" validate:"required"`
	TelegramToken string `env:"TELEGRAM_TOKEN"` // пусто - уведомления только в лог

	TelegramBotUsername string        `env:"TELEGRAM_BOT_USERNAME"` // для ссылки https://t.me/<bot>?start=<token>
	TelegramLinkTTL     time.Duration `env:"TELEGRAM_LINK_TTL" envDefault:"15m" validate:"gt=0"`

	CancellationWindow  time.Duration `env:"CANCELLATION_WINDOW" envDefault:"24h" validate:"gt=0"`
	NoShowGracePeriod   time.Duration `env:"NO_SHOW_GRACE_PERIOD" envDefault:"30m" validate:"gte=0"`
	AttendanceEarlyMark time.Duration `env:"ATTENDANCE_EARLY_MARK" envDefault:"15m" validate:"gte=0"`
	ReminderLead        time.Duration `env:"REMINDER_LEAD" envDefault:"24h" validate:"gt=0"`

	SweepSchedule    string `env:"SWEEP_SCHEDULE" envDefault:"@every 5m" validate:"required"`
	ReminderSchedule string `env:"REMINDER_SCHEDULE" envDefault:"@every 10m" validate:"required"`
	OutboxSchedule   string `env:"OUTBOX_SCHEDULE" envDefault:"@every 15s" validate:"required"`
	SweepBatchSize   int    `env:"SWEEP_BATCH_SIZE" envDefault:"100" validate:"gt=0,lte=10000"`
	OutboxBatchSize  int    `env:"OUTBOX_BATCH_SIZE" envDefault:"100" validate:"gt=0,lte=10000"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s" validate:"gt=0"`
}

// Load читает .env (если есть), затем переменные окружения
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return Parse()
}

// Parse разбирает и проверяет конфигурацию из окружения
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

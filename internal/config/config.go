package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL       string        `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret         string        `env:"JWT_SECRET,required,notEmpty"`
	JWTExpiry         time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`
	CardEncryptionKey string        `env:"CARD_ENCRYPTION_KEY,required,notEmpty"`
	Port              int           `env:"PORT" envDefault:"8080"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv            string        `env:"APP_ENV" envDefault:"production"`

	TransferLockTimeout time.Duration `env:"TRANSFER_LOCK_TIMEOUT" envDefault:"5s"`

	ExpirySweepSchedule      string `env:"EXPIRY_SWEEP_SCHEDULE" envDefault:"5 0 * * *"`
	IdempotencyCleanSchedule string `env:"IDEMPOTENCY_CLEAN_SCHEDULE" envDefault:"@hourly"`

	SMTPAddr     string `env:"SMTP_ADDR"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"Bank Cards <no-reply@bankcards.local>"`

	MetricsEnabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.TransferLockTimeout <= 0 {
		return nil, fmt.Errorf("config.Load: TRANSFER_LOCK_TIMEOUT must be positive")
	}
	return &cfg, nil
}

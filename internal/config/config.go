package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL"`
	APIPort     int    `env:"API_PORT,default=8080"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	DrainSchedule   string        `env:"DRAIN_SCHEDULE,default=* * * * *"`
	DrainBatchSize  int           `env:"DRAIN_BATCH_SIZE,default=50"`
	SendConcurrency int           `env:"SEND_CONCURRENCY,default=5"`
	SendTimeout     time.Duration `env:"SEND_TIMEOUT,default=10s"`
	RateLimitPerSec int           `env:"RATE_LIMIT_PER_SEC,default=25"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	TelegramBotToken       string `env:"TELEGRAM_BOT_TOKEN"`
	LineChannelAccessToken string `env:"LINE_CHANNEL_ACCESS_TOKEN"`
	WhatsAppPhoneNumberID  string `env:"WHATSAPP_PHONE_NUMBER_ID"`
	WhatsAppAccessToken    string `env:"WHATSAPP_ACCESS_TOKEN"`
	ZaloAccessToken        string `env:"ZALO_ACCESS_TOKEN"`
	PushGatewayURL         string `env:"PUSH_GATEWAY_URL"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DrainBatchSize <= 0 {
		return fmt.Errorf("DRAIN_BATCH_SIZE must be positive, got %d", c.DrainBatchSize)
	}
	if c.SendConcurrency <= 0 {
		return fmt.Errorf("SEND_CONCURRENCY must be positive, got %d", c.SendConcurrency)
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("SEND_TIMEOUT must be positive, got %s", c.SendTimeout)
	}
	return nil
}

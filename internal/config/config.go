package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`

	// Public base URL used to build trip share links, e.g. https://go.wanderplan.app
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	OpsPasswordHash string `env:"OPS_PASSWORD_HASH"`

	GenerationBaseURL        string `env:"GENERATION_BASE_URL,required"`
	GenerationAPIKey         string `env:"GENERATION_API_KEY"`
	GenerationModel          string `env:"GENERATION_MODEL" envDefault:"gpt-4o-mini"`
	GenerationTimeoutSeconds int    `env:"GENERATION_TIMEOUT_SECONDS" envDefault:"30"`

	GatewayBaseURL    string `env:"GATEWAY_BASE_URL,required"`
	GatewayAccountSID string `env:"GATEWAY_ACCOUNT_SID,required"`
	GatewayAuthToken  string `env:"GATEWAY_AUTH_TOKEN,required"`
	GatewayFromNumber string `env:"GATEWAY_FROM_NUMBER,required"`

	// Country code prepended when normalizing numbers written with a
	// single national leading zero, without the "+".
	DefaultCountryCode string `env:"DEFAULT_COUNTRY_CODE" envDefault:"31"`
	DefaultTimezone    string `env:"DEFAULT_TIMEZONE" envDefault:"Europe/Amsterdam"`

	SchedulerIntervalSeconds int    `env:"SCHEDULER_INTERVAL_SECONDS" envDefault:"60"`
	SchedulerCron            string `env:"SCHEDULER_CRON" envDefault:""`
	MaxDeliveryAttempts      int    `env:"MAX_DELIVERY_ATTEMPTS" envDefault:"5"`

	WebRateLimitPerMin int    `env:"WEB_RATE_LIMIT_PER_MIN" envDefault:"30"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeoutSeconds) * time.Second
}

func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.SchedulerIntervalSeconds) * time.Second
}

func (c *Config) ShareLink(shareToken string) string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/t/" + shareToken
}

func (c *Config) Validate(isProduction bool) error {
	if c.OpsPasswordHash != "" {
		if !strings.HasPrefix(c.OpsPasswordHash, "$2a$") &&
			!strings.HasPrefix(c.OpsPasswordHash, "$2b$") &&
			!strings.HasPrefix(c.OpsPasswordHash, "$2y$") {
			return fmt.Errorf("OPS_PASSWORD_HASH must be a bcrypt hash (generate with: go run scripts/hash-password.go <password>)")
		}
	}

	if c.MaxDeliveryAttempts < 1 {
		return fmt.Errorf("MAX_DELIVERY_ATTEMPTS must be at least 1")
	}

	if isProduction {
		if c.OpsPasswordHash == "" {
			return fmt.Errorf("OPS_PASSWORD_HASH is required in production")
		}
		if c.GenerationAPIKey == "" {
			log.Warn().Msg("GENERATION_API_KEY is empty in production: generation calls will be rejected upstream")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

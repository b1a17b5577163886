// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the private chat service.
type Config struct {
	HTTPPort           int           `env:"HTTP_PORT,default=3000" validate:"min=1,max=65535"`
	RedisAddr          string        `env:"REDIS_ADDR,default=localhost:6379" validate:"required,hostname_port"`
	RedisPassword      string        `env:"REDIS_PASSWORD"`
	RedisDB            int           `env:"REDIS_DB,default=0" validate:"min=0"`
	RoomTTL            time.Duration `env:"ROOM_TTL,default=10m" validate:"min=1s"`
	RoomCapacity       int           `env:"ROOM_CAPACITY,default=2" validate:"min=1"`
	MaxSenderLength    int           `env:"MAX_SENDER_LENGTH,default=100" validate:"min=1"`
	MaxTextLength      int           `env:"MAX_TEXT_LENGTH,default=500" validate:"min=1"`
	SendRateLimit      int           `env:"SEND_RATE_LIMIT,default=20" validate:"min=1"`
	SendRateWindow     time.Duration `env:"SEND_RATE_WINDOW,default=10s" validate:"min=1ms"`
	ExpiryNotify       bool          `env:"EXPIRY_NOTIFICATIONS,default=true"`
	AnalyticsDBPath    string        `env:"ANALYTICS_DB_PATH,default=./private-chat-stats.db" validate:"required"`
	CORSAllowedOrigins string        `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:3000"`
	CookieSecure       bool          `env:"COOKIE_SECURE,default=false"`
	LogLevel           string        `env:"LOG_LEVEL,default=info" validate:"oneof=info error"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT,default=30s" validate:"min=1s"`
}

// Load reads an optional .env file, then the process environment, and validates the result.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ListenAddr returns the Fiber listen address.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

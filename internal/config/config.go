package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/wheelroom.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// RedisURL enables cross-instance fan-out of room events. Empty keeps
	// broadcasting in-process.
	RedisURL           string `env:"REDIS_URL"`
	RedisChannelPrefix string `env:"REDIS_CHANNEL_PREFIX" envDefault:"wheelroom:room:"`

	JWTSecret string        `env:"JWT_SECRET,required,notEmpty"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	SpinRate         float64       `env:"SPIN_RATE" envDefault:"1"`
	SpinBurst        int           `env:"SPIN_BURST" envDefault:"3"`
	SubscriberBuffer int           `env:"SUBSCRIBER_BUFFER" envDefault:"64"`
	ShutdownGrace    time.Duration `env:"SHUTDOWN_GRACE" envDefault:"15s"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.SpinRate <= 0 || cfg.SpinBurst <= 0 {
		return nil, fmt.Errorf("SPIN_RATE and SPIN_BURST must be positive")
	}
	return &cfg, nil
}

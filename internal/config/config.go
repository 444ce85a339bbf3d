package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port    string `envconfig:"PORT" default:"8080"`
	GinMode string `envconfig:"GIN_MODE" default:"release"`

	EnableDB    bool   `envconfig:"ENABLE_DB" default:"false"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	RedisURL      string `envconfig:"REDIS_URL"`
	EventsChannel string `envconfig:"EVENTS_CHANNEL" default:"medify.events"`

	GeminiAPIKey   string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel    string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	GeminiEndpoint string        `envconfig:"GEMINI_ENDPOINT" default:"https://generativelanguage.googleapis.com/v1beta"`
	AITimeout      time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	RateLimitRPS   float64  `envconfig:"RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int      `envconfig:"RATE_LIMIT_BURST" default:"10"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	StaticDir string `envconfig:"STATIC_DIR"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.EnableDB && strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required when ENABLE_DB=true")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.AITimeout <= 0 {
		return errors.New("AI_TIMEOUT must be positive")
	}
	return nil
}

package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/kitbuilder587/crawldock/internal/ratelimit"
	"github.com/kitbuilder587/crawldock/internal/search"
)

var (
	ErrMissingToken      = errors.New("TELEGRAM_BOT_TOKEN is required")
	ErrInvalidMaxResults = errors.New("MAX_RESULTS must be between 1 and 50")
	ErrInvalidTimeout    = errors.New("SEARCH_TIMEOUT must be positive")
	ErrInvalidRateLimit  = errors.New("rate limit must be positive")
)

type Config struct {
	Search    SearchConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Database  DatabaseConfig
	Telegram  TelegramConfig
}

type SearchConfig struct {
	GoogleAPIKey         string
	GoogleSearchEngineID string
	MaxResults           int
	Timeout              time.Duration
	UserAgent            string
}

type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
}

type LogConfig struct {
	Level string
	// json | console; пусто = console для debug, json для остального
	Format string
}

type MetricsConfig struct {
	// пустой адрес = http-сервер метрик не поднимаем
	Addr string
}

type DatabaseConfig struct {
	// пустой URL = журнал поисков выключен
	URL string
}

type TelegramConfig struct {
	Token string
	Debug bool
}

func Load() (*Config, error) {
	cfg := &Config{
		Search: SearchConfig{
			GoogleAPIKey:         os.Getenv("GOOGLE_API_KEY"),
			GoogleSearchEngineID: os.Getenv("GOOGLE_SEARCH_ENGINE_ID"),
			MaxResults:           getEnvIntOrDefault("MAX_RESULTS", search.DefaultMaxResults),
			Timeout:              time.Duration(getEnvIntOrDefault("SEARCH_TIMEOUT", int(search.DefaultTimeout/time.Millisecond))) * time.Millisecond,
			UserAgent:            getEnvOrDefault("USER_AGENT", search.DefaultUserAgent),
		},
		RateLimit: RateLimitConfig{
			MaxRequests: getEnvIntOrDefault("RATE_LIMIT_MAX_REQUESTS", ratelimit.DefaultMaxRequests),
			Window:      time.Duration(getEnvIntOrDefault("RATE_LIMIT_WINDOW_SEC", int(ratelimit.DefaultWindow/time.Second))) * time.Second,
		},
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: os.Getenv("LOG_FORMAT"),
		},
		Metrics: MetricsConfig{
			Addr: os.Getenv("METRICS_ADDR"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Telegram: TelegramConfig{
			Token: os.Getenv("TELEGRAM_BOT_TOKEN"),
			Debug: getEnvBoolOrDefault("TELEGRAM_DEBUG", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Search.MaxResults < search.MinMaxResults || c.Search.MaxResults > search.MaxMaxResults {
		return ErrInvalidMaxResults
	}
	if c.Search.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.Window <= 0 {
		return ErrInvalidRateLimit
	}
	return nil
}

// ValidateTelegram - токен нужен только команде telegram
func (c *Config) ValidateTelegram() error {
	if c.Telegram.Token == "" {
		return ErrMissingToken
	}
	return nil
}

func (c *Config) SearchSnapshot() search.Config {
	return search.Config{
		GoogleAPIKey:         c.Search.GoogleAPIKey,
		GoogleSearchEngineID: c.Search.GoogleSearchEngineID,
		MaxResults:           c.Search.MaxResults,
		Timeout:              c.Search.Timeout,
		UserAgent:            c.Search.UserAgent,
	}
}

func (c *Config) Limiter() ratelimit.Config {
	return ratelimit.Config{
		MaxRequests: c.RateLimit.MaxRequests,
		Window:      c.RateLimit.Window,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

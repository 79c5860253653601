package search

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultMaxResults = 10
	DefaultTimeout    = 10 * time.Second
	DefaultUserAgent  = "Mozilla/5.0 (compatible; CrowlDock/1.0)"
)

// Config - снапшот настроек, общий для всех движков.
// Движки получают копию при создании и дальше ее не меняют.
type Config struct {
	GoogleAPIKey         string
	GoogleSearchEngineID string
	MaxResults           int
	Timeout              time.Duration
	UserAgent            string
}

func (c Config) WithDefaults() Config {
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

func (c Config) GoogleConfigured() bool {
	return c.GoogleAPIKey != "" && c.GoogleSearchEngineID != ""
}

// ConfigUpdate - частичное обновление, nil = не трогать
type ConfigUpdate struct {
	GoogleAPIKey         *string        `json:"googleApiKey,omitempty"`
	GoogleSearchEngineID *string        `json:"googleSearchEngineId,omitempty"`
	MaxResults           *int           `json:"maxResults,omitempty"`
	Timeout              *time.Duration `json:"-"`
	UserAgent            *string        `json:"userAgent,omitempty"`
}

func (u ConfigUpdate) Validate() error {
	if u.MaxResults != nil && (*u.MaxResults < MinMaxResults || *u.MaxResults > MaxMaxResults) {
		return fmt.Errorf("%w: maxResults must be between %d and %d", ErrInvalidConfig, MinMaxResults, MaxMaxResults)
	}
	if u.Timeout != nil && *u.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Merge возвращает новый снапшот, исходный не меняется
func (c Config) Merge(u ConfigUpdate) Config {
	if u.GoogleAPIKey != nil {
		c.GoogleAPIKey = strings.TrimSpace(*u.GoogleAPIKey)
	}
	if u.GoogleSearchEngineID != nil {
		c.GoogleSearchEngineID = strings.TrimSpace(*u.GoogleSearchEngineID)
	}
	if u.MaxResults != nil {
		c.MaxResults = *u.MaxResults
	}
	if u.Timeout != nil {
		c.Timeout = *u.Timeout
	}
	if u.UserAgent != nil {
		c.UserAgent = *u.UserAgent
	}
	return c.WithDefaults()
}

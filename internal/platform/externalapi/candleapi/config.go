// Package candleapi provides the HTTP client for the upstream candle data service.
package candleapi

import "time"

const (
	// DefaultTimeout bounds a single upstream request.
	DefaultTimeout = 15 * time.Second
	// DefaultLimit is the number of candles requested when the caller passes no limit.
	DefaultLimit = 500
)

// Config holds configuration for the candle API client.
type Config struct {
	BaseURL      string        // e.g. "http://localhost:8080"
	Timeout      time.Duration // per-request timeout
	DefaultLimit int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = DefaultLimit
	}
	return c
}

// Package di provides dependency injection factories for creating application components.
package di

import (
	"chart_backend/internal/app/config"
	"chart_backend/internal/platform/externalapi/twelvedata"
	infrahttp "chart_backend/internal/platform/http"
	"chart_backend/internal/shared/ratelimiter"
)

// NewMarket creates a fully configured TwelveDataMarket with HTTP client.
func NewMarket(cfg config.TwelveDataConfig) *twelvedata.TwelveDataMarket {
	tdCfg := twelvedata.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	}
	httpClient := infrahttp.NewHTTPClient(tdCfg.Timeout)
	return twelvedata.NewTwelveDataMarket(tdCfg, httpClient)
}

// NewIngestRateLimiter creates the limiter for the Twelve Data free plan quota.
func NewIngestRateLimiter(cfg config.IngestConfig) *ratelimiter.RateLimiter {
	return ratelimiter.NewRateLimiter(cfg.RateLimit, cfg.RateInterval)
}

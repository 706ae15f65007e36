package di

import (
	"time"

	"chart_backend/internal/app/config"
	"chart_backend/internal/feature/candles/adapters"
	"chart_backend/internal/feature/candles/domain/entity"
	"chart_backend/internal/feature/candles/domain/mockgen"
	"chart_backend/internal/feature/candles/transport/ws"
	"chart_backend/internal/feature/candles/usecase"
	"chart_backend/internal/platform/externalapi/candleapi"
	infrahttp "chart_backend/internal/platform/http"
)

// NewGenerator creates the mock candle generator. A zero seed is derived from the clock.
func NewGenerator(cfg config.GeneratorConfig, clock mockgen.Clock) *mockgen.Generator {
	if clock == nil {
		clock = time.Now
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(clock().UnixNano())
	}
	p := mockgen.DefaultParams()
	p.Interval = cfg.Interval
	p.Stamp = mockgen.StampMode(cfg.Stamp)
	return mockgen.New(seed, clock, p)
}

// NewCandleSource returns the source chart sessions read from: the in-process
// mock series or the upstream /candles endpoint.
func NewCandleSource(cfg *config.Config) usecase.CandleSource {
	if cfg.Source.Mode == config.SourceUpstream {
		apiCfg := candleapi.Config{
			BaseURL:      cfg.Source.BaseURL,
			Timeout:      cfg.Source.Timeout,
			DefaultLimit: cfg.Source.DefaultLimit,
		}
		return candleapi.NewClient(apiCfg, infrahttp.NewHTTPClient(0))
	}
	gen := NewGenerator(cfg.Generator, nil)
	return adapters.NewMockSource(gen, cfg.Generator.SeedCount, cfg.Generator.MaxCandles)
}

// NewChartSocketConfig maps the session section onto the websocket handler settings.
// The window has already been validated by config.Validate.
func NewChartSocketConfig(cfg config.SessionConfig) ws.Config {
	w, err := entity.ParseWindow(cfg.Window)
	if err != nil {
		w = entity.WindowMonth
	}
	return ws.Config{
		WriteTimeout: cfg.WriteTimeout,
		PongWait:     cfg.PongWait,
		Session: usecase.SessionConfig{
			Window:       w,
			Live:         cfg.Live,
			FetchLimit:   cfg.FetchLimit,
			PollInterval: cfg.PollInterval,
			PollLimit:    cfg.PollLimit,
			MaxCandles:   cfg.MaxCandles,
		},
	}
}

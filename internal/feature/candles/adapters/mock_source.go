package adapters

import (
	"context"
	"slices"
	"sync"

	"chart_backend/internal/feature/candles/domain"
	"chart_backend/internal/feature/candles/domain/entity"
	"chart_backend/internal/feature/candles/domain/mockgen"
	"chart_backend/internal/feature/candles/domain/series"
	"chart_backend/internal/feature/candles/usecase"
)

const (
	// MockSeedCount はデモ系列の初期本数です。
	MockSeedCount = 80
	// MockMaxCandles はデモ系列が保持する最大本数です。
	MockMaxCandles = 150
)

// mockSource は上流APIの代わりに疑似ローソク足を返すCandleSourceです。
// 銘柄ごとに系列を保持し、呼び出しのたびに1本進めます。
type mockSource struct {
	mu         sync.Mutex
	gen        *mockgen.Generator
	seedCount  int
	maxCandles int
	series     map[string][]entity.Candle
}

var _ usecase.CandleSource = (*mockSource)(nil)

// NewMockSource はmockSourceを作成します。0以下の値は既定値になります。
func NewMockSource(gen *mockgen.Generator, seedCount, maxCandles int) *mockSource {
	if seedCount <= 0 {
		seedCount = MockSeedCount
	}
	if maxCandles <= 0 {
		maxCandles = MockMaxCandles
	}
	return &mockSource{
		gen:        gen,
		seedCount:  seedCount,
		maxCandles: maxCandles,
		series:     make(map[string][]entity.Candle),
	}
}

func (s *mockSource) FetchCandles(ctx context.Context, symbol string, window entity.Window, limit int) ([]entity.Candle, error) {
	if symbol == "" {
		return nil, domain.ErrSymbolRequired
	}
	if err := ctx.Err(); err != nil {
		return nil, &domain.TransportError{Op: "mock fetch", Err: err}
	}

	s.mu.Lock()
	seq, ok := s.series[symbol]
	if !ok {
		seq = s.gen.Initial(s.seedCount)
	} else if n := len(seq); n > 0 {
		seq = series.ApplyUpdate(seq, s.gen.Next(seq[n-1]))
	}
	seq = series.TrimFront(seq, s.maxCandles)
	s.series[symbol] = seq
	out := slices.Clone(seq)
	s.mu.Unlock()

	if window != "" {
		out = series.FilterRange(out, window)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

package usecase

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"chart_backend/internal/feature/candles/domain"
	"chart_backend/internal/feature/candles/domain/entity"
	"chart_backend/internal/feature/candles/domain/series"
	"chart_backend/internal/platform/metrics"
)

const (
	// DefaultInterval はフィードのローソク足の時間足ラベルです。
	DefaultInterval = "1min"
	// DefaultOutputSize はデフォルトのローソク足返却件数です。
	DefaultOutputSize = 500
	// MaxOutputSize はローソク足の最大返却件数です。
	MaxOutputSize = 5000
	// DefaultSeedCount は空の系列に最初に生成する本数です。
	DefaultSeedCount = 80
	// DefaultFeedSource は疑似データで更新する銘柄のフィード名です。
	DefaultFeedSource = "mock"
)

// CandleRepository はローソク足データの永続化レイヤーを抽象化します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type CandleRepository interface {
	// Find は新しい順に最大limit件を返します。limit <= 0 は全件です。
	Find(ctx context.Context, symbol, interval string, limit int) ([]entity.Candle, error)
	UpsertBatch(ctx context.Context, symbol, interval string, candles []entity.Candle) error
}

// SymbolLister はフィードごとのアクティブな銘柄コードを返します。
type SymbolLister interface {
	ListActiveCodes(ctx context.Context, source string) ([]string, error)
}

// CandleGenerator は疑似ローソク足の生成器です（mockgen.Generator）。
type CandleGenerator interface {
	Initial(count int) []entity.Candle
	NextAt(prev entity.Candle, t int64) entity.Candle
	Evolve(cur entity.Candle) entity.Candle
}

// FeedConfig はフィードの設定です。
type FeedConfig struct {
	Interval  string        // 保存時の時間足ラベル
	Step      time.Duration // 1本の長さ
	SeedCount int
	Source    string // Tickの対象とする銘柄のフィード名
	Clock     func() time.Time
}

func (c FeedConfig) withDefaults() FeedConfig {
	if c.Interval == "" {
		c.Interval = DefaultInterval
	}
	if c.Step <= 0 {
		c.Step = time.Minute
	}
	if c.SeedCount <= 0 {
		c.SeedCount = DefaultSeedCount
	}
	if c.Source == "" {
		c.Source = DefaultFeedSource
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// FeedUsecase は上流フィード（GET /candles）の読み出しと、疑似データによる系列の更新を扱います。
type FeedUsecase struct {
	candle  CandleRepository
	symbols SymbolLister
	gen     CandleGenerator
	cfg     FeedConfig
}

// NewFeedUsecase は新しいFeedUsecaseを作成します。
func NewFeedUsecase(candle CandleRepository, symbols SymbolLister, gen CandleGenerator, cfg FeedConfig) *FeedUsecase {
	return &FeedUsecase{candle: candle, symbols: symbols, gen: gen, cfg: cfg.withDefaults()}
}

// Interval は保存時の時間足ラベルを返します。
func (fu *FeedUsecase) Interval() string { return fu.cfg.Interval }

// GetCandles は最新limit件を昇順で返します。windowが指定されていれば範囲フィルタを適用します。
func (fu *FeedUsecase) GetCandles(ctx context.Context, symbol string, window entity.Window, interval string, limit int) ([]entity.Candle, error) {
	if symbol == "" {
		return nil, domain.ErrSymbolRequired
	}
	if interval == "" {
		interval = fu.cfg.Interval
	}
	if limit <= 0 || limit > MaxOutputSize {
		limit = DefaultOutputSize
	}

	cs, err := fu.candle.Find(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	// リポジトリは新しい順で返すため昇順に並べ替える
	cs = slices.Clone(cs)
	slices.Reverse(cs)
	cs = series.Canonicalize(cs)

	if window == "" {
		return cs, nil
	}
	return series.FilterRange(cs, window), nil
}

// Tick は全銘柄の系列を1ステップ進めます。
// 現在時刻のバケットに足がなければ新しい足を追加し、あれば確定前の足として更新します。
// 1銘柄の失敗で処理は止めず、ログに出力して次へ進みます。
func (fu *FeedUsecase) Tick(ctx context.Context) error {
	codes, err := fu.symbols.ListActiveCodes(ctx, fu.cfg.Source)
	if err != nil {
		return err
	}

	bucket := fu.cfg.Clock().UTC().Truncate(fu.cfg.Step).Unix()
	for _, code := range codes {
		if err := fu.tickOne(ctx, code, bucket); err != nil {
			metrics.FeedTicks.WithLabelValues("error").Inc()
			slog.Error("failed to advance feed", "symbol", code, "interval", fu.cfg.Interval, "error", err)
			continue
		}
		metrics.FeedTicks.WithLabelValues("ok").Inc()
	}
	return nil
}

func (fu *FeedUsecase) tickOne(ctx context.Context, symbol string, bucket int64) error {
	latest, err := fu.candle.Find(ctx, symbol, fu.cfg.Interval, 1)
	if err != nil {
		return err
	}

	if len(latest) == 0 {
		seed := fu.gen.Initial(fu.cfg.SeedCount)
		slog.Info("seeding feed series", "symbol", symbol, "count", len(seed))
		return fu.candle.UpsertBatch(ctx, symbol, fu.cfg.Interval, seed)
	}

	var next entity.Candle
	if last := latest[0]; last.Time >= bucket {
		next = fu.gen.Evolve(last)
	} else {
		next = fu.gen.NextAt(last, bucket)
	}
	return fu.candle.UpsertBatch(ctx, symbol, fu.cfg.Interval, []entity.Candle{next})
}

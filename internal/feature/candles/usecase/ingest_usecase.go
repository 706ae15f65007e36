package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"chart_backend/internal/feature/candles/domain"
	"chart_backend/internal/feature/candles/domain/entity"
	"chart_backend/internal/feature/candles/domain/series"
	"chart_backend/internal/shared/ratelimiter"
)

const (
	ingestOutputSize = 200 // 1回のリクエストで取得するデータ件数
	ingestMaxRetries = 3
)

// DefaultIngestIntervals はデータ取得の対象となる時間足のリストです。
var DefaultIngestIntervals = []string{"1day", "1week", "1month"}

// MarketRepository は株価データを取得するリポジトリのインターフェイスです。
// 外部 API の実装を抽象化します。
type MarketRepository interface {
	GetTimeSeries(ctx context.Context, symbol, interval string, outputsize int) ([]entity.Candle, error)
}

// IngestConfig は取り込み処理の設定です。
type IngestConfig struct {
	Intervals  []string
	OutputSize int
	MaxRetries uint64
	// NewBackOff はリトライ間隔の生成方法です。nil の場合は指数バックオフを使います。
	NewBackOff func() backoff.BackOff
}

// IngestUsecase は外部APIからデータを取得し、データベースに永続化するユースケースを定義します。
type IngestUsecase struct {
	market      MarketRepository
	candle      CandleRepository
	rateLimiter ratelimiter.RateLimiterInterface
	cfg         IngestConfig
}

// NewIngestUsecase は新しい IngestUsecase を作成します。
func NewIngestUsecase(market MarketRepository, candle CandleRepository, rateLimiter ratelimiter.RateLimiterInterface, cfg IngestConfig) *IngestUsecase {
	if len(cfg.Intervals) == 0 {
		cfg.Intervals = DefaultIngestIntervals
	}
	if cfg.OutputSize <= 0 {
		cfg.OutputSize = ingestOutputSize
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = ingestMaxRetries
	}
	if cfg.NewBackOff == nil {
		cfg.NewBackOff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}
	return &IngestUsecase{market: market, candle: candle, rateLimiter: rateLimiter, cfg: cfg}
}

// ingestOne は指定された銘柄と時間足の時系列データを外部リポジトリから取得し、
// データベースに一括で挿入（または更新）します。一時的な取得エラーはリトライします。
func (iu *IngestUsecase) ingestOne(ctx context.Context, symbol, interval string, outputsize int) error {
	var cs []entity.Candle
	op := func() error {
		if err := iu.rateLimiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		var err error
		cs, err = iu.market.GetTimeSeries(ctx, symbol, interval, outputsize)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(iu.cfg.NewBackOff(), iu.cfg.MaxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		slog.Warn("retrying time series fetch", "symbol", symbol, "interval", interval, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return err
	}

	return iu.candle.UpsertBatch(ctx, symbol, interval, series.Canonicalize(cs))
}

// IngestAll は指定された全銘柄の時系列データを設定された時間足で取得し、データベースに永続化します。
func (iu *IngestUsecase) IngestAll(ctx context.Context, symbols []string) error {
	for _, s := range symbols {
		for _, interval := range iu.cfg.Intervals {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := iu.ingestOne(ctx, s, interval, iu.cfg.OutputSize); err != nil {
				// 1つの銘柄でエラーが発生しても処理を止めずにログに出力し、次の処理を続ける
				slog.Error("failed to ingest data", "symbol", s, "interval", interval, "error", err)
				continue
			}
		}
	}
	return nil
}

// retryable はタイムアウト、429、5xx をリトライ対象とします。
func retryable(err error) bool {
	var te *domain.TransportError
	if !errors.As(err, &te) {
		return false
	}
	if te.Timeout || te.StatusCode == 0 {
		return true
	}
	return te.StatusCode == http.StatusTooManyRequests || te.StatusCode >= http.StatusInternalServerError
}

package ratelimiter

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterInterface は、API呼び出しなどの操作の頻度を制限するインターフェースです。
type RateLimiterInterface interface {
	Wait(ctx context.Context) error
}

// RateLimiterは、interval あたり limit 回まで操作を許可します。
type RateLimiter struct {
	limit    int
	interval time.Duration
	lim      *rate.Limiter
}

// NewRateLimiterは新しいRateLimiterのインスタンスを生成します。
// limit 回までは待機なしで通過し、その後は interval/limit ごとに1回補充されます。
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &RateLimiter{
		limit:    limit,
		interval: interval,
		lim:      rate.NewLimiter(rate.Every(interval/time.Duration(limit)), limit),
	}
}

// Waitはレートリミットの上限に達していれば、トークンが補充されるかctxが終了するまで待機します。
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl.lim.Allow() {
		return nil
	}
	slog.Info("rate limit reached, waiting", "limit", rl.limit, "interval", rl.interval)
	return rl.lim.Wait(ctx)
}

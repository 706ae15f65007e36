package usecase

import (
	"context"

	"chart_backend/internal/feature/candles/domain/entity"
)

// CandleSource はチャート表示用のローソク足を取得するソースです。
// 返すシーケンスは時刻の昇順で重複がないこと。windowが空の場合は範囲指定なしで取得します。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol string, window entity.Window, limit int) ([]entity.Candle, error)
}

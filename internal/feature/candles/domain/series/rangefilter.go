// Package series はローソク足シーケンスに対する純粋な操作（範囲フィルタ、更新マージ、表示スナップショット）を提供します。
// すべての関数は同期的で、I/Oを行いません。
package series

import (
	"fmt"
	"log/slog"
	"time"

	"chart_backend/internal/feature/candles/domain"
	"chart_backend/internal/feature/candles/domain/entity"
)

// FallbackLookback はカットオフ計算に失敗した場合に使う固定の遡り期間です。
const FallbackLookback = 365 * 24 * time.Hour

// Cutoff は最後のローソク足の時刻lastとWindowから、表示範囲の開始時刻（エポック秒）を計算します。
// 計算はすべてUTCの暦日で行い、現在時刻には依存しません。
// 未知のWindowはカットオフ0（全件表示）として扱わず ErrUnknownWindow を返します。
// FilterRange はこのエラーを FallbackLookback（直近365日）で復旧します。
func Cutoff(last int64, w entity.Window) (int64, error) {
	d := time.Unix(last, 0).UTC()
	y, m, day := d.Date()
	startOfDay := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)

	var c time.Time
	switch w {
	case entity.WindowAll:
		return 0, nil
	case entity.WindowDay:
		c = startOfDay
	case entity.WindowWeek:
		// 暦週ではなく固定の7日間
		c = startOfDay.Add(-7 * 24 * time.Hour)
	case entity.WindowMonth:
		c = time.Date(y, m-1, day, 0, 0, 0, 0, time.UTC)
	case entity.WindowQuarter:
		c = time.Date(y, m-3, day, 0, 0, 0, 0, time.UTC)
	case entity.WindowHalfYear:
		c = time.Date(y, m-6, day, 0, 0, 0, 0, time.UTC)
	case entity.WindowYTD:
		c = time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	case entity.WindowYear:
		c = time.Date(y-1, m, day, 0, 0, 0, 0, time.UTC)
	case entity.WindowFiveYear:
		c = time.Date(y-5, m, day, 0, 0, 0, 0, time.UTC)
	default:
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownWindow, w)
	}

	cut := c.Unix()
	if cut > last {
		return 0, fmt.Errorf("cutoff %d is after last candle %d", cut, last)
	}
	return cut, nil
}

// FallbackCutoff はlastからFallbackLookbackだけ遡った時刻を返します。
func FallbackCutoff(last int64) int64 {
	return last - int64(FallbackLookback/time.Second)
}

// FilterRange は昇順のシーケンスからWindowに含まれる末尾部分（Time >= cutoff）を新しいスライスで返します。
// カットオフの計算に失敗した場合はFallbackCutoffで復旧し、エラーは呼び出し元に伝播しません。
func FilterRange(seq []entity.Candle, w entity.Window) []entity.Candle {
	if len(seq) == 0 {
		return []entity.Candle{}
	}
	if w == entity.WindowAll {
		out := make([]entity.Candle, len(seq))
		copy(out, seq)
		return out
	}

	last := seq[len(seq)-1].Time
	cutoff, err := Cutoff(last, w)
	if err != nil {
		cutoff = FallbackCutoff(last)
		slog.Warn("range cutoff failed, using fallback lookback",
			"window", w, "lookback", FallbackLookback, "error", err)
	}

	out := make([]entity.Candle, 0, len(seq))
	for _, c := range seq {
		if c.Time >= cutoff {
			out = append(out, c)
		}
	}
	return out
}

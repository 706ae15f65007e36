package series

import (
	"github.com/shopspring/decimal"

	"chart_backend/internal/feature/candles/domain/entity"
)

var hundred = decimal.NewFromInt(100)

// RangeStats は表示範囲の最初と最後のローソク足、および終値の変化量です。
type RangeStats struct {
	Window    entity.Window
	First     *entity.Candle
	Last      *entity.Candle
	Change    decimal.Decimal // Last.Close - First.Close
	ChangePct decimal.Decimal // 小数点以下2桁に丸めた変化率（%）
}

// ComputeStats はフィルタ済みシーケンスからRangeStatsを計算します。
func ComputeStats(w entity.Window, filtered []entity.Candle) RangeStats {
	st := RangeStats{Window: w}
	if len(filtered) == 0 {
		return st
	}
	first, last := filtered[0], filtered[len(filtered)-1]
	st.First, st.Last = &first, &last

	from := decimal.NewFromFloat(first.Close)
	to := decimal.NewFromFloat(last.Close)
	st.Change = to.Sub(from)
	if !from.IsZero() {
		st.ChangePct = st.Change.Div(from).Mul(hundred).Round(2)
	}
	return st
}

// SameWindow は2つの統計がWindowと最初・最後の時刻で一致するかを返します。
// 終値だけの変化では再通知しません。
func (s RangeStats) SameWindow(o RangeStats) bool {
	return s.Window == o.Window && sameTime(s.First, o.First) && sameTime(s.Last, o.Last)
}

func sameTime(a, b *entity.Candle) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Time == b.Time
}

// Package entity はcandlesフィーチャーのドメインモデルを定義します。
package entity

import (
	"math"
	"time"
)

// MillisThreshold を超えるエポック値はミリ秒とみなして秒に変換します。
const MillisThreshold = 2_000_000_000

// Candle は一定期間のOHLCV（始値・高値・安値・終値・出来高）を表すローソク足です。
// Time は常にUTCのエポック秒です。
type Candle struct {
	Time   int64    `json:"time"`             // 期間開始のエポック秒（UTC）
	Open   float64  `json:"open"`             // 始値
	High   float64  `json:"high"`             // 高値
	Low    float64  `json:"low"`              // 安値
	Close  float64  `json:"close"`            // 終値
	Volume *float64 `json:"volume,omitempty"` // 出来高（任意）
}

// Timestamp はTimeをUTCのtime.Timeとして返します。
func (c Candle) Timestamp() time.Time {
	return time.Unix(c.Time, 0).UTC()
}

// VolumeOr は出来高が設定されていればその値を、なければdefを返します。
func (c Candle) VolumeOr(def float64) float64 {
	if c.Volume == nil {
		return def
	}
	return *c.Volume
}

// Float64 は出来高などの任意フィールド用にポインタを返すヘルパーです。
func Float64(v float64) *float64 {
	return &v
}

// EpochSeconds はエポック値を秒に正規化し、小数秒を切り捨てます。
// MillisThreshold を超える値はミリ秒として1000で割ります。
// 結果がint64に収まらない場合（NaNを含む）はfalseを返します。
func EpochSeconds(t float64) (int64, bool) {
	if t > MillisThreshold {
		t /= 1000
	}
	t = math.Floor(t)
	if math.IsNaN(t) || t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, false
	}
	return int64(t), true
}

// NormalizeEpoch は整数のエポック値を秒に正規化します。int64の入力は常に範囲内に収まります。
func NormalizeEpoch(t int64) int64 {
	s, _ := EpochSeconds(float64(t))
	return s
}

// IsCanonical はシーケンスが時刻の厳密な昇順（重複なし）であるかを判定します。
func IsCanonical(seq []Candle) bool {
	for i := 1; i < len(seq); i++ {
		if seq[i].Time <= seq[i-1].Time {
			return false
		}
	}
	return true
}

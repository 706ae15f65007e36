// Package mockgen はデモ用の疑似ローソク足をランダムウォークで生成します。
// 乱数シードと時計を注入できるため、テストでは決定的な系列を得られます。
package mockgen

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"chart_backend/internal/feature/candles/domain/entity"
)

// StampMode は後続ローソク足の時刻の決め方です。
type StampMode string

const (
	// StampFixed は直前の時刻にIntervalを加えます。
	StampFixed StampMode = "fixed"
	// StampClock は現在時刻を使い、直前の時刻以下にはなりません。
	StampClock StampMode = "clock"
)

// Clock は現在時刻を返す関数です。
type Clock func() time.Time

// Params は生成パラメータです。
type Params struct {
	StartPrice   float64       // 初期価格の下限
	StartSpread  float64       // 初期価格に加えるランダム幅
	MaxDelta     float64       // 1本あたりの終値変化の最大絶対値
	MaxWick      float64       // ヒゲの最大長
	MinPrice     float64       // 終値の下限
	MinVolume    float64       // 出来高の下限
	VolumeSpread float64       // 出来高に加えるランダム幅
	Interval     time.Duration // ローソク足の間隔
	Stamp        StampMode
}

// DefaultParams はデモ画面と同じ既定値を返します。
func DefaultParams() Params {
	return Params{
		StartPrice:   100,
		StartSpread:  20,
		MaxDelta:     1,
		MaxWick:      1.5,
		MinPrice:     1,
		MinVolume:    100,
		VolumeSpread: 900,
		Interval:     time.Minute,
		Stamp:        StampFixed,
	}
}

// Generator は疑似ローソク足の生成器です。複数のゴルーチンから安全に利用できます。
type Generator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	clock Clock
	p     Params
}

// New はシードと時計を指定してGeneratorを作成します。clockがnilの場合はtime.Nowを使います。
func New(seed uint64, clock Clock, p Params) *Generator {
	if clock == nil {
		clock = time.Now
	}
	if p.Interval <= 0 {
		p.Interval = time.Minute
	}
	if p.Stamp == "" {
		p.Stamp = StampFixed
	}
	return &Generator{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		clock: clock,
		p:     p,
	}
}

// Params は生成パラメータを返します。
func (g *Generator) Params() Params { return g.p }

// Initial はcount本の系列を生成します。時刻はIntervalごとに並び、最後の1本が現在時刻（Interval単位で切り捨て）です。
func (g *Generator) Initial(count int) []entity.Candle {
	if count <= 0 {
		return []entity.Candle{}
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	end := g.clock().UTC().Truncate(g.p.Interval)
	step := int64(g.p.Interval / time.Second)
	if step < 1 {
		step = 1
	}

	out := make([]entity.Candle, 0, count)
	prevClose := g.p.StartPrice + g.rng.Float64()*g.p.StartSpread
	for i := 0; i < count; i++ {
		t := end.Unix() - int64(count-1-i)*step
		c := g.step(prevClose, t)
		out = append(out, c)
		prevClose = c.Close
	}
	return out
}

// Next はprevに続く1本を生成します。時刻はStampModeに従います。
func (g *Generator) Next(prev entity.Candle) entity.Candle {
	g.mu.Lock()
	defer g.mu.Unlock()

	var t int64
	switch g.p.Stamp {
	case StampClock:
		t = g.clock().Unix()
		if t <= prev.Time {
			t = prev.Time + 1
		}
	default:
		step := int64(g.p.Interval / time.Second)
		if step < 1 {
			step = 1
		}
		t = prev.Time + step
	}
	return g.step(prev.Close, t)
}

// NextAt はprevに続く1本を時刻tで生成します。
func (g *Generator) NextAt(prev entity.Candle, t int64) entity.Candle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.step(prev.Close, t)
}

// Evolve は確定前のローソク足curを1ステップ進めます。時刻と始値は変えず、終値を動かして高値・安値を広げます。
func (g *Generator) Evolve(cur entity.Candle) entity.Candle {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.step(cur.Close, cur.Time)
	next.Open = cur.Open
	next.High = math.Max(cur.High, next.High)
	next.Low = math.Min(cur.Low, next.Low)
	if cur.Volume != nil {
		next.Volume = entity.Float64(*cur.Volume + *next.Volume)
	}
	return next
}

func (g *Generator) step(open float64, t int64) entity.Candle {
	change := (g.rng.Float64()*2 - 1) * g.p.MaxDelta
	closePrice := math.Max(g.p.MinPrice, open+change)
	high := math.Max(open, closePrice) + g.rng.Float64()*g.p.MaxWick
	low := math.Min(open, closePrice) - g.rng.Float64()*g.p.MaxWick
	volume := g.p.MinVolume + g.rng.Float64()*g.p.VolumeSpread

	return entity.Candle{
		Time:   t,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: entity.Float64(volume),
	}
}

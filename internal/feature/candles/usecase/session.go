package usecase

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"chart_backend/internal/feature/candles/domain"
	"chart_backend/internal/feature/candles/domain/entity"
	"chart_backend/internal/feature/candles/domain/series"
	"chart_backend/internal/platform/metrics"
)

const (
	// DefaultPollInterval はライブモードでのポーリング間隔です。
	DefaultPollInterval = 5 * time.Second
	// DefaultPollLimit はポーリング1回で取得する件数です。
	DefaultPollLimit = 2
	// DefaultFetchLimit は全件取得時の件数です。
	DefaultFetchLimit = 500

	eventBuffer = 64
)

// ErrSessionClosed はRunが終了したセッションへの操作で返されます。
var ErrSessionClosed = errors.New("chart session closed")

// SessionConfig はチャートセッションの設定です。
type SessionConfig struct {
	Symbol       string
	Window       entity.Window // 初期Window。空の場合は1M
	Live         bool          // 初期表示モード
	FetchLimit   int
	PollInterval time.Duration
	PollLimit    int
	MaxCandles   int // 正規シーケンスの上限。0は無制限
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Window == "" {
		c.Window = entity.WindowMonth
	}
	if c.FetchLimit <= 0 {
		c.FetchLimit = DefaultFetchLimit
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollLimit <= 0 {
		c.PollLimit = DefaultPollLimit
	}
	return c
}

// EventKind はレンダラーへ送るメッセージの種類です。
type EventKind string

const (
	EventSetData       EventKind = "setData"
	EventAppend        EventKind = "append"
	EventRangeChanged  EventKind = "rangeChanged"
	EventSetAutoScroll EventKind = "setAutoScroll"
	EventSetFullscreen EventKind = "setFullscreen"
	EventHover         EventKind = "hover"
	EventRangeStats    EventKind = "rangeStats"
	EventError         EventKind = "error"
)

// Event はセッションからレンダラーへの出力です。Kindに応じて使うフィールドが決まります。
type Event struct {
	Kind       EventKind
	Window     entity.Window      // rangeChanged, setData
	Candles    []entity.Candle    // setData
	Candle     *entity.Candle     // append, hover（該当なしはnil）
	Live       bool               // setAutoScroll
	Fullscreen bool               // setFullscreen
	Stats      *series.RangeStats // rangeStats
	Err        error              // error
}

type fetchKind int

const (
	fetchFull fetchKind = iota
	fetchPoll
)

type fetchResult struct {
	kind    fetchKind
	gen     uint64
	candles []entity.Candle
	err     error
}

// Session は1銘柄のチャート表示状態を所有するイベントループです。
// 正規シーケンスとスナップショットへの変更はすべてRunのゴルーチン内で行われます。
type Session struct {
	id  string
	cfg SessionConfig
	src CandleSource
	log *slog.Logger

	rec        *series.Reconciler
	fullscreen bool
	lastStats  *series.RangeStats

	fetchGen    uint64
	cancelFetch context.CancelFunc
	pollGen     uint64
	cancelPoll  context.CancelFunc
	polling     bool
	ticker      *time.Ticker

	events  chan Event
	cmds    chan func(context.Context)
	results chan fetchResult
	done    chan struct{}
}

// NewSession は新しいSessionを作成します。Runを呼ぶまで何も取得しません。
func NewSession(id string, cfg SessionConfig, src CandleSource) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		id:      id,
		cfg:     cfg,
		src:     src,
		log:     slog.With("session", id, "symbol", cfg.Symbol),
		rec:     series.NewReconciler(cfg.Window, cfg.Live),
		events:  make(chan Event, eventBuffer),
		cmds:    make(chan func(context.Context)),
		results: make(chan fetchResult),
		done:    make(chan struct{}),
	}
}

// ID はセッションIDを返します。
func (s *Session) ID() string { return s.id }

// Events はレンダラー向けイベントのチャネルを返します。Runの終了時にクローズされます。
func (s *Session) Events() <-chan Event { return s.events }

// Run はイベントループを実行します。ctxがキャンセルされるとタイマーと実行中のリクエストを破棄して終了します。
func (s *Session) Run(ctx context.Context) error {
	if s.cfg.Symbol == "" {
		close(s.done)
		close(s.events)
		return domain.ErrSymbolRequired
	}

	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()
	defer close(s.events)
	defer close(s.done)
	defer s.stop()

	s.log.Info("chart session started", "window", s.cfg.Window, "live", s.cfg.Live)

	s.emit(ctx, Event{Kind: EventRangeChanged, Window: s.rec.Window()})
	s.emit(ctx, Event{Kind: EventSetAutoScroll, Live: s.rec.IsLive()})
	s.startFetch(ctx)
	if s.rec.IsLive() {
		s.startTicker()
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("chart session stopped")
			return nil
		case cmd := <-s.cmds:
			cmd(ctx)
		case res := <-s.results:
			s.handleResult(ctx, res)
		case <-s.tick():
			s.startPoll(ctx)
		}
	}
}

// SelectWindow はWindowを切り替え、新しいWindowで全件を取得し直します。
func (s *Session) SelectWindow(ctx context.Context, w entity.Window) error {
	if !w.Valid() {
		return domain.ErrUnknownWindow
	}
	return s.do(ctx, func(runCtx context.Context) {
		if !s.rec.SelectWindow(w) {
			return
		}
		s.emit(runCtx, Event{Kind: EventRangeChanged, Window: w})
		s.cancelPolling()
		if len(s.rec.Canonical()) > 0 {
			s.emitView(runCtx)
		}
		s.startFetch(runCtx)
	})
}

// SetLive はライブモードとスタティックモードを切り替えます。
func (s *Session) SetLive(ctx context.Context, live bool) error {
	return s.do(ctx, func(runCtx context.Context) {
		if !s.rec.SetLive(live) {
			return
		}
		s.cancelPolling()
		if live {
			s.startTicker()
		} else {
			s.stopTicker()
		}
		s.emit(runCtx, Event{Kind: EventSetAutoScroll, Live: live})
		s.emitView(runCtx)
	})
}

// Hover はレンダラーが報告した時刻を表示中のローソク足に解決し、hoverイベントを送ります。
func (s *Session) Hover(ctx context.Context, t int64) error {
	return s.do(ctx, func(runCtx context.Context) {
		ev := Event{Kind: EventHover}
		if c, ok := series.Lookup(s.rec.View(), t); ok {
			ev.Candle = &c
		}
		s.emit(runCtx, ev)
	})
}

// SetFullscreen は全画面状態を切り替えます。
func (s *Session) SetFullscreen(ctx context.Context, on bool) error {
	return s.do(ctx, func(runCtx context.Context) {
		if s.fullscreen == on {
			return
		}
		s.fullscreen = on
		s.emit(runCtx, Event{Kind: EventSetFullscreen, Fullscreen: on})
	})
}

// Reject はレンダラーからの不正な要求をerrorイベントとして返します。
func (s *Session) Reject(ctx context.Context, err error) error {
	return s.do(ctx, func(runCtx context.Context) {
		s.emit(runCtx, Event{Kind: EventError, Err: err})
	})
}

// View は現在レンダラーに表示されているシーケンスのコピーを返します。
func (s *Session) View(ctx context.Context) ([]entity.Candle, error) {
	reply := make(chan []entity.Candle, 1)
	if err := s.do(ctx, func(context.Context) {
		v := s.rec.View()
		cp := make([]entity.Candle, len(v))
		copy(cp, v)
		reply <- cp
	}); err != nil {
		return nil, err
	}
	return <-reply, nil
}

func (s *Session) do(ctx context.Context, fn func(context.Context)) error {
	select {
	case s.cmds <- fn:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startFetch は実行中の取得をキャンセルし、世代番号を進めて全件取得を開始します。
func (s *Session) startFetch(ctx context.Context) {
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.fetchGen++
	fctx, cancel := context.WithCancel(ctx)
	s.cancelFetch = cancel
	go s.fetch(fctx, fetchFull, s.fetchGen, s.rec.Window(), s.cfg.FetchLimit)
}

func (s *Session) startPoll(ctx context.Context) {
	if s.polling || !s.rec.IsLive() {
		return
	}
	s.polling = true
	s.pollGen++
	pctx, cancel := context.WithCancel(ctx)
	s.cancelPoll = cancel
	go s.fetch(pctx, fetchPoll, s.pollGen, "", s.cfg.PollLimit)
}

func (s *Session) cancelPolling() {
	if s.cancelPoll != nil {
		s.cancelPoll()
		s.cancelPoll = nil
	}
	if s.polling {
		s.pollGen++
		s.polling = false
	}
}

func (s *Session) fetch(ctx context.Context, kind fetchKind, gen uint64, w entity.Window, limit int) {
	cs, err := s.src.FetchCandles(ctx, s.cfg.Symbol, w, limit)
	select {
	case s.results <- fetchResult{kind: kind, gen: gen, candles: cs, err: err}:
	case <-s.done:
	}
}

func (s *Session) handleResult(ctx context.Context, res fetchResult) {
	switch res.kind {
	case fetchFull:
		if res.gen != s.fetchGen {
			metrics.StaleResults.Inc()
			return
		}
		s.cancelFetch()
		s.cancelFetch = nil
		if res.err != nil {
			s.reportError(ctx, "fetch candles failed, keeping previous data", res.err)
			return
		}
		s.rec.Replace(series.TrimFront(s.keepNewer(res.candles), s.cfg.MaxCandles))
		s.emitView(ctx)

	case fetchPoll:
		if res.gen != s.pollGen {
			metrics.StaleResults.Inc()
			return
		}
		s.polling = false
		s.cancelPoll()
		s.cancelPoll = nil
		if res.err != nil {
			s.reportError(ctx, "poll candles failed", res.err)
			return
		}
		s.applyPoll(ctx, res.candles)
	}
}

// keepNewer は取得結果より新しい時刻の足（取得中にポーリングでマージされたもの）を取得結果に重ねます。
// 遅れて届いた全件取得で新しい足が巻き戻らないようにします。
func (s *Session) keepNewer(fetched []entity.Candle) []entity.Candle {
	if len(fetched) == 0 {
		return fetched
	}
	last := fetched[len(fetched)-1].Time
	cur := s.rec.Canonical()
	i := len(cur)
	for i > 0 && cur[i-1].Time > last {
		i--
	}
	if i == len(cur) {
		return fetched
	}
	return series.MergeAll(slices.Clone(fetched), cur[i:])
}

// applyPoll はポーリング結果をマージします。ライブモードで末尾への追加・更新だけならappendを、
// それ以外（古い要素の削除やWindowの移動）はsetDataを送ります。
func (s *Session) applyPoll(ctx context.Context, cs []entity.Candle) {
	if len(cs) == 0 {
		return
	}
	before := s.rec.View()
	trimmed := s.rec.Merge(cs, s.cfg.MaxCandles)
	metrics.LiveMerges.Add(float64(len(cs)))

	if !s.rec.IsLive() {
		return
	}
	after := s.rec.View()
	if len(after) == 0 {
		return
	}
	if trimmed || len(before) == 0 || before[0].Time != after[0].Time || cs[0].Time < before[len(before)-1].Time {
		s.emitView(ctx)
		return
	}
	for _, c := range cs {
		s.emit(ctx, Event{Kind: EventAppend, Candle: &c})
	}
	s.emitStats(ctx)
}

func (s *Session) reportError(ctx context.Context, msg string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.log.Warn(msg, "window", s.rec.Window(), "error", err)
	s.emit(ctx, Event{Kind: EventError, Err: err})
}

func (s *Session) emitView(ctx context.Context) {
	s.emit(ctx, Event{Kind: EventSetData, Window: s.rec.Window(), Candles: s.rec.View()})
	s.emitStats(ctx)
}

// emitStats は (Window, 最初の時刻, 最後の時刻) が変わった場合だけrangeStatsを送ります。
func (s *Session) emitStats(ctx context.Context) {
	st := series.ComputeStats(s.rec.Window(), s.rec.View())
	if s.lastStats != nil && s.lastStats.SameWindow(st) {
		return
	}
	s.lastStats = &st
	s.emit(ctx, Event{Kind: EventRangeStats, Window: st.Window, Stats: &st})
}

func (s *Session) emit(ctx context.Context, ev Event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

func (s *Session) tick() <-chan time.Time {
	if s.ticker == nil {
		return nil
	}
	return s.ticker.C
}

func (s *Session) startTicker() {
	if s.ticker == nil {
		s.ticker = time.NewTicker(s.cfg.PollInterval)
	}
}

func (s *Session) stopTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

func (s *Session) stop() {
	s.stopTicker()
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.cancelPolling()
}

package series

import (
	"chart_backend/internal/feature/candles/domain/entity"
)

// DisplayState は表示モードを表します。実体は Live か Static のどちらかです。
type DisplayState interface {
	displayState()
}

// Live は最新の正規シーケンスを常に追従するモードです。
type Live struct{}

// Static は選択時点のフィルタ結果を凍結して表示するモードです。
type Static struct {
	Window entity.Window
	Frozen []entity.Candle
}

func (Live) displayState()   {}
func (Static) displayState() {}

// Reconciler は1銘柄の正規シーケンスと表示スナップショットを所有します。
// 並行アクセスは想定していないため、単一のイベントループから操作してください。
type Reconciler struct {
	canonical []entity.Candle
	window    entity.Window
	state     DisplayState
}

// NewReconciler は指定したWindowと表示モードで空のReconcilerを作成します。
func NewReconciler(window entity.Window, live bool) *Reconciler {
	r := &Reconciler{window: window}
	if live {
		r.state = Live{}
	} else {
		r.state = r.capture()
	}
	return r
}

// Canonical は現在の正規シーケンスを返します。呼び出し側で変更しないでください。
func (r *Reconciler) Canonical() []entity.Candle { return r.canonical }

// Window は現在選択中のWindowを返します。
func (r *Reconciler) Window() entity.Window { return r.window }

// State は現在の表示状態を返します。
func (r *Reconciler) State() DisplayState { return r.state }

// IsLive はライブモードかどうかを返します。
func (r *Reconciler) IsLive() bool {
	_, ok := r.state.(Live)
	return ok
}

// Latest は正規シーケンスの最後のローソク足を返します。
func (r *Reconciler) Latest() (entity.Candle, bool) {
	if len(r.canonical) == 0 {
		return entity.Candle{}, false
	}
	return r.canonical[len(r.canonical)-1], true
}

// Filtered は正規シーケンスを現在のWindowでフィルタした結果を返します。
func (r *Reconciler) Filtered() []entity.Candle {
	return FilterRange(r.canonical, r.window)
}

// View はレンダラーに渡す表示用シーケンスを返します。
// Staticモードで選択中のWindowのスナップショットがあればそれを、なければフィルタ結果を返します。
func (r *Reconciler) View() []entity.Candle {
	if s, ok := r.state.(Static); ok && s.Window == r.window {
		return s.Frozen
	}
	return r.Filtered()
}

// Replace は正規シーケンスを丸ごと置き換えます（Window変更や銘柄変更後の再取得）。
// Staticモードでは新しいデータで現在のWindowのスナップショットを取り直します。
func (r *Reconciler) Replace(seq []entity.Candle) {
	cp := make([]entity.Candle, len(seq))
	copy(cp, seq)
	r.canonical = Canonicalize(cp)
	if _, ok := r.state.(Static); ok {
		r.state = r.capture()
	}
}

// Apply はライブティック1本を正規シーケンスにマージします。スナップショットは変更しません。
func (r *Reconciler) Apply(c entity.Candle) {
	r.canonical = ApplyUpdate(r.canonical, c)
}

// Merge はポーリングで得た複数のローソク足をマージし、limit件を超えた古い要素を削除します。
// 削除が発生した場合はtrueを返します。
func (r *Reconciler) Merge(cs []entity.Candle, limit int) (trimmed bool) {
	r.canonical = MergeAll(r.canonical, cs)
	n := len(r.canonical)
	r.canonical = TrimFront(r.canonical, limit)
	return len(r.canonical) < n
}

// SelectWindow はWindowを切り替えます。Staticモードで値が変わった場合はスナップショットを取り直します。
// Windowが変わった場合はtrueを返します。
func (r *Reconciler) SelectWindow(w entity.Window) bool {
	if w == r.window {
		return false
	}
	r.window = w
	if _, ok := r.state.(Static); ok {
		r.state = r.capture()
	}
	return true
}

// SetLive は表示モードを切り替えます。
// ライブへの遷移はスナップショットを破棄し、Staticへの遷移はその時点のフィルタ結果で即座にスナップショットを取ります。
// モードが変わった場合はtrueを返します。
func (r *Reconciler) SetLive(live bool) bool {
	if live == r.IsLive() {
		return false
	}
	if live {
		r.state = Live{}
	} else {
		r.state = r.capture()
	}
	return true
}

func (r *Reconciler) capture() Static {
	return Static{Window: r.window, Frozen: r.Filtered()}
}

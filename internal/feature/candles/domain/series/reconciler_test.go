package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chart_backend/internal/feature/candles/domain/entity"
)

// dailySeq は start から n 日分の日足を作成します。
func dailySeq(start string, n int) []entity.Candle {
	base := time.Unix(ts(start), 0).UTC()
	out := make([]entity.Candle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, entity.Candle{Time: base.AddDate(0, 0, i).Unix(), Close: float64(100 + i)})
	}
	return out
}

func TestReconciler_LiveViewTracksUpdates(t *testing.T) {
	t.Parallel()

	r := NewReconciler(entity.WindowWeek, true)
	r.Replace(dailySeq("2024-03-01T00:00:00Z", 15))

	before := r.View()
	next := entity.Candle{Time: ts("2024-03-16T00:00:00Z"), Close: 500}
	r.Apply(next)

	after := r.View()
	require.NotEmpty(t, after)
	assert.Equal(t, next, after[len(after)-1])
	assert.NotEqual(t, before, after)
}

// TestReconciler_StaticSnapshotIsFrozen はスタティックモードでライブ更新が表示に反映されないことを検証します。
func TestReconciler_StaticSnapshotIsFrozen(t *testing.T) {
	t.Parallel()

	r := NewReconciler(entity.WindowWeek, false)
	r.Replace(dailySeq("2024-03-01T00:00:00Z", 15))

	frozen := r.View()
	r.Apply(entity.Candle{Time: ts("2024-03-16T00:00:00Z"), Close: 500})
	r.Apply(entity.Candle{Time: frozen[len(frozen)-1].Time, Close: 1})

	assert.Equal(t, frozen, r.View())
	assert.Len(t, r.Canonical(), 16)
}

// TestReconciler_ModeTransitions はWindow切り替えとモード遷移でスナップショットが取り直されることを検証します。
func TestReconciler_ModeTransitions(t *testing.T) {
	t.Parallel()

	r := NewReconciler(entity.WindowWeek, false)
	r.Replace(dailySeq("2024-01-01T00:00:00Z", 75)) // 2024-03-15 まで

	s1 := r.View()
	require.Equal(t, ts("2024-03-08T00:00:00Z"), s1[0].Time)

	// Window変更で新しいスナップショット
	require.True(t, r.SelectWindow(entity.WindowMonth))
	s2 := r.View()
	assert.Equal(t, ts("2024-02-15T00:00:00Z"), s2[0].Time)
	st, ok := r.State().(Static)
	require.True(t, ok)
	assert.Equal(t, entity.WindowMonth, st.Window)

	// ライブ中は最新のフィルタ結果を追従
	require.True(t, r.SetLive(true))
	r.Apply(entity.Candle{Time: ts("2024-03-16T00:00:00Z"), Close: 999})
	live := r.View()
	assert.Equal(t, 999.0, live[len(live)-1].Close)
	assert.Equal(t, r.Filtered(), live)

	// Staticに戻るとその時点で取り直す
	require.True(t, r.SetLive(false))
	s3 := r.View()
	assert.Equal(t, live, s3)
	assert.NotEqual(t, s2, s3)

	r.Apply(entity.Candle{Time: ts("2024-03-17T00:00:00Z"), Close: 1000})
	assert.Equal(t, s3, r.View())
}

func TestReconciler_NoopTransitions(t *testing.T) {
	t.Parallel()

	r := NewReconciler(entity.WindowMonth, true)
	assert.False(t, r.SelectWindow(entity.WindowMonth))
	assert.False(t, r.SetLive(true))
	assert.True(t, r.IsLive())
}

func TestReconciler_ReplaceRecapturesStatic(t *testing.T) {
	t.Parallel()

	r := NewReconciler(entity.WindowAll, false)
	assert.Empty(t, r.View())

	r.Replace(dailySeq("2024-03-01T00:00:00Z", 3))
	assert.Len(t, r.View(), 3)
}

func TestReconciler_MergeTrims(t *testing.T) {
	t.Parallel()

	r := NewReconciler(entity.WindowAll, true)
	r.Replace(dailySeq("2024-03-01T00:00:00Z", 5))

	last, _ := r.Latest()
	trimmed := r.Merge([]entity.Candle{
		{Time: last.Time, Close: 1},
		{Time: last.Time + 86400, Close: 2},
	}, 5)

	assert.True(t, trimmed)
	assert.Len(t, r.Canonical(), 5)
	assert.True(t, entity.IsCanonical(r.Canonical()))
	got, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, 2.0, got.Close)
}

func TestReconciler_LatestEmpty(t *testing.T) {
	t.Parallel()

	_, ok := NewReconciler(entity.WindowAll, true).Latest()
	assert.False(t, ok)
}

package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chart_backend/internal/feature/candles/domain/entity"
)

func seqOf(times ...int64) []entity.Candle {
	out := make([]entity.Candle, 0, len(times))
	for _, t := range times {
		out = append(out, entity.Candle{Time: t, Close: float64(t)})
	}
	return out
}

func timesOf(seq []entity.Candle) []int64 {
	out := make([]int64, 0, len(seq))
	for _, c := range seq {
		out = append(out, c.Time)
	}
	return out
}

func TestApplyUpdate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		seq       []entity.Candle
		update    entity.Candle
		wantTimes []int64
		wantClose map[int64]float64
	}{
		{
			name:      "replaces matching last candle in place",
			seq:       seqOf(60, 120, 180),
			update:    entity.Candle{Time: 180, Close: 999},
			wantTimes: []int64{60, 120, 180},
			wantClose: map[int64]float64{180: 999},
		},
		{
			name:      "replaces matching middle candle in place",
			seq:       seqOf(60, 120, 180),
			update:    entity.Candle{Time: 120, Close: 555},
			wantTimes: []int64{60, 120, 180},
			wantClose: map[int64]float64{120: 555},
		},
		{
			name:      "appends future candle",
			seq:       seqOf(60, 120, 180),
			update:    entity.Candle{Time: 240, Close: 240},
			wantTimes: []int64{60, 120, 180, 240},
		},
		{
			name:      "inserts past candle in sorted position",
			seq:       seqOf(60, 120, 180),
			update:    entity.Candle{Time: 90, Close: 90},
			wantTimes: []int64{60, 90, 120, 180},
		},
		{
			name:      "inserts before first candle",
			seq:       seqOf(60, 120),
			update:    entity.Candle{Time: 30, Close: 30},
			wantTimes: []int64{30, 60, 120},
		},
		{
			name:      "appends to empty sequence",
			seq:       nil,
			update:    entity.Candle{Time: 60, Close: 60},
			wantTimes: []int64{60},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ApplyUpdate(tt.seq, tt.update)
			assert.Equal(t, tt.wantTimes, timesOf(got))
			assert.True(t, entity.IsCanonical(got))
			for tm, want := range tt.wantClose {
				c, ok := Lookup(got, tm)
				require.True(t, ok)
				assert.Equal(t, want, c.Close)
			}
		})
	}
}

func TestMergeAll_KeepsCanonicalOrder(t *testing.T) {
	t.Parallel()

	seq := seqOf(60, 120, 180)
	got := MergeAll(seq, []entity.Candle{
		{Time: 180, Close: 1},
		{Time: 240, Close: 2},
		{Time: 150, Close: 3},
		{Time: 240, Close: 4},
	})

	assert.Equal(t, []int64{60, 120, 150, 180, 240}, timesOf(got))
	last, _ := Lookup(got, 240)
	assert.Equal(t, 4.0, last.Close)
}

func TestTrimFront(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		seq   []entity.Candle
		limit int
		want  []int64
	}{
		{"under limit", seqOf(1, 2, 3), 5, []int64{1, 2, 3}},
		{"at limit", seqOf(1, 2, 3), 3, []int64{1, 2, 3}},
		{"over limit keeps newest", seqOf(1, 2, 3, 4, 5), 2, []int64{4, 5}},
		{"zero means unbounded", seqOf(1, 2, 3), 0, []int64{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, timesOf(TrimFront(tt.seq, tt.limit)))
		})
	}
}

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	in := []entity.Candle{
		{Time: 300, Close: 3},
		{Time: 100, Close: 1},
		{Time: 200, Close: 2},
		{Time: 100, Close: 10},
	}
	got := Canonicalize(in)

	assert.Equal(t, []int64{100, 200, 300}, timesOf(got))
	assert.Equal(t, 10.0, got[0].Close, "later duplicate wins")
}

func TestLookup(t *testing.T) {
	t.Parallel()

	seq := seqOf(60, 120, 180)

	c, ok := Lookup(seq, 120)
	assert.True(t, ok)
	assert.Equal(t, int64(120), c.Time)

	_, ok = Lookup(seq, 121)
	assert.False(t, ok)

	_, ok = Lookup(nil, 60)
	assert.False(t, ok)
}

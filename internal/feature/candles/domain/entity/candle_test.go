package entity

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chart_backend/internal/feature/candles/domain"
)

func TestNormalizeEpoch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   int64
		want int64
	}{
		{"seconds", 1_700_000_000, 1_700_000_000},
		{"threshold is seconds", MillisThreshold, MillisThreshold},
		{"millis", 1_700_000_000_000, 1_700_000_000},
		{"millis floored", 1_700_000_000_999, 1_700_000_000},
		{"zero", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeEpoch(tt.in))
		})
	}
}

func TestEpochSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     float64
		want   int64
		wantOK bool
	}{
		{"seconds", 1_700_000_000, 1_700_000_000, true},
		{"fractional seconds floored", 1_700_000_000.9, 1_700_000_000, true},
		{"millis", 1_700_000_000_500, 1_700_000_000, true},
		{"negative floored", -1.5, -2, true},
		{"beyond int64 after millis rule", 1e25, 0, false},
		{"below int64", -1e25, 0, false},
		{"nan", math.NaN(), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := EpochSeconds(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsCanonical(t *testing.T) {
	t.Parallel()

	assert.True(t, IsCanonical(nil))
	assert.True(t, IsCanonical([]Candle{{Time: 1}, {Time: 2}}))
	assert.False(t, IsCanonical([]Candle{{Time: 2}, {Time: 1}}))
	assert.False(t, IsCanonical([]Candle{{Time: 1}, {Time: 1}}))
}

func TestCandle_VolumeOr(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 7.0, Candle{}.VolumeOr(7))
	assert.Equal(t, 3.0, Candle{Volume: Float64(3)}.VolumeOr(7))
}

func TestCandle_Timestamp(t *testing.T) {
	t.Parallel()

	got := Candle{Time: 1_710_460_800}.Timestamp()
	assert.Equal(t, "2024-03-15T00:00:00Z", got.Format("2006-01-02T15:04:05Z07:00"))
}

func TestParseWindow(t *testing.T) {
	t.Parallel()

	for _, w := range Windows {
		got, err := ParseWindow(w.String())
		require.NoError(t, err)
		assert.Equal(t, w, got)
		assert.True(t, got.Valid())
	}

	got, err := ParseWindow(" ytd ")
	require.NoError(t, err)
	assert.Equal(t, WindowYTD, got)

	_, err = ParseWindow("2W")
	assert.True(t, errors.Is(err, domain.ErrUnknownWindow))
	assert.False(t, Window("2W").Valid())
}

package twelvedata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chart_backend/internal/feature/candles/domain"
)

func newMarket(t *testing.T, h http.HandlerFunc) *TwelveDataMarket {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewTwelveDataMarket(Config{APIKey: "test-key", BaseURL: server.URL}, server.Client())
}

func writeJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}

func TestNewTwelveDataMarket(t *testing.T) {
	t.Parallel()

	market := NewTwelveDataMarket(Config{APIKey: "k"}, &http.Client{})

	require.NotNil(t, market)
	assert.Equal(t, "k", market.cfg.APIKey)
	assert.Equal(t, DefaultBaseURL, market.cfg.BaseURL)
	assert.Equal(t, DefaultTimeout, market.cfg.Timeout)
}

func TestTwelveDataMarket_GetTimeSeries_Success(t *testing.T) {
	t.Parallel()

	market := newMarket(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/time_series", r.URL.Path)
		assert.Equal(t, "AAPL", q.Get("symbol"))
		assert.Equal(t, "1day", q.Get("interval"))
		assert.Equal(t, "100", q.Get("outputsize"))
		assert.Equal(t, "UTC", q.Get("timezone"))
		assert.Equal(t, "test-key", q.Get("apikey"))

		writeJSON(`{
			"status": "ok",
			"meta": {"symbol": "AAPL", "interval": "1day"},
			"values": [
				{"datetime": "2025-01-15", "open": "150.00", "high": "155.00", "low": "149.00", "close": "154.50", "volume": "1000000"},
				{"datetime": "2025-01-14 09:30:00", "open": "148.00", "high": "151.00", "low": "147.50", "close": "150.00"}
			]
		}`)(w, r)
	})

	candles, err := market.GetTimeSeries(context.Background(), "AAPL", "1day", 100)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC).Unix(), candles[0].Time)
	assert.Equal(t, 150.00, candles[0].Open)
	assert.Equal(t, 154.50, candles[0].Close)
	require.NotNil(t, candles[0].Volume)
	assert.Equal(t, 1000000.0, *candles[0].Volume)

	assert.Equal(t, time.Date(2025, 1, 14, 9, 30, 0, 0, time.UTC).Unix(), candles[1].Time)
	assert.Nil(t, candles[1].Volume, "missing volume stays absent")
}

func TestTwelveDataMarket_GetTimeSeries_HTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
	}{
		{"bad request", http.StatusBadRequest},
		{"unauthorized", http.StatusUnauthorized},
		{"too many requests", http.StatusTooManyRequests},
		{"internal server error", http.StatusInternalServerError},
		{"service unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			market := newMarket(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			_, err := market.GetTimeSeries(context.Background(), "AAPL", "1day", 100)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrTransport)

			var te *domain.TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.statusCode, te.StatusCode)
		})
	}
}

func TestTwelveDataMarket_GetTimeSeries_APIError(t *testing.T) {
	t.Parallel()

	market := newMarket(t, writeJSON(`{"status": "error", "code": 401, "message": "Invalid API key"}`))

	_, err := market.GetTimeSeries(context.Background(), "AAPL", "1day", 100)
	require.Error(t, err)

	var te *domain.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 401, te.StatusCode)
	assert.Contains(t, te.Err.Error(), "Invalid API key")
}

func TestTwelveDataMarket_GetTimeSeries_InvalidJSON(t *testing.T) {
	t.Parallel()

	market := newMarket(t, writeJSON(`{invalid json`))

	_, err := market.GetTimeSeries(context.Background(), "AAPL", "1day", 100)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestTwelveDataMarket_GetTimeSeries_InvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    string
		errField string
	}{
		{
			name:     "invalid datetime",
			value:    `{"datetime": "invalid-date", "open": "1", "high": "1", "low": "1", "close": "1"}`,
			errField: "parse time",
		},
		{
			name:     "invalid open",
			value:    `{"datetime": "2025-01-15", "open": "abc", "high": "155.00", "low": "149.00", "close": "154.50"}`,
			errField: "parse open",
		},
		{
			name:     "invalid high",
			value:    `{"datetime": "2025-01-15", "open": "150.00", "high": "xyz", "low": "149.00", "close": "154.50"}`,
			errField: "parse high",
		},
		{
			name:     "invalid low",
			value:    `{"datetime": "2025-01-15", "open": "150.00", "high": "155.00", "low": "bad", "close": "154.50"}`,
			errField: "parse low",
		},
		{
			name:     "invalid close",
			value:    `{"datetime": "2025-01-15", "open": "150.00", "high": "155.00", "low": "149.00", "close": "bad"}`,
			errField: "parse close",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			market := newMarket(t, writeJSON(`{"status": "ok", "values": [`+tt.value+`]}`))

			_, err := market.GetTimeSeries(context.Background(), "AAPL", "1day", 100)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errField)
			assert.NotErrorIs(t, err, domain.ErrTransport)
		})
	}
}

func TestTwelveDataMarket_GetTimeSeries_UnreadableVolume(t *testing.T) {
	t.Parallel()

	market := newMarket(t, writeJSON(`{"status": "ok", "values": [
		{"datetime": "2025-01-15", "open": "1", "high": "2", "low": "0.5", "close": "1.5", "volume": "n/a"}
	]}`))

	candles, err := market.GetTimeSeries(context.Background(), "EUR/USD", "1day", 1)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Nil(t, candles[0].Volume)
}

func TestTwelveDataMarket_GetTimeSeries_EmptyValues(t *testing.T) {
	t.Parallel()

	market := newMarket(t, writeJSON(`{"status": "ok", "values": []}`))

	candles, err := market.GetTimeSeries(context.Background(), "AAPL", "1day", 100)
	require.NoError(t, err)
	assert.Empty(t, candles)
}

func TestTwelveDataMarket_GetTimeSeries_ContextCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	market := newMarket(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := market.GetTimeSeries(ctx, "AAPL", "1day", 100)
	require.Error(t, err)

	var te *domain.TransportError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Timeout)
}

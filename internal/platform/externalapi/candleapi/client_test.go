package candleapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chart_backend/internal/feature/candles/domain"
	"chart_backend/internal/feature/candles/domain/entity"
)

func newTestClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL, Timeout: timeout}, server.Client())
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{BaseURL: "http://example.test"}, http.DefaultClient)
	assert.Equal(t, DefaultTimeout, c.cfg.Timeout)
	assert.Equal(t, DefaultLimit, c.cfg.DefaultLimit)
}

func TestClient_FetchCandles_QueryParameters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		window    entity.Window
		limit     int
		wantRange string
		wantLimit string
	}{
		{"window and limit", entity.WindowMonth, 2, "1M", "2"},
		{"default limit", entity.WindowYTD, 0, "YTD", "500"},
		{"no window", "", 10, "", "10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			type seen struct {
				path  string
				query url.Values
			}
			reqs := make(chan seen, 1)
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				reqs <- seen{path: r.URL.Path, query: r.URL.Query()}
				_, _ = w.Write([]byte(`[]`))
			}, time.Second)

			_, err := c.FetchCandles(context.Background(), "AAPL", tt.window, tt.limit)
			require.NoError(t, err)

			got := <-reqs
			assert.Equal(t, "/candles", got.path)
			assert.Equal(t, "AAPL", got.query.Get("symbol"))
			assert.Equal(t, tt.wantLimit, got.query.Get("limit"))
			if tt.wantRange == "" {
				assert.False(t, got.query.Has("range"))
			} else {
				assert.Equal(t, tt.wantRange, got.query.Get("range"))
			}
		})
	}
}

func TestClient_FetchCandles_Shapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		wantTimes []int64
	}{
		{
			name:      "bare array",
			body:      `[[1700000060,1,2,0.5,1.5],[1700000000,1,2,0.5,1.5]]`,
			wantTimes: []int64{1700000000, 1700000060},
		},
		{
			name:      "wrapped in candles key",
			body:      `{"candles":[{"t":1700000000000,"o":1,"h":2,"l":0.5,"c":1.5}]}`,
			wantTimes: []int64{1700000000},
		},
		{
			name:      "object without candles",
			body:      `{"data":[[1700000000,1,2,0.5,1.5]]}`,
			wantTimes: []int64{},
		},
		{
			name:      "candles is not an array",
			body:      `{"candles":"soon"}`,
			wantTimes: []int64{},
		},
		{
			name:      "scalar body",
			body:      `42`,
			wantTimes: []int64{},
		},
		{
			name:      "malformed rows dropped",
			body:      `[[1700000000,1,2,0.5,1.5],{"t":1700000060},"row",null,[1700000120,"x",1,1,1]]`,
			wantTimes: []int64{1700000000},
		},
		{
			name:      "duplicate timestamps keep last",
			body:      `[[1700000000,1,1,1,1],[1700000000,2,2,2,2]]`,
			wantTimes: []int64{1700000000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, respond(tt.body), time.Second)
			got, err := c.FetchCandles(context.Background(), "AAPL", entity.WindowAll, 0)
			require.NoError(t, err)

			times := make([]int64, 0, len(got))
			for _, cd := range got {
				times = append(times, cd.Time)
			}
			assert.Equal(t, tt.wantTimes, times)
			assert.True(t, entity.IsCanonical(got))
		})
	}
}

func TestClient_FetchCandles_DuplicateLastWins(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, respond(`[[1700000000,1,1,1,1],[1700000000,2,2,2,2]]`), time.Second)
	got, err := c.FetchCandles(context.Background(), "AAPL", "", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2.0, got[0].Close)
}

func TestClient_FetchCandles_Errors(t *testing.T) {
	t.Parallel()

	t.Run("non-2xx status", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}, time.Second)

		_, err := c.FetchCandles(context.Background(), "AAPL", entity.WindowDay, 0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrTransport))

		var te *domain.TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
	})

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, respond(`[[1700000000,1,2`), time.Second)
		_, err := c.FetchCandles(context.Background(), "AAPL", entity.WindowDay, 0)
		assert.True(t, errors.Is(err, domain.ErrTransport))
	})

	t.Run("missing symbol", func(t *testing.T) {
		t.Parallel()

		c := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, http.DefaultClient)
		_, err := c.FetchCandles(context.Background(), "", entity.WindowDay, 0)
		assert.True(t, errors.Is(err, domain.ErrSymbolRequired))
	})

	t.Run("connection refused", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		base := server.URL
		server.Close()

		c := NewClient(Config{BaseURL: base, Timeout: time.Second}, http.DefaultClient)
		_, err := c.FetchCandles(context.Background(), "AAPL", entity.WindowDay, 0)
		assert.True(t, errors.Is(err, domain.ErrTransport))
	})
}

// TestClient_FetchCandles_Timeout は応答が設定時間内に返らない場合にタイムアウトのTransportErrorになることを検証します。
func TestClient_FetchCandles_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}, 50*time.Millisecond)
	defer close(release)

	start := time.Now()
	_, err := c.FetchCandles(context.Background(), "AAPL", entity.WindowDay, 0)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var te *domain.TransportError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Timeout)
	assert.True(t, errors.Is(err, domain.ErrTransport))
}

func TestClient_FetchCandles_CallerCancel(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}, 10*time.Second)
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.FetchCandles(ctx, "AAPL", entity.WindowDay, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

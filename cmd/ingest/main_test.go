package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"chart_backend/internal/feature/candles/adapters"
)

type failingCloser struct{ closed bool }

func (f *failingCloser) Close() error {
	f.closed = true
	return errors.New("already closed")
}

func TestCloseLogged(t *testing.T) {
	c := &failingCloser{}
	closeLogged("redis", c)
	assert.True(t, c.closed)
}

func TestRun(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","values":[
			{"datetime":"2025-01-15","open":"150","high":"155","low":"149","close":"154.5","volume":"1000"},
			{"datetime":"2025-01-14","open":"148","high":"151","low":"147.5","close":"150"}
		]}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "chart.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
logging:
  level: error
database:
  driver: sqlite
  dsn: %s
twelvedata:
  api_key: test-key
  base_url: %s
symbols:
  - code: AAPL
    name: Apple
    source: twelvedata
  - code: DEMO
    source: mock
ingest:
  intervals: [1day]
  timeout: 10s
`, dbPath, srv.URL)), 0o600))

	require.NoError(t, run([]string{"--config", cfgPath}))
	assert.Equal(t, int32(1), requests.Load(), "only twelvedata symbols are fetched")

	gdb, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	got, err := adapters.NewCandleRepository(gdb).Find(context.Background(), "AAPL", "1day", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 154.5, got[0].Close)
	assert.Nil(t, got[1].Volume)
}

func TestRun_BadFlag(t *testing.T) {
	assert.Error(t, run([]string{"--nope"}))
}

package candleapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"chart_backend/internal/feature/candles/adapters/rownorm"
	"chart_backend/internal/feature/candles/domain"
	"chart_backend/internal/feature/candles/domain/entity"
	"chart_backend/internal/feature/candles/domain/series"
	"chart_backend/internal/feature/candles/usecase"
	"chart_backend/internal/platform/metrics"
)

const (
	opFetch      = "GET /candles"
	maxBodyBytes = 32 << 20
)

var errMalformedBody = errors.New("malformed response body")

// Client は上流のローソク足APIからデータを取得するCandleSource実装です。
// キャッシュは持たず、呼び出しごとに新しいリクエストを送ります。
type Client struct {
	cfg    Config
	client *http.Client
}

// ClientがCandleSourceを実装していることをコンパイル時に検証します。
var _ usecase.CandleSource = (*Client)(nil)

// NewClient は指定された設定とHTTPクライアントでClientを生成します。
func NewClient(cfg Config, client *http.Client) *Client {
	return &Client{cfg: cfg.withDefaults(), client: client}
}

// FetchCandles は銘柄・Window・件数を指定してローソク足を取得し、正規化・昇順ソート済みのシーケンスを返します。
// 通信失敗、タイムアウト、2xx以外のステータスは *domain.TransportError を返します。
// 想定外の形のレスポンスはエラーではなく空のシーケンスになります。
func (c *Client) FetchCandles(ctx context.Context, symbol string, window entity.Window, limit int) ([]entity.Candle, error) {
	if symbol == "" {
		return nil, domain.ErrSymbolRequired
	}
	if limit <= 0 {
		limit = c.cfg.DefaultLimit
	}

	q := url.Values{}
	q.Set("symbol", symbol)
	if window != "" {
		q.Set("range", window.String())
	}
	q.Set("limit", strconv.Itoa(limit))
	u := fmt.Sprintf("%s/candles?%s", strings.TrimRight(c.cfg.BaseURL, "/"), q.Encode())

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	body, err := c.get(ctx, u)
	metrics.SourceLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceRequests.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	rows, err := extractRows(body)
	if err != nil {
		metrics.SourceRequests.WithLabelValues("error").Inc()
		return nil, &domain.TransportError{Op: opFetch, Err: err}
	}
	metrics.SourceRequests.WithLabelValues("ok").Inc()

	out := make([]entity.Candle, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		switch r := rownorm.Normalize(row).(type) {
		case rownorm.Ok:
			out = append(out, r.Candle)
		case rownorm.Skip:
			skipped++
			metrics.RowsSkipped.WithLabelValues(r.Reason).Inc()
		}
	}
	if skipped > 0 {
		slog.Debug("dropped malformed candle rows", "symbol", symbol, "skipped", skipped, "rows", len(rows))
	}
	return series.Canonicalize(out), nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &domain.TransportError{Op: opFetch, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: opFetch, Timeout: isTimeout(err), Err: err}
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return nil, &domain.TransportError{Op: opFetch, StatusCode: res.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.TransportError{Op: opFetch, Timeout: isTimeout(err), Err: err}
	}
	return body, nil
}

// extractRows はレスポンス本文から行の配列を取り出します。
// 本文は行の配列そのものか、"candles"キーに配列を持つオブジェクトです。それ以外の形は空として扱います。
// 重複した時刻は後に現れた行が優先されます（Canonicalizeの安定ソートによる）。
func extractRows(body []byte) ([][]byte, error) {
	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, errMalformedBody
	}

	var arr []byte
	switch body[0] {
	case '[':
		arr = body
	case '{':
		v, typ, _, err := jsonparser.Get(body, "candles")
		if err != nil || typ != jsonparser.Array {
			return nil, nil
		}
		arr = v
	default:
		return nil, nil
	}

	var rows [][]byte
	_, err := jsonparser.ArrayEach(arr, func(value []byte, typ jsonparser.ValueType, _ int, _ error) {
		if typ != jsonparser.Array && typ != jsonparser.Object {
			// 文字列はクォートが外れて渡されるため、行として解釈させない
			value = []byte("null")
		}
		rows = append(rows, value)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return rows, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func outcome(err error) string {
	var te *domain.TransportError
	if errors.As(err, &te) {
		switch {
		case te.Timeout:
			return "timeout"
		case te.StatusCode != 0:
			return "status"
		}
	}
	return "error"
}

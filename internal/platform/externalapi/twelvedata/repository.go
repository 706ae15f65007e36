package twelvedata

import (
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

	"chart_backend/internal/feature/candles/domain"
	"chart_backend/internal/feature/candles/domain/entity"
	"chart_backend/internal/feature/candles/usecase"
	"chart_backend/internal/platform/externalapi/twelvedata/dto"
)

const opTimeSeries = "GET /time_series"

// 日足以上はdate、分足・時間足はdatetimeの形式で返される
var datetimeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02"}

// TwelveDataMarket はTwelve Data外部APIから株価データを取得するMarketRepository実装です。
type TwelveDataMarket struct {
	cfg    Config
	client *http.Client
}

// TwelveDataMarketがMarketRepositoryを実装していることをコンパイル時に検証します。
var _ usecase.MarketRepository = (*TwelveDataMarket)(nil)

// NewTwelveDataMarket は指定された設定とHTTPクライアントでTwelveDataMarketの新しいインスタンスを生成します。
func NewTwelveDataMarket(cfg Config, client *http.Client) *TwelveDataMarket {
	return &TwelveDataMarket{cfg: cfg.withDefaults(), client: client}
}

// GetTimeSeries はTwelve Data APIから時系列株価データを取得し、新しい順のローソク足として返します。
// 時刻はUTCのエポック秒です。通信・ステータスの失敗は *domain.TransportError になります。
func (t *TwelveDataMarket) GetTimeSeries(ctx context.Context, symbol, interval string, outputsize int) ([]entity.Candle, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("outputsize", strconv.Itoa(outputsize))
	q.Set("timezone", "UTC")
	q.Set("apikey", t.cfg.APIKey)

	u := fmt.Sprintf("%s/time_series?%s", strings.TrimRight(t.cfg.BaseURL, "/"), q.Encode())

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &domain.TransportError{Op: opTimeSeries, Err: err}
	}

	res, err := t.client.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: opTimeSeries, Timeout: isTimeout(err), Err: err}
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return nil, &domain.TransportError{Op: opTimeSeries, StatusCode: res.StatusCode}
	}

	var body dto.TimeSeriesResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, &domain.TransportError{Op: opTimeSeries, Timeout: isTimeout(err), Err: err}
	}
	if body.Status == "error" {
		// Twelve Dataは200でもエラー本文を返すため、codeをステータスとして扱う
		return nil, &domain.TransportError{Op: opTimeSeries, StatusCode: body.Code, Err: errors.New(body.Message)}
	}

	candles := make([]entity.Candle, 0, len(body.Values))
	for _, v := range body.Values {
		c, err := toCandle(v)
		if err != nil {
			return nil, fmt.Errorf("twelvedata %s %s: %w", symbol, interval, err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func toCandle(v dto.TimeSeriesValue) (entity.Candle, error) {
	tm, err := parseDatetime(v.Datetime)
	if err != nil {
		return entity.Candle{}, err
	}
	o, err := strconv.ParseFloat(v.Open, 64)
	if err != nil {
		return entity.Candle{}, fmt.Errorf("parse open %q: %w", v.Open, err)
	}
	h, err := strconv.ParseFloat(v.High, 64)
	if err != nil {
		return entity.Candle{}, fmt.Errorf("parse high %q: %w", v.High, err)
	}
	l, err := strconv.ParseFloat(v.Low, 64)
	if err != nil {
		return entity.Candle{}, fmt.Errorf("parse low %q: %w", v.Low, err)
	}
	c, err := strconv.ParseFloat(v.Close, 64)
	if err != nil {
		return entity.Candle{}, fmt.Errorf("parse close %q: %w", v.Close, err)
	}

	candle := entity.Candle{Time: tm.Unix(), Open: o, High: h, Low: l, Close: c}
	// 為替などは出来高を返さない。読めない値も未設定として扱う
	if vol, err := strconv.ParseFloat(v.Volume, 64); err == nil {
		candle.Volume = entity.Float64(vol)
	}
	return candle, nil
}

func parseDatetime(s string) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if tm, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q", s)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

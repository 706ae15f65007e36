// Package ws はレンダラーとチャートセッションをWebSocketで接続します。
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chart_backend/internal/feature/candles/domain/entity"
	"chart_backend/internal/feature/candles/transport/http/dto"
	"chart_backend/internal/feature/candles/usecase"
)

const (
	DefaultWriteTimeout = 10 * time.Second
	DefaultPongWait     = 60 * time.Second
	maxMessageSize      = 4096
)

// Config はWebSocket接続とセッションの設定です。
type Config struct {
	WriteTimeout time.Duration
	PongWait     time.Duration
	// Session は接続ごとに作るセッションの既定値です。Symbol, Window, Live はリクエストから設定します。
	Session usecase.SessionConfig
}

func (c Config) withDefaults() Config {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.PongWait <= 0 {
		c.PongWait = DefaultPongWait
	}
	return c
}

// pingInterval はPongWaitより短くなければなりません。
func (c Config) pingInterval() time.Duration {
	return c.PongWait * 9 / 10
}

// ChartSocket は GET /ws/chart/:symbol を処理します。
type ChartSocket struct {
	src      usecase.CandleSource
	cfg      Config
	upgrader websocket.Upgrader
}

// NewChartSocket はChartSocketを作成します。
func NewChartSocket(src usecase.CandleSource, cfg Config) *ChartSocket {
	return &ChartSocket{
		src: src,
		cfg: cfg.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// レンダラーはローカルのWebビューから接続する
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handle はWebSocketへアップグレードし、接続が閉じるまでセッションを実行します。
//
// エンドポイント例:
// GET /ws/chart/AAPL?range=1W&live=true
func (h *ChartSocket) Handle(c *gin.Context) {
	cfg := h.cfg.Session
	cfg.Symbol = c.Param("symbol")
	if r := c.Query("range"); r != "" {
		w, err := entity.ParseWindow(r)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
			return
		}
		cfg.Window = w
	}
	if l := c.Query("live"); l != "" {
		live, err := strconv.ParseBool(l)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid live flag"})
			return
		}
		cfg.Live = live
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade がエラーレスポンスを書き込み済み
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	log := slog.With("session", id, "symbol", cfg.Symbol)
	sess := usecase.NewSession(id, cfg, h.src)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := sess.Run(ctx); err != nil {
			log.Error("chart session failed", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		h.writePump(conn, sess.Events(), log)
	}()

	h.readPump(ctx, conn, sess, log)
	cancel()
	wg.Wait()
}

// readPump はレンダラーからのメッセージをセッションの操作に変換します。
func (h *ChartSocket) readPump(ctx context.Context, conn *websocket.Conn, sess *usecase.Session, log *slog.Logger) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("websocket read failed", "error", err)
			}
			return
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			err = sess.Reject(ctx, fmt.Errorf("malformed message: %w", err))
		} else {
			err = dispatch(ctx, sess, msg)
		}
		if err != nil {
			if !errors.Is(err, usecase.ErrSessionClosed) && !errors.Is(err, context.Canceled) {
				log.Warn("failed to deliver renderer message", "error", err)
			}
			return
		}
	}
}

// dispatch は受信メッセージをセッションに渡します。不正な要求はerrorイベントで返します。
func dispatch(ctx context.Context, sess *usecase.Session, msg Inbound) error {
	switch msg.Type {
	case InSetRange:
		w, err := entity.ParseWindow(msg.Range)
		if err != nil {
			return sess.Reject(ctx, err)
		}
		return sess.SelectWindow(ctx, w)
	case InSetLive:
		return sess.SetLive(ctx, msg.Live)
	case InHover:
		if msg.Time == nil {
			return sess.Reject(ctx, errors.New("hover requires time"))
		}
		return sess.Hover(ctx, entity.NormalizeEpoch(*msg.Time))
	case InSetFullscreen:
		return sess.SetFullscreen(ctx, msg.Fullscreen)
	default:
		return sess.Reject(ctx, fmt.Errorf("unknown message type %q", msg.Type))
	}
}

// writePump はセッションのイベントを送信し、定期的にpingを送ります。
// イベントチャネルが閉じると close フレームを送って終了します。
func (h *ChartSocket) writePump(conn *websocket.Conn, events <-chan usecase.Event, log *slog.Logger) {
	ticker := time.NewTicker(h.cfg.pingInterval())
	defer func() {
		ticker.Stop()
		// ブロック中のReadMessageを解除する
		_ = conn.Close()
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(h.cfg.WriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteJSON(toMessage(ev)); err != nil {
				log.Warn("websocket write failed", "event", ev.Kind, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				log.Warn("websocket ping failed", "error", err)
				return
			}
		}
	}
}

package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	candleshandler "chart_backend/internal/feature/candles/transport/handler"
	"chart_backend/internal/feature/candles/transport/ws"
	symbollisthandler "chart_backend/internal/feature/symbollist/transport/handler"
	"chart_backend/internal/platform/http/handler"
)

// Handlers はルーティングするハンドラーの集合です。
type Handlers struct {
	Candles *candleshandler.CandlesHandler
	Symbols *symbollisthandler.SymbolHandler
	Chart   *ws.ChartSocket
	Ready   map[string]handler.Check
}

func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// 導通確認用
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", handler.Health)
	// 依存先（DB・Redis）の疎通確認
	r.GET("/readyz", handler.Ready(h.Ready))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 上流フィード。チャートセッションのupstreamモードはここを呼ぶ
	r.GET("/candles", h.Candles.GetCandlesHandler)
	r.GET("/symbols", h.Symbols.List)

	// チャート画面との双方向チャネル
	r.GET("/ws/chart/:symbol", h.Chart.Handle)

	return r
}

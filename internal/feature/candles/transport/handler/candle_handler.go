// Package handler はcandlesフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chart_backend/internal/feature/candles/domain"
	"chart_backend/internal/feature/candles/domain/entity"
	"chart_backend/internal/feature/candles/transport/http/dto"
)

// CandlesUsecase はローソク足データ操作のユースケースインターフェースを定義します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type CandlesUsecase interface {
	GetCandles(ctx context.Context, symbol string, window entity.Window, interval string, limit int) ([]entity.Candle, error)
}

// CandlesHandler はローソク足データのHTTPリクエストを処理します。
type CandlesHandler struct {
	uc CandlesUsecase
}

// NewCandlesHandler は指定されたusecaseでCandlesHandlerの新しいインスタンスを生成します。
func NewCandlesHandler(uc CandlesUsecase) *CandlesHandler {
	return &CandlesHandler{uc: uc}
}

// GetCandlesHandler は銘柄と表示範囲を受け取り、ローソク足データを上流APIと同じ形式のJSONで返します。
//
// エンドポイント例:
// GET /candles?symbol=AAPL&range=1M&limit=500
func (h *CandlesHandler) GetCandlesHandler(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: domain.ErrSymbolRequired.Error()})
		return
	}

	var window entity.Window
	if r := c.Query("range"); r != "" {
		w, err := entity.ParseWindow(r)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
			return
		}
		window = w
	}
	// 不正な値は0となり、usecase側でデフォルト値が使われる
	limit, _ := strconv.Atoi(c.Query("limit"))

	candles, err := h.uc.GetCandles(c.Request.Context(), symbol, window, c.Query("interval"), limit)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, domain.ErrSymbolRequired) || errors.Is(err, domain.ErrUnknownWindow) {
			status = http.StatusBadRequest
		}
		c.JSON(status, dto.ErrorResponse{Error: err.Error()})
		return
	}

	out := make([]dto.CandleResponse, 0, len(candles))
	for _, x := range candles {
		out = append(out, dto.CandleResponse{
			Time:   x.Time,
			Open:   x.Open,
			High:   x.High,
			Low:    x.Low,
			Close:  x.Close,
			Volume: x.Volume,
		})
	}

	c.JSON(http.StatusOK, dto.CandlesResponse{Candles: out})
}

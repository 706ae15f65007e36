package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"chart_backend/internal/feature/symbollist/domain/entity"
	"chart_backend/internal/feature/symbollist/transport/http/dto"
)

// SymbolUsecase は銘柄情報に関するユースケースのインターフェースです。
type SymbolUsecase interface {
	ListActiveSymbols(ctx context.Context) ([]entity.Symbol, error)
}

// SymbolHandler は銘柄情報に関するHTTPリクエストを処理します。
type SymbolHandler struct {
	uc SymbolUsecase
}

// NewSymbolHandler は新しい SymbolHandler を作成します。
func NewSymbolHandler(uc SymbolUsecase) *SymbolHandler {
	return &SymbolHandler{uc: uc}
}

// List はフィードで配信中の銘柄一覧を返します。
// Usecaseでエラーが発生した場合は500 Internal Server Errorを返します。
func (h *SymbolHandler) List(c *gin.Context) {
	symbols, err := h.uc.ListActiveSymbols(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]dto.SymbolItem, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, dto.SymbolItem{Code: s.Code, Name: s.Name, Source: s.Source})
	}
	c.JSON(http.StatusOK, out)
}

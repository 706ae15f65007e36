package entity

import (
	"fmt"
	"strings"

	"chart_backend/internal/feature/candles/domain"
)

// Window は表示範囲を表す名前付きの相対期間です。
type Window string

const (
	WindowDay      Window = "1D"
	WindowWeek     Window = "1W"
	WindowMonth    Window = "1M"
	WindowQuarter  Window = "3M"
	WindowHalfYear Window = "6M"
	WindowYTD      Window = "YTD"
	WindowYear     Window = "1Y"
	WindowFiveYear Window = "5Y"
	WindowAll      Window = "All"
)

// Windows は選択可能なWindowの一覧です（表示順）。
var Windows = []Window{
	WindowDay, WindowWeek, WindowMonth, WindowQuarter, WindowHalfYear,
	WindowYTD, WindowYear, WindowFiveYear, WindowAll,
}

// Valid はWindowが既知の値であるかを返します。
func (w Window) Valid() bool {
	for _, v := range Windows {
		if v == w {
			return true
		}
	}
	return false
}

func (w Window) String() string {
	return string(w)
}

// ParseWindow は文字列をWindowに変換します。大文字小文字は区別しません。
func ParseWindow(s string) (Window, error) {
	for _, v := range Windows {
		if strings.EqualFold(string(v), strings.TrimSpace(s)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownWindow, s)
}

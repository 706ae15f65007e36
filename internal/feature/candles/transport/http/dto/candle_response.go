package dto

// CandleResponse はロウソク足データのレスポンスDTOです。
type CandleResponse struct {
	Time   int64    `json:"time"`             // エポック秒（UTC）
	Open   float64  `json:"open"`             // 始値
	High   float64  `json:"high"`             // 高値
	Low    float64  `json:"low"`              // 安値
	Close  float64  `json:"close"`            // 終値
	Volume *float64 `json:"volume,omitempty"` // 出来高
}

// CandlesResponse は GET /candles のレスポンスです。
type CandlesResponse struct {
	Candles []CandleResponse `json:"candles"`
}

// ErrorResponse はエラー時のレスポンスです。
type ErrorResponse struct {
	Error string `json:"error"`
}

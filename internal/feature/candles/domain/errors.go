// Package domain はcandlesフィーチャーのドメインエラーを定義します。
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport はローソク足ソースから応答を得られなかったことを表すエラー種別です。
	// ネットワークエラー、タイムアウト、2xx以外のステータス、デコードできない本文が該当します。
	ErrTransport = errors.New("candle source transport failure")

	// ErrUnknownWindow はWindowが既知の値でない場合に返されます。
	ErrUnknownWindow = errors.New("unknown window")

	// ErrSymbolRequired は銘柄が指定されていない場合に返されます。
	ErrSymbolRequired = errors.New("symbol is required")
)

// TransportError は失敗したローソク足ソースへのリクエストを表します。
// すべてのTransportErrorは errors.Is(err, ErrTransport) でtrueになります。
type TransportError struct {
	Op         string // 例: "GET /candles"
	StatusCode int    // 応答を受け取れなかった場合は0
	Timeout    bool
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s: timeout: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: http %d", e.Op, e.StatusCode)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

package http

import (
	"net"
	"net/http"
	"time"
)

// DefaultUserAgent は上流APIへのリクエストに付与するUser-Agentです。
const DefaultUserAgent = "chart-backend/1.0"

// NewHTTPClient は上流APIの呼び出し用に設定されたHTTPクライアントを作成します。
// http.DefaultClientにはタイムアウトがないため、外部呼び出しには常にこのクライアントを使います。
// timeoutはリクエスト全体の上限で、0の場合はcontextの期限だけに従います。
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{next: t, ua: DefaultUserAgent},
	}
}

// userAgentTransport はUser-Agentが未設定のリクエストに既定値を付与します。
type userAgentTransport struct {
	next http.RoundTripper
	ua   string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.ua)
	return t.next.RoundTrip(r)
}

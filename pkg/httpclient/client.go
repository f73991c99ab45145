package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// headerRequestID はリクエストIDを伝播するHTTPヘッダー名。
const headerRequestID = "X-Request-Id"

// Client は上流API呼び出し用のHTTPクライアント。
// go-openaiの HTTPDoer インターフェースを満たす。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
}

// New は新しいHTTPクライアントを生成する。
// headerTimeoutにはレスポンスヘッダーを待つ最大時間を指定する。0以下の場合は無制限。
func New(headerTimeout time.Duration) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if headerTimeout > 0 {
		transport.ResponseHeaderTimeout = headerTimeout
	}
	return &Client{
		httpClient: &http.Client{Transport: transport},
	}
}

// Do はHTTPリクエストを送信する。
// コンテキストにリクエストIDがあり、ヘッダーが未設定であれば付与する。
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if id, ok := RequestIDFrom(req.Context()); ok && req.Header.Get(headerRequestID) == "" {
		req.Header.Set(headerRequestID, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	return resp, nil
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyRequestID はコンテキストにリクエストIDを格納するためのキー。
const contextKeyRequestID contextKey = "request_id"

// WithRequestID はコンテキストにリクエストIDを設定する。
// 上流API呼び出し時にリクエストIDを伝播するために使用する。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// RequestIDFrom はコンテキストからリクエストIDを取得する。
func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKeyRequestID).(string)
	return id, ok && id != ""
}

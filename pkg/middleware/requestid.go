package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nao1215/quill/pkg/httpclient"
)

// HeaderRequestID はリクエストIDを伝播するHTTPヘッダー名。
const HeaderRequestID = "X-Request-Id"

// ctxKeyRequestID はリクエストIDをGinコンテキストに格納するキー。
const ctxKeyRequestID = "request_id"

// RequestID はリクエストごとにX-Request-Idを割り当てるGinミドルウェアを返す。
// クライアントが指定した値があればそれを使い、無ければUUIDを生成する。
// IDはレスポンスヘッダー、Ginコンテキスト、上流呼び出し用のcontext.Contextに設定する。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
			// apperror.Abortがリクエストヘッダーから読むため書き戻す
			c.Request.Header.Set(HeaderRequestID, id)
		}
		c.Header(HeaderRequestID, id)
		c.Set(ctxKeyRequestID, id)
		c.Request = c.Request.WithContext(httpclient.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// GetRequestID はGinコンテキストからリクエストIDを取得する。
func GetRequestID(c *gin.Context) string {
	return c.GetString(ctxKeyRequestID)
}

package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// ctxKeyLogger はリクエスト単位のロガーをGinコンテキストに格納するキー。
const ctxKeyLogger = "logger"

// Logging はリクエスト単位のロガーを用意し、アクセスログを出力するGinミドルウェアを返す。
// RequestIDミドルウェアの後に適用すること。
func Logging(l *slog.Logger) gin.HandlerFunc {
	if l == nil {
		l = slog.Default()
	}
	return func(c *gin.Context) {
		reqLogger := l
		if rid := GetRequestID(c); rid != "" {
			reqLogger = reqLogger.With(slog.String("request_id", rid))
		}
		c.Set(ctxKeyLogger, reqLogger)

		start := time.Now()
		c.Next()

		reqLogger.LogAttrs(c.Request.Context(), slog.LevelInfo, "HTTPリクエスト",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("dur", time.Since(start)),
			slog.Int("bytes", c.Writer.Size()),
		)
	}
}

// Logger はGinコンテキストからリクエスト単位のロガーを取得する。
// Loggingミドルウェアが適用されていない場合は slog.Default() を返す。
func Logger(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ctxKeyLogger); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}

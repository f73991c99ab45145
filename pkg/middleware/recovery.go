package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/nao1215/quill/pkg/apperror"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時にログを出力し、500エラーを返す。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				Logger(c).Error("パニックが発生しました",
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"panic", r,
				)
				apperror.Abort(c, apperror.New(apperror.KindInternal, "内部サーバーエラーが発生しました"))
			}
		}()
		c.Next()
	}
}

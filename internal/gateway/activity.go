package gateway

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/quill/pkg/apperror"
	"github.com/nao1215/quill/pkg/event"
	"github.com/nao1215/quill/pkg/middleware"
)

const (
	// defaultActivityLimit はlimit未指定時の取得件数。
	defaultActivityLimit = 20
	// maxActivityLimit は取得件数の上限。
	maxActivityLimit = 100
)

// activityResponse は監査ログ取得のレスポンス。
type activityResponse struct {
	Events []event.Event `json:"events"`
}

// handleActivity は認証済みユーザーの最近の監査イベントを返すハンドラを返す。
func (s *Server) handleActivity() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultActivityLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				apperror.Abort(c, apperror.New(apperror.KindBadRequest, "limitには1以上の整数を指定してください"))
				return
			}
			limit = min(n, maxActivityLimit)
		}

		if s.audit == nil {
			c.JSON(http.StatusOK, activityResponse{Events: []event.Event{}})
			return
		}

		events, err := s.audit.ListBySubject(c.Request.Context(), middleware.GetSubject(c), limit)
		if err != nil {
			middleware.Logger(c).Error("監査ログの取得に失敗しました", "error", err)
			apperror.Abort(c, apperror.Wrap(apperror.KindInternal, "監査ログの取得に失敗しました", err))
			return
		}

		c.JSON(http.StatusOK, activityResponse{Events: events})
	}
}

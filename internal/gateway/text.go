package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nao1215/quill/internal/relay"
	"github.com/nao1215/quill/internal/textop"
	"github.com/nao1215/quill/pkg/apperror"
	"github.com/nao1215/quill/pkg/event"
	"github.com/nao1215/quill/pkg/metrics"
	"github.com/nao1215/quill/pkg/middleware"
)

// handleTextOperation はテキスト処理を上流に中継し、SSEで配信するハンドラを返す。
// リクエストの検証エラーはストリーム開始前に400で返す。
func (s *Server) handleTextOperation(op textop.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req textop.Request
		var err error
		if c.Request.Method == http.MethodGet {
			err = c.ShouldBindQuery(&req)
		} else {
			err = c.ShouldBindJSON(&req)
		}
		if err != nil {
			apperror.Abort(c, bindError(err))
			return
		}

		prompt, err := textop.Prompt(op, req)
		if err != nil {
			apperror.Abort(c, err)
			return
		}

		subject := middleware.GetSubject(c)
		logger := middleware.Logger(c).With("operation", string(op), "subject", subject)

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()

		start := time.Now()
		finish := s.metrics.StreamStarted(string(op))
		events := s.bridge.Relay(ctx, prompt, relay.ModelConfig{
			Model: s.cfg.OpenAI.Model,
			User:  subject,
		})
		summary := relay.WriteSSE(ctx, c.Writer, events, s.cfg.Stream.KeepAlive)
		// 書き込みが途中で終わった場合もプロデューサーを止める
		cancel()

		outcome, eventType := streamOutcome(summary)
		finish(outcome, summary.Fragments)
		s.record(c, subject, eventType, event.StreamData{
			Operation: string(op),
			Fragments: summary.Fragments,
			Error:     summary.Err,
			RequestID: middleware.GetRequestID(c),
		})
		logger.Info("ストリームを終了しました",
			"outcome", outcome,
			"fragments", summary.Fragments,
			"dur", time.Since(start),
		)
	}
}

// streamOutcome は配信結果をメトリクスのラベルと監査イベントの種類に変換する。
func streamOutcome(summary relay.Summary) (string, event.Type) {
	switch {
	case summary.Err != "":
		return metrics.OutcomeFailed, event.TypeStreamFailed
	case summary.Completed:
		return metrics.OutcomeCompleted, event.TypeStreamCompleted
	default:
		return metrics.OutcomeAborted, event.TypeStreamAborted
	}
}

// bindError はバインドの失敗をbad_requestに変換する。
// 必須チェックの失敗とボディの構文エラーでメッセージを分ける。
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperror.Wrap(apperror.KindBadRequest, "textは必須です", err)
	}
	return apperror.Wrap(apperror.KindBadRequest, "リクエストボディが不正です", err)
}

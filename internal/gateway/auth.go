package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/quill/pkg/apperror"
	"github.com/nao1215/quill/pkg/event"
	"github.com/nao1215/quill/pkg/middleware"
)

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse はログイン成功時のレスポンス。
type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleLogin はログインを処理するハンドラを返す。
// 成功時はトークンをJSONで返し、同じトークンをCookieにも設定する。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperror.Abort(c, apperror.Wrap(apperror.KindBadRequest, "リクエストボディが不正です", err))
			return
		}

		data := event.LoginData{
			RemoteAddr: c.ClientIP(),
			RequestID:  middleware.GetRequestID(c),
		}

		token, expiresAt, err := s.credentials.Login(req.Username, req.Password)
		if err != nil {
			s.metrics.ObserveLogin(false)
			if apperror.KindOf(err) == apperror.KindInvalidCredentials {
				s.record(c, req.Username, event.TypeLoginFailed, data)
				middleware.Logger(c).Info("ログインに失敗しました", "username", req.Username)
			} else {
				middleware.Logger(c).Error("トークンの発行に失敗しました", "error", err)
			}
			apperror.Abort(c, err)
			return
		}

		s.metrics.ObserveLogin(true)
		s.record(c, req.Username, event.TypeLoginSucceeded, data)
		middleware.Logger(c).Info("ログインしました", "username", req.Username)

		// ブラウザのクライアントがトークンを読むためHttpOnlyは付けない
		c.SetSameSite(s.sameSite)
		c.SetCookie(middleware.AuthCookieName, token, 0, "/", s.cfg.Cookie.Domain, s.cfg.Cookie.Secure, false)
		c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
	}
}

// handleLogout はログインCookieを削除するハンドラを返す。
// トークン自体は失効させない。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetSameSite(s.sameSite)
		c.SetCookie(middleware.AuthCookieName, "", -1, "/", s.cfg.Cookie.Domain, s.cfg.Cookie.Secure, false)
		c.Status(http.StatusNoContent)
	}
}

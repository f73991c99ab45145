package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/quill/internal/auth"
	"github.com/nao1215/quill/internal/config"
	"github.com/nao1215/quill/internal/relay"
	"github.com/nao1215/quill/internal/textop"
	"github.com/nao1215/quill/internal/upstream"
	"github.com/nao1215/quill/pkg/apperror"
	"github.com/nao1215/quill/pkg/event"
	"github.com/nao1215/quill/pkg/httpclient"
	"github.com/nao1215/quill/pkg/metrics"
	"github.com/nao1215/quill/pkg/middleware"
)

// AuditLog は監査ログの記録先。
type AuditLog interface {
	Append(ctx context.Context, ev *event.Event) error
	ListBySubject(ctx context.Context, subject string, limit int) ([]event.Event, error)
}

// Dependencies はサーバーが利用する外部コンポーネント。
// nilのフィールドは設定から既定の実装を生成する。Auditがnilの場合は監査ログを記録しない。
type Dependencies struct {
	// Upstream は上流の言語モデルAPI。
	Upstream relay.Upstream
	// Audit は監査ログ。
	Audit AuditLog
	// Metrics はPrometheusメトリクス。
	Metrics *metrics.Metrics
	// Logger はロガー。
	Logger *slog.Logger
}

// Server はゲートウェイのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg は起動時に読み込んだ設定。
	cfg *config.Config
	// tokens はセッショントークンの発行と検証を行う。
	tokens *auth.TokenService
	// credentials はログイン時の資格情報を検証する。
	credentials *auth.CredentialGate
	// bridge は上流のストリームをイベントに変換する。
	bridge *relay.Bridge
	// audit は監査ログ。nilの場合は記録しない。
	audit AuditLog
	// metrics はPrometheusメトリクス。
	metrics *metrics.Metrics
	// logger はリクエストに紐づかないログの出力先。
	logger *slog.Logger
	// sameSite はログインCookieのSameSite属性。
	sameSite http.SameSite
}

// NewServer は新しいGatewayサーバーを生成する。
func NewServer(cfg *config.Config, deps Dependencies) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}
	sameSite, err := cfg.Cookie.SameSiteMode()
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New(nil)
	}
	up := deps.Upstream
	if up == nil {
		up = upstream.New(upstream.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			HTTPClient: httpclient.New(cfg.OpenAI.HeaderTimeout),
		})
	}

	tokens := auth.NewTokenService([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenLifetime())
	credentials := auth.NewCredentialGate(auth.Identity{
		Username:     cfg.Auth.Username,
		Password:     cfg.Auth.Password,
		PasswordHash: cfg.Auth.PasswordHash,
	}, tokens)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(cfg.CORS.Origins()))

	s := &Server{
		router:      router,
		cfg:         cfg,
		tokens:      tokens,
		credentials: credentials,
		bridge:      relay.NewBridge(up, relay.WithBuffer(cfg.Stream.Buffer), relay.WithLogger(logger)),
		audit:       deps.Audit,
		metrics:     m,
		logger:      logger,
		sameSite:    sameSite,
	}
	s.setupRoutes()

	return s, nil
}

// Handler はサーバーのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ログイン・ログアウト（認証不要）
	authGroup := s.router.Group("/api/auth")
	{
		authGroup.POST("/login", s.handleLogin())
		authGroup.POST("/logout", s.handleLogout())
	}

	// 認証必須のAPIエンドポイント
	api := s.router.Group("/api")
	api.Use(middleware.JWTAuth(middleware.AuthConfig{
		Validator: s.tokens,
		OnReject: func(kind apperror.Kind) {
			s.metrics.ObserveRejection(string(kind))
		},
	}))
	{
		text := api.Group("/text")
		for _, op := range textop.Operations() {
			// GETはEventSourceからの利用、POSTはJSONボディでの利用
			text.GET("/"+string(op), s.handleTextOperation(op))
			text.POST("/"+string(op), s.handleTextOperation(op))
		}

		api.GET("/activity", s.handleActivity())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
}

// record は監査ログにイベントを追記する。失敗はログに出力するのみ。
func (s *Server) record(c *gin.Context, subject string, eventType event.Type, data any) {
	if s.audit == nil {
		return
	}

	ev, err := event.New(subject, eventType, data)
	if err != nil {
		middleware.Logger(c).Error("監査イベントの生成に失敗しました", "error", err)
		return
	}
	// クライアントが切断していても記録する
	ctx := context.WithoutCancel(c.Request.Context())
	if err := s.audit.Append(ctx, ev); err != nil {
		middleware.Logger(c).Error("監査イベントの記録に失敗しました", "event_type", string(eventType), "error", err)
	}
}

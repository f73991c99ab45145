// テキスト処理ゲートウェイのエントリポイント。
// ログイン、JWT認証、上流の言語モデルAPIからのSSE中継を担当する。
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/quill/internal/audit"
	"github.com/nao1215/quill/internal/config"
	"github.com/nao1215/quill/internal/gateway"
)

func main() {
	configPath := flag.String("config", "", "設定ファイルのパス（.envまたはYAML）")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := setupLogger(cfg.Env)
	slog.SetDefault(logger)

	if cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Gatewayサービスが異常終了しました", "error", err)
		os.Exit(1)
	}
}

// run は依存関係を組み立ててHTTPサーバーを起動し、シグナルを受けるまで待機する。
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := gateway.Dependencies{Logger: logger}
	if cfg.Audit.Enabled() {
		store, err := audit.Open(ctx, cfg.Audit.Path)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("監査ログDBのクローズに失敗しました", "error", err)
			}
		}()
		deps.Audit = store
		logger.Info("監査ログを有効化しました", "path", cfg.Audit.Path)
	}

	server, err := gateway.NewServer(cfg, deps)
	if err != nil {
		return err
	}

	srv := newHTTPServer(ctx, cfg.Server.Addr(), server.Handler())

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Gatewayサービスを起動します", "addr", srv.Addr, "env", cfg.Env, "model", cfg.OpenAI.Model)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Gatewayサービスを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Gatewayサービスを停止しました")
	return nil
}

// newHTTPServer はHTTPサーバーを生成する。
// リクエストのコンテキストはctxから派生するため、シグナル受信時に配信中のストリームも止まる。
func newHTTPServer(ctx context.Context, addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}

// setupLogger は実行環境に応じたロガーを生成する。
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case config.EnvDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case config.EnvProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// DefaultBuffer はイベントチャネルの既定の容量。
const DefaultBuffer = 100

// Message はチャット補完リクエストのメッセージ。
type Message struct {
	// Role は発言者の役割。
	Role string
	// Content はメッセージ本文。
	Content string
}

// ChatRequest は上流に送るストリーミングのチャット補完リクエスト。
type ChatRequest struct {
	Model    string
	Messages []Message
	Stream   bool
	// User は上流での利用者識別子。
	User string
}

// Chunk は上流から受信した1回分の応答。
type Chunk struct {
	// Fragments は選択肢ごとの差分テキスト。空文字列を含むことがある。
	Fragments []string
}

// UpstreamStream は上流のストリーミング応答。
// Recv は終端で io.EOF を返す。
type UpstreamStream interface {
	Recv() (Chunk, error)
	Close() error
}

// Upstream はストリーミングのチャット補完を開始する上流のプロバイダー。
type Upstream interface {
	OpenStream(ctx context.Context, req ChatRequest) (UpstreamStream, error)
}

// ModelConfig はリクエストごとのモデル設定。
type ModelConfig struct {
	// Model は使用するモデル名。
	Model string
	// User は上流に伝える利用者識別子。空の場合は送らない。
	User string
}

// Bridge は上流のストリームをイベントのチャネルに変換する。
// 並行に呼び出しても安全。
type Bridge struct {
	upstream Upstream
	buffer   int
	logger   *slog.Logger
}

// Option はBridgeの生成オプション。
type Option func(*Bridge)

// WithBuffer はイベントチャネルの容量を設定する。0以下の値は無視する。
func WithBuffer(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBridge は新しいBridgeを生成する。
func NewBridge(up Upstream, opts ...Option) *Bridge {
	b := &Bridge{
		upstream: up,
		buffer:   DefaultBuffer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Buffer はイベントチャネルの容量を返す。
func (b *Bridge) Buffer() int {
	return b.buffer
}

// Relay はpromptを上流に送り、応答をイベントとして返すチャネルを返す。
//
// 受信側が生きている限り、最後のイベントは必ずdoneとなる。
// 上流の開始や受信に失敗した場合はerrorイベントを1つ送ってからdoneを送る。
// ctxがキャンセルされると上流の受信を止め、ストリームを閉じてチャネルを閉じる。
func (b *Bridge) Relay(ctx context.Context, prompt string, model ModelConfig) <-chan Event {
	out := make(chan Event, b.buffer)
	req := ChatRequest{
		Model:    model.Model,
		Messages: []Message{{Role: "user", Content: prompt}},
		Stream:   true,
		User:     model.User,
	}
	go b.produce(ctx, out, req)
	return out
}

// produce はプロデューサーのgoroutineの本体。
func (b *Bridge) produce(ctx context.Context, out chan<- Event, req ChatRequest) {
	defer close(out)

	err := b.pump(ctx, out, req)
	if ctx.Err() != nil {
		b.logger.Debug("クライアントが切断したためストリームを中断しました")
		return
	}
	if err != nil {
		b.logger.Error("上流ストリームでエラーが発生しました", "error", err)
		if !send(ctx, out, Failure(UpstreamFailureMessage)) {
			return
		}
	}
	send(ctx, out, Done())
}

// pump は上流のストリームを開き、断片をoutに送る。
// 上流のパニックはエラーとして返す。
func (b *Bridge) pump(ctx context.Context, out chan<- Event, req ChatRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("上流ストリームでパニックが発生しました: %v", r)
		}
	}()

	stream, err := b.upstream.OpenStream(ctx, req)
	if err != nil {
		return fmt.Errorf("上流ストリームの開始に失敗: %w", err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			b.logger.Debug("上流ストリームのクローズに失敗しました", "error", cerr)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("上流ストリームの受信に失敗: %w", err)
		}
		for _, fragment := range chunk.Fragments {
			if fragment == "" {
				continue
			}
			if !send(ctx, out, Fragment(fragment)) {
				return ctx.Err()
			}
		}
	}
}

// send はイベントを送る。チャネルが満杯の間はブロックし、
// ctxがキャンセルされた場合はfalseを返す。
func send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

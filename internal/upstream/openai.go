// Package upstream はOpenAI互換のチャット補完APIをストリームブリッジの上流として提供する。
package upstream

import (
	"context"
	"fmt"
	"strings"

	"github.com/nao1215/quill/internal/relay"
	openai "github.com/sashabaranov/go-openai"
)

// Config は上流APIクライアントの設定。
type Config struct {
	// APIKey はAPIキー。
	APIKey string
	// BaseURL はAPIのベースURL。空の場合はOpenAIの既定値を使用する。
	BaseURL string
	// HTTPClient はHTTPリクエストの送信に使用するクライアント。nilの場合は既定のクライアントを使用する。
	HTTPClient openai.HTTPDoer
}

// Provider はgo-openaiを使ったrelay.Upstreamの実装。
type Provider struct {
	client *openai.Client
}

// New は新しいProviderを生成する。
func New(cfg Config) *Provider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	}
	return &Provider{client: openai.NewClientWithConfig(clientConfig)}
}

// OpenStream はストリーミングのチャット補完を開始する。
func (p *Provider) OpenStream(ctx context.Context, req relay.ChatRequest) (relay.UpstreamStream, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   req.Stream,
		User:     req.User,
	})
	if err != nil {
		return nil, fmt.Errorf("チャット補完ストリームの作成に失敗: %w", err)
	}
	return &chatStream{stream: stream}, nil
}

// chatStream はgo-openaiのストリームをrelay.UpstreamStreamに適合させる。
type chatStream struct {
	stream *openai.ChatCompletionStream
}

// Recv は次の応答を受信し、選択肢ごとの差分テキストを返す。
// 終端ではgo-openaiが返すio.EOFをそのまま返す。
func (s *chatStream) Recv() (relay.Chunk, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return relay.Chunk{}, err
	}

	fragments := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		fragments = append(fragments, choice.Delta.Content)
	}
	return relay.Chunk{Fragments: fragments}, nil
}

func (s *chatStream) Close() error {
	return s.stream.Close()
}

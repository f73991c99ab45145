package textop

import (
	"testing"

	"github.com/nao1215/quill/pkg/apperror"
)

// TestPrompt はPrompt関数を検証する。
func TestPrompt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		op   Operation
		req  Request
		want string
	}{
		{
			name: "言い換え",
			op:   Paraphrase,
			req:  Request{Text: "hello"},
			want: "Paraphrase the following text while maintaining its original meaning:\n\nhello",
		},
		{
			name: "拡張",
			op:   Expand,
			req:  Request{Text: "hello"},
			want: "Expand the following text with more details and explanations:\n\nhello",
		},
		{
			name: "要約",
			op:   Summarize,
			req:  Request{Text: "hello"},
			want: "Summarize the following text concisely while preserving the key points:\n\nhello",
		},
		{
			name: "英語への翻訳",
			op:   Translate,
			req:  Request{Text: "hola", TargetLanguage: English},
			want: "Translate the following text to English:\n\nhola",
		},
		{
			name: "スペイン語への翻訳",
			op:   Translate,
			req:  Request{Text: "hello", TargetLanguage: Spanish},
			want: "Translate the following text to Spanish:\n\nhello",
		},
		{
			name: "翻訳以外の操作では翻訳先を無視すること",
			op:   Summarize,
			req:  Request{Text: "hello", TargetLanguage: "klingon"},
			want: "Summarize the following text concisely while preserving the key points:\n\nhello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Prompt(tt.op, tt.req)
			if err != nil {
				t.Fatalf("Prompt()でエラーが発生: %v", err)
			}
			if got != tt.want {
				t.Errorf("Prompt() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestPromptInvalid は不正なリクエストでbad_requestが返ることを検証する。
func TestPromptInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		op   Operation
		req  Request
	}{
		{name: "テキストが空", op: Paraphrase, req: Request{}},
		{name: "テキストが空白のみ", op: Expand, req: Request{Text: " \n\t"}},
		{name: "翻訳先が未指定", op: Translate, req: Request{Text: "hello"}},
		{name: "翻訳先が未対応", op: Translate, req: Request{Text: "hello", TargetLanguage: "french"}},
		{name: "翻訳先の大文字は受け付けない", op: Translate, req: Request{Text: "hello", TargetLanguage: "English"}},
		{name: "未知の操作", op: Operation("shout"), req: Request{Text: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Prompt(tt.op, tt.req)
			if err == nil {
				t.Fatal("エラーを返すべき")
			}
			if got := apperror.KindOf(err); got != apperror.KindBadRequest {
				t.Errorf("KindOf() = %q, want %q", got, apperror.KindBadRequest)
			}
		})
	}
}

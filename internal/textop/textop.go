// Package textop はテキスト処理操作（言い換え・拡張・要約・翻訳）の定義と
// 上流の言語モデルに送るプロンプトの組み立てを提供する。
package textop

import (
	"fmt"
	"strings"

	"github.com/nao1215/quill/pkg/apperror"
)

// Operation はテキスト処理操作の種類。
type Operation string

const (
	// Paraphrase は意味を保ったまま言い換える操作。
	Paraphrase Operation = "paraphrase"
	// Expand は詳細と説明を加えて拡張する操作。
	Expand Operation = "expand"
	// Summarize は要点を保って要約する操作。
	Summarize Operation = "summarize"
	// Translate は指定された言語に翻訳する操作。
	Translate Operation = "translate"
)

// Operations はサポートするすべての操作を返す。
func Operations() []Operation {
	return []Operation{Paraphrase, Expand, Summarize, Translate}
}

// Language は翻訳先の言語。
type Language string

const (
	// English は英語。
	English Language = "english"
	// Spanish はスペイン語。
	Spanish Language = "spanish"
)

// DisplayName はプロンプトに埋め込む言語名を返す。未知の言語は空文字列。
func (l Language) DisplayName() string {
	switch l {
	case English:
		return "English"
	case Spanish:
		return "Spanish"
	default:
		return ""
	}
}

// Request はテキスト処理リクエスト。
// GETではクエリパラメータ、POSTではJSONボディからバインドする。
type Request struct {
	// Text は処理対象のテキスト。
	Text string `form:"text" json:"text" binding:"required"`
	// TargetLanguage は翻訳先の言語。翻訳操作でのみ必須。
	TargetLanguage Language `form:"target_language" json:"target_language"`
}

// Validate は操作に対してリクエストが妥当であるかを検証する。
func (r Request) Validate(op Operation) error {
	if strings.TrimSpace(r.Text) == "" {
		return apperror.New(apperror.KindBadRequest, "textは必須です")
	}
	if op == Translate && r.TargetLanguage.DisplayName() == "" {
		return apperror.New(apperror.KindBadRequest, "target_languageにはenglishまたはspanishを指定してください")
	}
	return nil
}

// Prompt は操作とリクエストから上流に送るプロンプトを組み立てる。
func Prompt(op Operation, r Request) (string, error) {
	if err := r.Validate(op); err != nil {
		return "", err
	}

	switch op {
	case Paraphrase:
		return "Paraphrase the following text while maintaining its original meaning:\n\n" + r.Text, nil
	case Expand:
		return "Expand the following text with more details and explanations:\n\n" + r.Text, nil
	case Summarize:
		return "Summarize the following text concisely while preserving the key points:\n\n" + r.Text, nil
	case Translate:
		return fmt.Sprintf("Translate the following text to %s:\n\n%s", r.TargetLanguage.DisplayName(), r.Text), nil
	default:
		return "", apperror.New(apperror.KindBadRequest, fmt.Sprintf("未対応の操作です: %s", op))
	}
}

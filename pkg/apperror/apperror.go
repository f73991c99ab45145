// Package apperror はゲートウェイ全体で共有するエラー分類を提供する。
//
// すべての外部向けエラーは機械可読な Kind と人間向けの Message を持つ。
// ラップされた内部エラー（署名ライブラリのメッセージ等）はログにのみ出力し、
// クライアントには返さない。
package apperror

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind はエラーの種類を表す安定した識別子。
type Kind string

const (
	// KindAuthenticationRequired はトークンがどの経路からも提示されなかったことを表す。
	KindAuthenticationRequired Kind = "authentication_required"
	// KindInvalidToken は署名または構造が不正なトークンを表す。
	KindInvalidToken Kind = "invalid_token"
	// KindTokenExpired は署名は正しいが有効期限を過ぎたトークンを表す。
	KindTokenExpired Kind = "token_expired"
	// KindInvalidCredentials はログイン失敗を表す。ユーザー名とパスワードのどちらが誤っているかは区別しない。
	KindInvalidCredentials Kind = "invalid_credentials"
	// KindBadRequest は必須フィールドの欠落など不正なリクエストを表す。
	KindBadRequest Kind = "bad_request"
	// KindUpstream は上流の言語モデルAPIの呼び出し失敗を表す。
	KindUpstream Kind = "upstream_error"
	// KindInternal はエンコードや署名の失敗など予期しない内部エラーを表す。
	KindInternal Kind = "internal_error"
)

// Error はKindとメッセージを持つアプリケーションエラー。
type Error struct {
	// Kind はエラーの種類。
	Kind Kind
	// Message はクライアントに返す人間向けの説明。
	Message string
	// Err は原因となった内部エラー。クライアントには返さない。
	Err error
}

// New は原因を持たないエラーを生成する。
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap は原因エラーをラップしたエラーを生成する。
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

// Unwrap は原因エラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf はエラーチェーンからKindを取り出す。
// *Error を含まないエラーは KindInternal として扱う。
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsAuthentication は認証系（401を返す）のKindであるかを返す。
func (k Kind) IsAuthentication() bool {
	switch k {
	case KindAuthenticationRequired, KindInvalidToken, KindTokenExpired, KindInvalidCredentials:
		return true
	default:
		return false
	}
}

// HTTPStatus はKindに対応するHTTPステータスコードを返す。
func HTTPStatus(kind Kind) int {
	switch {
	case kind.IsAuthentication():
		return http.StatusUnauthorized
	case kind == KindBadRequest:
		return http.StatusBadRequest
	case kind == KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Body はエラーレスポンスのJSON本体。
type Body struct {
	// Code はKindの文字列表現。
	Code Kind `json:"code"`
	// Message は人間向けの説明。
	Message string `json:"message"`
	// RequestID はX-Request-Idの値。トレースに使用する。
	RequestID string `json:"request_id,omitempty"`
}

// Response はエラーレスポンスのルートオブジェクト。
type Response struct {
	// Error はエラー内容。
	Error Body `json:"error"`
}

// ToResponse はエラーをHTTPステータスとレスポンス本体に変換する。
// *Error 以外のエラーは詳細を隠して internal_error とする。
func ToResponse(err error) (int, Response) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, Response{
			Error: Body{Code: KindInternal, Message: "内部サーバーエラーが発生しました"},
		}
	}
	return HTTPStatus(appErr.Kind), Response{
		Error: Body{Code: appErr.Kind, Message: appErr.Message},
	}
}

// Abort はエラーレスポンスを書き込み、Ginのハンドラチェーンを中断する。
func Abort(c *gin.Context, err error) {
	status, resp := ToResponse(err)
	if rid := c.GetHeader("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}
	c.AbortWithStatusJSON(status, resp)
}

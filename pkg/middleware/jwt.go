package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/quill/internal/auth"
	"github.com/nao1215/quill/pkg/apperror"
)

// AuthCookieName はセッショントークンを保持するCookie名。
const AuthCookieName = "auth_token"

// ctxKeySubject は認証済みユーザー名をGinコンテキストに格納するキー。
const ctxKeySubject = "subject"

// TokenValidator はトークンの署名と構造を検証する。
// 有効期限の判定はJWTAuthが Claims.Expired で行う。
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// TokenExtractor はリクエストからトークン候補を取り出す。
// 候補が見つからない場合は false を返す。
type TokenExtractor func(r *http.Request) (string, bool)

// BearerHeader は "Authorization: Bearer <token>" からトークンを取り出す。
// Bearer以外のスキームは候補として扱わない。
func BearerHeader(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// StructuredCookie はパース済みCookieの auth_token からトークンを取り出す。
func StructuredCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(AuthCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// RawCookie はCookieヘッダーの生文字列から auth_token= のエントリを探す。
// プロキシがCookieヘッダーをカンマで連結した場合など、
// 標準のCookieパーサーが値を取りこぼすケースに対応する。
func RawCookie(r *http.Request) (string, bool) {
	prefix := AuthCookieName + "="
	for _, header := range r.Header.Values("Cookie") {
		entries := strings.FieldsFunc(header, func(c rune) bool { return c == ';' || c == ',' })
		for _, entry := range entries {
			if token, ok := strings.CutPrefix(strings.TrimSpace(entry), prefix); ok && token != "" {
				return token, true
			}
		}
	}
	return "", false
}

// DefaultExtractors はトークン抽出の既定の順序を返す。
// Authorizationヘッダー、パース済みCookie、Cookieヘッダーの生文字列の順に試す。
func DefaultExtractors() []TokenExtractor {
	return []TokenExtractor{BearerHeader, StructuredCookie, RawCookie}
}

// AuthConfig はJWTAuthミドルウェアの設定。
type AuthConfig struct {
	// Validator はトークンの署名検証を行う。
	Validator TokenValidator
	// Extractors はトークン抽出関数の一覧。先頭から順に試す。nilの場合はDefaultExtractorsを使用する。
	Extractors []TokenExtractor
	// Now は現在時刻を返す。nilの場合はtime.Nowを使用する。
	Now func() time.Time
	// OnReject は認証を拒否したときに理由を受け取る。メトリクス記録に使用する。
	OnReject func(apperror.Kind)
}

// Authenticate はリクエストを認証し、認証済みユーザー名を返す。
// 拒否する場合は authentication_required / invalid_token / token_expired のいずれかのエラーを返す。
func Authenticate(r *http.Request, cfg AuthConfig) (string, error) {
	extractors := cfg.Extractors
	if extractors == nil {
		extractors = DefaultExtractors()
	}

	var token string
	for _, extract := range extractors {
		if candidate, ok := extract(r); ok {
			token = candidate
			break
		}
	}
	if token == "" {
		return "", apperror.New(apperror.KindAuthenticationRequired, "認証が必要です")
	}

	claims, err := cfg.Validator.Validate(token)
	if err != nil {
		return "", apperror.Wrap(apperror.KindInvalidToken, "トークンが無効です", err)
	}

	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	if claims.Expired(now()) {
		return "", apperror.New(apperror.KindTokenExpired, "トークンの有効期限が切れています")
	}
	return claims.Subject, nil
}

// JWTAuth はセッショントークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに "subject" を設定する。
// 失敗した場合は401を返し、後続のハンドラは実行されない。
func JWTAuth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, err := Authenticate(c.Request, cfg)
		if err != nil {
			kind := apperror.KindOf(err)
			Logger(c).Debug("認証を拒否しました", "reason", string(kind), "error", err)
			if cfg.OnReject != nil {
				cfg.OnReject(kind)
			}
			apperror.Abort(c, err)
			return
		}

		c.Set(ctxKeySubject, subject)
		c.Next()
	}
}

// GetSubject はGinコンテキストから認証済みユーザー名を取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetSubject(c *gin.Context) string {
	subject, _ := c.Get(ctxKeySubject)
	if s, ok := subject.(string); ok {
		return s
	}
	return ""
}

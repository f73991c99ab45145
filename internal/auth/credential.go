package auth

import (
	"crypto/subtle"
	"time"

	"github.com/nao1215/quill/pkg/apperror"
	"golang.org/x/crypto/bcrypt"
)

// Identity はログインを許可する唯一のユーザー情報。
// Password と PasswordHash のどちらか一方を設定する。両方ある場合は PasswordHash を優先する。
type Identity struct {
	// Username はユーザー名。
	Username string
	// Password は平文のパスワード。
	Password string
	// PasswordHash はbcryptでハッシュ化したパスワード。
	PasswordHash string
}

// CredentialGate はユーザー名とパスワードを検証し、セッショントークンを発行する。
type CredentialGate struct {
	identity Identity
	tokens   *TokenService
}

// NewCredentialGate は新しいCredentialGateを生成する。
func NewCredentialGate(identity Identity, tokens *TokenService) *CredentialGate {
	return &CredentialGate{
		identity: identity,
		tokens:   tokens,
	}
}

// Login は認証情報を検証し、成功時にトークンと有効期限を返す。
// ユーザー名の誤りとパスワードの誤りは同一のエラーになる。
func (g *CredentialGate) Login(username, password string) (string, time.Time, error) {
	// ユーザー名の一致に関わらずパスワードも必ず検証する
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(g.identity.Username)) == 1
	passOK := g.verifyPassword(password)
	if !userOK || !passOK {
		return "", time.Time{}, apperror.New(apperror.KindInvalidCredentials, "ユーザー名またはパスワードが正しくありません")
	}
	return g.tokens.Issue(username)
}

// verifyPassword は設定されたパスワード（またはハッシュ）と照合する。
func (g *CredentialGate) verifyPassword(password string) bool {
	if g.identity.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(g.identity.PasswordHash), []byte(password)) == nil
	}
	if g.identity.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(g.identity.Password)) == 1
}

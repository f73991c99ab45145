package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nao1215/quill/pkg/apperror"
)

// Claims はセッショントークンのクレーム（ペイロード）を表す。
// sub（ユーザー名）、iat（発行日時）、exp（有効期限）のみを使用する。
// 発行後に変更されることはない。
type Claims struct {
	jwt.RegisteredClaims
}

// Expired はnowの時点でトークンが有効期限切れであるかを返す。
// exp と同時刻も期限切れとして扱うため、有効期間0で発行したトークンは即座に失効する。
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return !now.Before(c.ExpiresAt.Time)
}

// TokenService はセッショントークンの発行と署名検証を行う。
// 秘密鍵と有効期間は生成時に固定され、並行に呼び出しても安全。
type TokenService struct {
	// secret はHS256署名用の秘密鍵。
	secret []byte
	// lifetime はトークンの有効期間。負の値も許容する（テストで期限切れトークンを作るため）。
	lifetime time.Duration
	// now は現在時刻を返す関数。
	now func() time.Time
}

// TokenOption はTokenServiceの生成オプション。
type TokenOption func(*TokenService)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService は新しいTokenServiceを生成する。
func NewTokenService(secret []byte, lifetime time.Duration, opts ...TokenOption) *TokenService {
	s := &TokenService{
		secret:   secret,
		lifetime: lifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue はsubjectを主体とするトークンを発行し、トークン文字列と有効期限を返す。
func (s *TokenService) Issue(subject string) (string, time.Time, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, apperror.Wrap(apperror.KindInternal, "トークンの署名に失敗しました", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Validate はトークンの署名と構造を検証し、クレームを返す。
// 有効期限は検証しない。期限切れの判定は Claims.Expired で別途行うこと。
func (s *TokenService) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInvalidToken, "トークンが無効です", err)
	}
	if !parsed.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, apperror.New(apperror.KindInvalidToken, "トークンが無効です")
	}
	return claims, nil
}

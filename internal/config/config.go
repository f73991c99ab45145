// Package config はゲートウェイの設定を読み込む。
//
// 読み込み元（優先度の高い順）:
//  1. -config フラグで指定したパス（YAMLまたは.env）
//  2. 環境変数 CONFIG_PATH
//  3. カレントディレクトリの .env
//  4. 環境変数のみ
//
// いずれの場合も最後に環境変数で上書きする。
package config

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// 実行環境。ロガーの選択に使用する。
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// dotEnvFile はカレントディレクトリから自動で読み込む設定ファイル名。
const dotEnvFile = ".env"

// Config はゲートウェイ全体の設定。
type Config struct {
	Env    string       `yaml:"env" env:"ENV" env-default:"local"`
	Server ServerConfig `yaml:"server"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Auth   AuthConfig   `yaml:"auth"`
	Cookie CookieConfig `yaml:"cookie"`
	CORS   CORSConfig   `yaml:"cors"`
	Stream StreamConfig `yaml:"stream"`
	Audit  AuditConfig  `yaml:"audit"`
}

// ServerConfig はHTTPサーバーの設定。
type ServerConfig struct {
	Host            string        `yaml:"host" env:"SERVER_HOST" env-default:"127.0.0.1"`
	Port            string        `yaml:"port" env:"SERVER_PORT" env-default:"3001"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Addr はリッスンアドレスを返す。
func (s ServerConfig) Addr() string { return net.JoinHostPort(s.Host, s.Port) }

// OpenAIConfig は上流の言語モデルAPIの設定。
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key" env:"OPENAI_API_KEY" env-required:"true"`
	BaseURL string `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model   string `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-3.5-turbo"`
	// HeaderTimeout は上流のレスポンスヘッダーを待つ最大時間。
	HeaderTimeout time.Duration `yaml:"header_timeout" env:"OPENAI_HEADER_TIMEOUT" env-default:"30s"`
}

// AuthConfig は認証の設定。
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	// JWTExpiration はトークンの有効期間（秒）。負の値も許容する。
	JWTExpiration int64  `yaml:"jwt_expiration" env:"JWT_EXPIRATION" env-default:"86400"`
	Username      string `yaml:"username" env:"AUTH_USERNAME" env-default:"neo"`
	Password      string `yaml:"password" env:"AUTH_PASSWORD"`
	// PasswordHash はbcryptハッシュ。設定されている場合はPasswordより優先する。
	PasswordHash string `yaml:"password_hash" env:"AUTH_PASSWORD_HASH"`
}

// TokenLifetime はトークンの有効期間を返す。
func (a AuthConfig) TokenLifetime() time.Duration {
	return time.Duration(a.JWTExpiration) * time.Second
}

// CookieConfig はログイン時に発行するCookieの設定。
type CookieConfig struct {
	Secure   bool   `yaml:"secure" env:"COOKIE_SECURE" env-default:"false"`
	SameSite string `yaml:"same_site" env:"COOKIE_SAME_SITE" env-default:"Lax"`
	Domain   string `yaml:"domain" env:"COOKIE_DOMAIN"`
}

// SameSiteMode はSameSite属性をhttp.SameSiteに変換する。大文字小文字は区別しない。
func (c CookieConfig) SameSiteMode() (http.SameSite, error) {
	switch strings.ToLower(c.SameSite) {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return http.SameSiteDefaultMode, fmt.Errorf("COOKIE_SAME_SITEが不正です: %q", c.SameSite)
	}
}

// CORSConfig はCORSの設定。
type CORSConfig struct {
	// AllowOrigins は許可するオリジンの一覧。"*" はすべてのオリジンを許可する。
	AllowOrigins []string `yaml:"allow_origins" env:"CORS_ALLOW_ORIGIN" env-separator:"," env-default:"http://localhost:3000,http://localhost:5173,http://127.0.0.1:3000,http://127.0.0.1:5173"`
}

// Origins は前後の空白と空要素を除いたオリジンの一覧を返す。
func (c CORSConfig) Origins() []string {
	origins := make([]string, 0, len(c.AllowOrigins))
	for _, o := range c.AllowOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// StreamConfig はストリームブリッジの設定。
type StreamConfig struct {
	Buffer    int           `yaml:"buffer" env:"STREAM_BUFFER" env-default:"100"`
	KeepAlive time.Duration `yaml:"keep_alive" env:"STREAM_KEEPALIVE" env-default:"15s"`
}

// AuditConfig は監査ログの設定。
type AuditConfig struct {
	// Path はSQLiteファイルのパス。空の場合は監査ログを無効にする。
	Path string `yaml:"path" env:"AUDIT_DB_PATH" env-default:"quill.db"`
}

// Enabled は監査ログが有効かどうかを返す。
func (a AuditConfig) Enabled() bool { return a.Path != "" }

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	var errs []error
	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEYは必須です"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRETは必須です"))
	}
	if c.Auth.Password == "" && c.Auth.PasswordHash == "" {
		errs = append(errs, errors.New("AUTH_PASSWORDまたはAUTH_PASSWORD_HASHのいずれかが必要です"))
	}
	if _, err := c.Cookie.SameSiteMode(); err != nil {
		errs = append(errs, err)
	}
	if c.Stream.Buffer <= 0 {
		errs = append(errs, fmt.Errorf("STREAM_BUFFERは1以上である必要があります: %d", c.Stream.Buffer))
	}
	return errors.Join(errs...)
}

// MustLoad は設定を読み込み、失敗した場合はパニックする。
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load は設定を読み込んで検証する。
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定が不正です: %w", err)
	}
	return cfg, nil
}

// read は優先順位に従って設定を読み込む。
func read(path string) (*Config, error) {
	var cfg Config

	readFile := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("設定ファイル %q が見つかりません: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
		}
		return &cfg, nil
	}

	if path != "" {
		return readFile(path)
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return readFile(envPath)
	}
	if _, err := os.Stat(dotEnvFile); err == nil {
		return readFile(dotEnvFile)
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("設定が見つかりません。-config、CONFIG_PATH、.env、環境変数のいずれかで指定してください: %w", err)
	}
	return &cfg, nil
}

// Package auth はセッショントークンの発行・検証とログイン認証を提供する。
//
// TokenService はHS256で署名されたJWTを発行し、署名と構造のみを検証する。
// 有効期限の判定は呼び出し側（認証ミドルウェア）が Claims.Expired で行う。
// CredentialGate は設定された単一のユーザー名とパスワードの組で
// ログインを検証し、成功時に TokenService でトークンを発行する。
package auth

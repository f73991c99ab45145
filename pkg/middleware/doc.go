// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// セッショントークンの検証（Authorizationヘッダー、Cookie、Cookieヘッダーの
// 生文字列の順に探索する）、リクエストIDの付与、アクセスログ、
// パニックリカバリ、CORS設定を含む。
package middleware

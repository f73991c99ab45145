// Package httpclient は上流の言語モデルAPIとの通信に使用するHTTPクライアントを提供する。
//
// ストリーミング応答を扱うため、リクエスト全体のタイムアウトではなく
// レスポンスヘッダー到着までのタイムアウトのみを設定する。
// コンテキストに設定されたリクエストIDをX-Request-Idヘッダーとして伝播する。
package httpclient

// Package gateway はテキスト処理ゲートウェイのHTTPサーバーを提供する。
//
// ログインによるセッショントークンの発行、保護されたルートでの認証、
// テキスト処理リクエストの上流の言語モデルAPIへの中継とSSEでの配信を担当する。
// 外部からアクセス可能な唯一の境界であり、上流のAPIキーはクライアントに渡さない。
package gateway

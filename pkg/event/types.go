// Package event は監査ログに記録するイベントの型を定義する。
package event

import (
	"encoding/json"
	"time"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeLoginSucceeded はログインに成功したことを表す。
	TypeLoginSucceeded Type = "LoginSucceeded"
	// TypeLoginFailed はログインに失敗したことを表す。
	TypeLoginFailed Type = "LoginFailed"

	// TypeStreamCompleted はテキスト処理のストリームがdoneまで配信されたことを表す。
	TypeStreamCompleted Type = "StreamCompleted"
	// TypeStreamFailed は上流のエラーでストリームが終了したことを表す。
	TypeStreamFailed Type = "StreamFailed"
	// TypeStreamAborted はクライアントの切断でストリームが中断されたことを表す。
	TypeStreamAborted Type = "StreamAborted"
)

// Event は監査ログの不変のイベントレコードを表す。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// Subject は操作したユーザー名。ログイン失敗では入力されたユーザー名。
	Subject string `json:"subject"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントの発生日時（UTC）。
	CreatedAt time.Time `json:"created_at"`
}

// LoginData はログインイベントのデータ。
type LoginData struct {
	// RemoteAddr はクライアントのIPアドレス。
	RemoteAddr string `json:"remote_addr"`
	// RequestID はリクエストID。
	RequestID string `json:"request_id,omitempty"`
}

// StreamData はストリームイベントのデータ。
type StreamData struct {
	// Operation はテキスト処理操作の種類。
	Operation string `json:"operation"`
	// Fragments は配信した断片の数。
	Fragments int `json:"fragments"`
	// Error は上流のエラーの説明。
	Error string `json:"error,omitempty"`
	// RequestID はリクエストID。
	RequestID string `json:"request_id,omitempty"`
}

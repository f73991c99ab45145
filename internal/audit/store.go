// Package audit はログインとテキスト処理ストリームの監査ログをSQLiteに記録する。
//
// イベントは追記のみで、更新や削除は行わない。
package audit

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nao1215/quill/pkg/event"
	"github.com/nao1215/quill/pkg/migration"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath はインメモリデータベースを開くためのパス。
const MemoryPath = ":memory:"

// Store はSQLiteに永続化する監査ログ。並行に呼び出しても安全。
type Store struct {
	db *sql.DB
}

// Open はpathのSQLiteデータベースを開き、マイグレーションを適用する。
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != MemoryPath {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("監査ログDBのオープンに失敗: %w", err)
	}
	if path == MemoryPath {
		// インメモリDBは接続ごとに別のDBになるため1接続に固定する
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("監査ログDBへの接続に失敗: %w", err)
	}
	if _, err := migration.Run(ctx, db, migrationsFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("監査ログDBのマイグレーションに失敗: %w", err)
	}

	return &Store{db: db}, nil
}

// Close はデータベースを閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

// Append はイベントを追記する。
func (s *Store) Append(ctx context.Context, ev *event.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, subject, event_type, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.Subject, string(ev.EventType), string(ev.Data), ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("イベントの追記に失敗: %w", err)
	}
	return nil
}

// ListBySubject はsubjectのイベントを新しい順に最大limit件返す。
func (s *Store) ListBySubject(ctx context.Context, subject string, limit int) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject, event_type, data, created_at FROM events
		 WHERE subject = ? ORDER BY seq DESC LIMIT ?`,
		subject, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]event.Event, 0, limit)
	for rows.Next() {
		var (
			ev        event.Event
			eventType string
			data      string
			createdAt string
		)
		if err := rows.Scan(&ev.ID, &ev.Subject, &eventType, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("イベントの読み取りに失敗: %w", err)
		}
		ev.EventType = event.Type(eventType)
		ev.Data = json.RawMessage(data)
		ev.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("イベント日時のパースに失敗: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗: %w", err)
	}
	return events, nil
}

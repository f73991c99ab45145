package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("レスポンスヘッダーのタイムアウトが設定されること", func(t *testing.T) {
		t.Parallel()

		client := New(5 * time.Second)
		transport, ok := client.httpClient.Transport.(*http.Transport)
		if !ok {
			t.Fatal("Transportが*http.Transportではない")
		}
		if transport.ResponseHeaderTimeout != 5*time.Second {
			t.Errorf("ResponseHeaderTimeout = %v, want 5s", transport.ResponseHeaderTimeout)
		}
	})

	t.Run("リクエスト全体のタイムアウトは設定されないこと", func(t *testing.T) {
		t.Parallel()

		client := New(5 * time.Second)
		if client.httpClient.Timeout != 0 {
			t.Errorf("Timeout = %v, want 0", client.httpClient.Timeout)
		}
	})
}

// TestDo はDoメソッドを検証する。
func TestDo(t *testing.T) {
	t.Parallel()

	t.Run("コンテキストのリクエストIDがヘッダーに付与されること", func(t *testing.T) {
		t.Parallel()

		var got string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("X-Request-Id")
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		ctx := WithRequestID(context.Background(), "req-123")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
		if err != nil {
			t.Fatalf("リクエストの作成に失敗: %v", err)
		}
		resp, err := New(time.Second).Do(req)
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		if got != "req-123" {
			t.Errorf("X-Request-Id = %q, want %q", got, "req-123")
		}
	})

	t.Run("既存のX-Request-Idヘッダーは上書きしないこと", func(t *testing.T) {
		t.Parallel()

		var got string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("X-Request-Id")
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		ctx := WithRequestID(context.Background(), "from-context")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
		if err != nil {
			t.Fatalf("リクエストの作成に失敗: %v", err)
		}
		req.Header.Set("X-Request-Id", "explicit")
		resp, err := New(time.Second).Do(req)
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		if got != "explicit" {
			t.Errorf("X-Request-Id = %q, want %q", got, "explicit")
		}
	})

	t.Run("接続できない場合にエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
		url := ts.URL
		ts.Close()

		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			t.Fatalf("リクエストの作成に失敗: %v", err)
		}
		if _, err := New(time.Second).Do(req); err == nil {
			t.Error("接続できない場合はエラーを返すべき")
		}
	})

	t.Run("レスポンスヘッダーが遅い場合にタイムアウトすること", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			<-release
		}))
		defer ts.Close()
		defer close(release)

		req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
		if err != nil {
			t.Fatalf("リクエストの作成に失敗: %v", err)
		}
		if _, err := New(50 * time.Millisecond).Do(req); err == nil {
			t.Error("タイムアウトエラーを返すべき")
		}
	})
}

// TestRequestIDFrom はRequestIDFrom関数を検証する。
func TestRequestIDFrom(t *testing.T) {
	t.Parallel()

	t.Run("設定されていない場合はfalseを返すこと", func(t *testing.T) {
		t.Parallel()

		if _, ok := RequestIDFrom(context.Background()); ok {
			t.Error("falseを返すべき")
		}
	})

	t.Run("空文字列はfalseを返すこと", func(t *testing.T) {
		t.Parallel()

		if _, ok := RequestIDFrom(WithRequestID(context.Background(), "")); ok {
			t.Error("falseを返すべき")
		}
	})
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/nao1215/quill/pkg/apperror"
	"github.com/nao1215/quill/pkg/event"
	"github.com/nao1215/quill/pkg/middleware"
)

// sseFrame はパースしたSSEの1ブロック。
type sseFrame struct {
	event string
	data  string
}

// parseSSE はSSEのレスポンスボディをブロックごとにパースする。コメント行は無視する。
func parseSSE(body string) []sseFrame {
	var frames []sseFrame
	for _, block := range strings.Split(body, "\n\n") {
		var (
			f    sseFrame
			data []string
			seen bool
		)
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event:"):
				f.event = strings.TrimPrefix(strings.TrimPrefix(line, "event:"), " ")
				seen = true
			case strings.HasPrefix(line, "data:"):
				data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
				seen = true
			}
		}
		if !seen {
			continue
		}
		f.data = strings.Join(data, "\n")
		frames = append(frames, f)
	}
	return frames
}

// streamError はerrorイベントのdataをパースする。
func streamError(t *testing.T, data string) apperror.Body {
	t.Helper()

	var payload apperror.Response
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		t.Fatalf("errorイベントのパースに失敗: %v (data=%q)", err, data)
	}
	return payload.Error
}

// TestHandleTextOperation はテキスト処理ハンドラのテスト。
func TestHandleTextOperation(t *testing.T) {
	t.Parallel()

	t.Run("POSTで断片とdoneがSSEで配信されること", func(t *testing.T) {
		t.Parallel()

		env := newTestServer(t, testConfig(), nil)
		token := env.login(t)

		req := jsonRequest(t, http.MethodPost, "/api/text/summarize", map[string]string{"text": "A long story."})
		req.Header.Set("Authorization", "Bearer "+token)
		w := env.serve(req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
		}
		if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
			t.Errorf("Content-Type: got %q, want %q", got, "text/event-stream")
		}

		frames := parseSSE(w.Body.String())
		want := []sseFrame{{data: "Hel"}, {data: "lo"}, {event: "done"}}
		if len(frames) != len(want) {
			t.Fatalf("フレーム数: got %d, want %d (body=%q)", len(frames), len(want), w.Body.String())
		}
		for i := range want {
			if frames[i] != want[i] {
				t.Errorf("frames[%d]: got %+v, want %+v", i, frames[i], want[i])
			}
		}

		reqs := env.upstream.requests()
		if len(reqs) != 1 {
			t.Fatalf("上流へのリクエスト数: got %d, want 1", len(reqs))
		}
		got := reqs[0]
		if got.Model != "gpt-test" {
			t.Errorf("Model: got %q, want %q", got.Model, "gpt-test")
		}
		if got.User != testUsername {
			t.Errorf("User: got %q, want %q", got.User, testUsername)
		}
		if !got.Stream {
			t.Error("Streamがtrueであるべき")
		}
		wantPrompt := "Summarize the following text concisely while preserving the key points:\n\nA long story."
		if len(got.Messages) != 1 || got.Messages[0].Content != wantPrompt {
			t.Errorf("Messages: got %+v, want prompt %q", got.Messages, wantPrompt)
		}
	})

	t.Run("GETのクエリとCookieで翻訳できること", func(t *testing.T) {
		t.Parallel()

		env := newTestServer(t, testConfig(), nil)
		token := env.login(t)

		q := url.Values{"text": {"Good morning"}, "target_language": {"spanish"}}
		req := httptest.NewRequest(http.MethodGet, "/api/text/translate?"+q.Encode(), nil)
		req.AddCookie(&http.Cookie{Name: middleware.AuthCookieName, Value: token})
		w := env.serve(req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d (body=%s)", w.Code, http.StatusOK, w.Body.String())
		}
		reqs := env.upstream.requests()
		if len(reqs) != 1 {
			t.Fatalf("上流へのリクエスト数: got %d, want 1", len(reqs))
		}
		want := "Translate the following text to Spanish:\n\nGood morning"
		if got := reqs[0].Messages[0].Content; got != want {
			t.Errorf("プロンプト: got %q, want %q", got, want)
		}
	})

	t.Run("不正なリクエストはストリーム開始前に400が返ること", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name   string
			target string
			body   map[string]string
		}{
			{name: "textが無い", target: "/api/text/paraphrase", body: map[string]string{}},
			{name: "textが空白のみ", target: "/api/text/expand", body: map[string]string{"text": "   "}},
			{name: "翻訳先の言語が無い", target: "/api/text/translate", body: map[string]string{"text": "hi"}},
			{name: "翻訳先の言語が未対応", target: "/api/text/translate", body: map[string]string{"text": "hi", "target_language": "klingon"}},
		}

		env := newTestServer(t, testConfig(), nil)
		token := env.login(t)

		for _, tt := range tests {
			req := jsonRequest(t, http.MethodPost, tt.target, tt.body)
			req.Header.Set("Authorization", "Bearer "+token)
			w := env.serve(req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("%s: ステータスコード: got %d, want %d", tt.name, w.Code, http.StatusBadRequest)
				continue
			}
			if got := decodeError(t, w).Code; got != apperror.KindBadRequest {
				t.Errorf("%s: code: got %q, want %q", tt.name, got, apperror.KindBadRequest)
			}
		}
		if n := len(env.upstream.requests()); n != 0 {
			t.Errorf("上流へのリクエスト数: got %d, want 0", n)
		}
	})

	t.Run("bad_requestのメッセージが原因に応じて分かれること", func(t *testing.T) {
		t.Parallel()

		env := newTestServer(t, testConfig(), nil)
		token := env.login(t)

		broken := httptest.NewRequest(http.MethodPost, "/api/text/summarize", strings.NewReader("{not json"))
		broken.Header.Set("Content-Type", "application/json")
		broken.Header.Set("Authorization", "Bearer "+token)
		missing := jsonRequest(t, http.MethodPost, "/api/text/summarize", map[string]string{})
		missing.Header.Set("Authorization", "Bearer "+token)

		brokenBody := decodeError(t, env.serve(broken))
		missingBody := decodeError(t, env.serve(missing))

		if brokenBody.Code != apperror.KindBadRequest || missingBody.Code != apperror.KindBadRequest {
			t.Fatalf("code: got %q / %q, want %q", brokenBody.Code, missingBody.Code, apperror.KindBadRequest)
		}
		if brokenBody.Message != "リクエストボディが不正です" {
			t.Errorf("不正なJSONのmessage: got %q", brokenBody.Message)
		}
		if missingBody.Message != "textは必須です" {
			t.Errorf("textが無い場合のmessage: got %q", missingBody.Message)
		}
	})

	t.Run("トークンが無い場合はauthentication_requiredが返ること", func(t *testing.T) {
		t.Parallel()

		env := newTestServer(t, testConfig(), nil)
		w := env.serve(jsonRequest(t, http.MethodPost, "/api/text/summarize", map[string]string{"text": "hi"}))

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if got := decodeError(t, w).Code; got != apperror.KindAuthenticationRequired {
			t.Errorf("code: got %q, want %q", got, apperror.KindAuthenticationRequired)
		}
	})

	t.Run("期限切れのトークンではtoken_expiredが返ること", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig()
		cfg.Auth.JWTExpiration = -60
		env := newTestServer(t, cfg, nil)
		token := env.login(t)

		req := jsonRequest(t, http.MethodPost, "/api/text/summarize", map[string]string{"text": "hi"})
		req.Header.Set("Authorization", "Bearer "+token)
		w := env.serve(req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if got := decodeError(t, w).Code; got != apperror.KindTokenExpired {
			t.Errorf("code: got %q, want %q", got, apperror.KindTokenExpired)
		}
	})

	t.Run("上流の開始に失敗した場合はerrorとdoneが配信されること", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("dial tcp 10.0.0.7:443: connect: connection refused")
		env := newTestServer(t, testConfig(), &stubUpstream{openErr: cause})
		token := env.login(t)

		req := jsonRequest(t, http.MethodPost, "/api/text/expand", map[string]string{"text": "hi"})
		req.Header.Set("Authorization", "Bearer "+token)
		w := env.serve(req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		frames := parseSSE(w.Body.String())
		if len(frames) != 2 {
			t.Fatalf("フレーム数: got %d, want 2 (body=%q)", len(frames), w.Body.String())
		}
		if frames[0].event != "error" {
			t.Errorf("frames[0].event: got %q, want %q", frames[0].event, "error")
		}
		body := streamError(t, frames[0].data)
		if body.Code != apperror.KindUpstream {
			t.Errorf("code: got %q, want %q", body.Code, apperror.KindUpstream)
		}
		if body.Message == "" {
			t.Error("messageが空であってはならない")
		}
		if strings.Contains(w.Body.String(), "10.0.0.7") || strings.Contains(w.Body.String(), "connection refused") {
			t.Errorf("原因のエラーがクライアントに漏れている: %q", w.Body.String())
		}
		if frames[1].event != "done" {
			t.Errorf("frames[1].event: got %q, want %q", frames[1].event, "done")
		}
	})

	t.Run("途中で失敗した場合は断片の後にerrorとdoneが配信されること", func(t *testing.T) {
		t.Parallel()

		up := &stubUpstream{fragments: []string{"Hel"}, failAfter: errors.New("stream reset")}
		env := newTestServer(t, testConfig(), up)
		token := env.login(t)

		req := jsonRequest(t, http.MethodPost, "/api/text/paraphrase", map[string]string{"text": "hi"})
		req.Header.Set("Authorization", "Bearer "+token)
		w := env.serve(req)

		frames := parseSSE(w.Body.String())
		if len(frames) != 3 {
			t.Fatalf("フレーム数: got %d, want 3 (body=%q)", len(frames), w.Body.String())
		}
		if frames[0] != (sseFrame{data: "Hel"}) {
			t.Errorf("frames[0]: got %+v", frames[0])
		}
		if frames[1].event != "error" {
			t.Errorf("frames[1].event: got %q, want %q", frames[1].event, "error")
		}
		if got := streamError(t, frames[1].data).Code; got != apperror.KindUpstream {
			t.Errorf("code: got %q, want %q", got, apperror.KindUpstream)
		}
		if strings.Contains(w.Body.String(), "stream reset") {
			t.Errorf("原因のエラーがクライアントに漏れている: %q", w.Body.String())
		}
		if frames[2].event != "done" {
			t.Errorf("frames[2].event: got %q, want %q", frames[2].event, "done")
		}

		events, err := env.audit.ListBySubject(context.Background(), testUsername, 1)
		if err != nil {
			t.Fatalf("監査ログの取得に失敗: %v", err)
		}
		if len(events) != 1 || events[0].EventType != event.TypeStreamFailed {
			t.Fatalf("最新の監査イベント: got %+v, want %q", events, event.TypeStreamFailed)
		}
		data, err := event.DecodeData[event.StreamData](&events[0])
		if err != nil {
			t.Fatalf("イベントデータのデコードに失敗: %v", err)
		}
		if data.Operation != "paraphrase" || data.Fragments != 1 || data.Error == "" {
			t.Errorf("StreamData: got %+v", data)
		}
	})
}

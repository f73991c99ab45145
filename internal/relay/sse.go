package relay

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/nao1215/quill/pkg/apperror"
)

// keepAliveComment はハートビートとして送るSSEコメント。
const keepAliveComment = ": keep-alive\n\n"

// Summary はストリーム配信の結果。ログ・メトリクス・監査ログに使用する。
type Summary struct {
	// Fragments はクライアントに書き込んだ断片の数。
	Fragments int
	// Err はerrorイベントの説明。エラーが無い場合は空。
	Err string
	// Completed はdoneイベントまで書き込めたかどうか。
	Completed bool
}

// WriteSSE はeventsをServer-Sent Eventsとしてwに書き込む。
//
// 断片は既定のmessageイベント、エラーは {"error":{"code":"upstream_error","message":"..."}} を持つerrorイベント、
// 終了は空データのdoneイベントとして送る。イベントごとにフラッシュし、
// keepAliveの間イベントが無ければハートビートのコメントを送る。
// doneの書き込み、チャネルのクローズ、ctxのキャンセルのいずれかで戻る。
func WriteSSE(ctx context.Context, w http.ResponseWriter, events <-chan Event, keepAlive time.Duration) Summary {
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}
	flush()

	var (
		heartbeat <-chan time.Time
		timer     *time.Timer
	)
	if keepAlive > 0 {
		timer = time.NewTimer(keepAlive)
		defer timer.Stop()
		heartbeat = timer.C
	}

	var summary Summary
	for {
		select {
		case <-ctx.Done():
			return summary
		case ev, ok := <-events:
			if !ok {
				return summary
			}
			if err := sse.Encode(w, toSSE(ev)); err != nil {
				return summary
			}
			flush()

			switch ev.Kind {
			case KindFragment:
				summary.Fragments++
			case KindError:
				summary.Err = ev.Data
			case KindDone:
				summary.Completed = true
				return summary
			}
			if timer != nil {
				timer.Reset(keepAlive)
			}
		case <-heartbeat:
			if _, err := io.WriteString(w, keepAliveComment); err != nil {
				return summary
			}
			flush()
			timer.Reset(keepAlive)
		}
	}
}

// toSSE はイベントをSSEのワイヤ形式に変換する。
func toSSE(ev Event) sse.Event {
	switch ev.Kind {
	case KindError:
		return sse.Event{Event: "error", Data: apperror.Response{
			Error: apperror.Body{Code: apperror.KindUpstream, Message: ev.Data},
		}}
	case KindDone:
		return sse.Event{Event: "done", Data: ""}
	default:
		return sse.Event{Data: fieldValue(ev.Data)}
	}
}

// lineBreaks はCRLFと単独のCRをLFに揃える。
// sseパッケージはCRをエスケープして書き込むため、改行として届かない。
var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// fieldValue はテキストの各行の先頭に空白を1つ補う。
// 受信側はdata:直後の空白を1つ取り除くため、これが無いと断片の先頭の空白が失われる。
func fieldValue(text string) string {
	return " " + strings.ReplaceAll(lineBreaks.Replace(text), "\n", "\n ")
}

package relay

// Kind はストリームイベントの種類。
type Kind string

const (
	// KindFragment は上流から受信したテキスト断片。
	KindFragment Kind = "fragment"
	// KindError は上流の呼び出しまたは受信の失敗。
	KindError Kind = "error"
	// KindDone はストリームの終了。常に最後のイベントとなる。
	KindDone Kind = "done"
)

// UpstreamFailureMessage はerrorイベントでクライアントに返す説明。
// 原因のエラーはログにのみ出力する。
const UpstreamFailureMessage = "上流の言語モデルAPIの呼び出しに失敗しました"

// Event はクライアントに配信するストリームイベント。
type Event struct {
	// Kind はイベントの種類。
	Kind Kind
	// Data は断片のテキストまたはエラーの説明。doneでは空。
	Data string
}

// Fragment はテキスト断片のイベントを生成する。
func Fragment(text string) Event {
	return Event{Kind: KindFragment, Data: text}
}

// Failure はエラーイベントを生成する。
func Failure(description string) Event {
	return Event{Kind: KindError, Data: description}
}

// Done は終了イベントを生成する。
func Done() Event {
	return Event{Kind: KindDone}
}

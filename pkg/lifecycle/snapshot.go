package lifecycle

import "github.com/shouni/gemini-prompt-kit/pkg/domain"

// Snapshot はある時点のライフサイクルの写しです。利用側はこれだけを見て画面を描画します。
type Snapshot struct {
	State     domain.State             `json:"state"`
	Image     *domain.EncodedImage     `json:"image,omitempty"`
	Result    *domain.GenerationResult `json:"result,omitempty"`
	Error     string                   `json:"error,omitempty"`
	AttemptID string                   `json:"attempt_id,omitempty"`
}

// Attempt は受け付けられた1回の生成試行です。
type Attempt struct {
	ID   string
	done chan struct{}
}

// Done は外部呼び出しが終わり、結果が反映(または破棄)されたときに閉じられます。
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
)

// mockGenerator は PromptGenerator のテスト用モックなのだ。
// generateFunc には呼び出し番号 (1 始まり) が渡されるのだ。
type mockGenerator struct {
	calls        atomic.Int32
	generateFunc func(ctx context.Context, n int, img domain.EncodedImage) (string, error)
}

func (m *mockGenerator) Name() string  { return "mock" }
func (m *mockGenerator) Model() string { return "mock-model" }

func (m *mockGenerator) GeneratePrompt(ctx context.Context, img domain.EncodedImage) (string, error) {
	n := int(m.calls.Add(1))
	if m.generateFunc != nil {
		return m.generateFunc(ctx, n, img)
	}
	return "", nil
}

// gate は呼び出しを外から解放できるようにするヘルパーなのだ。
type gate struct {
	started chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{started: make(chan struct{}), release: make(chan struct{})}
}

// failingReader は常にエラーを返すのだ。
type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("disk read error")
}

// recorder は観測者に届いたスナップショットを記録するのだ。
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) observe(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) states() []domain.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.State, 0, len(r.snaps))
	for _, s := range r.snaps {
		out = append(out, s.State)
	}
	return out
}

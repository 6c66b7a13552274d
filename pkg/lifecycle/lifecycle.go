// Package lifecycle は画像アップロードからプロンプト生成までの状態遷移を管理します。
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shouni/gemini-prompt-kit/pkg/domain"
	"github.com/shouni/gemini-prompt-kit/pkg/generator"
	"github.com/shouni/gemini-prompt-kit/pkg/imgutil"
)

// ErrClosed は Close 後に操作が呼ばれたことを示します。
var ErrClosed = errors.New("lifecycle is closed")

// Lifecycle は Idle → ImageReady → Generating → Success/Failed の状態機械です。
// 生成の入口は Generate のみで、Generating 中の再要求は拒否されます。
// Reset は実行中の外部呼び出しを中断しません。遅れて届いた応答は試行 ID の照合で破棄されます。
type Lifecycle struct {
	gen     generator.PromptGenerator
	timeout time.Duration

	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup

	mu        sync.Mutex
	state     domain.State
	image     *domain.EncodedImage
	result    *domain.GenerationResult
	errMsg    string
	attemptID string
	closed    bool
	observers map[int]func(Snapshot)
	nextObs   int

	// 通知は l.mu の下で queue に積み、l.mu を解放してから配送します。
	queue notifyQueue
}

// New は Lifecycle を初期化します。gen は必須です。
func New(gen generator.PromptGenerator, opts ...Option) (*Lifecycle, error) {
	if gen == nil {
		return nil, fmt.Errorf("gen (PromptGenerator) is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &Lifecycle{
		gen:       gen,
		baseCtx:   ctx,
		cancelAll: cancel,
		state:     domain.StateIdle,
		observers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Upload は画像を読み込んでエンコードし、ImageReady に遷移します。
// 読み込みに失敗した場合は Idle に戻り、*domain.EncodingError を返します。
// Generating 中のアップロードは実行中の試行を無効にします。
func (l *Lifecycle) Upload(ctx context.Context, r io.Reader, mimeType string) error {
	res := <-imgutil.EncodeAsync(ctx, r, mimeType)
	err := res.Err
	if err == nil && !imgutil.IsImage(res.Image.MimeType) {
		err = &domain.EncodingError{Err: fmt.Errorf("unsupported content type %q", res.Image.MimeType)}
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.attemptID = ""
	l.result = nil

	if err != nil {
		var encErr *domain.EncodingError
		if !errors.As(err, &encErr) {
			encErr = &domain.EncodingError{Err: err}
			err = encErr
		}
		l.state = domain.StateIdle
		l.image = nil
		l.errMsg = encErr.UserMessage()
		l.publishLocked()
		slog.WarnContext(ctx, "画像の読み込みに失敗しました", "error", err)
		return err
	}

	img := res.Image
	l.state = domain.StateImageReady
	l.image = &img
	l.errMsg = ""
	l.publishLocked()
	slog.InfoContext(ctx, "画像を受け付けました", "mime_type", img.MimeType, "base64_len", len(img.Base64))
	return nil
}

// Generate は現在の画像で外部サービスを1回呼び出します。呼び出しは別ゴルーチンで行われ、
// 戻り値の Attempt で完了を待てます。
// 画像が無ければ domain.ErrNoImage、生成中なら domain.ErrGenerationInProgress を返し、状態は変わりません。
func (l *Lifecycle) Generate(ctx context.Context) (*Attempt, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	if l.state == domain.StateGenerating {
		l.mu.Unlock()
		return nil, domain.ErrGenerationInProgress
	}
	if l.image == nil {
		l.errMsg = domain.ErrNoImage.Error()
		l.publishLocked()
		return nil, domain.ErrNoImage
	}

	attempt := &Attempt{ID: uuid.NewString(), done: make(chan struct{})}
	img := *l.image
	l.state = domain.StateGenerating
	l.result = nil
	l.errMsg = ""
	l.attemptID = attempt.ID
	l.wg.Add(1)
	l.publishLocked()

	slog.InfoContext(ctx, "プロンプト生成を開始します",
		"attempt_id", attempt.ID, "backend", l.gen.Name(), "model", l.gen.Model())

	go l.run(attempt, img)
	return attempt, nil
}

func (l *Lifecycle) run(attempt *Attempt, img domain.EncodedImage) {
	defer l.wg.Done()
	defer close(attempt.done)

	ctx := l.baseCtx
	var cancel context.CancelFunc
	if l.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	start := time.Now()
	text, err := l.gen.GeneratePrompt(ctx, img)
	l.complete(ctx, attempt.ID, text, err, time.Since(start))
}

// complete は試行がまだ現行の場合に限り結果を反映します。
func (l *Lifecycle) complete(ctx context.Context, id, text string, err error, elapsed time.Duration) {
	l.mu.Lock()
	if l.closed || l.state != domain.StateGenerating || l.attemptID != id {
		l.mu.Unlock()
		slog.DebugContext(ctx, "古い応答を破棄しました", "attempt_id", id)
		return
	}

	text = strings.TrimSpace(text)
	switch {
	case err != nil:
		err = &domain.ServiceError{Err: err}
	case text == "":
		err = &domain.ServiceError{Err: domain.ErrEmptyResponse}
	}

	if err != nil {
		failure := domain.NewFailure(err.Error())
		l.state = domain.StateFailed
		l.result = &failure
		l.errMsg = failure.Message
		l.publishLocked()
		slog.WarnContext(ctx, "プロンプト生成に失敗しました", "attempt_id", id, "elapsed", elapsed, "error", err)
		return
	}

	success := domain.NewSuccess(text)
	l.state = domain.StateSuccess
	l.result = &success
	l.errMsg = ""
	l.publishLocked()
	slog.InfoContext(ctx, "プロンプト生成が完了しました", "attempt_id", id, "elapsed", elapsed, "chars", len(text))
}

// Reset はすべてのデータを破棄して Idle に戻します。実行中の呼び出しは中断しません。
func (l *Lifecycle) Reset() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.state = domain.StateIdle
	l.image = nil
	l.result = nil
	l.errMsg = ""
	l.attemptID = ""
	l.publishLocked()
}

// Snapshot は現在の状態の写しを返します。
func (l *Lifecycle) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Subscribe は状態変更ごとに fn を呼び出すよう登録します。
// fn は状態変更の順に1つずつ呼ばれ、呼び出し中はロックを保持していません。
// fn の中からは Snapshot、Subscribe、Watch、unsubscribe、Upload、Generate、Reset を呼べます。
// fn の中で起きた状態変更は、fn が戻った後に通知されます。Close だけは fn の中から呼んではいけません。
// unsubscribe の直前に積まれていた通知が1件届くことがあります。
func (l *Lifecycle) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	l.mu.Lock()
	id := l.addObserverLocked(fn)
	l.mu.Unlock()
	return l.unsubscriber(id)
}

// Watch は Subscribe と同じですが、登録と同時に現在の状態を fn に届けます。
// 最初の通知と以降の変更の間で取りこぼしは起きません。
func (l *Lifecycle) Watch(fn func(Snapshot)) (unsubscribe func()) {
	l.mu.Lock()
	id := l.addObserverLocked(fn)
	l.queue.push(l.snapshotLocked(), []func(Snapshot){fn})
	l.mu.Unlock()

	l.queue.drain()
	return l.unsubscriber(id)
}

func (l *Lifecycle) addObserverLocked(fn func(Snapshot)) int {
	id := l.nextObs
	l.nextObs++
	l.observers[id] = fn
	return id
}

func (l *Lifecycle) unsubscriber(id int) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.observers, id)
			l.mu.Unlock()
		})
	}
}

// Close は実行中の外部呼び出しのコンテキストをキャンセルし、終了を待ちます。
// 以後の応答は反映されず、操作は ErrClosed を返します。
func (l *Lifecycle) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	l.cancelAll()
	l.wg.Wait()
	return nil
}

func (l *Lifecycle) snapshotLocked() Snapshot {
	s := Snapshot{
		State:     l.state,
		Error:     l.errMsg,
		AttemptID: l.attemptID,
	}
	if l.image != nil {
		img := *l.image
		s.Image = &img
	}
	if l.result != nil {
		res := *l.result
		s.Result = &res
	}
	return s
}

// publishLocked は l.mu を保持した状態で呼び出します。通知を積んでから l.mu を解放し、配送します。
func (l *Lifecycle) publishLocked() {
	observers := make([]func(Snapshot), 0, len(l.observers))
	for i := 0; i < l.nextObs; i++ {
		if fn, ok := l.observers[i]; ok {
			observers = append(observers, fn)
		}
	}
	l.queue.push(l.snapshotLocked(), observers)
	l.mu.Unlock()

	l.queue.drain()
}

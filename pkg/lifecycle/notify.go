package lifecycle

import "sync"

type notification struct {
	snap      Snapshot
	observers []func(Snapshot)
}

// notifyQueue は通知を積まれた順に1つずつ配送します。
// 配送は drain を呼んだゴルーチンのうち1つだけが行い、観測者の呼び出し中は mu を保持しません。
type notifyQueue struct {
	mu       sync.Mutex
	pending  []notification
	draining bool
}

func (q *notifyQueue) push(snap Snapshot, observers []func(Snapshot)) {
	if len(observers) == 0 {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, notification{snap: snap, observers: observers})
	q.mu.Unlock()
}

// drain は他のゴルーチンが配送中なら何もせず戻ります。そのゴルーチンが残りも配送します。
func (q *notifyQueue) drain() {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	for len(q.pending) > 0 {
		n := q.pending[0]
		q.pending[0] = notification{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		for _, fn := range n.observers {
			fn(n.snap)
		}

		q.mu.Lock()
	}
	q.draining = false
	q.mu.Unlock()
}

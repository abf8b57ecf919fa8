package workflow

import (
	"context"
	"errors"
	"sync"

	"github.com/aiox-platform/companion/internal/metrics"
)

// ErrThreadBusy is returned when a thread already has MaxQueuedTurns turns
// waiting behind the running one.
var ErrThreadBusy = errors.New("workflow: thread queue is full")

type threadQueue struct {
	busy    bool
	waiters []chan struct{}
}

// ThreadLocks serializes turns per thread. The lock is handed to waiters in
// arrival order; a thread with no holder and no waiters has no entry.
type ThreadLocks struct {
	mu        sync.Mutex
	threads   map[string]*threadQueue
	maxQueued int
}

// NewThreadLocks creates a lock set. maxQueued <= 0 means unbounded.
func NewThreadLocks(maxQueued int) *ThreadLocks {
	return &ThreadLocks{
		threads:   make(map[string]*threadQueue),
		maxQueued: maxQueued,
	}
}

// Acquire blocks until the caller holds the thread's lock or ctx is done.
// The returned function releases it and must be called exactly once.
func (l *ThreadLocks) Acquire(ctx context.Context, threadID string) (func(), error) {
	l.mu.Lock()
	q, ok := l.threads[threadID]
	if !ok {
		q = &threadQueue{}
		l.threads[threadID] = q
	}
	if !q.busy {
		q.busy = true
		l.mu.Unlock()
		return l.releaser(threadID), nil
	}
	if l.maxQueued > 0 && len(q.waiters) >= l.maxQueued {
		l.mu.Unlock()
		metrics.ThreadQueueRejections.Inc()
		return nil, ErrThreadBusy
	}
	ready := make(chan struct{})
	q.waiters = append(q.waiters, ready)
	l.mu.Unlock()

	select {
	case <-ready:
		return l.releaser(threadID), nil
	case <-ctx.Done():
		l.mu.Lock()
		for i, w := range q.waiters {
			if w == ready {
				q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
				l.mu.Unlock()
				return nil, ctx.Err()
			}
		}
		l.mu.Unlock()
		// Handed the lock while giving up; pass it on.
		l.release(threadID)
		return nil, ctx.Err()
	}
}

func (l *ThreadLocks) releaser(threadID string) func() {
	var once sync.Once
	return func() { once.Do(func() { l.release(threadID) }) }
}

func (l *ThreadLocks) release(threadID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	q, ok := l.threads[threadID]
	if !ok {
		return
	}
	if len(q.waiters) > 0 {
		next := q.waiters[0]
		q.waiters = q.waiters[1:]
		close(next)
		return
	}
	delete(l.threads, threadID)
}

// Queued returns how many turns are waiting on the thread.
func (l *ThreadLocks) Queued(threadID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if q, ok := l.threads[threadID]; ok {
		return len(q.waiters)
	}
	return 0
}

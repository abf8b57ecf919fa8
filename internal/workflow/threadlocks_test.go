package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitQueued(t *testing.T, l *ThreadLocks, threadID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return l.Queued(threadID) == n }, time.Second, time.Millisecond)
}

func TestThreadLocks_FIFO(t *testing.T) {
	l := NewThreadLocks(0)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "t1")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rel, err := l.Acquire(ctx, "t1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			rel()
		}()
		waitQueued(t, l, "t1", i+1)
	}

	release()
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2}, order)
	assert.Zero(t, l.Queued("t1"))
}

func TestThreadLocks_IndependentThreads(t *testing.T) {
	l := NewThreadLocks(1)
	ctx := context.Background()

	r1, err := l.Acquire(ctx, "t1")
	require.NoError(t, err)
	defer r1()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r2, err := l.Acquire(ctx, "t2")
		if assert.NoError(t, err) {
			r2()
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("t2 blocked behind t1")
	}
}

func TestThreadLocks_RejectsBeyondQueueLimit(t *testing.T) {
	l := NewThreadLocks(1)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "t1")
	require.NoError(t, err)

	queued := make(chan error, 1)
	go func() {
		rel, err := l.Acquire(ctx, "t1")
		if err == nil {
			rel()
		}
		queued <- err
	}()
	waitQueued(t, l, "t1", 1)

	_, err = l.Acquire(ctx, "t1")
	assert.ErrorIs(t, err, ErrThreadBusy)

	release()
	assert.NoError(t, <-queued)
}

func TestThreadLocks_CancelledWaiterLeavesQueue(t *testing.T) {
	l := NewThreadLocks(0)

	release, err := l.Acquire(context.Background(), "t1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := l.Acquire(ctx, "t1")
		errCh <- err
	}()
	waitQueued(t, l, "t1", 1)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Zero(t, l.Queued("t1"))

	release()
	rel, err := l.Acquire(context.Background(), "t1")
	require.NoError(t, err)
	rel()
}

func TestThreadLocks_ReleaseIsIdempotent(t *testing.T) {
	l := NewThreadLocks(0)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "t1")
	require.NoError(t, err)
	release()
	release()

	r1, err := l.Acquire(ctx, "t1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r2, err := l.Acquire(ctx, "t1")
		if assert.NoError(t, err) {
			close(acquired)
			r2()
		}
	}()
	waitQueued(t, l, "t1", 1)

	select {
	case <-acquired:
		t.Fatal("second holder admitted while the lock is held")
	case <-time.After(20 * time.Millisecond):
	}
	r1()
	<-acquired
}

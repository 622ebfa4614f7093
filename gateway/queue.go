package gateway

import (
	"context"
	"sync"
	"sync/atomic"
)

type queueWaiter struct {
	state atomic.Int32
	err   error
	ready chan struct{}
}

// offlineQueue parks senders while the socket is not open. Waiters survive
// closes and reconnect attempts; they are only released by a drain (the
// shard reached Connected) or by shutdown.
type offlineQueue struct {
	mu      sync.Mutex
	waiting []*queueWaiter
	closed  bool
	err     error
}

func newOfflineQueue() *offlineQueue {
	return &offlineQueue{}
}

// park blocks the caller until the next drain. High-priority callers are
// unshifted onto the head of the deque.
func (q *offlineQueue) park(ctx context.Context, shutdown <-chan struct{}, highPriority bool) error {
	q.mu.Lock()
	if q.closed {
		err := q.err
		q.mu.Unlock()
		return err
	}
	w := &queueWaiter{ready: make(chan struct{})}
	if highPriority {
		q.waiting = append([]*queueWaiter{w}, q.waiting...)
	} else {
		q.waiting = append(q.waiting, w)
	}
	q.mu.Unlock()

	select {
	case <-w.ready:
		return w.err
	case <-ctx.Done():
		if w.state.CompareAndSwap(waiterPending, waiterCancelled) {
			return ctx.Err()
		}
		<-w.ready
		return w.err
	case <-shutdown:
		if w.state.CompareAndSwap(waiterPending, waiterCancelled) {
			return ErrShardShutdown
		}
		<-w.ready
		return w.err
	}
}

// drain releases every parked waiter in deque order.
func (q *offlineQueue) drain() {
	q.mu.Lock()
	waiting := q.waiting
	q.waiting = nil
	q.mu.Unlock()

	for _, w := range waiting {
		if w.state.CompareAndSwap(waiterPending, waiterServed) {
			close(w.ready)
		}
	}
}

// close wakes every waiter with err and fails all future parks with it.
func (q *offlineQueue) close(err error) {
	q.mu.Lock()
	q.closed = true
	q.err = err
	waiting := q.waiting
	q.waiting = nil
	q.mu.Unlock()

	for _, w := range waiting {
		if w.state.CompareAndSwap(waiterPending, waiterServed) {
			w.err = err
			close(w.ready)
		}
	}
}

func (q *offlineQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	waiterPending int32 = iota
	waiterServed
	waiterCancelled
)

type bucketWaiter struct {
	n     int
	state atomic.Int32
	err   error
	ready chan struct{}
}

// BucketConfig configures a LeakyBucket.
type BucketConfig struct {
	Max            int
	RefillAmount   int
	RefillInterval time.Duration
	Clock          clock.Clock
}

// DefaultBucketConfig returns the gateway command budget: 120 requests per
// 60 second window.
func DefaultBucketConfig() BucketConfig {
	return BucketConfig{
		Max:            120,
		RefillAmount:   120,
		RefillInterval: 60 * time.Second,
		Clock:          clock.New(),
	}
}

// LeakyBucket is a token-count rate limiter with a fixed refill cadence.
// High-priority acquirers queue at the head of the waiter deque, everyone
// else at the tail. Rebuilding a bucket (after Hello supplies the heartbeat
// interval) carries the waiter deque over to the replacement, so no sender
// parked on the old bucket is ever lost.
type LeakyBucket struct {
	mu sync.Mutex

	max            int
	refillAmount   int
	refillInterval time.Duration
	clock          clock.Clock

	tokens    int
	waiting   []*bucketWaiter
	rebuiltTo *LeakyBucket
	closed    bool
	closeErr  error
	done      chan struct{}
}

// NewLeakyBucket creates a bucket with a full token count. If replaces is
// non-nil it is retired: its refill loop stops and its waiter deque is
// adopted by the new bucket in order.
func NewLeakyBucket(config BucketConfig, replaces *LeakyBucket) *LeakyBucket {
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	b := &LeakyBucket{
		max:            config.Max,
		refillAmount:   config.RefillAmount,
		refillInterval: config.RefillInterval,
		clock:          config.Clock,
		tokens:         config.Max,
		done:           make(chan struct{}),
	}
	if replaces != nil {
		replaces.mu.Lock()
		b.waiting = replaces.waiting
		replaces.waiting = nil
		replaces.rebuiltTo = b
		if !replaces.closed {
			replaces.closed = true
			close(replaces.done)
		}
		replaces.mu.Unlock()
	}
	go b.refillLoop()
	b.mu.Lock()
	b.pumpLocked()
	b.mu.Unlock()
	return b
}

// Acquire blocks until n tokens are available, the context is cancelled, or
// shutdown fires. Waiters are served strictly from the head of the deque.
func (b *LeakyBucket) Acquire(ctx context.Context, shutdown <-chan struct{}, n int, highPriority bool) error {
	b.mu.Lock()
	if next := b.rebuiltTo; next != nil {
		b.mu.Unlock()
		return next.Acquire(ctx, shutdown, n, highPriority)
	}
	if b.closed {
		err := b.closeErr
		b.mu.Unlock()
		if err == nil {
			err = ErrShardShutdown
		}
		return err
	}
	w := &bucketWaiter{n: n, ready: make(chan struct{})}
	if highPriority {
		b.waiting = append([]*bucketWaiter{w}, b.waiting...)
	} else {
		b.waiting = append(b.waiting, w)
	}
	b.pumpLocked()
	b.mu.Unlock()

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

// Close retires the bucket and wakes every pending waiter with err.
func (b *LeakyBucket) Close(err error) {
	b.mu.Lock()
	if next := b.rebuiltTo; next != nil {
		b.mu.Unlock()
		next.Close(err)
		return
	}
	if !b.closed {
		b.closed = true
		b.closeErr = err
		close(b.done)
	}
	waiting := b.waiting
	b.waiting = nil
	b.mu.Unlock()

	for _, w := range waiting {
		if w.state.CompareAndSwap(waiterPending, waiterServed) {
			w.err = err
			close(w.ready)
		}
	}
}

// Tokens reports the currently available token count.
func (b *LeakyBucket) Tokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

func (b *LeakyBucket) pumpLocked() {
	for len(b.waiting) > 0 {
		w := b.waiting[0]
		if w.state.Load() == waiterCancelled {
			b.waiting = b.waiting[1:]
			continue
		}
		if b.tokens < w.n {
			return
		}
		if !w.state.CompareAndSwap(waiterPending, waiterServed) {
			b.waiting = b.waiting[1:]
			continue
		}
		b.tokens -= w.n
		b.waiting = b.waiting[1:]
		close(w.ready)
	}
}

func (b *LeakyBucket) refillLoop() {
	ticker := b.clock.Ticker(b.refillInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.mu.Lock()
			b.tokens += b.refillAmount
			if b.tokens > b.max {
				b.tokens = b.max
			}
			b.pumpLocked()
			b.mu.Unlock()
		}
	}
}

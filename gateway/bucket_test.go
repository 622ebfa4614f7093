package gateway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBucket(mock *clock.Mock, max int) *LeakyBucket {
	return NewLeakyBucket(BucketConfig{
		Max:            max,
		RefillAmount:   max,
		RefillInterval: 60 * time.Second,
		Clock:          mock,
	}, nil)
}

func TestLeakyBucketAcquireImmediate(t *testing.T) {
	mock := clock.NewMock()
	b := testBucket(mock, 3)
	defer b.Close(nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Acquire(context.Background(), nil, 1, false))
	}
	assert.Equal(t, 0, b.Tokens())
}

func TestLeakyBucketBlocksUntilRefill(t *testing.T) {
	mock := clock.NewMock()
	b := testBucket(mock, 1)
	defer b.Close(nil)

	require.NoError(t, b.Acquire(context.Background(), nil, 1, false))

	acquired := make(chan error, 1)
	go func() {
		acquired <- b.Acquire(context.Background(), nil, 1, false)
	}()

	select {
	case <-acquired:
		t.Fatal("acquire completed without tokens")
	case <-time.After(20 * time.Millisecond):
	}

	time.Sleep(10 * time.Millisecond)
	mock.Add(60 * time.Second)

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("acquire did not complete after refill")
	}
}

func TestLeakyBucketHighPriorityOvertakes(t *testing.T) {
	mock := clock.NewMock()
	b := NewLeakyBucket(BucketConfig{
		Max:            10,
		RefillAmount:   1,
		RefillInterval: 60 * time.Second,
		Clock:          mock,
	}, nil)

	// Exhaust the bucket, then enqueue ten low-priority waiters and one
	// high-priority waiter. The next refill adds a single token, so exactly
	// one waiter completes, and it must be the high-priority one.
	require.NoError(t, b.Acquire(context.Background(), nil, 10, false))

	var mu sync.Mutex
	var order []string
	record := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		done := record("low")
		go func() {
			defer wg.Done()
			if b.Acquire(context.Background(), nil, 1, false) == nil {
				done()
			}
		}()
	}

	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.waiting) == 10
	}, time.Second, time.Millisecond)

	wg.Add(1)
	doneHigh := record("high")
	go func() {
		defer wg.Done()
		if b.Acquire(context.Background(), nil, 1, true) == nil {
			doneHigh()
		}
	}()

	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.waiting) == 11
	}, time.Second, time.Millisecond)

	mock.Add(60 * time.Second)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"high"}, order, "high-priority waiter must be served first")
	mu.Unlock()

	b.Close(ErrShardShutdown)
	wg.Wait()
}

func TestLeakyBucketRebuildAdoptsWaiters(t *testing.T) {
	mock := clock.NewMock()
	old := testBucket(mock, 1)
	require.NoError(t, old.Acquire(context.Background(), nil, 1, false))

	acquired := make(chan error, 1)
	go func() {
		acquired <- old.Acquire(context.Background(), nil, 1, false)
	}()

	require.Eventually(t, func() bool {
		old.mu.Lock()
		defer old.mu.Unlock()
		return len(old.waiting) == 1
	}, time.Second, time.Millisecond)

	// Rebuilding with fresh capacity must serve the parked waiter from the
	// new bucket immediately.
	replacement := NewLeakyBucket(BucketConfig{
		Max:            5,
		RefillAmount:   5,
		RefillInterval: 60 * time.Second,
		Clock:          mock,
	}, old)
	defer replacement.Close(nil)

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter was lost across rebuild")
	}

	// Acquires routed at the retired bucket forward to its replacement.
	require.NoError(t, old.Acquire(context.Background(), nil, 1, false))
	assert.Equal(t, 3, replacement.Tokens())
}

func TestLeakyBucketCloseWakesWaiters(t *testing.T) {
	mock := clock.NewMock()
	b := testBucket(mock, 0)

	acquired := make(chan error, 1)
	go func() {
		acquired <- b.Acquire(context.Background(), nil, 1, false)
	}()

	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.waiting) == 1
	}, time.Second, time.Millisecond)

	b.Close(ErrShardShutdown)

	select {
	case err := <-acquired:
		assert.ErrorIs(t, err, ErrShardShutdown)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by close")
	}
}

func TestLeakyBucketAcquireContextCancel(t *testing.T) {
	mock := clock.NewMock()
	b := testBucket(mock, 0)
	defer b.Close(nil)

	ctx, cancel := context.WithCancel(context.Background())
	acquired := make(chan error, 1)
	go func() {
		acquired <- b.Acquire(ctx, nil, 1, false)
	}()

	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.waiting) == 1
	}, time.Second, time.Millisecond)

	cancel()

	select {
	case err := <-acquired:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by cancellation")
	}
}

func TestLeakyBucketShutdownChannel(t *testing.T) {
	mock := clock.NewMock()
	b := testBucket(mock, 0)
	defer b.Close(nil)

	shutdown := make(chan struct{})
	acquired := make(chan error, 1)
	go func() {
		acquired <- b.Acquire(context.Background(), shutdown, 1, false)
	}()

	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.waiting) == 1
	}, time.Second, time.Millisecond)

	close(shutdown)

	select {
	case err := <-acquired:
		assert.ErrorIs(t, err, ErrShardShutdown)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by shutdown")
	}
}

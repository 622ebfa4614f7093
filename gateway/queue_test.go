package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfflineQueueDeckOrder(t *testing.T) {
	q := newOfflineQueue()

	results := make(chan error, 4)
	park := func(high bool) {
		go func() {
			results <- q.park(context.Background(), nil, high)
		}()
	}

	waiterAt := func(i int) *queueWaiter {
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.waiting[i]
	}

	park(false)
	require.Eventually(t, func() bool { return q.len() == 1 }, time.Second, time.Millisecond)
	low1 := waiterAt(0)
	park(false)
	require.Eventually(t, func() bool { return q.len() == 2 }, time.Second, time.Millisecond)
	low2 := waiterAt(1)
	// Highs are unshifted: the second high lands ahead of the first.
	park(true)
	require.Eventually(t, func() bool { return q.len() == 3 }, time.Second, time.Millisecond)
	high1 := waiterAt(0)
	park(true)
	require.Eventually(t, func() bool { return q.len() == 4 }, time.Second, time.Millisecond)
	high2 := waiterAt(0)

	assert.Same(t, high2, waiterAt(0))
	assert.Same(t, high1, waiterAt(1))
	assert.Same(t, low1, waiterAt(2))
	assert.Same(t, low2, waiterAt(3))

	q.drain()

	for i := 0; i < 4; i++ {
		select {
		case err := <-results:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("parked sender not released by drain")
		}
	}
	assert.Equal(t, 0, q.len())
}

func TestOfflineQueueDrainReleasesOnlyCurrentWaiters(t *testing.T) {
	q := newOfflineQueue()
	q.drain()

	released := make(chan error, 1)
	go func() {
		released <- q.park(context.Background(), nil, false)
	}()

	select {
	case <-released:
		t.Fatal("waiter parked after a drain must wait for the next drain")
	case <-time.After(20 * time.Millisecond):
	}

	q.drain()
	select {
	case err := <-released:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter not released")
	}
}

func TestOfflineQueueCloseWakesWithError(t *testing.T) {
	q := newOfflineQueue()

	released := make(chan error, 1)
	go func() {
		released <- q.park(context.Background(), nil, false)
	}()
	require.Eventually(t, func() bool { return q.len() == 1 }, time.Second, time.Millisecond)

	q.close(ErrShardShutdown)

	select {
	case err := <-released:
		assert.ErrorIs(t, err, ErrShardShutdown)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by close")
	}

	// Parks after close fail immediately.
	assert.ErrorIs(t, q.park(context.Background(), nil, false), ErrShardShutdown)
}

func TestOfflineQueueParkContextCancel(t *testing.T) {
	q := newOfflineQueue()

	ctx, cancel := context.WithCancel(context.Background())
	released := make(chan error, 1)
	go func() {
		released <- q.park(ctx, nil, false)
	}()
	require.Eventually(t, func() bool { return q.len() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-released:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by cancellation")
	}
}

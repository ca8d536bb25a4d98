package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	lt := NewTable()
	l, err := lt.Acquire(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, lt.Waiters(1, 10))
	assert.Equal(t, 1, lt.Len())

	// Other records are independent.
	other, err := lt.Acquire(context.Background(), 2, 10)
	require.NoError(t, err)
	lt.Release(other)

	lt.Release(l)
	assert.Zero(t, lt.Len())
	assert.Panics(t, func() { lt.Release(l) })
}

func waitFor(t *testing.T, lt *Table, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return lt.Waiters(1, 1) == n },
		time.Second, time.Millisecond)
}

func TestFIFOOrder(t *testing.T) {
	t.Parallel()

	lt := NewTable()
	holder, err := lt.Acquire(context.Background(), 1, 1)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l, err := lt.Acquire(context.Background(), 1, 1)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			lt.Release(l)
		}(i)
		// Queue the waiters one at a time so arrival order is known.
		waitFor(t, lt, i+2)
	}

	lt.Release(holder)
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Zero(t, lt.Len())
}

func TestMutualExclusion(t *testing.T) {
	t.Parallel()

	lt := NewTable()
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l, err := lt.Acquire(context.Background(), 1, 7)
				if !assert.NoError(t, err) {
					return
				}
				counter++
				lt.Release(l)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1600, counter)
}

func TestCancelledWaiter(t *testing.T) {
	t.Parallel()

	lt := NewTable()
	holder, err := lt.Acquire(context.Background(), 1, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := lt.Acquire(ctx, 1, 1)
		done <- err
	}()
	waitFor(t, lt, 2)

	// A third waiter queues behind the one that gives up.
	got := make(chan *Lock, 1)
	go func() {
		l, err := lt.Acquire(context.Background(), 1, 1)
		assert.NoError(t, err)
		got <- l
	}()
	waitFor(t, lt, 3)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	waitFor(t, lt, 2)

	lt.Release(holder)
	l := <-got
	assert.Equal(t, int64(1), l.Key())
	lt.Release(l)
	assert.Zero(t, lt.Len())
}

package sched

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_FIFO(t *testing.T) {
	s := New()

	var (
		mu    sync.Mutex
		order []int
	)
	const n = 100
	for i := 0; i < n; i++ {
		i := i
		require.NoError(t, s.Schedule(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, s.Close())

	require.Len(t, order, n, "every scheduled task must run")
	for i, got := range order {
		require.Equal(t, i, got, "tasks must run in enqueue order")
	}
}

func TestScheduler_NeverConcurrent(t *testing.T) {
	s := New()

	var (
		inFlight atomic.Int32
		overlap  atomic.Bool
		wg       sync.WaitGroup
	)

	// Schedule from many producers; the worker must still run one at a time.
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = s.Schedule(func() {
					if inFlight.Add(1) > 1 {
						overlap.Store(true)
					}
					time.Sleep(50 * time.Microsecond)
					inFlight.Add(-1)
				})
			}
		}()
	}
	wg.Wait()
	require.NoError(t, s.Close())

	assert.False(t, overlap.Load(), "tasks must never overlap")
}

func TestScheduler_LazyWorker(t *testing.T) {
	s := New()

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	assert.False(t, started, "worker must not start before the first task")

	done := make(chan struct{})
	require.NoError(t, s.Schedule(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task never ran")
	}
	require.NoError(t, s.Close())
}

func TestScheduler_CloseDrains(t *testing.T) {
	s := New()

	var ran atomic.Int32
	block := make(chan struct{})
	require.NoError(t, s.Schedule(func() { <-block }))
	for i := 0; i < 20; i++ {
		require.NoError(t, s.Schedule(func() { ran.Add(1) }))
	}
	assert.Positive(t, s.Len())

	close(block)
	require.NoError(t, s.Close())

	assert.Equal(t, int32(20), ran.Load(), "close must drain the queue first")
	assert.Zero(t, s.Len())
}

func TestScheduler_ScheduleAfterClose(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close()) // idempotent

	assert.ErrorIs(t, s.Schedule(func() {}), ErrClosed)
}

func TestScheduler_NilTask(t *testing.T) {
	s := New()
	defer s.Close()

	assert.Error(t, s.Schedule(nil))
}

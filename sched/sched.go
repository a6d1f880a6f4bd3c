// Package sched runs deferred background work on a single worker in strict
// FIFO order.
//
// The worker goroutine is started lazily by the first Schedule call. Tasks
// run one at a time, never concurrently, in exactly the order they were
// enqueued, and the queue is unbounded. There is no priority, cancellation,
// or timeout: a queued task always eventually runs. Close stops the worker
// only after the queue has drained, preserving that guarantee for everything
// already enqueued.
package sched

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Schedule after Close.
var ErrClosed = errors.New("sched: scheduler is closed")

// Scheduler is a single-worker FIFO task queue. The zero value is not usable;
// call New.
type Scheduler struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	started bool
	closed  bool
	done    chan struct{}
}

// New creates a Scheduler. The worker goroutine is not started until the
// first task is scheduled.
func New() *Scheduler {
	s := &Scheduler{
		done: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Schedule enqueues fn to run on the background worker after every
// previously scheduled task has finished. fn must not be nil.
func (s *Scheduler) Schedule(fn func()) error {
	if fn == nil {
		return errors.New("sched: nil task")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.started {
		s.started = true
		go s.run()
	}
	s.queue = append(s.queue, fn)
	s.mu.Unlock()

	s.cond.Signal()
	return nil
}

// Len returns the number of tasks waiting to run.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close drains the queue and stops the worker. Every task scheduled before
// Close still runs; Close blocks until the last one finished. Close is
// idempotent.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.done
		}
		return nil
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	s.cond.Broadcast()
	if started {
		<-s.done
	} else {
		close(s.done)
	}
	return nil
}

// run is the worker loop: pop the head task under the lock, run it outside
// the lock.
func (s *Scheduler) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		fn()
	}
}

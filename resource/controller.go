// Package resource provides process-wide budgeting for the runtime substrate:
// a hard cap on arena-mapped memory and a bandwidth limit for durability
// syncs. A nil *Controller is valid and enforces nothing.
package resource

import (
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a memory reservation would exceed
// the configured limit.
var ErrMemoryLimitExceeded = errors.New("resource: memory limit exceeded")

// Config holds resource limits. Zero values mean unlimited.
type Config struct {
	// MemoryLimitBytes is the hard cap on memory mapped by arenas.
	MemoryLimitBytes int64

	// SyncBytesPerSec limits the throughput of durability syncs.
	SyncBytesPerSec int64
}

// Controller tracks and enforces the configured limits.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	syncLimiter *rate.Limiter // nil if unlimited
}

// NewController creates a Controller for the given limits.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.SyncBytesPerSec > 0 {
		c.syncLimiter = rate.NewLimiter(rate.Limit(cfg.SyncBytesPerSec), int(cfg.SyncBytesPerSec))
	}

	return c
}

// AcquireMemory reserves bytes against the memory budget. It never blocks:
// when the budget is spent it returns ErrMemoryLimitExceeded, which the
// arena treats as unrecoverable resource exhaustion.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory returns a previous reservation to the budget.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the currently reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory cap (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// SyncLimiter returns the durability-sync rate limiter, or nil when
// unlimited.
func (c *Controller) SyncLimiter() *rate.Limiter {
	if c == nil {
		return nil
	}
	return c.syncLimiter
}

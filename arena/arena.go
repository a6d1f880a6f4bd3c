package arena

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/bedrockdb/bedrock/internal/mmap"
)

const (
	// BlockSize is the size of a pooled block.
	BlockSize = 64 * 1024
	// largeThreshold is the size above which a request bypasses the pooled
	// blocks and gets a dedicated block.
	largeThreshold = BlockSize >> 2
)

var (
	// ErrInvalidSize is returned for non-positive allocation sizes.
	ErrInvalidSize = errors.New("arena: allocation size must be positive")
	// ErrClosed is returned when allocating from a closed arena.
	ErrClosed = errors.New("arena: closed")
)

// MemoryAcquirer charges block-granularity memory against an external budget.
// Implemented by resource.Controller.
type MemoryAcquirer interface {
	AcquireMemory(amount int64) error
	ReleaseMemory(amount int64)
}

// Stats is a point-in-time snapshot of arena accounting. Counters are
// maintained with independent atomic updates, so a snapshot taken while
// allocations are in flight is approximate.
type Stats struct {
	Blocks         int64 // pooled blocks currently on the normal list
	LargeBlocks    int64 // dedicated blocks on the large list
	BytesReserved  int64 // total bytes mapped across all blocks
	BytesAllocated int64 // total bytes granted to callers
	Allocs         int64 // total grants
}

// block is one mmap-backed region. Space is granted from both ends: lower
// packs sub-aligned requests upward from 0, upper carves aligned requests
// downward from size. rem is reserved capacity, adjusted via CAS before a
// cursor moves, which keeps lower <= upper without a lock.
type block struct {
	next    atomic.Pointer[block]
	rem     atomic.Int64
	lower   atomic.Int64
	upper   atomic.Int64
	data    []byte
	mapping *mmap.Mapping
	size    int64
}

// Arena is a lock-free bump allocator. See the package documentation for the
// concurrency and lifetime contract.
type Arena struct {
	align    int64
	pageSize int64

	blocks atomic.Pointer[block] // normal list, newest first
	large  atomic.Pointer[block] // one block per oversized allocation, newest first

	blockCount     atomic.Int64
	largeCount     atomic.Int64
	bytesReserved  atomic.Int64
	bytesAllocated atomic.Int64
	allocs         atomic.Int64

	acquirer MemoryAcquirer
	closed   atomic.Bool
}

// Option configures an Arena.
type Option func(*Arena)

// WithMemoryAcquirer charges every block mapping against the given budget.
func WithMemoryAcquirer(acquirer MemoryAcquirer) Option {
	return func(a *Arena) {
		a.acquirer = acquirer
	}
}

// New creates an Arena with one standard block already mapped.
func New(opts ...Option) (*Arena, error) {
	align := int64(8)
	if ptrSize := int64(unsafe.Sizeof(uintptr(0))); ptrSize > align {
		align = ptrSize
	}
	if align&(align-1) != 0 {
		return nil, fmt.Errorf("arena: alignment %d is not a power of two", align)
	}

	a := &Arena{
		align:    align,
		pageSize: int64(os.Getpagesize()),
	}

	for _, opt := range opts {
		opt(a)
	}

	nb, err := a.newBlock(BlockSize)
	if err != nil {
		return nil, err
	}
	a.blocks.Store(nb)
	a.blockCount.Add(1)

	return a, nil
}

// Alignment returns the arena's grant alignment: the pointer size, or 8,
// whichever is larger.
func (a *Arena) Alignment() int {
	return int(a.align)
}

// Allocate returns n freshly-owned bytes, valid until Close. The returned
// range is never handed out again. Any error is unrecoverable.
func (a *Arena) Allocate(n int) ([]byte, error) {
	if n <= 0 {
		return nil, ErrInvalidSize
	}
	if a.closed.Load() {
		return nil, ErrClosed
	}

	size := int64(n)
	if size > largeThreshold {
		return a.allocateLarge(size)
	}

	for {
		b := a.blocks.Load()
		rem := b.rem.Load()
		for rem >= size {
			// Reserve capacity first; the cursor move in finalize cannot
			// cross the opposite cursor once the reservation holds.
			if b.rem.CompareAndSwap(rem, rem-size) {
				return a.finalize(b, size), nil
			}
			rem = b.rem.Load()
		}

		// Head block is too full for this request. Build a replacement and
		// try to install it; if another goroutine won the race, discard ours
		// and retry against the new head.
		nb, err := a.newBlock(BlockSize)
		if err != nil {
			return nil, err
		}
		nb.next.Store(b)
		if a.blocks.CompareAndSwap(b, nb) {
			a.blockCount.Add(1)
		} else {
			a.discardBlock(nb)
		}
	}
}

// AllocateAligned is Allocate with the size padded up to the arena alignment,
// which guarantees the returned address is an alignment multiple.
func (a *Arena) AllocateAligned(n int) ([]byte, error) {
	if n <= 0 {
		return nil, ErrInvalidSize
	}
	padded := (int64(n) + a.align - 1) &^ (a.align - 1)
	return a.Allocate(int(padded))
}

// allocateLarge maps a dedicated block sized to the request and pushes it
// onto the large list with a CAS retry loop.
func (a *Arena) allocateLarge(size int64) ([]byte, error) {
	nb, err := a.newBlock(size)
	if err != nil {
		return nil, err
	}

	head := a.large.Load()
	for {
		nb.next.Store(head)
		if a.large.CompareAndSwap(head, nb) {
			break
		}
		head = a.large.Load()
	}
	a.largeCount.Add(1)

	return a.finalize(nb, size), nil
}

// finalize advances one of the block's two cursors and returns the granted
// range. Sizes that are already alignment multiples come off the top cursor
// so their addresses stay aligned; everything else packs from the bottom.
func (a *Arena) finalize(b *block, size int64) []byte {
	aligned := (size + a.align - 1) &^ (a.align - 1)

	var off int64
	if size == aligned {
		for {
			cur := b.upper.Load()
			if b.upper.CompareAndSwap(cur, cur-size) {
				off = cur - size
				break
			}
		}
	} else {
		for {
			cur := b.lower.Load()
			if b.lower.CompareAndSwap(cur, cur+size) {
				off = cur
				break
			}
		}
	}

	a.bytesAllocated.Add(size)
	a.allocs.Add(1)

	return b.data[off : off+size : off+size]
}

func (a *Arena) newBlock(n int64) (*block, error) {
	sz := (n + a.pageSize - 1) &^ (a.pageSize - 1)

	if a.acquirer != nil {
		if err := a.acquirer.AcquireMemory(sz); err != nil {
			return nil, fmt.Errorf("arena: block budget: %w", err)
		}
	}

	m, err := mmap.MapAnon(int(sz))
	if err != nil {
		if a.acquirer != nil {
			a.acquirer.ReleaseMemory(sz)
		}
		return nil, fmt.Errorf("arena: map block of %d bytes: %w", sz, err)
	}

	b := &block{
		data:    m.Bytes(),
		mapping: m,
		size:    sz,
	}
	b.rem.Store(sz)
	b.upper.Store(sz)

	a.bytesReserved.Add(sz)

	return b, nil
}

// discardBlock releases a freshly built block that lost the install race.
func (a *Arena) discardBlock(b *block) {
	a.bytesReserved.Add(-b.size)
	if a.acquirer != nil {
		a.acquirer.ReleaseMemory(b.size)
	}
	_ = b.mapping.Close()
}

// MemoryUsage returns the approximate total bytes granted so far. The counter
// is updated without synchronization against in-flight grants; it is for
// accounting, not correctness.
func (a *Arena) MemoryUsage() int64 {
	return a.bytesAllocated.Load()
}

// Stats returns a snapshot of the arena counters.
func (a *Arena) Stats() Stats {
	return Stats{
		Blocks:         a.blockCount.Load(),
		LargeBlocks:    a.largeCount.Load(),
		BytesReserved:  a.bytesReserved.Load(),
		BytesAllocated: a.bytesAllocated.Load(),
		Allocs:         a.allocs.Load(),
	}
}

// Close unmaps every block on both lists and returns the first unmap error.
// All slices granted by the arena are invalid afterwards. Close must not run
// concurrently with allocations; it is idempotent.
func (a *Arena) Close() error {
	if a.closed.Swap(true) {
		return nil
	}

	var firstErr error
	for _, head := range []*atomic.Pointer[block]{&a.blocks, &a.large} {
		b := head.Load()
		head.Store(nil)
		for ; b != nil; b = b.next.Load() {
			if a.acquirer != nil {
				a.acquirer.ReleaseMemory(b.size)
			}
			if err := b.mapping.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

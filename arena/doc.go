// Package arena provides a lock-free bump allocator for variable-size,
// fixed-lifetime allocations.
//
// An Arena grants memory out of large mmap-backed blocks using
// compare-and-swap reservation, so concurrent allocators never block one
// another. Individual allocations are never freed; all block memory is
// unmapped together when the Arena is closed. The intended consumer is a
// structure with many short-lived small allocations and a single teardown
// point, such as an in-memory write buffer or an index block cache.
//
// # Concurrency Model
//
//   - Allocate and AllocateAligned are safe from any number of goroutines.
//   - Close must not run concurrently with allocations; teardown is
//     owner-driven.
//
// CAS retry loops spin without backoff. Under extreme contention this favors
// throughput of the common uncontended case over fairness.
//
// # Allocation Strategy
//
// Requests above a quarter of the standard block size get a dedicated block
// sized to the request (rounded to the page size) on a separate list, so big
// allocations never strand the pooled blocks' free space. Within a block,
// space is granted from both ends: requests whose size is already a multiple
// of the arena alignment carve downward from the top, everything else packs
// upward from the bottom. Segregating the two keeps aligned grants aligned
// without any fragmentation bookkeeping.
//
// # Failure Semantics
//
// Errors from Allocate are unrecoverable resource-exhaustion conditions (the
// OS refused a mapping, or the configured memory budget is spent). They are
// not retryable and callers are expected to fail the owning operation.
package arena

// Package mmapfile implements a randomly-writable file backed by a growable
// table of memory-mapped segments.
//
// The file is divided into fixed-size, page-aligned blocks. A write to an
// already-mapped block is a plain memory copy with no syscall and no lock
// held across it. Writes past the mapped range grow the file: one writer wins
// a truncate-in-progress flag, extends the underlying file, swaps in a larger
// segment table, and broadcasts to waiters. Mapping a not-yet-materialized
// block happens outside the table lock; losing the install race simply
// discards the duplicate mapping, which is cheap because mapping is
// idempotent.
//
// # Durability
//
// Writes land in the OS page cache through the mapped views. Flush is a
// no-op placeholder; Sync flushes every mapped segment's dirty pages and
// forces the file's write cache to stable storage, attempting all segments
// and reporting the first error. Close unmaps everything, truncates the file
// to the exact logical length written, and closes it.
//
// # Concurrency
//
// Concurrent WriteAt calls to disjoint ranges are safe and lock-free once
// their blocks are mapped. Overlapping writes have last-writer-wins byte
// semantics with caller-owned timing; the file provides no mutual exclusion
// between them. Growth operations are serialized. Append reads the logical
// end under the lock but performs the write unlocked, so concurrent appends
// must be serialized by the caller.
package mmapfile

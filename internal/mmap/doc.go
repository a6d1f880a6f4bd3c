// Package mmap provides the platform-specific memory mapping primitives the
// rest of the module builds on: mapping a region of an open file read-write,
// mapping anonymous memory, unmapping, flushing dirty pages, and access
// pattern advice.
//
// # Platform Support
//
// The package exposes one API across platforms:
//
//   - Unix (Linux, macOS, BSD): mmap(2), munmap(2), msync(2), madvise(2)
//   - Windows: CreateFileMapping/MapViewOfFile, VirtualAlloc for anonymous
//     memory, FlushViewOfFile (madvise is a no-op)
//
// # Anonymous Mappings
//
// MapAnon creates read-write anonymous mappings for off-heap memory. The
// arena allocator uses these for its backing blocks so block memory stays
// outside the Go garbage collector's view.
//
// # File Region Mappings
//
// MapRegion maps a page-aligned region of an open file as a shared,
// writable view. Writes into the returned bytes land in the OS page cache;
// Flush forces them to the backing file.
//
// # Thread Safety
//
// A Mapping is safe for concurrent access to Bytes. Close is idempotent and
// guarded by an atomic flag, but callers must ensure no goroutine touches the
// mapped bytes after Close returns.
package mmap

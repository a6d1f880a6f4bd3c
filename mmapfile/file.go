package mmapfile

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/bedrockdb/bedrock/internal/mmap"
)

// DefaultBlockAlign is the minimum block size; the effective block size is
// the system page size rounded up to a multiple of it.
const DefaultBlockAlign = 256 * 1024

// Option configures a File.
type Option func(*File)

// WithBlockSize overrides the segment block size. The value is rounded up to
// a multiple of the system page size. Intended for tests; production callers
// should keep the default.
func WithBlockSize(size int64) Option {
	return func(f *File) {
		if size > 0 {
			pageSize := int64(os.Getpagesize())
			f.blockSize = roundUp(size, pageSize)
		}
	}
}

// WithLogger attaches a structured logger; growth events are logged at debug
// level.
func WithLogger(logger *slog.Logger) Option {
	return func(f *File) {
		f.logger = logger
	}
}

// WithSyncLimiter paces the bytes Sync pushes to stable storage, so
// background maintenance cannot saturate the device.
func WithSyncLimiter(limiter *rate.Limiter) Option {
	return func(f *File) {
		f.limiter = limiter
	}
}

// File is a randomly-writable, memory-mapped file. See the package
// documentation for the concurrency contract.
type File struct {
	path      string
	f         *os.File
	blockSize int64

	mu              sync.Mutex
	cond            *sync.Cond
	segments        []*mmap.Mapping // indexed by block number; nil until mapped
	end             int64           // logical end of file, monotonic max
	truncInProgress bool
	closed          bool

	grows atomic.Int64 // truncate calls performed, for tests and logging

	limiter *rate.Limiter
	logger  *slog.Logger
}

// Create opens path for concurrent writing, truncating any previous content.
func Create(path string, opts ...Option) (*File, error) {
	osf, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, &Error{Op: "open", Path: path, Err: err}
	}

	f := &File{
		path:      path,
		f:         osf,
		blockSize: roundUp(int64(os.Getpagesize()), DefaultBlockAlign),
	}
	f.cond = sync.NewCond(&f.mu)

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func roundUp(x, y int64) int64 {
	return (x + y - 1) / y * y
}

// Path returns the file's path.
func (f *File) Path() string {
	return f.path
}

// BlockSize returns the effective segment block size.
func (f *File) BlockSize() int64 {
	return f.blockSize
}

// EndOffset returns the logical end of the file: the largest offset any write
// has reached.
func (f *File) EndOffset() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.end
}

// WriteAt stages p at logical offset off, extending the file as needed. It
// implements io.WriterAt. Once the affected blocks are mapped the write is a
// plain memory copy; writes spanning blocks are split and applied
// block-by-block.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ErrInvalidOffset
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, ErrClosed
	}
	f.mu.Unlock()

	written := 0
	pos := off
	for written < len(p) {
		block := pos / f.blockSize
		base, err := f.getSegment(block)
		if err != nil {
			f.advanceEnd(off, written)
			return written, err
		}
		loff := pos - block*f.blockSize
		n := f.blockSize - loff
		if rem := int64(len(p) - written); n > rem {
			n = rem
		}
		copy(base[loff:loff+n], p[written:written+int(n)])
		written += int(n)
		pos += n
	}
	f.advanceEnd(off, written)
	return written, nil
}

// advanceEnd extends the logical end to cover bytes that have actually
// landed. A write that fails before copying anything leaves the end alone,
// so Close never truncates out to an offset that was never written.
func (f *File) advanceEnd(off int64, written int) {
	if written == 0 {
		return
	}
	f.mu.Lock()
	if end := off + int64(written); end > f.end {
		f.end = end
	}
	f.mu.Unlock()
}

// Append writes p at the current logical end. Concurrent appends read the
// same end offset; serializing them is the caller's responsibility.
func (f *File) Append(p []byte) error {
	f.mu.Lock()
	off := f.end
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return ErrClosed
	}
	_, err := f.WriteAt(p, off)
	return err
}

// Flush is a no-op: writes are already visible in the mapped views.
func (f *File) Flush() error {
	return nil
}

// Sync forces every mapped segment's dirty pages out to stable storage. All
// segments are attempted; the first error encountered is returned.
func (f *File) Sync() error {
	var firstErr error
	for block := int64(0); ; block++ {
		f.mu.Lock()
		if f.closed {
			f.mu.Unlock()
			return ErrClosed
		}
		if block >= int64(len(f.segments)) {
			f.mu.Unlock()
			break
		}
		m := f.segments[block]
		f.mu.Unlock()

		if m == nil {
			continue
		}
		f.throttle(int(f.blockSize))
		if err := m.Flush(); err != nil && firstErr == nil {
			firstErr = &Error{Op: "sync", Path: f.path, Err: err}
		}
	}
	if err := f.f.Sync(); err != nil && firstErr == nil {
		firstErr = &Error{Op: "sync", Path: f.path, Err: err}
	}
	return firstErr
}

func (f *File) throttle(n int) {
	if f.limiter == nil {
		return
	}
	if b := f.limiter.Burst(); n > b {
		n = b
	}
	_ = f.limiter.WaitN(context.Background(), n)
}

// Close unmaps every segment, truncates the file to the exact logical length
// written, and closes it. Every step is attempted; the first failure is
// returned. Close is idempotent.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	segments := f.segments
	f.segments = nil
	end := f.end
	f.end = 0
	f.mu.Unlock()

	var firstErr error
	for _, m := range segments {
		if m == nil {
			continue
		}
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = &Error{Op: "unmap", Path: f.path, Err: err}
		}
	}
	if err := f.f.Truncate(end); err != nil && firstErr == nil {
		firstErr = &Error{Op: "truncate", Path: f.path, Err: err}
	}
	if err := f.f.Close(); err != nil && firstErr == nil {
		firstErr = &Error{Op: "close", Path: f.path, Err: err}
	}
	return firstErr
}

// getSegment returns the mapped bytes for block, growing the file and
// materializing the segment as needed.
func (f *File) getSegment(block int64) ([]byte, error) {
	f.mu.Lock()
	curSz := int64(len(f.segments))
	var m *mmap.Mapping
	if block < curSz {
		m = f.segments[block]
	}
	f.mu.Unlock()

	if m != nil {
		return m.Bytes(), nil
	}
	if curSz <= block {
		if err := f.growViaTruncate(block); err != nil {
			return nil, err
		}
	}

	// Map outside the lock: the syscall is slow relative to contention, and
	// mapping the same block twice is harmless. Losing the install race just
	// means discarding the duplicate.
	nm, err := mmap.MapRegion(f.f, block*f.blockSize, int(f.blockSize))
	if err != nil {
		return nil, &Error{Op: "map", Path: f.path, Err: err}
	}
	_ = nm.Advise(mmap.AccessRandom)

	f.mu.Lock()
	if existing := f.segments[block]; existing != nil {
		f.mu.Unlock()
		if err := nm.Close(); err != nil {
			return nil, &Error{Op: "unmap", Path: f.path, Err: err}
		}
		return existing.Bytes(), nil
	}
	f.segments[block] = nm
	f.mu.Unlock()

	return nm.Bytes(), nil
}

// growViaTruncate extends the underlying file and the segment table to cover
// block. One writer performs the truncate while others wait on the condition
// variable; the larger table is swapped in only after the extend succeeded,
// so a failed grow leaves the old table fully usable.
func (f *File) growViaTruncate(block int64) error {
	f.mu.Lock()
	for f.truncInProgress && int64(len(f.segments)) <= block {
		f.cond.Wait()
	}
	// A caller whose block is covered by now must leave without touching the
	// claim: another grower may still be mid-truncate, and clearing its flag
	// would let a third writer start a second, concurrent truncate.
	if int64(len(f.segments)) > block {
		f.mu.Unlock()
		return nil
	}
	f.truncInProgress = true
	f.mu.Unlock()

	// Round the new block count up so a burst of writers landing in nearby
	// blocks is serviced by a single truncate.
	newSz := ((block + 7) &^ 7) + 1
	if err := f.f.Truncate(newSz * f.blockSize); err != nil {
		f.mu.Lock()
		f.truncInProgress = false
		f.cond.Broadcast()
		f.mu.Unlock()
		return &Error{Op: "grow", Path: f.path, Err: err}
	}
	f.grows.Add(1)

	newSegments := make([]*mmap.Mapping, newSz)
	f.mu.Lock()
	copy(newSegments, f.segments)
	f.segments = newSegments
	f.truncInProgress = false
	f.cond.Broadcast()
	f.mu.Unlock()

	if f.logger != nil {
		f.logger.Debug("grew mapped file", "path", f.path, "blocks", newSz)
	}
	return nil
}

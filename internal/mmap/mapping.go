package mmap

import (
	"os"
	"sync/atomic"
)

// Mapping is one mapped region of memory, either file-backed or anonymous.
// It owns the underlying bytes and is responsible for unmapping them.
type Mapping struct {
	data   []byte
	size   int
	closed atomic.Bool
	// unmap and flush are the platform-specific operations bound at map time.
	// flush is nil for anonymous mappings.
	unmap func([]byte) error
	flush func([]byte) error
}

// MapRegion maps size bytes of f starting at off as a shared read-write view.
// off must be a multiple of the system page size and the file must already be
// at least off+size bytes long.
func MapRegion(f *os.File, off int64, size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if off < 0 {
		return nil, ErrInvalidOffset
	}

	data, unmapFunc, flushFunc, err := osMapRegion(f, off, size)
	if err != nil {
		return nil, err
	}

	return &Mapping{
		data:  data,
		size:  size,
		unmap: unmapFunc,
		flush: flushFunc,
	}, nil
}

// MapAnon maps size bytes of zero-initialized anonymous read-write memory.
// The memory is not visible to the Go garbage collector.
func MapAnon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	data, unmapFunc, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}

	return &Mapping{
		data:  data,
		size:  size,
		unmap: unmapFunc,
	}, nil
}

// Bytes returns the mapped byte slice. The slice is valid only until Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return m.size
}

// Flush writes the mapping's dirty pages back to the underlying file and
// blocks until the kernel has accepted them. It does not guarantee the file's
// own write cache reached stable storage; callers pair it with File.Sync.
// Flush is a no-op for anonymous mappings.
func (m *Mapping) Flush() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.flush == nil || m.data == nil {
		return nil
	}
	return m.flush(m.data)
}

// Advise provides kernel hints about the expected access pattern.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.data == nil {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}

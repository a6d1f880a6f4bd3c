package mmap

import "errors"

// AccessPattern provides hints to the kernel about how mapped memory will be
// accessed.
type AccessPattern int

const (
	// AccessDefault is the default access pattern (no specific advice).
	AccessDefault AccessPattern = iota
	// AccessSequential expects data to be accessed sequentially.
	AccessSequential
	// AccessRandom expects data to be accessed randomly.
	AccessRandom
	// AccessWillNeed expects data to be accessed in the near future.
	AccessWillNeed
	// AccessDontNeed expects data to not be accessed in the near future.
	AccessDontNeed
)

var (
	// ErrClosed is returned when accessing a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned when a mapping size is not positive.
	ErrInvalidSize = errors.New("mmap: invalid mapping size")
	// ErrInvalidOffset is returned when a file offset is negative.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)

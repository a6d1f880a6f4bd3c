package mmapfile

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when operating on a closed file.
	ErrClosed = errors.New("mmapfile: file is closed")
	// ErrInvalidOffset is returned for negative write offsets.
	ErrInvalidOffset = errors.New("mmapfile: invalid offset")
)

// Error is an I/O failure tied to a file path and the operation that hit it.
type Error struct {
	Op   string // "grow", "map", "unmap", "sync", "truncate", "close"
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("mmapfile: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

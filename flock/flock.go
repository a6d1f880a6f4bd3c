// Package flock provides advisory, OS-mediated exclusive file locks, used to
// guarantee single-writer-process semantics for a storage directory.
//
// Acquire creates the lock file if absent and fails immediately if another
// holder owns the lock; it never blocks. Because OS advisory locks do not
// reliably exclude a second acquisition by the same process, the package also
// keeps a process-local table of held paths.
package flock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrLocked is returned when the lock is already held, by another process or
// by this one.
var ErrLocked = errors.New("flock: already locked")

var (
	heldMu sync.Mutex
	held   = make(map[string]struct{})
)

// Lock is a held exclusive lock. It is only valid when returned by a
// successful Acquire.
type Lock struct {
	path string // absolute, the key in the process-local table
	f    *os.File
}

// Path returns the lock file's path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes an exclusive lock on path, creating the file if needed. It
// fails with ErrLocked if the lock is held elsewhere.
func Acquire(path string) (*Lock, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("flock: %s: %w", path, err)
	}

	heldMu.Lock()
	if _, ok := held[abs]; ok {
		heldMu.Unlock()
		return nil, fmt.Errorf("flock: %s: %w", path, ErrLocked)
	}
	held[abs] = struct{}{}
	heldMu.Unlock()

	release := func() {
		heldMu.Lock()
		delete(held, abs)
		heldMu.Unlock()
	}

	f, err := os.OpenFile(abs, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		release()
		return nil, fmt.Errorf("flock: %s: %w", path, err)
	}

	if err := sysLock(f); err != nil {
		f.Close()
		release()
		return nil, fmt.Errorf("flock: %s: %w", path, err)
	}

	return &Lock{path: abs, f: f}, nil
}

// Release drops the lock and closes the lock file. The file itself is left
// in place for the next holder.
func (l *Lock) Release() error {
	err := sysUnlock(l.f)
	if closeErr := l.f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	heldMu.Lock()
	delete(held, l.path)
	heldMu.Unlock()

	if err != nil {
		return fmt.Errorf("flock: %s: %w", l.path, err)
	}
	return nil
}

package bedrock

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bedrockdb/bedrock/arena"
	"github.com/bedrockdb/bedrock/flock"
	"github.com/bedrockdb/bedrock/internal/fs"
	"github.com/bedrockdb/bedrock/mmapfile"
	"github.com/bedrockdb/bedrock/resource"
	"github.com/bedrockdb/bedrock/sched"
)

// Env is the process-facing environment of the storage substrate. It bundles
// plain filesystem operations, advisory locking, mapped-file creation, arena
// creation, and background scheduling behind one handle, so the engine above
// depends on a single injected value instead of package-level state.
//
// An Env is safe for concurrent use. Construct it once and share it; use
// Default for the ambient shared instance.
type Env struct {
	logger    *Logger
	fsys      fs.FileSystem
	res       *resource.Controller
	scheduler *sched.Scheduler
	blockSize int64
}

// NewEnv creates an Env. With no options it uses the local filesystem, no
// resource limits, and no logging.
func NewEnv(optFns ...Option) *Env {
	o := applyOptions(optFns)

	return &Env{
		logger:    o.logger,
		fsys:      o.fsys,
		res:       resource.NewController(o.resourceCfg),
		scheduler: sched.New(),
		blockSize: o.blockSize,
	}
}

// Default returns the shared process-wide Env. It is constructed exactly
// once, on first use, with default options.
var Default = sync.OnceValue(func() *Env {
	return NewEnv()
})

// FileExists reports whether path exists.
func (e *Env) FileExists(path string) bool {
	_, err := e.fsys.Stat(path)
	return err == nil
}

// GetChildren returns the base names of the entries in dir.
func (e *Env) GetChildren(dir string) ([]string, error) {
	entries, err := e.fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("bedrock: get children of %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	return names, nil
}

// RemoveFile deletes the file at path.
func (e *Env) RemoveFile(path string) error {
	if err := e.fsys.Remove(path); err != nil {
		return fmt.Errorf("bedrock: remove file %s: %w", path, err)
	}
	return nil
}

// CreateDir creates the directory at path, along with any missing parents.
// It succeeds if the directory already exists.
func (e *Env) CreateDir(path string) error {
	if err := e.fsys.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("bedrock: create dir %s: %w", path, err)
	}
	return nil
}

// RemoveDir deletes the directory at path. The directory must be empty.
func (e *Env) RemoveDir(path string) error {
	if err := e.fsys.Remove(path); err != nil {
		return fmt.Errorf("bedrock: remove dir %s: %w", path, err)
	}
	return nil
}

// GetFileSize returns the size of the file at path in bytes.
func (e *Env) GetFileSize(path string) (int64, error) {
	fi, err := e.fsys.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("bedrock: file size of %s: %w", path, err)
	}
	return fi.Size(), nil
}

// RenameFile atomically renames src to dst, replacing dst if it exists.
func (e *Env) RenameFile(src, dst string) error {
	if err := e.fsys.Rename(src, dst); err != nil {
		return fmt.Errorf("bedrock: rename %s to %s: %w", src, dst, err)
	}
	return nil
}

// LockFile acquires an exclusive advisory lock on path, creating the lock
// file if absent. It fails without blocking if the lock is already held,
// whether by another process or by this one.
func (e *Env) LockFile(path string) (*flock.Lock, error) {
	lock, err := flock.Acquire(path)
	if err != nil {
		return nil, err
	}

	e.logger.WithPath(lock.Path()).Debug("acquired file lock")
	return lock, nil
}

// UnlockFile releases a lock previously returned by LockFile.
func (e *Env) UnlockFile(lock *flock.Lock) error {
	if lock == nil {
		return errors.New("bedrock: unlock of nil lock")
	}

	if err := lock.Release(); err != nil {
		return err
	}

	e.logger.WithPath(lock.Path()).Debug("released file lock")
	return nil
}

// NewConcurrentWritableFile creates (or truncates) a durable mapped file at
// path, wired to this Env's logger and sync bandwidth budget.
func (e *Env) NewConcurrentWritableFile(path string) (*mmapfile.File, error) {
	opts := []mmapfile.Option{
		mmapfile.WithLogger(e.logger.Logger),
		mmapfile.WithSyncLimiter(e.res.SyncLimiter()),
	}
	if e.blockSize > 0 {
		opts = append(opts, mmapfile.WithBlockSize(e.blockSize))
	}

	return mmapfile.Create(path, opts...)
}

// NewArena creates an arena whose block mappings are charged against this
// Env's memory budget.
func (e *Env) NewArena() (*arena.Arena, error) {
	return arena.New(arena.WithMemoryAcquirer(e.res))
}

// Resources returns the Env's resource controller, for callers that want to
// observe memory usage.
func (e *Env) Resources() *resource.Controller {
	return e.res
}

// Schedule enqueues fn on the Env's background worker. Tasks run one at a
// time in FIFO order.
func (e *Env) Schedule(fn func()) error {
	return e.scheduler.Schedule(fn)
}

// Close shuts down the Env's background worker after draining its queue.
// Every task scheduled before Close still runs. Files, arenas, and locks
// created through the Env are not tracked and must be closed by their
// owners. Close is idempotent.
func (e *Env) Close() error {
	return e.scheduler.Close()
}

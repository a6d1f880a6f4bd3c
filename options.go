package bedrock

import (
	"log/slog"

	"github.com/bedrockdb/bedrock/internal/fs"
	"github.com/bedrockdb/bedrock/resource"
)

type options struct {
	logger      *Logger
	fsys        fs.FileSystem
	blockSize   int64
	resourceCfg resource.Config
}

// Option configures an Env.
type Option func(*options)

// WithLogger configures structured logging for environment operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithFileSystem overrides the filesystem used for the Env's plain file
// operations. Intended for fault-injection tests; production callers use
// the default local filesystem.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fsys = fsys
		}
	}
}

// WithBlockSize overrides the segment block size of files returned by
// NewConcurrentWritableFile.
func WithBlockSize(size int64) Option {
	return func(o *options) {
		o.blockSize = size
	}
}

// WithResourceConfig enables process-wide resource budgeting: arenas created
// by this Env charge their mappings against the memory limit, and durability
// syncs are throttled to the configured bandwidth.
func WithResourceConfig(cfg resource.Config) Option {
	return func(o *options) {
		o.resourceCfg = cfg
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger: NoopLogger(),
		fsys:   fs.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}

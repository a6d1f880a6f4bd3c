// Package bedrock is the runtime substrate beneath an embedded key/value
// storage engine: the process-wide Environment and the primitives it
// composes.
//
// The primitives live in their own packages and can be used directly:
//
//   - arena: a concurrent lock-free bump allocator for short-lived
//     engine-internal memory.
//   - mmapfile: a durable, growable memory-mapped file supporting
//     concurrent positioned writes.
//   - sched: a single-worker FIFO scheduler for deferred background work.
//   - flock: advisory exclusive file locks for single-writer-process
//     semantics on a storage directory.
//
// Env ties them together with the plain filesystem operations a storage
// engine needs (existence checks, directory enumeration, rename, remove)
// and with process-wide resource budgeting. Construct one with NewEnv and
// pass it explicitly; Default returns a lazily constructed shared instance
// for callers that want ambient behavior.
package bedrock

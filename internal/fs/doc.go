// Package fs abstracts the plain filesystem operations the Environment
// composes: open, remove, rename, stat, directory create/remove/list, and
// truncate.
//
// [LocalFS] is the production implementation over the os package. [FaultyFS]
// wraps another FileSystem and injects errors, so Environment callers can
// exercise I/O failure paths without a broken disk.
//
// Memory mapping is deliberately not part of this interface: mapped files
// need a real file descriptor, so mmapfile opens its files directly. The
// abstraction covers only the metadata-style operations where fault
// injection pays for itself.
package fs

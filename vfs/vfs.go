// Package vfs provides the storage-backend abstraction referred to as
// `Env` in spec.md: a writable-append object and a random-read object,
// so the engine can run against the real OS filesystem, an in-memory
// filesystem for tests, or (eventually) an object-store-backed Env.
//
// Reference: RocksDB v10.7.5 include/rocksdb/file_system.h
package vfs

import (
	"io"
	"os"
)

// FS is the storage backend an DirWriter/DirReader is opened against.
type FS interface {
	// Create creates a new writable file, truncating it if it exists.
	Create(name string) (WritableFile, error)

	// Open opens an existing file for sequential reading.
	Open(name string) (SequentialFile, error)

	// OpenRandomAccess opens an existing file for random-access reading.
	OpenRandomAccess(name string) (RandomAccessFile, error)

	// Rename atomically renames a file.
	Rename(oldname, newname string) error

	// Remove deletes a file.
	Remove(name string) error

	// RemoveAll removes a directory and all its contents.
	RemoveAll(path string) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info.
	Stat(name string) (os.FileInfo, error)

	// Exists returns true if the named file exists.
	Exists(name string) bool

	// ListDir lists the entries of a directory.
	ListDir(path string) ([]string, error)

	// Lock acquires an exclusive lock on a file; the returned Closer
	// releases it. Used to guard a DirWriter's rank directory against
	// concurrent writers.
	Lock(name string) (io.Closer, error)

	// SyncDir syncs a directory's metadata, required after a rename so
	// the rename itself is durable.
	SyncDir(path string) error
}

// WritableFile is a log object open for append.
type WritableFile interface {
	io.Writer
	io.Closer

	// Sync flushes file contents to stable storage.
	Sync() error

	// Append writes data at the current end of the file.
	Append(data []byte) error

	// Truncate changes the file size.
	Truncate(size int64) error

	// Size returns the current file size.
	Size() (int64, error)
}

// SequentialFile supports streaming reads from the start of a file.
type SequentialFile interface {
	io.Reader
	io.Closer

	// Skip advances the read position by n bytes.
	Skip(n int64) error
}

// RandomAccessFile supports reads at arbitrary offsets; this is the
// interface LogSource wraps.
type RandomAccessFile interface {
	io.ReaderAt
	io.Closer

	// Size returns the file size as observed at open time.
	Size() int64
}

// Default returns the OS-backed filesystem.
func Default() FS {
	return &osFS{}
}

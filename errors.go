package plfsdir

import "errors"

// ErrBackgroundError is wrapped around whatever error a background
// compaction encountered; once set, it latches and is returned by every
// subsequent Append/Flush/Finish call until the DirWriter is closed.
var ErrBackgroundError = errors.New("plfsdir: background compaction error")

// ErrBufferFull is returned by Append when every memtable slot for a
// record's partition is full and DirOptions.NonBlocking is set.
var ErrBufferFull = errors.New("plfsdir: buffer full")

// ErrClosed is returned by Append, Write, EpochFlush and Flush once
// Finish has succeeded.
var ErrClosed = errors.New("plfsdir: writer closed")

// ErrNotFound is returned by DirReader.ReadAll when a file-id has no
// records in any epoch.
var ErrNotFound = errors.New("plfsdir: not found")

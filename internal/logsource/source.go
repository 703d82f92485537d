// Package logsource implements the read-side counterpart to logsink: a
// reference-counted wrapper around a vfs.RandomAccessFile with a known
// total size, used by DirReader to fetch footers, index blocks, filter
// blocks, and data blocks by (offset,size) handle.
//
// Reference: deltafs_plfsio.cc (LogSource); mirrors logsink's
// refcounting shape on the read side.
package logsource

import (
	"sync/atomic"

	"github.com/aalhour/plfsdir/internal/block"
	"github.com/aalhour/plfsdir/vfs"
)

// Source reads fixed byte ranges out of one log file (a DATA- or
// INDEX- log).
type Source struct {
	file vfs.RandomAccessFile
	size int64
	refs int32
}

// New wraps file, whose size was observed at open time.
func New(file vfs.RandomAccessFile) *Source {
	return &Source{file: file, size: file.Size(), refs: 1}
}

// Ref increments the reference count.
func (s *Source) Ref() {
	atomic.AddInt32(&s.refs, 1)
}

// Unref decrements the reference count, returning true once it drops to
// zero. The caller should Close the underlying file only after Unref
// reports true.
func (s *Source) Unref() bool {
	return atomic.AddInt32(&s.refs, -1) == 0
}

// Size returns the file's total size as observed at open.
func (s *Source) Size() int64 {
	return s.size
}

// Read fetches the byte range described by h.
func (s *Source) Read(h block.Handle) ([]byte, error) {
	if h.Offset+h.Size > uint64(s.size) {
		return nil, block.ErrBadHandle
	}
	buf := make([]byte, h.Size)
	if h.Size > 0 {
		if _, err := s.file.ReadAt(buf, int64(h.Offset)); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// Close closes the underlying file.
func (s *Source) Close() error {
	return s.file.Close()
}

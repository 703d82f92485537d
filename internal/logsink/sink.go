// Package logsink implements the append-only, reference-counted output
// stream a compaction job writes blocks to (spec.md §4.5): one Sink per
// data log, one per index log. Unlike the teacher's WAL writer — which
// fragments logical records across fixed-size blocks for crash-safe
// recovery — a Sink never fragments: it simply accumulates appended
// bytes in a pending buffer and flushes the buffer to the underlying
// file once it grows past a configured threshold, trading a bounded
// amount of buffered-but-unflushed data for fewer, larger writes.
//
// Reference: deltafs_plfsio.cc (LogSink) for the buffering/refcounting
// shape; internal/wal/writer.go (the teacher's WAL writer) for the
// general style of a stateful append-only writer over a vfs file.
package logsink

import (
	"sync"
	"sync/atomic"

	"github.com/aalhour/plfsdir/vfs"
)

// Priority distinguishes background compaction I/O from foreground
// (caller-driven) I/O when a RateLimiter is configured, mirroring
// DirOptions.RateLimiter's read/write priority split without this
// package importing the root package's IOPriority type.
type Priority int

const (
	// PriorityLow marks background compaction writes.
	PriorityLow Priority = iota
	// PriorityHigh marks foreground writes.
	PriorityHigh
)

// RateLimiter throttles the bytes a Sink flushes to its underlying
// file. DirOptions.RateLimiter is adapted to this interface at Open so
// internal/logsink need not import the root package.
type RateLimiter interface {
	Request(bytes int64, priority Priority)
}

// Sink buffers appended bytes and flushes them to a vfs.WritableFile in
// batches. The logical offset handed back from Append always reflects
// the position the data will occupy in the finished file, even before
// it has actually been flushed — callers (the table builder) need that
// offset immediately to record block handles.
type Sink struct {
	file vfs.WritableFile

	// mu guards pending/flushed state. When externalMu is non-nil, it is
	// used instead (spec.md §4.5: a data log and its sibling index log
	// from the same partition may legitimately share one external lock
	// when issued by a single compaction job, avoiding double-locking).
	mu         sync.Locker
	ownMu      sync.Mutex
	pending    []byte
	offset     uint64 // logical offset of the next byte to be appended
	flushedOff uint64 // physical bytes already handed to file.Append

	batchSize int
	refs      int32

	limiter  RateLimiter
	priority Priority

	prefix string // DATA- or INDEX-, used only for diagnostics
}

// New wraps file in a Sink that batches writes at batchSize bytes. A nil
// externalMu makes the Sink use its own internal mutex.
func New(file vfs.WritableFile, batchSize int, externalMu sync.Locker, prefix string) *Sink {
	s := &Sink{file: file, batchSize: batchSize, refs: 1, prefix: prefix}
	if externalMu != nil {
		s.mu = externalMu
	} else {
		s.mu = &s.ownMu
	}
	return s
}

// SetRateLimiter installs a RateLimiter that throttles every subsequent
// flush to the underlying file, and the priority that flush requests
// are tagged with. A nil limiter disables throttling.
func (s *Sink) SetRateLimiter(limiter RateLimiter, priority Priority) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiter = limiter
	s.priority = priority
}

// Ref increments the reference count.
func (s *Sink) Ref() {
	atomic.AddInt32(&s.refs, 1)
}

// Unref decrements the reference count, returning true once it drops to
// zero. Callers should Close the underlying file only after Unref
// reports true.
func (s *Sink) Unref() bool {
	return atomic.AddInt32(&s.refs, -1) == 0
}

// Append buffers data and returns the logical offset at which it was
// placed (before the most recent byte of this call). The actual write
// to the underlying file may happen later, at Flush or when the pending
// buffer crosses batchSize.
func (s *Sink) Append(data []byte) (offset uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset = s.offset
	s.pending = append(s.pending, data...)
	s.offset += uint64(len(data))

	if s.batchSize > 0 && len(s.pending) >= s.batchSize {
		if err := s.flushLocked(); err != nil {
			return offset, err
		}
	}
	return offset, nil
}

// Flush forces any buffered bytes out to the underlying file without
// calling Sync.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Sink) flushLocked() error {
	if len(s.pending) == 0 {
		return nil
	}
	if s.limiter != nil {
		s.limiter.Request(int64(len(s.pending)), s.priority)
	}
	if err := s.file.Append(s.pending); err != nil {
		return err
	}
	s.flushedOff += uint64(len(s.pending))
	s.pending = s.pending[:0]
	return nil
}

// Offset returns the current logical offset (total bytes appended so
// far, flushed or not).
func (s *Sink) Offset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

// Pad appends zero bytes until Offset() is a multiple of alignment. A
// zero or negative alignment is a no-op. Used to implement
// tail_padding at Finish, aligned to data_buffer/index_buffer.
func (s *Sink) Pad(alignment int) error {
	if alignment <= 0 {
		return nil
	}
	s.mu.Lock()
	rem := int(s.offset % uint64(alignment))
	s.mu.Unlock()
	if rem == 0 {
		return nil
	}
	_, err := s.Append(make([]byte, alignment-rem))
	return err
}

// Sync flushes pending bytes and syncs the underlying file to durable
// storage.
func (s *Sink) Sync() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

// Close flushes, syncs, and closes the underlying file.
func (s *Sink) Close() error {
	if err := s.Sync(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}

// Prefix returns the log's diagnostic name prefix ("DATA-" or
// "INDEX-").
func (s *Sink) Prefix() string {
	return s.prefix
}

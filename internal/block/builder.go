package block

import "github.com/aalhour/plfsdir/internal/encoding"

// Builder accumulates [key,value] records into one data or index block.
// Unlike the teacher's restart-point builder, entries are never
// prefix-compressed against their predecessor: file-ids are opaque
// identifiers with no locality to exploit, so shared-prefix delta coding
// would only add bookkeeping without shrinking the block.
type Builder struct {
	buf     []byte
	count   uint32
	started bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends one record. Keys need not be added in sorted order; the
// caller (memtable flush / compaction) is responsible for presenting
// them in the order the table format requires.
func (b *Builder) Add(key, value []byte) {
	b.buf = AppendEntry(b.buf, key, value)
	b.count++
	b.started = true
}

// Empty reports whether no records have been added yet.
func (b *Builder) Empty() bool {
	return !b.started
}

// NumEntries returns the number of records added so far.
func (b *Builder) NumEntries() uint32 {
	return b.count
}

// CurrentSizeEstimate returns the size in bytes the block would occupy if
// finished right now, including the trailing count field. Callers use
// this against block_util*block_size to decide when to close a block.
func (b *Builder) CurrentSizeEstimate() int {
	return len(b.buf) + 4
}

// Finish appends the trailing entry count and returns the block body
// (without a persistence trailer — see Persist). The returned slice
// aliases the Builder's internal buffer and is invalidated by the next
// Reset.
func (b *Builder) Finish() []byte {
	return encoding.AppendFixed32(b.buf, b.count)
}

// Reset clears the builder for reuse.
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
	b.count = 0
	b.started = false
}

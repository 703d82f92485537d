// Package table builds and reads the per-(epoch,partition) table format
// (spec.md §4.2): a run of data blocks written to the writer's data log,
// plus an index block and an optional Bloom filter block written to its
// index log, closed out by a fixed-size footer. Both logs are shared by
// every partition's tables.
//
// Unlike the teacher's block-based SST format, a table here has no
// metaindex block, no properties block, no range-deletion block, and no
// restart points within a data block — opaque file-id keys have no
// prefix locality worth exploiting, and there is exactly one filter per
// table rather than one per column family.
//
// Reference: deltafs_plfsio.h (TableBuilder)
package table

import (
	"errors"

	"github.com/aalhour/plfsdir/internal/block"
	"github.com/aalhour/plfsdir/internal/compression"
	"github.com/aalhour/plfsdir/internal/filter"
	"github.com/aalhour/plfsdir/internal/logsink"
)

// ErrBuilderFinished is returned by Add/Finish when called on a builder
// that has already finished or abandoned.
var ErrBuilderFinished = errors.New("table: builder already finished")

// BuilderOptions configures a Builder.
type BuilderOptions struct {
	// BlockSize is the target size of a data block.
	BlockSize int
	// BlockUtil is the fraction of BlockSize at which a block is closed.
	BlockUtil float64
	// BlockPadding zero-pads a closed data block up to BlockSize.
	BlockPadding bool
	// BfBitsPerKey is the Bloom filter bits-per-key; 0 disables the
	// filter block entirely.
	BfBitsPerKey int
	// Compression applies to the index and filter blocks only.
	Compression compression.Type
	// ForceCompression keeps the compressed form even when it is not
	// strictly smaller.
	ForceCompression bool
	// OptionsDigest is stored in the footer for read-time interpretation.
	OptionsDigest byte
}

// Builder assembles one table: it writes finished data blocks to a
// data-log sink as they close, and writes the index, filter, and footer
// to an index-log sink on Finish. It is not safe for concurrent use.
type Builder struct {
	opts BuilderOptions

	dataSink  *logsink.Sink
	indexSink *logsink.Sink

	dataBlock  *block.Builder
	indexBlock *block.Builder
	filterBld  *filter.Builder

	pendingHandle     block.Handle
	pendingIndexEntry bool
	lastKey           []byte

	numEntries    int
	numDataBlocks int
	finished      bool
	err           error
}

// NewBuilder creates a Builder that writes data blocks to dataSink and
// the index/filter/footer to indexSink.
func NewBuilder(opts BuilderOptions, dataSink, indexSink *logsink.Sink) *Builder {
	var fb *filter.Builder
	if opts.BfBitsPerKey > 0 {
		fb = filter.NewBuilder(opts.BfBitsPerKey)
	}
	return &Builder{
		opts:       opts,
		dataSink:   dataSink,
		indexSink:  indexSink,
		dataBlock:  block.NewBuilder(),
		indexBlock: block.NewBuilder(),
		filterBld:  fb,
	}
}

// Add inserts one record. Keys must arrive in ascending order; the
// caller (the memtable flush path) is responsible for sorting.
func (b *Builder) Add(key, value []byte) error {
	if b.finished {
		return ErrBuilderFinished
	}
	if b.err != nil {
		return b.err
	}

	if b.pendingIndexEntry {
		b.indexBlock.Add(b.lastKey, b.pendingHandle.EncodeTo(nil))
		b.pendingIndexEntry = false
	}

	b.dataBlock.Add(key, value)
	b.numEntries++
	if b.filterBld != nil {
		b.filterBld.Add(key)
	}
	b.lastKey = append(b.lastKey[:0], key...)

	threshold := float64(b.opts.BlockSize) * b.opts.BlockUtil
	if float64(b.dataBlock.CurrentSizeEstimate()) >= threshold {
		if err := b.flushDataBlock(); err != nil {
			b.err = err
			return err
		}
	}
	return nil
}

// flushDataBlock closes the current data block (if non-empty), persists
// it uncompressed, and appends it to the data log.
func (b *Builder) flushDataBlock() error {
	if b.dataBlock.Empty() {
		return nil
	}
	raw := b.dataBlock.Finish()
	if b.opts.BlockPadding && len(raw) < b.opts.BlockSize {
		padded := make([]byte, b.opts.BlockSize)
		copy(padded, raw)
		raw = padded
	}
	persisted, err := block.Persist(raw, false, compression.NoCompression, false)
	if err != nil {
		return err
	}
	off, err := b.dataSink.Append(persisted)
	if err != nil {
		return err
	}
	b.pendingHandle = block.Handle{Offset: off, Size: uint64(len(persisted))}
	b.pendingIndexEntry = true
	b.numDataBlocks++
	b.dataBlock.Reset()
	return nil
}

// Finish closes out the table: flushes any pending data block, writes
// the index and filter blocks and the footer to the index log, and
// returns the footer's (offset, size) within the index log so the
// caller can record it in the manifest.
func (b *Builder) Finish() (block.Handle, error) {
	if b.finished {
		return block.Handle{}, ErrBuilderFinished
	}
	if b.err != nil {
		return block.Handle{}, b.err
	}
	if err := b.flushDataBlock(); err != nil {
		return block.Handle{}, err
	}
	if b.pendingIndexEntry {
		b.indexBlock.Add(b.lastKey, b.pendingHandle.EncodeTo(nil))
		b.pendingIndexEntry = false
	}

	indexHandle, err := b.writeIndexBlock()
	if err != nil {
		return block.Handle{}, err
	}
	filterHandle, err := b.writeFilterBlock()
	if err != nil {
		return block.Handle{}, err
	}

	footer := block.Footer{
		IndexHandle:   indexHandle,
		FilterHandle:  filterHandle,
		OptionsDigest: b.opts.OptionsDigest,
	}
	encoded := footer.EncodeTo()
	off, err := b.indexSink.Append(encoded)
	if err != nil {
		return block.Handle{}, err
	}
	b.finished = true
	return block.Handle{Offset: off, Size: uint64(len(encoded))}, nil
}

func (b *Builder) writeIndexBlock() (block.Handle, error) {
	raw := b.indexBlock.Finish()
	persisted, err := block.Persist(raw, true, b.opts.Compression, b.opts.ForceCompression)
	if err != nil {
		return block.Handle{}, err
	}
	off, err := b.indexSink.Append(persisted)
	if err != nil {
		return block.Handle{}, err
	}
	return block.Handle{Offset: off, Size: uint64(len(persisted))}, nil
}

func (b *Builder) writeFilterBlock() (block.Handle, error) {
	if b.filterBld == nil || b.filterBld.NumKeys() == 0 {
		return block.NullHandle, nil
	}
	raw := b.filterBld.Finish()
	persisted, err := block.Persist(raw, true, b.opts.Compression, b.opts.ForceCompression)
	if err != nil {
		return block.Handle{}, err
	}
	off, err := b.indexSink.Append(persisted)
	if err != nil {
		return block.Handle{}, err
	}
	return block.Handle{Offset: off, Size: uint64(len(persisted))}, nil
}

// NumEntries returns the number of records added so far.
func (b *Builder) NumEntries() int { return b.numEntries }

// NumDataBlocks returns the number of data blocks flushed so far.
func (b *Builder) NumDataBlocks() int { return b.numDataBlocks }

// Abandon discards the builder without writing a footer.
func (b *Builder) Abandon() { b.finished = true }

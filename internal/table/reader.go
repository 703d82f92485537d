package table

import (
	"bytes"
	"errors"

	"github.com/aalhour/plfsdir/internal/block"
	"github.com/aalhour/plfsdir/internal/filter"
	"github.com/aalhour/plfsdir/internal/logsource"
)

// ErrNotFound is returned by Get when the key is absent from the table,
// including when the Bloom filter rules it out without touching the
// data log.
var ErrNotFound = errors.New("table: not found")

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	// IgnoreFilters skips the Bloom filter probe and always falls
	// through to the index/data scan.
	IgnoreFilters bool
	// SkipChecksums disables CRC32C verification unconditionally.
	SkipChecksums bool
	// VerifyChecksums verifies CRC32C on every block read.
	VerifyChecksums bool
}

// Reader opens a table given its footer pointer within an index log and
// answers point lookups against the data log.
type Reader struct {
	opts ReaderOptions

	indexSource *logsource.Source
	dataSource  *logsource.Source

	footer      block.Footer
	indexBlock  []byte
	filterBlock []byte
	filterRdr   *filter.Reader

	dataBlockReads int
}

// Open reads and decodes the footer at footerHandle, then eagerly loads
// the index block and (if present) the filter block, matching spec.md
// §4.2's "one read, up to read_size bytes" reader-open contract (the two
// blocks are read independently here since they may be discontiguous
// after index-log compression, but never touch the data log).
func Open(opts ReaderOptions, indexSource, dataSource *logsource.Source, footerHandle block.Handle) (*Reader, error) {
	footerBytes, err := indexSource.Read(footerHandle)
	if err != nil {
		return nil, err
	}
	footer, err := block.DecodeFooter(footerBytes)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		opts:        opts,
		indexSource: indexSource,
		dataSource:  dataSource,
		footer:      footer,
	}

	idxRaw, err := indexSource.Read(footer.IndexHandle)
	if err != nil {
		return nil, err
	}
	idxBody, err := block.Read(idxRaw, opts.SkipChecksums, opts.VerifyChecksums)
	if err != nil {
		return nil, err
	}
	r.indexBlock = idxBody

	if !footer.FilterHandle.IsNull() {
		fRaw, err := indexSource.Read(footer.FilterHandle)
		if err != nil {
			return nil, err
		}
		fBody, err := block.Read(fRaw, opts.SkipChecksums, opts.VerifyChecksums)
		if err != nil {
			return nil, err
		}
		r.filterBlock = fBody
		r.filterRdr = filter.NewReader(fBody)
	}

	return r, nil
}

// Get looks up key, returning every value stored under it in insertion
// order (a table may hold duplicates when DirMode is MultiMap). It
// reports ErrNotFound when the key is absent.
func (r *Reader) Get(key []byte) ([][]byte, error) {
	if !r.opts.IgnoreFilters && r.filterRdr != nil {
		if !r.filterRdr.MayContain(key) {
			return nil, ErrNotFound
		}
	}

	handle, ok, err := r.findDataBlock(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}

	raw, err := r.dataSource.Read(handle)
	if err != nil {
		return nil, err
	}
	r.dataBlockReads++
	body, err := block.Read(raw, r.opts.SkipChecksums, r.opts.VerifyChecksums)
	if err != nil {
		return nil, err
	}

	it, err := block.NewIterator(body)
	if err != nil {
		return nil, err
	}
	var values [][]byte
	for it.Next() {
		if bytes.Equal(it.Key(), key) {
			v := make([]byte, len(it.Value()))
			copy(v, it.Value())
			values = append(values, v)
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	return values, nil
}

// findDataBlock binary-scans the index block for the first entry whose
// separator key is >= key, returning the handle of the data block that
// may contain it.
func (r *Reader) findDataBlock(key []byte) (block.Handle, bool, error) {
	it, err := block.NewIterator(r.indexBlock)
	if err != nil {
		return block.Handle{}, false, err
	}
	for it.Next() {
		if bytes.Compare(key, it.Key()) <= 0 {
			h, _, err := block.DecodeHandle(it.Value())
			if err != nil {
				return block.Handle{}, false, err
			}
			return h, true, nil
		}
	}
	if err := it.Err(); err != nil {
		return block.Handle{}, false, err
	}
	return block.Handle{}, false, nil
}

// DataBlockReads reports how many data blocks this reader has fetched,
// for seeks accounting (spec.md §4.6's table_seeks/seeks counters).
func (r *Reader) DataBlockReads() int { return r.dataBlockReads }

package plfsdir

// comparator.go implements key comparison over file-ids.
//
// Comparator defines the total ordering memtable flush and index-block
// construction sort by. The default is bytewise comparison. Unlike the
// teacher, this spec's index blocks store the data block's own last key
// verbatim rather than a shortened separator (internal/table.Builder has
// no prefix compression to exploit), so Comparator carries no
// separator-shortening methods.
//
// Reference: RocksDB v10.7.5
//   - include/rocksdb/comparator.h

import "bytes"

// Comparator defines a total ordering over keys.
type Comparator interface {
	// Compare returns a value < 0 if a < b, 0 if a == b, > 0 if a > b.
	Compare(a, b []byte) int

	// Name returns the name of the comparator.
	Name() string
}

// BytewiseComparator is the default comparator that compares keys lexicographically.
type BytewiseComparator struct{}

// Compare compares two keys lexicographically.
func (c BytewiseComparator) Compare(a, b []byte) int {
	return bytes.Compare(a, b)
}

// Name returns the comparator name.
func (c BytewiseComparator) Name() string {
	return "leveldb.BytewiseComparator"
}

// DefaultComparator returns the default bytewise comparator.
func DefaultComparator() Comparator {
	return BytewiseComparator{}
}

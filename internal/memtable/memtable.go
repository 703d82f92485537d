// Package memtable buffers one partition's writes for the active epoch
// before they are handed to a compaction job.
//
// Unlike the teacher's skiplist-backed MemTable — ordered by an internal
// key carrying a sequence number and value type, so point lookups and
// range scans are cheap against an in-progress write set — this store
// has no MVCC and no in-memory read path: a file-id is only ever looked
// up after its owning epoch has been flushed to a table. The memtable's
// only job is to accumulate (key,value) pairs in insertion order and,
// at flush time, present them sorted (or not, if skip_sort) with
// DirMode collision reduction applied.
//
// Reference: RocksDB v10.7.5 db/memtable.cc (Ref/Unref, Add, memory
// accounting style) adapted to drop sequence numbers and skiplist
// ordering.
package memtable

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/aalhour/plfsdir/internal/dbformat"
)

// Comparator orders keys. nil means bytewise comparison.
type Comparator func(a, b []byte) int

func bytewise(a, b []byte) int {
	return compareBytes(a, b)
}

// entry is one buffered (key,value) pair, tagged with its insertion
// index so a stable order survives sorting and DirMode reduction.
type entry struct {
	key   []byte
	value []byte
	seq   int
}

// MemTable accumulates writes for one partition's active epoch.
type MemTable struct {
	mu      sync.Mutex
	cmp     Comparator
	entries []entry
	nextSeq int

	keyBytes   int64
	valueBytes int64
	refs       int32
}

// New returns an empty MemTable. A nil cmp uses bytewise ordering.
func New(cmp Comparator) *MemTable {
	if cmp == nil {
		cmp = bytewise
	}
	return &MemTable{cmp: cmp, refs: 1}
}

// Ref increments the reference count.
func (mt *MemTable) Ref() {
	atomic.AddInt32(&mt.refs, 1)
}

// Unref decrements the reference count, returning true once it reaches
// zero (the caller may then return the MemTable to a pool).
func (mt *MemTable) Unref() bool {
	return atomic.AddInt32(&mt.refs, -1) == 0
}

// Add buffers one (key,value) write. Safe for concurrent use; callers
// still need to coordinate the active/immutable swap externally (the
// partition pipeline, per spec.md §4.4, holds that lock).
func (mt *MemTable) Add(key, value []byte) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	mt.entries = append(mt.entries, entry{key: k, value: v, seq: mt.nextSeq})
	mt.nextSeq++

	mt.keyBytes += int64(len(k))
	mt.valueBytes += int64(len(v))
}

// Count returns the number of buffered entries.
func (mt *MemTable) Count() int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return len(mt.entries)
}

// Empty reports whether no entries have been added.
func (mt *MemTable) Empty() bool {
	return mt.Count() == 0
}

// ApproximateMemoryUsage estimates the buffer's resident size, including
// a fixed per-entry overhead for the slice header and insertion index.
func (mt *MemTable) ApproximateMemoryUsage() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	const perEntryOverhead = 48
	return mt.keyBytes + mt.valueBytes + int64(len(mt.entries))*perEntryOverhead
}

// Reset clears the memtable for reuse by a new epoch.
func (mt *MemTable) Reset() {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.entries = mt.entries[:0]
	mt.nextSeq = 0
	mt.keyBytes = 0
	mt.valueBytes = 0
}

// Record is one flushed (key,value) pair ready for a table builder.
type Record struct {
	Key   []byte
	Value []byte
}

// Flush drains the memtable's buffered writes into an ordered Record
// slice, applying skip_sort/paranoid_checks and the given DirMode
// collision policy. The MemTable is left populated; call Reset
// separately once the caller is done with the returned Records (which
// alias the MemTable's internal buffers).
//
// When skip_sort is true, paranoid_checks is false, and the entries were
// never sorted, duplicates are resolved against insertion order directly
// (spec.md §5's ordering guarantee for MultiMap/Unique* degrades to
// "whatever order Add was called in").
//
// paranoid_checks dominates skip_sort, per spec.md §9's open question:
// even with skip_sort set, a paranoid flush still verifies the buffer
// is in ascending (non-decreasing) key order and fails the flush with
// ErrOutOfOrder rather than silently accepting a bad insertion order.
func Flush(mt *MemTable, mode dbformat.DirMode, skipSort, paranoidChecks bool) ([]Record, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	ordered := make([]entry, len(mt.entries))
	copy(ordered, mt.entries)

	if !skipSort {
		sort.SliceStable(ordered, func(i, j int) bool {
			return mt.cmp(ordered[i].key, ordered[j].key) < 0
		})
	}

	if paranoidChecks {
		for i := 1; i < len(ordered); i++ {
			if mt.cmp(ordered[i-1].key, ordered[i].key) > 0 {
				return nil, ErrOutOfOrder
			}
		}
	}

	return reduce(ordered, mode, mt.cmp, paranoidChecks)
}

// reduce applies the DirMode collision policy to a key-ordered entry
// slice. MultiMap keeps every entry; the Unique* variants keep exactly
// one entry per distinct key. Under Unique with paranoid_checks, a
// duplicate key is treated as the dbformat.Unique contract violation it
// is and reported as ErrDuplicateKey rather than silently resolved.
func reduce(ordered []entry, mode dbformat.DirMode, cmp Comparator, paranoidChecks bool) ([]Record, error) {
	if mode == dbformat.MultiMap {
		out := make([]Record, len(ordered))
		for i, e := range ordered {
			out[i] = Record{Key: e.key, Value: e.value}
		}
		return out, nil
	}

	out := make([]Record, 0, len(ordered))
	i := 0
	for i < len(ordered) {
		j := i + 1
		for j < len(ordered) && cmp(ordered[j].key, ordered[i].key) == 0 {
			j++
		}
		group := ordered[i:j]
		if mode == dbformat.Unique && paranoidChecks && len(group) > 1 {
			return nil, ErrDuplicateKey
		}
		switch mode {
		case dbformat.UniqueOverride:
			// Last insertion wins: pick the entry with the highest seq.
			best := group[0]
			for _, e := range group[1:] {
				if e.seq > best.seq {
					best = e
				}
			}
			out = append(out, Record{Key: best.key, Value: best.value})
		case dbformat.UniqueDrop, dbformat.Unique:
			// First insertion wins: pick the entry with the lowest seq.
			best := group[0]
			for _, e := range group[1:] {
				if e.seq < best.seq {
					best = e
				}
			}
			out = append(out, Record{Key: best.key, Value: best.value})
		}
		i = j
	}
	return out, nil
}

// compareBytes is the default bytewise comparison, matching the root
// BytewiseComparator's Compare method without importing the root
// package (which would create an import cycle).
func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

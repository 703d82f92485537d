package memtable

import "errors"

// ErrOutOfOrder is returned by Flush when paranoid_checks is set and the
// buffered entries are not in ascending (non-decreasing) key order,
// which can only happen when skip_sort is also set.
var ErrOutOfOrder = errors.New("memtable: entries out of order")

// ErrDuplicateKey is returned by Flush when mode is dbformat.Unique,
// paranoid_checks is set, and two entries share a key.
var ErrDuplicateKey = errors.New("memtable: duplicate key under Unique mode")

package plfsdir

// statistics.go implements the I/O accounting exposed by
// DirWriter.GetIoStats/DirReader.GetIoStats (spec.md §9). Unlike the
// teacher's Statistics type — dozens of tickers and histograms spanning
// block cache, compaction, WAL, and per-level read amplification — this
// store only ever writes/reads two logs (data, index) per writer rank,
// so there are exactly four counters. DirWriter records its compaction
// output under measure_writes; DirReader records no reads, so
// measure_reads has no effect.
//
// Reference: deltafs_plfsio.h (IoStats)

import "sync/atomic"

// IoStats accumulates byte and operation counts for the data and index
// logs. All fields are accessed atomically so a DirWriter/DirReader can
// report live stats while compactions or reads are in flight.
type IoStats struct {
	indexBytes int64
	indexOps   int64
	dataBytes  int64
	dataOps    int64
}

// AddIndex records one index-log I/O of n bytes.
func (s *IoStats) AddIndex(n int) {
	atomic.AddInt64(&s.indexBytes, int64(n))
	atomic.AddInt64(&s.indexOps, 1)
}

// AddData records one data-log I/O of n bytes.
func (s *IoStats) AddData(n int) {
	atomic.AddInt64(&s.dataBytes, int64(n))
	atomic.AddInt64(&s.dataOps, 1)
}

// IndexBytes returns the total bytes moved through the index log.
func (s *IoStats) IndexBytes() int64 { return atomic.LoadInt64(&s.indexBytes) }

// IndexOps returns the number of index-log I/Os recorded.
func (s *IoStats) IndexOps() int64 { return atomic.LoadInt64(&s.indexOps) }

// DataBytes returns the total bytes moved through the data log.
func (s *IoStats) DataBytes() int64 { return atomic.LoadInt64(&s.dataBytes) }

// DataOps returns the number of data-log I/Os recorded.
func (s *IoStats) DataOps() int64 { return atomic.LoadInt64(&s.dataOps) }

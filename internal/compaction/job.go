// Package compaction implements the partitioned compaction pipeline
// (spec.md §4.4): given a flushed, DirMode-reduced set of records for
// one (epoch, partition), build one table and write it through the
// shared data and index log sinks.
//
// The teacher's compaction package picks files via a size-tiered or
// leveled heuristic and merges several inputs into fewer outputs; this
// store never merges existing tables (there is no read-amplification
// problem to solve, since DirReader just concatenates every epoch) so a
// "compaction job" here is always exactly one memtable becoming exactly
// one table.
//
// Reference: deltafs_plfsio.cc (CompactionJob); internal/compaction
// compaction.go (job struct/Run shape, adapted to a single-input,
// single-output job)
package compaction

import (
	"github.com/aalhour/plfsdir/internal/block"
	"github.com/aalhour/plfsdir/internal/logsink"
	"github.com/aalhour/plfsdir/internal/memtable"
	"github.com/aalhour/plfsdir/internal/table"
)

// Job describes one partition's pending compaction: the records to
// write (already sorted and DirMode-reduced by memtable.Flush) and the
// shared log sinks to write them through.
type Job struct {
	Epoch     int
	Partition int
	Records   []memtable.Record
	TableOpts table.BuilderOptions
	DataSink  *logsink.Sink
	IndexSink *logsink.Sink
}

// Result is the outcome of a completed job: the table's footer pointer
// within the index log, plus byte counts for IoStats accounting.
type Result struct {
	Footer        block.Handle
	DataBytes     int64
	IndexBytes    int64
	NumEntries    int
	NumDataBlocks int
}

// Run builds one table from job.Records and returns its footer pointer.
func Run(job Job) (Result, error) {
	dataStart := job.DataSink.Offset()
	indexStart := job.IndexSink.Offset()

	b := table.NewBuilder(job.TableOpts, job.DataSink, job.IndexSink)
	for _, r := range job.Records {
		if err := b.Add(r.Key, r.Value); err != nil {
			return Result{}, err
		}
	}
	footer, err := b.Finish()
	if err != nil {
		return Result{}, err
	}
	return Result{
		Footer:        footer,
		DataBytes:     int64(job.DataSink.Offset() - dataStart),
		IndexBytes:    int64(job.IndexSink.Offset() - indexStart),
		NumEntries:    b.NumEntries(),
		NumDataBlocks: b.NumDataBlocks(),
	}, nil
}

package plfsdir

// dirwriter.go implements DirWriter, the write-side orchestration for a
// log-structured, partitioned directory (spec.md §4/§8): it owns the
// shared data and index log sinks, routes each Append to its hash
// partition, and schedules that partition's compaction job once its
// memtable rotates out, the way the teacher's DBImpl owns its WAL
// writer and column families and schedules flush/compaction jobs
// against them.
//
// Reference: deltafs_plfsio.cc (DirWriter); db/db.go (background-error
// latch, rank/Open/Close shape)

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aalhour/plfsdir/internal/compaction"
	"github.com/aalhour/plfsdir/internal/dbformat"
	"github.com/aalhour/plfsdir/internal/logsink"
	"github.com/aalhour/plfsdir/internal/manifest"
	"github.com/aalhour/plfsdir/internal/memtable"
	"github.com/aalhour/plfsdir/internal/partition"
	"github.com/aalhour/plfsdir/internal/scheduler"
	"github.com/aalhour/plfsdir/internal/table"
)

// manifestTrailerSize is the width of the fixed trailer written at the
// very end of the index log, recording the byte length of the manifest
// that immediately precedes it so a reader can find it without a
// separate directory file.
const manifestTrailerSize = 8

// BatchCursor lets a caller stream many records into one Write call
// without allocating an intermediate slice; Write is built on top of
// Append, the common-case single-record entry point. Restored from
// deltafs_plfsio.h's Write(BatchCursor*, epoch), dropped by the
// distilled spec but useful for bulk ingestion.
type BatchCursor interface {
	// Next advances the cursor and reports whether it landed on a
	// record; once it returns false the cursor is exhausted.
	Next() bool
	// Fid returns the current record's file-id.
	Fid() []byte
	// Data returns the current record's payload.
	Data() []byte
}

// DirWriter accepts epoch-tagged (file-id, value) writes, buffers them
// per partition, and compacts rotated memtables into tables streamed
// across two shared logs (data, index). It is safe for concurrent
// Append calls.
type DirWriter struct {
	opts *DirOptions
	dir  string
	rank int

	dataFile  vfsWritableCloser
	indexFile vfsWritableCloser
	dataSink  *logsink.Sink
	indexSink *logsink.Sink
	dirLock   closer

	partitions []*partition.Partition
	sched      scheduler.Scheduler

	mu       sync.Mutex
	closed   bool
	bgErr    error
	manifest *manifest.Builder
	maxEpoch int

	wg sync.WaitGroup

	stats IoStats
}

type vfsWritableCloser interface {
	Close() error
}

type closer interface {
	Close() error
}

// Open creates (or truncates) a directory's on-disk log files under dir
// and returns a ready-to-use DirWriter. opts may be nil, in which case
// DefaultDirOptions is used.
func Open(dir string, opts *DirOptions) (*DirWriter, error) {
	if opts == nil {
		opts = DefaultDirOptions()
	}
	o := opts.Sanitize()

	if err := o.Env.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("plfsdir: mkdir %s: %w", dir, err)
	}

	lockName := dir + "/LOCK"
	lock, err := o.Env.Lock(lockName)
	if err != nil {
		return nil, fmt.Errorf("plfsdir: lock %s: %w", lockName, err)
	}

	dataName := fmt.Sprintf("%s/DATA-%06d", dir, o.Rank)
	indexName := fmt.Sprintf("%s/INDEX-%06d", dir, o.Rank)

	dataFile, err := o.Env.Create(dataName)
	if err != nil {
		_ = lock.Close()
		return nil, fmt.Errorf("plfsdir: create %s: %w", dataName, err)
	}
	indexFile, err := o.Env.Create(indexName)
	if err != nil {
		_ = dataFile.Close()
		_ = lock.Close()
		return nil, fmt.Errorf("plfsdir: create %s: %w", indexName, err)
	}

	dataBatch := o.DataBuffer
	if o.BlockBatchSize > 0 && o.BlockBatchSize < dataBatch {
		dataBatch = o.BlockBatchSize
	}
	dataSink := logsink.New(dataFile, int(dataBatch), nil, "DATA-")
	indexSink := logsink.New(indexFile, int(o.IndexBuffer), nil, "INDEX-")
	if o.RateLimiter != nil {
		limiter := rateLimiterAdapter{o.RateLimiter}
		dataSink.SetRateLimiter(limiter, logsink.PriorityLow)
		indexSink.SetRateLimiter(limiter, logsink.PriorityLow)
	}

	numParts := o.Partitions()
	perPartBudget := int64(float64(o.TotalMemtableBudget/int64(numParts)) * o.MemtableUtil)
	slowdown := time.Duration(o.SlowdownMicros) * time.Microsecond

	parts := make([]*partition.Partition, numParts)
	for i := range parts {
		parts[i] = partition.New(i, memtable.Comparator(compareBytewise), perPartBudget, o.NonBlocking, slowdown)
	}

	var sched scheduler.Scheduler = scheduler.Synchronous{}
	if o.CompactionPool != nil {
		sched = o.CompactionPool
	} else if o.AllowEnvThreads {
		sched = &scheduler.GoroutinePool{}
	}

	w := &DirWriter{
		opts:       o,
		dir:        dir,
		rank:       o.Rank,
		dataFile:   dataFile,
		indexFile:  indexFile,
		dataSink:   dataSink,
		indexSink:  indexSink,
		dirLock:    lock,
		partitions: parts,
		sched:      sched,
		manifest:   manifest.NewBuilder(o.LgParts, 0, o.Mode),
	}
	return w, nil
}

func compareBytewise(a, b []byte) int {
	return DefaultComparator().Compare(a, b)
}

// rateLimiterAdapter satisfies logsink.RateLimiter by forwarding to a
// root-package RateLimiter, translating logsink's priority enum so
// internal/logsink need not import the root package.
type rateLimiterAdapter struct {
	rl RateLimiter
}

func (a rateLimiterAdapter) Request(bytes int64, priority logsink.Priority) {
	p := IOPriorityLow
	if priority == logsink.PriorityHigh {
		p = IOPriorityHigh
	}
	a.rl.Request(bytes, p)
}

// Append buffers one (file-id, value) record tagged with epoch into its
// hash partition. If the partition's memtable has reached budget, its
// previous contents are scheduled for compaction on this call.
func (w *DirWriter) Append(epoch int, fid, value []byte) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.bgErr != nil {
		err := w.bgErr
		w.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrBackgroundError, err)
	}
	if epoch > w.maxEpoch {
		w.maxEpoch = epoch
	}
	w.mu.Unlock()

	pid := int(dbformat.Partition(fid, uint(w.opts.LgParts)))
	p := w.partitions[pid]

	rotated, err := p.Add(fid, value)
	if errors.Is(err, partition.ErrBufferFull) {
		return ErrBufferFull
	}
	if err != nil {
		return err
	}
	if rotated != nil {
		w.scheduleCompaction(epoch, pid, p, rotated)
	}
	return nil
}

// Write streams every record from cur through Append, tagging each with
// epoch.
func (w *DirWriter) Write(epoch int, cur BatchCursor) error {
	for cur.Next() {
		if err := w.Append(epoch, cur.Fid(), cur.Data()); err != nil {
			return err
		}
	}
	return nil
}

// scheduleCompaction runs (synchronously or on w.sched) the job that
// turns a just-rotated memtable into a table, recording its footer in
// the manifest and releasing the partition's immutable slot when done.
func (w *DirWriter) scheduleCompaction(epoch, pid int, p *partition.Partition, mt *memtable.MemTable) {
	w.wg.Add(1)
	w.sched.Schedule(func() {
		defer w.wg.Done()
		defer p.CompactionDone()

		start := time.Now()
		if w.opts.Listener != nil {
			w.opts.Listener.OnCompactionStart(CompactionStartEvent{Part: pid, Micros: start.UnixMicro()})
		}

		records, err := memtable.Flush(mt, w.opts.Mode, w.opts.SkipSort, w.opts.ParanoidChecks)
		if err != nil {
			w.setBackgroundError(err)
			return
		}

		res, err := compaction.Run(compaction.Job{
			Epoch:     epoch,
			Partition: pid,
			Records:   records,
			TableOpts: table.BuilderOptions{
				BlockSize:        w.opts.BlockSize,
				BlockUtil:        w.opts.BlockUtil,
				BlockPadding:     w.opts.BlockPadding,
				BfBitsPerKey:     w.opts.BfBitsPerKey,
				Compression:      w.opts.Compression,
				ForceCompression: w.opts.ForceCompression,
			},
			DataSink:  w.dataSink,
			IndexSink: w.indexSink,
		})
		if err != nil {
			w.setBackgroundError(err)
			return
		}

		if w.opts.MeasureWrites {
			w.stats.AddData(int(res.DataBytes))
			w.stats.AddIndex(int(res.IndexBytes))
		}

		w.mu.Lock()
		w.manifest.Add(epoch, pid, res.Footer)
		w.mu.Unlock()

		if w.opts.Listener != nil {
			w.opts.Listener.OnCompactionEnd(CompactionEndEvent{Part: pid, Micros: time.Now().UnixMicro()})
		}
	})
}

func (w *DirWriter) setBackgroundError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bgErr == nil {
		w.bgErr = err
	}
}

// EpochFlush forces every partition to rotate its current memtable
// (even if under budget) and schedules its compaction, closing out
// epoch. Subsequent Append calls should use epoch+1.
func (w *DirWriter) EpochFlush(epoch int) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.bgErr != nil {
		err := w.bgErr
		w.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrBackgroundError, err)
	}
	w.mu.Unlock()

	for pid, p := range w.partitions {
		rotated, err := p.Flush()
		if err != nil {
			return err
		}
		if rotated != nil {
			w.scheduleCompaction(epoch, pid, p, rotated)
		}
	}
	return nil
}

// Flush is a synonym for EpochFlush(epoch), kept for symmetry with the
// read path's naming and the original interface's bare Flush entry
// point (callers that don't care about explicit epoch numbering can
// track the current epoch themselves and call this each time).
func (w *DirWriter) Flush(epoch int) error {
	return w.EpochFlush(epoch)
}

// WaitForOne blocks until at least one outstanding compaction job has
// completed, or returns immediately if none are outstanding.
func (w *DirWriter) WaitForOne() {
	w.sched.Wait()
}

// Wait blocks until every outstanding compaction job has completed.
func (w *DirWriter) Wait() {
	w.wg.Wait()
	w.sched.Wait()
}

// Finish flushes every partition's remaining memtable, waits for all
// compactions to complete, writes the manifest to the end of the index
// log, and closes both logs. Finish is idempotent: once it has
// succeeded, later calls write nothing and return nil.
func (w *DirWriter) Finish() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	if err := w.EpochFlush(w.maxEpoch); err != nil {
		return err
	}
	w.Wait()

	w.mu.Lock()
	bgErr := w.bgErr
	w.mu.Unlock()
	if bgErr != nil {
		return fmt.Errorf("%w: %w", ErrBackgroundError, bgErr)
	}

	if w.opts.TailPadding {
		if err := w.dataSink.Pad(int(w.opts.DataBuffer)); err != nil {
			return err
		}
		if err := w.indexSink.Pad(int(w.opts.IndexBuffer)); err != nil {
			return err
		}
	}

	// The manifest and its trailer are written last and never padded:
	// DirReader locates them by reading the final manifestTrailerSize
	// bytes of the index log, so nothing may follow them.
	w.mu.Lock()
	w.manifest.SetEpochs(w.maxEpoch + 1)
	encoded := w.manifest.Finish()
	w.mu.Unlock()

	if _, err := w.indexSink.Append(encoded); err != nil {
		return err
	}
	var trailer [manifestTrailerSize]byte
	binary.LittleEndian.PutUint64(trailer[:], uint64(len(encoded)))
	if _, err := w.indexSink.Append(trailer[:]); err != nil {
		return err
	}

	if err := w.dataSink.Close(); err != nil {
		return err
	}
	if err := w.indexSink.Close(); err != nil {
		return err
	}
	if err := w.dirLock.Close(); err != nil {
		return err
	}

	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return nil
}

// GetIoStats returns a snapshot of accumulated data/index log I/O.
func (w *DirWriter) GetIoStats() IoStats {
	return IoStats{
		indexBytes: w.stats.IndexBytes(),
		indexOps:   w.stats.IndexOps(),
		dataBytes:  w.stats.DataBytes(),
		dataOps:    w.stats.DataOps(),
	}
}

// TestNumPartitions returns the number of hash partitions this writer
// was opened with (2^LgParts).
func (w *DirWriter) TestNumPartitions() int {
	return len(w.partitions)
}

// TestPartitionBytes returns partition pid's active memtable's
// approximate in-memory size, for tests that assert rotation behavior
// without reaching into internal state.
func (w *DirWriter) TestPartitionBytes(pid int) int64 {
	return w.partitions[pid].MutableBytes()
}

// TestPartitionKeys returns partition pid's active memtable's record
// count.
func (w *DirWriter) TestPartitionKeys(pid int) int {
	return w.partitions[pid].MutableCount()
}

// TestCurrentEpoch returns the highest epoch number seen by Append so
// far.
func (w *DirWriter) TestCurrentEpoch() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.maxEpoch
}

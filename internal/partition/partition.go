// Package partition holds per-partition write-path state: the active
// memtable, the at-most-one memtable rotated out and awaiting
// compaction, and the blocking/non-blocking backpressure policy applied
// when both are full (spec.md §4.3/§4.4).
//
// Reference: deltafs_plfsio.cc (DirWriter's per-partition Compaction
// state machine), adapted here into its own type since this store's
// "partition" concept has no leveled-LSM analogue in the teacher to
// generalize directly.
package partition

import (
	"errors"
	"sync"
	"time"

	"github.com/aalhour/plfsdir/internal/memtable"
)

// ErrBufferFull is returned by Add when both the mutable and immutable
// memtable slots are occupied and the partition is configured
// non-blocking.
var ErrBufferFull = errors.New("partition: buffer full")

// Partition is one hash-partitioned pipeline: a mutable memtable
// accepting writes for the current epoch, and at most one immutable
// memtable awaiting (or undergoing) compaction.
type Partition struct {
	mu   sync.Mutex
	cond *sync.Cond

	id      int
	budget  int64 // byte threshold at which the mutable memtable rotates
	cmp     memtable.Comparator
	mutable *memtable.MemTable

	immutable   *memtable.MemTable
	compacting  bool
	nonBlocking bool
	slowdown    time.Duration
}

// New creates a Partition with the given id, per-partition byte budget
// (total_memtable_budget / 2^lg_parts, scaled by memtable_util), and
// backpressure policy.
func New(id int, cmp memtable.Comparator, budget int64, nonBlocking bool, slowdown time.Duration) *Partition {
	p := &Partition{
		id:          id,
		budget:      budget,
		cmp:         cmp,
		mutable:     memtable.New(cmp),
		nonBlocking: nonBlocking,
		slowdown:    slowdown,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// ID returns the partition index.
func (p *Partition) ID() int { return p.id }

// Add buffers one (key,value) write, rotating the mutable memtable into
// the immutable slot first if it has reached budget. If a memtable was
// rotated out, it is returned so the caller can schedule its
// compaction; the caller must later call CompactionDone once that job
// finishes.
//
// When the immutable slot is already occupied by a prior, not-yet-done
// compaction and the mutable memtable is also at budget, Add blocks
// until the slot frees (waking at least every slowdown, to recheck) or,
// if nonBlocking is set, returns ErrBufferFull after one such wait (at
// once when slowdown is zero).
func (p *Partition) Add(key, value []byte) (rotated *memtable.MemTable, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.mutableFullLocked() && p.immutable != nil {
		if p.nonBlocking {
			if p.slowdown > 0 {
				p.waitOnceLocked()
			}
			if p.mutableFullLocked() && p.immutable != nil {
				return nil, ErrBufferFull
			}
			break
		}
		p.waitOnceLocked()
	}

	if p.mutableFullLocked() && p.immutable == nil {
		rotated = p.mutable
		p.immutable = rotated
		p.compacting = true
		p.mutable = memtable.New(p.cmp)
	}

	p.mutable.Add(key, value)
	return rotated, nil
}

// Flush forces a rotation regardless of budget utilization (used by
// EpochFlush/Finish to drain a partition's final, possibly
// under-budget, memtable). It blocks under the same policy as Add if a
// prior compaction is still in flight.
func (p *Partition) Flush() (rotated *memtable.MemTable, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.immutable != nil {
		if p.nonBlocking {
			p.waitOnceLocked()
			if p.immutable != nil {
				return nil, ErrBufferFull
			}
			break
		}
		p.waitOnceLocked()
	}

	if p.mutable.Empty() {
		return nil, nil
	}
	rotated = p.mutable
	p.immutable = rotated
	p.compacting = true
	p.mutable = memtable.New(p.cmp)
	return rotated, nil
}

// CompactionDone releases the immutable slot, waking any Add/Flush
// callers blocked on it.
func (p *Partition) CompactionDone() {
	p.mu.Lock()
	p.immutable = nil
	p.compacting = false
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Compacting reports whether this partition currently has a compaction
// in flight.
func (p *Partition) Compacting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.compacting
}

// MutableBytes reports the active memtable's approximate memory usage,
// for introspection (TEST_ approximate-memory-usage style accessors).
func (p *Partition) MutableBytes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mutable.ApproximateMemoryUsage()
}

// MutableCount reports the active memtable's record count.
func (p *Partition) MutableCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mutable.Count()
}

func (p *Partition) mutableFullLocked() bool {
	return p.mutable.ApproximateMemoryUsage() >= p.budget
}

// waitOnceLocked waits on the condition variable, bounded by slowdown
// when set, so blocked callers periodically recheck state rather than
// relying solely on CompactionDone's broadcast (matching
// slowdown_micros' documented role as a backpressure retry interval).
func (p *Partition) waitOnceLocked() {
	if p.slowdown <= 0 {
		p.cond.Wait()
		return
	}
	timer := time.AfterFunc(p.slowdown, p.cond.Broadcast)
	defer timer.Stop()
	p.cond.Wait()
}

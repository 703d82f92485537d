package plfsdir

import "sync"

// event_listener.go implements the observer hooks a DirWriter calls out
// to around compactions (spec.md §9/§10). Unlike
// the teacher's RocksDB-shaped EventListener — flush/compaction/file
// lifecycle callbacks keyed to column families and LSM levels — this
// store has no levels and no flush/compaction distinction beyond
// "one partition's memtable became a table": there are exactly four
// event kinds, matching deltafs_plfsio_events.h.
//
// Reference: deltafs_plfsio_events.h (EventListener, Compaction/Io
// event structs)

// CompactionStartEvent is delivered just before a partition's immutable
// memtable begins draining into a table.
type CompactionStartEvent struct {
	// Part is the partition index (in [0, 2^lg_parts)).
	Part int
	// Micros is the wall-clock time of the event, in microseconds since
	// the Unix epoch (time.Now().UnixMicro()).
	Micros int64
}

// CompactionEndEvent is delivered once a partition's compaction job has
// finished writing its table and footer.
type CompactionEndEvent struct {
	// Part is the partition index.
	Part int
	// Micros is the wall-clock time at which the job finished, in
	// microseconds since the Unix epoch.
	Micros int64
}

// IoEvent is the payload of OnIoStart and OnIoEnd. DirWriter and
// DirReader never call those methods, so no IoEvent is delivered.
type IoEvent struct {
	// Micros is a timestamp, in microseconds.
	Micros int64
}

// EventListener receives notifications about DirWriter/DirReader
// activity. All methods must be safe to call concurrently from multiple
// partitions' compaction goroutines, and must not block: a slow
// listener stalls the compaction that invoked it.
type EventListener interface {
	// OnCompactionStart is called when a partition's compaction job
	// begins draining its immutable memtable.
	OnCompactionStart(event CompactionStartEvent)

	// OnCompactionEnd is called when a partition's compaction job has
	// finished writing its table.
	OnCompactionEnd(event CompactionEndEvent)

	// OnIoStart takes the start of a log write or read. DirWriter and
	// DirReader never call it.
	OnIoStart(event IoEvent)

	// OnIoEnd takes the end of a log write or read. DirWriter and
	// DirReader never call it.
	OnIoEnd(event IoEvent)
}

// NoOpEventListener implements EventListener with empty bodies. Embed it
// in a custom listener to only override the events of interest.
type NoOpEventListener struct{}

func (NoOpEventListener) OnCompactionStart(CompactionStartEvent) {}
func (NoOpEventListener) OnCompactionEnd(CompactionEndEvent)     {}
func (NoOpEventListener) OnIoStart(IoEvent)                      {}
func (NoOpEventListener) OnIoEnd(IoEvent)                        {}

// CountingEventListener tallies event occurrences; useful for
// asserting that a writer/reader actually fired the events it should.
type CountingEventListener struct {
	NoOpEventListener
	mu               sync.Mutex
	CompactionStarts int
	CompactionEnds   int
	IoStarts         int
	IoEnds           int
}

func (l *CountingEventListener) OnCompactionStart(CompactionStartEvent) {
	l.mu.Lock()
	l.CompactionStarts++
	l.mu.Unlock()
}

func (l *CountingEventListener) OnCompactionEnd(CompactionEndEvent) {
	l.mu.Lock()
	l.CompactionEnds++
	l.mu.Unlock()
}

func (l *CountingEventListener) OnIoStart(IoEvent) {
	l.mu.Lock()
	l.IoStarts++
	l.mu.Unlock()
}

func (l *CountingEventListener) OnIoEnd(IoEvent) {
	l.mu.Lock()
	l.IoEnds++
	l.mu.Unlock()
}

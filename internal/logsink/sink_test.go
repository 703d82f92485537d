package logsink

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/aalhour/plfsdir/vfs"
)

func TestAppendReturnsLogicalOffsetBeforeFlush(t *testing.T) {
	fs := vfs.NewMemFS()
	wf, err := fs.Create("DATA-0")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s := New(wf, 1<<20, nil, "DATA-")

	off1, err := s.Append([]byte("hello"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if off1 != 0 {
		t.Fatalf("first Append offset = %d, want 0", off1)
	}
	off2, err := s.Append([]byte("world"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if off2 != 5 {
		t.Fatalf("second Append offset = %d, want 5", off2)
	}

	// Nothing has hit the file yet, since batchSize is large.
	size, err := wf.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 0 {
		t.Fatalf("file size before flush = %d, want 0", size)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rf, err := fs.Open("DATA-0")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rf.Close()
	all, err := io.ReadAll(rf)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(all, []byte("helloworld")) {
		t.Fatalf("file contents = %q, want %q", all, "helloworld")
	}
}

func TestAppendFlushesAtBatchThreshold(t *testing.T) {
	fs := vfs.NewMemFS()
	wf, _ := fs.Create("DATA-0")
	s := New(wf, 4, nil, "DATA-")

	if _, err := s.Append([]byte("abcdef")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	size, err := wf.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 6 {
		t.Fatalf("file size after crossing batch threshold = %d, want 6", size)
	}
}

func TestPadAlignsOffset(t *testing.T) {
	fs := vfs.NewMemFS()
	wf, _ := fs.Create("INDEX-0")
	s := New(wf, 1<<20, nil, "INDEX-")

	if _, err := s.Append([]byte("abc")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Pad(8); err != nil {
		t.Fatalf("Pad: %v", err)
	}
	if s.Offset() != 8 {
		t.Fatalf("Offset() after Pad = %d, want 8", s.Offset())
	}
}

func TestRefUnref(t *testing.T) {
	fs := vfs.NewMemFS()
	wf, _ := fs.Create("DATA-0")
	s := New(wf, 1<<20, nil, "DATA-")

	s.Ref()
	if s.Unref() {
		t.Fatal("Unref should not reach zero yet")
	}
	if !s.Unref() {
		t.Fatal("Unref should reach zero now")
	}
}

type recordingLimiter struct {
	mu       sync.Mutex
	requests []int64
	priority Priority
}

func (l *recordingLimiter) Request(bytes int64, priority Priority) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, bytes)
	l.priority = priority
}

func TestSetRateLimiterThrottlesFlush(t *testing.T) {
	fs := vfs.NewMemFS()
	wf, _ := fs.Create("DATA-0")
	s := New(wf, 4, nil, "DATA-")

	limiter := &recordingLimiter{}
	s.SetRateLimiter(limiter, PriorityLow)

	if _, err := s.Append([]byte("abcdef")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if len(limiter.requests) == 0 {
		t.Fatal("Request was never called; flush did not consult the rate limiter")
	}
	var total int64
	for _, n := range limiter.requests {
		total += n
	}
	if total != 6 {
		t.Fatalf("total bytes requested = %d, want 6", total)
	}
	if limiter.priority != PriorityLow {
		t.Fatalf("priority = %v, want PriorityLow", limiter.priority)
	}
}

func TestExternalMutexShared(t *testing.T) {
	fs := vfs.NewMemFS()
	dataFile, _ := fs.Create("DATA-0")
	indexFile, _ := fs.Create("INDEX-0")

	var mu sync.Mutex
	dataSink := New(dataFile, 1<<20, &mu, "DATA-")
	indexSink := New(indexFile, 1<<20, &mu, "INDEX-")

	if _, err := dataSink.Append([]byte("d")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := indexSink.Append([]byte("i")); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

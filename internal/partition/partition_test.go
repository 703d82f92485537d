package partition

import (
	"testing"
	"time"
)

func TestAddRotatesAtBudget(t *testing.T) {
	p := New(0, nil, 10, false, 0)

	if rotated, err := p.Add([]byte("k1"), []byte("v1")); err != nil || rotated != nil {
		t.Fatalf("first Add: rotated=%v err=%v", rotated, err)
	}
	// Push well past budget (10 bytes) to force rotation on next Add.
	rotated, err := p.Add([]byte("k2"), []byte("v2-padding-bytes"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if rotated == nil {
		t.Fatal("expected a rotation after exceeding budget")
	}
	if rotated.Count() != 1 {
		t.Fatalf("rotated.Count() = %d, want 1", rotated.Count())
	}
	if p.Compacting() != true {
		t.Fatal("Compacting() should be true after rotation")
	}
}

func TestCompactionDoneReleasesSlot(t *testing.T) {
	p := New(0, nil, 1, false, 0)

	// The first Add fills the empty memtable past its 1-byte budget; the
	// rotation happens on the next Add.
	if rotated, err := p.Add([]byte("k0"), []byte("v0")); err != nil || rotated != nil {
		t.Fatalf("first Add: rotated=%v err=%v", rotated, err)
	}
	rotated, err := p.Add([]byte("k1"), []byte("v1"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if rotated == nil {
		t.Fatal("expected rotation on the Add after the budget was reached")
	}
	if !p.Compacting() {
		t.Fatal("expected Compacting() true")
	}
	p.CompactionDone()
	if p.Compacting() {
		t.Fatal("expected Compacting() false after CompactionDone")
	}
}

func TestAddNonBlockingReturnsBufferFull(t *testing.T) {
	p := New(0, nil, 1, true, 5*time.Millisecond)

	// The first Add fills the empty memtable past its 1-byte budget; the
	// rotation happens on the next Add.
	if rotated, err := p.Add([]byte("k0"), []byte("v0")); err != nil || rotated != nil {
		t.Fatalf("first Add: rotated=%v err=%v", rotated, err)
	}
	rotated, err := p.Add([]byte("k1"), []byte("v1"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if rotated == nil {
		t.Fatal("expected rotation")
	}
	// Immutable slot still occupied (no CompactionDone yet); mutable is
	// also already over budget, so a further Add should report buffer full.
	if _, err := p.Add([]byte("k2"), []byte("v2")); err != ErrBufferFull {
		t.Fatalf("Add err = %v, want ErrBufferFull", err)
	}
}

func TestFlushDrainsUnderBudgetMemtable(t *testing.T) {
	p := New(0, nil, 1<<20, false, 0)
	if _, err := p.Add([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	rotated, err := p.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if rotated == nil || rotated.Count() != 1 {
		t.Fatalf("Flush rotated = %v", rotated)
	}
}

func TestFlushOnEmptyIsNoop(t *testing.T) {
	p := New(0, nil, 1<<20, false, 0)
	rotated, err := p.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if rotated != nil {
		t.Fatal("expected no rotation for empty memtable")
	}
}

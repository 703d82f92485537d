package memtable

import (
	"testing"

	"github.com/aalhour/plfsdir/internal/dbformat"
)

func keys(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = string(r.Key)
	}
	return out
}

func values(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = string(r.Value)
	}
	return out
}

func TestFlushSortsByDefault(t *testing.T) {
	mt := New(nil)
	mt.Add([]byte("charlie"), []byte("3"))
	mt.Add([]byte("alpha"), []byte("1"))
	mt.Add([]byte("bravo"), []byte("2"))

	records, err := Flush(mt, dbformat.MultiMap, false, false)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	want := []string{"alpha", "bravo", "charlie"}
	if got := keys(records); !equalStrings(got, want) {
		t.Fatalf("Flush keys = %v, want %v", got, want)
	}
}

func TestFlushSkipSortPreservesInsertionOrder(t *testing.T) {
	mt := New(nil)
	mt.Add([]byte("charlie"), []byte("3"))
	mt.Add([]byte("alpha"), []byte("1"))

	records, err := Flush(mt, dbformat.MultiMap, true, false)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	want := []string{"charlie", "alpha"}
	if got := keys(records); !equalStrings(got, want) {
		t.Fatalf("Flush keys = %v, want %v", got, want)
	}
}

func TestFlushMultiMapKeepsAllDuplicates(t *testing.T) {
	mt := New(nil)
	mt.Add([]byte("k"), []byte("v1"))
	mt.Add([]byte("k"), []byte("v2"))
	mt.Add([]byte("k"), []byte("v3"))

	records, err := Flush(mt, dbformat.MultiMap, false, false)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}
}

func TestFlushUniqueOverrideKeepsLast(t *testing.T) {
	mt := New(nil)
	mt.Add([]byte("k"), []byte("v1"))
	mt.Add([]byte("k"), []byte("v2"))
	mt.Add([]byte("k"), []byte("v3"))

	records, err := Flush(mt, dbformat.UniqueOverride, false, false)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(records) != 1 || string(records[0].Value) != "v3" {
		t.Fatalf("UniqueOverride result = %v, want single v3", values(records))
	}
}

func TestFlushUniqueDropKeepsFirst(t *testing.T) {
	mt := New(nil)
	mt.Add([]byte("k"), []byte("v1"))
	mt.Add([]byte("k"), []byte("v2"))

	records, err := Flush(mt, dbformat.UniqueDrop, false, false)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(records) != 1 || string(records[0].Value) != "v1" {
		t.Fatalf("UniqueDrop result = %v, want single v1", values(records))
	}
}

func TestFlushUniqueParanoidRejectsDuplicate(t *testing.T) {
	mt := New(nil)
	mt.Add([]byte("k"), []byte("v1"))
	mt.Add([]byte("k"), []byte("v2"))

	if _, err := Flush(mt, dbformat.Unique, false, true); err != ErrDuplicateKey {
		t.Fatalf("Flush err = %v, want ErrDuplicateKey", err)
	}
}

func TestFlushParanoidDominatesSkipSort(t *testing.T) {
	mt := New(nil)
	mt.Add([]byte("b"), []byte("2"))
	mt.Add([]byte("a"), []byte("1"))

	if _, err := Flush(mt, dbformat.MultiMap, true, true); err != ErrOutOfOrder {
		t.Fatalf("Flush err = %v, want ErrOutOfOrder (paranoid_checks verifies order under skip_sort)", err)
	}
}

func TestResetClearsBuffer(t *testing.T) {
	mt := New(nil)
	mt.Add([]byte("a"), []byte("1"))
	if mt.Empty() {
		t.Fatal("expected non-empty before Reset")
	}
	mt.Reset()
	if !mt.Empty() {
		t.Fatal("expected empty after Reset")
	}
	if mt.ApproximateMemoryUsage() != 0 {
		t.Fatalf("ApproximateMemoryUsage after Reset = %d, want 0", mt.ApproximateMemoryUsage())
	}
}

func TestRefUnref(t *testing.T) {
	mt := New(nil)
	mt.Ref()
	if mt.Unref() {
		t.Fatal("Unref should not reach zero yet")
	}
	if !mt.Unref() {
		t.Fatal("Unref should reach zero now")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

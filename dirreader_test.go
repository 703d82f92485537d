package plfsdir

import (
	"fmt"
	"testing"

	"github.com/aalhour/plfsdir/internal/scheduler"
	"github.com/aalhour/plfsdir/vfs"
)

func TestDirWriterReaderRoundTrip(t *testing.T) {
	fs := vfs.NewMemFS()
	o := DefaultDirOptions()
	o.Env = fs
	o.TotalMemtableBudget = 1 << 14
	o.LgParts = 2

	w, err := Open("dir", o)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	want := make(map[string]string)
	for i := 0; i < 200; i++ {
		key := []byte(fmt.Sprintf("file-%04d", i))
		val := []byte(fmt.Sprintf("value-%04d", i))
		if err := w.Append(0, key, val); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
		want[string(key)] = string(val)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	ro := DefaultDirOptions()
	ro.Env = fs
	ro.LgParts = 2
	r, err := OpenDirReader("dir", ro)
	if err != nil {
		t.Fatalf("OpenDirReader: %v", err)
	}
	defer r.Close()

	for key, val := range want {
		values, _, _, err := r.ReadAll([]byte(key))
		if err != nil {
			t.Fatalf("ReadAll(%q): %v", key, err)
		}
		if len(values) != 1 || string(values[0]) != val {
			t.Fatalf("ReadAll(%q) = %q, want [%q]", key, values, val)
		}
	}

	if _, _, _, err := r.ReadAll([]byte("missing-file")); err != ErrNotFound {
		t.Fatalf("ReadAll(missing) err = %v, want ErrNotFound", err)
	}
}

func TestDirWriterReaderMultiEpoch(t *testing.T) {
	fs := vfs.NewMemFS()
	o := DefaultDirOptions()
	o.Env = fs
	o.TotalMemtableBudget = 1 << 14
	o.LgParts = 1
	o.Mode = MultiMap

	w, err := Open("dir", o)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Append(0, []byte("k"), []byte("epoch0")); err != nil {
		t.Fatalf("Append epoch0: %v", err)
	}
	if err := w.EpochFlush(0); err != nil {
		t.Fatalf("EpochFlush: %v", err)
	}
	if err := w.Append(1, []byte("k"), []byte("epoch1")); err != nil {
		t.Fatalf("Append epoch1: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	ro := DefaultDirOptions()
	ro.Env = fs
	ro.LgParts = 1
	r, err := OpenDirReader("dir", ro)
	if err != nil {
		t.Fatalf("OpenDirReader: %v", err)
	}
	defer r.Close()

	values, tableSeeks, _, err := r.ReadAll([]byte("k"))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(values) != 2 || string(values[0]) != "epoch0" || string(values[1]) != "epoch1" {
		t.Fatalf("ReadAll = %q, want [epoch0 epoch1] in epoch order", values)
	}
	if tableSeeks != 2 {
		t.Fatalf("tableSeeks = %d, want 2", tableSeeks)
	}
}

func TestDirWriterReaderParallelReads(t *testing.T) {
	fs := vfs.NewMemFS()
	o := DefaultDirOptions()
	o.Env = fs
	o.TotalMemtableBudget = 1 << 14
	o.LgParts = 1
	o.Mode = MultiMap

	w, err := Open("dir", o)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for epoch := 0; epoch < 3; epoch++ {
		if err := w.Append(epoch, []byte("k"), []byte(fmt.Sprintf("epoch%d", epoch))); err != nil {
			t.Fatalf("Append epoch%d: %v", epoch, err)
		}
		if epoch < 2 {
			if err := w.EpochFlush(epoch); err != nil {
				t.Fatalf("EpochFlush(%d): %v", epoch, err)
			}
		}
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	ro := DefaultDirOptions()
	ro.Env = fs
	ro.LgParts = 1
	ro.ParallelReads = true
	ro.ReaderPool = &scheduler.GoroutinePool{}
	r, err := OpenDirReader("dir", ro)
	if err != nil {
		t.Fatalf("OpenDirReader: %v", err)
	}
	defer r.Close()

	values, tableSeeks, _, err := r.ReadAll([]byte("k"))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := []string{"epoch0", "epoch1", "epoch2"}
	if len(values) != len(want) {
		t.Fatalf("ReadAll = %q, want %q", values, want)
	}
	for i, v := range want {
		if string(values[i]) != v {
			t.Fatalf("ReadAll[%d] = %q, want %q (epoch order must survive fan-out)", i, values[i], v)
		}
	}
	if tableSeeks != 3 {
		t.Fatalf("tableSeeks = %d, want 3", tableSeeks)
	}

	if _, _, _, err := r.ReadAll([]byte("missing")); err != ErrNotFound {
		t.Fatalf("ReadAll(missing) err = %v, want ErrNotFound", err)
	}
}

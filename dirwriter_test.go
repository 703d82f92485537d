package plfsdir

import (
	"encoding/binary"
	"testing"

	"github.com/aalhour/plfsdir/internal/compression"
	"github.com/aalhour/plfsdir/vfs"
)

func testOptions() *DirOptions {
	o := DefaultDirOptions()
	o.Env = vfs.NewMemFS()
	o.TotalMemtableBudget = 1 << 16
	o.LgParts = 2
	o.Compression = compression.NoCompression
	return o
}

func TestDirWriterAppendAndFinish(t *testing.T) {
	w, err := Open("dir", testOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < 64; i++ {
		key := []byte{byte(i), byte(i >> 8)}
		val := []byte("value-of-a-record")
		if err := w.Append(0, key, val); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}

	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("second Finish err = %v, want nil", err)
	}
}

func TestDirWriterAppendAfterCloseFails(t *testing.T) {
	w, err := Open("dir", testOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := w.Append(0, []byte("k"), []byte("v")); err != ErrClosed {
		t.Fatalf("Append after Finish = %v, want ErrClosed", err)
	}
}

func TestDirWriterEpochFlushAdvancesEpoch(t *testing.T) {
	w, err := Open("dir", testOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := w.Append(0, []byte("a"), []byte("1")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.EpochFlush(0); err != nil {
		t.Fatalf("EpochFlush: %v", err)
	}
	if err := w.Append(1, []byte("b"), []byte("2")); err != nil {
		t.Fatalf("Append epoch 1: %v", err)
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	stats := w.GetIoStats()
	if stats.DataBytes() <= 0 {
		t.Errorf("DataBytes = %d, want > 0", stats.DataBytes())
	}
}

func TestDirWriterTailPadding(t *testing.T) {
	fs := vfs.NewMemFS()
	o := testOptions()
	o.Env = fs
	o.TailPadding = true
	// DataBuffer/IndexBuffer deliberately differ from MinDataBuffer/
	// MinIndexBuffer so padding to the wrong pair is caught: tail
	// padding must align to DataBuffer/IndexBuffer (options.go's own
	// doc comment for TailPadding), not the independent Min*Buffer
	// tail-write-size floor.
	o.DataBuffer = 1 << 10
	o.IndexBuffer = 1 << 11
	o.MinDataBuffer = 3 << 10
	o.MinIndexBuffer = 5 << 10

	w, err := Open("dir", o)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 32; i++ {
		key := []byte{byte(i), byte(i >> 8)}
		if err := w.Append(0, key, []byte("value-of-a-record")); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	dataInfo, err := fs.Stat("dir/DATA-000000")
	if err != nil {
		t.Fatalf("Stat DATA: %v", err)
	}
	if dataInfo.Size()%o.DataBuffer != 0 {
		t.Errorf("DATA size = %d, want multiple of DataBuffer=%d", dataInfo.Size(), o.DataBuffer)
	}

	// The manifest and its trailer are appended after padding and are
	// never themselves padded, so the alignment check must exclude
	// them: read the trailer to find the manifest's length, then check
	// that what precedes it is a multiple of IndexBuffer rather than
	// MinIndexBuffer.
	indexRF, err := fs.OpenRandomAccess("dir/INDEX-000000")
	if err != nil {
		t.Fatalf("OpenRandomAccess INDEX: %v", err)
	}
	defer indexRF.Close()

	size := indexRF.Size()
	var trailer [manifestTrailerSize]byte
	if _, err := indexRF.ReadAt(trailer[:], size-manifestTrailerSize); err != nil {
		t.Fatalf("ReadAt trailer: %v", err)
	}
	manifestLen := int64(binary.LittleEndian.Uint64(trailer[:]))
	paddedOffset := size - manifestTrailerSize - manifestLen

	if paddedOffset%o.IndexBuffer != 0 {
		t.Errorf("pre-manifest INDEX offset = %d, want multiple of IndexBuffer=%d", paddedOffset, o.IndexBuffer)
	}
}

func TestDirWriterIoStats(t *testing.T) {
	w, err := Open("dir", testOptions())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for i := 0; i < 8; i++ {
		if err := w.Append(0, []byte{byte(i)}, []byte("v")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	stats := w.GetIoStats()
	if stats.IndexBytes() <= 0 {
		t.Errorf("IndexBytes = %d, want > 0", stats.IndexBytes())
	}
}

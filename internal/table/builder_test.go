package table

import (
	"fmt"
	"testing"

	"github.com/aalhour/plfsdir/internal/compression"
	"github.com/aalhour/plfsdir/internal/logsink"
	"github.com/aalhour/plfsdir/internal/logsource"
	"github.com/aalhour/plfsdir/vfs"
)

func openTable(t *testing.T, opts BuilderOptions, n int) (*Reader, func()) {
	t.Helper()
	fs := vfs.NewMemFS()
	dataWF, err := fs.Create("DATA-0")
	if err != nil {
		t.Fatalf("Create data: %v", err)
	}
	indexWF, err := fs.Create("INDEX-0")
	if err != nil {
		t.Fatalf("Create index: %v", err)
	}
	dataSink := logsink.New(dataWF, 1<<20, nil, "DATA-")
	indexSink := logsink.New(indexWF, 1<<20, nil, "INDEX-")

	b := NewBuilder(opts, dataSink, indexSink)
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%04d", i))
		val := []byte(fmt.Sprintf("value-%04d", i))
		if err := b.Add(key, val); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	footerHandle, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := dataSink.Close(); err != nil {
		t.Fatalf("dataSink.Close: %v", err)
	}
	if err := indexSink.Close(); err != nil {
		t.Fatalf("indexSink.Close: %v", err)
	}

	dataRF, err := fs.OpenRandomAccess("DATA-0")
	if err != nil {
		t.Fatalf("OpenRandomAccess data: %v", err)
	}
	indexRF, err := fs.OpenRandomAccess("INDEX-0")
	if err != nil {
		t.Fatalf("OpenRandomAccess index: %v", err)
	}
	dataSrc := logsource.New(dataRF)
	indexSrc := logsource.New(indexRF)

	r, err := Open(ReaderOptions{VerifyChecksums: true}, indexSrc, dataSrc, footerHandle)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return r, func() {
		dataSrc.Close()
		indexSrc.Close()
	}
}

func defaultOpts() BuilderOptions {
	return BuilderOptions{
		BlockSize:    256,
		BlockUtil:    0.996,
		BlockPadding: false,
		BfBitsPerKey: 8,
		Compression:  compression.NoCompression,
	}
}

func TestBuilderReaderRoundTrip(t *testing.T) {
	r, closeFn := openTable(t, defaultOpts(), 50)
	defer closeFn()

	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("key-%04d", i))
		want := fmt.Sprintf("value-%04d", i)
		values, err := r.Get(key)
		if err != nil {
			t.Fatalf("Get(%s): %v", key, err)
		}
		if len(values) != 1 || string(values[0]) != want {
			t.Fatalf("Get(%s) = %q, want [%q]", key, values, want)
		}
	}
}

func TestReaderNotFound(t *testing.T) {
	r, closeFn := openTable(t, defaultOpts(), 10)
	defer closeFn()

	if _, err := r.Get([]byte("does-not-exist")); err != ErrNotFound {
		t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
	}
}

func TestReaderWithoutFilter(t *testing.T) {
	opts := defaultOpts()
	opts.BfBitsPerKey = 0
	r, closeFn := openTable(t, opts, 10)
	defer closeFn()

	values, err := r.Get([]byte("key-0005"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(values) != 1 || string(values[0]) != "value-0005" {
		t.Fatalf("Get = %q", values)
	}
	if _, err := r.Get([]byte("nope")); err != ErrNotFound {
		t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
	}
}

func TestReaderWithCompression(t *testing.T) {
	opts := defaultOpts()
	opts.Compression = compression.SnappyCompression
	r, closeFn := openTable(t, opts, 30)
	defer closeFn()

	values, err := r.Get([]byte("key-0010"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(values[0]) != "value-0010" {
		t.Fatalf("Get = %q", values)
	}
}

func TestBuilderAddAfterFinishErrors(t *testing.T) {
	fs := vfs.NewMemFS()
	dataWF, _ := fs.Create("DATA-0")
	indexWF, _ := fs.Create("INDEX-0")
	dataSink := logsink.New(dataWF, 1<<20, nil, "DATA-")
	indexSink := logsink.New(indexWF, 1<<20, nil, "INDEX-")

	b := NewBuilder(defaultOpts(), dataSink, indexSink)
	if err := b.Add([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := b.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := b.Add([]byte("b"), []byte("2")); err != ErrBuilderFinished {
		t.Fatalf("Add after Finish err = %v, want ErrBuilderFinished", err)
	}
}

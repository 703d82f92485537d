// Package main provides a synthetic write/read benchmark driver for a
// plfsdir directory.
//
// Use plfsbench to write a batch of synthetic (file-id, value) records
// across a configurable number of epochs and partitions, then read a
// sample of them back, reporting write/read throughput.
//
// Run a benchmark:
//
//	./bin/plfsbench -keys=200000 -value-size=40 -lg_parts=4 -epochs=4
//
// Reference: cmd/smoketest/main.go, cmd/stresstest/main.go
// (RockyardKV's end-to-end write/recovery drivers, trimmed here to the
// Append/EpochFlush/ReadAll surface this store exposes)
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aalhour/plfsdir"
	"github.com/aalhour/plfsdir/vfs"
)

var (
	numKeys   = flag.Int("keys", 200000, "Number of records to write per epoch")
	valueSize = flag.Int("value-size", 40, "Size of each value in bytes")
	numEpochs = flag.Int("epochs", 1, "Number of epochs to write")
	lgParts   = flag.Int("lg_parts", 4, "Number of partitions as a power of two")
	dirPath   = flag.String("dir", "", "Directory path (default: temp directory)")
	keep      = flag.Bool("keep", false, "Keep the directory after the run")
	sampleGet = flag.Int("sample", 1000, "Number of random gets to sample for read throughput")
)

func main() {
	flag.Parse()

	dir := *dirPath
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "plfsbench-*")
		if err != nil {
			fatal("mkdir temp: %v", err)
		}
		if !*keep {
			defer os.RemoveAll(dir)
		}
	}
	fmt.Printf("directory: %s\n", dir)
	fmt.Printf("keys/epoch=%d value_size=%d epochs=%d lg_parts=%d\n\n", *numKeys, *valueSize, *numEpochs, *lgParts)

	opts := plfsdir.DefaultDirOptions()
	opts.Env = vfs.Default()
	opts.LgParts = *lgParts

	w, err := plfsdir.Open(dir, opts)
	if err != nil {
		fatal("Open: %v", err)
	}

	fids := make([][]byte, *numKeys)
	for i := range fids {
		fids[i] = []byte(fmt.Sprintf("file-%09d", i))
	}
	value := make([]byte, *valueSize)

	writeStart := time.Now()
	for epoch := 0; epoch < *numEpochs; epoch++ {
		if _, err := rand.Read(value); err != nil {
			fatal("rand: %v", err)
		}
		for _, fid := range fids {
			if err := w.Append(epoch, fid, value); err != nil {
				fatal("Append: %v", err)
			}
		}
		if epoch+1 < *numEpochs {
			if err := w.EpochFlush(epoch); err != nil {
				fatal("EpochFlush: %v", err)
			}
		}
	}
	if err := w.Finish(); err != nil {
		fatal("Finish: %v", err)
	}
	writeElapsed := time.Since(writeStart)
	total := int64(*numKeys) * int64(*numEpochs)
	fmt.Printf("write: %d records in %v (%.0f records/sec)\n", total, writeElapsed, float64(total)/writeElapsed.Seconds())

	stats := w.GetIoStats()
	fmt.Printf("  data log:  %d bytes, %d ops\n", stats.DataBytes(), stats.DataOps())
	fmt.Printf("  index log: %d bytes, %d ops\n", stats.IndexBytes(), stats.IndexOps())

	ropts := plfsdir.DefaultDirOptions()
	ropts.Env = vfs.Default()
	ropts.LgParts = *lgParts
	r, err := plfsdir.OpenDirReader(dir, ropts)
	if err != nil {
		fatal("OpenDirReader: %v", err)
	}
	defer r.Close()

	n := *sampleGet
	if n > len(fids) {
		n = len(fids)
	}
	stride := 1
	if n > 0 {
		stride = len(fids) / n
		if stride == 0 {
			stride = 1
		}
	}

	readStart := time.Now()
	misses := 0
	checked := 0
	for i := 0; i < len(fids) && checked < n; i += stride {
		if _, _, _, err := r.ReadAll(fids[i]); err != nil {
			misses++
		}
		checked++
	}
	readElapsed := time.Since(readStart)
	fmt.Printf("read: %d lookups in %v (%.0f lookups/sec), %d miss(es)\n",
		checked, readElapsed, float64(checked)/readElapsed.Seconds(), misses)

	fmt.Printf("\nfiles: %s\n", filepath.Join(dir, "DATA-000000")+", "+filepath.Join(dir, "INDEX-000000"))
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "plfsbench: "+format+"\n", args...)
	os.Exit(1)
}

// Package main provides the plfsdump CLI tool for inspecting a
// directory written by DirWriter.
//
// Usage:
//
//	plfsdump --dir=<path> --command=<command> [options]
//
// Commands:
//
//	manifest   Print the manifest's header and per-(epoch,partition) table list
//	get        Look up a single file-id across every epoch
//	check      Open every table, verifying its footer, index and filter blocks
//
// Reference: manifestdump/main.go, sstdump/main.go (RockyardKV's
// MANIFEST/SST inspection tools, folded here into one directory-level
// dump command since this store has one manifest, not a file set per
// level)
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/aalhour/plfsdir"
	"github.com/aalhour/plfsdir/internal/block"
	"github.com/aalhour/plfsdir/internal/logsource"
	"github.com/aalhour/plfsdir/internal/manifest"
	"github.com/aalhour/plfsdir/internal/table"
	"github.com/aalhour/plfsdir/vfs"
)

var (
	dirPath  = flag.String("dir", "", "Path to the directory (required)")
	rank     = flag.Int("rank", 0, "Rank whose DATA-/INDEX- log pair to inspect")
	lgParts  = flag.Int("lg_parts", 0, "Number of partitions as a power of two (must match how the directory was written)")
	command  = flag.String("command", "manifest", "Command: manifest, get, check")
	fidArg   = flag.String("fid", "", "File-id to look up (for --command=get)")
	verbose  = flag.Bool("v", false, "Verbose output")
	checksum = flag.Bool("verify_checksums", true, "Verify block checksums during check")
)

func main() {
	flag.Parse()

	if *dirPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --dir flag is required")
		os.Exit(1)
	}

	opts := plfsdir.DefaultDirOptions()
	opts.Rank = *rank
	opts.LgParts = *lgParts

	var err error
	switch *command {
	case "manifest":
		err = cmdManifest(opts)
	case "get":
		if *fidArg == "" {
			err = fmt.Errorf("--fid is required for --command=get")
			break
		}
		err = cmdGet(opts, *fidArg)
	case "check":
		err = cmdCheck(opts)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdManifest(opts *plfsdir.DirOptions) error {
	m, err := readManifestDirect(opts)
	if err != nil {
		return err
	}

	fmt.Printf("Format version: %d\n", m.Header.FormatVersion)
	fmt.Printf("Partitions:     %d (lg_parts=%d)\n", 1<<uint(m.Header.LgParts), m.Header.LgParts)
	fmt.Printf("Epochs:         %d\n", m.Header.Epochs)
	fmt.Printf("Mode:           %s\n", m.Header.Mode)
	fmt.Printf("Tables:         %d\n\n", len(m.Entries))

	for _, e := range m.Entries {
		fmt.Printf("  epoch=%d partition=%d footer{offset=%d size=%d}\n",
			e.Epoch, e.Partition, e.Footer.Offset, e.Footer.Size)
	}
	return nil
}

func cmdGet(opts *plfsdir.DirOptions, fid string) error {
	opts.Env = vfs.Default()
	r, err := plfsdir.OpenDirReader(*dirPath, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	values, tableSeeks, seeks, err := r.ReadAll([]byte(fid))
	if err != nil {
		return err
	}
	fmt.Printf("%d value(s), %d table(s) opened, %d data block(s) read\n", len(values), tableSeeks, seeks)
	for i, v := range values {
		fmt.Printf("  [%d] %q\n", i, v)
	}
	return nil
}

func cmdCheck(opts *plfsdir.DirOptions) error {
	m, err := readManifestDirect(opts)
	if err != nil {
		return err
	}

	dataName := fmt.Sprintf("%s/DATA-%06d", *dirPath, opts.Rank)
	indexName := fmt.Sprintf("%s/INDEX-%06d", *dirPath, opts.Rank)
	dataRF, err := vfs.Default().OpenRandomAccess(dataName)
	if err != nil {
		return err
	}
	defer dataRF.Close()
	indexRF, err := vfs.Default().OpenRandomAccess(indexName)
	if err != nil {
		return err
	}
	defer indexRF.Close()

	dataSrc := logsource.New(dataRF)
	indexSrc := logsource.New(indexRF)

	bad := 0
	for _, e := range m.Entries {
		rdr, err := table.Open(table.ReaderOptions{VerifyChecksums: *checksum, SkipChecksums: !*checksum}, indexSrc, dataSrc, e.Footer)
		if err != nil {
			fmt.Printf("epoch=%d partition=%d: FAILED to open: %v\n", e.Epoch, e.Partition, err)
			bad++
			continue
		}
		if *verbose {
			fmt.Printf("epoch=%d partition=%d: ok\n", e.Epoch, e.Partition)
		}
		_ = rdr
	}
	fmt.Printf("%d table(s) checked, %d bad\n", len(m.Entries), bad)
	if bad > 0 {
		return fmt.Errorf("%d table(s) failed verification", bad)
	}
	return nil
}

func readManifestDirect(opts *plfsdir.DirOptions) (manifest.Manifest, error) {
	indexName := fmt.Sprintf("%s/INDEX-%06d", *dirPath, opts.Rank)
	indexRF, err := vfs.Default().OpenRandomAccess(indexName)
	if err != nil {
		return manifest.Manifest{}, err
	}
	defer indexRF.Close()

	src := logsource.New(indexRF)
	size := src.Size()
	const trailerSize = 8
	if size < trailerSize {
		return manifest.Manifest{}, fmt.Errorf("index log too short to hold a manifest")
	}
	trailer, err := src.Read(block.Handle{Offset: uint64(size - trailerSize), Size: trailerSize})
	if err != nil {
		return manifest.Manifest{}, err
	}
	manifestLen := le64(trailer)
	encoded, err := src.Read(block.Handle{Offset: uint64(size) - trailerSize - manifestLen, Size: manifestLen})
	if err != nil {
		return manifest.Manifest{}, err
	}
	return manifest.Decode(encoded)
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

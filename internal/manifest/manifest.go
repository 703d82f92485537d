// Package manifest implements the directory footer persisted at the end
// of the index log on DirWriter.Finish (spec.md §6/§8): a header
// recording the global options needed to reinterpret the directory,
// followed by one (footer_offset, footer_size) pair per (epoch,
// partition) table in row-major (epoch-major) order, closed out by a
// CRC32C over the whole manifest.
//
// This collapses the teacher's VersionEdit/tag-stream format — a
// mutable log of incremental edits replayed against a Version — into a
// single flat record: a plfsdir manifest is written exactly once, after
// every partition's last epoch has been compacted, so there is nothing
// to replay incrementally.
//
// Reference: deltafs_plfsio.cc (the directory footer); internal/manifest
// tags.go (varint tag-stream encoding style, adapted here to one fixed
// record shape instead of a tagged union of edit types)
package manifest

import (
	"encoding/binary"
	"errors"

	"github.com/aalhour/plfsdir/internal/block"
	"github.com/aalhour/plfsdir/internal/checksum"
	"github.com/aalhour/plfsdir/internal/dbformat"
	"github.com/aalhour/plfsdir/internal/encoding"
)

// Magic identifies a valid manifest.
const Magic uint64 = 0x706c66736d616e66 // "plfsmanf" (truncated)

// FormatVersion is the current on-disk manifest format.
const FormatVersion uint32 = 1

var (
	// ErrBadMagic is returned when a manifest's magic does not match.
	ErrBadMagic = errors.New("manifest: bad magic")
	// ErrCorruption is returned when the trailing CRC32C does not match.
	ErrCorruption = errors.New("manifest: corruption detected")
	// ErrTruncated is returned when the buffer is too short to contain
	// a valid manifest.
	ErrTruncated = errors.New("manifest: truncated")
)

// Header describes the global options a reader needs to interpret every
// table referenced by the manifest.
type Header struct {
	FormatVersion uint32
	LgParts       int
	Epochs        int
	Mode          dbformat.DirMode
}

// Entry is one table's location within the index log.
type Entry struct {
	Epoch     int
	Partition int
	Footer    block.Handle
}

// Manifest is the fully assembled directory footer.
type Manifest struct {
	Header  Header
	Entries []Entry
}

// Builder accumulates entries as compactions complete and produces the
// final encoded manifest on Finish.
type Builder struct {
	header  Header
	entries []Entry
}

// NewBuilder creates a Builder for a directory with the given partition
// count, expected epoch count, and DirMode.
func NewBuilder(lgParts, epochs int, mode dbformat.DirMode) *Builder {
	return &Builder{
		header: Header{
			FormatVersion: FormatVersion,
			LgParts:       lgParts,
			Epochs:        epochs,
			Mode:          mode,
		},
	}
}

// Add records one (epoch, partition) table's footer location.
func (b *Builder) Add(epoch, partition int, footer block.Handle) {
	b.entries = append(b.entries, Entry{Epoch: epoch, Partition: partition, Footer: footer})
}

// SetEpochs updates the header's epoch count, used once the final epoch
// seen by the writer is known.
func (b *Builder) SetEpochs(epochs int) {
	b.header.Epochs = epochs
}

// Finish sorts entries into row-major (epoch-major) order and encodes
// the manifest.
func (b *Builder) Finish() []byte {
	sortEntriesRowMajor(b.entries)
	m := Manifest{Header: b.header, Entries: b.entries}
	return Encode(m)
}

func sortEntriesRowMajor(entries []Entry) {
	// Insertion sort: manifests hold at most epochs*2^lg_parts <=
	// a few thousand entries, and entries usually arrive nearly sorted
	// already since compactions complete roughly in epoch order.
	for i := 1; i < len(entries); i++ {
		j := i
		for j > 0 && less(entries[j], entries[j-1]) {
			entries[j], entries[j-1] = entries[j-1], entries[j]
			j--
		}
	}
}

func less(a, b Entry) bool {
	if a.Epoch != b.Epoch {
		return a.Epoch < b.Epoch
	}
	return a.Partition < b.Partition
}

// Encode serializes m: header, then one varint-encoded (epoch,
// partition, footer_offset, footer_size) tuple per entry, then a
// trailing CRC32C over everything preceding it.
func Encode(m Manifest) []byte {
	buf := make([]byte, 0, 64+len(m.Entries)*24)
	buf = binary.LittleEndian.AppendUint64(buf, Magic)
	buf = encoding.AppendVarint32(buf, m.Header.FormatVersion)
	buf = encoding.AppendVarint32(buf, uint32(m.Header.LgParts))
	buf = encoding.AppendVarint32(buf, uint32(m.Header.Epochs))
	buf = encoding.AppendVarint32(buf, uint32(m.Header.Mode))
	buf = encoding.AppendVarint32(buf, uint32(len(m.Entries)))

	for _, e := range m.Entries {
		buf = encoding.AppendVarint32(buf, uint32(e.Epoch))
		buf = encoding.AppendVarint32(buf, uint32(e.Partition))
		buf = e.Footer.EncodeTo(buf)
	}

	crc := checksum.Value(buf)
	buf = binary.LittleEndian.AppendUint32(buf, crc)
	return buf
}

// Decode parses a manifest previously produced by Encode/Builder.Finish.
func Decode(data []byte) (Manifest, error) {
	if len(data) < 8+4 {
		return Manifest{}, ErrTruncated
	}
	body, wantCRC := data[:len(data)-4], binary.LittleEndian.Uint32(data[len(data)-4:])
	if checksum.Value(body) != wantCRC {
		return Manifest{}, ErrCorruption
	}

	if len(body) < 8 {
		return Manifest{}, ErrTruncated
	}
	magic := binary.LittleEndian.Uint64(body[:8])
	if magic != Magic {
		return Manifest{}, ErrBadMagic
	}
	body = body[8:]

	formatVersion, n, err := encoding.DecodeVarint32(body)
	if err != nil {
		return Manifest{}, ErrTruncated
	}
	body = body[n:]

	lgParts, n, err := encoding.DecodeVarint32(body)
	if err != nil {
		return Manifest{}, ErrTruncated
	}
	body = body[n:]

	epochs, n, err := encoding.DecodeVarint32(body)
	if err != nil {
		return Manifest{}, ErrTruncated
	}
	body = body[n:]

	mode, n, err := encoding.DecodeVarint32(body)
	if err != nil {
		return Manifest{}, ErrTruncated
	}
	body = body[n:]

	count, n, err := encoding.DecodeVarint32(body)
	if err != nil {
		return Manifest{}, ErrTruncated
	}
	body = body[n:]

	entries := make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		epoch, n, err := encoding.DecodeVarint32(body)
		if err != nil {
			return Manifest{}, ErrTruncated
		}
		body = body[n:]

		partition, n, err := encoding.DecodeVarint32(body)
		if err != nil {
			return Manifest{}, ErrTruncated
		}
		body = body[n:]

		handle, rest, err := block.DecodeHandle(body)
		if err != nil {
			return Manifest{}, ErrTruncated
		}
		body = rest

		entries = append(entries, Entry{
			Epoch:     int(epoch),
			Partition: int(partition),
			Footer:    handle,
		})
	}

	return Manifest{
		Header: Header{
			FormatVersion: formatVersion,
			LgParts:       int(lgParts),
			Epochs:        int(epochs),
			Mode:          dbformat.DirMode(mode),
		},
		Entries: entries,
	}, nil
}

// Lookup returns the footer handle for (epoch, partition), if present.
func (m Manifest) Lookup(epoch, partition int) (block.Handle, bool) {
	for _, e := range m.Entries {
		if e.Epoch == epoch && e.Partition == partition {
			return e.Footer, true
		}
	}
	return block.Handle{}, false
}

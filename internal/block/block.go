package block

import (
	"encoding/binary"

	"github.com/aalhour/plfsdir/internal/checksum"
	"github.com/aalhour/plfsdir/internal/compression"
	"github.com/aalhour/plfsdir/internal/encoding"
)

// TrailerSize is the number of bytes following a persisted block's raw
// (possibly compressed) bytes: a 1-byte compression tag and a 4-byte
// little-endian masked CRC32C over (bytes ∥ tag).
const TrailerSize = 5

// Persist appends a block trailer to raw and returns the bytes as they
// should be written to a log sink. If compress is true, raw is run
// through compression.Compress(compType, raw); the compressed form is
// kept only when force is set or it is strictly smaller than raw — data
// blocks always pass compress=false per spec.md §4.1.
func Persist(raw []byte, compress bool, compType compression.Type, force bool) ([]byte, error) {
	payload := raw
	tag := compression.NoCompression
	if compress && compType != compression.NoCompression {
		compressed, err := compression.Compress(compType, raw)
		if err != nil {
			return nil, err
		}
		if compressed != nil && (force || len(compressed) < len(raw)) {
			payload = compressed
			tag = compType
		}
	}

	out := make([]byte, len(payload)+TrailerSize)
	copy(out, payload)
	out[len(payload)] = byte(tag)
	crc := checksum.ComputeCRC32CChecksumWithLastByte(payload, byte(tag))
	binary.LittleEndian.PutUint32(out[len(payload)+1:], crc)
	return out, nil
}

// Read parses a persisted block (payload ∥ trailer), verifies its
// checksum unless skipChecksums, and decompresses it. verifyChecksums
// forces verification even when the caller would otherwise skip it (the
// two knobs compose as: skip unless verify is also requested).
func Read(data []byte, skipChecksums, verifyChecksums bool) ([]byte, error) {
	if len(data) < TrailerSize {
		return nil, ErrCorruption
	}
	n := len(data) - TrailerSize
	payload := data[:n]
	tag := compression.Type(data[n])
	storedCRC := binary.LittleEndian.Uint32(data[n+1:])

	if verifyChecksums || !skipChecksums {
		crc := checksum.ComputeCRC32CChecksumWithLastByte(payload, byte(tag))
		if crc != storedCRC {
			return nil, ErrCorruption
		}
	}

	if tag == compression.NoCompression {
		return payload, nil
	}
	return compression.Decompress(tag, payload)
}

// Entry is a decoded [key,value] pair from a data or index block.
type Entry struct {
	Key   []byte
	Value []byte
}

// AppendEntry appends one [key_len varint | key | value_len varint |
// value] record to dst, per spec.md §4.1.
func AppendEntry(dst, key, value []byte) []byte {
	dst = encoding.AppendVarint32(dst, uint32(len(key)))
	dst = append(dst, key...)
	dst = encoding.AppendVarint32(dst, uint32(len(value)))
	dst = append(dst, value...)
	return dst
}

// Iterator performs a linear scan over a decompressed, trailer-stripped
// block's entries. Blocks in this format have no restart points, so
// lookups are always O(n) within a block — acceptable since a block
// holds at most block_size worth of records.
type Iterator struct {
	data  []byte
	count uint32
	pos   int
	idx   uint32
	key   []byte
	value []byte
	err   error
}

// NewIterator parses a block body (without its persistence trailer) and
// returns an iterator over its entries.
func NewIterator(body []byte) (*Iterator, error) {
	if len(body) < 4 {
		return nil, ErrCorruption
	}
	count := binary.LittleEndian.Uint32(body[len(body)-4:])
	return &Iterator{data: body[:len(body)-4], count: count}, nil
}

// Next advances to the next entry, returning false at end-of-block or on
// a parse error (check Err).
func (it *Iterator) Next() bool {
	if it.err != nil || it.idx >= it.count {
		return false
	}
	rest := it.data[it.pos:]

	keyLen, n1, err := encoding.DecodeVarint32(rest)
	if err != nil {
		it.err = ErrCorruption
		return false
	}
	rest = rest[n1:]
	if uint32(len(rest)) < keyLen {
		it.err = ErrCorruption
		return false
	}
	key := rest[:keyLen]
	rest = rest[keyLen:]

	valLen, n2, err := encoding.DecodeVarint32(rest)
	if err != nil {
		it.err = ErrCorruption
		return false
	}
	rest = rest[n2:]
	if uint32(len(rest)) < valLen {
		it.err = ErrCorruption
		return false
	}
	value := rest[:valLen]

	it.key = key
	it.value = value
	it.pos += n1 + int(keyLen) + n2 + int(valLen)
	it.idx++
	return true
}

// Key returns the current entry's key.
func (it *Iterator) Key() []byte { return it.key }

// Value returns the current entry's value.
func (it *Iterator) Value() []byte { return it.value }

// Err returns the first parse error encountered, if any.
func (it *Iterator) Err() error { return it.err }

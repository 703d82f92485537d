// Package block implements the data/index block codec and table footer
// format described in spec.md §4.1/§6: a data block is a flat sequence of
// [key_len varint | key | value_len varint | value] records plus a
// trailing uint32 count — no restart points or prefix-shared-key delta
// encoding, since file-ids are opaque and unordered by locality, unlike
// RocksDB's user keys.
//
// Reference: RocksDB v10.7.5 table/format.h (BlockHandle) for the
// (offset,size) pointer encoding, reused verbatim.
package block

import (
	"errors"

	"github.com/aalhour/plfsdir/internal/encoding"
)

const maxVarint64Length = 10

var (
	// ErrBadHandle is returned when a block handle fails to decode.
	ErrBadHandle = errors.New("block: bad handle")

	// ErrBadFooter is returned when a table footer fails to parse.
	ErrBadFooter = errors.New("block: bad footer")

	// ErrCorruption is returned when a block's checksum does not match
	// its contents.
	ErrCorruption = errors.New("block: corruption detected")
)

// Handle is a pointer to a byte extent within a log: an (offset,size)
// pair, varint-encoded.
type Handle struct {
	Offset uint64
	Size   uint64
}

// NullHandle denotes the absence of a block (e.g. no filter for this
// table since bf_bits_per_key == 0).
var NullHandle = Handle{}

// MaxEncodedLength is the maximum varint encoding length of a Handle.
const MaxEncodedLength = 2 * maxVarint64Length

// IsNull reports whether h denotes no block.
func (h Handle) IsNull() bool {
	return h.Offset == 0 && h.Size == 0
}

// EncodeTo appends h's varint encoding to dst.
func (h Handle) EncodeTo(dst []byte) []byte {
	dst = encoding.AppendVarint64(dst, h.Offset)
	dst = encoding.AppendVarint64(dst, h.Size)
	return dst
}

// EncodedLength returns the number of bytes EncodeTo would append.
func (h Handle) EncodedLength() int {
	return encoding.VarintLength(h.Offset) + encoding.VarintLength(h.Size)
}

// DecodeHandle decodes a Handle from the front of data, returning the
// remaining bytes.
func DecodeHandle(data []byte) (Handle, []byte, error) {
	offset, n1, err := encoding.DecodeVarint64(data)
	if err != nil {
		return Handle{}, nil, ErrBadHandle
	}
	data = data[n1:]

	size, n2, err := encoding.DecodeVarint64(data)
	if err != nil {
		return Handle{}, nil, ErrBadHandle
	}
	data = data[n2:]

	return Handle{Offset: offset, Size: size}, data, nil
}

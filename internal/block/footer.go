package block

import (
	"encoding/binary"
)

// FooterMagic is the fixed trailing magic number identifying a valid
// table footer. Chosen independently of RocksDB's own magic numbers so
// the two formats can never be confused.
const FooterMagic uint64 = 0x706c667369302e31 // "plfsi0.1"

// FooterLength is the fixed on-disk size of a Footer: two block handles
// (each padded to their max varint width so the footer has one constant
// size, simplifying seek-from-end reads), a 1-byte digest of the options
// that affect table interpretation, and the 8-byte magic.
//
// Unlike RocksDB's footer — which carries a version byte selecting among
// five wire layouts plus an optional metaindex-block indirection for
// locating the filter — this format has exactly one layout: there is
// nothing to version because filter and index handles are always
// present at fixed fields.
const FooterLength = 2*MaxEncodedLength + 1 + 8

// Footer is the fixed-size trailer written at the end of every table
// (spec.md §6): pointers to the table's index and filter blocks, plus a
// one-byte digest of the table-affecting options so a reader opened with
// different DirOptions can still decode it (or refuse to, if the digest
// is incompatible).
type Footer struct {
	IndexHandle   Handle
	FilterHandle  Handle
	OptionsDigest byte
}

// EncodeTo encodes f into a FooterLength-byte buffer. Each handle is
// varint-encoded into its own zero-padded MaxEncodedLength field so the
// footer has one constant size regardless of handle magnitude.
func (f Footer) EncodeTo() []byte {
	buf := make([]byte, FooterLength)

	idx := f.IndexHandle.EncodeTo(nil)
	copy(buf[0:MaxEncodedLength], idx)

	filt := f.FilterHandle.EncodeTo(nil)
	copy(buf[MaxEncodedLength:2*MaxEncodedLength], filt)

	buf[2*MaxEncodedLength] = f.OptionsDigest

	binary.LittleEndian.PutUint64(buf[2*MaxEncodedLength+1:], FooterMagic)
	return buf
}

// DecodeFooter parses a FooterLength-byte buffer.
func DecodeFooter(data []byte) (Footer, error) {
	if len(data) != FooterLength {
		return Footer{}, ErrBadFooter
	}

	magic := binary.LittleEndian.Uint64(data[2*MaxEncodedLength+1:])
	if magic != FooterMagic {
		return Footer{}, ErrBadFooter
	}

	idxHandle, _, err := DecodeHandle(data[0:MaxEncodedLength])
	if err != nil {
		return Footer{}, ErrBadFooter
	}
	filtHandle, _, err := DecodeHandle(data[MaxEncodedLength : 2*MaxEncodedLength])
	if err != nil {
		return Footer{}, ErrBadFooter
	}

	return Footer{
		IndexHandle:   idxHandle,
		FilterHandle:  filtHandle,
		OptionsDigest: data[2*MaxEncodedLength],
	}, nil
}

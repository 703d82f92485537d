// types.go defines checksum type constants and the XXH3 hash used by the
// Bloom filter and the partition hash.
//
// Reference: RocksDB v10.7.5 include/rocksdb/table.h (ChecksumType enum)
package checksum

import "github.com/zeebo/xxh3"

// Type identifies the checksum algorithm stored in a block trailer.
type Type uint8

const (
	// TypeNoChecksum means no checksum is used.
	TypeNoChecksum Type = 0
	// TypeCRC32C is CRC32C (Castagnoli) checksum.
	TypeCRC32C Type = 1
	// TypeXXH3 is the XXH3 64-bit checksum.
	TypeXXH3 Type = 4
)

// String returns a human-readable name for the checksum type.
func (t Type) String() string {
	switch t {
	case TypeNoChecksum:
		return "NoChecksum"
	case TypeCRC32C:
		return "CRC32C"
	case TypeXXH3:
		return "XXH3"
	default:
		return "Unknown"
	}
}

// XXH3 computes the 64-bit XXH3 hash of data. It backs both the Bloom
// filter (internal/filter) and the default file-id partitioner.
func XXH3(data []byte) uint64 {
	return xxh3.Hash(data)
}

// ComputeChecksum computes a block checksum of the given type over
// (data ∥ lastByte); the compression tag byte is checksummed but not
// stored adjacent to the data buffer itself.
func ComputeChecksum(t Type, data []byte, lastByte byte) uint32 {
	switch t {
	case TypeCRC32C:
		return ComputeCRC32CChecksumWithLastByte(data, lastByte)
	case TypeXXH3:
		h := xxh3.New()
		_, _ = h.Write(data)
		_, _ = h.Write([]byte{lastByte})
		return uint32(h.Sum64())
	case TypeNoChecksum:
		return 0
	default:
		return 0
	}
}

// ComputeCRC32CChecksumWithLastByte computes a masked CRC32C over
// (data ∥ lastByte). Used for block checksums where the compression type
// byte is not part of the stored data buffer.
func ComputeCRC32CChecksumWithLastByte(data []byte, lastByte byte) uint32 {
	crc := Value(data)
	crc = Extend(crc, []byte{lastByte})
	return Mask(crc)
}

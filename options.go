package plfsdir

// options.go implements DirOptions, the configuration surface for
// DirWriter/DirReader (spec.md §6). The teacher's Options/ReadOptions/
// WriteOptions split a dozen RocksDB-specific compaction-style and
// write-buffer knobs across several structs; this store folds them into
// one flat DirOptions because there is exactly one writer (the
// partitioned compaction pipeline) and one reader (DirReader), neither
// of which takes per-call overrides the way RocksDB's Get/Put do.
//
// Reference: deltafs_plfsio.h (DirOptions)

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aalhour/plfsdir/internal/checksum"
	"github.com/aalhour/plfsdir/internal/compression"
	"github.com/aalhour/plfsdir/internal/dbformat"
	"github.com/aalhour/plfsdir/internal/logging"
	"github.com/aalhour/plfsdir/internal/scheduler"
	"github.com/aalhour/plfsdir/vfs"
)

// Logger is an alias for the logging.Logger interface.
type Logger = logging.Logger

// CompressionType is an alias for the compression type.
type CompressionType = compression.Type

// Compression type constants.
const (
	NoCompression     = compression.NoCompression
	SnappyCompression = compression.SnappyCompression
	ZlibCompression   = compression.ZlibCompression
	LZ4Compression    = compression.LZ4Compression
	LZ4HCCompression  = compression.LZ4HCCompression
	ZstdCompression   = compression.ZstdCompression
)

// ChecksumType is an alias for the checksum type.
type ChecksumType = checksum.Type

// Checksum type constants.
const (
	ChecksumTypeNoChecksum = checksum.TypeNoChecksum
	ChecksumTypeCRC32C     = checksum.TypeCRC32C
	ChecksumTypeXXH3       = checksum.TypeXXH3
)

// DirMode is an alias for the per-epoch duplicate-key collision policy.
type DirMode = dbformat.DirMode

// DirMode constants.
const (
	MultiMap       = dbformat.MultiMap
	UniqueOverride = dbformat.UniqueOverride
	UniqueDrop     = dbformat.UniqueDrop
	Unique         = dbformat.Unique
)

// Scheduler is an alias for the pluggable work-scheduling interface used
// by compaction_pool/reader_pool.
type Scheduler = scheduler.Scheduler

// DirOptions holds every tunable recognized by DirWriter and DirReader.
// Sanitize replaces zero or negative sizes and fractions with their
// documented defaults; boolean fields, Mode, BfBitsPerKey and
// SlowdownMicros keep their values. Callers normally start from
// DefaultDirOptions and override only what they need.
type DirOptions struct {
	// TotalMemtableBudget is the aggregate memtable budget across all
	// partitions; per-partition budget is TotalMemtableBudget/2^LgParts.
	// Default: 4 MiB.
	TotalMemtableBudget int64

	// MemtableUtil is the fraction of a partition's memtable budget at
	// which the memtable is rotated out and queued for compaction.
	// Default: 1.0.
	MemtableUtil float64

	// SkipSort trusts that records are appended to a memtable already
	// in ascending key order, skipping the flush-time sort. Under
	// ParanoidChecks, order is still verified (and a violation is an
	// error) regardless of this flag.
	// Default: false.
	SkipSort bool

	// KeySize and ValueSize are sizing hints. They are parsed and
	// sanitized but not used by DirWriter or DirReader, and they do not
	// constrain actual record sizes.
	// Defaults: 8, 32.
	KeySize   int
	ValueSize int

	// BfBitsPerKey is the number of Bloom filter bits per key; 0
	// disables filter blocks entirely.
	// Default: 8.
	BfBitsPerKey int

	// BlockSize is the target size of a data block before padding.
	// Default: 32 KiB.
	BlockSize int

	// BlockUtil is the fraction of BlockSize at which a block is
	// closed and a new one started.
	// Default: 0.996.
	BlockUtil float64

	// BlockPadding zero-pads a closed block up to BlockSize.
	// Default: true.
	BlockPadding bool

	// BlockBatchSize is the amount of data-block bytes accumulated
	// before a data-log sink issues a batched write.
	// Default: 2 MiB.
	BlockBatchSize int64

	// DataBuffer and IndexBuffer are the per-log pending-write buffer
	// sizes that trigger a flush to the underlying file.
	// Defaults: 4 MiB each.
	DataBuffer  int64
	IndexBuffer int64

	// MinDataBuffer and MinIndexBuffer are minimum tail-write sizes.
	// They are parsed and sanitized but not used by DirWriter: the
	// final tail write is not padded up to them.
	// Defaults: 4 MiB each.
	MinDataBuffer  int64
	MinIndexBuffer int64

	// TailPadding pads the data log's final size up to a multiple of
	// DataBuffer, and the index log up to a multiple of IndexBuffer
	// before the manifest and its trailer are appended; the manifest
	// and trailer are not padded, so the index log's final size is in
	// general not such a multiple.
	// Default: false.
	TailPadding bool

	// CompactionPool, if set, runs compaction jobs on this scheduler,
	// in parallel across partitions. If nil and AllowEnvThreads, an
	// env-provided scheduler may be used instead; otherwise compaction
	// runs synchronously on the calling goroutine.
	CompactionPool Scheduler

	// ReaderPool, if set and ParallelReads is true, fans epoch reads
	// out across this scheduler.
	ReaderPool Scheduler

	// ReadSize is the prefetch size for a table's index and filter
	// blocks. It is parsed and sanitized but not used by DirReader,
	// which reads the index and filter blocks separately.
	// Default: 8 MiB.
	ReadSize int64

	// ParallelReads scans epochs concurrently on ReaderPool and merges
	// results in epoch order.
	// Default: false.
	ParallelReads bool

	// NonBlocking makes Append return ErrBufferFull instead of blocking
	// when every memtable slot is full: at once when SlowdownMicros is
	// 0, otherwise after one wait of at most SlowdownMicros.
	// Default: false.
	NonBlocking bool

	// SlowdownMicros bounds how long Append waits per retry attempt
	// when backpressured and not NonBlocking.
	// Default: 0 (block until signaled).
	SlowdownMicros int64

	// ParanoidChecks enables strict ordering verification at memtable
	// flush and makes Unique-mode duplicates fatal instead of silently
	// dropped.
	// Default: false.
	ParanoidChecks bool

	// IgnoreFilters skips the Bloom filter probe on lookups, always
	// falling through to the index and data block scan.
	// Default: false.
	IgnoreFilters bool

	// VerifyChecksums verifies each block's CRC32C on every read.
	// Default: false.
	VerifyChecksums bool

	// SkipChecksums disables checksum verification unconditionally,
	// overriding VerifyChecksums.
	// Default: false.
	SkipChecksums bool

	// Compression applies to index and filter blocks only; data blocks
	// are never compressed.
	// Default: NoCompression.
	Compression CompressionType

	// ForceCompression keeps the compressed form of an index/filter
	// block even when it is not strictly smaller than the uncompressed
	// form.
	// Default: false.
	ForceCompression bool

	// MeasureWrites gates DirWriter's IoStats accounting. MeasureReads
	// has no effect: DirReader does not record its reads.
	// Defaults: true, true.
	MeasureReads  bool
	MeasureWrites bool

	// LgParts selects 2^LgParts partitions; must be in [0, 8].
	// Default: 0.
	LgParts int

	// Listener, if set, receives compaction events; no I/O events are
	// delivered. Callbacks must be non-blocking.
	Listener EventListener

	// Mode is the duplicate-key collision policy applied at memtable
	// flush.
	// Default: Unique.
	Mode DirMode

	// Env is the filesystem backend. If nil, vfs.Default() is used.
	Env vfs.FS

	// AllowEnvThreads runs compactions on a goroutine pool when
	// CompactionPool is nil. It does not affect reads.
	// Default: false.
	AllowEnvThreads bool

	// IsEnvPfs indicates the backing filesystem is a parallel
	// filesystem. It is parsed but not used by DirWriter or DirReader.
	// Default: true.
	IsEnvPfs bool

	// Rank is this writer's rank within a distributed job; it selects
	// the log file names DATA-<rank> and INDEX-<rank> (six digits).
	// Default: 0.
	Rank int

	// RateLimiter, if set, throttles background compaction I/O.
	RateLimiter RateLimiter

	// Logger receives diagnostic messages. If nil, logging.Discard is
	// used.
	Logger Logger
}

// DefaultDirOptions returns a DirOptions populated with the documented
// defaults.
func DefaultDirOptions() *DirOptions {
	return &DirOptions{
		TotalMemtableBudget: 4 << 20,
		MemtableUtil:        1.0,
		SkipSort:            false,
		KeySize:             8,
		ValueSize:           32,
		BfBitsPerKey:        8,
		BlockSize:           32 << 10,
		BlockUtil:           0.996,
		BlockPadding:        true,
		BlockBatchSize:      2 << 20,
		DataBuffer:          4 << 20,
		IndexBuffer:         4 << 20,
		MinDataBuffer:       4 << 20,
		MinIndexBuffer:      4 << 20,
		TailPadding:         false,
		CompactionPool:      nil,
		ReaderPool:          nil,
		ReadSize:            8 << 20,
		ParallelReads:       false,
		NonBlocking:         false,
		SlowdownMicros:      0,
		ParanoidChecks:      false,
		IgnoreFilters:       false,
		VerifyChecksums:     false,
		SkipChecksums:       false,
		Compression:         NoCompression,
		ForceCompression:    false,
		MeasureReads:        true,
		MeasureWrites:       true,
		LgParts:             0,
		Listener:            nil,
		Mode:                Unique,
		Env:                 nil,
		AllowEnvThreads:     false,
		IsEnvPfs:            true,
		Rank:                0,
		RateLimiter:         nil,
		Logger:              nil,
	}
}

// Sanitize fills zero or negative sizes and fractions with their
// documented defaults, clamps LgParts to [0, MaxLgParts], and resolves
// nil Env/Logger to their concrete defaults. It returns a new
// DirOptions; the receiver is not modified.
func (o DirOptions) Sanitize() *DirOptions {
	def := DefaultDirOptions()
	if o.TotalMemtableBudget <= 0 {
		o.TotalMemtableBudget = def.TotalMemtableBudget
	}
	if o.MemtableUtil <= 0 {
		o.MemtableUtil = def.MemtableUtil
	}
	if o.KeySize <= 0 {
		o.KeySize = def.KeySize
	}
	if o.ValueSize <= 0 {
		o.ValueSize = def.ValueSize
	}
	if o.BlockSize <= 0 {
		o.BlockSize = def.BlockSize
	}
	if o.BlockUtil <= 0 {
		o.BlockUtil = def.BlockUtil
	}
	if o.BlockBatchSize <= 0 {
		o.BlockBatchSize = def.BlockBatchSize
	}
	if o.DataBuffer <= 0 {
		o.DataBuffer = def.DataBuffer
	}
	if o.IndexBuffer <= 0 {
		o.IndexBuffer = def.IndexBuffer
	}
	if o.MinDataBuffer <= 0 {
		o.MinDataBuffer = def.MinDataBuffer
	}
	if o.MinIndexBuffer <= 0 {
		o.MinIndexBuffer = def.MinIndexBuffer
	}
	if o.ReadSize <= 0 {
		o.ReadSize = def.ReadSize
	}
	if o.LgParts < 0 {
		o.LgParts = 0
	}
	if o.LgParts > dbformat.MaxLgParts {
		o.LgParts = dbformat.MaxLgParts
	}
	if o.Env == nil {
		o.Env = vfs.Default()
	}
	if o.Logger == nil {
		o.Logger = logging.Discard
	}
	return &o
}

// Partitions returns 2^LgParts.
func (o *DirOptions) Partitions() int {
	return 1 << uint(o.LgParts)
}

// ParseDirOptions parses a semicolon-separated list of key=value pairs
// (e.g. "lg_parts=3;bf_bits_per_key=10;compression=snappy") into a
// DirOptions seeded from DefaultDirOptions. Unrecognized keys are
// reported as an error rather than silently ignored.
func ParseDirOptions(conf string) (*DirOptions, error) {
	o := DefaultDirOptions()
	conf = strings.TrimSpace(conf)
	if conf == "" {
		return o, nil
	}
	for _, field := range strings.Split(conf, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("plfsdir: malformed option %q", field)
		}
		key := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		if err := setDirOption(o, key, val); err != nil {
			return nil, fmt.Errorf("plfsdir: option %q: %w", key, err)
		}
	}
	return o, nil
}

func setDirOption(o *DirOptions, key, val string) error {
	switch key {
	case "total_memtable_budget":
		return setInt64(&o.TotalMemtableBudget, val)
	case "memtable_util":
		return setFloat64(&o.MemtableUtil, val)
	case "skip_sort":
		return setBool(&o.SkipSort, val)
	case "key_size":
		return setInt(&o.KeySize, val)
	case "value_size":
		return setInt(&o.ValueSize, val)
	case "bf_bits_per_key":
		return setInt(&o.BfBitsPerKey, val)
	case "block_size":
		return setInt(&o.BlockSize, val)
	case "block_util":
		return setFloat64(&o.BlockUtil, val)
	case "block_padding":
		return setBool(&o.BlockPadding, val)
	case "block_batch_size":
		return setInt64(&o.BlockBatchSize, val)
	case "data_buffer":
		return setInt64(&o.DataBuffer, val)
	case "index_buffer":
		return setInt64(&o.IndexBuffer, val)
	case "min_data_buffer":
		return setInt64(&o.MinDataBuffer, val)
	case "min_index_buffer":
		return setInt64(&o.MinIndexBuffer, val)
	case "tail_padding":
		return setBool(&o.TailPadding, val)
	case "read_size":
		return setInt64(&o.ReadSize, val)
	case "parallel_reads":
		return setBool(&o.ParallelReads, val)
	case "non_blocking":
		return setBool(&o.NonBlocking, val)
	case "slowdown_micros":
		return setInt64(&o.SlowdownMicros, val)
	case "paranoid_checks":
		return setBool(&o.ParanoidChecks, val)
	case "ignore_filters":
		return setBool(&o.IgnoreFilters, val)
	case "verify_checksums":
		return setBool(&o.VerifyChecksums, val)
	case "skip_checksums":
		return setBool(&o.SkipChecksums, val)
	case "compression":
		return setCompression(&o.Compression, val)
	case "force_compression":
		return setBool(&o.ForceCompression, val)
	case "measure_reads":
		return setBool(&o.MeasureReads, val)
	case "measure_writes":
		return setBool(&o.MeasureWrites, val)
	case "lg_parts":
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		if n < 0 || n > dbformat.MaxLgParts {
			return fmt.Errorf("lg_parts must be in [0,%d], got %d", dbformat.MaxLgParts, n)
		}
		o.LgParts = n
	case "mode":
		return setDirMode(&o.Mode, val)
	case "allow_env_threads":
		return setBool(&o.AllowEnvThreads, val)
	case "is_env_pfs":
		return setBool(&o.IsEnvPfs, val)
	case "rank":
		return setInt(&o.Rank, val)
	default:
		return fmt.Errorf("unrecognized option")
	}
	return nil
}

func setInt(dst *int, val string) error {
	n, err := strconv.Atoi(val)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, val string) error {
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setFloat64(dst *float64, val string) error {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

func setBool(dst *bool, val string) error {
	b, err := strconv.ParseBool(val)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func setCompression(dst *CompressionType, val string) error {
	switch strings.ToLower(val) {
	case "none", "no":
		*dst = NoCompression
	case "snappy":
		*dst = SnappyCompression
	case "zlib":
		*dst = ZlibCompression
	case "lz4":
		*dst = LZ4Compression
	case "lz4hc":
		*dst = LZ4HCCompression
	case "zstd":
		*dst = ZstdCompression
	default:
		return fmt.Errorf("unrecognized compression %q", val)
	}
	return nil
}

func setDirMode(dst *DirMode, val string) error {
	switch strings.ToLower(val) {
	case "multimap":
		*dst = MultiMap
	case "unique-override", "uniqueoverride":
		*dst = UniqueOverride
	case "unique-drop", "uniquedrop":
		*dst = UniqueDrop
	case "unique":
		*dst = Unique
	default:
		return fmt.Errorf("unrecognized mode %q", val)
	}
	return nil
}

/*
Package plfsdir implements a log-structured, partitioned directory store:
a write-optimized key/value container designed for bulk-ingest workloads
where many writers append small (file-id, data) records under one shared
directory, organized into epochs and hash-partitioned buckets.

Writes land in per-partition memtables and are periodically rotated into
immutable tables via compaction, streaming data and index/filter
metadata into two append-only logs (data and index) shared by every
partition. Reads
partition a lookup key the same way, probe each epoch's Bloom filter,
binary-search its index, and fetch the matching data block.

# Usage

A DirWriter is opened against a directory and a DirOptions configuration,
accepts Append calls tagged with epoch numbers, and is closed with
Finish. A DirReader is opened read-only against the same directory and
answers ReadAll(fid) by concatenating every epoch's matching records.

# Concurrency

A DirWriter is safe for concurrent Append calls from multiple goroutines;
partitions are independently locked. A DirReader is safe for concurrent
ReadAll calls.

Reference: deltafs_plfsio.h/.cc (the original C++ implementation this
package's semantics are ported from)
*/
package plfsdir

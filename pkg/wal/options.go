package wal

import "time"

// SyncPolicy selects when the ring buffer's dirty pages are fsync'd.
type SyncPolicy int

const (
	// SyncEveryWrite fsyncs after every group commit. Safest, slowest.
	SyncEveryWrite SyncPolicy = iota

	// SyncInterval fsyncs on a background timer.
	SyncInterval

	// SyncBatch fsyncs once a configured number of dirty bytes accumulates.
	SyncBatch
)

// Options configures a ring-buffer WAL.
type Options struct {
	// Path is the fixed-size backing file for the ring buffer.
	Path string

	// RingSize is the ring buffer's total capacity in bytes. Once the
	// write cursor would overrun unreclaimed (not yet checkpointed)
	// records, writes fail with WALFull.
	RingSize int64

	SyncPolicy           SyncPolicy
	SyncIntervalDuration time.Duration
	SyncBatchBytes       int64

	// GroupCommitInterval is carried in Options but not read by Writer:
	// WriteRecord does not batch concurrent callers, and when the file is
	// fsync'd depends on SyncPolicy alone.
	GroupCommitInterval time.Duration
}

// DefaultOptions returns the spec's default ring-buffer configuration.
func DefaultOptions() Options {
	return Options{
		Path:                 "./wal.log",
		RingSize:             64 * 1024 * 1024, // 64MiB
		SyncPolicy:           SyncInterval,
		SyncIntervalDuration: 200 * time.Millisecond,
		SyncBatchBytes:       1 * 1024 * 1024,
		GroupCommitInterval:  10 * time.Millisecond,
	}
}

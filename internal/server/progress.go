package server

import "sync/atomic"

// ProgressSnapshot reports the state of the running migration.
type ProgressSnapshot struct {
	InProgress  bool  `json:"in_progress"`
	BytesCopied int64 `json:"bytes_copied"`
	TotalBytes  int64 `json:"total_bytes"`
}

// progressTracker is written by the migrating request and read by progress polls.
type progressTracker struct {
	inProgress  atomic.Bool
	bytesCopied atomic.Int64
	totalBytes  atomic.Int64
}

func (tracker *progressTracker) start(totalBytes int64) {
	tracker.bytesCopied.Store(0)
	tracker.totalBytes.Store(totalBytes)
	tracker.inProgress.Store(true)
}

func (tracker *progressTracker) update(bytesCopied int64, totalBytes int64) {
	tracker.bytesCopied.Store(bytesCopied)
	tracker.totalBytes.Store(totalBytes)
}

func (tracker *progressTracker) finish() {
	tracker.inProgress.Store(false)
}

func (tracker *progressTracker) snapshot() ProgressSnapshot {
	return ProgressSnapshot{
		InProgress:  tracker.inProgress.Load(),
		BytesCopied: tracker.bytesCopied.Load(),
		TotalBytes:  tracker.totalBytes.Load(),
	}
}

package bridge

import (
	"fmt"
	"time"
)

// OverallStatus is the aggregate health of the bridge.
type OverallStatus int

// Overall statuses.
const (
	// StatusSynchronized means no document is diverged.
	StatusSynchronized OverallStatus = iota

	// StatusInConflict means at least one document is diverged and still
	// eligible for automatic resolution.
	StatusInConflict

	// StatusDegraded means sync failures occurred or a document exhausted
	// its automatic resolution attempts.
	StatusDegraded
)

// String returns the status name.
func (s OverallStatus) String() string {
	switch s {
	case StatusSynchronized:
		return "synchronized"
	case StatusInConflict:
		return "in-conflict"
	case StatusDegraded:
		return "degraded"
	default:
		return fmt.Sprintf("OverallStatus(%d)", int(s))
	}
}

// HealthStatus is a snapshot of the bridge's aggregate health.
type HealthStatus struct {
	Overall           OverallStatus
	DocumentsSynced   uint64
	ConflictsResolved uint64
	SyncFailures      uint64
	AverageSyncMillis float64
	LastCheck         time.Time
}

// observeSyncDuration folds a new sample into the running average using a
// two-sample mean (old+new)/2. This over-weights the newest sample compared
// to a true moving average; it behaves like a crude exponential decay and is
// kept for continuity with the metric's historical meaning.
func (h *HealthStatus) observeSyncDuration(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	if h.DocumentsSynced <= 1 {
		h.AverageSyncMillis = ms
		return
	}
	h.AverageSyncMillis = (h.AverageSyncMillis + ms) / 2
}

package bridge

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/collabbridge/internal/lsp"
)

// EventKind tags a bridge event.
type EventKind int

// Event kinds.
const (
	EventDocumentChanged EventKind = iota
	EventConflictDetected
	EventConflictResolved
	EventSyncCompleted
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case EventDocumentChanged:
		return "document-changed"
	case EventConflictDetected:
		return "conflict-detected"
	case EventConflictResolved:
		return "conflict-resolved"
	case EventSyncCompleted:
		return "sync-completed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// SyncStatus is the outcome of a sync operation.
type SyncStatus int

// Sync statuses.
const (
	SyncStatusSynchronized SyncStatus = iota
	SyncStatusConflict
	SyncStatusFailed
)

// String returns the status name.
func (s SyncStatus) String() string {
	switch s {
	case SyncStatusSynchronized:
		return "synchronized"
	case SyncStatusConflict:
		return "conflict"
	case SyncStatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("SyncStatus(%d)", int(s))
	}
}

// ResolutionStrategy names how a conflict was resolved.
type ResolutionStrategy int

// Resolution strategies.
const (
	// StrategyLSPWins keeps the LSP view and pushes it to the
	// collaborative replica.
	StrategyLSPWins ResolutionStrategy = iota

	// StrategyAIResolution applies operations chosen by the AI resolver
	// to both views.
	StrategyAIResolution
)

// String returns the strategy name.
func (s ResolutionStrategy) String() string {
	switch s {
	case StrategyLSPWins:
		return "lsp-wins"
	case StrategyAIResolution:
		return "ai-resolution"
	default:
		return fmt.Sprintf("ResolutionStrategy(%d)", int(s))
	}
}

// Event is one bridge event. Events are processed strictly in emission
// order by a single consumer.
type Event struct {
	ID     string
	Kind   EventKind
	URI    lsp.DocumentURI
	UserID string
	Time   time.Time

	// SyncCompleted fields.
	Status   SyncStatus
	Duration time.Duration

	// ConflictDetected fields.
	Severity ConflictSeverity

	// ConflictResolved fields.
	Strategy ResolutionStrategy
	Success  bool
}

// emit queues an event for the background processor. Events emitted after
// Close are dropped.
func (b *Bridge) emit(ev Event) {
	ev.ID = uuid.New().String()
	ev.Time = time.Now()

	b.eventMu.RLock()
	defer b.eventMu.RUnlock()
	if b.eventsClosed {
		return
	}
	b.events <- ev
}

// processEvents is the single consumer draining the event queue in FIFO
// order. It exits when the channel is closed and drained.
func (b *Bridge) processEvents() {
	defer b.wg.Done()

	for ev := range b.events {
		b.applyEvent(ev)
	}
}

// applyEvent mutates shared state for one event under the state write lock.
func (b *Bridge) applyEvent(ev Event) {
	b.logger.Debug("bridge event",
		zap.String("kind", ev.Kind.String()),
		zap.String("uri", string(ev.URI)),
		zap.String("id", ev.ID))

	st := b.state
	st.mu.Lock()
	defer st.mu.Unlock()

	switch ev.Kind {
	case EventDocumentChanged:
		if doc, ok := st.docs[ev.URI]; ok {
			doc.LastSyncAt = ev.Time
		}

	case EventConflictDetected:
		b.metrics.ConflictsDetected.Inc()

	case EventConflictResolved:
		if ev.Success {
			if doc, ok := st.docs[ev.URI]; ok {
				doc.InConflict = false
				doc.ResolutionAttempts = 0
				doc.PendingChanges = nil
			}
			st.health.ConflictsResolved++
			b.metrics.ConflictsResolved.WithLabelValues(ev.Strategy.String()).Inc()
		}

	case EventSyncCompleted:
		switch ev.Status {
		case SyncStatusFailed:
			st.health.SyncFailures++
		case SyncStatusSynchronized:
			st.health.DocumentsSynced++
			st.health.observeSyncDuration(ev.Duration)
		}
		// SyncStatusConflict is health-neutral: the conflict is already
		// tracked through the document flag and the conflict events.
	}

	st.health.LastCheck = ev.Time
	st.health.Overall = st.overallLocked()
}

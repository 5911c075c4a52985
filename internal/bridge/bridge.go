package bridge

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/collabbridge/internal/ai"
	"github.com/dshills/collabbridge/internal/collab"
	"github.com/dshills/collabbridge/internal/config"
	"github.com/dshills/collabbridge/internal/lsp"
	"github.com/dshills/collabbridge/internal/rope"
)

// Bridge reconciles the collaborative replica and the LSP view of each
// document. Construct one with New and release it with Close.
type Bridge struct {
	cfg      config.Config
	service  collab.Service
	router   lsp.Router
	resolver ai.Resolver // nil when the AI capability is absent

	clock   *collab.Clock
	state   *State
	sem     *semaphore.Weighted
	metrics *Metrics
	logger  *zap.Logger

	events       chan Event
	eventMu      sync.RWMutex
	eventsClosed bool
	wg           sync.WaitGroup

	closeOnce sync.Once
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithResolver installs the optional AI conflict resolver.
func WithResolver(r ai.Resolver) Option {
	return func(b *Bridge) { b.resolver = r }
}

// WithLogger sets the bridge logger. The package logger is used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a bridge over the given collaborators and starts the event
// processor.
func New(cfg config.Config, service collab.Service, router lsp.Router, opts ...Option) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if service == nil {
		return nil, errors.New("bridge requires a collaboration service")
	}
	if router == nil {
		return nil, errors.New("bridge requires a language router")
	}

	b := &Bridge{
		cfg:     cfg,
		service: service,
		router:  router,
		clock:   collab.NewClock(),
		state: newState(cfg.Cache.TranslationTTL, cfg.Cache.CompletionTTL,
			cfg.Cache.HoverTTL, cfg.Conflict.MaxResolutionAttempts),
		sem:     semaphore.NewWeighted(int64(cfg.Sync.MaxConcurrentSyncs)),
		metrics: NewMetrics(),
		logger:  Logger(),
		events:  make(chan Event, 256),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.wg.Add(1)
	go b.processEvents()

	return b, nil
}

// SharedState exposes the bridge's shared state for read access.
func (b *Bridge) SharedState() *State { return b.state }

// Health returns a snapshot of the bridge's aggregate health.
func (b *Bridge) Health() HealthStatus { return b.state.Health() }

// MetricsRegistry returns the Prometheus registry holding bridge metrics.
func (b *Bridge) MetricsRegistry() *Metrics { return b.metrics }

// Close shuts the bridge down: the event queue is closed and drained, then
// the processor exits. Sync calls issued after Close return ErrClosed.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.eventMu.Lock()
		b.eventsClosed = true
		close(b.events)
		b.eventMu.Unlock()
		b.wg.Wait()
	})
}

// CloseDocument evicts all bridge state for a document. The next sync call
// for the URI starts from a fresh DocumentSync.
func (b *Bridge) CloseDocument(ctx context.Context, uri lsp.DocumentURI) error {
	unlock, err := b.state.lockDocument(ctx, uri)
	if err != nil {
		return err
	}
	defer unlock()

	b.state.evict(uri)
	b.metrics.ActiveDocuments.Set(float64(b.state.DocumentCount()))
	return nil
}

// SyncCollaborativeToLSP pushes the collaborative replica's current content
// to the LSP view. If the document already has an LSP version, divergence
// is checked first and a detected conflict defers to resolution instead of
// overwriting the LSP view.
func (b *Bridge) SyncCollaborativeToLSP(ctx context.Context, uri lsp.DocumentURI, userID string) error {
	if b.isClosed() {
		return ErrClosed
	}
	if err := b.validateURI(uri); err != nil {
		return err
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	release, err := b.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	unlock, err := b.state.lockDocument(ctx, uri)
	if err != nil {
		return err
	}
	defer unlock()

	return b.syncCollaborativeLocked(ctx, uri, userID)
}

// syncCollaborativeLocked is the collaborative-to-LSP body. Callers hold
// the semaphore permit and the document lock.
func (b *Bridge) syncCollaborativeLocked(ctx context.Context, uri lsp.DocumentURI, userID string) error {
	start := time.Now()

	content, err := b.service.DocumentContent(ctx, string(uri))
	if err != nil {
		b.recordFailure(uri, userID, "collab_to_lsp")
		return &CollaborationSyncError{URI: uri, Op: "read", Err: err}
	}

	b.state.mu.Lock()
	doc := b.state.getOrCreateDocLocked(uri)
	versioned := doc.HasVersion
	base := doc.LastSyncedContent
	pending := append([]lsp.TextDocumentContentChangeEvent(nil), doc.PendingChanges...)
	b.state.mu.Unlock()
	b.metrics.ActiveDocuments.Set(float64(b.state.DocumentCount()))

	if versioned {
		det, err := detectConflicts(base, pending, content)
		if err != nil {
			b.recordFailure(uri, userID, "collab_to_lsp")
			return &TranslationError{URI: uri, Reason: "conflict detection", Err: err}
		}
		if det.HasConflict {
			b.state.mu.Lock()
			doc.InConflict = true
			b.state.health.Overall = b.state.overallLocked()
			b.state.mu.Unlock()

			b.emit(Event{Kind: EventConflictDetected, URI: uri, UserID: userID, Severity: det.Severity})
			b.logger.Info("conflict detected",
				zap.String("uri", string(uri)),
				zap.String("severity", det.Severity.String()),
				zap.Int("collab_ops", len(det.Operations)),
				zap.Int("pending_changes", len(det.Changes)))

			if err := b.resolveConflict(ctx, doc, content, det, userID); err != nil {
				b.metrics.SyncsTotal.WithLabelValues("collab_to_lsp", "conflict").Inc()
				b.emit(Event{Kind: EventSyncCompleted, URI: uri, UserID: userID, Status: SyncStatusConflict})
				return err
			}
			return nil
		}
	}

	version := doc.Version + 1
	changes := []lsp.TextDocumentContentChangeEvent{{Text: content}}
	if err := b.router.NotifyChange(ctx, uri, version, changes); err != nil {
		b.recordFailure(uri, userID, "collab_to_lsp")
		return &LSPCommunicationError{URI: uri, Err: err}
	}

	b.state.mu.Lock()
	doc.Version = version
	doc.HasVersion = true
	doc.LastSyncedContent = content
	doc.LastSyncAt = time.Now()
	b.state.mu.Unlock()
	b.state.setRope(uri, rope.FromString(content))

	duration := time.Since(start)
	b.metrics.SyncsTotal.WithLabelValues("collab_to_lsp", "synchronized").Inc()
	b.metrics.SyncDurationSeconds.WithLabelValues("collab_to_lsp").Observe(duration.Seconds())
	b.emit(Event{Kind: EventSyncCompleted, URI: uri, UserID: userID, Status: SyncStatusSynchronized, Duration: duration})

	b.logger.Debug("collaborative content synced to lsp",
		zap.String("uri", string(uri)),
		zap.String("user", userID),
		zap.Int("version", version),
		zap.Duration("duration", duration))
	return nil
}

// SyncLSPToCollaborative translates LSP change events into primitive
// operations and applies them to the collaborative replica under a
// latest-wins merge hint. Pending changes are recorded first and cleared
// only once every operation is confirmed applied.
func (b *Bridge) SyncLSPToCollaborative(ctx context.Context, uri lsp.DocumentURI, changes []lsp.TextDocumentContentChangeEvent, userID string) error {
	if b.isClosed() {
		return ErrClosed
	}
	if err := b.validateURI(uri); err != nil {
		return err
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	release, err := b.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	unlock, err := b.state.lockDocument(ctx, uri)
	if err != nil {
		return err
	}
	defer unlock()

	start := time.Now()

	b.state.mu.Lock()
	doc := b.state.getOrCreateDocLocked(uri)
	doc.PendingChanges = append(doc.PendingChanges, changes...)
	b.state.mu.Unlock()
	b.metrics.ActiveDocuments.Set(float64(b.state.DocumentCount()))

	text, err := b.documentRope(ctx, uri)
	if err != nil {
		b.recordFailure(uri, userID, "lsp_to_collab")
		return err
	}

	applied := 0
	for _, change := range changes {
		ops, err := b.changeToOperations(uri, text, change, userID)
		if err != nil {
			if applied > 0 {
				b.state.invalidateRope(uri)
			}
			b.recordFailure(uri, userID, "lsp_to_collab")
			return err
		}
		for _, op := range ops {
			if err := b.service.ApplyTransform(ctx, string(uri), op, collab.MergeLatestWins, userID); err != nil {
				// Earlier operations of this call already reached the
				// replica; the cached snapshot no longer matches it.
				if applied > 0 {
					b.state.invalidateRope(uri)
				}
				b.recordFailure(uri, userID, "lsp_to_collab")
				return &CollaborationSyncError{URI: uri, Op: "apply", Err: err}
			}
			applied++
			switch op.Kind {
			case collab.OpInsert:
				text = text.Insert(op.Position, op.Content)
			case collab.OpDelete:
				text = text.Delete(op.Position, op.Position+op.Length)
			}
		}
	}

	// Every operation confirmed: the views agree on the new content.
	b.state.mu.Lock()
	doc.PendingChanges = nil
	doc.LastSyncedContent = text.String()
	doc.LastSyncAt = time.Now()
	b.state.mu.Unlock()
	b.state.setRope(uri, text)

	duration := time.Since(start)
	b.metrics.SyncsTotal.WithLabelValues("lsp_to_collab", "synchronized").Inc()
	b.metrics.SyncDurationSeconds.WithLabelValues("lsp_to_collab").Observe(duration.Seconds())
	b.emit(Event{Kind: EventDocumentChanged, URI: uri, UserID: userID})
	b.emit(Event{Kind: EventSyncCompleted, URI: uri, UserID: userID, Status: SyncStatusSynchronized, Duration: duration})

	b.logger.Debug("lsp changes synced to collaborative",
		zap.String("uri", string(uri)),
		zap.String("user", userID),
		zap.Int("changes", len(changes)),
		zap.Duration("duration", duration))
	return nil
}

// ForceSync is the manual escape hatch: it clears conflict flags, attempt
// counters, and pending changes, then re-runs the collaborative-to-LSP
// path. The collaborative replica's content wins.
func (b *Bridge) ForceSync(ctx context.Context, uri lsp.DocumentURI, userID string) error {
	if b.isClosed() {
		return ErrClosed
	}
	if err := b.validateURI(uri); err != nil {
		return err
	}

	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	release, err := b.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	unlock, err := b.state.lockDocument(ctx, uri)
	if err != nil {
		return err
	}
	defer unlock()

	b.state.mu.Lock()
	doc := b.state.getOrCreateDocLocked(uri)
	doc.InConflict = false
	doc.ResolutionAttempts = 0
	doc.PendingChanges = nil
	// Drop the detection base so the re-sync does not re-detect against
	// stale content.
	doc.HasVersion = false
	b.state.health.Overall = b.state.overallLocked()
	b.state.mu.Unlock()
	b.state.invalidateRope(uri)

	b.logger.Info("force sync", zap.String("uri", string(uri)), zap.String("user", userID))
	return b.syncCollaborativeLocked(ctx, uri, userID)
}

// acquire takes one permit from the global sync semaphore, surfacing
// saturation past the deadline as CapacityExceededError.
func (b *Bridge) acquire(ctx context.Context) (func(), error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return nil, &CapacityExceededError{Limit: b.cfg.Sync.MaxConcurrentSyncs, Err: err}
	}
	return func() { b.sem.Release(1) }, nil
}

// withTimeout applies the configured operation timeout when the caller's
// context carries no deadline.
func (b *Bridge) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.cfg.Sync.OperationTimeout)
}

// validateURI rejects URIs that are not file scheme or whose path escapes
// the workspace root. It runs before any state mutation.
func (b *Bridge) validateURI(uri lsp.DocumentURI) error {
	if uri == "" {
		return &SecurityValidationError{URI: uri, Reason: "empty URI"}
	}
	if !lsp.IsFileURI(uri) {
		return &SecurityValidationError{URI: uri, Reason: "not a file URI"}
	}

	path := lsp.URIToFilePath(uri)
	if path == "" {
		return &SecurityValidationError{URI: uri, Reason: "empty path"}
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return &SecurityValidationError{URI: uri, Reason: "path traversal segment"}
		}
	}

	if root := b.cfg.Sync.WorkspaceRoot; root != "" {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return &SecurityValidationError{URI: uri, Reason: "unresolvable workspace root"}
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return &SecurityValidationError{URI: uri, Reason: "unresolvable path"}
		}
		rel, err := filepath.Rel(absRoot, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return &SecurityValidationError{URI: uri, Reason: "outside workspace root"}
		}
	}
	return nil
}

// recordFailure emits a failed SyncCompleted event and bumps the failure
// metrics.
func (b *Bridge) recordFailure(uri lsp.DocumentURI, userID, direction string) {
	b.metrics.SyncsTotal.WithLabelValues(direction, "failed").Inc()
	b.emit(Event{Kind: EventSyncCompleted, URI: uri, UserID: userID, Status: SyncStatusFailed})
}

func (b *Bridge) isClosed() bool {
	b.eventMu.RLock()
	defer b.eventMu.RUnlock()
	return b.eventsClosed
}

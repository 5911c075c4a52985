package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/dshills/collabbridge/internal/cache"
	"github.com/dshills/collabbridge/internal/lsp"
	"github.com/dshills/collabbridge/internal/rope"
)

// DocumentSync is the bridge's per-document synchronization state. It is
// created lazily on the first sync call for a URI and evicted by
// CloseDocument.
type DocumentSync struct {
	URI lsp.DocumentURI

	// Version is the LSP document version. It is meaningless until
	// HasVersion is set by the first collaborative-to-LSP sync.
	Version    int
	HasVersion bool

	// LastSyncedContent is the content last acknowledged to the LSP
	// side; it is the base for three-way conflict detection.
	LastSyncedContent string

	// PendingChanges are LSP changes not yet confirmed applied to the
	// collaborative replica. They are cleared only on confirmed success
	// or ForceSync, never speculatively.
	PendingChanges []lsp.TextDocumentContentChangeEvent

	InConflict         bool
	ResolutionAttempts uint32
	LastResolutionAt   time.Time
	LastSyncAt         time.Time
}

// State is the bridge's shared state: per-document sync records, the rope
// snapshot cache, semantic-feature caches, and aggregate health. Fields are
// guarded by a single reader-writer lock; lock scopes cover individual
// mutations, not whole sync calls (per-document exclusion is handled by the
// document locks).
type State struct {
	mu     sync.RWMutex
	docs   map[lsp.DocumentURI]*DocumentSync
	ropes  map[lsp.DocumentURI]rope.Rope
	health HealthStatus

	// maxAttempts mirrors the conflict config so overallLocked can tell
	// exhausted documents from retryable ones.
	maxAttempts uint32

	translations *cache.Cache[string, *TranslationResult]
	diagnostics  *cache.Cache[lsp.DocumentURI, []lsp.Diagnostic]
	completions  *cache.Cache[string, []lsp.CompletionItem]
	hovers       *cache.Cache[string, *lsp.Hover]
	codeActions  *cache.Cache[string, []lsp.CodeAction]

	lockMu sync.Mutex
	locks  map[lsp.DocumentURI]chan struct{}
}

func newState(translationTTL, completionTTL, hoverTTL time.Duration, maxAttempts int) *State {
	return &State{
		docs:         make(map[lsp.DocumentURI]*DocumentSync),
		ropes:        make(map[lsp.DocumentURI]rope.Rope),
		maxAttempts:  uint32(maxAttempts),
		translations: cache.New[string, *TranslationResult](translationTTL),
		diagnostics:  cache.New[lsp.DocumentURI, []lsp.Diagnostic](completionTTL),
		completions:  cache.New[string, []lsp.CompletionItem](completionTTL),
		hovers:       cache.New[string, *lsp.Hover](hoverTTL),
		codeActions:  cache.New[string, []lsp.CodeAction](hoverTTL),
	}
}

// Document returns a copy of the sync state for a URI.
func (s *State) Document(uri lsp.DocumentURI) (DocumentSync, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[uri]
	if !ok {
		return DocumentSync{}, false
	}
	cp := *doc
	cp.PendingChanges = append([]lsp.TextDocumentContentChangeEvent(nil), doc.PendingChanges...)
	return cp, true
}

// DocumentCount returns the number of documents with sync state.
func (s *State) DocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Health returns a snapshot of the aggregate health.
func (s *State) Health() HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.health
}

// Diagnostics returns cached diagnostics for a document.
func (s *State) Diagnostics(uri lsp.DocumentURI) ([]lsp.Diagnostic, bool) {
	return s.diagnostics.Get(uri)
}

// SetDiagnostics caches diagnostics for a document.
func (s *State) SetDiagnostics(uri lsp.DocumentURI, diags []lsp.Diagnostic) {
	s.diagnostics.Put(uri, diags)
}

// Completions returns cached completion items for a request key. Keys are
// position-scoped, e.g. "uri#line:character".
func (s *State) Completions(key string) ([]lsp.CompletionItem, bool) {
	return s.completions.Get(key)
}

// SetCompletions caches completion items for a request key.
func (s *State) SetCompletions(key string, items []lsp.CompletionItem) {
	s.completions.Put(key, items)
}

// Hover returns a cached hover result for a request key.
func (s *State) Hover(key string) (*lsp.Hover, bool) {
	return s.hovers.Get(key)
}

// SetHover caches a hover result for a request key.
func (s *State) SetHover(key string, h *lsp.Hover) {
	s.hovers.Put(key, h)
}

// CodeActions returns cached code actions for a request key.
func (s *State) CodeActions(key string) ([]lsp.CodeAction, bool) {
	return s.codeActions.Get(key)
}

// SetCodeActions caches code actions for a request key.
func (s *State) SetCodeActions(key string, actions []lsp.CodeAction) {
	s.codeActions.Put(key, actions)
}

// getOrCreateDocLocked returns the sync state for a URI, creating it
// lazily. Callers hold the state write lock.
func (s *State) getOrCreateDocLocked(uri lsp.DocumentURI) *DocumentSync {
	doc, ok := s.docs[uri]
	if !ok {
		doc = &DocumentSync{URI: uri}
		s.docs[uri] = doc
	}
	return doc
}

// overallLocked derives the aggregate status from per-document state.
// Callers hold the state lock.
func (s *State) overallLocked() OverallStatus {
	inConflict := false
	for _, doc := range s.docs {
		if !doc.InConflict {
			continue
		}
		if s.maxAttempts > 0 && doc.ResolutionAttempts >= s.maxAttempts {
			return StatusDegraded
		}
		inConflict = true
	}
	if inConflict {
		return StatusInConflict
	}
	if s.health.SyncFailures > 0 {
		return StatusDegraded
	}
	return StatusSynchronized
}

// cachedRope returns the cached rope snapshot for a URI.
func (s *State) cachedRope(uri lsp.DocumentURI) (rope.Rope, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ropes[uri]
	return r, ok
}

// setRope caches a rope snapshot for a URI.
func (s *State) setRope(uri lsp.DocumentURI, r rope.Rope) {
	s.mu.Lock()
	s.ropes[uri] = r
	s.mu.Unlock()
}

// invalidateRope drops the rope snapshot for a URI. The bridge calls this
// after it mutates collaborative content itself; external mutations are not
// observed, so callers must treat cached ropes as per-call snapshots.
func (s *State) invalidateRope(uri lsp.DocumentURI) {
	s.mu.Lock()
	delete(s.ropes, uri)
	s.mu.Unlock()
}

// evict removes all state for a URI. Position-scoped request caches
// (completions, hovers, code actions) are left to their TTLs. The lock
// entry is kept: dropping it while a sync still holds the channel would
// hand a fresh, unheld channel to the next caller and break per-document
// exclusion. A reopened document reuses the same entry.
func (s *State) evict(uri lsp.DocumentURI) {
	s.mu.Lock()
	delete(s.docs, uri)
	delete(s.ropes, uri)
	s.health.Overall = s.overallLocked()
	s.mu.Unlock()

	s.diagnostics.Invalidate(uri)
}

// lockDocument acquires the per-document mutex, honoring ctx. The returned
// function releases it. Holding the mutex across a whole sync call keeps
// concurrent sync and force-sync calls on one document from interleaving.
func (s *State) lockDocument(ctx context.Context, uri lsp.DocumentURI) (func(), error) {
	s.lockMu.Lock()
	if s.locks == nil {
		s.locks = make(map[lsp.DocumentURI]chan struct{})
	}
	ch, ok := s.locks[uri]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[uri] = ch
	}
	s.lockMu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

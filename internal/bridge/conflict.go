package bridge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/collabbridge/internal/collab"
	"github.com/dshills/collabbridge/internal/lsp"
	"github.com/dshills/collabbridge/internal/rope"
)

// ConflictSeverity grades a detected conflict by the size of the diverged
// region.
type ConflictSeverity int

// Conflict severities.
const (
	SeverityLow      ConflictSeverity = iota // diverged span of at most 2 lines
	SeverityModerate                         // diverged span of at most 10 lines
	SeveritySevere
)

// String returns the severity name.
func (s ConflictSeverity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityModerate:
		return "moderate"
	case SeveritySevere:
		return "severe"
	default:
		return fmt.Sprintf("ConflictSeverity(%d)", int(s))
	}
}

// Detection is the outcome of conflict detection for one document.
type Detection struct {
	HasConflict bool

	// Ranges bound the diverged lines between the two views.
	Ranges []lsp.Range

	// Changes are the document's pending LSP changes at detection time.
	Changes []lsp.TextDocumentContentChangeEvent

	// Operations approximate the collaborative side's edits since the
	// last synchronized content, derived by prefix/suffix diff.
	Operations []collab.Operation

	Severity ConflictSeverity
}

// detectConflicts decides divergence with a three-way compare. The base is
// the content last acknowledged to the LSP side; the collaborative view is
// the service's current content; the LSP view is the base with the
// document's pending changes applied. Only a modify-modify disagreement is
// a conflict: if either side still matches the base, or both sides agree,
// the views can converge without arbitration.
func detectConflicts(base string, pending []lsp.TextDocumentContentChangeEvent, collabContent string) (Detection, error) {
	lspView, err := applyChanges(base, pending)
	if err != nil {
		return Detection{}, err
	}

	if collabContent == base || lspView == base || collabContent == lspView {
		return Detection{}, nil
	}

	firstLine, lastLine := diffLineSpan(collabContent, lspView)
	span := lastLine - firstLine + 1

	severity := SeveritySevere
	switch {
	case span <= 2:
		severity = SeverityLow
	case span <= 10:
		severity = SeverityModerate
	}

	return Detection{
		HasConflict: true,
		Ranges: []lsp.Range{{
			Start: lsp.Position{Line: firstLine},
			End:   lsp.Position{Line: lastLine + 1},
		}},
		Changes:    append([]lsp.TextDocumentContentChangeEvent(nil), pending...),
		Operations: diffOperations(base, collabContent),
		Severity:   severity,
	}, nil
}

// applyChanges applies LSP change events to content in order, remapping
// each change against the intermediate state.
func applyChanges(content string, changes []lsp.TextDocumentContentChangeEvent) (string, error) {
	text := rope.FromString(content)
	for _, change := range changes {
		if change.Range == nil {
			text = rope.FromString(change.Text)
			continue
		}
		if !lsp.IsRangeValid(*change.Range) {
			return "", lsp.ErrInvalidRange
		}
		mapper := lsp.NewMapper(text)
		start, end, err := mapper.RangeToByteOffsets(*change.Range)
		if err != nil {
			return "", err
		}
		text = text.Replace(start, end, change.Text)
	}
	return text.String(), nil
}

// diffLineSpan returns the first and last differing 0-indexed lines between
// two contents using a prefix/suffix line scan.
func diffLineSpan(a, b string) (first, last int) {
	al := splitLines(a)
	bl := splitLines(b)

	n := len(al)
	if len(bl) < n {
		n = len(bl)
	}

	first = 0
	for first < n && al[first] == bl[first] {
		first++
	}

	maxLen := len(al)
	if len(bl) > maxLen {
		maxLen = len(bl)
	}
	if first >= maxLen {
		return 0, 0
	}

	ai, bi := len(al)-1, len(bl)-1
	for ai > first && bi > first && al[ai] == bl[bi] {
		ai--
		bi--
	}

	last = ai
	if bi > ai {
		last = bi
	}
	return first, last
}

func splitLines(s string) []string {
	lines := []string{}
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return append(lines, s[start:])
}

// diffOperations derives the primitive operations turning base into target
// using a common prefix/suffix byte scan: at most one delete and one insert.
func diffOperations(base, target string) []collab.Operation {
	if base == target {
		return nil
	}

	prefix := 0
	for prefix < len(base) && prefix < len(target) && base[prefix] == target[prefix] {
		prefix++
	}

	suffix := 0
	for suffix < len(base)-prefix && suffix < len(target)-prefix &&
		base[len(base)-1-suffix] == target[len(target)-1-suffix] {
		suffix++
	}

	var ops []collab.Operation
	if del := len(base) - prefix - suffix; del > 0 {
		ops = append(ops, collab.Operation{
			Kind:     collab.OpDelete,
			Position: prefix,
			Length:   del,
		})
	}
	if ins := target[prefix : len(target)-suffix]; ins != "" {
		ops = append(ops, collab.Operation{
			Kind:     collab.OpInsert,
			Position: prefix,
			Content:  ins,
		})
	}
	return ops
}

// resolveConflict drives a diverged document back to one content. The AI
// path is taken when a resolver is configured and enabled; otherwise the
// LSP view wins and is pushed to the collaborative replica so both sides
// actually converge. Callers hold the document lock.
func (b *Bridge) resolveConflict(ctx context.Context, doc *DocumentSync, collabContent string, det Detection, userID string) error {
	b.state.mu.RLock()
	attempts := doc.ResolutionAttempts
	lastAt := doc.LastResolutionAt
	base := doc.LastSyncedContent
	b.state.mu.RUnlock()

	if attempts >= uint32(b.cfg.Conflict.MaxResolutionAttempts) {
		return fmt.Errorf("%w: %d attempts on %s", ErrResolutionExhausted, attempts, doc.URI)
	}
	if attempts > 0 {
		wait := b.resolutionBackoff(attempts)
		if elapsed := time.Since(lastAt); elapsed < wait {
			return fmt.Errorf("%w: retry in %s", ErrResolutionBackoff, wait-elapsed)
		}
	}

	var (
		strategy ResolutionStrategy
		err      error
	)
	if b.resolver != nil && b.cfg.Conflict.EnableAIResolution {
		strategy = StrategyAIResolution
		err = b.resolveWithAI(ctx, doc, collabContent, det, userID)
	} else {
		strategy = StrategyLSPWins
		err = b.resolveLSPWins(ctx, doc, base, det.Changes, userID)
	}

	b.state.mu.Lock()
	doc.LastResolutionAt = time.Now()
	if err != nil {
		doc.ResolutionAttempts++
		attempts = doc.ResolutionAttempts
		b.state.health.Overall = b.state.overallLocked()
	}
	b.state.mu.Unlock()

	if err != nil {
		b.emit(Event{Kind: EventConflictResolved, URI: doc.URI, UserID: userID, Strategy: strategy, Success: false})
		b.logger.Warn("conflict resolution failed",
			zap.String("uri", string(doc.URI)),
			zap.String("strategy", strategy.String()),
			zap.Uint32("attempts", attempts),
			zap.Error(err))
		return err
	}

	b.emit(Event{Kind: EventConflictResolved, URI: doc.URI, UserID: userID, Strategy: strategy, Success: true})
	b.logger.Info("conflict resolved",
		zap.String("uri", string(doc.URI)),
		zap.String("strategy", strategy.String()))
	return nil
}

// resolutionBackoff returns the delay required before the given attempt
// number may retry: base doubled per prior attempt, bounded by the cap.
func (b *Bridge) resolutionBackoff(attempts uint32) time.Duration {
	wait := b.cfg.Conflict.BackoffBase
	for i := uint32(1); i < attempts; i++ {
		wait *= 2
		if wait >= b.cfg.Conflict.BackoffCap {
			return b.cfg.Conflict.BackoffCap
		}
	}
	if wait > b.cfg.Conflict.BackoffCap {
		wait = b.cfg.Conflict.BackoffCap
	}
	return wait
}

// resolveWithAI feeds both sides' operations to the resolver and applies
// the chosen operations to the collaborative replica and the LSP view so
// they converge on one content.
func (b *Bridge) resolveWithAI(ctx context.Context, doc *DocumentSync, collabContent string, det Detection, userID string) error {
	ops := append([]collab.Operation(nil), det.Operations...)
	text := rope.FromString(collabContent)
	for _, change := range det.Changes {
		converted, err := b.changeToOperations(doc.URI, text, change, userID)
		if err != nil {
			return err
		}
		ops = append(ops, converted...)
	}

	analysis, err := b.resolver.AnalyzeConflicts(ctx, ops, collabContent)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	chosen, err := b.resolver.ResolveConflicts(ctx, analysis, collabContent)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	// Apply the chosen operations to the collaborative replica and fold
	// them into a merged content for the LSP side.
	merged := rope.FromString(collabContent)
	for i := range chosen {
		chosen[i].Clock = b.clock.Tick()
		chosen[i].UserID = userID
		if err := b.service.ApplyTransform(ctx, string(doc.URI), chosen[i], collab.MergeLatestWins, userID); err != nil {
			return &CollaborationSyncError{URI: doc.URI, Op: "apply", Err: err}
		}
		switch chosen[i].Kind {
		case collab.OpInsert:
			merged = merged.Insert(chosen[i].Position, chosen[i].Content)
		case collab.OpDelete:
			merged = merged.Delete(chosen[i].Position, chosen[i].Position+chosen[i].Length)
		}
	}

	return b.converge(ctx, doc, merged.String())
}

// resolveLSPWins pushes the LSP view into the collaborative replica. The
// winning content is the last synchronized content with pending changes
// applied.
func (b *Bridge) resolveLSPWins(ctx context.Context, doc *DocumentSync, base string, pending []lsp.TextDocumentContentChangeEvent, userID string) error {
	winning, err := applyChanges(base, pending)
	if err != nil {
		return &TranslationError{URI: doc.URI, Reason: "pending changes", Err: err}
	}

	current, err := b.service.DocumentContent(ctx, string(doc.URI))
	if err != nil {
		return &CollaborationSyncError{URI: doc.URI, Op: "read", Err: err}
	}

	for _, op := range diffOperations(current, winning) {
		var applied collab.Operation
		switch op.Kind {
		case collab.OpInsert:
			applied = collab.NewInsert(op.Position, op.Content, b.clock.Tick(), userID)
		case collab.OpDelete:
			applied = collab.NewDelete(op.Position, op.Length, b.clock.Tick(), userID)
		}
		if err := b.service.ApplyTransform(ctx, string(doc.URI), applied, collab.MergeLatestWins, userID); err != nil {
			return &CollaborationSyncError{URI: doc.URI, Op: "apply", Err: err}
		}
	}

	return b.converge(ctx, doc, winning)
}

// converge acknowledges the resolved content to the LSP side and records it
// as the new synchronization base. Callers hold the document lock.
func (b *Bridge) converge(ctx context.Context, doc *DocumentSync, content string) error {
	version := doc.Version + 1
	changes := []lsp.TextDocumentContentChangeEvent{{Text: content}}
	if err := b.router.NotifyChange(ctx, doc.URI, version, changes); err != nil {
		return &LSPCommunicationError{URI: doc.URI, Err: err}
	}

	b.state.mu.Lock()
	doc.Version = version
	doc.HasVersion = true
	doc.LastSyncedContent = content
	doc.LastSyncAt = time.Now()
	b.state.mu.Unlock()

	b.state.setRope(doc.URI, rope.FromString(content))
	return nil
}

package bridge

import (
	"context"
	"fmt"
	"hash/fnv"

	"go.uber.org/zap"

	"github.com/dshills/collabbridge/internal/collab"
	"github.com/dshills/collabbridge/internal/lsp"
	"github.com/dshills/collabbridge/internal/rope"
)

// TranslationResult is the outcome of translating CRDT operations into LSP
// change events.
type TranslationResult struct {
	Changes    []lsp.TextDocumentContentChangeEvent
	Confidence float64
	Warnings   []string
}

// TranslateOperations converts primitive collaborative operations into LSP
// change events against the document's current content snapshot. Results
// are cached by a content hash of the operation list, so translating an
// identical list twice returns the cached result.
//
// Positions are mapped against one snapshot; operation positions must refer
// to that snapshot, not to intermediate states.
func (b *Bridge) TranslateOperations(ctx context.Context, uri lsp.DocumentURI, ops []collab.Operation) (*TranslationResult, error) {
	key := translationKey(uri, ops)
	if res, ok := b.state.translations.Get(key); ok {
		b.metrics.TranslationCacheHits.Inc()
		return res, nil
	}
	b.metrics.TranslationCacheMiss.Inc()

	text, err := b.documentRope(ctx, uri)
	if err != nil {
		return nil, err
	}
	mapper := lsp.NewMapper(text)

	result := &TranslationResult{}
	for i, op := range ops {
		change, err := translateOperation(mapper, op)
		if err != nil {
			return nil, &TranslationError{URI: uri, Reason: fmt.Sprintf("operation %d", i), Err: err}
		}
		result.Changes = append(result.Changes, change)
	}

	if len(result.Changes) == 0 {
		result.Confidence = 0.0
		result.Warnings = append(result.Warnings, "no operations to translate")
	} else {
		result.Confidence = 1.0
	}

	b.state.translations.Put(key, result)
	b.logger.Debug("translated operations",
		zap.String("uri", string(uri)),
		zap.Int("operations", len(ops)),
		zap.Int("changes", len(result.Changes)),
		zap.Float64("confidence", result.Confidence))
	return result, nil
}

// translateOperation maps one primitive operation to an LSP change event.
func translateOperation(m *lsp.Mapper, op collab.Operation) (lsp.TextDocumentContentChangeEvent, error) {
	switch op.Kind {
	case collab.OpInsert:
		pos, err := m.ByteToPosition(op.Position)
		if err != nil {
			return lsp.TextDocumentContentChangeEvent{}, err
		}
		return lsp.TextDocumentContentChangeEvent{
			Range: &lsp.Range{Start: pos, End: pos},
			Text:  op.Content,
		}, nil

	case collab.OpDelete:
		start, err := m.ByteToPosition(op.Position)
		if err != nil {
			return lsp.TextDocumentContentChangeEvent{}, err
		}
		end, err := m.ByteToPosition(op.Position + op.Length)
		if err != nil {
			return lsp.TextDocumentContentChangeEvent{}, err
		}
		return lsp.TextDocumentContentChangeEvent{
			Range:       &lsp.Range{Start: start, End: end},
			RangeLength: lsp.UTF16Len(m.Slice(op.Position, op.Position+op.Length)),
			Text:        "",
		}, nil

	default:
		return lsp.TextDocumentContentChangeEvent{}, fmt.Errorf("unknown operation kind %d", int(op.Kind))
	}
}

// translationKey hashes the operation list's content with FNV-1a. Keying by
// content rather than operation count keeps equal-length but different
// sequences from colliding.
func translationKey(uri lsp.DocumentURI, ops []collab.Operation) string {
	h := fnv.New64a()
	for _, op := range ops {
		fmt.Fprintf(h, "%d|%d|%s|%d|%s|%d;", int(op.Kind), op.Position, op.Content, op.Length, op.OpID, op.Clock)
	}
	return fmt.Sprintf("%s#%x", uri, h.Sum64())
}

// ConvertChange converts one LSP change event into primitive collaborative
// operations against the document's current content snapshot. A change with
// no range is a full-document replacement: positional granularity is
// discarded and the whole content is replaced at position zero.
func (b *Bridge) ConvertChange(ctx context.Context, uri lsp.DocumentURI, change lsp.TextDocumentContentChangeEvent, userID string) ([]collab.Operation, error) {
	text, err := b.documentRope(ctx, uri)
	if err != nil {
		return nil, err
	}
	return b.changeToOperations(uri, text, change, userID)
}

// changeToOperations is the snapshot-explicit core of ConvertChange.
func (b *Bridge) changeToOperations(uri lsp.DocumentURI, text rope.Rope, change lsp.TextDocumentContentChangeEvent, userID string) ([]collab.Operation, error) {
	if change.Range == nil {
		// Full replacement. Delete everything, insert the new content.
		var ops []collab.Operation
		if text.Len() > 0 {
			ops = append(ops, collab.NewDelete(0, text.Len(), b.clock.Tick(), userID))
		}
		if change.Text != "" {
			ops = append(ops, collab.NewInsert(0, change.Text, b.clock.Tick(), userID))
		}
		return ops, nil
	}

	if !lsp.IsRangeValid(*change.Range) {
		return nil, &TranslationError{URI: uri, Reason: "range end precedes start", Err: lsp.ErrInvalidRange}
	}

	mapper := lsp.NewMapper(text)
	start, end, err := mapper.RangeToByteOffsets(*change.Range)
	if err != nil {
		return nil, &TranslationError{URI: uri, Reason: "range mapping", Err: err}
	}

	var ops []collab.Operation
	if end > start {
		ops = append(ops, collab.NewDelete(start, end-start, b.clock.Tick(), userID))
	}
	if change.Text != "" {
		ops = append(ops, collab.NewInsert(start, change.Text, b.clock.Tick(), userID))
	}
	return ops, nil
}

// documentRope returns the rope snapshot for a URI, fetching and caching
// the collaborative content on a miss. The cache is not invalidated when
// the collaborative document changes elsewhere; treat the result as a
// per-call snapshot.
func (b *Bridge) documentRope(ctx context.Context, uri lsp.DocumentURI) (rope.Rope, error) {
	if r, ok := b.state.cachedRope(uri); ok {
		return r, nil
	}

	content, err := b.service.DocumentContent(ctx, string(uri))
	if err != nil {
		return rope.Rope{}, &CollaborationSyncError{URI: uri, Op: "read", Err: err}
	}

	r := rope.FromString(content)
	b.state.setRope(uri, r)
	return r, nil
}

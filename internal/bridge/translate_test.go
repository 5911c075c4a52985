package bridge

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/dshills/collabbridge/internal/collab"
	"github.com/dshills/collabbridge/internal/config"
	"github.com/dshills/collabbridge/internal/lsp"
)

func newTestBridge(t *testing.T, svc collab.Service, router lsp.Router, opts ...Option) *Bridge {
	t.Helper()
	cfg := config.Default()
	if svc == nil {
		svc = collab.NewMemoryService()
	}
	if router == nil {
		router = lsp.NewLogRouter(nil)
	}
	b, err := New(cfg, svc, router, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func TestTranslateInsertOperation(t *testing.T) {
	svc := collab.NewMemoryService()
	svc.SetDocument("file:///a.txt", "hello\nworld")
	b := newTestBridge(t, svc, nil)

	ops := []collab.Operation{collab.NewInsert(6, "x", 1, "u")}
	res, err := b.TranslateOperations(context.Background(), "file:///a.txt", ops)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(res.Changes) != 1 {
		t.Fatalf("Expected 1 change, got %d", len(res.Changes))
	}
	change := res.Changes[0]
	if change.Range == nil {
		t.Fatal("Expected a range")
	}
	want := lsp.Position{Line: 1, Character: 0}
	if change.Range.Start != want || change.Range.End != want {
		t.Errorf("Expected zero-length range at %v, got %v", want, *change.Range)
	}
	if change.Text != "x" {
		t.Errorf("Expected text %q, got %q", "x", change.Text)
	}
	if res.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %f", res.Confidence)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", res.Warnings)
	}
}

func TestTranslateDeleteOperation(t *testing.T) {
	svc := collab.NewMemoryService()
	svc.SetDocument("file:///a.txt", "héllo")
	b := newTestBridge(t, svc, nil)

	// Delete é: 2 bytes, 1 UTF-16 unit.
	ops := []collab.Operation{collab.NewDelete(1, 2, 1, "u")}
	res, err := b.TranslateOperations(context.Background(), "file:///a.txt", ops)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	change := res.Changes[0]
	if change.Range.Start != (lsp.Position{Line: 0, Character: 1}) {
		t.Errorf("Unexpected start %v", change.Range.Start)
	}
	if change.Range.End != (lsp.Position{Line: 0, Character: 2}) {
		t.Errorf("Unexpected end %v", change.Range.End)
	}
	if change.RangeLength != 1 {
		t.Errorf("Expected range length 1 UTF-16 unit, got %d", change.RangeLength)
	}
	if change.Text != "" {
		t.Errorf("Expected empty text, got %q", change.Text)
	}
}

func TestTranslateEmptyOperations(t *testing.T) {
	svc := collab.NewMemoryService()
	svc.SetDocument("file:///a.txt", "hello")
	b := newTestBridge(t, svc, nil)

	res, err := b.TranslateOperations(context.Background(), "file:///a.txt", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if res.Confidence != 0.0 {
		t.Errorf("Expected confidence 0.0, got %f", res.Confidence)
	}
	if len(res.Warnings) == 0 {
		t.Error("Expected a warning for empty operation list")
	}
}

func TestTranslateIdempotence(t *testing.T) {
	svc := collab.NewMemoryService()
	svc.SetDocument("file:///a.txt", "hello world")
	b := newTestBridge(t, svc, nil)

	ops := []collab.Operation{
		collab.NewInsert(0, "a", 1, "u"),
		collab.NewDelete(6, 5, 2, "u"),
	}

	first, err := b.TranslateOperations(context.Background(), "file:///a.txt", ops)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := b.TranslateOperations(context.Background(), "file:///a.txt", ops)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if first != second {
		t.Error("Expected second translation to hit the cache")
	}
	if !reflect.DeepEqual(first.Changes, second.Changes) || first.Confidence != second.Confidence {
		t.Error("Expected identical translation results")
	}
}

func TestTranslateCacheKeyIsContentSensitive(t *testing.T) {
	svc := collab.NewMemoryService()
	svc.SetDocument("file:///a.txt", "hello world")
	b := newTestBridge(t, svc, nil)
	ctx := context.Background()

	// Same length, different content: must not collide.
	a := []collab.Operation{{Kind: collab.OpInsert, Position: 0, Content: "x", OpID: "1"}}
	c := []collab.Operation{{Kind: collab.OpInsert, Position: 5, Content: "y", OpID: "2"}}

	resA, err := b.TranslateOperations(ctx, "file:///a.txt", a)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	resC, err := b.TranslateOperations(ctx, "file:///a.txt", c)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if reflect.DeepEqual(resA.Changes, resC.Changes) {
		t.Error("Different operation lists returned the same cached result")
	}
}

func TestTranslateOutOfBounds(t *testing.T) {
	svc := collab.NewMemoryService()
	svc.SetDocument("file:///a.txt", "abc")
	b := newTestBridge(t, svc, nil)

	ops := []collab.Operation{collab.NewDelete(2, 5, 1, "u")}
	_, err := b.TranslateOperations(context.Background(), "file:///a.txt", ops)
	if !errors.Is(err, lsp.ErrPositionOutOfBounds) {
		t.Errorf("Expected ErrPositionOutOfBounds, got %v", err)
	}
	var te *TranslationError
	if !errors.As(err, &te) {
		t.Errorf("Expected TranslationError wrapper, got %T", err)
	}
}

func TestConvertChangeInsert(t *testing.T) {
	svc := collab.NewMemoryService()
	svc.SetDocument("file:///a.txt", "hello\nworld")
	b := newTestBridge(t, svc, nil)

	change := lsp.TextDocumentContentChangeEvent{
		Range: &lsp.Range{
			Start: lsp.Position{Line: 1, Character: 2},
			End:   lsp.Position{Line: 1, Character: 2},
		},
		Text: "xyz",
	}

	ops, err := b.ConvertChange(context.Background(), "file:///a.txt", change, "u")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("Expected 1 operation, got %d", len(ops))
	}
	if ops[0].Kind != collab.OpInsert || ops[0].Position != 8 || ops[0].Content != "xyz" {
		t.Errorf("Unexpected operation: %+v", ops[0])
	}
	if ops[0].UserID != "u" || ops[0].Clock == 0 || ops[0].OpID == "" {
		t.Errorf("Expected attributed, clocked operation: %+v", ops[0])
	}
}

func TestConvertChangeDelete(t *testing.T) {
	svc := collab.NewMemoryService()
	svc.SetDocument("file:///a.txt", "hello")
	b := newTestBridge(t, svc, nil)

	change := lsp.TextDocumentContentChangeEvent{
		Range: &lsp.Range{
			Start: lsp.Position{Line: 0, Character: 1},
			End:   lsp.Position{Line: 0, Character: 4},
		},
		Text: "",
	}

	ops, err := b.ConvertChange(context.Background(), "file:///a.txt", change, "u")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ops) != 1 || ops[0].Kind != collab.OpDelete || ops[0].Position != 1 || ops[0].Length != 3 {
		t.Errorf("Unexpected operations: %+v", ops)
	}
}

func TestConvertChangeReplace(t *testing.T) {
	svc := collab.NewMemoryService()
	svc.SetDocument("file:///a.txt", "hello")
	b := newTestBridge(t, svc, nil)

	change := lsp.TextDocumentContentChangeEvent{
		Range: &lsp.Range{
			Start: lsp.Position{Line: 0, Character: 0},
			End:   lsp.Position{Line: 0, Character: 5},
		},
		Text: "bye",
	}

	ops, err := b.ConvertChange(context.Background(), "file:///a.txt", change, "u")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("Expected delete+insert, got %d operations", len(ops))
	}
	if ops[0].Kind != collab.OpDelete || ops[0].Length != 5 {
		t.Errorf("Unexpected delete: %+v", ops[0])
	}
	if ops[1].Kind != collab.OpInsert || ops[1].Content != "bye" || ops[1].Position != 0 {
		t.Errorf("Unexpected insert: %+v", ops[1])
	}
}

func TestConvertChangeFullReplacement(t *testing.T) {
	svc := collab.NewMemoryService()
	svc.SetDocument("file:///a.txt", "old content")
	b := newTestBridge(t, svc, nil)

	change := lsp.TextDocumentContentChangeEvent{Text: "brand new"}
	ops, err := b.ConvertChange(context.Background(), "file:///a.txt", change, "u")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("Expected 2 operations, got %d", len(ops))
	}
	if ops[0].Kind != collab.OpDelete || ops[0].Position != 0 || ops[0].Length != len("old content") {
		t.Errorf("Unexpected delete: %+v", ops[0])
	}
	if ops[1].Kind != collab.OpInsert || ops[1].Position != 0 || ops[1].Content != "brand new" {
		t.Errorf("Unexpected insert: %+v", ops[1])
	}
}

func TestConvertChangeFullReplacementOfEmptyDocument(t *testing.T) {
	svc := collab.NewMemoryService()
	svc.SetDocument("file:///a.txt", "")
	b := newTestBridge(t, svc, nil)

	change := lsp.TextDocumentContentChangeEvent{Text: "seed"}
	ops, err := b.ConvertChange(context.Background(), "file:///a.txt", change, "u")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ops) != 1 || ops[0].Kind != collab.OpInsert || ops[0].Position != 0 {
		t.Errorf("Expected single insert at 0, got %+v", ops)
	}
}

func TestConvertChangeInvalidRange(t *testing.T) {
	svc := collab.NewMemoryService()
	svc.SetDocument("file:///a.txt", "hello")
	b := newTestBridge(t, svc, nil)

	change := lsp.TextDocumentContentChangeEvent{
		Range: &lsp.Range{
			Start: lsp.Position{Line: 0, Character: 4},
			End:   lsp.Position{Line: 0, Character: 1},
		},
		Text: "x",
	}

	_, err := b.ConvertChange(context.Background(), "file:///a.txt", change, "u")
	var te *TranslationError
	if !errors.As(err, &te) {
		t.Fatalf("Expected TranslationError, got %v", err)
	}
	if !errors.Is(err, lsp.ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange cause, got %v", err)
	}
}

package bridge

import (
	"strings"
	"testing"
	"time"

	"github.com/dshills/collabbridge/internal/collab"
	"github.com/dshills/collabbridge/internal/config"
	"github.com/dshills/collabbridge/internal/lsp"
)

func TestDetectConflictsNoDivergence(t *testing.T) {
	det, err := detectConflicts("hello", nil, "hello")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if det.HasConflict {
		t.Error("Expected no conflict for identical views")
	}
}

func TestDetectConflictsCollabOnly(t *testing.T) {
	// Only the collaborative side moved; the views can converge.
	det, err := detectConflicts("hello", nil, "hello world")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if det.HasConflict {
		t.Error("Expected no conflict when only one side changed")
	}
}

func TestDetectConflictsLSPOnly(t *testing.T) {
	pending := []lsp.TextDocumentContentChangeEvent{{
		Range: &lsp.Range{
			Start: lsp.Position{Line: 0, Character: 5},
			End:   lsp.Position{Line: 0, Character: 5},
		},
		Text: "!",
	}}
	det, err := detectConflicts("hello", pending, "hello")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if det.HasConflict {
		t.Error("Expected no conflict when only the editor side changed")
	}
}

func TestDetectConflictsBothAgree(t *testing.T) {
	pending := []lsp.TextDocumentContentChangeEvent{{
		Range: &lsp.Range{
			Start: lsp.Position{Line: 0, Character: 5},
			End:   lsp.Position{Line: 0, Character: 5},
		},
		Text: "!",
	}}
	det, err := detectConflicts("hello", pending, "hello!")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if det.HasConflict {
		t.Error("Expected no conflict when both sides agree")
	}
}

func TestDetectConflictsModifyModify(t *testing.T) {
	pending := []lsp.TextDocumentContentChangeEvent{{
		Range: &lsp.Range{
			Start: lsp.Position{Line: 0, Character: 0},
			End:   lsp.Position{Line: 0, Character: 5},
		},
		Text: "howdy",
	}}
	det, err := detectConflicts("hello\nworld", pending, "goodbye\nworld")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !det.HasConflict {
		t.Fatal("Expected a conflict when both sides edited the same content")
	}
	if det.Severity != SeverityLow {
		t.Errorf("Expected low severity for a 1-line divergence, got %v", det.Severity)
	}
	if len(det.Ranges) != 1 {
		t.Fatalf("Expected 1 range, got %d", len(det.Ranges))
	}
	if det.Ranges[0].Start.Line != 0 || det.Ranges[0].End.Line != 1 {
		t.Errorf("Unexpected conflict range: %+v", det.Ranges[0])
	}
	if len(det.Operations) == 0 {
		t.Error("Expected derived collaborative operations")
	}
	if len(det.Changes) != 1 {
		t.Errorf("Expected pending changes carried through, got %d", len(det.Changes))
	}
}

func TestDetectConflictsSeverity(t *testing.T) {
	lines := func(n int, prefix string) string {
		parts := make([]string, n)
		for i := range parts {
			parts[i] = prefix
		}
		return strings.Join(parts, "\n")
	}

	tests := []struct {
		name  string
		base  string
		colab string
		want  ConflictSeverity
	}{
		{"single line", "a", "b", SeverityLow},
		{"five lines", lines(5, "x"), lines(5, "y"), SeverityModerate},
		{"fifteen lines", lines(15, "x"), lines(15, "y"), SeveritySevere},
	}

	pending := []lsp.TextDocumentContentChangeEvent{{
		Range: &lsp.Range{
			Start: lsp.Position{Line: 0, Character: 0},
			End:   lsp.Position{Line: 0, Character: 1},
		},
		Text: "z",
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, err := detectConflicts(tt.base, pending, tt.colab)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !det.HasConflict {
				t.Fatal("Expected a conflict")
			}
			if det.Severity != tt.want {
				t.Errorf("Expected severity %v, got %v", tt.want, det.Severity)
			}
		})
	}
}

func TestApplyChangesSequential(t *testing.T) {
	changes := []lsp.TextDocumentContentChangeEvent{
		{
			Range: &lsp.Range{
				Start: lsp.Position{Line: 0, Character: 5},
				End:   lsp.Position{Line: 0, Character: 5},
			},
			Text: ",",
		},
		{
			Range: &lsp.Range{
				Start: lsp.Position{Line: 1, Character: 0},
				End:   lsp.Position{Line: 1, Character: 5},
			},
			Text: "there",
		},
	}

	got, err := applyChanges("hello\nworld", changes)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != "hello,\nthere" {
		t.Errorf("Expected %q, got %q", "hello,\nthere", got)
	}
}

func TestApplyChangesFullReplacement(t *testing.T) {
	changes := []lsp.TextDocumentContentChangeEvent{{Text: "replaced"}}
	got, err := applyChanges("old", changes)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != "replaced" {
		t.Errorf("Expected %q, got %q", "replaced", got)
	}
}

func TestApplyChangesInvalidRange(t *testing.T) {
	changes := []lsp.TextDocumentContentChangeEvent{{
		Range: &lsp.Range{
			Start: lsp.Position{Line: 0, Character: 3},
			End:   lsp.Position{Line: 0, Character: 1},
		},
		Text: "x",
	}}
	if _, err := applyChanges("hello", changes); err == nil {
		t.Error("Expected an error for an inverted range")
	}
}

func TestDiffOperations(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		target string
		want   []collab.Operation
	}{
		{
			name:   "identical",
			base:   "same",
			target: "same",
			want:   nil,
		},
		{
			name:   "pure insert",
			base:   "helloworld",
			target: "hello world",
			want: []collab.Operation{
				{Kind: collab.OpInsert, Position: 5, Content: " "},
			},
		},
		{
			name:   "pure delete",
			base:   "hello world",
			target: "helloworld",
			want: []collab.Operation{
				{Kind: collab.OpDelete, Position: 5, Length: 1},
			},
		},
		{
			name:   "replace",
			base:   "hello world",
			target: "hello earth",
			want: []collab.Operation{
				{Kind: collab.OpDelete, Position: 6, Length: 5},
				{Kind: collab.OpInsert, Position: 6, Content: "earth"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := diffOperations(tt.base, tt.target)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d operations, got %d: %+v", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i].Kind != tt.want[i].Kind ||
					got[i].Position != tt.want[i].Position ||
					got[i].Content != tt.want[i].Content ||
					got[i].Length != tt.want[i].Length {
					t.Errorf("Operation %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestDiffOperationsRoundTrip(t *testing.T) {
	base := "the quick brown fox\njumps over\nthe lazy dog"
	target := "the quick red fox\njumps high over\nthe lazy dog"

	got := base
	for _, op := range diffOperations(base, target) {
		switch op.Kind {
		case collab.OpInsert:
			got = got[:op.Position] + op.Content + got[op.Position:]
		case collab.OpDelete:
			got = got[:op.Position] + got[op.Position+op.Length:]
		}
	}
	if got != target {
		t.Errorf("Applying diff did not reproduce target:\nwant %q\ngot  %q", target, got)
	}
}

func TestDiffLineSpan(t *testing.T) {
	tests := []struct {
		name        string
		a, b        string
		first, last int
	}{
		{"first line", "aaa\nbbb\nccc", "zzz\nbbb\nccc", 0, 0},
		{"middle line", "aaa\nbbb\nccc", "aaa\nzzz\nccc", 1, 1},
		{"last line", "aaa\nbbb\nccc", "aaa\nbbb\nzzz", 2, 2},
		{"span", "aaa\nbbb\nccc\nddd", "aaa\nxxx\nyyy\nddd", 1, 2},
		{"added line", "aaa\nccc", "aaa\nbbb\nccc", 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := diffLineSpan(tt.a, tt.b)
			if first != tt.first || last != tt.last {
				t.Errorf("Expected span [%d,%d], got [%d,%d]", tt.first, tt.last, first, last)
			}
		})
	}
}

func TestResolutionBackoff(t *testing.T) {
	cfg := config.Default()
	cfg.Conflict.BackoffBase = 100 * time.Millisecond
	cfg.Conflict.BackoffCap = 1 * time.Second
	b := newTestBridge(t, nil, nil)
	b.cfg = cfg

	tests := []struct {
		attempts uint32
		want     time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{10, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := b.resolutionBackoff(tt.attempts); got != tt.want {
			t.Errorf("Attempts %d: expected %s, got %s", tt.attempts, tt.want, got)
		}
	}
}

func TestConflictSeverityString(t *testing.T) {
	if SeverityLow.String() != "low" || SeverityModerate.String() != "moderate" || SeveritySevere.String() != "severe" {
		t.Error("Unexpected severity names")
	}
}

// Package ai defines the optional AI conflict-resolution capability and its
// OpenAI-backed implementation. The bridge holds a Resolver as a nil-able
// field; when absent, conflicts fall back to the default resolution path.
package ai

import (
	"context"

	"github.com/dshills/collabbridge/internal/collab"
)

// ConflictRegion is a line span the analysis identified as conflicting.
type ConflictRegion struct {
	StartLine int
	EndLine   int
	Reason    string
}

// Analysis is the model's assessment of a conflict.
type Analysis struct {
	// Summary is a short human-readable description of the conflict.
	Summary string

	// Strategy is the recommended resolution approach.
	Strategy string

	// Regions are the conflicting line spans.
	Regions []ConflictRegion

	// Confidence is the model's self-reported confidence in [0,1].
	Confidence float64
}

// Resolver analyzes diverged edits and proposes operations that converge
// both views on a single content.
type Resolver interface {
	// AnalyzeConflicts assesses the conflicting operations against the
	// current document content.
	AnalyzeConflicts(ctx context.Context, ops []collab.Operation, content string) (*Analysis, error)

	// ResolveConflicts produces the operations to apply, given a prior
	// analysis and the current content.
	ResolveConflicts(ctx context.Context, analysis *Analysis, content string) ([]collab.Operation, error)
}

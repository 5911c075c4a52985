package collab

import (
	"context"
	"fmt"
)

// MergePolicy is a hint to the collaboration service for combining
// concurrent edits deterministically.
type MergePolicy int

// Merge policies.
const (
	// MergeLatestWins keeps the edit with the highest logical clock.
	MergeLatestWins MergePolicy = iota

	// MergeFirstWins keeps the edit that arrived first.
	MergeFirstWins

	// MergeManual defers conflicting edits to manual resolution.
	MergeManual
)

// String returns the policy name.
func (p MergePolicy) String() string {
	switch p {
	case MergeLatestWins:
		return "latest-wins"
	case MergeFirstWins:
		return "first-wins"
	case MergeManual:
		return "manual"
	default:
		return fmt.Sprintf("MergePolicy(%d)", int(p))
	}
}

// Service is the collaboration service the bridge reads and writes through.
// It is the source of truth for collaborative content; convergence of
// concurrent edits is its responsibility.
type Service interface {
	// DocumentContent returns the current content of the document.
	DocumentContent(ctx context.Context, uri string) (string, error)

	// ApplyTransform applies a primitive operation to the document under
	// the given merge policy hint.
	ApplyTransform(ctx context.Context, uri string, op Operation, policy MergePolicy, userID string) error
}

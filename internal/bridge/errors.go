package bridge

import (
	"errors"
	"fmt"

	"github.com/dshills/collabbridge/internal/lsp"
)

// Standard errors returned by the bridge.
var (
	// ErrClosed indicates the bridge has been shut down.
	ErrClosed = errors.New("bridge closed")

	// ErrResolutionExhausted indicates a document used up its automatic
	// conflict-resolution attempts and requires a manual ForceSync.
	ErrResolutionExhausted = errors.New("conflict resolution attempts exhausted")

	// ErrResolutionBackoff indicates an automatic resolution attempt was
	// skipped because the backoff window has not elapsed.
	ErrResolutionBackoff = errors.New("conflict resolution in backoff")
)

// CollaborationSyncError wraps a read or write failure against the
// collaborative replica.
type CollaborationSyncError struct {
	URI lsp.DocumentURI
	Op  string // "read" or "apply"
	Err error
}

// Error implements the error interface.
func (e *CollaborationSyncError) Error() string {
	return fmt.Sprintf("collaboration %s %s: %v", e.Op, e.URI, e.Err)
}

// Unwrap returns the underlying error.
func (e *CollaborationSyncError) Unwrap() error { return e.Err }

// LSPCommunicationError wraps a routing or notification failure against the
// LSP layer.
type LSPCommunicationError struct {
	URI lsp.DocumentURI
	Err error
}

// Error implements the error interface.
func (e *LSPCommunicationError) Error() string {
	return fmt.Sprintf("lsp communication %s: %v", e.URI, e.Err)
}

// Unwrap returns the underlying error.
func (e *LSPCommunicationError) Unwrap() error { return e.Err }

// SecurityValidationError indicates a document URI that failed path
// validation. It is returned before any state is touched.
type SecurityValidationError struct {
	URI    lsp.DocumentURI
	Reason string
}

// Error implements the error interface.
func (e *SecurityValidationError) Error() string {
	return fmt.Sprintf("security validation %s: %s", e.URI, e.Reason)
}

// CapacityExceededError indicates the global sync semaphore stayed
// saturated past the operation deadline.
type CapacityExceededError struct {
	Limit int
	Err   error
}

// Error implements the error interface.
func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("sync capacity exceeded (limit %d): %v", e.Limit, e.Err)
}

// Unwrap returns the underlying error.
func (e *CapacityExceededError) Unwrap() error { return e.Err }

// TranslationError indicates an edit that could not be translated between
// representations.
type TranslationError struct {
	URI    lsp.DocumentURI
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *TranslationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("translate %s: %s: %v", e.URI, e.Reason, e.Err)
	}
	return fmt.Sprintf("translate %s: %s", e.URI, e.Reason)
}

// Unwrap returns the underlying error.
func (e *TranslationError) Unwrap() error { return e.Err }

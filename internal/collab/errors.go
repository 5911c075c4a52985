package collab

import "errors"

// Standard errors returned by the collab package.
var (
	// ErrUnknownDocument indicates the service has no document for the URI.
	ErrUnknownDocument = errors.New("unknown document")

	// ErrInvalidOperation indicates a malformed operation.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrStaleOperation indicates an operation rejected by the merge
	// policy because a newer edit already covered it.
	ErrStaleOperation = errors.New("stale operation")
)

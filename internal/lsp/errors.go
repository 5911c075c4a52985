package lsp

import (
	"errors"
	"fmt"
)

// Standard errors returned by the lsp package.
var (
	// ErrPositionOutOfBounds indicates a byte offset past the end of the
	// document, or a position on a line that does not exist.
	ErrPositionOutOfBounds = errors.New("position out of bounds")

	// ErrInvalidRange indicates a range whose end precedes its start.
	ErrInvalidRange = errors.New("range end precedes start")

	// ErrNoServer indicates the router has no server for the document.
	ErrNoServer = errors.New("no server available for document")
)

// RouteError wraps a failure to route a request or notification to a
// language server.
type RouteError struct {
	URI DocumentURI
	Err error
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	return fmt.Sprintf("route %s: %v", e.URI, e.Err)
}

// Unwrap returns the underlying error.
func (e *RouteError) Unwrap() error {
	return e.Err
}

// Package bridge synchronizes two views of the same document: a CRDT-based
// collaborative replica owned by the collaboration service, and the
// version-counted view a Language Server Protocol server holds.
//
// The bridge translates edits between the two representations, detects when
// the views diverge, and drives them back to a single content either through
// a default strategy or an optional AI-assisted resolver. A single
// background consumer applies bridge events in emission order and maintains
// aggregate health, so per-document state transitions are serialized.
//
// Concurrency: a global weighted semaphore bounds concurrent sync operations
// across all documents, and a per-document mutex serializes sync and
// force-sync calls on the same document.
package bridge

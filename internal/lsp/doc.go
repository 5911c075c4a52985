// Package lsp provides the subset of the Language Server Protocol the bridge
// speaks: document positions and ranges, content-change events, diagnostics,
// and the language-router contract used to reach concrete servers.
//
// LSP addresses columns in UTF-16 code units. The Mapper type converts
// between byte offsets in a document and LSP positions, accounting for
// multi-byte UTF-8 sequences and surrogate pairs.
package lsp

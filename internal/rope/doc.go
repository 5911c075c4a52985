// Package rope implements an immutable rope data structure for text storage.
//
// A rope is a balanced binary tree over string leaves. Every node caches the
// byte length and newline count of its subtree, which makes byte/line
// conversions O(log n) in document size. Operations return new Rope values;
// the original is never modified, so a Rope can be shared across goroutines
// and used as a cheap point-in-time snapshot of a document.
package rope

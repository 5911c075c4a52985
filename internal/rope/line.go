package rope

import "strings"

// LineStart returns the byte offset of the start of the given 0-indexed line.
// Lines past the end map to the rope length.
func (r Rope) LineStart(line int) int {
	if r.root == nil || line <= 0 {
		return 0
	}
	if line > r.root.newlines {
		return r.root.length
	}
	return offsetAfterNewline(r.root, line)
}

// offsetAfterNewline returns the byte offset just past the k-th newline
// (1-indexed). Callers guarantee 1 <= k <= n.newlines.
func offsetAfterNewline(n *node, k int) int {
	if n.isLeaf() {
		off := 0
		for i := 0; i < k; i++ {
			idx := strings.IndexByte(n.text[off:], '\n')
			off += idx + 1
		}
		return off
	}
	if k <= n.left.newlines {
		return offsetAfterNewline(n.left, k)
	}
	return n.left.length + offsetAfterNewline(n.right, k-n.left.newlines)
}

// LineForByte returns the 0-indexed line containing the byte offset. The
// offset is clamped to the rope bounds; the end-of-buffer offset maps to the
// last line.
func (r Rope) LineForByte(offset int) int {
	if r.root == nil || offset <= 0 {
		return 0
	}
	if offset > r.root.length {
		offset = r.root.length
	}
	return newlinesBefore(r.root, offset)
}

// newlinesBefore counts newlines in the byte range [0, offset).
func newlinesBefore(n *node, offset int) int {
	if offset <= 0 {
		return 0
	}
	if offset >= n.length {
		return n.newlines
	}
	if n.isLeaf() {
		return strings.Count(n.text[:offset], "\n")
	}
	if offset <= n.left.length {
		return newlinesBefore(n.left, offset)
	}
	return n.left.newlines + newlinesBefore(n.right, offset-n.left.length)
}

// Line returns the content of the 0-indexed line without its trailing
// newline. Out-of-range lines return "".
func (r Rope) Line(line int) string {
	if line < 0 || line >= r.LineCount() {
		return ""
	}
	start := r.LineStart(line)
	end := r.Len()
	if line+1 < r.LineCount() {
		end = r.LineStart(line+1) - 1
	}
	return r.Slice(start, end)
}

// LineLen returns the byte length of the 0-indexed line without its trailing
// newline.
func (r Rope) LineLen(line int) int {
	if line < 0 || line >= r.LineCount() {
		return 0
	}
	start := r.LineStart(line)
	end := r.Len()
	if line+1 < r.LineCount() {
		end = r.LineStart(line+1) - 1
	}
	return end - start
}

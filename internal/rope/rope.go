package rope

import "strings"

// MaxLeafBytes is the maximum payload size of a leaf node. Larger inputs are
// split across multiple leaves so edits only copy a bounded amount of text.
const MaxLeafBytes = 512

// Rope is an immutable text buffer. The zero value is an empty rope.
type Rope struct {
	root *node
}

// node is either a leaf (text set, children nil) or an internal node
// (children set, text empty). length and newlines summarize the subtree.
type node struct {
	left     *node
	right    *node
	text     string
	length   int
	newlines int
	height   int
}

func (n *node) isLeaf() bool { return n.left == nil && n.right == nil }

func newLeaf(s string) *node {
	return &node{
		text:     s,
		length:   len(s),
		newlines: strings.Count(s, "\n"),
		height:   1,
	}
}

func newInternal(left, right *node) *node {
	h := left.height
	if right.height > h {
		h = right.height
	}
	return &node{
		left:     left,
		right:    right,
		length:   left.length + right.length,
		newlines: left.newlines + right.newlines,
		height:   h + 1,
	}
}

// New returns an empty rope.
func New() Rope {
	return Rope{}
}

// FromString builds a rope from s.
func FromString(s string) Rope {
	if len(s) == 0 {
		return Rope{}
	}

	var leaves []*node
	for len(s) > 0 {
		n := MaxLeafBytes
		if n > len(s) {
			n = len(s)
		}
		leaves = append(leaves, newLeaf(s[:n]))
		s = s[n:]
	}
	return Rope{root: buildBalanced(leaves)}
}

// buildBalanced builds a height-balanced tree over leaves, pairing
// neighbors level by level.
func buildBalanced(leaves []*node) *node {
	if len(leaves) == 0 {
		return nil
	}
	nodes := leaves
	for len(nodes) > 1 {
		next := make([]*node, 0, (len(nodes)+1)/2)
		for i := 0; i < len(nodes); i += 2 {
			if i+1 < len(nodes) {
				next = append(next, newInternal(nodes[i], nodes[i+1]))
			} else {
				next = append(next, nodes[i])
			}
		}
		nodes = next
	}
	return nodes[0]
}

// Len returns the total byte length.
func (r Rope) Len() int {
	if r.root == nil {
		return 0
	}
	return r.root.length
}

// IsEmpty returns true if the rope contains no text.
func (r Rope) IsEmpty() bool { return r.Len() == 0 }

// LineCount returns the number of lines (newlines + 1).
func (r Rope) LineCount() int {
	if r.root == nil {
		return 1
	}
	return r.root.newlines + 1
}

// String returns the full text. Use sparingly for large ropes.
func (r Rope) String() string {
	if r.root == nil {
		return ""
	}
	var sb strings.Builder
	sb.Grow(r.root.length)
	appendNode(&sb, r.root)
	return sb.String()
}

func appendNode(sb *strings.Builder, n *node) {
	if n == nil {
		return
	}
	if n.isLeaf() {
		sb.WriteString(n.text)
		return
	}
	appendNode(sb, n.left)
	appendNode(sb, n.right)
}

// Slice returns the text in the byte range [start, end). Offsets are clamped
// to the rope bounds.
func (r Rope) Slice(start, end int) string {
	if r.root == nil {
		return ""
	}
	if start < 0 {
		start = 0
	}
	if end > r.root.length {
		end = r.root.length
	}
	if start >= end {
		return ""
	}
	var sb strings.Builder
	sb.Grow(end - start)
	sliceNode(&sb, r.root, start, end)
	return sb.String()
}

func sliceNode(sb *strings.Builder, n *node, start, end int) {
	if n.isLeaf() {
		sb.WriteString(n.text[start:end])
		return
	}
	if start < n.left.length {
		e := end
		if e > n.left.length {
			e = n.left.length
		}
		sliceNode(sb, n.left, start, e)
	}
	if end > n.left.length {
		s := start - n.left.length
		if s < 0 {
			s = 0
		}
		sliceNode(sb, n.right, s, end-n.left.length)
	}
}

// Insert returns a new rope with text inserted at the byte offset. The offset
// is clamped to the rope bounds.
func (r Rope) Insert(offset int, text string) Rope {
	if len(text) == 0 {
		return r
	}
	if offset < 0 {
		offset = 0
	}
	if offset > r.Len() {
		offset = r.Len()
	}
	left, right := splitNode(r.root, offset)
	mid := FromString(text).root
	return Rope{root: rebalance(concat(concat(left, mid), right))}
}

// Delete returns a new rope with the byte range [start, end) removed.
// Offsets are clamped to the rope bounds.
func (r Rope) Delete(start, end int) Rope {
	if start < 0 {
		start = 0
	}
	if end > r.Len() {
		end = r.Len()
	}
	if start >= end {
		return r
	}
	left, rest := splitNode(r.root, start)
	_, right := splitNode(rest, end-start)
	return Rope{root: rebalance(concat(left, right))}
}

// Replace returns a new rope with the byte range [start, end) replaced by text.
func (r Rope) Replace(start, end int, text string) Rope {
	return r.Delete(start, end).Insert(start, text)
}

// splitNode splits n at the byte offset, returning the left and right halves.
func splitNode(n *node, offset int) (*node, *node) {
	if n == nil {
		return nil, nil
	}
	if offset <= 0 {
		return nil, n
	}
	if offset >= n.length {
		return n, nil
	}
	if n.isLeaf() {
		return newLeaf(n.text[:offset]), newLeaf(n.text[offset:])
	}
	if offset < n.left.length {
		l, r := splitNode(n.left, offset)
		return l, concat(r, n.right)
	}
	l, r := splitNode(n.right, offset-n.left.length)
	return concat(n.left, l), r
}

// concat joins two subtrees, merging adjacent small leaves to keep the
// leaf count bounded.
func concat(left, right *node) *node {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	if left.isLeaf() && right.isLeaf() && left.length+right.length <= MaxLeafBytes {
		return newLeaf(left.text + right.text)
	}
	return newInternal(left, right)
}

// rebalance rebuilds the tree from its leaves when repeated splits and
// concats have skewed it past twice the balanced height.
func rebalance(n *node) *node {
	if n == nil {
		return nil
	}
	leafCap := n.length/MaxLeafBytes + 2
	limit := 2
	for leafCap > 1 {
		leafCap >>= 1
		limit++
	}
	if n.height <= 2*limit {
		return n
	}
	var leaves []*node
	collectLeaves(n, &leaves)
	return buildBalanced(leaves)
}

func collectLeaves(n *node, out *[]*node) {
	if n == nil {
		return
	}
	if n.isLeaf() {
		*out = append(*out, n)
		return
	}
	collectLeaves(n.left, out)
	collectLeaves(n.right, out)
}

package doctree

import "strings"

// HeaderNode is one heading in a HeaderTree. Parent and Children are indices into
// HeaderTree.Nodes; Parent is -1 for root headings.
type HeaderNode struct {
	Level    int
	Text     string
	Line     int
	End      int
	Parent   int
	Children []int
}

// HeaderTree is an arena of heading nodes built from the flat header list.
// Nodes are stored in document order, so Nodes[i] corresponds to the i-th header.
type HeaderTree struct {
	Nodes []HeaderNode
	Roots []int
}

// BuildHeaderTree nests headings by level using a stack: entries whose level is
// greater than or equal to the current heading are popped, and the heading is
// attached to the remaining top (or becomes a root).
func BuildHeaderTree(headers []Header) *HeaderTree {
	t := &HeaderTree{Nodes: make([]HeaderNode, 0, len(headers))}
	var stack []int

	for _, h := range headers {
		idx := len(t.Nodes)
		t.Nodes = append(t.Nodes, HeaderNode{
			Level:  h.Level,
			Text:   h.Text,
			Line:   h.Line,
			End:    h.End,
			Parent: -1,
		})

		for len(stack) > 0 && t.Nodes[stack[len(stack)-1]].Level >= h.Level {
			stack = stack[:len(stack)-1]
		}

		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			t.Nodes[idx].Parent = parent
			t.Nodes[parent].Children = append(t.Nodes[parent].Children, idx)
		} else {
			t.Roots = append(t.Roots, idx)
		}
		stack = append(stack, idx)
	}

	return t
}

// Path returns heading texts from the root down to node i.
func (t *HeaderTree) Path(i int) []string {
	if i < 0 || i >= len(t.Nodes) {
		return nil
	}
	var rev []string
	for n := i; n >= 0; n = t.Nodes[n].Parent {
		rev = append(rev, t.Nodes[n].Text)
	}
	out := make([]string, len(rev))
	for j := range rev {
		out[j] = rev[len(rev)-1-j]
	}
	return out
}

// PathString returns the slash-joined path for node i, with a leading slash.
func (t *HeaderTree) PathString(i int) string {
	p := t.Path(i)
	if len(p) == 0 {
		return ""
	}
	return "/" + strings.Join(p, "/")
}

// Depth returns the number of levels in the tree (0 when empty, 1 for flat headings).
func (t *HeaderTree) Depth() int {
	max := 0
	for i := range t.Nodes {
		d := 1
		for n := t.Nodes[i].Parent; n >= 0; n = t.Nodes[n].Parent {
			d++
		}
		if d > max {
			max = d
		}
	}
	return max
}

// SectionEnd returns the last line owned by node i: the line before the next
// heading at the same or a shallower level, or lastLine.
func (t *HeaderTree) SectionEnd(i, lastLine int) int {
	for j := i + 1; j < len(t.Nodes); j++ {
		if t.Nodes[j].Level <= t.Nodes[i].Level {
			return t.Nodes[j].Line - 1
		}
	}
	return lastLine
}

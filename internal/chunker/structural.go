package chunker

import (
	"strings"

	"github.com/dgallion1/mdchunk/internal/doctree"
)

// structural splits along the header hierarchy. A section that fits becomes
// one chunk; an oversized section is split along its subsections, and a leaf
// section is packed with its code, tables and lists kept whole.
func (r *run) structural() ([]doctree.Chunk, error) {
	doc := r.doc
	var chunks []doctree.Chunk

	first := doc.LineCount() + 1
	if len(doc.Headers) > 0 {
		first = doc.Headers[0].Line
	}
	if first > 1 {
		pre := r.pack(r.segment(doc, 1, first-1, segmentOptions{}))
		for i := range pre {
			pre[i].Set(doctree.MetaIsPreamble, true)
		}
		chunks = append(chunks, pre...)
	}

	for _, root := range r.tree.Roots {
		chunks = append(chunks, r.section(root, nil)...)
	}
	return mergeSmall(chunks, r.cfg.MinChunkSize, r.max, true), nil
}

// section chunks header node i. carry holds bound header blocks from an
// ancestor whose own content was only its heading.
func (r *run) section(i int, carry []block) []doctree.Chunk {
	doc := r.doc
	node := r.tree.Nodes[i]
	end := trimBlankTail(doc, node.Line, r.tree.SectionEnd(i, doc.LineCount()))

	full := append(append([]block(nil), carry...), r.segment(doc, node.Line, end, segmentOptions{})...)
	if len(node.Children) == 0 || joinedSize(full, nil) <= r.max {
		return r.tagSection(r.pack(full), i)
	}

	ownEnd := trimBlankTail(doc, node.Line, r.tree.Nodes[node.Children[0]].Line-1)
	own := append(append([]block(nil), carry...), r.segment(doc, node.Line, ownEnd, segmentOptions{})...)

	var out []doctree.Chunk
	next := []block(nil)
	if onlyBound(own) {
		next = own
	} else {
		out = r.tagSection(r.pack(own), i)
	}
	for ci, child := range node.Children {
		if ci > 0 {
			next = nil
		}
		out = append(out, r.section(child, next)...)
	}
	return out
}

func (r *run) tagSection(chunks []doctree.Chunk, i int) []doctree.Chunk {
	node := r.tree.Nodes[i]
	path := r.tree.PathString(i)
	for k := range chunks {
		chunks[k].Set(doctree.MetaHeaderLevel, node.Level)
		chunks[k].Set(doctree.MetaHeaderText, node.Text)
		chunks[k].Set(doctree.MetaHeaderPath, path)
	}
	return chunks
}

func onlyBound(bs []block) bool {
	for _, b := range bs {
		if !b.bindNext {
			return false
		}
	}
	return true
}

// trimBlankTail moves end back over blank lines, not past start.
func trimBlankTail(doc *doctree.Document, start, end int) int {
	for end > start && strings.TrimSpace(doc.Lines[end-1]) == "" {
		end--
	}
	return end
}

// mergeSmall merges adjacent chunks when either is below minSize and the
// result fits within maxSize. With samePath set both chunks must share a
// header path. Oversize chunks and table row-group parts are never merged.
func mergeSmall(chunks []doctree.Chunk, minSize, maxSize int, samePath bool) []doctree.Chunk {
	if minSize <= 0 || len(chunks) < 2 {
		return chunks
	}
	out := make([]doctree.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if n := len(out); n > 0 {
			prev := &out[n-1]
			if mergeable(prev, &c, minSize, maxSize, samePath) {
				mergeChunk(prev, &c)
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func mergeable(a, b *doctree.Chunk, minSize, maxSize int, samePath bool) bool {
	if a.IsOversize() || b.IsOversize() {
		return false
	}
	if _, split := a.Metadata[doctree.MetaSplitPart]; split {
		return false
	}
	if _, split := b.Metadata[doctree.MetaSplitPart]; split {
		return false
	}
	if samePath && a.String(doctree.MetaHeaderPath) != b.String(doctree.MetaHeaderPath) {
		return false
	}
	as, bs := runeLen(a.Content), runeLen(b.Content)
	if as >= minSize && bs >= minSize {
		return false
	}
	return as+2+bs <= maxSize
}

// mergeChunk appends b to a. Section and preamble tags of a are kept.
func mergeChunk(a, b *doctree.Chunk) {
	a.Content += "\n\n" + b.Content
	a.EndLine = max(a.EndLine, b.EndLine)
	keep := map[string]bool{
		doctree.MetaHeaderLevel: true,
		doctree.MetaHeaderText:  true,
		doctree.MetaHeaderPath:  true,
		doctree.MetaIsPreamble:  true,
	}
	rest := make(map[string]any, len(b.Metadata))
	for k, v := range b.Metadata {
		if keep[k] {
			if _, ok := a.Metadata[k]; ok {
				continue
			}
		}
		rest[k] = v
	}
	mergeMeta(a, rest)
	if a.Bool(doctree.MetaIsPreamble) && !b.Bool(doctree.MetaIsPreamble) {
		delete(a.Metadata, doctree.MetaIsPreamble)
	}
}

package chunker

import (
	"fmt"

	"github.com/dgallion1/mdchunk/internal/doctree"
	"github.com/dgallion1/mdchunk/internal/parser"
)

// mixed orders every element, fills the gaps with text, and packs one header
// section at a time before merging undersized neighbours.
func (r *run) mixed() ([]doctree.Chunk, error) {
	doc := r.doc
	tree := r.tree

	detected := parser.DetectDocument(doc.Text)
	problems := parser.Inconsistencies(doc)
	switch {
	case len(problems) > 0:
		r.warn(fmt.Sprintf("parsing degradation: %s; using pattern detection", problems[0]))
		doc = detected
	case len(doc.Elements()) == 0 && len(detected.Elements()) > 0:
		r.warn("parsing degradation: parser reported no elements; using pattern detection")
		doc = detected
	}
	if doc != r.doc {
		tree = doctree.BuildHeaderTree(doc.Headers)
	}

	var chunks []doctree.Chunk
	start := 1
	header := -1
	emit := func(end int) {
		if end < start {
			return
		}
		cs := r.pack(r.segment(doc, start, end, segmentOptions{}))
		for k := range cs {
			if header < 0 {
				cs[k].Set(doctree.MetaIsPreamble, true)
				continue
			}
			h := tree.Nodes[header]
			cs[k].Set(doctree.MetaHeaderLevel, h.Level)
			cs[k].Set(doctree.MetaHeaderText, h.Text)
			cs[k].Set(doctree.MetaHeaderPath, tree.PathString(header))
		}
		chunks = append(chunks, cs...)
	}
	for i, h := range doc.Headers {
		emit(h.Line - 1)
		start, header = h.Line, i
	}
	emit(doc.LineCount())

	return mergeSmall(chunks, r.cfg.MinChunkSize, r.max, false), nil
}

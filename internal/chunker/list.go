package chunker

import (
	"github.com/dgallion1/mdchunk/internal/doctree"
)

// list packs the document keeping every top-level list item together with its
// descendants. A paragraph directly above a list is bound to it when both fit
// in one chunk.
func (r *run) list() ([]doctree.Chunk, error) {
	blocks := r.segment(r.doc, 1, r.doc.LineCount(), segmentOptions{})
	for i := 1; i < len(blocks); i++ {
		if blocks[i].kind != blockList {
			continue
		}
		intro := &blocks[i-1]
		if intro.kind == blockText && blocks[i].start-intro.end <= 2 && joinedSize(blocks[i-1:i+1], nil) <= r.max {
			intro.bindNext = true
		}
	}
	return r.pack(blocks), nil
}

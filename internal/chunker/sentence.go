package chunker

import (
	"strings"

	"github.com/dgallion1/mdchunk/internal/doctree"
	"github.com/dgallion1/mdchunk/internal/parser"
)

// sentences splits prose into sentences and packs them, keeping headings,
// fenced code, lists and tables whole. Elements come from pattern detection
// so the strategy does not depend on the structural parser.
func (r *run) sentences() ([]doctree.Chunk, error) {
	doc := parser.DetectDocument(r.doc.Text)
	p := r.packer()
	p.softLimit = r.cfg.TargetChunkSize
	chunks := p.pack(r.segment(doc, 1, doc.LineCount(), segmentOptions{sentences: true}))
	for i := range chunks {
		chunks[i].Set(doctree.MetaSentenceCount, len(splitSentences(chunks[i].Content)))
	}
	return chunks, nil
}

// wholeText is the last resort: the whole document as a single chunk.
func (r *run) wholeText() []doctree.Chunk {
	doc := r.doc
	start, end := 1, doc.LineCount()
	for start < end && strings.TrimSpace(doc.Lines[start-1]) == "" {
		start++
	}
	end = trimBlankTail(doc, start, end)

	c := doctree.Chunk{Content: doc.Slice(start, end), StartLine: start, EndLine: end}
	if runeLen(c.Content) > r.max {
		c.Set(doctree.MetaAllowOversize, true)
		c.Set(doctree.MetaOversizeReason, doctree.ReasonIndivisible)
	}
	return []doctree.Chunk{c}
}

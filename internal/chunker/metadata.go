package chunker

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dgallion1/mdchunk/internal/doctree"
	"github.com/dgallion1/mdchunk/internal/parser"
)

var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("mdchunk:chunk"))

// ChunkID returns a name-based ID, stable for identical chunk position,
// strategy and content.
func ChunkID(strategy string, index int, c *doctree.Chunk) string {
	name := fmt.Sprintf("%s:%d:%d:%d:%s", strategy, index, c.StartLine, c.EndLine, c.Content)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// enrich attaches the common metadata every chunk carries.
func (r *run) enrich(chunks []doctree.Chunk, strategy Strategy) {
	firstHeader := 0
	if len(r.doc.Headers) > 0 {
		firstHeader = r.doc.Headers[0].Line
	}

	for i := range chunks {
		c := &chunks[i]
		c.Set(doctree.MetaChunkIndex, i)
		c.Set(doctree.MetaTotalChunks, len(chunks))
		c.Set(doctree.MetaStrategy, strategy.String())
		c.Set(doctree.MetaContentType, r.doc.Profile.ContentType)
		c.Set(doctree.MetaSize, runeLen(c.Content))
		c.Set(doctree.MetaLineCount, c.EndLine-c.StartLine+1)
		c.Set(doctree.MetaWordCount, len(strings.Fields(c.Content)))
		c.Set(doctree.MetaTokenEstimate, EstimateTokens(c.Content))

		hasCode, hasTable, hasList := scanContent(c.Content)
		c.Set(doctree.MetaHasCode, hasCode)
		c.Set(doctree.MetaHasTable, hasTable)
		c.Set(doctree.MetaHasList, hasList)

		if _, ok := c.Metadata[doctree.MetaHeaderPath]; !ok {
			path := ""
			if h := r.doc.HeaderAt(c.StartLine); h >= 0 {
				path = r.tree.PathString(h)
			}
			c.Set(doctree.MetaHeaderPath, path)
		}
		if _, ok := c.Metadata[doctree.MetaIsPreamble]; !ok {
			c.Set(doctree.MetaIsPreamble, firstHeader > 0 && c.StartLine < firstHeader)
		}
		if !c.IsOversize() {
			c.Set(doctree.MetaAllowOversize, false)
		}

		c.Set(doctree.MetaChunkID, ChunkID(strategy.String(), i, c))
	}
}

// scanContent reports whether content holds a code fence, a table separator
// row or a list item outside code.
func scanContent(content string) (hasCode, hasTable, hasList bool) {
	inFence := false
	for _, line := range strings.Split(content, "\n") {
		if parser.IsFence(line) {
			hasCode = true
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if parser.IsTableSeparator(line) {
			hasTable = true
		}
		if parser.IsListItem(line) {
			hasList = true
		}
	}
	return hasCode, hasTable, hasList
}

package chunker

import (
	"strings"
	"unicode"

	"github.com/dgallion1/mdchunk/internal/doctree"
	"github.com/dgallion1/mdchunk/internal/parser"
)

const (
	// maxOverlapShare caps the overlap as a share of the resulting chunk.
	maxOverlapShare = 0.45
	overlapSep      = "\n\n"
)

// applyOverlap prepends a tail of each chunk's predecessor to it. The tail
// starts at a sentence or word boundary, never leaves a code fence open, is
// at most maxOverlapShare of the resulting chunk and keeps the chunk within
// maxSize. Oversize chunks and table row-group parts get no overlap.
func applyOverlap(chunks []doctree.Chunk, cfg *Config, maxSize int) {
	if len(chunks) < 2 {
		return
	}
	originals := make([]string, len(chunks))
	for i := range chunks {
		originals[i] = chunks[i].Content
	}

	for i := 1; i < len(chunks); i++ {
		c := &chunks[i]
		if c.IsOversize() || chunks[i-1].IsOversize() {
			continue
		}
		if _, split := c.Metadata[doctree.MetaSplitPart]; split {
			continue
		}

		prev := originals[i-1]
		want := cfg.OverlapSize
		if want <= 0 {
			want = int(cfg.OverlapPercentage * float64(runeLen(prev)))
		}
		size := runeLen(c.Content)
		limit := min(
			want,
			int(maxOverlapShare*float64(size)/(1-maxOverlapShare))-len(overlapSep),
			maxSize-size-len(overlapSep),
		)
		if limit <= 0 {
			continue
		}

		tail := overlapTail(prev, limit)
		if tail == "" {
			continue
		}
		c.Content = tail + overlapSep + c.Content
		c.Set(doctree.MetaHasOverlap, true)
		c.Set(doctree.MetaOverlapChars, runeLen(tail)+len(overlapSep))
		c.Set(doctree.MetaOverlapSource, i-1)
	}
}

// overlapTail returns at most limit characters from the end of text, trimmed
// to start at a sentence boundary (or a word boundary when no sentence starts
// inside the window) and to contain no unbalanced code fence.
func overlapTail(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) == 0 {
		return ""
	}
	cut := max(0, len(runes)-limit)
	tail := string(runes[cut:])

	if cut > 0 {
		if loc := sentenceEndRe.FindStringIndex(tail); loc != nil && loc[1] < len(tail) {
			tail = tail[loc[1]:]
		} else if !unicode.IsSpace(runes[cut-1]) {
			i := strings.IndexFunc(tail, unicode.IsSpace)
			if i < 0 {
				return ""
			}
			tail = tail[i:]
		}
	}
	tail = balanceFences(strings.TrimSpace(tail))
	return strings.TrimSpace(tail)
}

// balanceFences drops everything up to and including the last fence line when
// the text holds an odd number of fence lines.
func balanceFences(text string) string {
	lines := strings.Split(text, "\n")
	count, last := 0, -1
	for i, l := range lines {
		if parser.IsFence(l) {
			count++
			last = i
		}
	}
	if count%2 == 0 {
		return text
	}
	return strings.Join(lines[last+1:], "\n")
}

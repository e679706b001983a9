package chunker

import (
	"fmt"
	"strings"

	"github.com/dgallion1/mdchunk/internal/doctree"
)

// packer arranges an ordered sequence of blocks into chunks no larger than
// limit. Splittable text is merged greedily and divided at paragraph, line,
// sentence and word boundaries when needed; atomic blocks are only divided
// through their own split function. An atomic block that cannot be divided
// becomes its own oversize chunk.
type packer struct {
	limit int
	// softLimit, when positive, closes a chunk at the next paragraph break
	// once the chunk has reached it.
	softLimit     int
	allowOversize bool
	warn          func(string)
}

func (p *packer) pack(blocks []block) []doctree.Chunk {
	var out []doctree.Chunk
	var cur []block
	queue := append([]block(nil), blocks...)

	emit := func(bs []block) {
		if len(bs) > 0 {
			out = append(out, p.chunkOf(bs))
		}
	}
	// flush emits cur except trailing bound blocks, which carry over.
	flush := func() {
		k := len(cur)
		for k > 0 && cur[k-1].bindNext {
			k--
		}
		if k == 0 {
			return
		}
		emit(cur[:k])
		cur = append([]block(nil), cur[k:]...)
	}

	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]

		if b.size() > p.limit {
			if pieces := p.splitOversized(b); len(pieces) > 1 {
				queue = append(pieces, queue...)
				continue
			}
			flush()
			emit(append(cur, b))
			cur = nil
			continue
		}

		if b.isolate {
			flush()
			if len(cur) > 0 && joinedSize(cur, &b) <= p.limit {
				emit(append(cur, b))
			} else {
				emit(cur)
				emit([]block{b})
			}
			cur = nil
			continue
		}

		if len(cur) == 0 {
			cur = append(cur, b)
			continue
		}

		last := cur[len(cur)-1]
		if p.softLimit > 0 && !last.bindNext && b.start > last.end+1 && joinedSize(cur, nil) >= p.softLimit {
			emit(cur)
			cur = []block{b}
			continue
		}

		if joinedSize(cur, &b) <= p.limit {
			cur = append(cur, b)
			continue
		}

		flush()
		if len(cur) == 0 {
			cur = []block{b}
			continue
		}

		// Only bound blocks remain; keep them with b if at all possible.
		if joinedSize(cur, &b) <= p.limit {
			cur = append(cur, b)
			continue
		}
		if !b.atomic {
			room := p.limit - joinedSize(cur, nil) - 2
			if room > 0 && room >= p.limit/5 {
				pieces := textBlocks(b, room)
				cur = append(cur, pieces[0])
				queue = append(pieces[1:], queue...)
				continue
			}
		}
		emit(cur)
		cur = []block{b}
	}
	emit(cur)
	return out
}

// splitOversized divides a block larger than the limit. A nil or single-element
// result means the block cannot be divided.
func (p *packer) splitOversized(b block) []block {
	if !b.atomic {
		return textBlocks(b, p.limit)
	}
	if b.split != nil {
		if parts := b.split(p.limit); len(parts) > 1 {
			return parts
		}
	}
	if !p.allowOversize {
		if p.warn != nil {
			p.warn(fmt.Sprintf("lines %d-%d exceed %d characters and were split despite %s", b.start, b.end, p.limit, b.reason))
		}
		return textBlocks(b, p.limit)
	}
	return nil
}

// textBlocks splits b at text boundaries into blocks no longer than limit.
func textBlocks(b block, limit int) []block {
	spans := splitSpan(span{text: b.content, start: b.start, end: b.end}, limit)
	out := make([]block, 0, len(spans))
	for i, s := range spans {
		glued := s.glued
		if i == 0 {
			glued = b.glued
		}
		out = append(out, block{kind: blockText, content: s.text, start: s.start, end: s.end, glued: glued})
	}
	return out
}

// separator returns the text placed between two consecutive blocks: nothing
// inside a cut word, a blank line across a paragraph gap, a newline between
// adjacent lines and a space between pieces of the same line.
func separator(a, b *block) string {
	switch {
	case b.glued:
		return ""
	case b.start > a.end+1:
		return "\n\n"
	case b.start == a.end+1:
		return "\n"
	}
	return " "
}

// joinedSize returns the size of cur joined, with next appended when non-nil.
func joinedSize(cur []block, next *block) int {
	n := 0
	for i := range cur {
		if i > 0 {
			n += len(separator(&cur[i-1], &cur[i]))
		}
		n += cur[i].size()
	}
	if next != nil {
		if len(cur) > 0 {
			n += len(separator(&cur[len(cur)-1], next))
		}
		n += next.size()
	}
	return n
}

func (p *packer) chunkOf(bs []block) doctree.Chunk {
	var sb strings.Builder
	c := doctree.Chunk{StartLine: bs[0].start, EndLine: bs[0].end}
	var largest *block
	for i := range bs {
		b := &bs[i]
		if i > 0 {
			sb.WriteString(separator(&bs[i-1], b))
		}
		sb.WriteString(b.content)
		c.StartLine = min(c.StartLine, b.start)
		c.EndLine = max(c.EndLine, b.end)
		mergeMeta(&c, b.meta)
		if b.atomic && b.kind != blockHeader && (largest == nil || b.size() > largest.size()) {
			largest = b
		}
	}
	c.Content = sb.String()

	if runeLen(c.Content) > p.limit {
		reason := doctree.ReasonIndivisible
		if largest != nil && largest.reason != "" {
			reason = largest.reason
		}
		c.Set(doctree.MetaAllowOversize, true)
		c.Set(doctree.MetaOversizeReason, reason)
	}
	return c
}

// mergeMeta folds metadata into the chunk. Counts add up, depths take the
// maximum, flags are OR-ed and everything else keeps the latest value.
func mergeMeta(c *doctree.Chunk, meta map[string]any) {
	for k, v := range meta {
		switch k {
		case doctree.MetaTableCount, doctree.MetaTableRows, doctree.MetaListItemCount, doctree.MetaCodeBlockCount:
			n, _ := v.(int)
			c.Set(k, c.Int(k)+n)
		case doctree.MetaMaxListDepth:
			n, _ := v.(int)
			c.Set(k, max(c.Int(k), n))
		case doctree.MetaHasCheckboxes:
			on, _ := v.(bool)
			c.Set(k, c.Bool(k) || on)
		default:
			c.Set(k, v)
		}
	}
}

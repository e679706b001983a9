package chunker

import (
	"strings"

	"github.com/dgallion1/mdchunk/internal/doctree"
)

type blockKind int

const (
	blockText blockKind = iota
	blockHeader
	blockCode
	blockTable
	blockList
)

// block is the unit the packer arranges into chunks.
type block struct {
	kind       blockKind
	content    string
	start, end int // source lines, 1-indexed inclusive

	// atomic blocks are never split at text boundaries. split, when set,
	// divides an oversized atomic block at safe boundaries (table row groups,
	// top-level list items).
	atomic bool
	reason string
	split  func(limit int) []block

	// bindNext keeps the block in the same chunk as the block that follows.
	bindNext bool
	// isolate gives the block a chunk of its own, apart from bound blocks.
	isolate bool
	// glued blocks continue the previous block inside a word.
	glued bool

	meta map[string]any
}

func (b *block) size() int {
	return runeLen(b.content)
}

// segmentOptions tune how a line range is turned into blocks.
type segmentOptions struct {
	isolateTables bool
	groupTables   *TableGroupingConfig
	// sentences pre-splits prose paragraphs into sentence blocks.
	sentences bool
}

// segment converts lines from..to of doc into blocks. Elements become atomic
// blocks; the text between them becomes one splittable block per paragraph.
func (r *run) segment(doc *doctree.Document, from, to int, opts segmentOptions) []block {
	var blocks []block
	cursor := from

	text := func(upto int) {
		for _, p := range paragraphs(doc.Lines, cursor, upto) {
			if opts.sentences {
				blocks = append(blocks, sentenceBlocks(p)...)
				continue
			}
			blocks = append(blocks, block{kind: blockText, content: p.text, start: p.start, end: p.end})
		}
	}

	els := elementsIn(doc, from, to)
	if opts.groupTables != nil && opts.groupTables.Enabled {
		els = r.groupTables(doc, els, *opts.groupTables)
	}

	for _, el := range els {
		if el.StartLine < cursor {
			continue
		}
		text(el.StartLine - 1)
		blocks = append(blocks, r.elementBlock(doc, el, opts))
		cursor = el.EndLine + 1
	}
	text(to)
	return blocks
}

// kindTableGroup is a synthetic element kind for grouped tables.
const kindTableGroup doctree.ElementKind = 100

// groupedElement extends an element with the tables it groups.
type groupedElement struct {
	doctree.Element
	tables []int
}

func elementsIn(doc *doctree.Document, from, to int) []groupedElement {
	var out []groupedElement
	for _, el := range doc.Elements() {
		if el.StartLine >= from && el.EndLine <= to {
			out = append(out, groupedElement{Element: el})
		}
	}
	return out
}

func (r *run) elementBlock(doc *doctree.Document, el groupedElement, opts segmentOptions) block {
	b := block{
		start:   el.StartLine,
		end:     el.EndLine,
		content: doc.Slice(el.StartLine, el.EndLine),
		atomic:  true,
		meta:    map[string]any{},
	}

	switch el.Kind {
	case doctree.KindHeader:
		b.kind = blockHeader
		b.reason = doctree.ReasonSectionHeader
		b.bindNext = true
		b.meta = nil
	case doctree.KindCode:
		cb := doc.CodeBlocks[el.Index]
		b.kind = blockCode
		b.reason = doctree.ReasonCodeBlock
		b.meta[doctree.MetaCodeBlockCount] = 1
		if cb.Language != "" {
			b.meta[doctree.MetaLanguage] = cb.Language
		}
	case doctree.KindTable:
		t := doc.Tables[el.Index]
		b.kind = blockTable
		b.reason = doctree.ReasonTableIntegrity
		b.isolate = opts.isolateTables
		b.meta[doctree.MetaTableRows] = len(t.Rows)
		b.meta[doctree.MetaTableCount] = 1
		b.split = func(limit int) []block { return tableRowGroups(t, limit, opts.isolateTables) }
	case doctree.KindList:
		l := doc.Lists[el.Index]
		b.kind = blockList
		b.reason = doctree.ReasonListHierarchy
		b.meta = listMeta(&l)
		b.split = func(limit int) []block { return listGroups(doc, &l) }
	case kindTableGroup:
		b.kind = blockTable
		b.reason = doctree.ReasonTableIntegrity
		b.isolate = opts.isolateTables
		b.content = normalizeBlankRuns(b.content)
		rows := 0
		for _, ti := range el.tables {
			rows += len(doc.Tables[ti].Rows)
		}
		b.meta[doctree.MetaIsTableGroup] = true
		b.meta[doctree.MetaTableGroupCount] = len(el.tables)
		b.meta[doctree.MetaTableCount] = len(el.tables)
		b.meta[doctree.MetaTableRows] = rows
	}
	return b
}

func sentenceBlocks(p span) []block {
	var out []block
	for _, sp := range lineSpans(p) {
		for _, s := range splitSentences(sp.text) {
			out = append(out, block{kind: blockText, content: s, start: sp.start, end: sp.end})
		}
	}
	return out
}

// normalizeBlankRuns collapses runs of blank lines to a single blank line.
func normalizeBlankRuns(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0:0]
	blank := false
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

func listMeta(l *doctree.ListBlock) map[string]any {
	checkboxes := false
	for _, it := range l.Items {
		if it.Checked != nil {
			checkboxes = true
			break
		}
	}
	listType := "unordered"
	if l.Ordered {
		listType = "ordered"
	}
	return map[string]any{
		doctree.MetaListItemCount: len(l.Items),
		doctree.MetaMaxListDepth:  l.MaxDepth() + 1,
		doctree.MetaHasCheckboxes: checkboxes,
		doctree.MetaListType:      listType,
	}
}

// listGroups splits a list at top-level item boundaries. Each group holds a
// top-level item with all of its descendants and stays atomic.
func listGroups(doc *doctree.Document, l *doctree.ListBlock) []block {
	groups := l.TopLevelGroups()
	out := make([]block, 0, len(groups))
	for gi, g := range groups {
		start := l.Items[g[0]].StartLine
		if gi == 0 {
			start = l.StartLine
		}
		end := l.EndLine
		if gi+1 < len(groups) {
			end = l.Items[groups[gi+1][0]].StartLine - 1
			for end > start && strings.TrimSpace(doc.Lines[end-1]) == "" {
				end--
			}
		}
		sub := doctree.ListBlock{StartLine: start, EndLine: end, Ordered: l.Ordered, Items: l.Items[g[0]:g[1]]}
		out = append(out, block{
			kind:    blockList,
			content: doc.Slice(start, end),
			start:   start,
			end:     end,
			atomic:  true,
			reason:  doctree.ReasonListHierarchy,
			meta:    listMeta(&sub),
		})
	}
	return out
}

// tableRowGroups splits a table into row groups that each repeat the header
// and separator rows. Rows are never split.
func tableRowGroups(t doctree.Table, limit int, isolate bool) []block {
	if len(t.Rows) == 0 {
		return nil
	}
	overhead := runeLen(t.Header) + 1 + runeLen(t.Separator)
	total := 0
	for _, row := range t.Rows {
		total += runeLen(row) + 1
	}
	avg := max(1, total/len(t.Rows))
	perGroup := max(1, (limit-overhead)/avg)

	type group struct{ from, to int } // row indices [from, to)
	var groups []group
	from, size := 0, overhead
	for i, row := range t.Rows {
		rs := runeLen(row) + 1
		if i > from && (i-from >= perGroup || size+rs > limit) {
			groups = append(groups, group{from, i})
			from, size = i, overhead
		}
		size += rs
	}
	groups = append(groups, group{from, len(t.Rows)})

	rowLine := func(i int) int { return t.StartLine + 2 + i }
	out := make([]block, 0, len(groups))
	for gi, g := range groups {
		var sb strings.Builder
		sb.WriteString(t.Header)
		sb.WriteString("\n")
		sb.WriteString(t.Separator)
		for _, row := range t.Rows[g.from:g.to] {
			sb.WriteString("\n")
			sb.WriteString(row)
		}
		start := rowLine(g.from)
		if gi == 0 {
			start = t.StartLine
		}
		reason := doctree.ReasonTableIntegrity
		if g.to-g.from == 1 {
			reason = doctree.ReasonWideTableRow
		}
		out = append(out, block{
			kind:    blockTable,
			content: sb.String(),
			start:   start,
			end:     rowLine(g.to - 1),
			atomic:  true,
			isolate: isolate,
			reason:  reason,
			meta: map[string]any{
				doctree.MetaSplitPart:  gi + 1,
				doctree.MetaTotalParts: len(groups),
				doctree.MetaTableRows:  g.to - g.from,
				doctree.MetaTableCount: 1,
			},
		})
	}
	return out
}

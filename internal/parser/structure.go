package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgallion1/mdchunk/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table, extension.TaskList))

// ParseDocument parses Markdown text into a line-indexed Document. Only the
// top-level blocks of the syntax tree become elements; nested structure is
// kept inside the enclosing element. If the parser fails or its output does
// not line up with the text, pattern detection takes over and a warning is
// recorded on the document.
func ParseDocument(src string) (doc *doctree.Document) {
	doc = doctree.NewDocument(src)

	defer func() {
		if r := recover(); r != nil {
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("markdown parser failed (%v); using pattern detection", r))
			DetectElements(doc)
		}
	}()

	b := &builder{doc: doc, src: []byte(doc.Text)}
	b.index()
	root := md.Parser().Parse(text.NewReader(b.src))
	b.walk(root)

	if problems := Inconsistencies(doc); len(problems) > 0 {
		doc.Warnings = append(doc.Warnings, fmt.Sprintf("structure inconsistent (%s); using pattern detection", problems[0]))
		DetectElements(doc)
	}
	return doc
}

type builder struct {
	doc        *doctree.Document
	src        []byte
	lineStarts []int
}

func (b *builder) index() {
	b.lineStarts = []int{0}
	for i, c := range b.src {
		if c == '\n' {
			b.lineStarts = append(b.lineStarts, i+1)
		}
	}
}

// lineOf maps a byte offset to a 1-indexed line number.
func (b *builder) lineOf(offset int) int {
	return sort.Search(len(b.lineStarts), func(i int) bool { return b.lineStarts[i] > offset })
}

// extent returns the first and last lines touched by text segments under n,
// or ok=false when n carries no position information.
func (b *builder) extent(n ast.Node) (lo, hi int, ok bool) {
	lo, hi = -1, -1
	add := func(start, stop int) {
		if stop > start {
			stop--
		}
		l1, l2 := b.lineOf(start), b.lineOf(stop)
		if lo < 0 || l1 < lo {
			lo = l1
		}
		if l2 > hi {
			hi = l2
		}
	}
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if c.Type() == ast.TypeBlock {
			lines := c.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				add(seg.Start, seg.Stop)
			}
		}
		if t, isText := c.(*ast.Text); isText {
			add(t.Segment.Start, t.Segment.Stop)
		}
		return ast.WalkContinue, nil
	})
	return lo, hi, lo > 0
}

func (b *builder) walk(root ast.Node) {
	var nodes []ast.Node
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		nodes = append(nodes, n)
	}

	// limits[i] is the last line node i may extend to: the line before the
	// next positioned sibling.
	limits := make([]int, len(nodes))
	limit := b.doc.LineCount()
	for i := len(nodes) - 1; i >= 0; i-- {
		limits[i] = limit
		if lo, _, ok := b.extent(nodes[i]); ok {
			limit = lo - 1
		}
	}

	cursor := 0 // last line consumed by a previous element
	for i, n := range nodes {
		limit := limits[i]

		switch node := n.(type) {
		case *ast.Heading:
			cursor = b.heading(node, cursor)
		case *ast.FencedCodeBlock:
			cursor = b.fenced(node, cursor, limit)
		case *ast.List:
			cursor = b.list(node, cursor, limit)
		case *east.Table:
			cursor = b.table(node, cursor, limit)
		default:
			if _, hi, ok := b.extent(n); ok && hi > cursor {
				cursor = hi
			}
		}
	}
}

func (b *builder) heading(n *ast.Heading, cursor int) int {
	lo, hi, ok := b.extent(n)
	if !ok {
		return cursor
	}
	txt := cleanHeading(inlineText(n, b.src))
	if txt == "" {
		return hi
	}
	end := hi
	if !atxHeadingRe.MatchString(b.doc.Lines[lo-1]) && hi < b.doc.LineCount() {
		end = hi + 1 // setext underline
	}
	b.doc.Headers = append(b.doc.Headers, doctree.Header{Level: n.Level, Text: txt, Line: lo, End: end})
	return end
}

func (b *builder) fenced(n *ast.FencedCodeBlock, cursor, limit int) int {
	lines := b.doc.Lines
	start := 0
	for l := cursor + 1; l <= limit && l <= len(lines); l++ {
		if fenceOpenRe.MatchString(lines[l-1]) {
			start = l
			break
		}
	}
	if start == 0 {
		b.doc.Warnings = append(b.doc.Warnings, fmt.Sprintf("code fence after line %d could not be located", cursor))
		return cursor
	}
	open := fenceOpenRe.FindStringSubmatch(lines[start-1])[1]

	last := start
	if seg := n.Lines(); seg.Len() > 0 {
		last = b.lineOf(seg.At(seg.Len()-1).Stop - 1)
	}
	end, closed := last, false
	for l := last + 1; l <= len(lines); l++ {
		if isFenceClose(lines[l-1], open) {
			end, closed = l, true
			break
		}
		if strings.TrimSpace(lines[l-1]) != "" {
			break
		}
	}
	if !closed {
		// Unclosed fences run to the end of the document.
		end = len(lines)
		for end > start && strings.TrimSpace(lines[end-1]) == "" {
			end--
		}
		b.doc.Warnings = append(b.doc.Warnings, fmt.Sprintf("unclosed code fence at line %d", start))
	}

	lang := ""
	if l := n.Language(b.src); l != nil {
		lang = string(l)
	}
	b.doc.CodeBlocks = append(b.doc.CodeBlocks, doctree.CodeBlock{
		Language:  lang,
		StartLine: start,
		EndLine:   end,
		Raw:       b.doc.Slice(start, end),
		Closed:    closed,
	})
	return end
}

// extend grows a block end over following non-blank lines that belong to it,
// such as closing fences of nested code, stopping before limit.
func (b *builder) extend(hi, limit int) int {
	lines := b.doc.Lines
	for hi < limit && hi < len(lines) {
		next := lines[hi]
		if strings.TrimSpace(next) == "" || thematicRe.MatchString(next) || atxHeadingRe.MatchString(next) {
			break
		}
		hi++
	}
	return hi
}

func (b *builder) list(n *ast.List, cursor, limit int) int {
	lo, hi, ok := b.extent(n)
	if !ok {
		return cursor
	}
	hi = b.extend(hi, limit)

	block := doctree.ListBlock{StartLine: lo, EndLine: hi, Ordered: n.IsOrdered()}
	b.listItems(n, 0, &block)
	if len(block.Items) == 0 {
		return hi
	}

	// Each item runs until the next item starts.
	for i := range block.Items {
		end := hi
		if i+1 < len(block.Items) {
			end = block.Items[i+1].StartLine - 1
		}
		for end > block.Items[i].StartLine && strings.TrimSpace(b.doc.Lines[end-1]) == "" {
			end--
		}
		block.Items[i].EndLine = end
	}
	b.doc.Lists = append(b.doc.Lists, block)
	return hi
}

func (b *builder) listItems(list *ast.List, depth int, block *doctree.ListBlock) {
	for c := list.FirstChild(); c != nil; c = c.NextSibling() {
		item, isItem := c.(*ast.ListItem)
		if !isItem {
			continue
		}
		lo, _, ok := b.extent(item)
		if !ok {
			continue
		}

		marker := string(list.Marker)
		if m := listItemRe.FindStringSubmatch(b.doc.Lines[lo-1]); m != nil {
			marker = m[2]
		}
		li := doctree.ListItem{
			Depth:     depth,
			Marker:    marker,
			Ordered:   list.IsOrdered(),
			StartLine: lo,
			EndLine:   lo,
		}
		if first := item.FirstChild(); first != nil {
			if _, nested := first.(*ast.List); !nested {
				li.Text = inlineText(first, b.src)
				if box, isBox := first.FirstChild().(*east.TaskCheckBox); isBox {
					checked := box.IsChecked
					li.Checked = &checked
				}
			}
		}
		block.Items = append(block.Items, li)

		for gc := item.FirstChild(); gc != nil; gc = gc.NextSibling() {
			if sub, nested := gc.(*ast.List); nested {
				b.listItems(sub, depth+1, block)
			}
		}
	}
}

func (b *builder) table(n *east.Table, cursor, limit int) int {
	lo, hi, ok := b.extent(n)
	if !ok {
		return cursor
	}
	hi = b.extend(hi, limit)
	lines := b.doc.Lines
	if lo >= hi || !IsTableSeparator(lines[lo]) {
		b.doc.Warnings = append(b.doc.Warnings, fmt.Sprintf("table at line %d has no valid separator row; treated as text", lo))
		return hi
	}
	b.doc.Tables = append(b.doc.Tables, doctree.Table{
		StartLine: lo,
		EndLine:   hi,
		Header:    lines[lo-1],
		Separator: lines[lo],
		Rows:      append([]string(nil), lines[lo+1:hi]...),
	})
	return hi
}

// inlineText concatenates the text under n, turning line breaks into spaces.
func inlineText(n ast.Node, src []byte) string {
	var buf strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.List:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

// Inconsistencies lists problems with the elements of doc: out-of-range or
// overlapping line spans and code blocks that do not start on a fence.
func Inconsistencies(doc *doctree.Document) []string {
	var problems []string
	n := doc.LineCount()
	prevEnd := 0
	for _, el := range doc.Elements() {
		if el.StartLine < 1 || el.EndLine > n || el.StartLine > el.EndLine {
			problems = append(problems, fmt.Sprintf("%s at lines %d-%d out of range", el.Kind, el.StartLine, el.EndLine))
			continue
		}
		if el.StartLine <= prevEnd {
			problems = append(problems, fmt.Sprintf("%s at line %d overlaps previous element", el.Kind, el.StartLine))
		}
		if el.EndLine > prevEnd {
			prevEnd = el.EndLine
		}
		if el.Kind == doctree.KindCode && !fenceOpenRe.MatchString(doc.Lines[el.StartLine-1]) {
			problems = append(problems, fmt.Sprintf("code block at line %d does not start on a fence", el.StartLine))
		}
	}
	return problems
}

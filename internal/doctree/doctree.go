package doctree

import (
	"sort"
	"strings"
)

// Source is a document converted to Markdown text, ready for structural parsing.
type Source struct {
	Title    string // Document title (from metadata or filename)
	Format   string // Original format: markdown, text, csv, html, pdf, docx
	Markdown string // Markdown rendition of the document
}

// ElementKind tags the variant of a structural element.
type ElementKind int

const (
	KindHeader ElementKind = iota
	KindCode
	KindList
	KindTable
)

func (k ElementKind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindCode:
		return "code"
	case KindList:
		return "list"
	case KindTable:
		return "table"
	}
	return "unknown"
}

// Header is an ATX or setext heading.
type Header struct {
	Level int    // 1-6
	Text  string // Heading text without markers
	Line  int    // 1-indexed line of the heading text
	End   int    // Last line (differs from Line for setext headings)
}

// CodeBlock is a fenced code block including its fence lines.
type CodeBlock struct {
	Language  string
	StartLine int // Opening fence line
	EndLine   int // Closing fence line (last content line if unclosed)
	Raw       string
	Closed    bool
}

// ListItem is one entry of a list, flattened in document order with its nesting depth.
type ListItem struct {
	Depth     int    // 0 for top-level items
	Marker    string // "-", "*", "+", "1.", "1)"
	Ordered   bool
	Checked   *bool // nil unless the item is a task item
	Text      string
	StartLine int
	EndLine   int
}

// ListBlock is a contiguous top-level list with all its nested items.
type ListBlock struct {
	StartLine int
	EndLine   int
	Ordered   bool
	Items     []ListItem
}

// TopLevelGroups returns index ranges [start, end) into Items, one per top-level item
// together with all of its descendants. Items that precede the first top-level item
// belong to the first group.
func (l *ListBlock) TopLevelGroups() [][2]int {
	if len(l.Items) == 0 {
		return nil
	}
	var groups [][2]int
	start := 0
	for i := 1; i < len(l.Items); i++ {
		if l.Items[i].Depth == 0 {
			groups = append(groups, [2]int{start, i})
			start = i
		}
	}
	return append(groups, [2]int{start, len(l.Items)})
}

// MaxDepth returns the deepest item nesting level (0 for flat lists).
func (l *ListBlock) MaxDepth() int {
	d := 0
	for _, it := range l.Items {
		if it.Depth > d {
			d = it.Depth
		}
	}
	return d
}

// Table is a pipe-delimited table: header row, separator row and data rows.
type Table struct {
	StartLine int
	EndLine   int
	Header    string
	Separator string
	Rows      []string
}

// ColumnCount returns the number of cells in the header row.
func (t *Table) ColumnCount() int {
	return len(SplitTableRow(t.Header))
}

// SplitTableRow splits a pipe-delimited row into trimmed cells.
func SplitTableRow(row string) []string {
	row = strings.TrimSpace(row)
	row = strings.TrimPrefix(row, "|")
	row = strings.TrimSuffix(row, "|")
	parts := strings.Split(row, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Element references one structural element by kind and index into the typed slice.
type Element struct {
	Kind      ElementKind
	Index     int
	StartLine int
	EndLine   int
}

// Document is a line-indexed Markdown document with its structural elements.
type Document struct {
	Text       string
	Lines      []string // Lines[0] is line 1
	Headers    []Header
	CodeBlocks []CodeBlock
	Lists      []ListBlock
	Tables     []Table
	Profile    Profile
	Warnings   []string // Parsing degradations recovered during construction
}

// NewDocument splits normalized text into lines.
func NewDocument(text string) *Document {
	text = NormalizeNewlines(text)
	return &Document{
		Text:  text,
		Lines: strings.Split(text, "\n"),
	}
}

// LineCount returns the number of lines.
func (d *Document) LineCount() int {
	return len(d.Lines)
}

// Slice returns lines start..end (1-indexed, inclusive) joined with newlines.
func (d *Document) Slice(start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(d.Lines) {
		end = len(d.Lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(d.Lines[start-1:end], "\n")
}

// Elements returns headers, code blocks, lists and tables ordered by start line.
func (d *Document) Elements() []Element {
	els := make([]Element, 0, len(d.Headers)+len(d.CodeBlocks)+len(d.Lists)+len(d.Tables))
	for i, h := range d.Headers {
		els = append(els, Element{Kind: KindHeader, Index: i, StartLine: h.Line, EndLine: h.End})
	}
	for i, c := range d.CodeBlocks {
		els = append(els, Element{Kind: KindCode, Index: i, StartLine: c.StartLine, EndLine: c.EndLine})
	}
	for i, l := range d.Lists {
		els = append(els, Element{Kind: KindList, Index: i, StartLine: l.StartLine, EndLine: l.EndLine})
	}
	for i, t := range d.Tables {
		els = append(els, Element{Kind: KindTable, Index: i, StartLine: t.StartLine, EndLine: t.EndLine})
	}
	sortElements(els)
	return els
}

// HeaderAt returns the index of the last header starting at or before line, or -1.
func (d *Document) HeaderAt(line int) int {
	idx := -1
	for i, h := range d.Headers {
		if h.Line > line {
			break
		}
		idx = i
	}
	return idx
}

func sortElements(els []Element) {
	sort.SliceStable(els, func(i, j int) bool {
		if els[i].StartLine != els[j].StartLine {
			return els[i].StartLine < els[j].StartLine
		}
		return els[i].Kind < els[j].Kind
	})
}

// NormalizeNewlines converts CRLF and CR line endings to LF.
func NormalizeNewlines(value string) string {
	if value == "" {
		return ""
	}
	replaced := strings.ReplaceAll(value, "\r\n", "\n")
	return strings.ReplaceAll(replaced, "\r", "\n")
}

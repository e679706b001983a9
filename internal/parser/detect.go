package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/mdchunk/internal/doctree"
)

var (
	fenceOpenRe    = regexp.MustCompile("^\\s{0,3}(`{3,}|~{3,})\\s*([^`\\s]*)")
	atxHeadingRe   = regexp.MustCompile(`^\s{0,3}(#{1,6})\s+(.+?)\s*$`)
	setextH1Re     = regexp.MustCompile(`^\s{0,3}=+\s*$`)
	setextH2Re     = regexp.MustCompile(`^\s{0,3}-+\s*$`)
	tableSepRe     = regexp.MustCompile(`^\s*\|?\s*:?-+:?\s*(\|\s*:?-+:?\s*)*\|?\s*$`)
	listItemRe     = regexp.MustCompile(`^(\s*)([-*+]|\d{1,9}[.)])(\s+(.*))?$`)
	taskBoxRe      = regexp.MustCompile(`^\[([ xX])\]\s+`)
	thematicRe     = regexp.MustCompile(`^\s{0,3}((\*\s*){3,}|(-\s*){3,}|(_\s*){3,})$`)
	closingHashRe  = regexp.MustCompile(`\s+#+$`)
	emphasisMarkRe = regexp.MustCompile(`[*_]{1,3}([^*_]+)[*_]{1,3}`)
)

// cleanHeading strips an optional closing hash sequence and emphasis markers.
func cleanHeading(s string) string {
	s = strings.TrimSpace(s)
	if strings.Trim(s, "#") == "" {
		return ""
	}
	s = closingHashRe.ReplaceAllString(s, "")
	s = emphasisMarkRe.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// IsTableSeparator reports whether line is a pipe-table delimiter row.
func IsTableSeparator(line string) bool {
	return strings.Contains(line, "|") && tableSepRe.MatchString(line)
}

// IsFence reports whether line opens or closes a fenced code block.
func IsFence(line string) bool {
	return fenceOpenRe.MatchString(line)
}

// IsListItem reports whether line starts a list item.
func IsListItem(line string) bool {
	return isListItem(line)
}

// IsHeading reports whether line is an ATX heading.
func IsHeading(line string) bool {
	return atxHeadingRe.MatchString(line)
}

func isTableRow(line string) bool {
	return strings.TrimSpace(line) != "" && strings.Contains(line, "|")
}

func isListItem(line string) bool {
	if thematicRe.MatchString(line) {
		return false
	}
	return listItemRe.MatchString(line)
}

// isFenceClose reports whether line closes a fence opened with open.
func isFenceClose(line, open string) bool {
	t := strings.TrimSpace(line)
	if len(line)-len(strings.TrimLeft(line, " ")) > 3 {
		return false
	}
	if len(t) < len(open) {
		return false
	}
	return strings.Trim(t, open[:1]) == ""
}

// DetectDocument builds a Document using line patterns only.
func DetectDocument(text string) *doctree.Document {
	doc := doctree.NewDocument(text)
	DetectElements(doc)
	return doc
}

// DetectElements replaces the structural elements of doc with the ones found by
// line-pattern scanning. It is the fallback when the Markdown parser fails or
// produces elements that do not line up with the text.
func DetectElements(doc *doctree.Document) {
	doc.Headers = nil
	doc.CodeBlocks = nil
	doc.Lists = nil
	doc.Tables = nil

	lines := doc.Lines
	n := len(lines)
	i := 0
	for i < n {
		line := lines[i]
		lineNo := i + 1

		if m := fenceOpenRe.FindStringSubmatch(line); m != nil {
			end, closed := scanFence(lines, i, m[1])
			if !closed {
				doc.Warnings = append(doc.Warnings, fmt.Sprintf("unclosed code fence at line %d", lineNo))
			}
			doc.CodeBlocks = append(doc.CodeBlocks, doctree.CodeBlock{
				Language:  m[2],
				StartLine: lineNo,
				EndLine:   end + 1,
				Raw:       strings.Join(lines[i:end+1], "\n"),
				Closed:    closed,
			})
			i = end + 1
			continue
		}

		if m := atxHeadingRe.FindStringSubmatch(line); m != nil {
			if t := cleanHeading(m[2]); t != "" {
				doc.Headers = append(doc.Headers, doctree.Header{Level: len(m[1]), Text: t, Line: lineNo, End: lineNo})
			}
			i++
			continue
		}

		if i+1 < n && isTableRow(line) && IsTableSeparator(lines[i+1]) {
			end := i + 1
			for end+1 < n && isTableRow(lines[end+1]) {
				end++
			}
			doc.Tables = append(doc.Tables, doctree.Table{
				StartLine: lineNo,
				EndLine:   end + 1,
				Header:    line,
				Separator: lines[i+1],
				Rows:      append([]string(nil), lines[i+2:end+1]...),
			})
			i = end + 1
			continue
		}

		if isListItem(line) && leadingSpaces(line) <= 3 {
			block, end := scanList(lines, i)
			doc.Lists = append(doc.Lists, block)
			i = end + 1
			continue
		}

		if i+1 < n && strings.TrimSpace(line) != "" && !isTableRow(line) {
			next := lines[i+1]
			level := 0
			if setextH1Re.MatchString(next) {
				level = 1
			} else if setextH2Re.MatchString(next) && !thematicRe.MatchString(line) {
				level = 2
			}
			if level > 0 && (i == 0 || strings.TrimSpace(lines[i-1]) == "") {
				doc.Headers = append(doc.Headers, doctree.Header{
					Level: level,
					Text:  cleanHeading(line),
					Line:  lineNo,
					End:   lineNo + 1,
				})
				i += 2
				continue
			}
		}

		i++
	}
}

// scanFence returns the 0-indexed line that closes the fence opened at start.
// For an unclosed fence it returns the last non-blank line of the document.
func scanFence(lines []string, start int, open string) (int, bool) {
	for j := start + 1; j < len(lines); j++ {
		if isFenceClose(lines[j], open) {
			return j, true
		}
	}
	end := len(lines) - 1
	for end > start && strings.TrimSpace(lines[end]) == "" {
		end--
	}
	return end, false
}

// scanList consumes a list starting at line start (0-indexed) and returns the
// block together with the 0-indexed last line it covers.
func scanList(lines []string, start int) (doctree.ListBlock, int) {
	block := doctree.ListBlock{StartLine: start + 1}
	var indents []int
	end := start
	inFence := ""

	for j := start; j < len(lines); j++ {
		line := lines[j]

		if inFence != "" {
			if isFenceClose(line, inFence) {
				inFence = ""
			}
			end = j
			continue
		}

		if strings.TrimSpace(line) == "" {
			// A blank line continues the list only if more list content follows.
			k := j + 1
			for k < len(lines) && strings.TrimSpace(lines[k]) == "" {
				k++
			}
			if k >= len(lines) || !(isListItem(lines[k]) || leadingSpaces(lines[k]) >= 2) {
				break
			}
			continue
		}

		if m := listItemRe.FindStringSubmatch(line); m != nil && !thematicRe.MatchString(line) {
			ind := len(strings.ReplaceAll(m[1], "\t", "    "))
			for len(indents) > 0 && ind < indents[len(indents)-1] {
				indents = indents[:len(indents)-1]
			}
			if len(indents) == 0 || ind > indents[len(indents)-1]+1 {
				indents = append(indents, ind)
			}
			marker := m[2]
			ordered := marker[0] >= '0' && marker[0] <= '9'
			if len(block.Items) == 0 {
				block.Ordered = ordered
			}
			body := m[4]
			var checked *bool
			if tm := taskBoxRe.FindStringSubmatch(body); tm != nil {
				c := tm[1] != " "
				checked = &c
				body = body[len(tm[0]):]
			}
			block.Items = append(block.Items, doctree.ListItem{
				Depth:     len(indents) - 1,
				Marker:    marker,
				Ordered:   ordered,
				Checked:   checked,
				Text:      strings.TrimSpace(body),
				StartLine: j + 1,
				EndLine:   j + 1,
			})
			end = j
			continue
		}

		if leadingSpaces(line) >= 2 && len(block.Items) > 0 {
			if m := fenceOpenRe.FindStringSubmatch(line); m != nil {
				inFence = m[1]
			}
			block.Items[len(block.Items)-1].EndLine = j + 1
			end = j
			continue
		}

		// Lazy continuation of the previous item's paragraph.
		if j > start && strings.TrimSpace(lines[j-1]) != "" && len(block.Items) > 0 &&
			!atxHeadingRe.MatchString(line) && !fenceOpenRe.MatchString(line) && !isTableRow(line) &&
			!thematicRe.MatchString(line) {
			block.Items[len(block.Items)-1].EndLine = j + 1
			end = j
			continue
		}
		break
	}

	block.EndLine = end + 1
	return block, end
}

func leadingSpaces(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

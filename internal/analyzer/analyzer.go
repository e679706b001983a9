// Package analyzer measures a parsed document and produces its content profile.
package analyzer

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/mdchunk/internal/doctree"
)

// Ratio thresholds used to classify the content type.
const (
	heavyRatio      = 0.5
	mixedKindRatio  = 0.1
	mixedTextRatio  = 0.3
	maxHeaderDepth  = 4.0
	elementKindsMax = 3.0
)

var sentenceEndRe = regexp.MustCompile(`[.!?]+(\s+|$)`)

// Analyze computes the profile of doc, stores it on doc.Profile and returns it.
func Analyze(doc *doctree.Document) doctree.Profile {
	p := doctree.Profile{
		TotalChars: utf8.RuneCountInString(doc.Text),
		TotalLines: doc.LineCount(),
	}

	// covered marks lines owned by a code block, table or list.
	covered := make([]bool, doc.LineCount()+1)
	mark := func(start, end int) int {
		n := 0
		for l := start; l <= end && l <= doc.LineCount(); l++ {
			if covered[l] {
				continue
			}
			covered[l] = true
			n += utf8.RuneCountInString(doc.Lines[l-1]) + 1
		}
		return n
	}

	seenLang := make(map[string]bool)
	for _, cb := range doc.CodeBlocks {
		p.CodeChars += mark(cb.StartLine, cb.EndLine)
		if cb.Language != "" && !seenLang[cb.Language] {
			seenLang[cb.Language] = true
			p.Languages = append(p.Languages, cb.Language)
		}
	}
	p.CodeBlockCount = len(doc.CodeBlocks)

	for _, t := range doc.Tables {
		p.TableChars += mark(t.StartLine, t.EndLine)
	}
	p.TableCount = len(doc.Tables)

	for i := range doc.Lists {
		l := &doc.Lists[i]
		p.ListChars += mark(l.StartLine, l.EndLine)
		p.ListItemCount += len(l.Items)
		if d := l.MaxDepth() + 1; d > p.MaxListDepth {
			p.MaxListDepth = d
		}
	}
	p.ListCount = len(doc.Lists)

	for _, h := range doc.Headers {
		if h.Level > p.MaxHeaderLevel {
			p.MaxHeaderLevel = h.Level
		}
	}
	p.HeaderCount = len(doc.Headers)
	p.HeaderDepth = doctree.BuildHeaderTree(doc.Headers).Depth()

	p.CodeChars = min(p.CodeChars, p.TotalChars)
	p.TableChars = min(p.TableChars, p.TotalChars-p.CodeChars)
	p.ListChars = min(p.ListChars, p.TotalChars-p.CodeChars-p.TableChars)
	p.TextChars = p.TotalChars - p.CodeChars - p.TableChars - p.ListChars

	if p.TotalChars > 0 {
		total := float64(p.TotalChars)
		p.CodeRatio = float64(p.CodeChars) / total
		p.TableRatio = float64(p.TableChars) / total
		p.ListRatio = float64(p.ListChars) / total
		p.TextRatio = float64(p.TextChars) / total
	}

	p.AvgSentenceLength = avgSentenceLength(doc, covered)
	p.HasMixedContent = hasMixedContent(p)
	p.Complexity = complexity(p)
	p.ContentType = contentType(p)

	doc.Profile = p
	return p
}

// avgSentenceLength returns the mean sentence length in characters over the
// prose lines of doc (lines that are not headers or inside elements).
func avgSentenceLength(doc *doctree.Document, covered []bool) float64 {
	headerLine := make(map[int]bool, len(doc.Headers))
	for _, h := range doc.Headers {
		for l := h.Line; l <= h.End; l++ {
			headerLine[l] = true
		}
	}

	var prose strings.Builder
	for i, line := range doc.Lines {
		l := i + 1
		if covered[l] || headerLine[l] {
			continue
		}
		if s := strings.TrimSpace(line); s != "" {
			prose.WriteString(s)
			prose.WriteByte(' ')
		} else {
			prose.WriteString(". ")
		}
	}

	total, count := 0, 0
	for _, s := range sentenceEndRe.Split(prose.String(), -1) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		total += utf8.RuneCountInString(s)
		count++
	}
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

func hasMixedContent(p doctree.Profile) bool {
	kinds := 0
	for _, r := range []float64{p.CodeRatio, p.TableRatio, p.ListRatio} {
		if r >= mixedKindRatio {
			kinds++
		}
	}
	return kinds >= 2 || (kinds >= 1 && p.TextRatio >= mixedTextRatio)
}

func complexity(p doctree.Profile) float64 {
	kinds := 0
	for _, r := range []float64{p.CodeRatio, p.TableRatio, p.ListRatio, p.TextRatio} {
		if r > 0 {
			kinds++
		}
	}
	diversity := 0.0
	if kinds > 1 {
		diversity = float64(kinds-1) / elementKindsMax
	}
	c := 0.3*p.CodeRatio +
		0.2*p.TableRatio +
		0.15*p.ListRatio +
		0.2*math.Min(float64(p.HeaderDepth)/maxHeaderDepth, 1) +
		0.15*diversity
	return math.Max(0, math.Min(1, c))
}

func contentType(p doctree.Profile) string {
	switch {
	case p.CodeRatio >= heavyRatio:
		return doctree.ContentCodeHeavy
	case p.TableRatio >= heavyRatio:
		return doctree.ContentTableHeavy
	case p.ListRatio >= heavyRatio:
		return doctree.ContentListHeavy
	case p.HasMixedContent:
		return doctree.ContentMixed
	}
	return doctree.ContentTextHeavy
}

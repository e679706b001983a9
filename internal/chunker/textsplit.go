package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// sentenceEndRe matches terminal punctuation, optional closing quotes or
// brackets, and the whitespace that follows.
var sentenceEndRe = regexp.MustCompile(`[.!?]["'\x{201D}\x{2019})\]]*\s+`)

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// splitSentences splits text after sentence-ending punctuation that is followed
// by a capital letter, a digit, an opening quote, a line break or the end of the
// text. When no such boundary exists it falls back to splitting on ". ".
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	start := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		if !isSentenceStart(text, loc) {
			continue
		}
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if start == 0 {
		return splitOnPeriods(text)
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func isSentenceStart(text string, loc []int) bool {
	if loc[1] >= len(text) {
		return true
	}
	if strings.ContainsRune(text[loc[0]:loc[1]], '\n') {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[loc[1]:])
	return unicode.IsUpper(r) || unicode.IsDigit(r) || strings.ContainsRune("\"'“‘([", r)
}

func splitOnPeriods(text string) []string {
	parts := strings.SplitAfter(text, ". ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// span is a piece of text with the source lines it came from.
type span struct {
	text       string
	start, end int
	// glued spans continue the previous span inside a word and join it
	// without a separator.
	glued bool
}

// splitSpan divides s into pieces no longer than limit, trying line, then
// sentence, then word boundaries before cutting inside a word.
func splitSpan(s span, limit int) []span {
	return splitSpanLevel(s, limit, 0)
}

func splitSpanLevel(s span, limit, level int) []span {
	if runeLen(s.text) <= limit {
		return []span{s}
	}

	var parts []span
	sep := " "
	switch level {
	case 0:
		parts = lineSpans(s)
		sep = "\n"
	case 1:
		for _, t := range splitSentences(s.text) {
			parts = append(parts, span{text: t, start: s.start, end: s.end})
		}
	case 2:
		for _, w := range strings.Fields(s.text) {
			parts = append(parts, span{text: w, start: s.start, end: s.end})
		}
	default:
		return hardCut(s, limit)
	}
	if len(parts) <= 1 {
		return splitSpanLevel(s, limit, level+1)
	}

	var out []span
	for _, p := range parts {
		out = append(out, splitSpanLevel(p, limit, level+1)...)
	}
	return mergeSpans(out, sep, limit)
}

func lineSpans(s span) []span {
	var out []span
	for i, line := range strings.Split(s.text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		l := min(s.start+i, s.end)
		out = append(out, span{text: line, start: l, end: l})
	}
	return out
}

func hardCut(s span, limit int) []span {
	if limit < 1 {
		limit = 1
	}
	runes := []rune(s.text)
	var out []span
	for i := 0; i < len(runes); i += limit {
		j := min(i+limit, len(runes))
		out = append(out, span{text: string(runes[i:j]), start: s.start, end: s.end, glued: i > 0 || s.glued})
	}
	return out
}

// mergeSpans greedily joins consecutive spans with sep while they fit.
func mergeSpans(spans []span, sep string, limit int) []span {
	var out []span
	for _, sp := range spans {
		if n := len(out); n > 0 {
			last := &out[n-1]
			join := sep
			if sp.glued {
				join = ""
			}
			if runeLen(last.text)+len(join)+runeLen(sp.text) <= limit {
				last.text += join + sp.text
				last.end = max(last.end, sp.end)
				continue
			}
		}
		out = append(out, sp)
	}
	return out
}

// paragraphs splits lines from..to (1-indexed, inclusive) into runs of
// non-blank lines.
func paragraphs(lines []string, from, to int) []span {
	var out []span
	start := 0
	flush := func(end int) {
		if start > 0 {
			out = append(out, span{
				text:  strings.Join(lines[start-1:end], "\n"),
				start: start,
				end:   end,
			})
			start = 0
		}
	}
	for l := from; l <= to && l <= len(lines); l++ {
		if strings.TrimSpace(lines[l-1]) == "" {
			flush(l - 1)
			continue
		}
		if start == 0 {
			start = l
		}
	}
	flush(min(to, len(lines)))
	return out
}

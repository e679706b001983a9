package chunker

import (
	"fmt"
	"strings"

	"github.com/dgallion1/mdchunk/internal/doctree"
)

const (
	minCoverage       = 0.95
	maxGapLines       = 10
	maxDuplication    = 0.5
	maxReportedRanges = 5
)

// LineRange is an inclusive range of 1-indexed source lines.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r LineRange) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// CoverageReport compares the chunks with the source text.
type CoverageReport struct {
	TotalChars       int         `json:"total_chars"`
	CoveredChars     int         `json:"covered_chars"`
	ChunkChars       int         `json:"chunk_chars"`
	Coverage         float64     `json:"coverage"`
	DuplicationRatio float64     `json:"duplication_ratio"`
	MissingLines     []LineRange `json:"missing_lines,omitempty"`
	LargeGaps        []LineRange `json:"large_gaps,omitempty"`
	Valid            bool        `json:"valid"`
}

// validate checks that every non-blank source line appears in the chunks.
// Whitespace is normalized and injected overlap is ignored. Lines are looked
// up in order from a moving cursor first, then anywhere in the chunks, and
// finally with all whitespace removed so that lines cut across chunks still
// count.
func validate(doc *doctree.Document, chunks []doctree.Chunk) (*CoverageReport, []string) {
	var sb strings.Builder
	for _, c := range chunks {
		content := c.Content
		if n := c.Int(doctree.MetaOverlapChars); n > 0 {
			r := []rune(content)
			content = string(r[min(n, len(r)):])
		}
		sb.WriteString(normalizeSpace(content))
		sb.WriteByte(' ')
	}
	corpus := sb.String()
	compactCorpus := stripSpace(corpus)

	rep := &CoverageReport{ChunkChars: runeLen(strings.TrimSpace(corpus))}
	cursor := 0
	missingStart, missingEnd := 0, 0
	closeGap := func() {
		if missingStart > 0 {
			rep.MissingLines = append(rep.MissingLines, LineRange{Start: missingStart, End: missingEnd})
			missingStart = 0
		}
	}

	for i, line := range doc.Lines {
		norm := normalizeSpace(line)
		if norm == "" {
			continue
		}
		n := runeLen(norm)
		rep.TotalChars += n

		if idx := strings.Index(corpus[cursor:], norm); idx >= 0 {
			cursor += idx + len(norm)
			rep.CoveredChars += n
			closeGap()
			continue
		}
		if strings.Contains(corpus, norm) || strings.Contains(compactCorpus, stripSpace(norm)) {
			rep.CoveredChars += n
			closeGap()
			continue
		}
		if missingStart == 0 {
			missingStart = i + 1
		}
		missingEnd = i + 1
	}
	closeGap()

	rep.Coverage = 1
	if rep.TotalChars > 0 {
		rep.Coverage = float64(rep.CoveredChars) / float64(rep.TotalChars)
		src := runeLen(normalizeSpace(doc.Text))
		rep.DuplicationRatio = max(0, float64(rep.ChunkChars-src)/float64(src))
	}

	var warnings []string
	for _, g := range rep.MissingLines {
		if g.End-g.Start+1 > maxGapLines {
			rep.LargeGaps = append(rep.LargeGaps, g)
			warnings = append(warnings, fmt.Sprintf("content gap: lines %s missing from chunks", g))
		}
	}
	if rep.Coverage < minCoverage {
		ranges := make([]string, 0, maxReportedRanges)
		for i, g := range rep.MissingLines {
			if i == maxReportedRanges {
				ranges = append(ranges, "...")
				break
			}
			ranges = append(ranges, g.String())
		}
		warnings = append(warnings, fmt.Sprintf("validation failure: coverage %.1f%% below %.0f%% (missing lines %s)",
			rep.Coverage*100, minCoverage*100, strings.Join(ranges, ", ")))
	}
	if rep.DuplicationRatio > maxDuplication {
		warnings = append(warnings, fmt.Sprintf("validation failure: duplicated content %.1f%% of source", rep.DuplicationRatio*100))
	}
	rep.Valid = rep.Coverage >= minCoverage && len(rep.LargeGaps) == 0
	return rep, warnings
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripSpace(s string) string {
	return strings.Join(strings.Fields(s), "")
}

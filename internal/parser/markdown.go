package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/mdchunk/internal/doctree"
)

// MarkdownParser handles Markdown files. The text is passed through with
// normalized line endings; structure is recovered later by ParseDocument.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Source, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	text := doctree.NormalizeNewlines(string(src))
	title := trimExt(filename)
	if t := firstTitle(text); t != "" {
		title = t
	}

	return &doctree.Source{
		Title:    title,
		Format:   "markdown",
		Markdown: text,
	}, nil
}

// firstTitle returns the text of the first level-1 ATX heading outside code fences.
func firstTitle(text string) string {
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		if fenceOpenRe.MatchString(line) {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := atxHeadingRe.FindStringSubmatch(line); m != nil && len(m[1]) == 1 {
			return cleanHeading(m[2])
		}
	}
	return ""
}

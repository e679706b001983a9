package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/mdchunk/internal/doctree"
)

// TextParser handles plain text files. Paragraphs are kept as-is and separated
// by single blank lines.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Source, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &doctree.Source{
		Title:    trimExt(filename),
		Format:   "text",
		Markdown: strings.Join(paragraphs, "\n\n"),
	}, nil
}

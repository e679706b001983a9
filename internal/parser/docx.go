package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/mdchunk/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Heading styles become ATX headings,
// list styles become bullets and tables become pipe tables.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.Source, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "mdchunk-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, int64(size))
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	src := &doctree.Source{
		Title:  trimExt(filename),
		Format: "docx",
	}

	var blocks []string
	var listRun []string
	flushList := func() {
		if len(listRun) > 0 {
			blocks = append(blocks, strings.Join(listRun, "\n"))
			listRun = nil
		}
	}

	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			text := docxParagraphText(it)
			if text == "" {
				continue
			}
			if docxIsListItem(it) {
				listRun = append(listRun, "- "+text)
				continue
			}
			flushList()
			if level := docxHeadingLevel(it); level > 0 {
				blocks = append(blocks, heading(level, text))
				if level == 1 && src.Title == trimExt(filename) {
					src.Title = text
				}
				continue
			}
			blocks = append(blocks, text)
		case *docx.Table:
			flushList()
			if t := markdownTable(docxTableRows(it)); t != "" {
				blocks = append(blocks, t)
			}
		}
	}
	flushList()

	src.Markdown = strings.Join(blocks, "\n\n")
	return src, nil
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

func docxHeadingLevel(para *docx.Paragraph) int {
	style := strings.ToLower(strings.ReplaceAll(docxStyle(para), " ", ""))
	if style == "title" {
		return 1
	}
	if !strings.HasPrefix(style, "heading") {
		return 0
	}
	n := strings.TrimPrefix(style, "heading")
	if len(n) == 1 && n[0] >= '1' && n[0] <= '6' {
		return int(n[0] - '0')
	}
	return 0
}

func docxIsListItem(para *docx.Paragraph) bool {
	style := strings.ToLower(docxStyle(para))
	return strings.Contains(style, "list")
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

func docxTableRows(t *docx.Table) [][]string {
	var rows [][]string
	for _, tr := range t.TableRows {
		var row []string
		for _, tc := range tr.TableCells {
			var parts []string
			for _, para := range tc.Paragraphs {
				if s := docxParagraphText(para); s != "" {
					parts = append(parts, s)
				}
			}
			row = append(row, strings.Join(parts, " "))
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}

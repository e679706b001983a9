package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/mdchunk/internal/doctree"
)

// CSVParser renders CSV files as a single Markdown table under a title heading.
// The first record is the table header.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Source, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	src := &doctree.Source{
		Title:  trimExt(filename),
		Format: "csv",
	}
	if len(records) == 0 {
		return src, nil
	}

	var b strings.Builder
	b.WriteString(heading(1, src.Title))
	b.WriteString("\n\n")
	if len(records) == 1 {
		// A header without data rows is not a table.
		b.WriteString(strings.Join(records[0], ", "))
	} else {
		b.WriteString(markdownTable(records))
	}
	src.Markdown = b.String()
	return src, nil
}

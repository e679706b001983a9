package parser

import (
	"strings"
	"testing"
)

func TestTextParser_BasicParagraphSplitting(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	p := &TextParser{}
	src, err := p.Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if src.Title != "notes" {
		t.Errorf("expected title %q, got %q", "notes", src.Title)
	}
	if src.Format != "text" {
		t.Errorf("expected format %q, got %q", "text", src.Format)
	}
	want := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	if src.Markdown != want {
		t.Errorf("expected %q, got %q", want, src.Markdown)
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	src, err := p.Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Title != "empty" {
		t.Errorf("expected title %q, got %q", "empty", src.Title)
	}
	if src.Markdown != "" {
		t.Errorf("expected empty markdown, got %q", src.Markdown)
	}
}

func TestTextParser_MultipleBlankLines(t *testing.T) {
	// Runs of blank or whitespace-only lines collapse to one separator.
	input := "Para one.\n\n   \n\nPara two."
	p := &TextParser{}
	src, err := p.Parse(strings.NewReader(input), "gaps.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Markdown != "Para one.\n\nPara two." {
		t.Errorf("unexpected markdown %q", src.Markdown)
	}
}

func TestCSVParser_RendersTable(t *testing.T) {
	input := "name,qty\napple,3\npear,5\n"
	p := &CSVParser{}
	src, err := p.Parse(strings.NewReader(input), "fruit.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "# fruit\n\n| name | qty |\n| --- | --- |\n| apple | 3 |\n| pear | 5 |"
	if src.Markdown != want {
		t.Errorf("expected %q, got %q", want, src.Markdown)
	}

	doc := ParseDocument(src.Markdown)
	if len(doc.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(doc.Tables))
	}
	if len(doc.Tables[0].Rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(doc.Tables[0].Rows))
	}
}

func TestCSVParser_EscapesPipes(t *testing.T) {
	p := &CSVParser{}
	src, err := p.Parse(strings.NewReader("a,b\nx|y,z\n"), "p.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(src.Markdown, `x\|y`) {
		t.Errorf("expected escaped pipe, got %q", src.Markdown)
	}
}

func TestHTMLParser_Structure(t *testing.T) {
	input := `<html><head><title>Guide</title><script>var x = 1;</script></head>
<body>
<h1>Intro</h1>
<p>Hello   world.</p>
<ul><li>one</li><li>two<ul><li>nested</li></ul></li></ul>
<pre><code class="language-go">func main() {}</code></pre>
<table><tr><th>k</th><th>v</th></tr><tr><td>a</td><td>1</td></tr></table>
</body></html>`

	p := &HTMLParser{}
	src, err := p.Parse(strings.NewReader(input), "guide.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Title != "Guide" {
		t.Errorf("expected title %q, got %q", "Guide", src.Title)
	}
	for _, want := range []string{
		"# Intro",
		"Hello world.",
		"- one\n- two\n  - nested",
		"```go\nfunc main() {}\n```",
		"| k | v |\n| --- | --- |\n| a | 1 |",
	} {
		if !strings.Contains(src.Markdown, want) {
			t.Errorf("expected markdown to contain %q, got:\n%s", want, src.Markdown)
		}
	}
	if strings.Contains(src.Markdown, "var x") {
		t.Errorf("script content leaked into markdown")
	}
}

func TestPagesToMarkdown(t *testing.T) {
	got := pagesToMarkdown([]string{"first page\n\n\n\nmore", "  ", "third"})
	want := "# Page 1\n\nfirst page\n\nmore\n\n# Page 3\n\nthird"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	if got := pagesToMarkdown([]string{"only page"}); got != "only page" {
		t.Errorf("single page should have no heading, got %q", got)
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"a.md", "*parser.MarkdownParser", false},
		{"a.MARKDOWN", "*parser.MarkdownParser", false},
		{"a.txt", "*parser.TextParser", false},
		{"a.csv", "*parser.CSVParser", false},
		{"a.htm", "*parser.HTMLParser", false},
		{"a.pdf", "*parser.PDFParser", false},
		{"a.docx", "*parser.DOCXParser", false},
		{"a.exe", "", true},
	}
	for _, tt := range tests {
		p, err := ForFile(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if got := typeName(p); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, got)
		}
	}
}

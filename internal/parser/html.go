package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/mdchunk/internal/doctree"
	"golang.org/x/net/html"
)

// HTMLParser converts HTML files to Markdown: headings, paragraphs, lists,
// preformatted blocks and tables keep their structure.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Source, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	src := &doctree.Source{
		Title:  trimExt(filename),
		Format: "html",
	}
	if title := findTitle(doc); title != "" {
		src.Title = title
	}

	var blocks []string
	emit := func(s string) {
		if strings.TrimSpace(s) != "" {
			blocks = append(blocks, s)
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			// Loose text inside containers such as div.
			emit(collapseSpace(n.Data))
			return
		}
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				emit(heading(level, textContent(n)))
				return
			}

			switch n.Data {
			case "script", "style", "nav", "footer", "header", "noscript":
				return
			case "p", "blockquote", "figcaption":
				t := collapseSpace(textContent(n))
				if n.Data == "blockquote" && t != "" {
					t = "> " + t
				}
				emit(t)
				return
			case "ul", "ol":
				emit(renderList(n, 0))
				return
			case "pre":
				emit(renderPre(n))
				return
			case "table":
				emit(markdownTable(tableRows(n)))
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}

	src.Markdown = strings.Join(blocks, "\n\n")
	return src, nil
}

func renderList(n *html.Node, depth int) string {
	ordered := n.Data == "ol"
	indent := strings.Repeat("  ", depth)
	if ordered {
		indent = strings.Repeat("   ", depth)
	}
	var lines []string
	num := 1
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.Data != "li" {
			continue
		}
		marker := "- "
		if ordered {
			marker = fmt.Sprintf("%d. ", num)
			num++
		}

		var own strings.Builder
		var nested []string
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol") {
				nested = append(nested, renderList(c, depth+1))
				continue
			}
			own.WriteString(textContent(c))
			own.WriteString(" ")
		}
		lines = append(lines, indent+marker+collapseSpace(own.String()))
		lines = append(lines, nested...)
	}
	return strings.Join(lines, "\n")
}

func renderPre(n *html.Node) string {
	lang := ""
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "code" {
			for _, a := range c.Attr {
				if a.Key != "class" {
					continue
				}
				for _, cls := range strings.Fields(a.Val) {
					if strings.HasPrefix(cls, "language-") {
						lang = strings.TrimPrefix(cls, "language-")
					}
				}
			}
		}
	}
	body := strings.Trim(rawText(n), "\n")
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return "```" + lang + "\n" + body + "\n```"
}

func tableRows(n *html.Node) [][]string {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var row []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					row = append(row, collapseSpace(textContent(c)))
				}
			}
			if len(row) > 0 {
				rows = append(rows, row)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return rows
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	return strings.TrimSpace(rawText(n))
}

func rawText(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

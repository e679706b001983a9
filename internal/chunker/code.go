package chunker

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/mdchunk/internal/doctree"
	"github.com/dgallion1/mdchunk/internal/parser"
)

var (
	functionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*func\s+(?:\([^)]*\)\s*)?([A-Za-z_]\w*)`),
		regexp.MustCompile(`^\s*(?:async\s+)?def\s+([A-Za-z_]\w*)`),
		regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][\w$]*)`),
		regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?(?:async\s+)?fn\s+([A-Za-z_]\w*)`),
		regexp.MustCompile(`^\s*(?:export\s+)?const\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s*)?\([^)]*\)\s*=>`),
	}
	classPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?(?:public\s+)?class\s+([A-Za-z_]\w*)`),
		regexp.MustCompile(`^\s*type\s+([A-Za-z_]\w*)\s+(?:struct|interface)\b`),
		regexp.MustCompile(`^\s*(?:pub\s+)?(?:struct|enum|trait)\s+([A-Za-z_]\w*)`),
		regexp.MustCompile(`^\s*(?:export\s+)?interface\s+([A-Za-z_]\w*)`),
	}

	// languageHints maps a content pattern to a language label. Entries are
	// tried in order; the first match wins.
	languageHints = []struct {
		re   *regexp.Regexp
		lang string
	}{
		{regexp.MustCompile(`(?m)^\s*package\s+\w+\s*$|^\s*func\s+\w*\(`), "go"},
		{regexp.MustCompile(`(?m)^\s*(def|class)\s+\w+.*:\s*$|^\s*import\s+\w+\s*$|^\s*from\s+\S+\s+import\s`), "python"},
		{regexp.MustCompile(`(?m)^\s*fn\s+\w+|^\s*let\s+mut\s|^\s*use\s+\w+::`), "rust"},
		{regexp.MustCompile(`(?m)^\s*(public|private|protected)\s+(static\s+)?\w+.*\(|^\s*import\s+java\.`), "java"},
		{regexp.MustCompile(`(?m)^\s*(const|let|var)\s+\w+\s*=|=>|^\s*function\s`), "javascript"},
		{regexp.MustCompile(`(?m)^\s*#include\s*[<"]`), "c"},
		{regexp.MustCompile(`(?im)^\s*(select|insert|update|delete|create\s+table)\s`), "sql"},
		{regexp.MustCompile(`(?m)^\s*(#!/bin/(ba)?sh|\$\s+\w+|(sudo\s+)?(apt|brew|npm|go|pip)\s+\w+)`), "bash"},
		{regexp.MustCompile(`(?m)^\s*<(!DOCTYPE|html|div|span|p)\b`), "html"},
		{regexp.MustCompile(`^\s*[{\[]\s*"`), "json"},
		{regexp.MustCompile(`(?m)^\s*[\w-]+:\s+\S+\s*$`), "yaml"},
	}
)

// code packs the document with fenced blocks kept whole and labels each chunk
// with the languages, functions and classes found in its code.
func (r *run) code() ([]doctree.Chunk, error) {
	chunks := r.pack(r.segment(r.doc, 1, r.doc.LineCount(), segmentOptions{}))
	for i := range chunks {
		annotateCode(&chunks[i])
	}
	return chunks, nil
}

type fencedCode struct {
	lang string
	body []string
}

// fencedBlocks extracts fenced code from chunk content.
func fencedBlocks(content string) []fencedCode {
	var out []fencedCode
	var cur *fencedCode
	for _, line := range strings.Split(content, "\n") {
		if parser.IsFence(line) {
			if cur == nil {
				info := strings.TrimLeft(strings.TrimSpace(line), "`~")
				lang := ""
				if f := strings.Fields(info); len(f) > 0 {
					lang = strings.ToLower(f[0])
				}
				cur = &fencedCode{lang: lang}
				continue
			}
			out = append(out, *cur)
			cur = nil
			continue
		}
		if cur != nil {
			cur.body = append(cur.body, line)
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}

// guessLanguage returns a best-effort language label for code, or "".
func guessLanguage(code string) string {
	for _, h := range languageHints {
		if h.re.MatchString(code) {
			return h.lang
		}
	}
	return ""
}

func annotateCode(c *doctree.Chunk) {
	blocks := fencedBlocks(c.Content)
	if len(blocks) == 0 {
		return
	}

	langCount := map[string]int{}
	var functions, classes []string
	seenFn, seenCls := map[string]bool{}, map[string]bool{}
	for _, b := range blocks {
		lang := b.lang
		if lang == "" {
			lang = guessLanguage(strings.Join(b.body, "\n"))
		}
		if lang != "" {
			langCount[lang]++
		}
		for _, line := range b.body {
			if name := firstMatch(functionPatterns, line); name != "" && !seenFn[name] {
				seenFn[name] = true
				functions = append(functions, name)
			}
			if name := firstMatch(classPatterns, line); name != "" && !seenCls[name] {
				seenCls[name] = true
				classes = append(classes, name)
			}
		}
	}

	if len(langCount) > 0 {
		langs := make([]string, 0, len(langCount))
		for l := range langCount {
			langs = append(langs, l)
		}
		sort.Slice(langs, func(i, j int) bool {
			if langCount[langs[i]] != langCount[langs[j]] {
				return langCount[langs[i]] > langCount[langs[j]]
			}
			return langs[i] < langs[j]
		})
		c.Set(doctree.MetaLanguage, langs[0])
	}
	if len(functions) > 0 {
		c.Set(doctree.MetaFunctionNames, functions)
	}
	if len(classes) > 0 {
		c.Set(doctree.MetaClassNames, classes)
	}
}

func firstMatch(patterns []*regexp.Regexp, line string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return ""
}

package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/mdchunk/internal/doctree"
	"github.com/dgallion1/mdchunk/internal/parser"
)

const guideDoc = "# Project Guide\n" +
	"\n" +
	"Welcome to the project. This guide explains setup and usage in detail. Read it fully before starting.\n" +
	"\n" +
	"## Installation\n" +
	"\n" +
	"Install the toolchain first. Then fetch the dependencies.\n" +
	"\n" +
	"```bash\n" +
	"go install example.com/tool@latest\n" +
	"tool init --force\n" +
	"```\n" +
	"\n" +
	"- Step one: clone the repository\n" +
	"  - use ssh when possible\n" +
	"  - https works too\n" +
	"- Step two: run the tests\n" +
	"- Step three: build the binary\n" +
	"\n" +
	"## Configuration\n" +
	"\n" +
	"| key | default | description |\n" +
	"|-----|---------|-------------|\n" +
	"| port | 8080 | listen port |\n" +
	"| workers | 4 | worker count |\n" +
	"| timeout | 30s | request timeout |\n" +
	"\n" +
	"### Advanced\n" +
	"\n" +
	"Advanced settings live in a YAML file. They override the environment. Use them with care.\n" +
	"\n" +
	"```go\n" +
	"func Load(path string) (*Config, error) {\n" +
	"\treturn parse(path)\n" +
	"}\n" +
	"```\n" +
	"\n" +
	"## Usage\n" +
	"\n" +
	"Run the binary. It prints a summary! Does it exit? Yes, when done.\n"

func proseDoc() string {
	var b strings.Builder
	for s := 1; s <= 4; s++ {
		fmt.Fprintf(&b, "## Section %d\n\n", s)
		for p := 0; p < 3; p++ {
			for i := 0; i < 6; i++ {
				fmt.Fprintf(&b, "Sentence %d of paragraph %d explains one idea clearly. ", i+1, p+1)
			}
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func testConfig(maxSize int) Config {
	cfg := DefaultConfig()
	cfg.MaxChunkSize = maxSize
	cfg.MinChunkSize = maxSize / 4
	cfg.TargetChunkSize = maxSize / 2
	cfg.OverlapSize = maxSize / 5
	return cfg
}

func mustChunk(t *testing.T, text string, cfg Config) *Result {
	t.Helper()
	res, err := Chunk(text, cfg)
	require.NoError(t, err)
	return res
}

// checkInvariants verifies the structural guarantees every result must hold.
func checkInvariants(t *testing.T, text string, res *Result) {
	t.Helper()
	require.NotEmpty(t, res.Chunks)

	for i, c := range res.Chunks {
		assert.NotEmpty(t, strings.TrimSpace(c.Content), "chunk %d is empty", i)
		assert.GreaterOrEqual(t, c.EndLine, c.StartLine, "chunk %d range", i)
		if i > 0 {
			assert.LessOrEqual(t, res.Chunks[i-1].StartLine, c.StartLine, "chunk %d out of order", i)
		}

		size := runeLen(c.Content)
		if c.IsOversize() {
			assert.NotEmpty(t, c.String(doctree.MetaOversizeReason), "chunk %d oversize without reason", i)
		} else {
			assert.LessOrEqual(t, size, res.EffectiveMaxSize, "chunk %d exceeds max", i)
		}

		if c.Bool(doctree.MetaHasOverlap) {
			n := c.Int(doctree.MetaOverlapChars)
			assert.LessOrEqual(t, float64(n), 0.45*float64(size), "chunk %d overlap share", i)
			prefix := string([]rune(c.Content)[:n])
			fences := 0
			for _, l := range strings.Split(prefix, "\n") {
				if parser.IsFence(l) {
					fences++
				}
			}
			assert.Zero(t, fences%2, "chunk %d overlap leaves a fence open", i)
		}
	}

	require.NotNil(t, res.Coverage)
	assert.GreaterOrEqual(t, res.Coverage.Coverage, 0.95)
	assert.Empty(t, res.Coverage.LargeGaps)

	doc := parser.ParseDocument(text)
	containedInOne := func(what, s string) {
		for _, c := range res.Chunks {
			if strings.Contains(c.Content, s) {
				return
			}
		}
		t.Errorf("%s split across chunks:\n%s", what, s)
	}
	for _, cb := range doc.CodeBlocks {
		containedInOne("code block", cb.Raw)
	}
	for _, tb := range doc.Tables {
		whole := doc.Slice(tb.StartLine, tb.EndLine)
		if runeLen(whole) <= res.EffectiveMaxSize {
			containedInOne("table", whole)
			continue
		}
		for _, row := range tb.Rows {
			containedInOne("table row", row)
		}
	}
	for _, l := range doc.Lists {
		for _, g := range l.TopLevelGroups() {
			group := doc.Slice(l.Items[g[0]].StartLine, l.Items[g[1]-1].EndLine)
			if runeLen(group) <= res.EffectiveMaxSize {
				containedInOne("list item subtree", group)
			}
		}
	}
}

func TestChunk_InvariantsAcrossStrategies(t *testing.T) {
	docs := map[string]string{
		"guide": guideDoc,
		"prose": proseDoc(),
	}
	for name, text := range docs {
		for _, s := range append([]string{StrategyAuto}, strategyNames[1:]...) {
			for _, maxSize := range []int{160, 400, 4096} {
				t.Run(fmt.Sprintf("%s/%s/%d", name, s, maxSize), func(t *testing.T) {
					cfg := testConfig(maxSize)
					cfg.Strategy = s
					res := mustChunk(t, text, cfg)
					checkInvariants(t, text, res)
					if s != StrategyAuto {
						assert.Equal(t, s, res.StrategyUsed)
						assert.False(t, res.FallbackUsed)
					}
				})
			}
		}
	}
}

func TestChunk_Idempotent(t *testing.T) {
	cfg := testConfig(300)
	first := mustChunk(t, guideDoc, cfg)
	second := mustChunk(t, guideDoc, cfg)
	assert.Equal(t, first.Chunks, second.Chunks)
	assert.Equal(t, first.StrategyUsed, second.StrategyUsed)
}

func TestChunk_ThreeSentencesUseSentenceStrategy(t *testing.T) {
	res := mustChunk(t, "The sky is blue. The grass is green. Water is wet.", DefaultConfig())

	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "sentences", res.StrategyUsed)
	assert.False(t, res.FallbackUsed)
	c := res.Chunks[0]
	assert.Equal(t, "sentences", c.String(doctree.MetaStrategy))
	assert.Equal(t, "The sky is blue. The grass is green. Water is wet.", c.Content)
	assert.Equal(t, 1, c.StartLine)
	assert.Equal(t, 1, c.EndLine)
}

func TestChunk_EmptyInput(t *testing.T) {
	for _, in := range []string{"", "  \n\n\t"} {
		res := mustChunk(t, in, DefaultConfig())
		assert.Empty(t, res.Chunks)
		assert.Contains(t, strings.Join(res.Warnings, "\n"), "empty input")
	}
}

func TestChunk_TableGroupingExample(t *testing.T) {
	text := "# Report\n\n" +
		"Intro paragraph.\n\n" +
		"## Section A\n\n" +
		"| a | b |\n|---|---|\n| 1 | 2 |\n" +
		"\nBetween the tables.\n\n" +
		"| c | d |\n|---|---|\n| 3 | 4 |\n\n" +
		"## Section B\n\n" +
		"| e | f |\n|---|---|\n| 5 | 6 |\n"

	cfg := DefaultConfig()
	cfg.Strategy = "table"
	cfg.TableGrouping.Enabled = true
	cfg.TableGrouping.MaxDistanceLines = 10
	cfg.TableGrouping.RequireSameSection = true

	res := mustChunk(t, text, cfg)
	checkInvariants(t, text, res)

	var groups []doctree.Chunk
	for _, c := range res.Chunks {
		if c.Bool(doctree.MetaIsTableGroup) {
			groups = append(groups, c)
		}
	}
	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, 2, g.Int(doctree.MetaTableGroupCount))
	assert.Contains(t, g.Content, "| 1 | 2 |")
	assert.Contains(t, g.Content, "Between the tables.")
	assert.Contains(t, g.Content, "| 3 | 4 |")
	assert.NotContains(t, g.Content, "| 5 | 6 |")
	assert.NotContains(t, g.Content, "\n\n\n")
}

func TestChunk_HugeTableSplitsIntoRowGroups(t *testing.T) {
	var b strings.Builder
	b.WriteString("| id | name | value |\n|----|------|-------|\n")
	for i := 0; i < 4000; i++ {
		fmt.Fprintf(&b, "| %d | item-%d | %d |\n", i, i, i*7)
	}
	text := b.String()

	cfg := DefaultConfig()
	cfg.MaxChunkSize = 1000
	res := mustChunk(t, text, cfg)

	assert.Equal(t, "table", res.StrategyUsed)
	require.Greater(t, len(res.Chunks), 1)
	total := len(res.Chunks)
	rows := 0
	for i, c := range res.Chunks {
		assert.LessOrEqual(t, runeLen(c.Content), 1000, "chunk %d", i)
		assert.True(t, strings.HasPrefix(c.Content, "| id | name | value |\n|----|------|-------|\n"), "chunk %d header", i)
		assert.Equal(t, i+1, c.Int(doctree.MetaSplitPart))
		assert.Equal(t, total, c.Int(doctree.MetaTotalParts))
		assert.False(t, c.Bool(doctree.MetaHasOverlap))
		rows += c.Int(doctree.MetaTableRows)
	}
	assert.Equal(t, 4000, rows)
	assert.GreaterOrEqual(t, res.Coverage.Coverage, 0.99)
}

func TestChunk_OversizeCodeBlockFlagged(t *testing.T) {
	code := "```python\n" + strings.Repeat("print('a fairly long line of python code')\n", 20) + "```"
	text := "# Script\n\nShort intro.\n\n" + code + "\n\nOutro text.\n"

	res := mustChunk(t, text, testConfig(300))
	checkInvariants(t, text, res)

	found := false
	for _, c := range res.Chunks {
		if strings.Contains(c.Content, "```python") {
			found = true
			assert.True(t, c.IsOversize())
			assert.Equal(t, doctree.ReasonCodeBlock, c.String(doctree.MetaOversizeReason))
		}
	}
	assert.True(t, found)
}

func TestChunk_DisallowOversizeSplitsWithWarning(t *testing.T) {
	code := "```\n" + strings.Repeat("line of code here\n", 40) + "```"
	cfg := testConfig(200)
	cfg.AllowOversize = false
	res := mustChunk(t, code, cfg)

	for _, c := range res.Chunks {
		assert.LessOrEqual(t, runeLen(c.Content), res.EffectiveMaxSize)
	}
	assert.Contains(t, strings.Join(res.Warnings, "\n"), "split despite "+doctree.ReasonCodeBlock)
}

func TestChunk_CodeStrategyMetadata(t *testing.T) {
	text := "# Code\n\n```\npackage main\n\nfunc main() {}\n\nfunc helper(x int) int { return x }\n\ntype Server struct{}\n```\n\n" +
		"```python\nclass Parser:\n    def parse(self):\n        pass\n```\n"
	cfg := DefaultConfig()
	cfg.Strategy = "code"
	res := mustChunk(t, text, cfg)

	require.Len(t, res.Chunks, 1)
	c := res.Chunks[0]
	assert.Equal(t, []string{"main", "helper", "parse"}, c.Metadata[doctree.MetaFunctionNames])
	assert.Equal(t, []string{"Server", "Parser"}, c.Metadata[doctree.MetaClassNames])
	assert.Contains(t, []string{"go", "python"}, c.String(doctree.MetaLanguage))
	assert.Equal(t, 2, c.Int(doctree.MetaCodeBlockCount))
	assert.True(t, c.Bool(doctree.MetaHasCode))
}

func TestChunk_ListStrategyKeepsSubtreesAndIntro(t *testing.T) {
	var b strings.Builder
	b.WriteString("Things to pack for the trip:\n\n")
	for i := 1; i <= 8; i++ {
		fmt.Fprintf(&b, "- Item %d with a short description\n  - detail %d.a\n  - detail %d.b\n", i, i, i)
	}
	text := b.String()

	cfg := testConfig(260)
	cfg.Strategy = "list"
	cfg.EnableOverlap = false
	res := mustChunk(t, text, cfg)
	checkInvariants(t, text, res)

	require.Greater(t, len(res.Chunks), 1)
	assert.True(t, strings.HasPrefix(res.Chunks[0].Content, "Things to pack for the trip:\n\n- Item 1"))
	for i, c := range res.Chunks[1:] {
		assert.True(t, strings.HasPrefix(c.Content, "- Item"), "chunk %d starts mid-hierarchy: %q", i+1, c.Content)
	}
}

func TestChunk_ListNeverAutoSelected(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "- entry %d\n\n", i)
	}
	res := mustChunk(t, b.String(), DefaultConfig())
	assert.NotEqual(t, "list", res.StrategyUsed)

	var list StrategyScore
	for _, s := range res.Scores {
		if s.Strategy == StrategyList {
			list = s
		}
	}
	assert.True(t, list.Applicable)
}

func TestChunk_StructuralHeaderPaths(t *testing.T) {
	// Configuration with its Advanced subsection exceeds 300 runes, so it
	// splits along the subsection.
	cfg := testConfig(300)
	cfg.Strategy = "structural"
	cfg.EnableOverlap = false
	cfg.MinChunkSize = 0
	res := mustChunk(t, guideDoc, cfg)

	paths := map[string]bool{}
	for _, c := range res.Chunks {
		paths[c.String(doctree.MetaHeaderPath)] = true
	}
	assert.True(t, paths["/Project Guide/Configuration"], "paths: %v", paths)
	assert.True(t, paths["/Project Guide/Configuration/Advanced"], "paths: %v", paths)
	assert.True(t, paths["/Project Guide/Usage"], "paths: %v", paths)
}

func TestChunk_StrictAndWeightedModes(t *testing.T) {
	var b strings.Builder
	b.WriteString("Intro line for the report.\n\n```go\n")
	for i := 0; i < 12; i++ {
		b.WriteString("fmt.Println(\"value\", x)\n")
	}
	b.WriteString("```\n\n| name | value |\n|------|-------|\n")
	for i := 0; i < 24; i++ {
		b.WriteString("| item | 12345 |\n")
	}
	text := b.String()

	strict := DefaultConfig()
	res := mustChunk(t, text, strict)
	require.GreaterOrEqual(t, res.Profile.CodeRatio, 0.3)
	require.Equal(t, doctree.ContentTableHeavy, res.Profile.ContentType)
	assert.Equal(t, "code", res.StrategyUsed)

	weighted := DefaultConfig()
	weighted.Mode = ModeWeighted
	weighted.DensityBoost = 0.5
	res = mustChunk(t, text, weighted)
	assert.Equal(t, "table", res.StrategyUsed)
}

func TestChunk_OverlapFromPreviousChunk(t *testing.T) {
	cfg := testConfig(300)
	cfg.Strategy = "sentences"
	cfg.OverlapSize = 60
	res := mustChunk(t, proseDoc(), cfg)
	checkInvariants(t, proseDoc(), res)

	overlapped := 0
	for i, c := range res.Chunks {
		if !c.Bool(doctree.MetaHasOverlap) {
			continue
		}
		overlapped++
		assert.Equal(t, i-1, c.Int(doctree.MetaOverlapSource))
		n := c.Int(doctree.MetaOverlapChars)
		tail := strings.TrimSuffix(string([]rune(c.Content)[:n]), "\n\n")
		prev := res.Chunks[i-1].Content
		assert.True(t, strings.HasSuffix(prev, tail), "overlap %q is not a tail of chunk %d", tail, i-1)
		assert.LessOrEqual(t, n, 62)
	}
	assert.Greater(t, overlapped, 0)
}

func TestChunk_AdaptiveSizing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseAdaptiveSizing = true
	res := mustChunk(t, "Plain prose. Nothing else at all.", cfg)
	assert.InDelta(t, 750, res.EffectiveMaxSize, 50)

	cfg.AdaptiveSizing.Weights.Code = 0.9
	_, err := Chunk("text", cfg)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Field, "adaptive_sizing")
}

func TestChunk_ChunkMetadata(t *testing.T) {
	res := mustChunk(t, guideDoc, testConfig(400))
	for i, c := range res.Chunks {
		assert.Equal(t, i, c.Int(doctree.MetaChunkIndex))
		assert.Equal(t, len(res.Chunks), c.Int(doctree.MetaTotalChunks))
		assert.Equal(t, runeLen(c.Content), c.Int(doctree.MetaSize))
		assert.Equal(t, res.StrategyUsed, c.String(doctree.MetaStrategy))
		assert.Len(t, c.String(doctree.MetaChunkID), 36)
		assert.Positive(t, c.Int(doctree.MetaTokenEstimate))
	}
}

func TestRunChain_FallsBackOnFailure(t *testing.T) {
	c, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	r := c.prepare("# A\n\ntext here.\n")

	chunks, used, fellBack, errs := r.runChain(Strategy(99))
	assert.Equal(t, StrategyStructural, used)
	assert.True(t, fellBack)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "strategy(99)")
	assert.NotEmpty(t, chunks)
}

func TestExecute_RecoversPanics(t *testing.T) {
	c, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	r := c.prepare("# A\n\ntext here.\n")
	r.tree = nil

	_, err = r.execute(StrategyStructural)
	var se *StrategyError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StrategyStructural, se.Strategy)
	assert.Contains(t, se.Error(), "panic")
}

func TestMixed_InconsistentElementsUsePatternDetection(t *testing.T) {
	c, err := New(testConfig(300), nil)
	require.NoError(t, err)
	text := "# Notes\n\nPlain prose line that is not code.\n\n```sh\nmake build\n```\n\n## More\n\nClosing words.\n"
	r := c.prepare(text)
	r.doc.CodeBlocks = append(r.doc.CodeBlocks, doctree.CodeBlock{StartLine: 3, EndLine: 3, Closed: true})
	require.NotEmpty(t, parser.Inconsistencies(r.doc))

	chunks, used, fellBack, errs := r.runChain(StrategyMixed)
	assert.Equal(t, StrategyMixed, used)
	assert.False(t, fellBack)
	assert.Empty(t, errs)
	require.NotEmpty(t, chunks)
	assert.Contains(t, strings.Join(r.warnings, "\n"), "parsing degradation")

	var all strings.Builder
	for _, ch := range chunks {
		all.WriteString(ch.Content)
		all.WriteString("\n")
	}
	assert.Contains(t, all.String(), "Plain prose line that is not code.")
	assert.Contains(t, all.String(), "make build")
	assert.Contains(t, all.String(), "Closing words.")
}

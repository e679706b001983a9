package doctree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHeaderTree(t *testing.T) {
	tree := BuildHeaderTree([]Header{
		{Level: 1, Text: "Guide", Line: 1, End: 1},
		{Level: 2, Text: "Install", Line: 5, End: 5},
		{Level: 3, Text: "Linux", Line: 9, End: 9},
		{Level: 2, Text: "Usage", Line: 14, End: 14},
		{Level: 1, Text: "Appendix", Line: 20, End: 20},
	})

	assert.Equal(t, []int{0, 4}, tree.Roots)
	assert.Equal(t, []int{1, 3}, tree.Nodes[0].Children)
	assert.Equal(t, 1, tree.Nodes[2].Parent)
	assert.Equal(t, 3, tree.Depth())
	assert.Equal(t, []string{"Guide", "Install", "Linux"}, tree.Path(2))
	assert.Equal(t, "/Guide/Usage", tree.PathString(3))
	assert.Equal(t, "", tree.PathString(7))

	assert.Equal(t, 19, tree.SectionEnd(0, 30))
	assert.Equal(t, 13, tree.SectionEnd(1, 30))
	assert.Equal(t, 13, tree.SectionEnd(2, 30))
	assert.Equal(t, 30, tree.SectionEnd(4, 30))
}

func TestBuildHeaderTree_SkippedLevels(t *testing.T) {
	tree := BuildHeaderTree([]Header{
		{Level: 3, Text: "Deep", Line: 1},
		{Level: 1, Text: "Top", Line: 3},
		{Level: 4, Text: "Child", Line: 5},
	})
	assert.Equal(t, []int{0, 1}, tree.Roots)
	assert.Equal(t, 1, tree.Nodes[2].Parent)
	assert.Equal(t, 2, tree.Depth())
	assert.Zero(t, BuildHeaderTree(nil).Depth())
}

func TestDocumentSlice(t *testing.T) {
	doc := NewDocument("a\r\nb\rc\nd")
	require.Equal(t, 4, doc.LineCount())
	assert.Equal(t, "b\nc", doc.Slice(2, 3))
	assert.Equal(t, "a\nb\nc\nd", doc.Slice(0, 99))
	assert.Equal(t, "", doc.Slice(3, 2))
}

func TestDocumentElementsOrdered(t *testing.T) {
	doc := &Document{
		Headers:    []Header{{Level: 1, Text: "T", Line: 1, End: 1}},
		Tables:     []Table{{StartLine: 3, EndLine: 5}},
		CodeBlocks: []CodeBlock{{StartLine: 7, EndLine: 9}},
		Lists:      []ListBlock{{StartLine: 11, EndLine: 12}},
	}
	var kinds []ElementKind
	for _, el := range doc.Elements() {
		kinds = append(kinds, el.Kind)
	}
	assert.Equal(t, []ElementKind{KindHeader, KindTable, KindCode, KindList}, kinds)

	assert.Equal(t, -1, doc.HeaderAt(0))
	assert.Equal(t, 0, doc.HeaderAt(8))
}

func TestListBlockGroups(t *testing.T) {
	l := ListBlock{Items: []ListItem{
		{Depth: 1}, {Depth: 0}, {Depth: 1}, {Depth: 2}, {Depth: 0},
	}}
	assert.Equal(t, [][2]int{{0, 1}, {1, 4}, {4, 5}}, l.TopLevelGroups())
	assert.Equal(t, 2, l.MaxDepth())
	assert.Nil(t, (&ListBlock{}).TopLevelGroups())
}

func TestChunkValidate(t *testing.T) {
	c := Chunk{Content: "x", StartLine: 2, EndLine: 2}
	assert.NoError(t, c.Validate())

	c.Content = "  \n"
	assert.Error(t, c.Validate())

	c = Chunk{Content: "x", StartLine: 3, EndLine: 2}
	assert.Error(t, c.Validate())

	c = Chunk{Content: "x", StartLine: 1, EndLine: 1}
	c.Set(MetaAllowOversize, true)
	c.Set(MetaTableRows, 4)
	assert.True(t, c.IsOversize())
	assert.Equal(t, 4, c.Int(MetaTableRows))
	assert.Equal(t, "", c.String(MetaLanguage))
	assert.Equal(t, []string{"a", "b", ""}, SplitTableRow("| a | b | |"))
}

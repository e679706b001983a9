package doctree

import (
	"errors"
	"strings"
)

// Metadata keys attached to chunks.
const (
	MetaStrategy        = "strategy"
	MetaContentType     = "content_type"
	MetaChunkIndex      = "chunk_index"
	MetaTotalChunks     = "total_chunks"
	MetaChunkID         = "chunk_id"
	MetaSize            = "size"
	MetaLineCount       = "line_count"
	MetaWordCount       = "word_count"
	MetaTokenEstimate   = "token_estimate"
	MetaAllowOversize   = "allow_oversize"
	MetaOversizeReason  = "oversize_reason"
	MetaHeaderLevel     = "header_level"
	MetaHeaderText      = "header_text"
	MetaHeaderPath      = "header_path"
	MetaIsPreamble      = "is_preamble"
	MetaLanguage        = "language"
	MetaFunctionNames   = "function_names"
	MetaClassNames      = "class_names"
	MetaHasCode         = "has_code"
	MetaHasTable        = "has_table"
	MetaHasList         = "has_list"
	MetaCodeBlockCount  = "code_block_count"
	MetaTableCount      = "table_count"
	MetaTableRows       = "table_rows"
	MetaSplitPart       = "split_part"
	MetaTotalParts      = "total_parts"
	MetaIsTableGroup    = "is_table_group"
	MetaTableGroupCount = "table_group_count"
	MetaListItemCount   = "list_item_count"
	MetaMaxListDepth    = "max_list_depth"
	MetaHasCheckboxes   = "has_checkboxes"
	MetaListType        = "list_type"
	MetaHasOverlap      = "has_overlap"
	MetaOverlapChars    = "overlap_chars"
	MetaOverlapSource   = "overlap_source_index"
	MetaSentenceCount   = "sentence_count"
)

// Oversize reason codes.
const (
	ReasonCodeBlock      = "code_block_atomicity"
	ReasonTableIntegrity = "table_integrity"
	ReasonWideTableRow   = "wide_table_row"
	ReasonListHierarchy  = "list_hierarchy"
	ReasonSectionHeader  = "section_integrity"
	ReasonIndivisible    = "indivisible_text"
)

// Chunk is a size-bounded slice of a document with its position and metadata.
type Chunk struct {
	Content   string         `json:"content"`
	StartLine int            `json:"start_line"` // 1-indexed, inclusive
	EndLine   int            `json:"end_line"`   // 1-indexed, inclusive
	Metadata  map[string]any `json:"metadata"`
}

// Validate checks the chunk invariants.
func (c *Chunk) Validate() error {
	if strings.TrimSpace(c.Content) == "" {
		return errors.New("chunk content cannot be empty")
	}
	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}
	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}
	return nil
}

// Set stores a metadata value, allocating the map when needed.
func (c *Chunk) Set(key string, value any) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[key] = value
}

// String returns a string metadata value or "".
func (c *Chunk) String(key string) string {
	s, _ := c.Metadata[key].(string)
	return s
}

// Int returns an int metadata value or 0.
func (c *Chunk) Int(key string) int {
	n, _ := c.Metadata[key].(int)
	return n
}

// Bool returns a bool metadata value or false.
func (c *Chunk) Bool(key string) bool {
	b, _ := c.Metadata[key].(bool)
	return b
}

// IsOversize reports whether the chunk was allowed to exceed the size envelope.
func (c *Chunk) IsOversize() bool {
	return c.Bool(MetaAllowOversize)
}

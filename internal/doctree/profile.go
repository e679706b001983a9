package doctree

// Content types reported by Profile.ContentType.
const (
	ContentCodeHeavy  = "code_heavy"
	ContentListHeavy  = "list_heavy"
	ContentTableHeavy = "table_heavy"
	ContentTextHeavy  = "text_heavy"
	ContentMixed      = "mixed"
)

// Profile is the aggregate analysis of a document. It is computed once and
// treated as read-only by every chunking component.
type Profile struct {
	TotalChars int `json:"total_chars"`
	TotalLines int `json:"total_lines"`

	CodeChars  int `json:"code_chars"`
	ListChars  int `json:"list_chars"`
	TableChars int `json:"table_chars"`
	TextChars  int `json:"text_chars"`

	CodeRatio  float64 `json:"code_ratio"`
	ListRatio  float64 `json:"list_ratio"`
	TableRatio float64 `json:"table_ratio"`
	TextRatio  float64 `json:"text_ratio"`

	CodeBlockCount int `json:"code_block_count"`
	ListCount      int `json:"list_count"`
	ListItemCount  int `json:"list_item_count"`
	MaxListDepth   int `json:"max_list_depth"`
	TableCount     int `json:"table_count"`
	HeaderCount    int `json:"header_count"`
	MaxHeaderLevel int `json:"max_header_level"`
	HeaderDepth    int `json:"header_depth"` // depth of the header tree

	Languages []string `json:"languages,omitempty"`

	AvgSentenceLength float64 `json:"avg_sentence_length"`
	Complexity        float64 `json:"complexity"`
	ContentType       string  `json:"content_type"`
	HasMixedContent   bool    `json:"has_mixed_content"`
}

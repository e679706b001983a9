package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/mdchunk/internal/sizing"
)

// SelectionMode chooses how the automatic strategy selector ranks candidates.
type SelectionMode string

const (
	ModeStrict   SelectionMode = "strict"
	ModeWeighted SelectionMode = "weighted"
)

// Thresholds drive strategy applicability.
type Thresholds struct {
	CodeRatio     float64 `yaml:"code_ratio" json:"code_ratio"`
	MinCodeBlocks int     `yaml:"min_code_blocks" json:"min_code_blocks"`
	ListRatio     float64 `yaml:"list_ratio" json:"list_ratio"`
	ListCount     int     `yaml:"list_count" json:"list_count"`
	TableRatio    float64 `yaml:"table_ratio" json:"table_ratio"`
	TableCount    int     `yaml:"table_count" json:"table_count"`
	HeaderCount   int     `yaml:"header_count" json:"header_count"`
	Complexity    float64 `yaml:"complexity" json:"complexity"`
}

// TableGroupingConfig controls merging of nearby tables into one chunk.
type TableGroupingConfig struct {
	Enabled            bool `yaml:"enabled" json:"enabled"`
	MaxDistanceLines   int  `yaml:"max_distance_lines" json:"max_distance_lines"`
	RequireSameSection bool `yaml:"require_same_section" json:"require_same_section"`
	MaxGroupSize       int  `yaml:"max_group_size" json:"max_group_size"`
	MaxTablesPerGroup  int  `yaml:"max_tables_per_group" json:"max_tables_per_group"`
}

// Config controls chunking behavior. Sizes are measured in characters.
type Config struct {
	MaxChunkSize    int `yaml:"max_chunk_size" json:"max_chunk_size"`
	MinChunkSize    int `yaml:"min_chunk_size" json:"min_chunk_size"`
	TargetChunkSize int `yaml:"target_chunk_size" json:"target_chunk_size"`

	OverlapSize       int     `yaml:"overlap_size" json:"overlap_size"`
	OverlapPercentage float64 `yaml:"overlap_percentage" json:"overlap_percentage"`
	EnableOverlap     bool    `yaml:"enable_overlap" json:"enable_overlap"`

	// Strategy is "auto" or the name of a strategy to force.
	Strategy     string        `yaml:"strategy" json:"strategy"`
	Mode         SelectionMode `yaml:"selection_mode" json:"selection_mode"`
	DensityBoost float64       `yaml:"density_boost" json:"density_boost"`
	Thresholds   Thresholds    `yaml:"thresholds" json:"thresholds"`

	AllowOversize    bool   `yaml:"allow_oversize" json:"allow_oversize"`
	EnableFallback   bool   `yaml:"enable_fallback" json:"enable_fallback"`
	FallbackStrategy string `yaml:"fallback_strategy" json:"fallback_strategy"`

	UseAdaptiveSizing bool          `yaml:"use_adaptive_sizing" json:"use_adaptive_sizing"`
	AdaptiveSizing    sizing.Config `yaml:"adaptive_sizing" json:"adaptive_sizing"`

	TableGrouping TableGroupingConfig `yaml:"table_grouping" json:"table_grouping"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize:      4096,
		MinChunkSize:      512,
		TargetChunkSize:   2048,
		OverlapSize:       200,
		OverlapPercentage: 0.1,
		EnableOverlap:     true,
		Strategy:          StrategyAuto,
		Mode:              ModeStrict,
		DensityBoost:      0.2,
		Thresholds: Thresholds{
			CodeRatio:     0.3,
			MinCodeBlocks: 1,
			ListRatio:     0.6,
			ListCount:     5,
			TableRatio:    0.4,
			TableCount:    3,
			HeaderCount:   3,
			Complexity:    0.3,
		},
		AllowOversize:    true,
		EnableFallback:   true,
		FallbackStrategy: StrategySentences.String(),
		AdaptiveSizing:   sizing.DefaultConfig(),
		TableGrouping: TableGroupingConfig{
			MaxDistanceLines:   10,
			RequireSameSection: true,
			MaxGroupSize:       4096,
			MaxTablesPerGroup:  5,
		},
	}
}

// Validate checks c, correcting contradictory values in place. Each correction
// is returned as a warning; settings that cannot be corrected are errors.
func (c *Config) Validate() ([]string, error) {
	var warnings []string
	warnf := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	if c.MaxChunkSize <= 0 {
		return nil, &ConfigError{Field: "max_chunk_size", Message: "must be positive"}
	}
	if c.OverlapSize < 0 {
		return nil, &ConfigError{Field: "overlap_size", Message: "cannot be negative"}
	}

	if c.MinChunkSize < 0 {
		warnf("min_chunk_size %d is negative; using 0", c.MinChunkSize)
		c.MinChunkSize = 0
	}
	if c.MinChunkSize > c.MaxChunkSize {
		corrected := c.MaxChunkSize / 2
		warnf("min_chunk_size %d exceeds max_chunk_size %d; using %d", c.MinChunkSize, c.MaxChunkSize, corrected)
		c.MinChunkSize = corrected
	}
	if c.TargetChunkSize < c.MinChunkSize || c.TargetChunkSize > c.MaxChunkSize {
		corrected := (c.MinChunkSize + c.MaxChunkSize) / 2
		warnf("target_chunk_size %d outside [%d, %d]; using %d", c.TargetChunkSize, c.MinChunkSize, c.MaxChunkSize, corrected)
		c.TargetChunkSize = corrected
	}
	if c.OverlapSize >= c.MaxChunkSize {
		corrected := c.MaxChunkSize / 4
		warnf("overlap_size %d is not smaller than max_chunk_size %d; using %d", c.OverlapSize, c.MaxChunkSize, corrected)
		c.OverlapSize = corrected
	}
	if c.OverlapPercentage < 0 || c.OverlapPercentage > 1 {
		corrected := min(1, max(0, c.OverlapPercentage))
		warnf("overlap_percentage %.2f outside [0, 1]; using %.2f", c.OverlapPercentage, corrected)
		c.OverlapPercentage = corrected
	}

	if c.Strategy == "" {
		c.Strategy = StrategyAuto
	}
	if !strings.EqualFold(c.Strategy, StrategyAuto) {
		if _, err := ParseStrategy(c.Strategy); err != nil {
			return nil, &ConfigError{Field: "strategy", Message: err.Error()}
		}
	}
	if c.FallbackStrategy == "" {
		c.FallbackStrategy = StrategySentences.String()
	}
	if _, err := ParseStrategy(c.FallbackStrategy); err != nil {
		return nil, &ConfigError{Field: "fallback_strategy", Message: err.Error()}
	}

	switch c.Mode {
	case ModeStrict, ModeWeighted:
	case "":
		c.Mode = ModeStrict
	default:
		return nil, &ConfigError{Field: "selection_mode", Message: fmt.Sprintf("unknown mode %q", c.Mode)}
	}
	if c.DensityBoost < 0 {
		warnf("density_boost %.2f is negative; using 0", c.DensityBoost)
		c.DensityBoost = 0
	}

	t := c.Thresholds
	for _, r := range []struct {
		name string
		v    float64
	}{
		{"thresholds.code_ratio", t.CodeRatio},
		{"thresholds.list_ratio", t.ListRatio},
		{"thresholds.table_ratio", t.TableRatio},
		{"thresholds.complexity", t.Complexity},
	} {
		if r.v < 0 || r.v > 1 {
			return nil, &ConfigError{Field: r.name, Message: fmt.Sprintf("%.2f outside [0, 1]", r.v)}
		}
	}
	if t.MinCodeBlocks < 0 || t.ListCount < 0 || t.TableCount < 0 || t.HeaderCount < 0 {
		return nil, &ConfigError{Field: "thresholds", Message: "counts cannot be negative"}
	}

	if c.UseAdaptiveSizing {
		if err := c.AdaptiveSizing.Validate(); err != nil {
			var se *sizing.Error
			if errors.As(err, &se) {
				return nil, &ConfigError{Field: "adaptive_sizing." + se.Field, Message: se.Message}
			}
			return nil, &ConfigError{Field: "adaptive_sizing", Message: err.Error()}
		}
	}

	g := &c.TableGrouping
	if g.Enabled {
		if g.MaxDistanceLines < 0 {
			warnf("table_grouping.max_distance_lines %d is negative; using 0", g.MaxDistanceLines)
			g.MaxDistanceLines = 0
		}
		if g.MaxGroupSize <= 0 || g.MaxGroupSize > c.MaxChunkSize {
			warnf("table_grouping.max_group_size %d outside (0, %d]; using %d", g.MaxGroupSize, c.MaxChunkSize, c.MaxChunkSize)
			g.MaxGroupSize = c.MaxChunkSize
		}
		if g.MaxTablesPerGroup < 2 {
			warnf("table_grouping.max_tables_per_group %d cannot form groups; using 2", g.MaxTablesPerGroup)
			g.MaxTablesPerGroup = 2
		}
	}

	return warnings, nil
}

// override returns the forced strategy, if any.
func (c *Config) override() (Strategy, bool) {
	if strings.EqualFold(c.Strategy, StrategyAuto) || c.Strategy == "" {
		return 0, false
	}
	s, err := ParseStrategy(c.Strategy)
	return s, err == nil
}

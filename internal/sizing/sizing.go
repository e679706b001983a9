// Package sizing scales the chunk size envelope to the measured complexity of
// a document: code and table heavy content gets larger chunks, plain prose
// smaller ones.
package sizing

import (
	"fmt"
	"math"

	"github.com/dgallion1/mdchunk/internal/doctree"
)

const weightTolerance = 0.01

// Weights are the per-factor contributions to the complexity score.
type Weights struct {
	Code           float64 `yaml:"code" json:"code"`
	Table          float64 `yaml:"table" json:"table"`
	List           float64 `yaml:"list" json:"list"`
	SentenceLength float64 `yaml:"sentence_length" json:"sentence_length"`
}

func (w Weights) sum() float64 {
	return w.Code + w.Table + w.List + w.SentenceLength
}

// Config holds the adaptive sizing parameters.
type Config struct {
	BaseSize int     `yaml:"base_size" json:"base_size"`
	MinScale float64 `yaml:"min_scale" json:"min_scale"`
	MaxScale float64 `yaml:"max_scale" json:"max_scale"`
	Weights  Weights `yaml:"weights" json:"weights"`
}

// DefaultConfig returns the default sizing parameters.
func DefaultConfig() Config {
	return Config{
		BaseSize: 1500,
		MinScale: 0.5,
		MaxScale: 1.5,
		Weights:  Weights{Code: 0.4, Table: 0.3, List: 0.2, SentenceLength: 0.1},
	}
}

// Error reports an invalid sizing configuration.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("adaptive sizing %s: %s", e.Field, e.Message)
}

// Validate checks the scale range and that the weights sum to one.
func (c Config) Validate() error {
	if c.BaseSize <= 0 {
		return &Error{Field: "base_size", Message: "must be positive"}
	}
	if c.MinScale <= 0 || c.MaxScale <= 0 {
		return &Error{Field: "scale", Message: "scale factors must be positive"}
	}
	if c.MinScale > c.MaxScale {
		return &Error{Field: "scale", Message: fmt.Sprintf("min_scale %.2f exceeds max_scale %.2f", c.MinScale, c.MaxScale)}
	}
	w := c.Weights
	for _, v := range []float64{w.Code, w.Table, w.List, w.SentenceLength} {
		if v < 0 {
			return &Error{Field: "weights", Message: "weights cannot be negative"}
		}
	}
	if math.Abs(w.sum()-1) > weightTolerance {
		return &Error{Field: "weights", Message: fmt.Sprintf("weights sum to %.3f, expected 1.0", w.sum())}
	}
	return nil
}

// Calculator maps a content profile to an effective maximum chunk size.
// It is a pure function of its configuration and input.
type Calculator struct {
	cfg Config
}

// New validates cfg and returns a Calculator.
func New(cfg Config) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{cfg: cfg}, nil
}

// Complexity returns the weighted complexity score of p in [0, 1].
func (c *Calculator) Complexity(p doctree.Profile) float64 {
	w := c.cfg.Weights
	score := w.Code*clamp01(p.CodeRatio) +
		w.Table*clamp01(p.TableRatio) +
		w.List*clamp01(p.ListRatio) +
		w.SentenceLength*clamp01(p.AvgSentenceLength/100)
	return clamp01(score)
}

// Size returns the effective maximum chunk size for p, capped at absoluteMax
// when absoluteMax is positive.
func (c *Calculator) Size(p doctree.Profile, absoluteMax int) int {
	base := float64(c.cfg.BaseSize)
	lo, hi := base*c.cfg.MinScale, base*c.cfg.MaxScale

	size := base * (c.cfg.MinScale + c.Complexity(p)*(c.cfg.MaxScale-c.cfg.MinScale))
	size = math.Max(lo, math.Min(hi, size))

	n := int(math.Round(size))
	if absoluteMax > 0 && n > absoluteMax {
		n = absoluteMax
	}
	return n
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

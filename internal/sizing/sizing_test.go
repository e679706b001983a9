package sizing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/mdchunk/internal/doctree"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*Config)
		field string
	}{
		{"weights off", func(c *Config) { c.Weights.Code = 0.9 }, "weights"},
		{"negative weight", func(c *Config) { c.Weights.Code = -0.1; c.Weights.Table = 0.8 }, "weights"},
		{"inverted scale", func(c *Config) { c.MinScale = 2 }, "scale"},
		{"zero base", func(c *Config) { c.BaseSize = 0 }, "base_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mut(&cfg)
			_, err := New(cfg)
			var se *Error
			require.True(t, errors.As(err, &se), "expected *Error, got %v", err)
			assert.Equal(t, tt.field, se.Field)
		})
	}
}

func TestNew_WeightTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Code = 0.405
	_, err := New(cfg)
	assert.NoError(t, err)
}

func TestSize_ScalesWithComplexity(t *testing.T) {
	calc, err := New(DefaultConfig())
	require.NoError(t, err)

	prose := doctree.Profile{TextRatio: 1}
	code := doctree.Profile{CodeRatio: 1}
	full := doctree.Profile{CodeRatio: 1, TableRatio: 1, ListRatio: 1, AvgSentenceLength: 250}

	assert.Equal(t, 750, calc.Size(prose, 0))
	assert.Equal(t, 1350, calc.Size(code, 0))
	assert.Equal(t, 2250, calc.Size(full, 0))
	assert.Less(t, calc.Size(prose, 0), calc.Size(code, 0))
}

func TestSize_CappedByAbsoluteMax(t *testing.T) {
	calc, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 1000, calc.Size(doctree.Profile{CodeRatio: 1}, 1000))
}

func TestComplexity_ClampsFactors(t *testing.T) {
	calc, err := New(DefaultConfig())
	require.NoError(t, err)
	c := calc.Complexity(doctree.Profile{AvgSentenceLength: 1000})
	assert.InDelta(t, 0.1, c, 1e-9)
}

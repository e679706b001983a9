package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigValidate_Corrections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(*testing.T, Config)
	}{
		{
			name:   "min above max",
			mutate: func(c *Config) { c.MinChunkSize = 5000 },
			check: func(t *testing.T, c Config) {
				assert.Equal(t, 2048, c.MinChunkSize)
			},
		},
		{
			name:   "target outside range",
			mutate: func(c *Config) { c.TargetChunkSize = 9000 },
			check: func(t *testing.T, c Config) {
				assert.Equal(t, (512+4096)/2, c.TargetChunkSize)
			},
		},
		{
			name:   "overlap not smaller than max",
			mutate: func(c *Config) { c.OverlapSize = 4096 },
			check: func(t *testing.T, c Config) {
				assert.Equal(t, 1024, c.OverlapSize)
			},
		},
		{
			name:   "overlap percentage clamped",
			mutate: func(c *Config) { c.OverlapPercentage = 1.5 },
			check: func(t *testing.T, c Config) {
				assert.Equal(t, 1.0, c.OverlapPercentage)
			},
		},
		{
			name:   "negative boost",
			mutate: func(c *Config) { c.DensityBoost = -1 },
			check: func(t *testing.T, c Config) {
				assert.Zero(t, c.DensityBoost)
			},
		},
		{
			name: "group size capped at max",
			mutate: func(c *Config) {
				c.TableGrouping.Enabled = true
				c.TableGrouping.MaxGroupSize = 10000
			},
			check: func(t *testing.T, c Config) {
				assert.Equal(t, 4096, c.TableGrouping.MaxGroupSize)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			warnings, err := cfg.Validate()
			require.NoError(t, err)
			assert.Len(t, warnings, 1)
			tt.check(t, cfg)
		})
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero max", func(c *Config) { c.MaxChunkSize = 0 }, "max_chunk_size"},
		{"negative overlap", func(c *Config) { c.OverlapSize = -1 }, "overlap_size"},
		{"unknown strategy", func(c *Config) { c.Strategy = "paragraphs" }, "strategy"},
		{"unknown fallback", func(c *Config) { c.FallbackStrategy = "none" }, "fallback_strategy"},
		{"unknown mode", func(c *Config) { c.Mode = "fuzzy" }, "selection_mode"},
		{"ratio out of range", func(c *Config) { c.Thresholds.TableRatio = 2 }, "thresholds.table_ratio"},
		{"bad weights", func(c *Config) {
			c.UseAdaptiveSizing = true
			c.AdaptiveSizing.Weights.Table = 0.8
		}, "adaptive_sizing.weights"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestConfigOverride(t *testing.T) {
	cfg := DefaultConfig()
	_, ok := cfg.override()
	assert.False(t, ok)

	cfg.Strategy = "Table"
	s, ok := cfg.override()
	assert.True(t, ok)
	assert.Equal(t, StrategyTable, s)
}

func TestParseStrategy(t *testing.T) {
	for _, s := range AllStrategies {
		got, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStrategy("auto")
	assert.Error(t, err)

	var s Strategy
	require.NoError(t, s.UnmarshalText([]byte(" LIST ")))
	assert.Equal(t, StrategyList, s)
	assert.Equal(t, "strategy(0)", Strategy(0).String())
}

package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
)

func TestDefaultScoringConfigMatchesDefaults(t *testing.T) {
	assert.Equal(t, config.Default().Scoring, DefaultScoringConfig())
	assert.InDelta(t, 100.0, DefaultScoringConfig().Weights.Sum(), 0.001)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.ScoringConfig)
		want   string
	}{
		{"valid", func(c *config.ScoringConfig) {}, ""},
		{"negative weight", func(c *config.ScoringConfig) { c.Weights.SEO = -20; c.Weights.Performance = 80 }, "weights.seo must be >= 0"},
		{"zero sum", func(c *config.ScoringConfig) { c.Weights = config.WeightsConfig{} }, "weight sum must be > 0"},
		{"off sum", func(c *config.ScoringConfig) { c.Weights.Security = 20 }, "weights should sum to 100"},
		{"neutral range", func(c *config.ScoringConfig) { c.Neutral = 120 }, "neutral must be between 0 and 100"},
		{"threshold range", func(c *config.ScoringConfig) { c.RedMobileBelow = 101 }, "red_mobile_below must be between 0 and 100"},
		{"green above red", func(c *config.ScoringConfig) { c.GreenPainBelow = 70 }, "green_pain_below must be <= red_pain_at_least"},
		{"green mobile below red", func(c *config.ScoringConfig) { c.GreenMobileAtLeast = 50 }, "green_mobile_at_least must be >= red_mobile_below"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultScoringConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(cfg)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

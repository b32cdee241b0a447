// Package scorer computes the weighted pain score and RED/YELLOW/GREEN
// qualification for a lead from its extracted website signals.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
)

// DefaultScoringConfig returns a config.ScoringConfig with the default
// weights and thresholds. Weights sum to 100.
func DefaultScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		// Weights (sum = 100).
		Weights: config.WeightsConfig{
			Performance: 40,
			Technology:  30,
			SEO:         20,
			Security:    10,
		},

		// Missing signals score here.
		Neutral: 50,

		// Thresholds.
		RedMobileBelow:     60,
		RedPainAtLeast:     65,
		GreenPainBelow:     35,
		GreenMobileAtLeast: 80,
	}
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	// All weights must be non-negative.
	weights := map[string]float64{
		"performance": c.Weights.Performance,
		"technology":  c.Weights.Technology,
		"seo":         c.Weights.SEO,
		"security":    c.Weights.Security,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("weights.%s must be >= 0", name))
		}
	}

	sum := c.Weights.Sum()

	// Weights must sum to a positive number.
	if sum <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}

	// Weights should be close to 100 (allow tolerance for floating-point).
	if math.Abs(sum-100) > 1 {
		errs = append(errs, fmt.Sprintf("weights should sum to 100, got %.1f", sum))
	}

	if c.Neutral < 0 || c.Neutral > 100 {
		errs = append(errs, "neutral must be between 0 and 100")
	}

	// Thresholds.
	for name, v := range map[string]int{
		"red_mobile_below":      c.RedMobileBelow,
		"red_pain_at_least":     c.RedPainAtLeast,
		"green_pain_below":      c.GreenPainBelow,
		"green_mobile_at_least": c.GreenMobileAtLeast,
	} {
		if v < 0 || v > 100 {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and 100", name))
		}
	}
	if c.GreenPainBelow > c.RedPainAtLeast {
		errs = append(errs, "green_pain_below must be <= red_pain_at_least")
	}
	if c.GreenMobileAtLeast < c.RedMobileBelow {
		errs = append(errs, "green_mobile_at_least must be >= red_mobile_below")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

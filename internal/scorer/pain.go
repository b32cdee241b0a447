package scorer

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// Breakdown is the 0-100 pain contribution of each signal before weighting.
type Breakdown struct {
	Performance float64 `json:"performance"`
	Technology  float64 `json:"technology"`
	SEO         float64 `json:"seo"`
	Security    float64 `json:"security"`
}

// Result is the output of the pain scoring engine.
type Result struct {
	PainScore     int                 `json:"pain_score"`
	Qualification model.Qualification `json:"qualification"`
	Factors       []string            `json:"pain_factors,omitempty"`
	Breakdown     Breakdown           `json:"breakdown"`
}

// Engine scores signal bundles. It holds no per-record state and is safe for
// concurrent use.
type Engine struct {
	cfg config.ScoringConfig
}

// New returns an Engine for cfg after validating it.
func New(cfg config.ScoringConfig) (*Engine, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Score computes the pain score and qualification for one record's signals.
// Missing signals contribute the neutral midpoint.
func (e *Engine) Score(rc *model.RunContext, s model.SignalBundle) Result {
	b := Breakdown{
		Performance: e.performancePain(s.MobileScore),
		Technology:  e.flagPain(s.ModernTech),
		SEO:         e.flagPain(s.LocalSEOComplete),
		Security:    e.flagPain(s.SSL),
	}

	w := e.cfg.Weights
	raw := (w.Performance*b.Performance + w.Technology*b.Technology +
		w.SEO*b.SEO + w.Security*b.Security) / w.Sum()
	pain := int(math.Round(math.Min(100, math.Max(0, raw))))

	res := Result{
		PainScore:     pain,
		Qualification: e.qualify(pain, s.MobileScore),
		Factors:       painFactors(b, s),
		Breakdown:     b,
	}

	rc.Logger().Debug("scorer: scored",
		zap.Int("pain_score", res.PainScore),
		zap.String("qualification", string(res.Qualification)),
	)
	return res
}

func (e *Engine) qualify(pain int, mobile *int) model.Qualification {
	// Mobile performance alone is enough for RED.
	if mobile != nil && *mobile < e.cfg.RedMobileBelow {
		return model.QualificationRed
	}
	if pain >= e.cfg.RedPainAtLeast {
		return model.QualificationRed
	}
	if pain < e.cfg.GreenPainBelow && (mobile == nil || *mobile >= e.cfg.GreenMobileAtLeast) {
		return model.QualificationGreen
	}
	return model.QualificationYellow
}

func (e *Engine) performancePain(mobile *int) float64 {
	if mobile == nil {
		return e.cfg.Neutral
	}
	m := math.Min(100, math.Max(0, float64(*mobile)))
	return 100 - m
}

// flagPain maps a healthy/unhealthy flag onto 0 or 100.
func (e *Engine) flagPain(healthy *bool) float64 {
	switch {
	case healthy == nil:
		return e.cfg.Neutral
	case *healthy:
		return 0
	default:
		return 100
	}
}

func painFactors(b Breakdown, s model.SignalBundle) []string {
	var factors []string
	if s.MobileScore != nil && b.Performance > 40 {
		factors = append(factors, fmt.Sprintf("Poor mobile performance (%d/100)", *s.MobileScore))
	}
	if s.ModernTech != nil && !*s.ModernTech {
		if len(s.OutdatedTech) > 0 {
			factors = append(factors, "Outdated technology stack ("+strings.Join(s.OutdatedTech, ", ")+")")
		} else {
			factors = append(factors, "Outdated technology stack")
		}
	}
	if s.LocalSEOComplete != nil && !*s.LocalSEOComplete {
		factors = append(factors, "Incomplete local SEO")
	}
	if s.SSL != nil && !*s.SSL {
		factors = append(factors, "No SSL certificate")
	}
	return factors
}

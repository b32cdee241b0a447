package estimate

import (
	"math"

	"go.uber.org/zap"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// Budget confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Estimate is the size and budget inference for one lead.
type Estimate struct {
	Tier           model.SizeTier    `json:"size_tier"`
	Category       string            `json:"category,omitempty"` // matched revenue category
	MonthlyRevenue int               `json:"monthly_revenue"`    // 0 when category unknown
	Budget         model.BudgetRange `json:"budget"`
	Confidence     string            `json:"budget_confidence"`
}

// Estimator maps review counts and categories onto size tiers and budgets.
// It never fails: absent inputs yield the lowest tier and widest range.
type Estimator struct {
	cfg     config.BudgetConfig
	revenue *revenueTable
	urgency []urgencyRule
}

// New builds an Estimator from cfg.
func New(cfg config.BudgetConfig) *Estimator {
	return &Estimator{
		cfg:     cfg,
		revenue: newRevenueTable(cfg.CategoryRevenue, cfg.DefaultRevenue),
		urgency: newUrgencyRules(cfg.Urgency),
	}
}

// Tier maps a review count onto a size tier.
func (e *Estimator) Tier(reviewCount int) model.SizeTier {
	switch {
	case reviewCount < e.cfg.BoutiqueBelow:
		return model.SizeBoutique
	case reviewCount <= e.cfg.MidSizeMax:
		return model.SizeMidSize
	default:
		return model.SizeLargeIndependent
	}
}

// Estimate infers tier and monthly software budget. Budget is PctLow..PctHigh
// percent of the category's base revenue scaled by the tier multiplier. With
// no known category the range spans the smallest to the largest base.
func (e *Estimator) Estimate(rc *model.RunContext, reviewCount int, categories []string, independence int) Estimate {
	if reviewCount < 0 {
		reviewCount = 0
	}
	tier := e.Tier(reviewCount)
	mult := e.tierMultiplier(tier)

	est := Estimate{Tier: tier}
	base, category, ok := e.revenue.lookup(categories)
	if ok {
		est.Category = category
		est.MonthlyRevenue = int(math.Round(float64(base) * mult))
		est.Budget = model.BudgetRange{
			Low:  pct(float64(base)*mult, e.cfg.PctLow),
			High: pct(float64(base)*mult, e.cfg.PctHigh),
		}
	} else {
		est.Budget = model.BudgetRange{
			Low:  pct(float64(e.revenue.min)*mult, e.cfg.PctLow),
			High: pct(float64(e.revenue.max)*mult, e.cfg.PctHigh),
		}
	}

	switch {
	case ok && reviewCount > 0 && independence >= e.cfg.HighConfidenceAbove:
		est.Confidence = ConfidenceHigh
	case ok || reviewCount > 0:
		est.Confidence = ConfidenceMedium
	default:
		est.Confidence = ConfidenceLow
	}

	rc.Logger().Debug("estimate: budget",
		zap.String("tier", string(est.Tier)),
		zap.String("category", est.Category),
		zap.Int("budget_low", est.Budget.Low),
		zap.Int("budget_high", est.Budget.High),
	)
	return est
}

func (e *Estimator) tierMultiplier(tier model.SizeTier) float64 {
	if m, ok := e.cfg.TierMultiplier[string(tier)]; ok && m > 0 {
		return m
	}
	return 1
}

func pct(revenue, percent float64) int {
	return int(math.Round(revenue * percent / 100))
}

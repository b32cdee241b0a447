package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

func newTestEstimator() *Estimator {
	return New(config.Default().Budget)
}

func TestTier(t *testing.T) {
	t.Parallel()
	e := newTestEstimator()

	tests := []struct {
		reviews int
		want    model.SizeTier
	}{
		{0, model.SizeBoutique},
		{49, model.SizeBoutique},
		{50, model.SizeMidSize},
		{300, model.SizeMidSize},
		{301, model.SizeLargeIndependent},
		{5000, model.SizeLargeIndependent},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.Tier(tt.reviews), "reviews=%d", tt.reviews)
	}
}

func TestEstimateKnownCategory(t *testing.T) {
	t.Parallel()
	e := newTestEstimator()

	// gym base 30000, mid_size x2 = 60000; 2% .. 3.5%
	got := e.Estimate(nil, 120, []string{"Gym"}, 80)
	assert.Equal(t, model.SizeMidSize, got.Tier)
	assert.Equal(t, "gym", got.Category)
	assert.Equal(t, 60000, got.MonthlyRevenue)
	assert.Equal(t, model.BudgetRange{Low: 1200, High: 2100}, got.Budget)
	assert.Equal(t, ConfidenceHigh, got.Confidence)
}

func TestEstimatePrefersSpecificCategory(t *testing.T) {
	t.Parallel()
	e := newTestEstimator()

	got := e.Estimate(nil, 10, []string{"Personal Training Gym"}, 60)
	assert.Equal(t, "personal training", got.Category)
	assert.Equal(t, model.BudgetRange{Low: 240, High: 420}, got.Budget)
}

func TestEstimateMissingInputsFallBack(t *testing.T) {
	t.Parallel()
	e := newTestEstimator()

	got := e.Estimate(nil, 0, nil, 0)
	assert.Equal(t, model.SizeBoutique, got.Tier)
	assert.Empty(t, got.Category)
	assert.Zero(t, got.MonthlyRevenue)
	assert.Equal(t, ConfidenceLow, got.Confidence)

	// Widest range: smallest base (12000) at pct_low, largest (45000) at pct_high.
	assert.Equal(t, model.BudgetRange{Low: 240, High: 1575}, got.Budget)

	known := e.Estimate(nil, 0, []string{"yoga"}, 0)
	assert.GreaterOrEqual(t, known.Budget.Low, got.Budget.Low)
	assert.LessOrEqual(t, known.Budget.High, got.Budget.High)
}

func TestEstimateNegativeReviews(t *testing.T) {
	t.Parallel()
	e := newTestEstimator()

	got := e.Estimate(nil, -4, []string{"yoga"}, 90)
	assert.Equal(t, model.SizeBoutique, got.Tier)
	assert.Equal(t, ConfidenceMedium, got.Confidence)
}

func TestEstimateConfigurableBands(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Budget
	cfg.BoutiqueBelow = 10
	cfg.MidSizeMax = 20
	cfg.PctLow = 1
	cfg.PctHigh = 1
	e := New(cfg)

	got := e.Estimate(nil, 25, []string{"yoga"}, 90)
	assert.Equal(t, model.SizeLargeIndependent, got.Tier)
	// yoga 15000 x4
	assert.Equal(t, model.BudgetRange{Low: 600, High: 600}, got.Budget)
}

package estimate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUrgency(t *testing.T) {
	t.Parallel()
	e := newTestEstimator()

	tests := []struct {
		name       string
		categories []string
		want       float64
	}{
		{"Iron CrossFit Fresno", nil, 2.8},
		{"Valley Strength", []string{"Boxing Gym"}, 2.5},
		{"Sunrise Studio", []string{"Yoga studio"}, 2.0},
		{"Open 24 Hour Gym", nil, 3.0},
		{"Main Street Gym", nil, 1.5},
		{"Sunrise Studio", nil, 1.5},
		{"Parks and Recreation Center", nil, 1.2},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, e.Urgency(tt.name, tt.categories), 0.0001, tt.name)
	}
}

func TestPriority(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Priority(true, 90, 90, 3.0))
	// 80*0.6 + 80*0.2 + 100*0.2 = 84
	assert.Equal(t, 84, Priority(false, 80, 80, 3.0))
	// 50*0.6 + 0 + 50*0.2 = 40
	assert.Equal(t, 40, Priority(false, 50, 0, 1.5))
	assert.Equal(t, 100, Priority(false, 100, 100, 9.0))
}

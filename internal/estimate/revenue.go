// Package estimate infers business size, monthly software budget and outreach
// urgency from review counts and category tags.
package estimate

import (
	"sort"
	"strings"

	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// revenueTable resolves category tags to a base monthly revenue.
type revenueTable struct {
	keys     []string // normalized, longest first
	revenue  map[string]int
	min, max int
	fallback int
}

func newRevenueTable(byCategory map[string]int, fallback int) *revenueTable {
	t := &revenueTable{revenue: make(map[string]int, len(byCategory)), fallback: fallback}
	for k, v := range byCategory {
		n := model.NormalizeText(k)
		if n == "" || v <= 0 {
			continue
		}
		t.revenue[n] = v
		t.keys = append(t.keys, n)
		if t.min == 0 || v < t.min {
			t.min = v
		}
		if v > t.max {
			t.max = v
		}
	}
	if t.min == 0 {
		t.min, t.max = fallback, fallback
	}

	// More specific keys ("personal training") win over shorter ones.
	sort.Slice(t.keys, func(i, j int) bool {
		if len(t.keys[i]) != len(t.keys[j]) {
			return len(t.keys[i]) > len(t.keys[j])
		}
		return t.keys[i] < t.keys[j]
	})
	return t
}

// lookup returns the base revenue for the first tag that matches a known
// category, and the category it matched.
func (t *revenueTable) lookup(tags []string) (int, string, bool) {
	for _, tag := range tags {
		padded := " " + model.NormalizeText(tag) + " "
		if strings.TrimSpace(padded) == "" {
			continue
		}
		for _, k := range t.keys {
			if strings.Contains(padded, " "+k+" ") {
				return t.revenue[k], k, true
			}
		}
	}
	return 0, "", false
}

package estimate

import (
	"math"
	"sort"
	"strings"

	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// maxUrgency is the multiplier that maps to a full urgency share of priority.
const maxUrgency = 3.0

type urgencyRule struct {
	keyword    string
	multiplier float64
}

// newUrgencyRules orders rules by multiplier descending so the most urgent
// matching business type wins.
func newUrgencyRules(table map[string]float64) []urgencyRule {
	rules := make([]urgencyRule, 0, len(table))
	for k, v := range table {
		if n := model.NormalizeText(k); n != "" && v > 0 {
			rules = append(rules, urgencyRule{keyword: n, multiplier: v})
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].multiplier != rules[j].multiplier {
			return rules[i].multiplier > rules[j].multiplier
		}
		return rules[i].keyword < rules[j].keyword
	})
	return rules
}

// Urgency returns the business-type urgency multiplier for a lead, matched
// against its name and category tags.
func (e *Estimator) Urgency(name string, categories []string) float64 {
	texts := make([]string, 0, len(categories)+1)
	texts = append(texts, " "+model.NormalizeText(name)+" ")
	for _, c := range categories {
		texts = append(texts, " "+model.NormalizeText(c)+" ")
	}

	for _, r := range e.urgency {
		for _, t := range texts {
			if strings.Contains(t, " "+r.keyword+" ") {
				return r.multiplier
			}
		}
	}
	return e.cfg.DefaultUrgency
}

// Priority blends pain, independence and urgency into a 0-100 outreach
// priority. Chains always get zero.
func Priority(isChain bool, painScore, independence int, urgency float64) int {
	if isChain {
		return 0
	}
	urgencyShare := math.Min(100, urgency/maxUrgency*100)
	p := float64(painScore)*0.6 + float64(independence)*0.2 + urgencyShare*0.2
	return int(math.Round(math.Min(100, math.Max(0, p))))
}

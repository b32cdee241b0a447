// Package classify decides whether a business name belongs to a national or
// regional chain and scores how likely it is to be independently owned.
package classify

import (
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// possessivePattern matches an owner-style possessive like "Joe's" or "Maria’s".
var possessivePattern = regexp.MustCompile(`(?i)\b\p{L}+['’]s\b`)

// Classifier holds the normalized chain list and independence token sets.
type Classifier struct {
	chains        []string
	ownerTokens   []string
	localTokens   []string
	legalSuffixes []string
	threshold     int
	points        config.IndependencePoints
}

// chainsFile is the on-disk shape of classifier.chains_file.
type chainsFile struct {
	Chains []string `yaml:"chains"`
}

// New builds a Classifier from cfg. Chains from cfg.ChainsFile are added to
// the configured list.
func New(cfg config.ClassifierConfig) (*Classifier, error) {
	chains := append([]string(nil), cfg.Chains...)
	if cfg.ChainsFile != "" {
		extra, err := LoadChainsFile(cfg.ChainsFile)
		if err != nil {
			return nil, err
		}
		chains = append(chains, extra...)
	}

	return &Classifier{
		chains:        normalizeAll(chains),
		ownerTokens:   normalizeAll(cfg.OwnerTokens),
		localTokens:   normalizeAll(cfg.LocalTokens),
		legalSuffixes: normalizeAll(cfg.LegalSuffixes),
		threshold:     cfg.ReviewThreshold,
		points:        cfg.Points,
	}, nil
}

// LoadChainsFile reads a YAML chain list. Both a bare list and a document
// with a top-level "chains" key are accepted.
func LoadChainsFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: read chains file %s", path)
	}

	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var doc chainsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "classify: parse chains file %s", path)
	}
	return doc.Chains, nil
}

// Classify returns the chain verdict and independence confidence for a
// business name. An empty name is never a chain and has zero confidence.
func (c *Classifier) Classify(rc *model.RunContext, name string, reviewCount int) model.Classification {
	norm := model.NormalizeText(name)
	if norm == "" {
		rc.Logger().Debug("classify: empty business name")
		return model.Classification{}
	}
	padded := " " + norm + " "

	var result model.Classification
	for _, frag := range c.chains {
		if containsWord(padded, frag) {
			result.IsChain = true
			result.MatchedOn = frag
			break
		}
	}

	earned := 0

	// 1. Owner or family naming.
	if possessivePattern.MatchString(name) || c.anyWord(padded, c.ownerTokens) {
		earned += c.points.OwnerToken
	}

	// 2. Local or regional branding.
	if c.anyWord(padded, c.localTokens) {
		earned += c.points.LocalToken
	}

	// 3. Review count below what chains typically accumulate.
	if reviewCount < c.threshold {
		earned += c.points.LowReviews
	}

	// 4. No legal-entity suffix.
	if !c.anyWord(padded, c.legalSuffixes) {
		earned += c.points.NoLegalSuffix
	}

	// 5. No chain list match.
	if !result.IsChain {
		earned += c.points.NoChainMatch
	}

	if total := c.points.Total(); total > 0 {
		result.Confidence = clamp((earned*100+total/2)/total, 0, 100)
	}

	if result.IsChain {
		rc.Logger().Debug("classify: chain match",
			zap.String("name", name),
			zap.String("fragment", result.MatchedOn),
		)
	}
	return result
}

func (c *Classifier) anyWord(padded string, tokens []string) bool {
	for _, tok := range tokens {
		if containsWord(padded, tok) {
			return true
		}
	}
	return false
}

// containsWord reports whether the space-padded normalized text contains
// phrase on word boundaries.
func containsWord(padded, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(padded, " "+phrase+" ")
}

func normalizeAll(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		n := model.NormalizeText(s)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

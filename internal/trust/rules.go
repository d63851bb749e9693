// Package trust turns registry entries into a score, a decision hint, and
// provenance. All logic here is pure; the only I/O is through the storage
// interfaces.
package trust

import (
	"sort"

	"trustgate/internal/domain"
)

// Thresholds is the 3-level table a context maps scores through. Boundaries
// are closed below: a score exactly equal to a threshold takes the higher
// tier.
type Thresholds struct {
	Allow  float64
	Limit  float64
	Review float64
}

// DefaultThresholds apply to any context without an override.
var DefaultThresholds = Thresholds{Allow: 0.6, Limit: 0.3, Review: 0.1}

// Rule maps a score to a decision hint. Contexts are tagged variants so that
// adding another inverted context is a data change, not a new branch.
type Rule interface {
	Hint(score float64) domain.DecisionHint
}

// StandardRule: higher score means more trust.
type StandardRule struct {
	Thresholds Thresholds
}

func (r StandardRule) Hint(score float64) domain.DecisionHint {
	switch {
	case score >= r.Thresholds.Allow:
		return domain.DecisionAllow
	case score >= r.Thresholds.Limit:
		return domain.DecisionAllowWithLimit
	case score >= r.Thresholds.Review:
		return domain.DecisionReview
	default:
		return domain.DecisionDeny
	}
}

// InvertedRule: higher score means more evidence of wrongdoing. The review
// threshold is the deny floor; only a zero score is a clean allow.
type InvertedRule struct {
	Thresholds Thresholds
}

func (r InvertedRule) Hint(score float64) domain.DecisionHint {
	switch {
	case score >= r.Thresholds.Review:
		return domain.DecisionDeny
	case score > 0:
		return domain.DecisionReview
	default:
		return domain.DecisionAllow
	}
}

// Ruleset holds the rule for every known context. A context absent from the
// set is unknown to the system, not implicitly standard.
type Ruleset struct {
	rules map[string]Rule
}

// Built-in contexts.
const (
	ContextCopyTrading = "copy_trading"
	ContextRuggerCheck = "rugger_check"
)

// DefaultRuleset returns the built-in contexts: copy_trading standard,
// rugger_check inverted.
func DefaultRuleset() *Ruleset {
	rs := NewRuleset()
	rs.SetStandard(ContextCopyTrading, DefaultThresholds)
	rs.SetInverted(ContextRuggerCheck, DefaultThresholds)
	return rs
}

func NewRuleset() *Ruleset {
	return &Ruleset{rules: make(map[string]Rule)}
}

func (rs *Ruleset) SetStandard(context string, t Thresholds) {
	rs.rules[context] = StandardRule{Thresholds: t}
}

func (rs *Ruleset) SetInverted(context string, t Thresholds) {
	rs.rules[context] = InvertedRule{Thresholds: t}
}

// Rule returns the rule for a context and whether the context is known.
func (rs *Ruleset) Rule(context string) (Rule, bool) {
	rule, ok := rs.rules[context]
	return rule, ok
}

// Contexts returns the known context names in ascending order.
func (rs *Ruleset) Contexts() []string {
	names := make([]string, 0, len(rs.rules))
	for name := range rs.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package trust

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"trustgate/internal/domain"
)

type RulesSuite struct {
	suite.Suite
}

func TestRulesSuite(t *testing.T) {
	suite.Run(t, new(RulesSuite))
}

// TestStandardRule verifies the 3-level table with closed-below boundaries: a
// score exactly on a threshold takes the higher tier.
func (s *RulesSuite) TestStandardRule() {
	rule := StandardRule{Thresholds: DefaultThresholds}

	tests := []struct {
		name  string
		score float64
		want  domain.DecisionHint
	}{
		{"well above allow", 0.95, domain.DecisionAllow},
		{"exactly allow threshold", 0.6, domain.DecisionAllow},
		{"just below allow", 0.5999, domain.DecisionAllowWithLimit},
		{"exactly limit threshold", 0.3, domain.DecisionAllowWithLimit},
		{"just below limit", 0.2999, domain.DecisionReview},
		{"exactly review threshold", 0.1, domain.DecisionReview},
		{"just below review", 0.0999, domain.DecisionDeny},
		{"zero", 0, domain.DecisionDeny},
		{"negative", -0.2, domain.DecisionDeny},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.want, rule.Hint(tt.score))
		})
	}
}

// TestInvertedRule verifies the inverted mapping where a higher score means
// more evidence of wrongdoing.
func (s *RulesSuite) TestInvertedRule() {
	rule := InvertedRule{Thresholds: DefaultThresholds}

	tests := []struct {
		name  string
		score float64
		want  domain.DecisionHint
	}{
		{"high score denies", 0.9, domain.DecisionDeny},
		{"exactly review threshold denies", 0.1, domain.DecisionDeny},
		{"below threshold but nonzero reviews", 0.05, domain.DecisionReview},
		{"barely positive reviews", 0.0001, domain.DecisionReview},
		{"zero allows", 0, domain.DecisionAllow},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.Equal(tt.want, rule.Hint(tt.score))
		})
	}
}

func (s *RulesSuite) TestRuleset() {
	s.Run("default ruleset knows both built-in contexts", func() {
		rs := DefaultRuleset()

		rule, ok := rs.Rule(ContextCopyTrading)
		s.Require().True(ok)
		s.IsType(StandardRule{}, rule)

		rule, ok = rs.Rule(ContextRuggerCheck)
		s.Require().True(ok)
		s.IsType(InvertedRule{}, rule)
	})

	s.Run("unknown context is not implicitly standard", func() {
		rs := DefaultRuleset()
		_, ok := rs.Rule("no_such_context")
		s.False(ok)
	})

	s.Run("contexts are listed in ascending order", func() {
		rs := NewRuleset()
		rs.SetStandard("zeta", DefaultThresholds)
		rs.SetInverted("alpha", DefaultThresholds)
		rs.SetStandard("mid", DefaultThresholds)

		s.Equal([]string{"alpha", "mid", "zeta"}, rs.Contexts())
	})

	s.Run("custom thresholds shift the boundaries", func() {
		rs := NewRuleset()
		rs.SetStandard("strict", Thresholds{Allow: 0.9, Limit: 0.7, Review: 0.5})
		rule, ok := rs.Rule("strict")
		s.Require().True(ok)

		s.Equal(domain.DecisionAllowWithLimit, rule.Hint(0.8))
		s.Equal(domain.DecisionDeny, rule.Hint(0.45))
	})
}

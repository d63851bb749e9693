package domain

// DecisionHint is the coarse categorical recommendation derived from a
// numeric trust score.
type DecisionHint string

const (
	DecisionAllow          DecisionHint = "allow"
	DecisionAllowWithLimit DecisionHint = "allow_with_limit"
	DecisionReview         DecisionHint = "review"
	DecisionDeny           DecisionHint = "deny"
)

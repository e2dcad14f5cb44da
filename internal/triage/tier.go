package triage

import (
	dErrors "esperanza/pkg/domain-errors"
)

// Tier is the clinical priority classification of a completed vitals
// reading. Tiers are ordered: CRITICAL outranks HIGH outranks NORMAL.
type Tier string

const (
	TierCritical Tier = "CRITICAL"
	TierHigh     Tier = "HIGH"
	TierNormal   Tier = "NORMAL"
)

// Rank orders tiers for queue sorting; lower is more urgent.
func (t Tier) Rank() int {
	switch t {
	case TierCritical:
		return 1
	case TierHigh:
		return 2
	default:
		return 3
	}
}

func (t Tier) Valid() bool {
	switch t {
	case TierCritical, TierHigh, TierNormal:
		return true
	}
	return false
}

// moreSevere returns the higher-ranking of two tiers.
func moreSevere(a, b Tier) Tier {
	if b.Rank() < a.Rank() {
		return b
	}
	return a
}

// ParseTier parses a tier name. The legacy MEDIUM tier is folded into HIGH:
// earlier revisions of the triage policy routed MEDIUM inconsistently, so
// the backend accepts the name on input and normalizes it away.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierCritical, TierHigh, TierNormal:
		return Tier(s), nil
	case "MEDIUM":
		return TierHigh, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown priority tier")
}

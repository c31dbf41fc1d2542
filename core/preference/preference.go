// Package preference converts a constituent's requested quality ceiling and
// priority into per-level preference weights.
//
// The weight of level L under ceiling C is 1 at the ceiling and decays
// geometrically below it:
//
//	weight(L) = 1 / base^(C-L)
//
// How base is chosen is a policy decision, see Policy.
package preference

import (
	"fmt"
	"math"

	"housecost/internal/errors"
)

// MaxCeiling is the highest quality ceiling a request may ask for
const MaxCeiling = 9

// DefaultFixedBase is the decay base of PolicyFixed and the floor of PolicyPriority
const DefaultFixedBase = 2.0

// Policy selects the decay base
type Policy string

const (
	// PolicyPriority uses the constituent's priority as the base.
	// Priorities 0 and 1 would not decay, so they fall back to DefaultFixedBase.
	PolicyPriority Policy = "priority"

	// PolicyFixed uses Model.FixedBase regardless of priority
	PolicyFixed Policy = "fixed"
)

// ParsePolicy validates a policy name
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyPriority, PolicyFixed:
		return Policy(s), nil
	}
	return "", errors.Config(fmt.Sprintf("unknown preference policy %q", s), nil)
}

// Model computes preference vectors
type Model struct {
	Policy    Policy
	FixedBase float64
}

// DefaultModel returns the priority policy
func DefaultModel() Model {
	return Model{Policy: PolicyPriority, FixedBase: DefaultFixedBase}
}

// Base returns the decay base used for a priority
func (m Model) Base(priority int) float64 {
	switch m.Policy {
	case PolicyFixed:
		if m.FixedBase > 1 {
			return m.FixedBase
		}
		return DefaultFixedBase
	default:
		if priority <= 1 {
			return DefaultFixedBase
		}
		return float64(priority)
	}
}

// Vector returns the weights of levels 1..ceiling. levelCount is the
// number of levels the catalogue defines for the constituent.
func (m Model) Vector(constituent string, ceiling, priority, levelCount int) ([]float64, error) {
	if ceiling < 1 || ceiling > MaxCeiling {
		return nil, errors.InvalidLevel(constituent, "quality ceiling %d for %s is outside 1..%d", ceiling, constituent, MaxCeiling)
	}
	if ceiling > levelCount {
		return nil, errors.InvalidLevel(constituent, "quality ceiling %d for %s exceeds the %d levels in the catalogue", ceiling, constituent, levelCount)
	}

	base := m.Base(priority)
	weights := make([]float64, ceiling)
	for level := 1; level <= ceiling; level++ {
		weights[level-1] = Weight(base, ceiling-level)
	}
	return weights, nil
}

// Weight returns 1 / base^levelsBelow
func Weight(base float64, levelsBelow int) float64 {
	if levelsBelow == 0 {
		return 1
	}
	return 1 / math.Pow(base, float64(levelsBelow))
}

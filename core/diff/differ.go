// Package diff compares two optimization outcomes level by level.
package diff

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// Outcome is one side of a comparison
type Outcome struct {
	ID              string
	Assignment      map[string]int
	TotalCost       decimal.Decimal
	TotalPreference float64
}

// Result is the diff between two outcomes
type Result struct {
	Before string `json:"before"`
	After  string `json:"after"`

	CostBefore   decimal.Decimal `json:"costBefore"`
	CostAfter    decimal.Decimal `json:"costAfter"`
	CostDelta    decimal.Decimal `json:"costDelta"`
	DeltaPercent float64         `json:"deltaPercent"`

	PreferenceDelta float64 `json:"preferenceDelta"`

	// Level changes, each sorted by constituent
	Added     []*LevelChange `json:"added"`
	Removed   []*LevelChange `json:"removed"`
	Changed   []*LevelChange `json:"changed"`
	Unchanged []string       `json:"unchanged"`
}

// LevelChange describes how one constituent's level moved
type LevelChange struct {
	Constituent string     `json:"constituent"`
	ChangeType  ChangeType `json:"type"`
	OldLevel    int        `json:"oldLevel,omitempty"`
	NewLevel    int        `json:"newLevel,omitempty"`
}

// ChangeType indicates the type of change
type ChangeType int

const (
	ChangeAdded     ChangeType = iota // constituent only in after
	ChangeRemoved                     // constituent only in before
	ChangeModified                    // level changed
	ChangeUnchanged                   // same level
)

// String returns the change type name
func (c ChangeType) String() string {
	switch c {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeModified:
		return "modified"
	case ChangeUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the change type by name
func (c ChangeType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// IsIncrease reports whether the after outcome costs more
func (r *Result) IsIncrease() bool {
	return r.CostDelta.IsPositive()
}

// Compare computes the diff between before and after
func Compare(before, after Outcome) *Result {
	result := &Result{
		Before:          before.ID,
		After:           after.ID,
		CostBefore:      before.TotalCost,
		CostAfter:       after.TotalCost,
		CostDelta:       after.TotalCost.Sub(before.TotalCost),
		PreferenceDelta: after.TotalPreference - before.TotalPreference,
		Added:           []*LevelChange{},
		Removed:         []*LevelChange{},
		Changed:         []*LevelChange{},
		Unchanged:       []string{},
	}
	if !before.TotalCost.IsZero() {
		result.DeltaPercent = result.CostDelta.Div(before.TotalCost).InexactFloat64() * 100
	}

	for name, level := range after.Assignment {
		old, existed := before.Assignment[name]
		switch {
		case !existed:
			result.Added = append(result.Added, &LevelChange{Constituent: name, ChangeType: ChangeAdded, NewLevel: level})
		case old != level:
			result.Changed = append(result.Changed, &LevelChange{Constituent: name, ChangeType: ChangeModified, OldLevel: old, NewLevel: level})
		default:
			result.Unchanged = append(result.Unchanged, name)
		}
	}
	for name, level := range before.Assignment {
		if _, exists := after.Assignment[name]; !exists {
			result.Removed = append(result.Removed, &LevelChange{Constituent: name, ChangeType: ChangeRemoved, OldLevel: level})
		}
	}

	sortChanges(result.Added)
	sortChanges(result.Removed)
	sortChanges(result.Changed)
	sort.Strings(result.Unchanged)

	return result
}

func sortChanges(changes []*LevelChange) {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Constituent < changes[j].Constituent
	})
}

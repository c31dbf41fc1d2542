// Package catalogue holds the rate catalogue: an ordered table of
// constituents, each with quality levels 1..n and a unit rate per level.
// A Catalogue is immutable after construction and safe to share between
// concurrent optimizations.
package catalogue

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"housecost/core/determinism"
	"housecost/internal/errors"
)

// MaxLevel is the highest quality level a catalogue may define
const MaxLevel = 9

// QualityLevel is one selectable tier of a constituent
type QualityLevel struct {
	// Level is the 1-based tier (1..9)
	Level int `json:"spec"`

	// Rate is the unit price at this tier
	Rate decimal.Decimal `json:"rate"`

	// Inclusion lists what the tier includes
	Inclusion []string `json:"inclusion"`

	// Specification lists the tier's technical specification
	Specification []string `json:"specification"`
}

// Constituent is a named material or component category
type Constituent struct {
	Name   string         `json:"name"`
	Levels []QualityLevel `json:"levels"`
}

// LevelCount returns the number of quality levels defined
func (c Constituent) LevelCount() int {
	return len(c.Levels)
}

// Level returns the quality level with the given 1-based number
func (c Constituent) Level(level int) (QualityLevel, bool) {
	if level < 1 || level > len(c.Levels) {
		return QualityLevel{}, false
	}
	return c.Levels[level-1], true
}

// Catalogue is an ordered, read-only constituent table
type Catalogue struct {
	constituents []Constituent
	index        map[string]int

	// Hash identifies the content the catalogue was built from
	Hash determinism.ContentHash

	// Source is the file the catalogue was loaded from, if any
	Source string

	// LoadedAt is when the catalogue was built
	LoadedAt time.Time
}

// New builds a catalogue from constituents in their given order.
// Levels must already be sorted, numbered 1..n without gaps, and carry
// positive rates.
func New(constituents []Constituent) (*Catalogue, error) {
	if len(constituents) == 0 {
		return nil, errors.MalformedCatalogue("catalogue defines no constituents", nil)
	}

	c := &Catalogue{
		constituents: make([]Constituent, len(constituents)),
		index:        make(map[string]int, len(constituents)),
		LoadedAt:     time.Now().UTC(),
	}

	for i, con := range constituents {
		if con.Name == "" {
			return nil, errors.MalformedCatalogue(fmt.Sprintf("constituent %d has an empty name", i), nil)
		}
		if _, dup := c.index[con.Name]; dup {
			return nil, errors.MalformedCatalogue("duplicate constituent "+con.Name, nil).
				WithContext(errors.ContextConstituent, con.Name)
		}
		if err := validateLevels(con); err != nil {
			return nil, err
		}

		levels := make([]QualityLevel, len(con.Levels))
		copy(levels, con.Levels)
		c.constituents[i] = Constituent{Name: con.Name, Levels: levels}
		c.index[con.Name] = i
	}

	if hash, err := determinism.HashJSON(c.constituents); err == nil {
		c.Hash = hash
	}
	return c, nil
}

func validateLevels(con Constituent) error {
	if len(con.Levels) == 0 {
		return errors.MalformedCatalogue(con.Name+" defines no quality levels", nil).
			WithContext(errors.ContextConstituent, con.Name)
	}
	if len(con.Levels) > MaxLevel {
		return errors.MalformedCatalogue(fmt.Sprintf("%s defines %d levels, at most %d allowed", con.Name, len(con.Levels), MaxLevel), nil).
			WithContext(errors.ContextConstituent, con.Name)
	}
	for i, lvl := range con.Levels {
		if lvl.Level != i+1 {
			return errors.MalformedCatalogue(fmt.Sprintf("%s levels must run 1..%d without gaps, found level %d at position %d", con.Name, len(con.Levels), lvl.Level, i+1), nil).
				WithContext(errors.ContextConstituent, con.Name)
		}
		if !lvl.Rate.IsPositive() {
			return errors.MalformedCatalogue(fmt.Sprintf("%s level %d has non-positive rate %s", con.Name, lvl.Level, lvl.Rate), nil).
				WithContext(errors.ContextConstituent, con.Name)
		}
	}
	return nil
}

// Len returns the number of constituents
func (c *Catalogue) Len() int {
	return len(c.constituents)
}

// Names returns constituent names in catalogue order
func (c *Catalogue) Names() []string {
	names := make([]string, len(c.constituents))
	for i, con := range c.constituents {
		names[i] = con.Name
	}
	return names
}

// Constituents returns the constituents in catalogue order.
// The returned slice is a copy; the level slices are shared and must not be modified.
func (c *Catalogue) Constituents() []Constituent {
	out := make([]Constituent, len(c.constituents))
	copy(out, c.constituents)
	return out
}

// Lookup returns a constituent by name
func (c *Catalogue) Lookup(name string) (Constituent, bool) {
	i, ok := c.index[name]
	if !ok {
		return Constituent{}, false
	}
	return c.constituents[i], true
}

// Rate returns the unit rate of a constituent at a level
func (c *Catalogue) Rate(name string, level int) (decimal.Decimal, bool) {
	con, ok := c.Lookup(name)
	if !ok {
		return decimal.Zero, false
	}
	lvl, ok := con.Level(level)
	if !ok {
		return decimal.Zero, false
	}
	return lvl.Rate, true
}

// Template is the raw catalogue view served to clients
type Template struct {
	ConstituentList []string                       `json:"constituentList"`
	Constituents    map[string]TemplateConstituent `json:"constituents"`
}

// TemplateConstituent lists the specs of one constituent
type TemplateConstituent struct {
	Specs []TemplateSpec `json:"specs"`
}

// TemplateSpec is one level in the template view
type TemplateSpec struct {
	Spec          int      `json:"spec"`
	Rate          float64  `json:"rate"`
	Inclusion     []string `json:"inclusion"`
	Specification []string `json:"specification"`
}

// Template renders the catalogue in the client-facing template shape
func (c *Catalogue) Template() Template {
	t := Template{
		ConstituentList: c.Names(),
		Constituents:    make(map[string]TemplateConstituent, len(c.constituents)),
	}
	for _, con := range c.constituents {
		specs := make([]TemplateSpec, len(con.Levels))
		for i, lvl := range con.Levels {
			specs[i] = TemplateSpec{
				Spec:          lvl.Level,
				Rate:          lvl.Rate.InexactFloat64(),
				Inclusion:     nonNil(lvl.Inclusion),
				Specification: nonNil(lvl.Specification),
			}
		}
		t.Constituents[con.Name] = TemplateConstituent{Specs: specs}
	}
	return t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

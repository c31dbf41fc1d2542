package catalogue

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"housecost/internal/errors"
)

// Column names of the catalogue CSV
const (
	ColumnConstituent   = "Constituent"
	ColumnSpec          = "Spec"
	ColumnRate          = "Rate"
	ColumnInclusion     = "Inclusion"
	ColumnSpecification = "Specification"
)

var specPattern = regexp.MustCompile(`^[1-9]$`)

// SkippedRow records a CSV row the loader rejected
type SkippedRow struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// LoadReport summarizes what the loader accepted and rejected
type LoadReport struct {
	Rows       int          `json:"rows"`
	Accepted   int          `json:"accepted"`
	Skipped    []SkippedRow `json:"skipped,omitempty"`
	Duplicates []SkippedRow `json:"duplicates,omitempty"`

	// Rejected lists constituents left out of the catalogue
	Rejected []RejectedConstituent `json:"rejected,omitempty"`

	// Warnings lists constituents whose rate does not rise with level
	Warnings []string `json:"warnings,omitempty"`
}

// RejectedConstituent is a constituent whose levels could not be used
type RejectedConstituent struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// LoadFile reads and parses a catalogue CSV file
func LoadFile(path string) (*Catalogue, *LoadReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.MalformedCatalogue("reading catalogue "+path, err)
	}
	cat, report, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, report, err
	}
	cat.Source = path
	return cat, report, nil
}

// Parse reads a catalogue CSV. Invalid rows are skipped and reported;
// constituents keep the order in which they first appear, and their
// levels are sorted ascending with duplicate levels dropped (first wins).
// A constituent whose levels do not run 1..n is left out and reported.
func Parse(r io.Reader) (*Catalogue, *LoadReport, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, errors.MalformedCatalogue("catalogue is empty", nil)
	}
	if err != nil {
		return nil, nil, errors.MalformedCatalogue("reading catalogue header", err)
	}

	cols, err := columnIndex(header)
	if err != nil {
		return nil, nil, err
	}

	report := &LoadReport{}
	var order []string
	grouped := make(map[string][]QualityLevel)
	seen := make(map[string]map[int]bool)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, report, errors.MalformedCatalogue("reading catalogue row", err)
		}
		line, _ := reader.FieldPos(0)
		if isBlank(record) {
			continue
		}
		report.Rows++

		name, level, reason := parseRow(record, cols)
		if reason != "" {
			report.Skipped = append(report.Skipped, SkippedRow{Line: line, Reason: reason})
			continue
		}

		if seen[name] == nil {
			seen[name] = make(map[int]bool)
			order = append(order, name)
		}
		if seen[name][level.Level] {
			report.Duplicates = append(report.Duplicates, SkippedRow{
				Line:   line,
				Reason: fmt.Sprintf("%s spec %d already defined", name, level.Level),
			})
			continue
		}
		seen[name][level.Level] = true
		grouped[name] = append(grouped[name], level)
		report.Accepted++
	}

	if len(order) == 0 {
		return nil, report, errors.MalformedCatalogue("catalogue has no valid rows", nil)
	}

	constituents := make([]Constituent, 0, len(order))
	for _, name := range order {
		levels := grouped[name]
		sort.Slice(levels, func(i, j int) bool { return levels[i].Level < levels[j].Level })
		if missing := firstGap(levels); missing > 0 {
			report.Rejected = append(report.Rejected, RejectedConstituent{
				Name:   name,
				Reason: fmt.Sprintf("spec %d is missing below spec %d", missing, levels[len(levels)-1].Level),
			})
			continue
		}
		if !ratesNonDecreasing(levels) {
			report.Warnings = append(report.Warnings, name+": rate decreases as spec increases")
		}
		constituents = append(constituents, Constituent{Name: name, Levels: levels})
	}

	if len(constituents) == 0 {
		return nil, report, errors.MalformedCatalogue("catalogue has no constituent with levels 1..n", nil)
	}

	cat, err := New(constituents)
	if err != nil {
		return nil, report, err
	}
	return cat, report, nil
}

type columns struct {
	constituent, spec, rate, inclusion, specification int
}

func columnIndex(header []string) (columns, error) {
	cols := columns{-1, -1, -1, -1, -1}
	for i, h := range header {
		switch strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) {
		case ColumnConstituent:
			cols.constituent = i
		case ColumnSpec:
			cols.spec = i
		case ColumnRate:
			cols.rate = i
		case ColumnInclusion:
			cols.inclusion = i
		case ColumnSpecification:
			cols.specification = i
		}
	}
	if cols.constituent < 0 || cols.spec < 0 || cols.rate < 0 {
		return cols, errors.MalformedCatalogue(
			fmt.Sprintf("catalogue header must contain %s, %s and %s columns", ColumnConstituent, ColumnSpec, ColumnRate), nil)
	}
	return cols, nil
}

func parseRow(record []string, cols columns) (string, QualityLevel, string) {
	name := field(record, cols.constituent)
	if name == "" {
		return "", QualityLevel{}, "empty constituent"
	}

	spec := field(record, cols.spec)
	if !specPattern.MatchString(spec) {
		return "", QualityLevel{}, fmt.Sprintf("spec %q is not a single digit 1-9", spec)
	}

	rateText := field(record, cols.rate)
	rate, err := decimal.NewFromString(rateText)
	if err != nil {
		return "", QualityLevel{}, fmt.Sprintf("rate %q is not a number", rateText)
	}
	if !rate.IsInteger() || !rate.IsPositive() {
		return "", QualityLevel{}, fmt.Sprintf("rate %q is not a positive integer", rateText)
	}

	return name, QualityLevel{
		Level:         int(spec[0] - '0'),
		Rate:          rate,
		Inclusion:     splitLines(field(record, cols.inclusion)),
		Specification: splitLines(field(record, cols.specification)),
	}, ""
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func ratesNonDecreasing(levels []QualityLevel) bool {
	for i := 1; i < len(levels); i++ {
		if levels[i].Rate.LessThan(levels[i-1].Rate) {
			return false
		}
	}
	return true
}

// firstGap returns the lowest level missing from sorted levels, or 0
func firstGap(levels []QualityLevel) int {
	for i, lvl := range levels {
		if lvl.Level != i+1 {
			return i + 1
		}
	}
	return 0
}

// Package output provides output formatting for optimization results.
// This package produces human and machine-readable outputs.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"housecost/core/engine"
	"housecost/core/ui"
	"housecost/internal/errors"
)

// Format represents output format type
type Format string

const (
	// FormatTable is a human-readable CLI table
	FormatTable Format = "table"

	// FormatJSON is machine-readable JSON
	FormatJSON Format = "json"

	// FormatYAML is machine-readable YAML
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format value
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "cli", "":
		return FormatTable, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", errors.Config(fmt.Sprintf("unknown output format %q (table, json, yaml)", s), nil)
	}
}

// Formatter produces output in a specific format
type Formatter interface {
	// Format returns the format type
	Format() Format

	// Render produces output for the given result
	Render(w io.Writer, result *engine.Result) error
}

// Registry manages formatter registration
type Registry struct {
	mu         sync.RWMutex
	formatters map[Format]Formatter
}

// NewRegistry creates a registry with the table, JSON and YAML formatters
func NewRegistry(noColor bool) *Registry {
	r := &Registry{formatters: make(map[Format]Formatter)}
	r.Register(&tableFormatter{noColor: noColor})
	r.Register(encodingFormatter{format: FormatJSON})
	r.Register(encodingFormatter{format: FormatYAML})
	return r
}

// Register adds a formatter, replacing any for the same format
func (r *Registry) Register(f Formatter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formatters[f.Format()] = f
}

// Get returns the formatter for a format type
func (r *Registry) Get(format Format) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.formatters[format]
	return f, ok
}

// Formats lists the registered formats
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Format, 0, len(r.formatters))
	for f := range r.formatters {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Encode writes v as JSON or YAML. YAML keys follow the JSON field names
// and order.
func Encode(w io.Writer, format Format, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	switch format {
	case FormatJSON:
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return fmt.Errorf("failed to convert output to yaml: %w", err)
		}
		blockStyle(&node)
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %s cannot encode values", format)
	}
}

// blockStyle drops the flow style JSON input parses with
func blockStyle(n *yaml.Node) {
	switch n.Kind {
	case yaml.MappingNode, yaml.SequenceNode:
		n.Style &^= yaml.FlowStyle
	case yaml.ScalarNode:
		n.Style &^= yaml.DoubleQuotedStyle
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

type encodingFormatter struct {
	format Format
}

func (f encodingFormatter) Format() Format { return f.format }

func (f encodingFormatter) Render(w io.Writer, result *engine.Result) error {
	return Encode(w, f.format, result)
}

type tableFormatter struct {
	noColor bool
}

func (f *tableFormatter) Format() Format { return FormatTable }

func (f *tableFormatter) Render(w io.Writer, result *engine.Result) error {
	out := ui.NewWriter(w, f.noColor)
	sol := result.Solution

	table := out.NewTable("Constituent", "Level", "Ceiling", "Quantity", "Rate", "Cost", "Preference").
		AlignRight(1, 2, 3, 4, 5, 6)
	for _, c := range sol.Choices {
		table.AddRow(
			c.Constituent,
			fmt.Sprintf("%d", c.Level),
			fmt.Sprintf("%d", c.Ceiling),
			fmt.Sprintf("%d", c.Quantity),
			c.Rate.StringFixed(2),
			c.Cost.StringFixed(2),
			fmt.Sprintf("%.4g", c.Preference),
		)
	}
	out.Header("Assignment")
	table.Render()

	summary := out.NewSolutionSummary()
	summary.TotalCost = sol.TotalCost.StringFixed(2)
	summary.Budget = sol.Budget.StringFixed(2)
	summary.Remaining = sol.Remaining().StringFixed(2)
	summary.Preference = fmt.Sprintf("%.6g (%s policy)", sol.TotalPreference, result.Policy)
	summary.Approximate = sol.Approximate
	summary.Catalogue = result.Catalogue.Hash
	if result.Catalogue.Source != "" {
		summary.Catalogue += " (" + result.Catalogue.Source + ")"
	}
	summary.Duration = result.Duration
	summary.Render()
	return nil
}

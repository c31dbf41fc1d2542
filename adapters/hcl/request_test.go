package hcl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"housecost/core/catalogue"
	"housecost/core/request"
	"housecost/internal/errors"
)

const sampleFile = `
locals {
  area  = 1200
  walls = ceil(area_ratio * 10)
}

budget = 250000.50

constituent "Flooring" {
  quantity = local.area
  ceiling  = 3
  priority = 2
}

constituent "Walls" {
  quantity = max(local.walls, 40)
  ceiling  = 2
  priority = 0
}
`

func testCatalogue(t *testing.T) *catalogue.Catalogue {
	t.Helper()
	levels := func(rates ...int64) []catalogue.QualityLevel {
		out := make([]catalogue.QualityLevel, len(rates))
		for i, r := range rates {
			out[i] = catalogue.QualityLevel{Level: i + 1, Rate: decimal.NewFromInt(r)}
		}
		return out
	}
	cat, err := catalogue.New([]catalogue.Constituent{
		{Name: "Flooring", Levels: levels(10, 20, 35)},
		{Name: "Walls", Levels: levels(50, 60)},
	})
	if err != nil {
		t.Fatalf("catalogue.New: %v", err)
	}
	return cat
}

func TestParseEvaluatesLocalsAndFunctions(t *testing.T) {
	src := strings.Replace(sampleFile, "area_ratio * 10", "31.2", 1)

	raw, err := NewParser().Parse([]byte(src), "house.hcl")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	req, err := request.Normalize(testCatalogue(t), raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if !req.Budget.Equal(decimal.RequireFromString("250000.5")) {
		t.Errorf("Budget = %s, want 250000.5", req.Budget)
	}
	tests := []struct {
		name     string
		quantity int64
		ceiling  int
		priority int
	}{
		{"Flooring", 1200, 3, 2},
		{"Walls", 40, 2, 0},
	}
	for _, tt := range tests {
		got := req.Constituents[tt.name]
		if got.Quantity != tt.quantity || got.QualityCeiling != tt.ceiling || got.Priority != tt.priority {
			t.Errorf("%s = %+v, want quantity=%d ceiling=%d priority=%d",
				tt.name, got, tt.quantity, tt.ceiling, tt.priority)
		}
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name        string
		src         string
		constituent string
	}{
		{
			name: "syntax error",
			src:  `budget = `,
		},
		{
			name: "missing budget",
			src: `constituent "Flooring" {
  quantity = 1
  ceiling  = 1
  priority = 1
}`,
		},
		{
			name: "duplicate constituent",
			src: `budget = 10
constituent "Flooring" {
  quantity = 1
  ceiling  = 1
  priority = 1
}
constituent "Flooring" {
  quantity = 2
  ceiling  = 1
  priority = 1
}`,
			constituent: "Flooring",
		},
		{
			name: "missing ceiling",
			src: `budget = 10
constituent "Walls" {
  quantity = 1
  priority = 1
}`,
			constituent: "Walls",
		},
		{
			name: "string quantity",
			src: `budget = 10
constituent "Walls" {
  quantity = "many"
  ceiling  = 1
  priority = 1
}`,
			constituent: "Walls",
		},
		{
			name: "unknown local",
			src: `budget = 10
constituent "Walls" {
  quantity = local.nope
  ceiling  = 1
  priority = 1
}`,
			constituent: "Walls",
		},
		{
			name: "duplicate local",
			src: `locals {
  a = 1
}
locals {
  a = 2
}
budget = 10`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().Parse([]byte(tt.src), tt.name+".hcl")
			if !errors.IsType(err, errors.TypeInvalidRequest) {
				t.Fatalf("Parse() error = %v, want INVALID_REQUEST", err)
			}
			if tt.constituent == "" {
				return
			}
			e, _ := errors.As(err)
			if e.Constituent() != tt.constituent {
				t.Errorf("constituent = %q, want %q", e.Constituent(), tt.constituent)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()

	hclPath := filepath.Join(dir, "house.hcl")
	src := strings.Replace(sampleFile, "area_ratio * 10", "41.5", 1)
	if err := os.WriteFile(hclPath, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}
	jsonPath := filepath.Join(dir, "house.JSON")
	body := `{
		"constituentsInputData": {
			"Flooring": {"quantity": 1200, "specLevel": 3, "priorityLevel": 2},
			"Walls": {"quantity": 42, "specLevel": 2, "priorityLevel": 0}
		},
		"targetBudget": 250000.50
	}`
	if err := os.WriteFile(jsonPath, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cat := testCatalogue(t)
	p := NewParser()
	for _, path := range []string{hclPath, jsonPath} {
		raw, err := p.ParseFile(path)
		if err != nil {
			t.Fatalf("ParseFile(%s) error = %v", filepath.Base(path), err)
		}
		req, err := request.Normalize(cat, raw)
		if err != nil {
			t.Fatalf("Normalize(%s) error = %v", filepath.Base(path), err)
		}
		if got := req.Constituents["Walls"].Quantity; got != 42 {
			t.Errorf("%s: Walls quantity = %d, want 42", filepath.Base(path), got)
		}
	}

	if _, err := p.ParseFile(filepath.Join(dir, "missing.hcl")); !errors.IsType(err, errors.TypeInvalidRequest) {
		t.Errorf("ParseFile(missing) error = %v, want INVALID_REQUEST", err)
	}
}

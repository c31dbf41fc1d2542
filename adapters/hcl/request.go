// Package hcl provides request file parsing for the CLI.
//
// A request file names the budget and one block per constituent:
//
//	locals {
//	  area = 1200
//	}
//
//	budget = 250000
//
//	constituent "Flooring" {
//	  quantity = local.area
//	  ceiling  = 3
//	  priority = 2
//	}
//
// Expressions may use the locals and the numeric functions ceil, floor,
// max, min and abs. Files ending in .json are read as the HTTP request body.
package hcl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/shopspring/decimal"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"housecost/core/request"
	"housecost/internal/errors"
)

var fileSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "budget", Required: true},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "locals"},
		{Type: "constituent", LabelNames: []string{"name"}},
	},
}

var constituentSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "quantity", Required: true},
		{Name: "ceiling", Required: true},
		{Name: "priority", Required: true},
	},
}

var functions = map[string]function.Function{
	"abs":   stdlib.AbsoluteFunc,
	"ceil":  stdlib.CeilFunc,
	"floor": stdlib.FloorFunc,
	"max":   stdlib.MaxFunc,
	"min":   stdlib.MinFunc,
}

// Parser reads request files
type Parser struct {
	parser *hclparse.Parser
}

// NewParser creates a new request file parser
func NewParser() *Parser {
	return &Parser{
		parser: hclparse.NewParser(),
	}
}

// ParseFile reads a request from an .hcl or .json file
func (p *Parser) ParseFile(path string) (*request.Raw, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.TypeInvalidRequest, "failed to read request file", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return request.Decode(bytes.NewReader(src))
	}
	return p.Parse(src, path)
}

// Parse reads an HCL request document
func (p *Parser) Parse(src []byte, filename string) (*request.Raw, error) {
	file, diags := p.parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, diagError(diags)
	}

	content, diags := file.Body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, diagError(diags)
	}

	ctx, diags := evalContext(content.Blocks.OfType("locals"))
	if diags.HasErrors() {
		return nil, diagError(diags)
	}

	budget, diags := numberAttr(content.Attributes["budget"], ctx)
	if diags.HasErrors() {
		return nil, diagError(diags)
	}
	target, err := decimal.NewFromString(budget.String())
	if err != nil {
		return nil, errors.InvalidRequest(fmt.Sprintf("invalid budget %s", budget))
	}

	raw := &request.Raw{
		ConstituentsInputData: make(map[string]request.RawConstituent),
		TargetBudget:          decimal.NewNullDecimal(target),
	}

	for _, block := range content.Blocks.OfType("constituent") {
		name := block.Labels[0]
		if _, dup := raw.ConstituentsInputData[name]; dup {
			return nil, errors.InvalidRequest(fmt.Sprintf("%s: constituent %q declared twice", block.DefRange, name)).
				WithContext(errors.ContextConstituent, name)
		}

		rc, diags := parseConstituent(block, ctx)
		if diags.HasErrors() {
			return nil, diagError(diags).WithContext(errors.ContextConstituent, name)
		}
		raw.ConstituentsInputData[name] = rc
	}
	return raw, nil
}

func parseConstituent(block *hcl.Block, ctx *hcl.EvalContext) (request.RawConstituent, hcl.Diagnostics) {
	content, diags := block.Body.Content(constituentSchema)
	if diags.HasErrors() {
		return request.RawConstituent{}, diags
	}

	var rc request.RawConstituent
	fields := []struct {
		name string
		dst  **json.Number
	}{
		{"quantity", &rc.Quantity},
		{"ceiling", &rc.SpecLevel},
		{"priority", &rc.PriorityLevel},
	}
	for _, f := range fields {
		n, d := numberAttr(content.Attributes[f.name], ctx)
		diags = append(diags, d...)
		if !d.HasErrors() {
			*f.dst = &n
		}
	}
	return rc, diags
}

// evalContext evaluates locals blocks into local.* variables.
// Locals may use functions but not refer to each other.
func evalContext(blocks hcl.Blocks) (*hcl.EvalContext, hcl.Diagnostics) {
	base := &hcl.EvalContext{Functions: functions}
	locals := make(map[string]cty.Value)

	var diags hcl.Diagnostics
	for _, block := range blocks {
		attrs, d := block.Body.JustAttributes()
		diags = append(diags, d...)
		for name, attr := range attrs {
			if _, dup := locals[name]; dup {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate local value",
					Detail:   fmt.Sprintf("local.%s is defined more than once", name),
					Subject:  attr.NameRange.Ptr(),
				})
				continue
			}
			val, d := attr.Expr.Value(base)
			diags = append(diags, d...)
			locals[name] = val
		}
	}

	ctx := base.NewChild()
	ctx.Variables = map[string]cty.Value{"local": cty.ObjectVal(locals)}
	return ctx, diags
}

// numberAttr evaluates attr to a known, non-null number
func numberAttr(attr *hcl.Attribute, ctx *hcl.EvalContext) (json.Number, hcl.Diagnostics) {
	val, diags := attr.Expr.Value(ctx)
	if diags.HasErrors() {
		return "", diags
	}

	fail := func(detail string) (json.Number, hcl.Diagnostics) {
		return "", append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid " + attr.Name,
			Detail:   detail,
			Subject:  attr.Expr.Range().Ptr(),
		})
	}

	if val.IsNull() || !val.IsKnown() {
		return fail(attr.Name + " must be a known number")
	}
	num, err := convert.Convert(val, cty.Number)
	if err != nil {
		return fail(fmt.Sprintf("%s must be a number: %v", attr.Name, err))
	}
	return json.Number(num.AsBigFloat().Text('f', -1)), diags
}

func diagError(diags hcl.Diagnostics) *errors.Error {
	return errors.Wrap(errors.TypeInvalidRequest, "invalid request file", diags)
}


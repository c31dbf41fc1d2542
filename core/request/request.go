// Package request validates caller input into the optimizer's typed contract.
//
// Raw requests arrive from JSON bodies or request files with loosely typed
// numbers. Normalize checks them against a catalogue snapshot and rejects
// anything non-conforming before the optimizer runs.
package request

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"housecost/core/catalogue"
	"housecost/core/determinism"
	"housecost/internal/errors"
)

// MaxPriority is the highest accepted priority
const MaxPriority = 9

// ConstituentRequest is the validated per-constituent input
type ConstituentRequest struct {
	Quantity       int64 `json:"quantity"`
	QualityCeiling int   `json:"qualityCeiling"`
	Priority       int   `json:"priority"`
}

// Request is a validated optimization request
type Request struct {
	Constituents map[string]ConstituentRequest `json:"constituents"`
	Budget       decimal.Decimal               `json:"budget"`
}

// Fingerprint identifies the request content independent of map order
func (r *Request) Fingerprint() determinism.ContentHash {
	h, err := determinism.HashJSON(r)
	if err != nil {
		return determinism.ContentHash{}
	}
	return h
}

// RawConstituent is one entry of the legacy request body.
// Fields are pointers so missing values can be told apart from zero.
type RawConstituent struct {
	Quantity      *json.Number `json:"quantity"`
	SpecLevel     *json.Number `json:"specLevel"`
	PriorityLevel *json.Number `json:"priorityLevel"`
}

// Raw is the request body accepted by the optimizer endpoints
type Raw struct {
	ConstituentsInputData map[string]RawConstituent `json:"constituentsInputData"`
	TargetBudget          decimal.NullDecimal       `json:"targetBudget"`
}

// Decode reads a request body, keeping numbers exact
func Decode(r io.Reader) (*Raw, error) {
	var raw Raw
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return nil, errors.Wrap(errors.TypeRequestTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), err)
		}
		return nil, errors.Wrap(errors.TypeInvalidRequest, "invalid request body", err)
	}
	return &raw, nil
}

// Normalize validates raw against the catalogue snapshot.
//
// Constituent coverage is checked first (catalogue order, then unknown
// request names in sorted order), then each constituent's fields in
// catalogue order, so the reported error is deterministic.
func Normalize(cat *catalogue.Catalogue, raw *Raw) (*Request, error) {
	if raw == nil || raw.ConstituentsInputData == nil || !raw.TargetBudget.Valid {
		return nil, errors.InvalidRequest("missing constituentsInputData or targetBudget in request body")
	}
	if !raw.TargetBudget.Decimal.IsPositive() {
		return nil, errors.InvalidRequest(fmt.Sprintf("targetBudget must be positive, got %s", raw.TargetBudget.Decimal))
	}

	if err := checkCoverage(cat, raw.ConstituentsInputData); err != nil {
		return nil, err
	}

	req := &Request{
		Constituents: make(map[string]ConstituentRequest, cat.Len()),
		Budget:       raw.TargetBudget.Decimal,
	}

	for _, con := range cat.Constituents() {
		cr, err := normalizeConstituent(con, raw.ConstituentsInputData[con.Name])
		if err != nil {
			return nil, err
		}
		req.Constituents[con.Name] = cr
	}
	return req, nil
}

// Validate checks an already typed request against the catalogue snapshot
func Validate(cat *catalogue.Catalogue, req *Request) error {
	if req == nil || req.Constituents == nil {
		return errors.InvalidRequest("request has no constituents")
	}
	if !req.Budget.IsPositive() {
		return errors.InvalidRequest(fmt.Sprintf("budget must be positive, got %s", req.Budget))
	}
	if err := checkCoverage(cat, req.Constituents); err != nil {
		return err
	}
	for _, con := range cat.Constituents() {
		if err := validateConstituent(con, req.Constituents[con.Name]); err != nil {
			return err
		}
	}
	return nil
}

func checkCoverage[V any](cat *catalogue.Catalogue, entries map[string]V) error {
	for _, name := range cat.Names() {
		if _, ok := entries[name]; !ok {
			return errors.MissingConstituent(name, "missing required constituent %s", name)
		}
	}

	var unknown []string
	for _, name := range determinism.SortedKeys(entries) {
		if _, ok := cat.Lookup(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return errors.MissingConstituent(unknown[0], "not in the catalogue: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func normalizeConstituent(con catalogue.Constituent, raw RawConstituent) (ConstituentRequest, error) {
	ceiling, err := integerField(con.Name, "specLevel", raw.SpecLevel)
	if err != nil {
		return ConstituentRequest{}, err
	}
	priority, err := integerField(con.Name, "priorityLevel", raw.PriorityLevel)
	if err != nil {
		return ConstituentRequest{}, err
	}
	quantity, err := integerField(con.Name, "quantity", raw.Quantity)
	if err != nil {
		return ConstituentRequest{}, err
	}

	cr := ConstituentRequest{
		Quantity:       quantity,
		QualityCeiling: clamp(ceiling),
		Priority:       clamp(priority),
	}
	if err := validateConstituent(con, cr); err != nil {
		return ConstituentRequest{}, err
	}
	return cr, nil
}

func validateConstituent(con catalogue.Constituent, cr ConstituentRequest) error {
	if cr.QualityCeiling < 1 || cr.QualityCeiling > catalogue.MaxLevel {
		return errors.InvalidLevel(con.Name, "invalid specLevel for %s, must be a single digit (1-%d)", con.Name, catalogue.MaxLevel)
	}
	if cr.QualityCeiling > con.LevelCount() {
		return errors.InvalidLevel(con.Name, "specLevel %d for %s exceeds the %d levels in the catalogue", cr.QualityCeiling, con.Name, con.LevelCount())
	}
	if cr.Priority < 0 || cr.Priority > MaxPriority {
		return invalidField(con.Name, "invalid priorityLevel for %s, must be a single digit (0-%d)", con.Name, MaxPriority)
	}
	if cr.Quantity < 0 {
		return invalidField(con.Name, "invalid quantity for %s, must be a non-negative integer", con.Name)
	}
	return nil
}

// integerField parses a JSON number that must hold an integer value.
// 3 and 3.0 are accepted, 3.5 is not.
func integerField(constituent, field string, n *json.Number) (int64, error) {
	if n == nil {
		return 0, invalidField(constituent, "missing %s for %s", field, constituent)
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, invalidField(constituent, "invalid %s for %s, must be an integer", field, constituent)
	}
	return int64(f), nil
}

// clamp maps values that do not fit an int32 to -1, which every range check rejects
func clamp(v int64) int {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return -1
	}
	return int(v)
}

func invalidField(constituent, format string, args ...interface{}) error {
	return errors.Newf(errors.TypeInvalidRequest, format, args...).
		WithContext(errors.ContextConstituent, constituent)
}

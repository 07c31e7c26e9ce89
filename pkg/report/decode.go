package report

import (
	"bytes"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// SchemaError describes why a provider payload does not match the report
// schema. Field is a gjson-style path such as "hotspots.2.impact".
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return "invalid report payload: " + e.Reason
	}
	return fmt.Sprintf("invalid report payload: %s: %s", e.Field, e.Reason)
}

// Field names of the report schema, in the order the provider is asked to
// emit them.
const (
	FieldCarbonScore             = "carbon_score"
	FieldEnergyEstimate          = "energy_estimate"
	FieldCO2Emissions            = "co2_emissions"
	FieldHotspots                = "hotspots"
	FieldOptimizedCode           = "optimized_code"
	FieldCarbonReductionEstimate = "carbon_reduction_estimate"
	FieldExplanation             = "explanation"
)

// RequiredFields lists every top-level field a payload must carry.
func RequiredFields() []string {
	return []string{
		FieldCarbonScore,
		FieldEnergyEstimate,
		FieldCO2Emissions,
		FieldHotspots,
		FieldOptimizedCode,
		FieldCarbonReductionEstimate,
		FieldExplanation,
	}
}

var stringFields = []string{
	FieldEnergyEstimate,
	FieldCO2Emissions,
	FieldOptimizedCode,
	FieldCarbonReductionEstimate,
	FieldExplanation,
}

// Decode parses a provider payload into a Report. Every field is required,
// string fields must be strings, carbon_score must be an integral number and
// each hotspot impact must be one of High, Medium or Low. Any violation
// yields a *SchemaError and no Report. The score is clamped into [0,100].
// Unknown fields are ignored.
func Decode(data []byte) (*Report, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &SchemaError{Reason: "empty body"}
	}
	if !gjson.ValidBytes(data) {
		return nil, &SchemaError{Reason: "body is not valid JSON"}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, &SchemaError{Reason: "expected a JSON object"}
	}

	score := root.Get(FieldCarbonScore)
	if !score.Exists() {
		return nil, &SchemaError{Field: FieldCarbonScore, Reason: "missing required field"}
	}
	if score.Type != gjson.Number || score.Num != math.Trunc(score.Num) {
		return nil, &SchemaError{Field: FieldCarbonScore, Reason: fmt.Sprintf("expected integer, got %s", score.Raw)}
	}

	values := make(map[string]string, len(stringFields))
	for _, field := range stringFields {
		s, err := requireString(root, field)
		if err != nil {
			return nil, err
		}
		values[field] = s
	}

	hotspots, err := decodeHotspots(root.Get(FieldHotspots))
	if err != nil {
		return nil, err
	}

	return &Report{
		CarbonScore:             clampFloat(score.Num),
		EnergyEstimate:          values[FieldEnergyEstimate],
		CO2Emissions:            values[FieldCO2Emissions],
		Hotspots:                hotspots,
		OptimizedCode:           values[FieldOptimizedCode],
		CarbonReductionEstimate: values[FieldCarbonReductionEstimate],
		Explanation:             values[FieldExplanation],
	}, nil
}

func decodeHotspots(v gjson.Result) ([]Hotspot, error) {
	if !v.Exists() {
		return nil, &SchemaError{Field: FieldHotspots, Reason: "missing required field"}
	}
	if !v.IsArray() {
		return nil, &SchemaError{Field: FieldHotspots, Reason: "expected array"}
	}

	items := v.Array()
	out := make([]Hotspot, 0, len(items))
	for i, item := range items {
		path := fmt.Sprintf("%s.%d", FieldHotspots, i)
		if !item.IsObject() {
			return nil, &SchemaError{Field: path, Reason: "expected object"}
		}
		issue, err := requireString(item, "issue")
		if err != nil {
			return nil, prefixed(path, err)
		}
		impact, err := requireString(item, "impact")
		if err != nil {
			return nil, prefixed(path, err)
		}
		if !Impact(impact).Valid() {
			return nil, &SchemaError{Field: path + ".impact", Reason: fmt.Sprintf("%q is not one of High, Medium, Low", impact)}
		}
		suggestion, err := requireString(item, "suggestion")
		if err != nil {
			return nil, prefixed(path, err)
		}
		out = append(out, Hotspot{Issue: issue, Impact: Impact(impact), Suggestion: suggestion})
	}
	return out, nil
}

func requireString(obj gjson.Result, field string) (string, error) {
	v := obj.Get(field)
	if !v.Exists() {
		return "", &SchemaError{Field: field, Reason: "missing required field"}
	}
	if v.Type != gjson.String {
		return "", &SchemaError{Field: field, Reason: fmt.Sprintf("expected string, got %s", v.Type)}
	}
	return v.Str, nil
}

func prefixed(path string, err error) error {
	if se, ok := err.(*SchemaError); ok {
		return &SchemaError{Field: path + "." + se.Field, Reason: se.Reason}
	}
	return err
}

func clampFloat(f float64) int {
	if f < MinScore {
		return MinScore
	}
	if f > MaxScore {
		return MaxScore
	}
	return int(f)
}

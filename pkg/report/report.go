// Package report provides the sustainability report model returned by the
// analysis provider: the carbon score, energy and CO₂ estimates, the ordered
// hotspot list, the optimized code and the explanation. It also owns the
// strict decoding of provider payloads into that model.
package report

import "fmt"

// Impact is the severity tier of a hotspot.
type Impact string

const (
	ImpactHigh   Impact = "High"
	ImpactMedium Impact = "Medium"
	ImpactLow    Impact = "Low"
)

// Valid reports whether i is one of the three accepted tiers. Matching is
// case-sensitive.
func (i Impact) Valid() bool {
	switch i {
	case ImpactHigh, ImpactMedium, ImpactLow:
		return true
	}
	return false
}

// Impacts returns the accepted tiers, most severe first.
func Impacts() []Impact {
	return []Impact{ImpactHigh, ImpactMedium, ImpactLow}
}

// Score bounds.
const (
	MinScore = 0
	MaxScore = 100
)

// Hotspot is a single flagged inefficiency.
type Hotspot struct {
	Issue      string `json:"issue" yaml:"issue"`
	Impact     Impact `json:"impact" yaml:"impact"`
	Suggestion string `json:"suggestion" yaml:"suggestion"`
}

// Report is the structured result of one analysis. Treat it as immutable once
// received; use Clone before handing it to code that may modify it.
type Report struct {
	CarbonScore             int       `json:"carbon_score" yaml:"carbonScore"`
	EnergyEstimate          string    `json:"energy_estimate" yaml:"energyEstimate"`
	CO2Emissions            string    `json:"co2_emissions" yaml:"co2Emissions"`
	Hotspots                []Hotspot `json:"hotspots" yaml:"hotspots"`
	OptimizedCode           string    `json:"optimized_code" yaml:"optimizedCode"`
	CarbonReductionEstimate string    `json:"carbon_reduction_estimate" yaml:"carbonReductionEstimate"`
	Explanation             string    `json:"explanation" yaml:"explanation"`
}

// Clone returns a deep copy of r. Hotspots is never nil in the copy.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Hotspots = make([]Hotspot, len(r.Hotspots))
	copy(cp.Hotspots, r.Hotspots)
	return &cp
}

// CountByImpact tallies hotspots per tier.
func (r *Report) CountByImpact() map[Impact]int {
	out := map[Impact]int{}
	for _, h := range r.Hotspots {
		out[h.Impact]++
	}
	return out
}

// ClampScore confines a provider score to [MinScore, MaxScore].
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// Rating returns the gauge label for a score.
func Rating(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	default:
		return "Poor"
	}
}

// Band returns the documentation band a score falls into.
func Band(score int) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 50:
		return "Good/Fair"
	default:
		return "Needs Action"
	}
}

// Summary is a one-line description used in logs and list views.
func (r *Report) Summary() string {
	return fmt.Sprintf("score=%d (%s) hotspots=%d reduction=%s",
		r.CarbonScore, Rating(r.CarbonScore), len(r.Hotspots), r.CarbonReductionEstimate)
}

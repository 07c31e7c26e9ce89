package analysis

import (
	"fmt"
	"strings"

	"github.com/greg-hellings/greencode/pkg/language"
	"github.com/greg-hellings/greencode/pkg/report"
)

const promptTemplate = `You are a green software engineering expert.
Analyze the provided %s source code.

Tasks:
1. Identify inefficient or energy-heavy constructs (Big O complexity, memory leaks, I/O blocking).
2. Estimate computational complexity and resource usage.
3. Approximate energy consumption and CO₂ emissions for a hypothetical 1 million executions.
4. Assign a carbon efficiency score (0–100), where 100 is perfectly optimized.
5. Suggest optimized, greener code alternatives that maintain functionality but reduce resource usage.
6. Estimate percentage reduction in energy and carbon footprint.
7. Explain recommendations clearly.

Source Code:
%s
`

// BuildPrompt renders the analysis request for one submission.
func BuildPrompt(code string, lang language.Language) string {
	return fmt.Sprintf(promptTemplate, lang, code)
}

// schemaInstructions describes the report schema in prose for providers
// that cannot take a structured response schema.
func schemaInstructions() string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object and nothing else. It must contain exactly these fields:\n")
	b.WriteString(`- "carbon_score": integer from 0 to 100 representing carbon efficiency` + "\n")
	b.WriteString(`- "energy_estimate": string, e.g. "0.45 kWh per 1M executions"` + "\n")
	b.WriteString(`- "co2_emissions": string, e.g. "180 g CO2"` + "\n")
	b.WriteString(`- "hotspots": array of objects with string fields "issue", "impact" and "suggestion"; "impact" is one of `)
	impacts := report.Impacts()
	for i, imp := range impacts {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q", string(imp))
	}
	b.WriteString("\n")
	b.WriteString(`- "optimized_code": string, the full refined, optimized source code` + "\n")
	b.WriteString(`- "carbon_reduction_estimate": string, e.g. "35%"` + "\n")
	b.WriteString(`- "explanation": string, a detailed explanation of the changes and why they save energy` + "\n")
	return b.String()
}

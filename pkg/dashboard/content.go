package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/greg-hellings/greencode/pkg/language"
	"github.com/greg-hellings/greencode/pkg/report"
)

// aboutTemplate is the About page; %s takes the language list.
const aboutTemplate = `# About GreenCode AI

Empowering developers to build a sustainable digital future, one line of code at a time.

## The Mission

The internet accounts for nearly 4%% of global greenhouse gas emissions. As
software eats the world, inefficient code consumes massive amounts of energy
in data centers.

GreenCode AI aims to reduce this footprint by helping developers identify and
fix energy-intensive patterns before they reach production.

## How It Works

A large language model analyzes source code for algorithmic efficiency
(Big O), blocking I/O and memory usage. It calculates a **Carbon Score** and
generates refactored, optimized code that keeps the same behavior while
spending fewer CPU cycles.

## Features

- **Model-backed analysis**: Gemini by default, or any OpenAI-compatible endpoint.
- **Multi-language**: %s.
- **Eco-metrics**: estimates of energy use and CO₂ emissions.
- **History**: the last 10 scans stay one keystroke away.
`

const docsMarkdown = `# Documentation

## Getting Started

Paste your code into the editor, select the programming language and run the
analysis (` + "`ctrl+s`" + ` in the dashboard, ` + "`greencode analyze`" + ` on the command line).

> Tip: a complete function or snippet gives the best results.

## Understanding the Carbon Score

The Carbon Score ranges from 0 to 100 and indicates how environmentally
friendly your code is.

| Score | Band | Meaning |
|---|---|---|
| 80 - 100 | Excellent | Highly optimized, minimal computational waste. O(n) or O(log n). |
| 50 - 79 | Good/Fair | Acceptable for small inputs but may scale poorly. O(n log n) or minor unoptimized loops. |
| 0 - 49 | Needs Action | High energy use. Nested O(n²) loops, leaks or redundant I/O. |

## Code Hotspots

Hotspots are the lines or blocks that contribute disproportionately to energy
use. Each one is tagged High, Medium or Low impact. Typical causes:

- **Algorithmic complexity**: nested loops that grow with the data size.
- **Memory churn**: excessive temporary objects that force garbage collection.
- **Blocking I/O**: synchronous waits that keep the CPU idle but powered on.

## FAQ

**How accurate is the CO₂ estimation?**
It is an approximation based on computational complexity and the average
energy cost of CPU cycles. Actual emissions depend on the hardware and the
energy grid where the code runs.

**Is my code stored?**
Code is sent to the configured model provider for analysis only. The last 10
scans are kept locally in your state file.
`

// reportMarkdown renders the overview tab of a report.
func reportMarkdown(r *report.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Carbon Score: %d/100 (%s)\n\n", r.CarbonScore, report.Rating(r.CarbonScore))
	fmt.Fprintf(&b, "Band: **%s**\n\n", report.Band(r.CarbonScore))

	b.WriteString("| Metric | Estimate |\n|---|---|\n")
	fmt.Fprintf(&b, "| Energy | %s |\n", cell(r.EnergyEstimate))
	fmt.Fprintf(&b, "| CO₂ emissions | %s |\n", cell(r.CO2Emissions))
	fmt.Fprintf(&b, "| Potential reduction | %s |\n\n", cell(r.CarbonReductionEstimate))

	b.WriteString("## Hotspots\n\n")
	if len(r.Hotspots) == 0 {
		b.WriteString("No hotspots detected.\n\n")
	}
	for i, h := range r.Hotspots {
		fmt.Fprintf(&b, "%d. **[%s]** %s\n   %s\n", i+1, h.Impact, h.Issue, h.Suggestion)
	}

	if r.Explanation != "" {
		fmt.Fprintf(&b, "\n## Explanation\n\n%s\n", r.Explanation)
	}
	return b.String()
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// newRenderer returns a glamour renderer for theme ("auto", "dark", "light"
// or "notty").
func newRenderer(theme string, width int) (*glamour.TermRenderer, error) {
	if width < 20 {
		width = 20
	}
	style := glamour.WithAutoStyle()
	if theme != "" && theme != "auto" {
		style = glamour.WithStandardStyle(theme)
	}
	return glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
}

// RenderMarkdown renders md for a terminal of the given width. Rendering
// failures fall back to the raw markdown.
func RenderMarkdown(md, theme string, width int) string {
	r, err := newRenderer(theme, width)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// About returns the About page markdown.
func About() string {
	return fmt.Sprintf(aboutTemplate, strings.Join(language.Names(), ", "))
}

// Docs returns the Docs page markdown.
func Docs() string { return docsMarkdown }

// Package format provides console rendering utilities for sustainability
// reports and scan history. It adapts column widths to the terminal and
// supports color and truncation.
package format

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"

	"github.com/greg-hellings/greencode/pkg/history"
	"github.com/greg-hellings/greencode/pkg/language"
	"github.com/greg-hellings/greencode/pkg/report"
)

// ConsoleFormatter renders a Report in a terminal-friendly layout: a score
// header, an estimates table, a hotspot table and the explanation.
type ConsoleFormatter struct {
	// MaxTextColWidth constrains the issue and suggestion columns. If 0, a
	// dynamic width is chosen based on terminal width.
	MaxTextColWidth int

	// EnableColors toggles ANSI color output for the score and impact cells.
	EnableColors bool

	// ShowOptimizedCode appends the optimized code listing.
	ShowOptimizedCode bool
}

// NewConsoleFormatter creates a formatter with sensible defaults.
func NewConsoleFormatter() *ConsoleFormatter {
	return &ConsoleFormatter{
		EnableColors:      true,
		ShowOptimizedCode: true,
	}
}

// Render writes the formatted report to writer.
func (f *ConsoleFormatter) Render(rpt *report.Report, writer io.Writer) error {
	if rpt == nil {
		return fmt.Errorf("nil report")
	}

	score := fmt.Sprintf("%d/100 (%s)", rpt.CarbonScore, report.Rating(rpt.CarbonScore))
	if _, err := fmt.Fprintf(writer, "Carbon Score: %s\n\n", f.color(score, scoreColor(rpt.CarbonScore))); err != nil {
		return fmt.Errorf("failed writing score header: %w", err)
	}

	est := newTable(writer)
	est.AppendHeader(table.Row{"Metric", "Estimate"})
	est.AppendRows([]table.Row{
		{"Energy", rpt.EnergyEstimate},
		{"CO₂ emissions", rpt.CO2Emissions},
		{"Potential reduction", rpt.CarbonReductionEstimate},
	})
	est.Render()

	if _, err := fmt.Fprintln(writer); err != nil {
		return fmt.Errorf("failed writing spacer newline: %w", err)
	}

	if len(rpt.Hotspots) == 0 {
		if _, err := fmt.Fprintln(writer, "No hotspots detected."); err != nil {
			return fmt.Errorf("failed writing hotspot placeholder: %w", err)
		}
	} else {
		f.renderHotspots(rpt, writer)
	}

	counts := rpt.CountByImpact()
	if _, err := fmt.Fprintf(writer, "\nSummary:\n  Hotspots: %d (High %d, Medium %d, Low %d)\n",
		len(rpt.Hotspots), counts[report.ImpactHigh], counts[report.ImpactMedium], counts[report.ImpactLow]); err != nil {
		return fmt.Errorf("failed writing summary: %w", err)
	}

	if rpt.Explanation != "" {
		width := detectTerminalWidth(writer)
		if width <= 0 || width > 100 {
			width = 100
		}
		if _, err := fmt.Fprintf(writer, "\nExplanation:\n%s\n", indent(text.WrapSoft(rpt.Explanation, width-2), "  ")); err != nil {
			return fmt.Errorf("failed writing explanation: %w", err)
		}
	}

	if f.ShowOptimizedCode && rpt.OptimizedCode != "" {
		if _, err := fmt.Fprintf(writer, "\nOptimized code:\n%s\n", indent(strings.TrimRight(rpt.OptimizedCode, "\n"), "  ")); err != nil {
			return fmt.Errorf("failed writing optimized code: %w", err)
		}
	}

	return nil
}

func (f *ConsoleFormatter) renderHotspots(rpt *report.Report, writer io.Writer) {
	tw := newTable(writer)
	tw.AppendHeader(table.Row{"#", "Impact", "Issue", "Suggestion"})

	if width := f.textColumnWidth(writer); width > 0 {
		tw.SetColumnConfigs([]table.ColumnConfig{
			{Number: 3, WidthMax: width, WidthMin: minInt(10, width)},
			{Number: 4, WidthMax: width, WidthMin: minInt(10, width)},
		})
	}

	for i, h := range rpt.Hotspots {
		tw.AppendRow(table.Row{i + 1, f.color(string(h.Impact), impactColor(h.Impact)), h.Issue, h.Suggestion})
	}
	tw.Render()
}

// textColumnWidth splits the terminal width between the issue and suggestion
// columns. It returns 0 when the width is unknown.
func (f *ConsoleFormatter) textColumnWidth(w io.Writer) int {
	if f.MaxTextColWidth > 0 {
		return f.MaxTextColWidth
	}
	termWidth := detectTerminalWidth(w)
	if termWidth <= 0 {
		return 0
	}
	// Guard rails
	if termWidth < 60 {
		termWidth = 60
	}
	// "#" and "Impact" columns plus borders take roughly 20 cells.
	per := (termWidth - 20) / 2
	if per < 20 {
		per = 20
	}
	return per
}

// RenderHistory writes the scan history, most recent first.
func (f *ConsoleFormatter) RenderHistory(entries []history.Entry, writer io.Writer) error {
	if len(entries) == 0 {
		if _, err := fmt.Fprintln(writer, "No history yet."); err != nil {
			return fmt.Errorf("failed writing empty history: %w", err)
		}
		return nil
	}

	tw := newTable(writer)
	tw.AppendHeader(table.Row{"ID", "Created", "Language", "Score", "Rating", "Hotspots", "Code"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 7, WidthMax: 30, Transformer: truncTransformer(30)},
	})
	for _, e := range entries {
		tw.AppendRow(table.Row{
			e.ID,
			e.CreatedAt.Local().Format(time.DateTime),
			e.Language,
			f.color(fmt.Sprintf("%d", e.Report.CarbonScore), scoreColor(e.Report.CarbonScore)),
			report.Rating(e.Report.CarbonScore),
			len(e.Report.Hotspots),
			firstLine(e.SourceCode),
		})
	}
	tw.Render()

	if _, err := fmt.Fprintf(writer, "\n%d of %d entries\n", len(entries), history.DefaultCapacity); err != nil {
		return fmt.Errorf("failed writing history footer: %w", err)
	}
	return nil
}

// RenderEntry writes a history entry's metadata followed by its report.
func (f *ConsoleFormatter) RenderEntry(e history.Entry, writer io.Writer) error {
	if _, err := fmt.Fprintf(writer, "Entry:    %s\nCreated:  %s\nLanguage: %s\n\n",
		e.ID, e.CreatedAt.Local().Format(time.RFC1123), e.Language); err != nil {
		return fmt.Errorf("failed writing entry header: %w", err)
	}
	return f.Render(&e.Report, writer)
}

// RenderLanguages writes the supported languages, marking current.
func (f *ConsoleFormatter) RenderLanguages(current language.Language, writer io.Writer) error {
	tw := newTable(writer)
	tw.AppendHeader(table.Row{"", "Language", "Example"})
	for _, l := range language.All() {
		mark := ""
		if l == current {
			mark = f.color("*", text.FgGreen)
		}
		tw.AppendRow(table.Row{mark, l, firstLine(l.Example())})
	}
	tw.Render()
	return nil
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.DrawBorder = true
	return tw
}

func scoreColor(score int) text.Color {
	switch {
	case score >= 80:
		return text.FgGreen
	case score >= 50:
		return text.FgYellow
	default:
		return text.FgRed
	}
}

func impactColor(i report.Impact) text.Color {
	switch i {
	case report.ImpactHigh:
		return text.FgRed
	case report.ImpactMedium:
		return text.FgYellow
	default:
		return text.FgGreen
	}
}

// detectTerminalWidth attempts to get terminal width if writer is a file (stdout/stderr).
func detectTerminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return width
		}
	}
	return -1
}

// truncTransformer returns a text.Transformer to ellipsize overly wide cells.
func truncTransformer(max int) text.Transformer {
	return func(val interface{}) string {
		return truncateRunes(fmt.Sprint(val), max)
	}
}

// truncateRunes truncates a string to (max) runes with ellipsis.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	var b strings.Builder
	count := 0
	for _, r := range s {
		if count >= max-1 {
			break
		}
		b.WriteRune(r)
		count++
	}
	b.WriteRune('…')
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

func (f *ConsoleFormatter) color(s string, c text.Color) string {
	if !f.EnableColors {
		return s
	}
	return text.Colors{c}.Sprint(s)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// RenderConsole renders the provided Report to the writer using the default console formatter.
func RenderConsole(rpt *report.Report, w io.Writer) error {
	return NewConsoleFormatter().Render(rpt, w)
}

package format

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/greg-hellings/greencode/pkg/history"
	"github.com/greg-hellings/greencode/pkg/language"
	"github.com/greg-hellings/greencode/pkg/report"
)

// helper to build a sample report
func sampleReport() *report.Report {
	return &report.Report{
		CarbonScore:    42,
		EnergyEstimate: "0.8 kWh per million runs",
		CO2Emissions:   "0.3 kg CO2e",
		Hotspots: []report.Hotspot{
			{Issue: "Nested loop over input", Impact: report.ImpactHigh, Suggestion: "Use a set for membership tests"},
			{Issue: "Repeated string concatenation", Impact: report.ImpactLow, Suggestion: "Use join"},
		},
		OptimizedCode:           "def process(data):\n    return sorted(set(data))\n",
		CarbonReductionEstimate: "35%",
		Explanation:             "The optimized version avoids quadratic work.",
	}
}

func TestConsoleFormatterBasicRender(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter()
	f.EnableColors = false // deterministic output for assertions

	if err := f.Render(sampleReport(), &buf); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	out := buf.String()

	expectContains(t, out, "Carbon Score: 42/100 (Fair)", "score header missing")
	expectContains(t, out, "0.8 kWh per million runs", "energy estimate missing")
	expectContains(t, out, "0.3 kg CO2e", "co2 estimate missing")
	expectContains(t, out, "35%", "reduction estimate missing")
	expectContains(t, out, "Nested loop over input", "first hotspot missing")
	expectContains(t, out, "Use join", "second hotspot suggestion missing")
	expectContains(t, out, "Hotspots: 2 (High 1, Medium 0, Low 1)", "summary mismatch")
	expectContains(t, out, "Explanation:", "explanation header missing")
	expectContains(t, out, "avoids quadratic work", "explanation missing")
	expectContains(t, out, "    return sorted(set(data))", "optimized code missing or not indented")

	// Provider order is preserved.
	if strings.Index(out, "Nested loop") > strings.Index(out, "Repeated string") {
		t.Errorf("hotspots rendered out of order:\n%s", out)
	}

	// Ensure no ANSI escapes when colors disabled
	if strings.Contains(out, "\x1b[") {
		t.Errorf("unexpected ANSI color sequences found when colors disabled")
	}
}

func TestConsoleFormatterNoHotspotsNoCode(t *testing.T) {
	rpt := sampleReport()
	rpt.Hotspots = nil

	var buf bytes.Buffer
	f := &ConsoleFormatter{}
	if err := f.Render(rpt, &buf); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	out := buf.String()
	expectContains(t, out, "No hotspots detected.", "placeholder missing")
	if strings.Contains(out, "Optimized code:") {
		t.Errorf("optimized code should be hidden when ShowOptimizedCode is false")
	}
}

func TestConsoleFormatterColorsEnabled(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter()
	f.EnableColors = true

	if err := f.Render(sampleReport(), &buf); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "\x1b[") {
		t.Errorf("expected ANSI color sequences but none found")
	}
	if !strings.Contains(stripANSI(out), "High") {
		t.Errorf("expected High impact marker in output (stripANSI)")
	}
}

func TestConsoleFormatterNilReport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewConsoleFormatter().Render(nil, &buf); err == nil {
		t.Fatalf("expected error rendering nil report, got nil")
	}
}

func TestRenderHistory(t *testing.T) {
	f := &ConsoleFormatter{}

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		if err := f.RenderHistory(nil, &buf); err != nil {
			t.Fatalf("RenderHistory returned error: %v", err)
		}
		expectContains(t, buf.String(), "No history yet.", "empty marker missing")
	})

	t.Run("entries", func(t *testing.T) {
		entries := []history.Entry{
			{
				ID:         "0192-b",
				CreatedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
				Language:   language.Go,
				SourceCode: "package main\n\nfunc main() {}\n",
				Report:     report.Report{CarbonScore: 91},
			},
			{
				ID:         "0192-a",
				Language:   language.Python,
				SourceCode: "print('hi')",
				Report:     *sampleReport(),
			},
		}

		var buf bytes.Buffer
		if err := f.RenderHistory(entries, &buf); err != nil {
			t.Fatalf("RenderHistory returned error: %v", err)
		}
		out := buf.String()
		expectContains(t, out, "0192-b", "first id missing")
		expectContains(t, out, "Excellent", "rating missing")
		expectContains(t, out, "package main …", "first line of code missing")
		expectContains(t, out, "print('hi')", "single line code missing")
		expectContains(t, out, "2 of 10 entries", "footer missing")
		if strings.Index(out, "0192-b") > strings.Index(out, "0192-a") {
			t.Errorf("entries rendered out of order")
		}
	})
}

func TestRenderEntry(t *testing.T) {
	var buf bytes.Buffer
	e := history.Entry{ID: "abc", Language: language.Rust, Report: *sampleReport()}
	if err := (&ConsoleFormatter{}).RenderEntry(e, &buf); err != nil {
		t.Fatalf("RenderEntry returned error: %v", err)
	}
	expectContains(t, buf.String(), "Entry:    abc", "entry id missing")
	expectContains(t, buf.String(), "Language: Rust", "entry language missing")
	expectContains(t, buf.String(), "Carbon Score: 42/100", "entry report missing")
}

func TestRenderLanguages(t *testing.T) {
	var buf bytes.Buffer
	if err := (&ConsoleFormatter{}).RenderLanguages(language.Go, &buf); err != nil {
		t.Fatalf("RenderLanguages returned error: %v", err)
	}
	out := buf.String()
	for _, l := range language.All() {
		expectContains(t, out, string(l), "language missing")
	}
	expectContains(t, out, "*", "current marker missing")
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 5, "hell…"},
		{"héllo", 1, "…"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.max); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func expectContains(t *testing.T, s, substr, msg string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Fatalf("%s: expected to contain %q\nFull output:\n%s", msg, substr, s)
	}
}

// stripANSI removes ANSI escape sequences for simplified checks.
func stripANSI(s string) string {
	var b strings.Builder
	inEsc := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 0x1b {
			inEsc = true
			continue
		}
		if inEsc {
			// ESC sequences end with 'm' or a letter; simplistic but adequate here
			if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
				inEsc = false
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

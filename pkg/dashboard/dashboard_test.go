package dashboard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/goleak"

	"github.com/greg-hellings/greencode/pkg/analysis"
	"github.com/greg-hellings/greencode/pkg/export"
	"github.com/greg-hellings/greencode/pkg/language"
	"github.com/greg-hellings/greencode/pkg/report"
	"github.com/greg-hellings/greencode/pkg/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sampleReport() *report.Report {
	return &report.Report{
		CarbonScore:             42,
		EnergyEstimate:          "0.5 kWh",
		CO2Emissions:            "0.2 kg",
		Hotspots:                []report.Hotspot{{Issue: "Nested loop", Impact: report.ImpactHigh, Suggestion: "Use a set"}},
		OptimizedCode:           "def fast():\n    pass\n",
		CarbonReductionEstimate: "40%",
		Explanation:             "Avoids quadratic scans.",
	}
}

type harness struct {
	sess    *session.Session
	model   Model
	changes int
	err     error
	calls   int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	analyzer := analysis.AnalyzerFunc(func(_ context.Context, _ string, _ language.Language) (*report.Report, error) {
		h.calls++
		if h.err != nil {
			return nil, h.err
		}
		return sampleReport(), nil
	})
	h.sess = session.New(analyzer)
	h.model = New(h.sess, Options{
		Theme:     "notty",
		ExportDir: t.TempDir(),
		Now:       func() time.Time { return time.UnixMilli(1700000000000) },
		OnChange:  func(*session.Session) { h.changes++ },
	})
	return h
}

func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

func (h *harness) key(t tea.KeyType) tea.Cmd {
	return h.send(tea.KeyMsg{Type: t})
}

func (h *harness) runes(s string) tea.Cmd {
	return h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// analyze presses ctrl+s and delivers the analysis result.
func (h *harness) analyze(t *testing.T) {
	t.Helper()
	if cmd := h.key(tea.KeyCtrlS); cmd == nil {
		t.Fatal("Expected a command from ctrl+s")
	}
	h.send(h.model.analyzeCmd()())
}

func TestNewStartsInEditor(t *testing.T) {
	h := newHarness(t)

	if h.sess.View() != session.ViewEditing {
		t.Errorf("Expected editing view, got %s", h.sess.View())
	}
	if h.model.editor.Value() != language.Python.Example() {
		t.Error("Expected editor to hold the Python example")
	}
	out := h.model.View()
	for _, want := range []string{"GreenCode AI", "Analyzer", "Language: Python", "History (0)"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected view to contain %q\n%s", want, out)
		}
	}
}

func TestTypingUpdatesSession(t *testing.T) {
	h := newHarness(t)
	h.runes("z")

	if !strings.HasSuffix(h.sess.Code(), "z") {
		t.Errorf("Expected typed rune in session code, got %q", h.sess.Code())
	}
}

func TestLanguageCycleLoadsExample(t *testing.T) {
	h := newHarness(t)
	h.key(tea.KeyCtrlL)

	if h.sess.Language() != language.JavaScript {
		t.Fatalf("Expected JavaScript, got %s", h.sess.Language())
	}
	if h.model.editor.Value() != language.JavaScript.Example() {
		t.Error("Expected editor to be reseeded with the JavaScript example")
	}
}

func TestAnalyzeShowsReport(t *testing.T) {
	h := newHarness(t)

	h.key(tea.KeyCtrlS)
	if !strings.Contains(h.model.View(), "Analyzing Python code") {
		t.Errorf("Expected pending indicator\n%s", h.model.View())
	}
	if cmd := h.key(tea.KeyCtrlS); cmd != nil {
		t.Error("Expected second ctrl+s to be ignored while analyzing")
	}

	h.send(h.model.analyzeCmd()())

	if h.calls != 1 {
		t.Errorf("Expected 1 analyzer call, got %d", h.calls)
	}
	if h.sess.View() != session.ViewReport {
		t.Fatalf("Expected report view, got %s", h.sess.View())
	}
	if h.changes != 1 {
		t.Errorf("Expected OnChange once, got %d", h.changes)
	}
	out := h.model.View()
	for _, want := range []string{"Carbon Score: 42/100", "Nested loop", "History (1)", "Overview"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected view to contain %q\n%s", want, out)
		}
	}

	h.key(tea.KeyTab)
	out = h.model.View()
	if !strings.Contains(out, "Original") || !strings.Contains(out, "def fast():") {
		t.Errorf("Expected code tab\n%s", out)
	}
}

func TestAnalyzeFailureShowsError(t *testing.T) {
	h := newHarness(t)
	h.err = &analysis.ProviderError{Provider: analysis.ProviderGemini, StatusCode: 429, Err: errors.New("quota exceeded")}

	h.analyze(t)

	if h.sess.View() != session.ViewEditing {
		t.Errorf("Expected to stay in editor, got %s", h.sess.View())
	}
	if h.changes != 0 {
		t.Errorf("Expected no OnChange on failure, got %d", h.changes)
	}
	want := analysis.Message(h.err)
	if !strings.Contains(h.model.View(), want) {
		t.Errorf("Expected error %q in view\n%s", want, h.model.View())
	}
}

func TestAboutAndBackDiscardReport(t *testing.T) {
	h := newHarness(t)
	h.analyze(t)

	h.key(tea.KeyF1)
	if h.sess.View() != session.ViewAbout {
		t.Fatalf("Expected about view, got %s", h.sess.View())
	}
	if !strings.Contains(h.model.View(), "About GreenCode AI") {
		t.Errorf("Expected about content\n%s", h.model.View())
	}

	h.key(tea.KeyEsc)
	if h.sess.View() != session.ViewEditing {
		t.Fatalf("Expected editing view, got %s", h.sess.View())
	}
	if h.sess.ActiveReport() != nil {
		t.Error("Expected report to be discarded after About -> Editor")
	}

	h.key(tea.KeyF2)
	if !strings.Contains(h.model.View(), "Carbon Score") {
		t.Errorf("Expected docs content\n%s", h.model.View())
	}
}

func TestNewAnalysisKeepsReport(t *testing.T) {
	h := newHarness(t)
	h.analyze(t)

	h.runes("n")
	if h.sess.View() != session.ViewEditing {
		t.Fatalf("Expected editing view, got %s", h.sess.View())
	}
	if h.sess.ActiveReport() == nil {
		t.Error("Expected report to survive Report -> Editor")
	}
}

func TestHistoryLoadAndClear(t *testing.T) {
	h := newHarness(t)
	submitted := h.sess.Code()
	h.analyze(t)
	h.runes("n")

	h.runes("x")
	if h.sess.Code() == submitted {
		t.Fatal("Expected edit to change the code")
	}

	h.key(tea.KeyCtrlO)
	if !h.model.historyFocused {
		t.Fatal("Expected history focus")
	}
	h.key(tea.KeyEnter)

	if h.sess.View() != session.ViewReport {
		t.Errorf("Expected report view after loading history, got %s", h.sess.View())
	}
	if h.model.editor.Value() != submitted || h.sess.Code() != submitted {
		t.Error("Expected editor to show the submitted code")
	}
	if h.calls != 1 {
		t.Errorf("Loading history must not call the analyzer, got %d calls", h.calls)
	}

	h.key(tea.KeyCtrlO)
	h.runes("x")
	if len(h.sess.History()) != 0 {
		t.Errorf("Expected cleared history, got %d", len(h.sess.History()))
	}
	if h.changes != 3 {
		t.Errorf("Expected 3 OnChange calls, got %d", h.changes)
	}
}

func TestHistoryFocusWithoutEntries(t *testing.T) {
	h := newHarness(t)
	h.key(tea.KeyCtrlO)

	if h.model.historyFocused {
		t.Error("Expected no focus on empty history")
	}
	if !strings.Contains(h.model.View(), "No history yet") {
		t.Errorf("Expected status hint\n%s", h.model.View())
	}
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	h.analyze(t)

	cmd := h.key(tea.KeyCtrlE)
	if cmd == nil {
		t.Fatal("Expected export command")
	}
	h.send(cmd())

	path := filepath.Join(h.model.opts.ExportDir, export.FileName(time.UnixMilli(1700000000000)))
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected export file: %v", err)
	}
	doc, err := export.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if doc.CarbonScore != 42 || doc.OriginalCode != language.Python.Example() {
		t.Errorf("Unexpected export: %+v", doc)
	}
	if !strings.Contains(h.model.View(), "Report exported to") {
		t.Errorf("Expected export status\n%s", h.model.View())
	}
}

// withClipboard swaps the clipboard writer and returns what was copied.
func withClipboard(t *testing.T, err error) *[]string {
	t.Helper()
	var copied []string
	orig := writeClipboard
	writeClipboard = func(text string) error {
		copied = append(copied, text)
		return err
	}
	t.Cleanup(func() { writeClipboard = orig })
	return &copied
}

func TestCopyOptimizedCode(t *testing.T) {
	copied := withClipboard(t, nil)
	h := newHarness(t)
	h.analyze(t)

	h.key(tea.KeyCtrlY)

	if len(*copied) != 1 || (*copied)[0] != sampleReport().OptimizedCode {
		t.Fatalf("Expected optimized code on the clipboard, got %q", *copied)
	}
	if h.model.status != "Copied optimized code" || h.model.statusIsError {
		t.Errorf("Unexpected status %q (error=%v)", h.model.status, h.model.statusIsError)
	}
	if !strings.Contains(h.model.View(), "ctrl+y") {
		t.Errorf("Expected copy key in the report help\n%s", h.model.View())
	}
}

func TestCopyOptimizedCodeFailure(t *testing.T) {
	copied := withClipboard(t, errors.New("no clipboard utility found"))
	h := newHarness(t)
	h.analyze(t)

	h.key(tea.KeyCtrlY)

	if len(*copied) != 1 {
		t.Fatalf("Expected one clipboard write, got %d", len(*copied))
	}
	if !h.model.statusIsError || !strings.Contains(h.model.status, "no clipboard utility found") {
		t.Errorf("Expected copy failure in status, got %q", h.model.status)
	}
}

func TestCopyIgnoredInEditor(t *testing.T) {
	copied := withClipboard(t, nil)
	h := newHarness(t)

	h.key(tea.KeyCtrlY)
	if len(*copied) != 0 {
		t.Errorf("Expected no clipboard write from the editor, got %q", *copied)
	}
}

func TestRetryHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "provider", err: &analysis.ProviderError{Provider: analysis.ProviderGemini, StatusCode: 503, Err: errors.New("overloaded")}, want: true},
		{name: "malformed", err: &analysis.MalformedResponseError{Provider: analysis.ProviderGemini, Err: errors.New("prose")}, want: true},
		{name: "configuration", err: &analysis.ConfigurationError{Provider: analysis.ProviderGemini, Err: analysis.ErrMissingAPIKey}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.err = tt.err
			h.analyze(t)

			status := h.model.statusView(h.sess.Snapshot())
			if got := strings.Contains(status, "ctrl+s to retry"); got != tt.want {
				t.Errorf("Expected retry hint=%v, got %q", tt.want, status)
			}

			h.err = nil
			h.analyze(t)
			if status := h.model.statusView(h.sess.Snapshot()); strings.Contains(status, "retry") {
				t.Errorf("Expected hint cleared after success, got %q", status)
			}
		})
	}
}

func TestWindowSize(t *testing.T) {
	h := newHarness(t)

	h.send(tea.WindowSizeMsg{Width: 60, Height: 20})
	if h.model.width != 60 || h.model.height != 20 {
		t.Errorf("Unexpected size %dx%d", h.model.width, h.model.height)
	}
	if strings.Contains(h.model.View(), "History (") {
		t.Error("Expected sidebar hidden on narrow terminals")
	}

	h.send(tea.WindowSizeMsg{Width: 0, Height: -1})
	if h.model.width != defaultWidth || h.model.height != defaultHeight {
		t.Errorf("Expected defaults for bogus size, got %dx%d", h.model.width, h.model.height)
	}
}

func TestQuit(t *testing.T) {
	h := newHarness(t)
	cmd := h.key(tea.KeyCtrlC)
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
}

func TestReportMarkdown(t *testing.T) {
	r := sampleReport()
	r.EnergyEstimate = "a | b"
	md := reportMarkdown(r)

	for _, want := range []string{"# Carbon Score: 42/100 (Fair)", "Band: **Needs Action**", `a \| b`, "1. **[High]** Nested loop"} {
		if !strings.Contains(md, want) {
			t.Errorf("Expected markdown to contain %q\n%s", want, md)
		}
	}

	r.Hotspots = nil
	if !strings.Contains(reportMarkdown(r), "No hotspots detected.") {
		t.Error("Expected placeholder for empty hotspots")
	}
}

func TestAboutListsLanguages(t *testing.T) {
	about := About()
	for _, l := range language.All() {
		if !strings.Contains(about, l.String()) {
			t.Errorf("Expected About to mention %s", l)
		}
	}
	if strings.Contains(about, "%!") {
		t.Error("About has a formatting error")
	}
}

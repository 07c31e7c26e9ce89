package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/greg-hellings/greencode/pkg/analysis"
	"github.com/greg-hellings/greencode/pkg/export"
	"github.com/greg-hellings/greencode/pkg/history"
	"github.com/greg-hellings/greencode/pkg/language"
	"github.com/greg-hellings/greencode/pkg/report"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func fixedReport(score int) *report.Report {
	return &report.Report{
		CarbonScore:    score,
		EnergyEstimate: "0.45 kWh per 1M executions",
		CO2Emissions:   "180 g CO2",
		Hotspots: []report.Hotspot{
			{Issue: "Nested loop", Impact: report.ImpactHigh, Suggestion: "Use a set"},
		},
		OptimizedCode:           "print(1)",
		CarbonReductionEstimate: "35%",
		Explanation:             "Less work.",
	}
}

// stubAnalyzer returns a fixed report and counts calls.
type stubAnalyzer struct {
	report *report.Report
	err    error
	calls  atomic.Int32

	mu       sync.Mutex
	lastCode string
	lastLang language.Language
}

func (s *stubAnalyzer) Analyze(ctx context.Context, code string, lang language.Language) (*report.Report, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.lastCode, s.lastLang = code, lang
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.report.Clone(), nil
}

// blockingAnalyzer waits for release before answering.
type blockingAnalyzer struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	report  *report.Report
}

func newBlockingAnalyzer() *blockingAnalyzer {
	return &blockingAnalyzer{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
		report:  fixedReport(70),
	}
}

func (b *blockingAnalyzer) Analyze(ctx context.Context, code string, lang language.Language) (*report.Report, error) {
	b.calls.Add(1)
	b.started <- struct{}{}
	<-b.release
	return b.report.Clone(), nil
}

func newTestSession(a analysis.Analyzer, opts ...Option) *Session {
	return New(a, append([]Option{WithLogger(quietLogger)}, opts...)...)
}

func TestNewSessionDefaults(t *testing.T) {
	s := newTestSession(nil)
	st := s.Snapshot()
	if st.Language != language.Python || st.EditorCode != language.Python.Example() {
		t.Errorf("expected Python example preloaded, got %s", st.Language)
	}
	if st.View != ViewEditing || st.Pending || st.ActiveReport != nil || st.LastError != "" {
		t.Errorf("unexpected initial state: %+v", st)
	}
}

func TestPythonExampleScenario(t *testing.T) {
	stub := &stubAnalyzer{report: fixedReport(42)}
	s := newTestSession(stub)

	if err := s.SetLanguage(language.Python); err != nil {
		t.Fatal(err)
	}
	got, err := s.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	st := s.Snapshot()
	if st.View != ViewReport {
		t.Errorf("view = %s, want report", st.View)
	}
	if st.HistorySize != 1 {
		t.Errorf("history size = %d, want 1", st.HistorySize)
	}
	if got.CarbonScore != 42 || st.ActiveReport.CarbonScore != 42 {
		t.Errorf("score = %d/%d, want 42", got.CarbonScore, st.ActiveReport.CarbonScore)
	}
	if st.ActiveSource != language.Python.Example() {
		t.Error("active source should be the submitted code")
	}
	if stub.lastLang != language.Python || stub.lastCode != language.Python.Example() {
		t.Errorf("analyzer got %s / %q", stub.lastLang, stub.lastCode)
	}
	if st.Pending {
		t.Error("pending should be cleared after success")
	}
}

func TestAboutThenEditorDiscardsReport(t *testing.T) {
	s := newTestSession(&stubAnalyzer{report: fixedReport(42)})
	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := s.Navigate(ViewAbout); err != nil {
		t.Fatal(err)
	}
	if s.Snapshot().ActiveReport == nil {
		t.Fatal("report should survive navigation to About")
	}
	if err := s.Navigate(ViewEditing); err != nil {
		t.Fatal(err)
	}

	st := s.Snapshot()
	if st.View != ViewEditing || st.ActiveReport != nil || st.ActiveSource != "" {
		t.Errorf("expected editor with no report, got %+v", st)
	}
	if st.HistorySize != 1 {
		t.Error("history must not be affected by the reset")
	}
}

func TestNavigation(t *testing.T) {
	tests := []struct {
		name       string
		steps      func(s *Session) error
		wantView   View
		wantReport bool
		wantErr    error
	}{
		{
			name:       "report back keeps report",
			steps:      func(s *Session) error { return s.Back() },
			wantView:   ViewEditing,
			wantReport: true,
		},
		{
			name:       "report to editor keeps report",
			steps:      func(s *Session) error { return s.Navigate(ViewEditing) },
			wantView:   ViewEditing,
			wantReport: true,
		},
		{
			name: "editor to editor discards report",
			steps: func(s *Session) error {
				if err := s.Back(); err != nil {
					return err
				}
				return s.Navigate(ViewEditing)
			},
			wantView: ViewEditing,
		},
		{
			name: "docs back discards report",
			steps: func(s *Session) error {
				if err := s.Navigate(ViewDocs); err != nil {
					return err
				}
				return s.Back()
			},
			wantView: ViewEditing,
		},
		{
			name:       "navigate to report is rejected",
			steps:      func(s *Session) error { return s.Navigate(ViewReport) },
			wantView:   ViewReport,
			wantReport: true,
			wantErr:    ErrInvalidTransition,
		},
		{
			name: "back from editor is rejected",
			steps: func(s *Session) error {
				if err := s.Back(); err != nil {
					return err
				}
				return s.Back()
			},
			wantView:   ViewEditing,
			wantReport: true,
			wantErr:    ErrInvalidTransition,
		},
		{
			name:       "unknown view is rejected",
			steps:      func(s *Session) error { return s.Navigate(View("settings")) },
			wantView:   ViewReport,
			wantReport: true,
			wantErr:    ErrInvalidTransition,
		},
		{
			name: "about to docs keeps report",
			steps: func(s *Session) error {
				if err := s.Navigate(ViewAbout); err != nil {
					return err
				}
				return s.Navigate(ViewDocs)
			},
			wantView:   ViewDocs,
			wantReport: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(&stubAnalyzer{report: fixedReport(60)})
			if _, err := s.Submit(context.Background()); err != nil {
				t.Fatal(err)
			}

			err := tt.steps(s)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			st := s.Snapshot()
			if st.View != tt.wantView {
				t.Errorf("view = %s, want %s", st.View, tt.wantView)
			}
			if (st.ActiveReport != nil) != tt.wantReport {
				t.Errorf("active report present = %v, want %v", st.ActiveReport != nil, tt.wantReport)
			}
		})
	}
}

func TestDoubleSubmitWhilePending(t *testing.T) {
	b := newBlockingAnalyzer()
	s := newTestSession(b)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = s.Submit(context.Background())
	}()

	<-b.started
	if !s.Pending() {
		t.Error("pending should be set while the analyzer runs")
	}
	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("second submit: expected ErrSubmitInFlight, got %v", err)
	}
	if err := s.CanSubmit(); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("CanSubmit: expected ErrSubmitInFlight, got %v", err)
	}

	close(b.release)
	wg.Wait()

	if firstErr != nil {
		t.Fatalf("first submit failed: %v", firstErr)
	}
	if n := b.calls.Load(); n != 1 {
		t.Errorf("analyzer called %d times, want 1", n)
	}
	if n := len(s.History()); n != 1 {
		t.Errorf("history has %d entries, want 1", n)
	}
	if s.Pending() {
		t.Error("pending should be cleared")
	}
}

func TestCanSubmitFollowsView(t *testing.T) {
	s := newTestSession(&stubAnalyzer{report: fixedReport(50)})
	if err := s.CanSubmit(); err != nil {
		t.Errorf("editor: unexpected error %v", err)
	}
	for _, v := range []View{ViewAbout, ViewDocs} {
		if err := s.Navigate(v); err != nil {
			t.Fatal(err)
		}
		if err := s.CanSubmit(); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s: expected ErrInvalidTransition, got %v", v, err)
		}
	}
}

func TestSessionIsUsableWhileAnalyzing(t *testing.T) {
	b := newBlockingAnalyzer()
	s := newTestSession(b)
	submitted := s.Code()

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		done <- err
	}()
	<-b.started

	s.SetCode("edited during analysis")
	if err := s.Navigate(ViewAbout); err != nil {
		t.Fatal(err)
	}
	close(b.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	st := s.Snapshot()
	if st.View != ViewAbout {
		t.Errorf("completion must not pull the user out of About, got %s", st.View)
	}
	if st.ActiveReport == nil || st.ActiveSource != submitted {
		t.Error("report should be stored against the submitted code")
	}
	entries := s.History()
	if len(entries) != 1 || entries[0].SourceCode != submitted {
		t.Errorf("history should record the submitted code, got %+v", entries)
	}
	if st.EditorCode != "edited during analysis" {
		t.Error("editor contents should not be overwritten by completion")
	}
}

func TestPendingClearedOnFailure(t *testing.T) {
	failure := &analysis.ProviderError{Provider: "gemini", StatusCode: 429, Err: errors.New("quota exceeded")}
	s := newTestSession(&stubAnalyzer{err: failure})

	_, err := s.Submit(context.Background())
	if !errors.Is(err, failure) {
		t.Fatalf("expected provider error, got %v", err)
	}

	st := s.Snapshot()
	if st.Pending {
		t.Error("pending should be cleared after failure")
	}
	if st.LastError != analysis.Message(failure) {
		t.Errorf("last error = %q", st.LastError)
	}
	if st.View != ViewEditing || st.ActiveReport != nil || st.HistorySize != 0 {
		t.Errorf("failure must not change view, report or history: %+v", st)
	}
}

func TestFailureKeepsPreviousReport(t *testing.T) {
	stub := &stubAnalyzer{report: fixedReport(90)}
	s := newTestSession(stub)
	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	stub.err = &analysis.MalformedResponseError{Provider: "gemini", Err: errors.New("bad json")}

	if _, err := s.Submit(context.Background()); err == nil {
		t.Fatal("expected failure")
	}
	st := s.Snapshot()
	if st.View != ViewReport || st.ActiveReport == nil || st.ActiveReport.CarbonScore != 90 {
		t.Errorf("previous report should stay visible: %+v", st)
	}
	if st.LastError == "" {
		t.Error("last error should be set")
	}
}

func TestPendingClearedOnPanic(t *testing.T) {
	s := newTestSession(analysis.AnalyzerFunc(func(context.Context, string, language.Language) (*report.Report, error) {
		panic("boom")
	}))

	_, err := s.Submit(context.Background())
	if analysis.Kind(err) != analysis.KindProvider {
		t.Fatalf("expected panic converted to provider error, got %v", err)
	}
	if s.Pending() {
		t.Error("pending should be cleared after a panic")
	}
	if s.Snapshot().LastError == "" {
		t.Error("last error should describe the panic")
	}
}

func TestNilReportIsMalformed(t *testing.T) {
	s := newTestSession(analysis.AnalyzerFunc(func(context.Context, string, language.Language) (*report.Report, error) {
		return nil, nil
	}))
	if _, err := s.Submit(context.Background()); analysis.Kind(err) != analysis.KindMalformed {
		t.Errorf("expected malformed response error, got %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	stub := &stubAnalyzer{report: fixedReport(50)}
	s := newTestSession(stub)

	s.SetCode("   \n\t")
	_, err := s.Submit(context.Background())
	var ve *analysis.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	s.SetCode("print(1)")
	if err := s.Navigate(ViewDocs); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Submit(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition from Docs, got %v", err)
	}

	if n := stub.calls.Load(); n != 0 {
		t.Errorf("analyzer should not be called, got %d calls", n)
	}
	if s.Pending() {
		t.Error("rejected submits must not leave pending set")
	}
}

func TestMissingAnalyzerIsConfigurationError(t *testing.T) {
	s := newTestSession(nil)
	if _, err := s.Submit(context.Background()); analysis.Kind(err) != analysis.KindConfiguration {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestHistoryReloadUnaffectedByLaterEdits(t *testing.T) {
	stub := &stubAnalyzer{report: fixedReport(42)}
	s := newTestSession(stub, WithLanguage(language.Go))
	original := s.Code()

	returned, err := s.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	id := s.History()[0].ID

	returned.Hotspots[0].Issue = "mutated by caller"
	if err := s.Back(); err != nil {
		t.Fatal(err)
	}
	if err := s.SetLanguage(language.Rust); err != nil {
		t.Fatal(err)
	}
	s.SetCode("fn main() {}")

	if err := s.LoadFromHistory(id); err != nil {
		t.Fatalf("LoadFromHistory returned error: %v", err)
	}
	st := s.Snapshot()
	if st.EditorCode != original || st.Language != language.Go {
		t.Errorf("expected original Go code restored, got %s %q", st.Language, st.EditorCode)
	}
	if st.View != ViewReport || st.ActiveReport.Hotspots[0].Issue != "Nested loop" {
		t.Errorf("history report should be unaffected: %+v", st.ActiveReport)
	}
	if n := stub.calls.Load(); n != 1 {
		t.Errorf("loading history must not call the analyzer (calls=%d)", n)
	}
}

func TestLoadFromHistoryErrors(t *testing.T) {
	s := newTestSession(&stubAnalyzer{report: fixedReport(42)})
	if err := s.LoadFromHistory("missing"); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	id := s.History()[0].ID
	if err := s.Navigate(ViewAbout); err != nil {
		t.Fatal(err)
	}
	if err := s.LoadFromHistory(id); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition from About, got %v", err)
	}
}

func TestSetLanguage(t *testing.T) {
	stub := &stubAnalyzer{err: &analysis.ConfigurationError{Err: analysis.ErrMissingAPIKey}}
	s := newTestSession(stub)
	if _, err := s.Submit(context.Background()); err == nil {
		t.Fatal("expected failure")
	}

	if err := s.SetLanguage(language.TypeScript); err != nil {
		t.Fatal(err)
	}
	st := s.Snapshot()
	if st.Language != language.TypeScript || st.EditorCode != language.TypeScript.Example() {
		t.Errorf("language switch should load the example, got %s", st.Language)
	}
	if st.LastError != "" {
		t.Error("language switch should clear the last error")
	}

	if err := s.SetLanguage(language.Language("Cobol")); err == nil {
		t.Error("unknown language should be rejected")
	}
	if s.Language() != language.TypeScript {
		t.Error("rejected language must not change the selection")
	}
}

func TestSetLanguageKeepsReport(t *testing.T) {
	s := newTestSession(&stubAnalyzer{report: fixedReport(42)})
	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.SetLanguage(language.Java); err != nil {
		t.Fatal(err)
	}
	if s.ActiveReport() == nil {
		t.Error("switching language should keep the active report")
	}
}

func TestHistoryIsBounded(t *testing.T) {
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestSession(&stubAnalyzer{report: fixedReport(42)}, WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))

	for i := 0; i < history.DefaultCapacity+3; i++ {
		if _, err := s.Submit(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	entries := s.History()
	if len(entries) != history.DefaultCapacity {
		t.Fatalf("history has %d entries, want %d", len(entries), history.DefaultCapacity)
	}
	if !entries[0].CreatedAt.After(entries[1].CreatedAt) {
		t.Error("history should be most recent first")
	}

	s.ClearHistory()
	if len(s.History()) != 0 || s.ActiveReport() == nil {
		t.Error("ClearHistory should empty history and keep the active report")
	}
}

func TestExport(t *testing.T) {
	s := newTestSession(&stubAnalyzer{report: fixedReport(42)})
	if _, err := s.Export(time.Now()); !errors.Is(err, ErrNoActiveReport) {
		t.Errorf("expected ErrNoActiveReport, got %v", err)
	}

	if _, err := s.Submit(context.Background()); err != nil {
		t.Fatal(err)
	}
	at := time.UnixMilli(1700000000000)
	doc, err := s.Export(at)
	if err != nil {
		t.Fatal(err)
	}
	if doc.CarbonScore != 42 || doc.OriginalCode != language.Python.Example() || !doc.Timestamp.Equal(at) {
		t.Errorf("unexpected export: %+v", doc)
	}
}

func TestParseView(t *testing.T) {
	for in, want := range map[string]View{"Editor": ViewEditing, "report": ViewReport, " ABOUT ": ViewAbout, "docs": ViewDocs} {
		got, err := ParseView(in)
		if err != nil || got != want {
			t.Errorf("ParseView(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseView("settings"); err == nil {
		t.Error("expected error for unknown view")
	}
}

// Out of range scores are clamped before they reach the report, the history
// and the export document, so exports always parse back.
func TestSubmitClampsScore(t *testing.T) {
	for _, tt := range []struct{ got, want int }{{150, 100}, {-5, 0}, {73, 73}} {
		s := newTestSession(&stubAnalyzer{report: fixedReport(tt.got)})

		out, err := s.Submit(context.Background())
		if err != nil {
			t.Fatalf("score %d: %v", tt.got, err)
		}
		if out.CarbonScore != tt.want {
			t.Errorf("score %d: returned report has %d, want %d", tt.got, out.CarbonScore, tt.want)
		}
		if active := s.ActiveReport(); active.CarbonScore != tt.want {
			t.Errorf("score %d: active report has %d, want %d", tt.got, active.CarbonScore, tt.want)
		}
		if h := s.History(); len(h) != 1 || h[0].Report.CarbonScore != tt.want {
			t.Errorf("score %d: unexpected history %+v", tt.got, h)
		}

		doc, err := s.Export(time.UnixMilli(1700000000000))
		if err != nil {
			t.Fatal(err)
		}
		data, err := export.Marshal(doc)
		if err != nil {
			t.Fatal(err)
		}
		parsed, err := export.Parse(data)
		if err != nil {
			t.Fatalf("score %d: export does not parse back: %v", tt.got, err)
		}
		if parsed.CarbonScore != tt.want {
			t.Errorf("score %d: parsed export has %d, want %d", tt.got, parsed.CarbonScore, tt.want)
		}
	}
}

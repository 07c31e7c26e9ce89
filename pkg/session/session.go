// Package session holds the state of one user session: the editor contents,
// the active report, the last error, the analysis history and the current
// view. Every mutation goes through a named operation on Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/greg-hellings/greencode/pkg/analysis"
	"github.com/greg-hellings/greencode/pkg/export"
	"github.com/greg-hellings/greencode/pkg/history"
	"github.com/greg-hellings/greencode/pkg/language"
	"github.com/greg-hellings/greencode/pkg/report"
)

var (
	// ErrSubmitInFlight is returned when an analysis is already running.
	ErrSubmitInFlight = errors.New("an analysis is already in progress")
	// ErrInvalidTransition is returned for a view change the state machine
	// does not allow.
	ErrInvalidTransition = errors.New("invalid view transition")
	// ErrNoActiveReport is returned when an operation needs a report and
	// none is shown.
	ErrNoActiveReport = errors.New("no active report")
)

// State is a point-in-time copy of the session.
type State struct {
	Language     language.Language `json:"selected_language"`
	EditorCode   string            `json:"editor_code"`
	Pending      bool              `json:"pending"`
	LastError    string            `json:"last_error,omitempty"`
	ActiveReport *report.Report    `json:"active_report,omitempty"`
	ActiveSource string            `json:"active_source,omitempty"`
	View         View              `json:"view"`
	HistorySize  int               `json:"history_size"`
}

// Session is safe for concurrent use. The lock is never held while the
// analyzer runs.
type Session struct {
	analyzer analysis.Analyzer
	ledger   *history.Ledger
	now      func() time.Time
	logger   *slog.Logger

	mu           sync.Mutex
	language     language.Language
	code         string
	pending      bool
	lastError    string
	active       *report.Report
	activeSource string
	view         View
}

// Option configures a Session.
type Option func(*Session)

// WithLedger uses l instead of an empty ledger.
func WithLedger(l *history.Ledger) Option {
	return func(s *Session) {
		if l != nil {
			s.ledger = l
		}
	}
}

// WithClock overrides the time source used for history entries.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLanguage selects the initial language and seeds the editor with its
// example. Unknown languages are ignored.
func WithLanguage(lang language.Language) Option {
	return func(s *Session) {
		if lang.Valid() {
			s.language = lang
			s.code = lang.Example()
		}
	}
}

// WithCode sets the initial editor contents.
func WithCode(code string) Option {
	return func(s *Session) {
		s.code = code
	}
}

// New creates a session in the editor view with the default language and
// its example loaded.
func New(a analysis.Analyzer, opts ...Option) *Session {
	s := &Session{
		analyzer: a,
		ledger:   history.New(),
		now:      time.Now,
		logger:   slog.Default(),
		language: language.Default,
		code:     language.Default.Example(),
		view:     ViewEditing,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetLanguage switches the language, replaces the editor contents with the
// language's example and clears the last error. The active report is kept.
func (s *Session) SetLanguage(lang language.Language) error {
	if !lang.Valid() {
		return &analysis.ValidationError{Reason: fmt.Sprintf("unsupported language %q", lang)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.language = lang
	s.code = lang.Example()
	s.lastError = ""
	return nil
}

// SetCode stores the editor contents verbatim.
func (s *Session) SetCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
}

// Language returns the selected language.
func (s *Session) Language() language.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// Code returns the editor contents.
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// Pending reports whether an analysis is running.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// CanSubmit returns the error Submit would fail with before calling the
// analyzer because of the session state: ErrSubmitInFlight while an analysis
// runs, ErrInvalidTransition outside the editor and report views.
func (s *Session) CanSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canSubmitLocked()
}

func (s *Session) canSubmitLocked() error {
	if s.pending {
		return ErrSubmitInFlight
	}
	if s.view != ViewEditing && s.view != ViewReport {
		return fmt.Errorf("%w: cannot analyze from %s", ErrInvalidTransition, s.view)
	}
	return nil
}

// Submit analyzes the current editor contents. On success the report
// becomes active, a history entry is recorded with the submitted inputs and
// the view moves to Report if the user is still in the editor or report.
// On failure the error message is kept for display and nothing else
// changes. The returned report is a copy with its score clamped to
// [0, 100], as are the active report and the history entry.
func (s *Session) Submit(ctx context.Context) (out *report.Report, err error) {
	s.mu.Lock()
	if err := s.canSubmitLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	code, lang := s.code, s.language
	if strings.TrimSpace(code) == "" {
		s.mu.Unlock()
		return nil, &analysis.ValidationError{Reason: "source code is empty"}
	}
	s.pending = true
	s.lastError = ""
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.pending = false
		if err != nil {
			s.lastError = analysis.Message(err)
			s.logger.Info("Analysis failed", "language", string(lang), "kind", analysis.Kind(err), "error", err)
			return
		}
		s.commitLocked(lang, code, out)
	}()

	s.logger.Info("Analyzing code", "language", string(lang), "bytes", len(code))
	r, err := s.call(ctx, code, lang)
	if err != nil {
		return nil, err
	}
	return clamped(r), nil
}

// clamped returns a copy of r with its score confined to the gauge range.
func clamped(r *report.Report) *report.Report {
	c := r.Clone()
	c.CarbonScore = report.ClampScore(c.CarbonScore)
	return c
}

// call runs the analyzer, converting panics and empty results into errors.
func (s *Session) call(ctx context.Context, code string, lang language.Language) (r *report.Report, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("Analyzer panicked", "panic", p)
			r = nil
			err = &analysis.ProviderError{Provider: "analyzer", Err: fmt.Errorf("analyzer panicked: %v", p)}
		}
	}()

	if s.analyzer == nil {
		return nil, &analysis.ConfigurationError{Reason: "no analyzer configured"}
	}
	r, err = s.analyzer.Analyze(ctx, code, lang)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, &analysis.MalformedResponseError{Provider: "analyzer", Err: errors.New("no report returned")}
	}
	return r, nil
}

func (s *Session) commitLocked(lang language.Language, code string, r *report.Report) {
	r = clamped(r)
	s.active = r
	s.activeSource = code

	entry, err := s.ledger.Record(lang, code, r, s.now())
	if err != nil {
		s.logger.Warn("Failed to record history entry", "error", err)
	} else {
		s.logger.Debug("Recorded history entry", "id", entry.ID, "entries", s.ledger.Len())
	}

	if s.view == ViewEditing || s.view == ViewReport {
		s.view = ViewReport
	}
	s.logger.Info("Analysis complete", "language", string(lang), "summary", r.Summary())
}

// LoadFromHistory makes the entry with the given id active without calling
// the analyzer.
func (s *Session) LoadFromHistory(id string) error {
	entry, err := s.ledger.Get(id)
	if err != nil {
		return err
	}
	return s.LoadEntry(entry)
}

// LoadEntry restores code, language and report from entry in one step and
// shows the report. Only allowed from the editor or report views.
func (s *Session) LoadEntry(entry history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.view != ViewEditing && s.view != ViewReport {
		return fmt.Errorf("%w: cannot open history from %s", ErrInvalidTransition, s.view)
	}

	entry = entry.Clone()
	if entry.Language.Valid() {
		s.language = entry.Language
	}
	s.code = entry.SourceCode
	s.active = &entry.Report
	s.activeSource = entry.SourceCode
	s.lastError = ""
	s.view = ViewReport
	s.logger.Debug("Loaded history entry", "id", entry.ID, "language", string(entry.Language))
	return nil
}

// ActiveReport returns a copy of the shown report, or nil.
func (s *Session) ActiveReport() *report.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Clone()
}

// Snapshot returns a deep copy of the session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Language:     s.language,
		EditorCode:   s.code,
		Pending:      s.pending,
		LastError:    s.lastError,
		ActiveReport: s.active.Clone(),
		ActiveSource: s.activeSource,
		View:         s.view,
		HistorySize:  s.ledger.Len(),
	}
}

// History returns the ledger entries, most recent first.
func (s *Session) History() []history.Entry {
	return s.ledger.Entries()
}

// ClearHistory empties the ledger. The active report is not affected.
func (s *Session) ClearHistory() {
	s.ledger.Clear()
	s.logger.Debug("History cleared")
}

// Export builds the export document for the active report.
func (s *Session) Export(at time.Time) (*export.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil, ErrNoActiveReport
	}
	return export.New(s.active, s.activeSource, at), nil
}

// Package server exposes one session over a small JSON HTTP API for a web
// front-end: language catalog, editor state, analysis, navigation, history
// and report export.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/greg-hellings/greencode/pkg/analysis"
	"github.com/greg-hellings/greencode/pkg/export"
	"github.com/greg-hellings/greencode/pkg/history"
	"github.com/greg-hellings/greencode/pkg/language"
	"github.com/greg-hellings/greencode/pkg/session"
)

const maxBodyBytes = 1 << 20

// Error kinds reported in error bodies that are not analyzer failures.
const (
	KindInFlight          = "in_flight"
	KindInvalidTransition = "invalid_transition"
	KindNotFound          = "not_found"
	KindBadRequest        = "bad_request"
)

// Deps are the collaborators of a Server.
type Deps struct {
	Session *session.Session
	Log     *slog.Logger
	// AccessLog receives one line per request. Defaults to stderr.
	AccessLog io.Writer
	// Timeout bounds each analysis on top of the request context. Zero
	// means no extra limit.
	Timeout time.Duration
	// Now stamps exports. Defaults to time.Now.
	Now func() time.Time
	// OnChange runs after analyses, history loads and history clears.
	OnChange func(*session.Session)
}

// Server serves the API for one session.
type Server struct {
	d    Deps
	http *http.Server
}

// New creates a Server.
func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.AccessLog == nil {
		d.AccessLog = os.Stderr
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Server{d: d}
}

// Router returns the API routes without access logging.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/languages", s.handleLanguages).Methods(http.MethodGet)
	api.HandleFunc("/languages/{name}/example", s.handleExample).Methods(http.MethodGet)

	api.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	api.HandleFunc("/session/language", s.handleSetLanguage).Methods(http.MethodPut)
	api.HandleFunc("/session/code", s.handleSetCode).Methods(http.MethodPut)
	api.HandleFunc("/session/analyze", s.handleAnalyze).Methods(http.MethodPost)
	api.HandleFunc("/session/navigate", s.handleNavigate).Methods(http.MethodPost)
	api.HandleFunc("/session/back", s.handleBack).Methods(http.MethodPost)

	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleClearHistory).Methods(http.MethodDelete)
	api.HandleFunc("/history/{id}/load", s.handleLoadHistory).Methods(http.MethodPost)

	api.HandleFunc("/report/export", s.handleExport).Methods(http.MethodGet)

	return r
}

// Handler returns the routes wrapped in the access logger.
func (s *Server) Handler() http.Handler {
	return handlers.LoggingHandler(s.d.AccessLog, s.Router())
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.d.Log.Info("HTTP API listening", "addr", addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve on %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		<-errCh
		return nil
	}
}

type languageInfo struct {
	Name    string `json:"name"`
	Example string `json:"example"`
}

type languageRequest struct {
	Language string `json:"language"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type analyzeRequest struct {
	Language *string `json:"language"`
	Code     *string `json:"code"`
}

type navigateRequest struct {
	View string `json:"view"`
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorKind string `json:"error_kind"`
	// Retryable is set when resubmitting the same input could succeed.
	Retryable bool `json:"retryable,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	out := make([]languageInfo, 0, len(language.All()))
	for _, l := range language.All() {
		out = append(out, languageInfo{Name: l.String(), Example: l.Example()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExample(w http.ResponseWriter, r *http.Request) {
	lang, err := language.Parse(mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, err, http.StatusNotFound, KindNotFound)
		return
	}
	writeJSON(w, http.StatusOK, languageInfo{Name: lang.String(), Example: lang.Example()})
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.d.Session.Snapshot())
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.setLanguage(req.Language); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.d.Session.Snapshot())
}

func (s *Server) handleSetCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.d.Session.SetCode(req.Code)
	writeJSON(w, http.StatusOK, s.d.Session.Snapshot())
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	// A rejected request leaves the editor untouched.
	if err := s.d.Session.CanSubmit(); err != nil {
		s.fail(w, err)
		return
	}
	if req.Language != nil {
		if err := s.setLanguage(*req.Language); err != nil {
			s.fail(w, err)
			return
		}
	}
	if req.Code != nil {
		s.d.Session.SetCode(*req.Code)
	}

	ctx := r.Context()
	if s.d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.d.Timeout)
		defer cancel()
	}

	if _, err := s.d.Session.Submit(ctx); err != nil {
		s.fail(w, err)
		return
	}
	s.changed()
	writeJSON(w, http.StatusOK, s.d.Session.Snapshot())
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !s.decode(w, r, &req) {
		return
	}
	view, err := session.ParseView(req.View)
	if err != nil {
		s.writeError(w, err, http.StatusBadRequest, KindBadRequest)
		return
	}
	if err := s.d.Session.Navigate(view); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.d.Session.Snapshot())
}

func (s *Server) handleBack(w http.ResponseWriter, _ *http.Request) {
	if err := s.d.Session.Back(); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.d.Session.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.d.Session.History())
}

func (s *Server) handleClearHistory(w http.ResponseWriter, _ *http.Request) {
	s.d.Session.ClearHistory()
	s.changed()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLoadHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.d.Session.LoadFromHistory(mux.Vars(r)["id"]); err != nil {
		s.fail(w, err)
		return
	}
	s.changed()
	writeJSON(w, http.StatusOK, s.d.Session.Snapshot())
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	at := s.d.Now()
	doc, err := s.d.Session.Export(at)
	if err != nil {
		s.fail(w, err)
		return
	}
	data, err := export.Marshal(doc)
	if err != nil {
		s.writeError(w, err, http.StatusInternalServerError, "internal")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(at)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.d.Log.Warn("Failed to write export", "error", err)
	}
}

func (s *Server) setLanguage(name string) error {
	lang, err := language.Parse(name)
	if err != nil {
		return &analysis.ValidationError{Reason: err.Error()}
	}
	return s.d.Session.SetLanguage(lang)
}

func (s *Server) changed() {
	if s.d.OnChange != nil {
		s.d.OnChange(s.d.Session)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest, KindBadRequest)
		return false
	}
	return true
}

// fail maps session and analysis errors to status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	msg := err.Error()
	switch kind {
	case analysis.KindConfiguration, analysis.KindProvider, analysis.KindMalformed:
		msg = analysis.Message(err)
	}
	writeJSON(w, status, errorResponse{Error: msg, ErrorKind: kind, Retryable: analysis.Retryable(err)})
	if status >= http.StatusInternalServerError {
		s.d.Log.Warn("Request failed", "status", status, "kind", kind, "error", err)
	}
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrSubmitInFlight):
		return http.StatusConflict, KindInFlight
	case errors.Is(err, session.ErrInvalidTransition):
		return http.StatusConflict, KindInvalidTransition
	case errors.Is(err, history.ErrNotFound), errors.Is(err, session.ErrNoActiveReport):
		return http.StatusNotFound, KindNotFound
	}

	switch kind := analysis.Kind(err); kind {
	case analysis.KindValidation:
		return http.StatusBadRequest, kind
	case analysis.KindConfiguration:
		return http.StatusServiceUnavailable, kind
	case analysis.KindProvider, analysis.KindMalformed:
		return http.StatusBadGateway, kind
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) writeError(w http.ResponseWriter, err error, status int, kind string) {
	writeJSON(w, status, errorResponse{Error: err.Error(), ErrorKind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

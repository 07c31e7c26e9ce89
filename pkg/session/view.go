package session

import (
	"fmt"
	"strings"
)

// View is the screen the session is currently presenting.
type View string

const (
	ViewEditing View = "editing"
	ViewReport  View = "report"
	ViewAbout   View = "about"
	ViewDocs    View = "docs"
)

// Views returns every view in navigation order.
func Views() []View {
	return []View{ViewEditing, ViewReport, ViewAbout, ViewDocs}
}

func (v View) String() string { return string(v) }

// Valid reports whether v is a known view.
func (v View) Valid() bool {
	switch v {
	case ViewEditing, ViewReport, ViewAbout, ViewDocs:
		return true
	}
	return false
}

// Title is the label shown in navigation bars.
func (v View) Title() string {
	switch v {
	case ViewEditing:
		return "Analyzer"
	case ViewReport:
		return "Report"
	case ViewAbout:
		return "About"
	case ViewDocs:
		return "Docs"
	}
	return string(v)
}

// ParseView converts a user supplied name into a View.
func ParseView(s string) (View, error) {
	v := View(strings.ToLower(strings.TrimSpace(s)))
	if v == "editor" || v == "analyzer" {
		v = ViewEditing
	}
	if !v.Valid() {
		return "", fmt.Errorf("unknown view %q", s)
	}
	return v, nil
}

// Navigate moves to target. About and Docs are reachable from anywhere.
// Entering the editor from any view other than Report discards the active
// report. Report is only reachable through an analysis or a history entry.
func (s *Session) Navigate(target View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navigateLocked(target)
}

func (s *Session) navigateLocked(target View) error {
	switch target {
	case ViewAbout, ViewDocs:
	case ViewEditing:
		if s.view != ViewReport {
			s.active = nil
			s.activeSource = ""
		}
	case ViewReport:
		return fmt.Errorf("%w: %s -> %s requires an analysis or a history entry", ErrInvalidTransition, s.view, target)
	default:
		return fmt.Errorf("%w: unknown view %q", ErrInvalidTransition, target)
	}

	s.logger.Debug("View changed", "from", string(s.view), "to", string(target))
	s.view = target
	return nil
}

// Back returns to the editor. From Report the active report is kept; from
// About and Docs it behaves like Navigate(ViewEditing).
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.view {
	case ViewReport:
		s.logger.Debug("View changed", "from", string(s.view), "to", string(ViewEditing))
		s.view = ViewEditing
		return nil
	case ViewAbout, ViewDocs:
		return s.navigateLocked(ViewEditing)
	}
	return fmt.Errorf("%w: nothing to go back to from %s", ErrInvalidTransition, s.view)
}

// View returns the current view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

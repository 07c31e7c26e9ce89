// Package state persists the parts of a session that outlive a single
// process: the selected language, the editor contents and the analysis
// history.
//
// Two backends are available. The YAML file store writes atomically (temp
// file, fsync, rename) with 0600 permissions. The SQLite store keeps the
// same data in two tables and is better suited to concurrent readers.
//
// The API key is never persisted; see credentials.go.
package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/greg-hellings/greencode/pkg/history"
	"github.com/greg-hellings/greencode/pkg/language"
	"github.com/greg-hellings/greencode/pkg/session"
)

// StateVersion is the current on-disk format version.
const StateVersion = 1

// Backend names accepted by Open.
const (
	BackendYAML   = "yaml"
	BackendSQLite = "sqlite"
)

// Snapshot is the persisted form of a session.
type Snapshot struct {
	StateVersion int               `yaml:"stateVersion"`
	SavedAt      time.Time         `yaml:"savedAt"`
	Language     language.Language `yaml:"language"`
	EditorCode   string            `yaml:"editorCode"`
	History      []history.Entry   `yaml:"history"`
}

// Store loads and saves snapshots.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Path() string
	Close() error
}

// NewDefaultSnapshot returns the state of a fresh session.
func NewDefaultSnapshot() *Snapshot {
	return &Snapshot{
		StateVersion: StateVersion,
		SavedAt:      time.Now().UTC(),
		Language:     language.Default,
		EditorCode:   language.Default.Example(),
		History:      []history.Entry{},
	}
}

// FromSession captures the persistable parts of s.
func FromSession(s *session.Session) *Snapshot {
	st := s.Snapshot()
	return &Snapshot{
		StateVersion: StateVersion,
		SavedAt:      time.Now().UTC(),
		Language:     st.Language,
		EditorCode:   st.EditorCode,
		History:      s.History(),
	}
}

// SessionOptions returns the options that rebuild a session from snap.
func (snap *Snapshot) SessionOptions() []session.Option {
	return []session.Option{
		session.WithLanguage(snap.Language),
		session.WithCode(snap.EditorCode),
		session.WithLedger(history.Restore(snap.History)),
	}
}

// normalize fills defaults after load.
func normalize(snap *Snapshot) {
	if snap.StateVersion <= 0 {
		snap.StateVersion = StateVersion
	}
	if !snap.Language.Valid() {
		snap.Language = language.Default
		snap.EditorCode = language.Default.Example()
	}
	if snap.History == nil {
		snap.History = []history.Entry{}
	}
	if len(snap.History) > history.DefaultCapacity {
		snap.History = snap.History[:history.DefaultCapacity]
	}
}

// Open returns the store for backend at path. An empty path selects
// DefaultPath(backend).
func Open(backend, path string) (Store, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" {
		backend = BackendYAML
	}
	if path == "" {
		path = DefaultPath(backend)
	}
	switch backend {
	case BackendYAML:
		return NewFileStore(path), nil
	case BackendSQLite:
		return OpenSQLite(path)
	}
	return nil, fmt.Errorf("state: unsupported backend: %s", backend)
}

// DefaultPath returns the OS-specific default location for backend.
func DefaultPath(backend string) string {
	name := "state.yaml"
	if backend == BackendSQLite {
		name = "state.db"
	}
	return filepath.Join(userConfigDir(), "greencode", name)
}

// userConfigDir attempts to resolve a configuration directory in a portable way.
func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".config")
	}
	return "."
}

package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/greg-hellings/greencode/pkg/history"
	"github.com/greg-hellings/greencode/pkg/language"
	"github.com/greg-hellings/greencode/pkg/report"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS session_state (
  id            INTEGER PRIMARY KEY CHECK (id = 1),
  state_version INTEGER NOT NULL,
  saved_at      TEXT NOT NULL,
  language      TEXT NOT NULL,
  editor_code   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS history_entries (
  id          TEXT PRIMARY KEY,
  position    INTEGER NOT NULL,
  created_at  TEXT NOT NULL,
  language    TEXT NOT NULL,
  source_code TEXT NOT NULL,
  report      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_position ON history_entries(position);
`

// SQLiteStore keeps the snapshot in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("state: mkdir failed: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("state: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("state: open database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("state: create schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path implements Store.
func (s *SQLiteStore) Path() string { return s.path }

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads the snapshot, returning defaults when nothing was saved yet.
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	snap := NewDefaultSnapshot()

	var savedAt, lang string
	err := s.db.QueryRowContext(ctx,
		"SELECT state_version, saved_at, language, editor_code FROM session_state WHERE id = 1").
		Scan(&snap.StateVersion, &savedAt, &lang, &snap.EditorCode)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("state: read session: %w", err)
	default:
		snap.Language = language.Language(lang)
		if snap.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
			return nil, fmt.Errorf("state: parse saved_at: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created_at, language, source_code, report FROM history_entries ORDER BY position ASC LIMIT ?",
		history.DefaultCapacity)
	if err != nil {
		return nil, fmt.Errorf("state: read history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e         history.Entry
			createdAt string
			lang      string
			payload   string
		)
		if err := rows.Scan(&e.ID, &createdAt, &lang, &e.SourceCode, &payload); err != nil {
			return nil, fmt.Errorf("state: scan history: %w", err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("state: history %s: parse created_at: %w", e.ID, err)
		}
		e.Language = language.Language(lang)
		r, err := report.Decode([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("state: history %s: %w", e.ID, err)
		}
		e.Report = *r
		snap.History = append(snap.History, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("state: read history: %w", err)
	}

	normalize(snap)
	return snap, nil
}

// Save replaces the stored snapshot in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) (err error) {
	if snap == nil {
		return errors.New("state: nil snapshot")
	}
	snap.SavedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("state: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO session_state(id, state_version, saved_at, language, editor_code)
VALUES(1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET state_version = excluded.state_version, saved_at = excluded.saved_at,
  language = excluded.language, editor_code = excluded.editor_code`,
		StateVersion, snap.SavedAt.Format(time.RFC3339Nano), string(snap.Language), snap.EditorCode); err != nil {
		return fmt.Errorf("state: write session: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM history_entries"); err != nil {
		return fmt.Errorf("state: clear history: %w", err)
	}
	for i, e := range snap.History {
		var payload []byte
		if payload, err = json.Marshal(e.Report.Clone()); err != nil {
			return fmt.Errorf("state: encode history %s: %w", e.ID, err)
		}
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO history_entries(id, position, created_at, language, source_code, report) VALUES(?,?,?,?,?,?)",
			e.ID, i, e.CreatedAt.UTC().Format(time.RFC3339Nano), string(e.Language), e.SourceCode, string(payload)); err != nil {
			return fmt.Errorf("state: write history %s: %w", e.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

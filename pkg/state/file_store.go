package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileStore keeps the snapshot in a single YAML file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the YAML file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path implements Store.
func (f *FileStore) Path() string { return f.path }

// Close implements Store.
func (f *FileStore) Close() error { return nil }

// Load reads the snapshot, returning defaults if the file is missing.
func (f *FileStore) Load(_ context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Clean(f.path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultSnapshot(), nil
		}
		return nil, fmt.Errorf("state: read failed: %w", err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("state: parse failed: %w", err)
	}
	normalize(&snap)
	return &snap, nil
}

// Save persists the snapshot atomically.
func (f *FileStore) Save(_ context.Context, snap *Snapshot) error {
	if snap == nil {
		return errors.New("state: nil snapshot")
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("state: mkdir failed: %w", err)
	}
	snap.SavedAt = time.Now().UTC()

	out, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("state: marshal failed: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state.tmp-*")
	if err != nil {
		return fmt.Errorf("state: temp create failed: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(out); err != nil {
		return fmt.Errorf("state: temp write failed: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("state: chmod failed: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("state: sync failed: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("state: atomic rename failed: %w", err)
	}
	return nil
}

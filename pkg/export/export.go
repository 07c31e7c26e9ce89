// Package export produces the downloadable JSON form of a report.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"

	"github.com/greg-hellings/greencode/pkg/report"
)

// Document is a report flattened together with the code it was produced
// from and the export time.
type Document struct {
	report.Report
	OriginalCode string    `json:"original_code"`
	Timestamp    time.Time `json:"timestamp"`
}

// New builds an export document. The report is deep-copied.
func New(r *report.Report, originalCode string, at time.Time) *Document {
	doc := &Document{OriginalCode: originalCode, Timestamp: at.UTC()}
	if r != nil {
		doc.Report = *r.Clone()
	}
	if doc.Hotspots == nil {
		doc.Hotspots = []report.Hotspot{}
	}
	return doc
}

// Marshal renders doc as pretty-printed JSON with two-space indentation.
func Marshal(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return data, nil
}

// FileName returns the download name for an export taken at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("greencode-report-%d.json", t.UnixMilli())
}

// WriteFile writes doc into dir under FileName(doc.Timestamp) and returns the
// full path.
func WriteFile(dir string, doc *Document) (string, error) {
	data, err := Marshal(doc)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, FileName(doc.Timestamp))
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

// Parse reads an export document back. The report part is validated with
// the same rules applied to provider payloads.
func Parse(data []byte) (*Document, error) {
	r, err := report.Decode(data)
	if err != nil {
		return nil, err
	}
	root := gjson.ParseBytes(data)

	code := root.Get("original_code")
	if code.Type != gjson.String {
		return nil, &report.SchemaError{Field: "original_code", Reason: "expected string"}
	}
	ts := root.Get("timestamp")
	if ts.Type != gjson.String {
		return nil, &report.SchemaError{Field: "timestamp", Reason: "expected string"}
	}
	at, err := time.Parse(time.RFC3339Nano, ts.Str)
	if err != nil {
		return nil, &report.SchemaError{Field: "timestamp", Reason: err.Error()}
	}

	return &Document{Report: *r, OriginalCode: code.Str, Timestamp: at}, nil
}

// ReadFile parses the export stored at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	return Parse(data)
}

// Package language defines the closed set of programming languages that can be
// submitted for analysis, together with the canonical example snippet used to
// seed the editor whenever a language is selected.
package language

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Language identifies a supported source language. The string value is the
// display name and is what gets sent to the analysis provider.
type Language string

const (
	// Python is the default language of a new session.
	Python     Language = "Python"
	JavaScript Language = "JavaScript"
	TypeScript Language = "TypeScript"
	Java       Language = "Java"
	CPP        Language = "C++"
	Go         Language = "Go"
	Rust       Language = "Rust"
	PHP        Language = "PHP"
)

// Default is the language a fresh session starts with.
const Default = Python

// supported keeps the display order used by selectors and listings.
var supported = []Language{Python, JavaScript, TypeScript, Java, CPP, Go, Rust, PHP}

// All returns every supported language in display order.
func All() []Language {
	return append([]Language(nil), supported...)
}

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	_, ok := examples[l]
	return ok
}

// String implements fmt.Stringer.
func (l Language) String() string {
	return string(l)
}

// Example returns the canonical seed snippet for l, or an empty string when l
// is not supported.
func (l Language) Example() string {
	return examples[l]
}

// Parse resolves user input to a Language. Matching is case-insensitive and
// accepts a few common aliases ("js", "ts", "cpp", "golang", ...).
func Parse(s string) (Language, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", fmt.Errorf("language cannot be empty")
	}
	for _, l := range supported {
		if strings.ToLower(string(l)) == key {
			return l, nil
		}
	}
	if l, ok := aliases[key]; ok {
		return l, nil
	}
	return "", fmt.Errorf("unsupported language: %s (supported: %s)", s, strings.Join(Names(), ", "))
}

// Names returns the display names of all supported languages.
func Names() []string {
	out := make([]string, 0, len(supported))
	for _, l := range supported {
		out = append(out, string(l))
	}
	return out
}

// FromFilename infers the language from a file extension.
func FromFilename(name string) (Language, bool) {
	l, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return l, ok
}

var aliases = map[string]Language{
	"py":     Python,
	"js":     JavaScript,
	"node":   JavaScript,
	"ts":     TypeScript,
	"cpp":    CPP,
	"cxx":    CPP,
	"golang": Go,
	"rs":     Rust,
}

var extensions = map[string]Language{
	".py":   Python,
	".js":   JavaScript,
	".mjs":  JavaScript,
	".cjs":  JavaScript,
	".jsx":  JavaScript,
	".ts":   TypeScript,
	".tsx":  TypeScript,
	".java": Java,
	".cpp":  CPP,
	".cc":   CPP,
	".cxx":  CPP,
	".hpp":  CPP,
	".h":    CPP,
	".go":   Go,
	".rs":   Rust,
	".php":  PHP,
}

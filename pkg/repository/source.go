package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/greg-hellings/greencode/pkg/language"
)

// ErrUnknownLanguage is returned when a file's extension does not map to a
// supported language and no override was given.
var ErrUnknownLanguage = errors.New("cannot infer language from file name")

// SourceRef addresses a single file in a hosted repository. Its textual form
// is <provider>:<owner>/<repo>[@ref][:<path>]. GitLab owners may contain
// subgroups ("group/sub"); the repository is always the last segment.
type SourceRef struct {
	Provider ProviderType
	Owner    string
	Repo     string
	Ref      string
	Path     string
}

// ParseSourceRef parses the textual form of a SourceRef.
func ParseSourceRef(s string) (SourceRef, error) {
	provider, rest, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || rest == "" {
		return SourceRef{}, fmt.Errorf("invalid source %q: expected <provider>:<owner>/<repo>[@ref]:<path>", s)
	}

	ref := SourceRef{Provider: ProviderType(strings.ToLower(provider))}
	switch ref.Provider {
	case ProviderGitHub, ProviderGitLab:
	default:
		return SourceRef{}, fmt.Errorf("invalid source %q: unsupported provider %q", s, provider)
	}

	repoPart, path, _ := strings.Cut(rest, ":")
	ref.Path = strings.TrimPrefix(path, "/")
	repoPart, ref.Ref, _ = strings.Cut(repoPart, "@")

	i := strings.LastIndex(repoPart, "/")
	if i <= 0 || i == len(repoPart)-1 {
		return SourceRef{}, fmt.Errorf("invalid source %q: expected <owner>/<repo>", s)
	}
	ref.Owner, ref.Repo = repoPart[:i], repoPart[i+1:]
	if ref.Provider == ProviderGitHub && strings.Contains(ref.Owner, "/") {
		return SourceRef{}, fmt.Errorf("invalid source %q: GitHub repositories have no subgroups", s)
	}

	return ref, nil
}

// String returns the textual form accepted by ParseSourceRef.
func (r SourceRef) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%s/%s", r.Provider, r.Owner, r.Repo)
	if r.Ref != "" {
		b.WriteString("@" + r.Ref)
	}
	if r.Path != "" {
		b.WriteString(":" + r.Path)
	}
	return b.String()
}

// Source is a fetched file ready to be placed in the editor.
type Source struct {
	Ref      SourceRef
	Code     string
	Language language.Language
}

// ResolveRef fills an empty ref.Ref with the repository's default branch.
func ResolveRef(ctx context.Context, client Client, ref SourceRef) (SourceRef, error) {
	resolved, err := resolveRef(ctx, client, ref.Owner, ref.Repo, ref.Ref)
	if err != nil {
		return ref, fmt.Errorf("failed to resolve %s: %w", ref, err)
	}
	ref.Ref = resolved
	return ref, nil
}

// Fetch downloads the file addressed by ref. The language is inferred from
// the file extension unless override is valid. The returned Source carries
// the resolved ref.
func Fetch(ctx context.Context, client Client, ref SourceRef, override language.Language) (*Source, error) {
	if ref.Path == "" {
		return nil, fmt.Errorf("source %s does not name a file", ref)
	}

	lang := override
	if !lang.Valid() {
		inferred, ok := language.FromFilename(ref.Path)
		if !ok {
			return nil, fmt.Errorf("%s: %w", ref.Path, ErrUnknownLanguage)
		}
		lang = inferred
	}

	ref, err := ResolveRef(ctx, client, ref)
	if err != nil {
		return nil, err
	}

	code, err := client.GetFileContent(ctx, ref.Owner, ref.Repo, ref.Ref, ref.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", ref, err)
	}

	slog.Debug("Fetched source file", "provider", ref.Provider, "path", ref.Path, "language", lang, "bytes", len(code))
	return &Source{Ref: ref, Code: code, Language: lang}, nil
}

// AnalyzableFiles lists the files in the repository whose extension maps to
// a supported language. Callers wanting to report the branch should pass a
// ref from ResolveRef.
func AnalyzableFiles(ctx context.Context, client Client, ref SourceRef) ([]FileInfo, error) {
	files, err := client.ListFilesRecursive(ctx, ref.Owner, ref.Repo, ref.Ref)
	if err != nil {
		return nil, fmt.Errorf("failed to list files in %s/%s: %w", ref.Owner, ref.Repo, err)
	}

	out := make([]FileInfo, 0, len(files))
	for _, f := range files {
		if _, ok := language.FromFilename(f.Path); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Package analysis is the client side of the external sustainability
// analysis. It formats the request, calls the configured LLM provider and
// turns the structured response into a report.Report or a typed failure.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/greg-hellings/greencode/pkg/language"
	"github.com/greg-hellings/greencode/pkg/report"
)

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// DefaultProvider is used when Config.Provider is empty.
const DefaultProvider = ProviderGemini

// Analyzer produces a sustainability report for a piece of source code.
type Analyzer interface {
	Analyze(ctx context.Context, code string, lang language.Language) (*report.Report, error)
}

// AnalyzerFunc adapts a plain function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, code string, lang language.Language) (*report.Report, error)

// Analyze calls f.
func (f AnalyzerFunc) Analyze(ctx context.Context, code string, lang language.Language) (*report.Report, error) {
	return f(ctx, code, lang)
}

// KeyFunc returns the provider API key. It is called on every analysis so
// that a missing key only surfaces when an analysis is attempted.
type KeyFunc func() string

// StaticKey returns a KeyFunc that always yields key.
func StaticKey(key string) KeyFunc {
	return func() string { return key }
}

// Config selects and tunes a provider.
type Config struct {
	Provider   string
	Model      string
	Endpoint   string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

var providers = map[string]func(Config, KeyFunc) Analyzer{
	ProviderGemini: func(cfg Config, key KeyFunc) Analyzer { return NewGemini(cfg, key) },
	ProviderOpenAI: func(cfg Config, key KeyFunc) Analyzer { return NewOpenAI(cfg, key) },
}

// New builds the analyzer for cfg.Provider. The key is not consulted here.
func New(cfg Config, key KeyFunc) (Analyzer, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = DefaultProvider
	}
	build, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("unsupported analysis provider: %s (supported: %s)",
			cfg.Provider, strings.Join(SupportedProviders(), ", "))
	}
	if key == nil {
		key = StaticKey("")
	}
	cfg.Provider = name
	return build(cfg, key), nil
}

// SupportedProviders returns the provider names accepted by New.
func SupportedProviders() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupported reports whether name is a known provider.
func IsSupported(name string) bool {
	_, ok := providers[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// requireKey resolves the key or returns a ConfigurationError.
func requireKey(provider string, key KeyFunc) (string, error) {
	apiKey := strings.TrimSpace(key())
	if apiKey == "" {
		return "", &ConfigurationError{Provider: provider, Err: ErrMissingAPIKey}
	}
	return apiKey, nil
}

// decodePayload turns provider text into a report, wrapping schema failures.
func decodePayload(provider, text string) (*report.Report, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &MalformedResponseError{Provider: provider, Err: fmt.Errorf("no response received from %s", provider)}
	}
	r, err := report.Decode([]byte(text))
	if err != nil {
		return nil, &MalformedResponseError{Provider: provider, Err: err}
	}
	return r, nil
}

package state

// Credential resolution for greencode.
//
// Analysis API keys come only from the environment and are read at call
// time, so a missing key surfaces when an analysis is attempted and not at
// startup. Source host tokens (GitHub, GitLab) may also come from the
// configuration file; those are kept in a CredentialStore.
//
// Never log raw secrets. Use RedactToken.

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/greg-hellings/greencode/pkg/analysis"
)

// CredentialStore defines the contract for token lookup by provider id
// (e.g. "github", "gitlab").
type CredentialStore interface {
	SetToken(provider string, token string) error
	GetToken(provider string) (string, error)
	DeleteToken(provider string) error
	ListProviders() ([]string, error)
}

// ErrCredentialNotFound is returned when a token for a provider does not exist.
var ErrCredentialNotFound = errors.New("credential not found")

// InMemoryCredentialStore is a thread-safe, volatile implementation.
type InMemoryCredentialStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewInMemoryCredentialStore creates an empty store.
func NewInMemoryCredentialStore() *InMemoryCredentialStore {
	return &InMemoryCredentialStore{
		tokens: make(map[string]string),
	}
}

// SetToken stores or updates the token for the given provider. Blank tokens
// are ignored.
func (s *InMemoryCredentialStore) SetToken(provider string, token string) error {
	if provider == "" {
		return errors.New("provider cannot be empty")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[provider] = token
	return nil
}

// GetToken returns the token for provider or ErrCredentialNotFound if none is stored.
func (s *InMemoryCredentialStore) GetToken(provider string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.tokens[provider]
	if !ok {
		return "", ErrCredentialNotFound
	}
	return v, nil
}

// DeleteToken removes the token for provider; missing providers are ignored.
func (s *InMemoryCredentialStore) DeleteToken(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, provider)
	return nil
}

// ListProviders returns all provider ids that currently have tokens, sorted.
func (s *InMemoryCredentialStore) ListProviders() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tokens))
	for k := range s.tokens {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

var nativeKeyVars = map[string]string{
	analysis.ProviderGemini: "GEMINI_API_KEY",
	analysis.ProviderOpenAI: "OPENAI_API_KEY",
}

// APIKeyEnvVars lists the environment variables consulted for an analysis
// provider's key, in lookup order.
func APIKeyEnvVars(provider string) []string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	vars := []string{
		fmt.Sprintf("GREENCODE_%s_API_KEY", strings.ToUpper(provider)),
		"API_KEY",
	}
	if native, ok := nativeKeyVars[provider]; ok {
		vars = append(vars, native)
	}
	return vars
}

// ResolveAPIKey returns the first non-empty key for provider and the name of
// the variable it came from.
func ResolveAPIKey(provider string) (key, source string) {
	for _, name := range APIKeyEnvVars(provider) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, name
		}
	}
	return "", ""
}

// EnvKeySource returns a key function that resolves the provider key from
// the environment on every call.
func EnvKeySource(provider string) analysis.KeyFunc {
	return func() string {
		key, _ := ResolveAPIKey(provider)
		return key
	}
}

// ResolveSourceToken returns the token for a source host.
// Lookup order:
//  1. Environment variable GREENCODE_<HOST>_TOKEN
//  2. CredentialStore (if provided)
//
// It returns an empty string if none is found.
func ResolveSourceToken(host string, cs CredentialStore) (string, error) {
	if host == "" {
		return "", errors.New("provider cannot be empty")
	}

	envName := fmt.Sprintf("GREENCODE_%s_TOKEN", strings.ToUpper(host))
	if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
		return v, nil
	}

	if cs != nil {
		if tok, err := cs.GetToken(host); err == nil && strings.TrimSpace(tok) != "" {
			return tok, nil
		} else if err != nil && !errors.Is(err, ErrCredentialNotFound) {
			return "", fmt.Errorf("credential store failure: %w", err)
		}
	}

	return "", nil
}

// RedactToken safely redacts a token for logging purposes.
func RedactToken(tok string) string {
	if tok == "" {
		return ""
	}
	if len(tok) <= 4 {
		return "***"
	}
	return tok[:4] + "***"
}

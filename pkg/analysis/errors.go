package analysis

import (
	"context"
	"errors"
	"fmt"
)

// ErrMissingAPIKey is wrapped by the ConfigurationError returned when no
// credential is available at call time.
var ErrMissingAPIKey = errors.New("API key is missing from environment variables")

// ConfigurationError reports a local setup problem, typically a missing API
// key. Resubmitting the same request will not help; the environment must be
// fixed first.
type ConfigurationError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *ConfigurationError) Error() string {
	msg := e.Reason
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Provider == "" {
		return "configuration error: " + msg
	}
	return fmt.Sprintf("configuration error (%s): %s", e.Provider, msg)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ProviderError reports a transport or upstream failure: non-2xx responses,
// timeouts, rate limiting. StatusCode is zero when no HTTP response was
// received. The user may resubmit.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed (HTTP %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// MalformedResponseError reports a payload that does not match the report
// schema. The provider is probabilistic, so a resubmission may succeed.
type MalformedResponseError struct {
	Provider string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s returned a malformed analysis: %v", e.Provider, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ValidationError rejects input before any provider call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Reason
}

// Error kinds reported by Kind.
const (
	KindConfiguration = "configuration"
	KindProvider      = "provider"
	KindMalformed     = "malformed_response"
	KindValidation    = "validation"
)

// Kind classifies err into one of the Kind* constants, or "" when err is not
// part of the analysis taxonomy.
func Kind(err error) string {
	var (
		cfgErr  *ConfigurationError
		provErr *ProviderError
		malErr  *MalformedResponseError
		valErr  *ValidationError
	)
	switch {
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &valErr):
		return KindValidation
	case errors.As(err, &malErr):
		return KindMalformed
	case errors.As(err, &provErr):
		return KindProvider
	}
	return ""
}

// Retryable reports whether resubmitting the same input could succeed.
func Retryable(err error) bool {
	switch Kind(err) {
	case KindProvider, KindMalformed:
		return true
	}
	return false
}

const fallbackMessage = "Failed to analyze code. Please check your API key and try again."

// Message renders err as the single line shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallbackMessage
}

// providerFailure wraps a transport error, keeping context errors readable.
func providerFailure(provider string, status int, err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("request timed out: %w", err)
	case errors.Is(err, context.Canceled):
		err = fmt.Errorf("request canceled: %w", err)
	}
	return &ProviderError{Provider: provider, StatusCode: status, Err: err}
}

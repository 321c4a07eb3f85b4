package narration

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common conditions.
var (
	// ErrNoAPIKey is returned when an API key is required but missing.
	ErrNoAPIKey = errors.New("narration: API key required")

	// ErrGeneratorDisabled is returned by Disabled and by a Chain with no generators.
	ErrGeneratorDisabled = errors.New("narration: generator disabled")

	// ErrEmptyPhrase is returned when a generator produced no usable text.
	ErrEmptyPhrase = errors.New("narration: empty phrase")
)

// APIError represents an error response from a generator API.
type APIError struct {
	StatusCode int
	Message    string
	Provider   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("narration [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable returns true for rate limits and server errors.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == 429 || (e.StatusCode >= 500 && e.StatusCode < 600)
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("narration [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}

// ChainError aggregates errors from all generators in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if len(e.Errors) == 0 {
		return "narration chain: no errors recorded"
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "narration chain: all generators failed: " + strings.Join(msgs, "; ")
}

// Unwrap returns the collected errors.
func (e *ChainError) Unwrap() []error {
	return e.Errors
}

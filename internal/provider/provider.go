// Package provider defines the LLM provider interface for evoplan.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Request is a single completion request to an LLM provider.
type Request struct {
	Model       string  `json:"model"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Provider defines the interface for LLM backends.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Complete sends one request and returns the raw completion text.
	// The call is synchronous; there is no retry and no streaming.
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	ErrKindAuth      ErrorKind = "auth"
	ErrKindRateLimit ErrorKind = "rate_limit"
	ErrKindTimeout   ErrorKind = "timeout"
	ErrKindServer    ErrorKind = "server"
	ErrKindInvalid   ErrorKind = "invalid"
)

// ProviderError is returned when a provider call fails. It is never retried
// by the pipeline; the failing stage surfaces it to the caller.
type ProviderError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider error (%s, status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err wraps a ProviderError and returns it.
func IsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

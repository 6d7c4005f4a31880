package llm

import (
	"context"
	"errors"
	"fmt"
)

// Generator is the single external capability the core depends on: one
// synchronous text-generation call. Implementations wrap a hosted provider;
// tests substitute a deterministic stub.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

// ErrRateLimited indicates provider-side throttling of a generation call.
var ErrRateLimited = errors.New("llm: rate limited")

// TransportError wraps a network or timeout failure talking to the provider.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm: transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError indicates model output that did not match the expected
// structured format.
type ParseError struct {
	Output string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("llm: unparsable model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

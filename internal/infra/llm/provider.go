// Package llm talks to the local text-generation daemon.
// Handlers and the turn pipeline depend on Provider so tests can swap the
// daemon for an in-memory fake.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable wraps every transport failure and non-2xx daemon response.
// Callers map it to "service unavailable".
var ErrUnavailable = errors.New("llm: daemon unavailable")

// Provider is the model-agnostic interface for the inference daemon.
type Provider interface {
	// Chat performs a non-streaming chat completion.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ListModels returns the installed model names, sorted.
	ListModels(ctx context.Context) ([]string, error)

	// ShowModel returns metadata for one installed model.
	ShowModel(ctx context.Context, model string) (*ModelDetails, error)

	// HealthCheck returns nil if the daemon is reachable.
	HealthCheck(ctx context.Context) error
}

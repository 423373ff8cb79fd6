// Package llm defines the scenario generation contract.
package llm

import (
	"context"

	"whatify/pkg/model"
)

// Generator produces an alternate-history scenario for a prompt.
type Generator interface {
	// Stream yields typed chunks (summary, events, geo changes, done) as the
	// model produces them. Emit returning an error aborts the stream.
	Stream(ctx context.Context, prompt string, emit func(model.StreamChunk) error) error

	// Generate returns the full scenario at once. Used as the fallback when
	// streaming fails.
	Generate(ctx context.Context, prompt string) (*model.Scenario, error)
}

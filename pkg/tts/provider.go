// Package tts defines the Text-To-Speech provider contract.
package tts

import (
	"context"

	"whatify/pkg/model"
)

const (
	// MinAudioSize is the minimum size of a synthesized audio payload (1KB).
	// Smaller payloads are likely failed synthesis attempts.
	MinAudioSize = 1024
)

// Provider defines the interface for Text-To-Speech engines.
type Provider interface {
	// Name identifies the provider in logs and stats.
	Name() string

	// Synthesize generates audio for the text using the given voice.
	// The returned handle carries the audio payload and a playable URL.
	Synthesize(ctx context.Context, text, voice string) (model.AudioHandle, error)

	// Voices returns the voices the provider can speak with.
	Voices(ctx context.Context) ([]Voice, error)
}

// Voice represents an available TTS voice.
type Voice struct {
	ID     string
	Name   string
	Locale string
	Labels []string
}

// HasLabel reports whether the voice carries the given label, e.g. "male".
func (v Voice) HasLabel(label string) bool {
	for _, l := range v.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// FatalError represents a TTS error that should trigger fallback to another
// provider. Examples: rate limits (429), server errors (5xx), auth failures.
type FatalError struct {
	StatusCode int
	Message    string
}

func (e *FatalError) Error() string {
	return e.Message
}

// NewFatalError creates a new FatalError with the given status code and message.
func NewFatalError(statusCode int, message string) *FatalError {
	return &FatalError{StatusCode: statusCode, Message: message}
}

// IsFatalError checks if an error is a TTS fatal error that should trigger fallback.
func IsFatalError(err error) bool {
	_, ok := err.(*FatalError)
	return ok
}

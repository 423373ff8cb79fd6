package api

import (
	"context"
	"time"

	"whatify/pkg/genbus"
	"whatify/pkg/model"
	"whatify/pkg/tts"
)

// mockPlayback records which intents were applied.
type mockPlayback struct {
	intents  []string
	snapshot model.PlaybackSnapshot
}

func (m *mockPlayback) Play()       { m.intents = append(m.intents, "play") }
func (m *mockPlayback) Pause()      { m.intents = append(m.intents, "pause") }
func (m *mockPlayback) Next()       { m.intents = append(m.intents, "next") }
func (m *mockPlayback) Prev()       { m.intents = append(m.intents, "prev") }
func (m *mockPlayback) Restart()    { m.intents = append(m.intents, "restart") }
func (m *mockPlayback) ToggleMute() { m.intents = append(m.intents, "toggle-mute") }
func (m *mockPlayback) Snapshot() model.PlaybackSnapshot {
	return m.snapshot
}

// mockGeneration stubs the generation bus.
type mockGeneration struct {
	started []string
	resets  int
	err     error
}

func (m *mockGeneration) Start(prompt string) error {
	if prompt == "" {
		return genbus.ErrEmptyPrompt
	}
	if m.err != nil {
		return m.err
	}
	m.started = append(m.started, prompt)
	return nil
}

func (m *mockGeneration) Reset() { m.resets++ }

// mockTTS is a provider with a pluggable Synthesize.
type mockTTS struct {
	synthesizeFunc func(ctx context.Context, text, voice string) (model.AudioHandle, error)
	calls          int
}

func (m *mockTTS) Name() string { return "mock" }

func (m *mockTTS) Synthesize(ctx context.Context, text, voice string) (model.AudioHandle, error) {
	m.calls++
	if m.synthesizeFunc != nil {
		return m.synthesizeFunc(ctx, text, voice)
	}
	return model.AudioHandle{URL: "data:audio/mpeg;base64,AAAA", Format: "mp3", Duration: time.Second}, nil
}

func (m *mockTTS) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{{ID: "v1", Name: "Mock"}}, nil
}

// mockGenerator is an llm.Generator with pluggable behavior.
type mockGenerator struct {
	streamFunc   func(ctx context.Context, prompt string, emit func(model.StreamChunk) error) error
	generateFunc func(ctx context.Context, prompt string) (*model.Scenario, error)
}

func (m *mockGenerator) Stream(ctx context.Context, prompt string, emit func(model.StreamChunk) error) error {
	if m.streamFunc != nil {
		return m.streamFunc(ctx, prompt, emit)
	}
	return nil
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (*model.Scenario, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, prompt)
	}
	return &model.Scenario{Prompt: prompt}, nil
}

// mockScenarioStore serves canned scenarios.
type mockScenarioStore struct {
	scenarios []model.Scenario
	err       error
	lastLimit int
}

func (m *mockScenarioStore) SaveScenario(ctx context.Context, scenario *model.Scenario) error {
	m.scenarios = append(m.scenarios, *scenario)
	return m.err
}

func (m *mockScenarioStore) RecentScenarios(ctx context.Context, limit int) ([]model.Scenario, error) {
	m.lastLimit = limit
	return m.scenarios, m.err
}

func (m *mockScenarioStore) Close() error {
	return nil
}

package genbus

import (
	"context"
	"sync"

	"github.com/paulmach/orb/geojson"

	"whatify/pkg/model"
)

// fakePlayback implements Playback.
type fakePlayback struct {
	mu         sync.Mutex
	summary    string
	events     []model.TimelineEvent
	clears     int
	geoChanges int
}

func (f *fakePlayback) Clear() {
	f.mu.Lock()
	f.summary = ""
	f.events = nil
	f.clears++
	f.mu.Unlock()
}

func (f *fakePlayback) SetSummary(summary string) {
	f.mu.Lock()
	f.summary = summary
	f.mu.Unlock()
}

func (f *fakePlayback) AppendEvent(ev model.TimelineEvent) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
}

func (f *fakePlayback) SetGeoChanges(fc *geojson.FeatureCollection) {
	if fc == nil {
		return
	}
	f.mu.Lock()
	f.geoChanges++
	f.mu.Unlock()
}

func (f *fakePlayback) Summary() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summary
}

func (f *fakePlayback) Events() []model.TimelineEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.TimelineEvent(nil), f.events...)
}

func (f *fakePlayback) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

// fakeGenerator implements llm.Generator via func fields.
type fakeGenerator struct {
	StreamFunc   func(ctx context.Context, prompt string, emit func(model.StreamChunk) error) error
	GenerateFunc func(ctx context.Context, prompt string) (*model.Scenario, error)

	mu            sync.Mutex
	streamCalls   []string
	generateCalls []string
}

func (f *fakeGenerator) Stream(ctx context.Context, prompt string, emit func(model.StreamChunk) error) error {
	f.mu.Lock()
	f.streamCalls = append(f.streamCalls, prompt)
	f.mu.Unlock()
	if f.StreamFunc != nil {
		return f.StreamFunc(ctx, prompt, emit)
	}
	return nil
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (*model.Scenario, error) {
	f.mu.Lock()
	f.generateCalls = append(f.generateCalls, prompt)
	f.mu.Unlock()
	if f.GenerateFunc != nil {
		return f.GenerateFunc(ctx, prompt)
	}
	return &model.Scenario{Prompt: prompt}, nil
}

func (f *fakeGenerator) generateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.generateCalls)
}

// fakeNotifier implements Notifier.
type fakeNotifier struct {
	mu       sync.Mutex
	started  []string
	ready    int
	failures []string
}

func (f *fakeNotifier) GenerationStarted(prompt string) {
	f.mu.Lock()
	f.started = append(f.started, prompt)
	f.mu.Unlock()
}

func (f *fakeNotifier) GenerationReady() {
	f.mu.Lock()
	f.ready++
	f.mu.Unlock()
}

func (f *fakeNotifier) GenerationFailed(message string) {
	f.mu.Lock()
	f.failures = append(f.failures, message)
	f.mu.Unlock()
}

func (f *fakeNotifier) readyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeNotifier) failureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.failures)
}

// fakeArchiver implements Archiver.
type fakeArchiver struct {
	mu    sync.Mutex
	saved []*model.Scenario
}

func (f *fakeArchiver) SaveScenario(ctx context.Context, scenario *model.Scenario) error {
	f.mu.Lock()
	f.saved = append(f.saved, scenario)
	f.mu.Unlock()
	return nil
}

func (f *fakeArchiver) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

// Package genbus serializes scenario generation. Every Start performs an
// unconditional synchronous hard reset, allocates a fresh generation token,
// and tags all downstream work with it; chunks arriving for a superseded
// token are dropped silently.
package genbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"whatify/pkg/audiocache"
	"whatify/pkg/llm"
	"whatify/pkg/model"
)

// ErrEmptyPrompt rejects a Start before any network call.
var ErrEmptyPrompt = errors.New("prompt is required")

// errStale aborts a stream whose token has been superseded.
var errStale = errors.New("generation superseded")

// Playback is the slice of the playback state machine the bus feeds.
type Playback interface {
	Clear()
	SetSummary(summary string)
	AppendEvent(ev model.TimelineEvent)
	SetGeoChanges(fc *geojson.FeatureCollection)
	Summary() string
	Events() []model.TimelineEvent
}

// Prefetcher warms narration audio ahead of playback.
type Prefetcher interface {
	Prefetch(ctx context.Context, text string)
}

// Notifier receives generation lifecycle events for the UI. Exactly one of
// Ready or Failed fires per non-superseded Start, even on error paths.
type Notifier interface {
	GenerationStarted(prompt string)
	GenerationReady()
	GenerationFailed(message string)
}

// Archiver persists completed scenarios.
type Archiver interface {
	SaveScenario(ctx context.Context, scenario *model.Scenario) error
}

// Bus owns the generation lifecycle of the active scenario.
type Bus struct {
	playback Playback
	cache    *audiocache.Cache
	gen      llm.Generator
	prefetch Prefetcher
	notifier Notifier
	archive  Archiver

	mu     sync.Mutex
	token  uint64
	cancel context.CancelFunc
}

// New creates a bus. prefetch, notifier, and archive may be nil.
func New(pb Playback, cache *audiocache.Cache, gen llm.Generator, prefetch Prefetcher, notifier Notifier, archive Archiver) *Bus {
	return &Bus{
		playback: pb,
		cache:    cache,
		gen:      gen,
		prefetch: prefetch,
		notifier: notifier,
		archive:  archive,
	}
}

// Token returns the current generation token.
func (b *Bus) Token() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

// Start launches generation for the prompt. The previous generation's
// effects (in-flight fetch, queued narration, map state, cached audio) are
// fully neutralized before any new effect begins.
func (b *Bus) Start(prompt string) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return ErrEmptyPrompt
	}

	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
	}
	b.token++
	token := b.token
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	// Teardown before populate; unconditional, not gated on in-flight
	// state, and under the lock so a concurrent Start cannot wipe the data
	// a successor token already populated.
	b.playback.Clear()
	b.cache.Clear()
	b.mu.Unlock()

	slog.Info("GenBus: Generation starting", "token", token, "prompt", truncate(trimmed, 80))
	if b.notifier != nil {
		b.notifier.GenerationStarted(trimmed)
	}

	go b.run(ctx, token, trimmed)
	return nil
}

// Reset tears down the active scenario without starting a new one.
func (b *Bus) Reset() {
	b.mu.Lock()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.token++
	b.playback.Clear()
	b.cache.Clear()
	b.mu.Unlock()
}

func (b *Bus) current(token uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token == token
}

func (b *Bus) run(ctx context.Context, token uint64, prompt string) {
	err := b.gen.Stream(ctx, prompt, func(chunk model.StreamChunk) error {
		return b.dispatch(ctx, token, chunk)
	})

	if errors.Is(err, errStale) || !b.current(token) {
		// A newer Start owns the lifecycle now; it notifies, not us.
		return
	}

	if err != nil && ctx.Err() == nil {
		slog.Warn("GenBus: Stream failed, using non-streaming fallback", "token", token, "error", err)
		if ferr := b.fallback(ctx, token, prompt); ferr != nil {
			if b.current(token) {
				slog.Error("GenBus: Generation failed", "token", token, "error", ferr)
				if b.notifier != nil {
					b.notifier.GenerationFailed(ferr.Error())
				}
			}
			return
		}
	}

	if !b.current(token) {
		return
	}

	b.archiveScenario(prompt)
	slog.Info("GenBus: Generation ready", "token", token, "events", len(b.playback.Events()))
	if b.notifier != nil {
		b.notifier.GenerationReady()
	}
}

// dispatch applies one chunk to playback state, dropping placeholders and
// anything tagged with a superseded token.
func (b *Bus) dispatch(ctx context.Context, token uint64, chunk model.StreamChunk) error {
	if !b.current(token) {
		return errStale
	}
	if chunk.IsPlaceholder() {
		slog.Debug("GenBus: Dropping placeholder chunk", "type", chunk.Type)
		return nil
	}

	switch chunk.Type {
	case model.ChunkSummary:
		b.playback.SetSummary(chunk.Summary)
		b.warm(ctx, chunk.Summary)
	case model.ChunkEvent:
		ev := chunk.Event()
		first := len(b.playback.Events()) == 0
		b.playback.AppendEvent(ev)
		if first {
			b.warm(ctx, ev.Line())
		}
	case model.ChunkGeoChanges:
		b.playback.SetGeoChanges(chunk.GeoChanges)
	case model.ChunkError:
		return fmt.Errorf("generator error: %s", chunk.Message)
	case model.ChunkDone:
	}
	return nil
}

func (b *Bus) fallback(ctx context.Context, token uint64, prompt string) error {
	scenario, err := b.gen.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	if !b.current(token) {
		return errStale
	}

	// The failed stream may have landed a partial summary or events; the
	// fallback scenario replaces them wholesale, never appends.
	b.playback.Clear()

	if scenario.Summary != "" {
		b.playback.SetSummary(scenario.Summary)
		b.warm(ctx, scenario.Summary)
	}
	for i, ev := range scenario.Timeline {
		chunk := model.StreamChunk{
			Type: model.ChunkEvent, Year: ev.Year, Title: ev.Title,
			Description: ev.Description, GeoPoints: ev.GeoPoints,
		}
		if chunk.IsPlaceholder() {
			continue
		}
		if !b.current(token) {
			return errStale
		}
		b.playback.AppendEvent(ev)
		if i == 0 {
			b.warm(ctx, ev.Line())
		}
	}
	b.playback.SetGeoChanges(scenario.GeoChanges)
	return nil
}

// warm prefetches narration audio so the first utterances hit the cache's
// instant path.
func (b *Bus) warm(ctx context.Context, text string) {
	if b.prefetch == nil || text == "" {
		return
	}
	go b.prefetch.Prefetch(ctx, text)
}

func (b *Bus) archiveScenario(prompt string) {
	if b.archive == nil {
		return
	}
	scenario := &model.Scenario{
		Prompt:    prompt,
		Summary:   b.playback.Summary(),
		Timeline:  b.playback.Events(),
		CreatedAt: time.Now().UTC(),
	}
	if len(scenario.Timeline) == 0 && scenario.Summary == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.archive.SaveScenario(ctx, scenario); err != nil {
		slog.Warn("GenBus: Failed to archive scenario", "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

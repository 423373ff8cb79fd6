// Package speech turns narration text into audible playback. Speak blocks
// until the utterance has audibly finished and never fails: synthesis
// errors degrade to the local synthesizer, and a missing synthesizer
// degrades to a silent wait sized to the text.
package speech

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"whatify/pkg/audio"
	"whatify/pkg/audiocache"
	"whatify/pkg/config"
	"whatify/pkg/model"
	"whatify/pkg/tracker"
	"whatify/pkg/tts"
)

// silentPaceWPM sizes the text-only wait when no synthesizer is available.
const silentPaceWPM = 150

// Engine wraps a single narration request.
type Engine struct {
	player   audio.Service
	cache    *audiocache.Cache
	primary  tts.Provider
	fallback tts.Provider
	cfg      *config.NarrationConfig
	tracker  *tracker.Tracker
	voice    string

	mu    sync.RWMutex
	muted bool
}

// New creates a speech engine. The fallback provider may be nil; without
// one, failed synthesis degrades to a timed silent wait.
func New(player audio.Service, cache *audiocache.Cache, primary, fallback tts.Provider, voice string, cfg *config.NarrationConfig, t *tracker.Tracker) *Engine {
	return &Engine{
		player:   player,
		cache:    cache,
		primary:  primary,
		fallback: fallback,
		voice:    voice,
		cfg:      cfg,
		tracker:  t,
	}
}

// SetMuted toggles audible output. Muting stops current audio immediately;
// unmuting takes no immediate action, the next Speak plays normally.
func (e *Engine) SetMuted(muted bool) {
	e.mu.Lock()
	e.muted = muted
	e.mu.Unlock()

	if muted {
		e.player.Stop()
	}
}

// Muted reports whether audible output is suppressed.
func (e *Engine) Muted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.muted
}

// Stop interrupts the current utterance. A blocked Speak call observes the
// idle player and returns.
func (e *Engine) Stop() {
	e.player.Stop()
}

// Speak narrates the text and returns when audio has audibly finished, an
// error path has been exhausted, or the hard timeout elapses. It never
// reports failure.
func (e *Engine) Speak(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	// Rapid calls must never overlap
	e.player.Stop()

	if e.Muted() {
		return
	}

	handle := e.resolve(ctx, text)
	if handle.IsZero() {
		e.silentWait(ctx, text)
		return
	}

	done := make(chan struct{})
	if err := e.player.Play(handle, func() { close(done) }); err != nil {
		slog.Warn("Speech: Playback failed", "error", err, "format", handle.Format)
		if fb := e.synthFallback(ctx, text); !fb.IsZero() {
			done = make(chan struct{})
			if err := e.player.Play(fb, func() { close(done) }); err == nil {
				e.awaitCompletion(ctx, done)
				return
			}
		}
		e.silentWait(ctx, text)
		return
	}

	e.awaitCompletion(ctx, done)
}

// Prefetch warms the cache for the text without playing anything. Fallback
// synthesis is not attempted here; Speak handles that at play time.
func (e *Engine) Prefetch(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" || e.cache.Has(text) {
		return
	}

	handle, err := e.synthesize(ctx, e.primary, text)
	if err != nil {
		slog.Debug("Speech: Prefetch failed", "error", err, "chars", len(text))
		return
	}
	e.cache.Set(text, handle)
}

// resolve produces a playable handle: cache first, then the premium
// provider, then the local synthesizer.
func (e *Engine) resolve(ctx context.Context, text string) model.AudioHandle {
	if handle, ok := e.cache.Get(text); ok {
		return handle
	}

	handle, err := e.synthesize(ctx, e.primary, text)
	if err == nil {
		e.cache.Set(text, handle)
		return handle
	}

	if tts.IsFatalError(err) {
		slog.Warn("Speech: Provider failed, using fallback", "provider", e.primary.Name(), "error", err)
	} else {
		slog.Debug("Speech: Provider unavailable", "provider", e.primary.Name(), "error", err)
	}

	return e.synthFallback(ctx, text)
}

func (e *Engine) synthFallback(ctx context.Context, text string) model.AudioHandle {
	if e.fallback == nil {
		return model.AudioHandle{}
	}
	if e.tracker != nil {
		e.tracker.TrackFallback("tts")
	}
	handle, err := e.synthesize(ctx, e.fallback, text)
	if err != nil {
		slog.Warn("Speech: Fallback synthesis failed", "error", err)
		return model.AudioHandle{}
	}
	return handle
}

func (e *Engine) synthesize(ctx context.Context, provider tts.Provider, text string) (model.AudioHandle, error) {
	synthCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.SynthTimeout))
	defer cancel()
	return provider.Synthesize(synthCtx, text, e.voice)
}

// awaitCompletion resolves on whichever fires first: the player's native
// completion callback, a poll observing the player idle or past its
// duration, or the hard timeout. Audio backends do not reliably deliver
// completion, so all three paths are load-bearing.
func (e *Engine) awaitCompletion(ctx context.Context, done <-chan struct{}) {
	poll := time.NewTicker(time.Duration(e.cfg.PollInterval))
	defer poll.Stop()
	deadline := time.NewTimer(time.Duration(e.cfg.SpeakTimeout))
	defer deadline.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			e.player.Stop()
			return
		case <-poll.C:
			if !e.player.IsBusy() {
				return
			}
			if d := e.player.Duration(); d > 0 && e.player.Position() >= d {
				return
			}
		case <-deadline.C:
			slog.Warn("Speech: Utterance hit hard timeout", "timeout", time.Duration(e.cfg.SpeakTimeout))
			e.player.Stop()
			return
		}
	}
}

// silentWait holds the narration cadence when nothing can be spoken, so the
// sequence still advances at a readable pace.
func (e *Engine) silentWait(ctx context.Context, text string) {
	words := len(strings.Fields(text))
	wait := time.Duration(words) * time.Minute / silentPaceWPM
	if max := time.Duration(e.cfg.SpeakTimeout); wait > max {
		wait = max
	}
	if wait < 300*time.Millisecond {
		wait = 300 * time.Millisecond
	}

	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

package speech

import (
	"context"
	"sync"
	"time"

	"whatify/pkg/model"
	"whatify/pkg/tts"
)

// mockPlayer implements audio.Service with timer-driven completion so tests
// control playback pacing without a sound device.
type mockPlayer struct {
	mu       sync.Mutex
	playing  bool
	paused   bool
	volume   float64
	playLen  time.Duration // how long each Play takes to "finish"
	playErr  error
	gen      int
	plays    []model.AudioHandle
	stops    int
	complete func() // current completion callback
}

func newMockPlayer(playLen time.Duration) *mockPlayer {
	return &mockPlayer{playLen: playLen, volume: 1.0}
}

func (m *mockPlayer) Play(handle model.AudioHandle, onComplete func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playErr != nil {
		return m.playErr
	}
	m.gen++
	gen := m.gen
	m.playing = true
	m.plays = append(m.plays, handle)
	m.complete = onComplete

	time.AfterFunc(m.playLen, func() {
		m.mu.Lock()
		live := m.gen == gen && m.playing
		if live {
			m.playing = false
		}
		cb := onComplete
		m.mu.Unlock()
		if live && cb != nil {
			cb()
		}
	})
	return nil
}

func (m *mockPlayer) Pause()  { m.mu.Lock(); m.paused = true; m.mu.Unlock() }
func (m *mockPlayer) Resume() { m.mu.Lock(); m.paused = false; m.mu.Unlock() }

func (m *mockPlayer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	if m.playing {
		m.stops++
	}
	m.playing = false
	m.paused = false
}

func (m *mockPlayer) Shutdown() { m.Stop() }

func (m *mockPlayer) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing && !m.paused
}

func (m *mockPlayer) IsBusy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *mockPlayer) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *mockPlayer) SetVolume(vol float64) { m.mu.Lock(); m.volume = vol; m.mu.Unlock() }
func (m *mockPlayer) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}
func (m *mockPlayer) Position() time.Duration { return 0 }
func (m *mockPlayer) Duration() time.Duration { return 0 }

func (m *mockPlayer) stopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

func (m *mockPlayer) playCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.plays)
}

// mockProvider implements tts.Provider via func fields.
type mockProvider struct {
	name           string
	SynthesizeFunc func(ctx context.Context, text, voice string) (model.AudioHandle, error)

	mu    sync.Mutex
	calls []string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Synthesize(ctx context.Context, text, voice string) (model.AudioHandle, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, voice)
	}
	return model.AudioHandle{URL: "mock:" + text, Format: "mp3", Data: []byte(text)}, nil
}

func (m *mockProvider) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{{ID: "mock-voice"}}, nil
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

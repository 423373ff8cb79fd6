// Package audio plays synthesized narration on the host sound device.
package audio

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"

	"whatify/pkg/model"
)

// Service defines the interface for audio playback control.
type Service interface {
	// Play starts playback of an audio handle.
	// onComplete is called when playback finishes (not when stopped manually).
	Play(handle model.AudioHandle, onComplete func()) error
	// Pause pauses current playback.
	Pause()
	// Resume resumes paused playback.
	Resume()
	// Stop stops current playback without firing the completion callback.
	Stop()
	// Shutdown stops playback and releases resources.
	Shutdown()

	// IsPlaying returns true if audio is currently playing (not paused).
	IsPlaying() bool
	// IsBusy returns true if audio is loaded, playing or paused.
	IsBusy() bool
	// IsPaused returns true if playback is paused.
	IsPaused() bool
	// SetVolume sets playback volume (0.0 to 1.0).
	SetVolume(vol float64)
	// Volume returns current volume level.
	Volume() float64
	// Position returns the current playback position.
	Position() time.Duration
	// Duration returns the total duration of the current audio.
	Duration() time.Duration
}

// Manager implements Service using gopxl/beep for real audio payloads and a
// wall-clock pacer for synthetic handles, which carry no payload.
type Manager struct {
	mu                 sync.RWMutex
	ctrl               *beep.Ctrl
	volume             float64
	isPaused           bool
	speakerInitialized bool
	currentSampleRate  beep.SampleRate
	streamer           *effects.Volume
	trackStreamer      beep.StreamSeekCloser
	trackFormat        beep.Format

	synth *synthClock
	gen   uint64 // invalidates stale completion callbacks
}

// synthClock paces a synthetic utterance by wall clock.
type synthClock struct {
	total   time.Duration
	elapsed time.Duration // accumulated before the current run
	started time.Time     // zero while paused
	timer   *time.Timer
}

func (s *synthClock) position() time.Duration {
	pos := s.elapsed
	if !s.started.IsZero() {
		pos += time.Since(s.started)
	}
	if pos > s.total {
		pos = s.total
	}
	return pos
}

// New creates a new Manager instance.
func New(volume float64) *Manager {
	if volume <= 0 || volume > 1 {
		volume = 1.0
	}
	return &Manager{volume: volume}
}

// Play starts playback of an audio handle.
func (m *Manager) Play(handle model.AudioHandle, onComplete func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	if handle.Synth {
		return m.playSynthLocked(handle, onComplete)
	}
	return m.playPayloadLocked(handle, onComplete)
}

func (m *Manager) playPayloadLocked(handle model.AudioHandle, onComplete func()) error {
	if len(handle.Data) == 0 {
		return fmt.Errorf("audio handle has no payload")
	}

	streamer, format, err := decodeStreamer(handle.Data)
	if err != nil {
		return err
	}

	if err := m.ensureSpeakerInitialized(streamer); err != nil {
		return err
	}

	resampled := beep.Resample(3, format.SampleRate, m.currentSampleRate, streamer)

	volStreamer := &effects.Volume{
		Streamer: resampled,
		Base:     2,
		Volume:   volumeToPower(m.volume),
		Silent:   m.volume <= 0.01,
	}

	m.streamer = volStreamer
	m.trackStreamer = streamer
	m.trackFormat = format
	m.ctrl = &beep.Ctrl{Streamer: volStreamer}
	m.isPaused = false

	m.gen++
	gen := m.gen

	speaker.Play(beep.Seq(m.ctrl, beep.Callback(func() {
		go func() {
			m.mu.Lock()
			live := m.gen == gen
			if live {
				m.ctrl = nil
				m.streamer = nil
				m.trackStreamer = nil
				m.isPaused = false
			}
			m.mu.Unlock()
			streamer.Close()

			if live && onComplete != nil {
				onComplete()
			}
		}()
	})))

	slog.Debug("Audio: Playing", "format", handle.Format, "bytes", len(handle.Data), "voice", handle.Voice)
	return nil
}

func (m *Manager) playSynthLocked(handle model.AudioHandle, onComplete func()) error {
	if handle.Duration <= 0 {
		return fmt.Errorf("synthetic handle has no duration")
	}

	m.gen++
	gen := m.gen

	clock := &synthClock{total: handle.Duration, started: time.Now()}
	clock.timer = time.AfterFunc(handle.Duration, func() {
		m.mu.Lock()
		live := m.gen == gen && m.synth == clock
		if live {
			m.synth = nil
			m.isPaused = false
		}
		m.mu.Unlock()

		if live && onComplete != nil {
			onComplete()
		}
	})

	m.synth = clock
	m.isPaused = false

	slog.Debug("Audio: Playing synthetic", "duration", handle.Duration, "voice", handle.Voice)
	return nil
}

// Pause pauses current playback.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.synth != nil && !m.isPaused {
		m.synth.timer.Stop()
		m.synth.elapsed = m.synth.position()
		m.synth.started = time.Time{}
		m.isPaused = true
		return
	}

	if m.ctrl != nil {
		speaker.Lock()
		m.ctrl.Paused = true
		speaker.Unlock()
		m.isPaused = true
	}
}

// Resume resumes paused playback.
func (m *Manager) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.synth != nil && m.isPaused {
		remaining := m.synth.total - m.synth.elapsed
		if remaining < 0 {
			remaining = 0
		}
		m.synth.started = time.Now()
		m.synth.timer.Reset(remaining)
		m.isPaused = false
		return
	}

	if m.ctrl != nil && m.isPaused {
		speaker.Lock()
		m.ctrl.Paused = false
		speaker.Unlock()
		m.isPaused = false
	}
}

// Stop stops current playback.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
}

func (m *Manager) stopLocked() {
	m.gen++

	if m.synth != nil {
		m.synth.timer.Stop()
		m.synth = nil
	}
	if m.trackStreamer != nil {
		m.trackStreamer.Close()
		m.trackStreamer = nil
	}
	if m.ctrl != nil {
		speaker.Clear()
		m.ctrl = nil
		m.streamer = nil
	}
	m.isPaused = false
}

// Shutdown stops playback.
func (m *Manager) Shutdown() {
	m.Stop()
}

// IsPlaying returns true if audio is currently playing.
func (m *Manager) IsPlaying() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (m.ctrl != nil || m.synth != nil) && !m.isPaused
}

// IsBusy returns true if audio is loaded (playing or paused).
func (m *Manager) IsBusy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctrl != nil || m.synth != nil
}

// IsPaused returns true if playback is paused.
func (m *Manager) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// SetVolume sets playback volume (0.0 to 1.0).
func (m *Manager) SetVolume(vol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}
	m.volume = vol

	if m.streamer != nil {
		speaker.Lock()
		m.streamer.Volume = volumeToPower(vol)
		m.streamer.Silent = vol <= 0.01
		speaker.Unlock()
	}
}

// Volume returns current volume level.
func (m *Manager) Volume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.volume
}

// Position returns the current playback position.
func (m *Manager) Position() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.synth != nil {
		return m.synth.position()
	}
	if m.trackStreamer == nil || m.trackFormat.SampleRate == 0 {
		return 0
	}
	return m.trackFormat.SampleRate.D(m.trackStreamer.Position())
}

// Duration returns the total duration of the current audio.
func (m *Manager) Duration() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.synth != nil {
		return m.synth.total
	}
	if m.trackStreamer == nil || m.trackFormat.SampleRate == 0 {
		return 0
	}
	return m.trackFormat.SampleRate.D(m.trackStreamer.Len())
}

func (m *Manager) ensureSpeakerInitialized(streamer beep.StreamSeekCloser) error {
	const targetSampleRate = 48000
	if !m.speakerInitialized {
		err := speaker.Init(beep.SampleRate(targetSampleRate), beep.SampleRate(targetSampleRate).N(time.Second/10))
		if err != nil {
			streamer.Close()
			slog.Error("Failed to initialize speaker", "error", err)
			return err
		}
		m.speakerInitialized = true
		m.currentSampleRate = beep.SampleRate(targetSampleRate)
	}
	return nil
}

type bytesReadCloser struct {
	*bytes.Reader
}

func (bytesReadCloser) Close() error { return nil }

func decodeStreamer(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	rc := bytesReadCloser{bytes.NewReader(data)}

	// Try MP3 first
	streamer, format, err := mp3.Decode(rc)
	if err == nil {
		return streamer, format, nil
	}

	if _, err := rc.Seek(0, io.SeekStart); err != nil {
		return nil, beep.Format{}, err
	}

	streamer, format, err = wav.Decode(rc)
	if err != nil {
		slog.Error("Failed to decode audio payload", "error", err)
		return nil, beep.Format{}, err
	}
	return streamer, format, nil
}

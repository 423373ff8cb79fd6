package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"whatify/pkg/config"
	"whatify/pkg/model"
)

func testNarrationConfig() *config.NarrationConfig {
	return &config.NarrationConfig{
		SpeakTimeout:    config.Duration(2 * time.Second),
		SynthTimeout:    config.Duration(100 * time.Millisecond),
		PollInterval:    config.Duration(2 * time.Millisecond),
		IntroPause:      config.Duration(time.Millisecond),
		InterEventPause: config.Duration(time.Millisecond),
		RestartSettle:   config.Duration(time.Millisecond),
		PrefetchAhead:   2,
	}
}

// fakeSpeaker implements sequencer.Speaker with configurable pacing.
type fakeSpeaker struct {
	mu      sync.Mutex
	delay   time.Duration
	spoken  []string
	stopped chan struct{}
}

func newFakeSpeaker(delay time.Duration) *fakeSpeaker {
	return &fakeSpeaker{delay: delay, stopped: make(chan struct{})}
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string) {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	stopped := f.stopped
	f.mu.Unlock()

	if f.delay == 0 {
		return
	}
	select {
	case <-time.After(f.delay):
	case <-stopped:
	}
}

func (f *fakeSpeaker) Stop() {
	f.mu.Lock()
	close(f.stopped)
	f.stopped = make(chan struct{})
	f.mu.Unlock()
}

func (f *fakeSpeaker) spokenTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

// fakeSpeech implements SpeechControl.
type fakeSpeech struct {
	mu         sync.Mutex
	muted      bool
	prefetched []string
}

func (f *fakeSpeech) Prefetch(ctx context.Context, text string) {
	f.mu.Lock()
	f.prefetched = append(f.prefetched, text)
	f.mu.Unlock()
}

func (f *fakeSpeech) SetMuted(muted bool) {
	f.mu.Lock()
	f.muted = muted
	f.mu.Unlock()
}

func (f *fakeSpeech) Muted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muted
}

func (f *fakeSpeech) prefetchedTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prefetched...)
}

// mockMap records every map operation.
type mockMap struct {
	mu         sync.Mutex
	markers    []string
	active     []string
	waveforms  []string // "id:on"/"id:off"
	links      [][2]string
	focuses    [][2]float64
	linkClears int
	resets     int
	hardResets int
	highlights int
}

func (m *mockMap) Focus(lat, lon, scale float64) {
	m.mu.Lock()
	m.focuses = append(m.focuses, [2]float64{lat, lon})
	m.mu.Unlock()
}

func (m *mockMap) Marker(lat, lon float64, label string, active bool) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("marker-%d", len(m.markers)+1)
	m.markers = append(m.markers, id)
	return id
}

func (m *mockMap) SetActiveMarker(markerID string) {
	m.mu.Lock()
	m.active = append(m.active, markerID)
	m.mu.Unlock()
}

func (m *mockMap) ShowWaveform(markerID string, on bool) {
	m.mu.Lock()
	state := markerID + ":off"
	if on {
		state = markerID + ":on"
	}
	m.waveforms = append(m.waveforms, state)
	m.mu.Unlock()
}

func (m *mockMap) Link(fromID, toID string, opts LinkOptions) {
	m.mu.Lock()
	m.links = append(m.links, [2]string{fromID, toID})
	m.mu.Unlock()
}

func (m *mockMap) ClearLinks() {
	m.mu.Lock()
	m.linkClears++
	m.mu.Unlock()
}

func (m *mockMap) Highlight(fc *geojson.FeatureCollection) {
	m.mu.Lock()
	m.highlights++
	m.mu.Unlock()
}

func (m *mockMap) Reset(hard bool) {
	m.mu.Lock()
	m.resets++
	if hard {
		m.hardResets++
	}
	m.mu.Unlock()
}

func (m *mockMap) markerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.markers)
}

// mockNotifier records snapshots and now-playing events.
type mockNotifier struct {
	mu         sync.Mutex
	snapshots  []model.PlaybackSnapshot
	nowPlaying []int
}

func (n *mockNotifier) PlaybackChanged(snapshot model.PlaybackSnapshot) {
	n.mu.Lock()
	n.snapshots = append(n.snapshots, snapshot)
	n.mu.Unlock()
}

func (n *mockNotifier) NowPlaying(index int, event model.TimelineEvent) {
	n.mu.Lock()
	n.nowPlaying = append(n.nowPlaying, index)
	n.mu.Unlock()
}

func (n *mockNotifier) played() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int(nil), n.nowPlaying...)
}

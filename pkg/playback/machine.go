// Package playback drives the idle → intro → events progression of one
// scenario. Each step awaits full narration settlement before advancing,
// while pause, seek, restart, and mute intents arrive asynchronously.
package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"

	"whatify/pkg/config"
	"whatify/pkg/model"
	"whatify/pkg/sequencer"
)

// Narrator is the serialized narration frontend.
type Narrator interface {
	Enqueue(req sequencer.Request)
	Reset()
}

// SpeechControl is the slice of the speech engine the machine steers
// directly, outside the narration queue.
type SpeechControl interface {
	Prefetch(ctx context.Context, text string)
	SetMuted(muted bool)
	Muted() bool
}

// Machine owns the playback state of the active scenario. External actors
// post intents and read snapshots; all mutation happens here.
type Machine struct {
	seq      Narrator
	speech   SpeechControl
	mapAPI   MapAPI
	notifier Notifier
	cfg      *config.NarrationConfig

	mu      sync.Mutex
	summary string
	events  []model.TimelineEvent
	phase   model.Phase
	index   int
	playing bool
	markers map[int]string

	// session identifies the live driver loop. Every intent that redirects
	// playback bumps it; async continuations check it and go silent when
	// superseded.
	session uint64
}

// New creates an idle machine.
func New(seq Narrator, speech SpeechControl, mapAPI MapAPI, notifier Notifier, cfg *config.NarrationConfig) *Machine {
	return &Machine{
		seq:      seq,
		speech:   speech,
		mapAPI:   mapAPI,
		notifier: notifier,
		cfg:      cfg,
		phase:    model.PhaseIdle,
		index:    -1,
		markers:  make(map[int]string),
	}
}

// Snapshot returns the externally observable state.
func (m *Machine) Snapshot() model.PlaybackSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() model.PlaybackSnapshot {
	return model.PlaybackSnapshot{
		Phase:      m.phase,
		EventIndex: m.index,
		Playing:    m.playing,
		Muted:      m.speech.Muted(),
		EventCount: len(m.events),
	}
}

// SetSummary stores the scenario intro.
func (m *Machine) SetSummary(summary string) {
	m.mu.Lock()
	m.summary = summary
	m.mu.Unlock()
	m.notify()
}

// Summary returns the scenario intro.
func (m *Machine) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

// AppendEvent adds a streamed event to the timeline. A running driver loop
// picks it up when it reaches the end of the known events.
func (m *Machine) AppendEvent(ev model.TimelineEvent) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	m.notify()
}

// Events returns a copy of the timeline.
func (m *Machine) Events() []model.TimelineEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.TimelineEvent(nil), m.events...)
}

// SetGeoChanges overlays the scenario's altered borders on the map.
func (m *Machine) SetGeoChanges(fc *geojson.FeatureCollection) {
	if fc == nil {
		return
	}
	m.mapAPI.Highlight(fc)
}

// Play begins or resumes playback. From idle it starts at the intro; from a
// pause it re-narrates the current event from its start. Repeated calls
// while playing are no-ops.
func (m *Machine) Play() {
	m.mu.Lock()
	if m.playing {
		m.mu.Unlock()
		return
	}
	m.playing = true
	m.session++
	session := m.session

	withIntro := m.index < 0 && m.summary != ""
	start := m.index
	if start < 0 {
		start = 0
	}
	m.mu.Unlock()

	m.notify()
	go m.drive(session, start, withIntro)
}

// Pause stops narration and freezes the current event index. Idempotent.
func (m *Machine) Pause() {
	m.mu.Lock()
	if !m.playing {
		m.mu.Unlock()
		return
	}
	m.playing = false
	m.session++
	marker := m.markers[m.index]
	m.mu.Unlock()

	m.seq.Reset()
	if marker != "" {
		m.mapAPI.ShowWaveform(marker, false)
	}
	m.notify()
	slog.Debug("Playback: Paused", "index", m.Snapshot().EventIndex)
}

// Next stops current narration and jumps to the following event, wrapping
// to the first event past the end.
func (m *Machine) Next() {
	m.seek(func(index, count int) int {
		next := index + 1
		if next >= count {
			return 0
		}
		return next
	})
}

// Prev stops current narration and jumps to the previous event, clamped to
// the first event.
func (m *Machine) Prev() {
	m.seek(func(index, count int) int {
		prev := index - 1
		if prev < 0 {
			return 0
		}
		return prev
	})
}

func (m *Machine) seek(target func(index, count int) int) {
	m.mu.Lock()
	if len(m.events) == 0 {
		m.mu.Unlock()
		return
	}
	idx := target(m.index, len(m.events))
	m.session++
	session := m.session
	m.playing = true
	m.mu.Unlock()

	m.seq.Reset()
	go m.drive(session, idx, false)
}

// Restart tears playback down and starts over from the intro after a short
// settle delay.
func (m *Machine) Restart() {
	m.mu.Lock()
	m.session++
	m.playing = false
	m.index = -1
	m.phase = model.PhaseIdle
	m.markers = make(map[int]string)
	m.mu.Unlock()

	m.seq.Reset()
	m.mapAPI.ClearLinks()
	m.mapAPI.SetActiveMarker("")
	m.mapAPI.Reset(false)
	m.notify()

	time.Sleep(time.Duration(m.cfg.RestartSettle))
	m.Play()
}

// ToggleMute flips audible output. Muting stops current audio immediately;
// unmuting changes nothing until the next utterance.
func (m *Machine) ToggleMute() {
	m.speech.SetMuted(!m.speech.Muted())
	m.notify()
}

// Clear performs the scenario teardown: stop narration, drop the timeline,
// markers, and links, and return to idle. The audio cache is owned by the
// caller and cleared alongside.
func (m *Machine) Clear() {
	m.mu.Lock()
	m.session++
	m.summary = ""
	m.events = nil
	m.index = -1
	m.phase = model.PhaseIdle
	m.playing = false
	m.markers = make(map[int]string)
	m.mu.Unlock()

	m.seq.Reset()
	m.mapAPI.ClearLinks()
	m.mapAPI.Reset(true)
	m.notify()
}

// live reports whether the session still owns playback.
func (m *Machine) live(session uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session == session
}

// drive is the playback loop: optionally the intro, then events from start
// until the timeline is exhausted or the session is superseded. Explicit
// iteration keeps the pause and cancel checkpoints in one place.
func (m *Machine) drive(session uint64, start int, withIntro bool) {
	if withIntro {
		if !m.playIntro(session) {
			return
		}
	}

	for i := start; ; i++ {
		m.mu.Lock()
		count := len(m.events)
		m.mu.Unlock()
		if i >= count {
			break
		}

		if !m.playEvent(session, i) {
			return
		}

		m.mu.Lock()
		count = len(m.events)
		m.mu.Unlock()
		if i+1 >= count {
			break
		}

		if !m.sleepLive(session, time.Duration(m.cfg.InterEventPause)) {
			return
		}
	}

	// Sequence complete
	m.mu.Lock()
	if m.session != session {
		m.mu.Unlock()
		return
	}
	m.playing = false
	m.phase = model.PhaseIdle
	m.mu.Unlock()
	m.notify()
	slog.Debug("Playback: Sequence complete")
}

func (m *Machine) playIntro(session uint64) bool {
	m.mu.Lock()
	if m.session != session {
		m.mu.Unlock()
		return false
	}
	m.phase = model.PhaseIntro
	m.index = -1
	summary := m.summary
	m.mu.Unlock()
	m.notify()

	go m.prefetchAhead(0)

	if !m.speakAndWait(session, summary) {
		return false
	}
	return m.sleepLive(session, time.Duration(m.cfg.IntroPause))
}

// playEvent narrates one event with its map choreography. Returns false
// when the driver loop must stop (superseded or paused).
func (m *Machine) playEvent(session uint64, i int) bool {
	m.mu.Lock()
	if m.session != session {
		m.mu.Unlock()
		return false
	}
	ev := m.events[i]
	m.phase = model.PhaseEvents
	m.index = i
	prevMarker := m.markers[i-1]
	marker := m.markers[i]
	m.mu.Unlock()
	m.notify()

	// Map choreography precedes narration and never blocks on it
	if marker == "" && len(ev.GeoPoints) > 0 {
		p := ev.GeoPoints[0]
		marker = m.mapAPI.Marker(p.Lat, p.Lon, ev.Title, false)
		m.mu.Lock()
		m.markers[i] = marker
		m.mu.Unlock()
	}
	if marker != "" {
		m.mapAPI.SetActiveMarker(marker)
		m.mapAPI.ShowWaveform(marker, true)
	}
	if bound, ok := ev.Bound(); ok {
		center := bound.Center()
		m.mapAPI.Focus(center[1], center[0], 0)
	}
	if prevMarker != "" && marker != "" {
		m.mapAPI.Link(prevMarker, marker, LinkOptions{Fade: true})
	}

	go m.prefetchAhead(i + 1)

	if m.notifier != nil {
		m.notifier.NowPlaying(i, ev)
	}

	settled := m.speakAndWait(session, ev.Line())

	if marker != "" {
		m.mapAPI.ShowWaveform(marker, false)
	}
	return settled
}

// speakAndWait enqueues the line and blocks until it settles, or until the
// session is superseded. The in-flight utterance is allowed to settle on
// its own; only the continuation is suppressed.
func (m *Machine) speakAndWait(session uint64, text string) bool {
	done := make(chan struct{})
	m.seq.Enqueue(sequencer.Request{
		Text:   text,
		OnDone: func() { close(done) },
	})

	poll := time.NewTicker(time.Duration(m.cfg.PollInterval))
	defer poll.Stop()
	for {
		select {
		case <-done:
			return m.live(session)
		case <-poll.C:
			if !m.live(session) {
				return false
			}
		}
	}
}

func (m *Machine) sleepLive(session uint64, d time.Duration) bool {
	if d > 0 {
		time.Sleep(d)
	}
	return m.live(session)
}

// prefetchAhead warms the audio cache for the next events so their
// narration hits the instant path.
func (m *Machine) prefetchAhead(from int) {
	m.mu.Lock()
	ahead := m.cfg.PrefetchAhead
	lines := make([]string, 0, ahead)
	for i := from; i < from+ahead && i < len(m.events); i++ {
		lines = append(lines, m.events[i].Line())
	}
	m.mu.Unlock()

	for _, line := range lines {
		m.speech.Prefetch(context.Background(), line)
	}
}

func (m *Machine) notify() {
	if m.notifier != nil {
		m.notifier.PlaybackChanged(m.Snapshot())
	}
}

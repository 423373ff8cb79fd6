package playback

import (
	"testing"
	"time"

	"whatify/pkg/model"
	"whatify/pkg/sequencer"
)

var testEvents = []model.TimelineEvent{
	{Year: 1815, Title: "Waterloo", Description: "Napoleon wins.", GeoPoints: []model.GeoPoint{{Lat: 50.68, Lon: 4.41}}},
	{Year: 1820, Title: "Dominance", Description: "The empire consolidates.", GeoPoints: []model.GeoPoint{{Lat: 48.85, Lon: 2.35}}},
}

type fixture struct {
	machine  *Machine
	speaker  *fakeSpeaker
	speech   *fakeSpeech
	mapAPI   *mockMap
	notifier *mockNotifier
}

func newFixture(speakDelay time.Duration) *fixture {
	speaker := newFakeSpeaker(speakDelay)
	speech := &fakeSpeech{}
	mapAPI := &mockMap{}
	notifier := &mockNotifier{}
	seq := sequencer.New(speaker)
	machine := New(seq, speech, mapAPI, notifier, testNarrationConfig())
	return &fixture{machine: machine, speaker: speaker, speech: speech, mapAPI: mapAPI, notifier: notifier}
}

func (f *fixture) loadEvents(events ...model.TimelineEvent) {
	for _, ev := range events {
		f.machine.AppendEvent(ev)
	}
}

func waitStopped(t *testing.T, m *Machine) model.PlaybackSnapshot {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		snap := m.Snapshot()
		if !snap.Playing {
			return snap
		}
		select {
		case <-deadline:
			t.Fatalf("playback never stopped: %+v", snap)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestPlayRunsFullSequence(t *testing.T) {
	f := newFixture(0)
	f.loadEvents(testEvents...)

	f.machine.Play()
	time.Sleep(20 * time.Millisecond)
	snap := waitStopped(t, f.machine)

	if snap.EventIndex != 1 {
		t.Errorf("EventIndex = %d, want 1", snap.EventIndex)
	}
	if snap.Playing {
		t.Error("Playing = true after completion")
	}

	spoken := f.speaker.spokenTexts()
	want := []string{testEvents[0].Line(), testEvents[1].Line()}
	if len(spoken) != 2 || spoken[0] != want[0] || spoken[1] != want[1] {
		t.Errorf("spoken = %v, want %v", spoken, want)
	}
}

func TestPlaySpeaksIntroFirst(t *testing.T) {
	f := newFixture(0)
	f.machine.SetSummary("A world where Napoleon won.")
	f.loadEvents(testEvents...)

	f.machine.Play()
	time.Sleep(20 * time.Millisecond)
	waitStopped(t, f.machine)

	spoken := f.speaker.spokenTexts()
	if len(spoken) != 3 {
		t.Fatalf("spoken %d utterances, want 3: %v", len(spoken), spoken)
	}
	if spoken[0] != "A world where Napoleon won." {
		t.Errorf("first utterance = %q, want the intro", spoken[0])
	}
	if spoken[1] != testEvents[0].Line() {
		t.Errorf("second utterance = %q, want first event", spoken[1])
	}
}

func TestPauseFreezesIndexAndResumeRespeaks(t *testing.T) {
	f := newFixture(200 * time.Millisecond)
	f.loadEvents(testEvents...)

	f.machine.Play()
	waitFor(t, func() bool { return len(f.speaker.spokenTexts()) == 1 }, "first event never started")

	f.machine.Pause()
	snap := f.machine.Snapshot()
	if snap.Playing {
		t.Error("Playing = true after Pause")
	}
	if snap.EventIndex != 0 {
		t.Errorf("EventIndex = %d after Pause, want 0", snap.EventIndex)
	}

	// Index stays frozen
	time.Sleep(50 * time.Millisecond)
	if got := f.machine.Snapshot().EventIndex; got != 0 {
		t.Errorf("EventIndex drifted to %d while paused", got)
	}

	// Resume re-speaks the frozen event from its start
	f.machine.Play()
	waitFor(t, func() bool { return len(f.speaker.spokenTexts()) >= 2 }, "resume never spoke")
	spoken := f.speaker.spokenTexts()
	if spoken[1] != testEvents[0].Line() {
		t.Errorf("resume spoke %q, want %q again", spoken[1], testEvents[0].Line())
	}
}

func TestPauseIsIdempotent(t *testing.T) {
	f := newFixture(200 * time.Millisecond)
	f.loadEvents(testEvents...)

	f.machine.Play()
	waitFor(t, func() bool { return len(f.speaker.spokenTexts()) == 1 }, "first event never started")

	f.machine.Pause()
	first := f.machine.Snapshot()
	f.machine.Pause()
	second := f.machine.Snapshot()

	if first != second {
		t.Errorf("double pause changed state: %+v vs %+v", first, second)
	}
}

func TestNextWrapsPastLastEvent(t *testing.T) {
	f := newFixture(100 * time.Millisecond)
	f.loadEvents(testEvents...)

	f.machine.Play()
	waitFor(t, func() bool { return len(f.speaker.spokenTexts()) >= 1 }, "playback never started")

	f.machine.Next() // to index 1
	waitFor(t, func() bool { return f.machine.Snapshot().EventIndex == 1 }, "Next never reached index 1")

	f.machine.Next() // wraps to 0
	waitFor(t, func() bool { return f.machine.Snapshot().EventIndex == 0 }, "Next never wrapped to 0")

	waitFor(t, func() bool {
		spoken := f.speaker.spokenTexts()
		return len(spoken) > 0 && spoken[len(spoken)-1] == testEvents[0].Line()
	}, "wrap did not re-speak the first event")
}

func TestPrevClampsAtFirstEvent(t *testing.T) {
	f := newFixture(100 * time.Millisecond)
	f.loadEvents(testEvents...)

	f.machine.Play()
	waitFor(t, func() bool { return f.machine.Snapshot().EventIndex == 0 }, "playback never started")

	f.machine.Prev()
	time.Sleep(30 * time.Millisecond)
	if got := f.machine.Snapshot().EventIndex; got != 0 {
		t.Errorf("EventIndex = %d, want clamp at 0", got)
	}
}

func TestMuteStopsAudioButKeepsIndex(t *testing.T) {
	f := newFixture(200 * time.Millisecond)
	f.loadEvents(testEvents...)

	f.machine.Play()
	waitFor(t, func() bool { return f.machine.Snapshot().EventIndex == 0 }, "playback never started")

	f.machine.ToggleMute()

	snap := f.machine.Snapshot()
	if !snap.Muted {
		t.Error("Muted = false after ToggleMute")
	}
	if snap.EventIndex != 0 {
		t.Errorf("EventIndex = %d right after mute, want 0", snap.EventIndex)
	}

	f.machine.ToggleMute()
	if f.machine.Snapshot().Muted {
		t.Error("Muted = true after second ToggleMute")
	}
}

func TestMapChoreographyPrecedesNarration(t *testing.T) {
	f := newFixture(0)
	f.loadEvents(testEvents...)

	f.machine.Play()
	time.Sleep(20 * time.Millisecond)
	waitStopped(t, f.machine)

	if got := f.mapAPI.markerCount(); got != 2 {
		t.Errorf("markers = %d, want 2", got)
	}

	f.mapAPI.mu.Lock()
	defer f.mapAPI.mu.Unlock()
	if len(f.mapAPI.focuses) != 2 {
		t.Errorf("focuses = %d, want 2", len(f.mapAPI.focuses))
	}
	if lat := f.mapAPI.focuses[0][0]; lat < 50 || lat > 51 {
		t.Errorf("first focus lat = %v, want ~50.68", lat)
	}
	if len(f.mapAPI.links) != 1 {
		t.Fatalf("links = %d, want 1", len(f.mapAPI.links))
	}
	if f.mapAPI.links[0] != [2]string{"marker-1", "marker-2"} {
		t.Errorf("link = %v, want marker-1 -> marker-2", f.mapAPI.links[0])
	}
	// Waveform toggles on before narration and off after, per event
	if len(f.mapAPI.waveforms) != 4 {
		t.Errorf("waveform toggles = %d, want 4: %v", len(f.mapAPI.waveforms), f.mapAPI.waveforms)
	}
}

func TestPrefetchRunsAhead(t *testing.T) {
	f := newFixture(0)
	f.machine.SetSummary("intro")
	f.loadEvents(testEvents...)

	f.machine.Play()
	time.Sleep(20 * time.Millisecond)
	waitStopped(t, f.machine)

	waitFor(t, func() bool {
		for _, text := range f.speech.prefetchedTexts() {
			if text == testEvents[1].Line() {
				return true
			}
		}
		return false
	}, "next event's line was never prefetched")
}

func TestAppendEventDuringPlaybackIsPickedUp(t *testing.T) {
	f := newFixture(50 * time.Millisecond)
	f.loadEvents(testEvents[0])

	f.machine.Play()
	waitFor(t, func() bool { return len(f.speaker.spokenTexts()) == 1 }, "playback never started")

	// Streamed in while the first event narrates
	f.machine.AppendEvent(testEvents[1])

	waitFor(t, func() bool { return len(f.speaker.spokenTexts()) == 2 }, "appended event never narrated")
	snap := waitStopped(t, f.machine)
	if snap.EventIndex != 1 {
		t.Errorf("EventIndex = %d, want 1", snap.EventIndex)
	}
}

func TestClearTearsEverythingDown(t *testing.T) {
	f := newFixture(100 * time.Millisecond)
	f.machine.SetSummary("intro")
	f.loadEvents(testEvents...)

	f.machine.Play()
	waitFor(t, func() bool { return len(f.speaker.spokenTexts()) >= 1 }, "playback never started")

	f.machine.Clear()

	snap := f.machine.Snapshot()
	if snap.Playing || snap.EventIndex != -1 || snap.Phase != model.PhaseIdle || snap.EventCount != 0 {
		t.Errorf("state after Clear = %+v, want idle", snap)
	}
	if f.machine.Summary() != "" {
		t.Error("summary survived Clear")
	}

	f.mapAPI.mu.Lock()
	defer f.mapAPI.mu.Unlock()
	if f.mapAPI.hardResets != 1 {
		t.Errorf("hard resets = %d, want 1", f.mapAPI.hardResets)
	}
	if f.mapAPI.linkClears == 0 {
		t.Error("links were not cleared")
	}
}

func TestRestartPlaysFromIntro(t *testing.T) {
	f := newFixture(30 * time.Millisecond)
	f.machine.SetSummary("the intro line")
	f.loadEvents(testEvents...)

	f.machine.Play()
	waitFor(t, func() bool { return len(f.speaker.spokenTexts()) >= 2 }, "playback never progressed")

	f.machine.Restart()

	waitFor(t, func() bool {
		spoken := f.speaker.spokenTexts()
		intros := 0
		for _, text := range spoken {
			if text == "the intro line" {
				intros++
			}
		}
		return intros >= 2
	}, "restart never re-spoke the intro")
}

func TestPlayWhilePlayingIsNoOp(t *testing.T) {
	f := newFixture(100 * time.Millisecond)
	f.loadEvents(testEvents...)

	f.machine.Play()
	waitFor(t, func() bool { return len(f.speaker.spokenTexts()) == 1 }, "playback never started")
	f.machine.Play()

	time.Sleep(30 * time.Millisecond)
	if got := len(f.speaker.spokenTexts()); got != 1 {
		t.Errorf("spoken = %d utterances, want 1 (second Play must not double-drive)", got)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Address != "localhost:1848" {
		t.Errorf("unexpected server address: %s", cfg.Server.Address)
	}
	if time.Duration(cfg.Narration.SpeakTimeout) != 30*time.Second {
		t.Errorf("unexpected speak timeout: %v", cfg.Narration.SpeakTimeout)
	}
	if cfg.Narration.PrefetchAhead != 2 {
		t.Errorf("unexpected prefetch ahead: %d", cfg.Narration.PrefetchAhead)
	}
	if cfg.Audio.Volume != 1.0 {
		t.Errorf("unexpected volume: %f", cfg.Audio.Volume)
	}
}

func TestLoad_CreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whatify.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.TTS.ElevenLabs.VoiceID != "narrator_male_deep" {
		t.Errorf("unexpected default voice: %s", cfg.TTS.ElevenLabs.VoiceID)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected config file created: %v", err)
	}
}

func TestLoad_MergesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whatify.yaml")

	content := []byte("narration:\n  speak_timeout: 5s\n  intro_pause: 1s\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if time.Duration(cfg.Narration.SpeakTimeout) != 5*time.Second {
		t.Errorf("expected override, got %v", cfg.Narration.SpeakTimeout)
	}
	// Untouched keys keep defaults
	if time.Duration(cfg.Narration.InterEventPause) != 25*time.Millisecond {
		t.Errorf("expected default inter-event pause, got %v", cfg.Narration.InterEventPause)
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"100ms", 100 * time.Millisecond},
		{"1d", Day},
		{"2w", 2 * Week},
		{"1d12h", Day + 12*time.Hour},
		{"", 0},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.in)
		if err != nil {
			t.Errorf("ParseDuration(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := ParseDuration("xyzw"); err == nil {
		t.Error("expected error for garbage input")
	}
}

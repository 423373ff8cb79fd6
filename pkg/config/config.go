// Package config loads and persists the Whatify application configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Request   RequestConfig   `yaml:"request"`
	DB        DBConfig        `yaml:"db"`
	TTS       TTSConfig       `yaml:"tts"`
	LLM       LLMConfig       `yaml:"llm"`
	Narration NarrationConfig `yaml:"narration"`
	Audio     AudioConfig     `yaml:"audio"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ElevenLabsConfig holds settings for the ElevenLabs TTS service.
type ElevenLabsConfig struct {
	Key     string `yaml:"key"`
	BaseURL string `yaml:"base_url"`
	VoiceID string `yaml:"voice"`
	Model   string `yaml:"model"`
}

// TTSConfig holds Text-To-Speech settings.
type TTSConfig struct {
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
	// Locale steers local-synthesizer voice selection (xx-YY).
	Locale string `yaml:"locale"`
}

// LLMConfig holds settings for the scenario generator.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "gemini" or "remote"
	Model    string `yaml:"model"`
	Key      string `yaml:"key"`
	// BaseURL points the "remote" provider at another Whatify-compatible
	// generation server.
	BaseURL string `yaml:"base_url"`
}

// NarrationConfig is the single timeout/pacing policy for the playback core.
// The values apply uniformly; there are no per-call overrides.
type NarrationConfig struct {
	SpeakTimeout    Duration `yaml:"speak_timeout"`     // hard cap for any one utterance
	SynthTimeout    Duration `yaml:"synth_timeout"`     // local synthesizer cap
	PollInterval    Duration `yaml:"poll_interval"`     // completion poll
	IntroPause      Duration `yaml:"intro_pause"`       // after intro, before events[0]
	InterEventPause Duration `yaml:"inter_event_pause"` // between events
	RestartSettle   Duration `yaml:"restart_settle"`    // after restart teardown, before play
	PrefetchAhead   int      `yaml:"prefetch_ahead"`    // events prefetched past the active one
}

// AudioConfig holds playback output settings.
type AudioConfig struct {
	Volume float64 `yaml:"volume"` // 0.0 to 1.0
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "localhost:1848",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(60 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		DB: DBConfig{
			Path: "./data/whatify.db",
		},
		TTS: TTSConfig{
			ElevenLabs: ElevenLabsConfig{
				BaseURL: "https://api.elevenlabs.io",
				VoiceID: "narrator_male_deep",
				Model:   "eleven_monolingual_v1",
			},
			Locale: "en-US",
		},
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
		},
		Narration: NarrationConfig{
			SpeakTimeout:    Duration(30 * time.Second),
			SynthTimeout:    Duration(8 * time.Second),
			PollInterval:    Duration(100 * time.Millisecond),
			IntroPause:      Duration(500 * time.Millisecond),
			InterEventPause: Duration(25 * time.Millisecond),
			RestartSettle:   Duration(50 * time.Millisecond),
			PrefetchAhead:   2,
		},
		Audio: AudioConfig{
			Volume: 1.0,
		},
	}
}

// Load loads the configuration from the given path. If the file does not
// exist, it is created with default values. Existing files are merged over
// defaults but never written back, to preserve user formatting.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		applyEnvFallbacks(cfg)
		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnvFallbacks(cfg)
	return cfg, nil
}

// applyEnvFallbacks fills empty secrets from the environment. Values already
// present in the file win; nothing is saved back to disk.
func applyEnvFallbacks(cfg *Config) {
	if cfg.LLM.Key == "" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			cfg.LLM.Key = key
		}
	}
	if cfg.TTS.ElevenLabs.Key == "" {
		if key := os.Getenv("ELEVENLABS_API_KEY"); key != "" {
			cfg.TTS.ElevenLabs.Key = key
		}
	}
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Whatify Configuration
# ---------------------
# Duration units: ns, us (or µs), ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

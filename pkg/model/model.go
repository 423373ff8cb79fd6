// Package model defines the shared data types for Whatify scenarios,
// timeline events, and playback state.
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoPoint is a single narrated location. The wire format is a [lat, lon]
// pair, matching the generation stream schema.
type GeoPoint struct {
	Lat float64
	Lon float64
}

// Point returns the orb representation (lon/lat order).
func (g GeoPoint) Point() orb.Point {
	return orb.Point{g.Lon, g.Lat}
}

// MarshalJSON encodes the point as [lat, lon].
func (g GeoPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{g.Lat, g.Lon})
}

// UnmarshalJSON accepts a [lat, lon] array.
func (g *GeoPoint) UnmarshalJSON(data []byte) error {
	var pair []float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("geo point needs 2 coordinates, got %d", len(pair))
	}
	g.Lat = pair[0]
	g.Lon = pair[1]
	return nil
}

// TimelineEvent is one step of an alternate timeline. Immutable once
// received from the stream; ordered by arrival.
type TimelineEvent struct {
	Year        int        `json:"year"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	GeoPoints   []GeoPoint `json:"geoPoints"`
}

// Line composes the spoken form of the event.
func (e TimelineEvent) Line() string {
	return fmt.Sprintf("%d — %s. %s", e.Year, e.Title, e.Description)
}

// Bound returns the bounding box of the event's locations, and false if the
// event carries no coordinates.
func (e TimelineEvent) Bound() (orb.Bound, bool) {
	if len(e.GeoPoints) == 0 {
		return orb.Bound{}, false
	}
	mp := make(orb.MultiPoint, 0, len(e.GeoPoints))
	for _, g := range e.GeoPoints {
		mp = append(mp, g.Point())
	}
	return mp.Bound(), true
}

// Scenario is one complete generation: an intro summary plus an ordered list
// of timeline events, produced from a single user prompt.
type Scenario struct {
	Prompt     string                     `json:"prompt"`
	Summary    string                     `json:"summary"`
	Timeline   []TimelineEvent            `json:"timeline"`
	GeoChanges *geojson.FeatureCollection `json:"geoChanges,omitempty"`
	CreatedAt  time.Time                  `json:"created_at"`
}

// ChunkType identifies a generation stream chunk.
type ChunkType string

const (
	ChunkSummary    ChunkType = "summary"
	ChunkEvent      ChunkType = "event"
	ChunkGeoChanges ChunkType = "geoChanges"
	ChunkDone       ChunkType = "done"
	ChunkError      ChunkType = "error"
)

// StreamChunk is one typed chunk of the streaming generation contract.
type StreamChunk struct {
	Type        ChunkType                  `json:"type"`
	Summary     string                     `json:"summary,omitempty"`
	Year        int                        `json:"year,omitempty"`
	Title       string                     `json:"title,omitempty"`
	Description string                     `json:"description,omitempty"`
	GeoPoints   []GeoPoint                 `json:"geoPoints,omitempty"`
	GeoChanges  *geojson.FeatureCollection `json:"geoChanges,omitempty"`
	Message     string                     `json:"message,omitempty"`
}

// Event converts an event chunk into a TimelineEvent.
func (c StreamChunk) Event() TimelineEvent {
	return TimelineEvent{
		Year:        c.Year,
		Title:       c.Title,
		Description: c.Description,
		GeoPoints:   c.GeoPoints,
	}
}

// Placeholder values the generator emits while it has nothing real yet.
// Chunks carrying them are dropped before dispatch.
const (
	placeholderYear        = 1800
	placeholderTitle       = "Event"
	placeholderDescription = "A significant historical event"
	placeholderSummary     = "Alternative history scenario"
)

// IsPlaceholder reports whether the chunk carries only the generator's
// default values and should not reach the playback state machine.
func (c StreamChunk) IsPlaceholder() bool {
	switch c.Type {
	case ChunkSummary:
		return c.Summary == "" || c.Summary == placeholderSummary
	case ChunkEvent:
		return c.Year == 0 || c.Title == "" || c.Description == "" ||
			(c.Year == placeholderYear && c.Title == placeholderTitle && c.Description == placeholderDescription)
	}
	return false
}

// AudioHandle is an opaque reference to playable narration audio: either
// fetched audio bytes (with their format), or a "use local synthesizer"
// sentinel carrying an estimated speech duration.
type AudioHandle struct {
	URL      string        // source URL (may be a data URI), for UI consumption
	Format   string        // "mp3" or "wav" for fetched audio
	Data     []byte        // encoded audio, empty for synthesized handles
	Synth    bool          // true when the local synthesizer owns playback
	Voice    string        // resolved voice ID
	Duration time.Duration // estimate for synthesized handles
}

// IsZero reports whether the handle references no audio at all.
func (h AudioHandle) IsZero() bool {
	return !h.Synth && len(h.Data) == 0 && h.URL == ""
}

// Phase is the playback progression phase.
type Phase string

const (
	PhaseIdle   Phase = "idle"
	PhaseIntro  Phase = "intro"
	PhaseEvents Phase = "events"
)

// PlaybackSnapshot is the externally observable playback state. External
// actors only read snapshots and post intents.
type PlaybackSnapshot struct {
	Phase      Phase `json:"phase"`
	EventIndex int   `json:"event_index"` // -1 while idle or during the intro
	Playing    bool  `json:"playing"`
	Muted      bool  `json:"muted"`
	EventCount int   `json:"event_count"`
}

package playback

import (
	"time"

	"github.com/paulmach/orb/geojson"

	"whatify/pkg/model"
)

// MapAPI is the rendering contract the machine drives. Calls are
// fire-and-forget: the machine never waits on map animation.
type MapAPI interface {
	// Focus moves the camera. Scale 0 means "renderer's choice".
	Focus(lat, lon, scale float64)
	// Marker places a marker and returns its identifier.
	Marker(lat, lon float64, label string, active bool) string
	// SetActiveMarker highlights one marker; empty ID clears the highlight.
	SetActiveMarker(markerID string)
	// ShowWaveform toggles the marker's speaking indicator.
	ShowWaveform(markerID string, on bool)
	// Link draws an animated connection between two markers.
	Link(fromID, toID string, opts LinkOptions)
	// ClearLinks removes all links.
	ClearLinks()
	// Highlight overlays the scenario's changed borders.
	Highlight(fc *geojson.FeatureCollection)
	// Reset clears map state. A hard reset also drops markers and overlays.
	Reset(hard bool)
}

// LinkOptions tunes the link animation.
type LinkOptions struct {
	Fade     bool
	Dashed   bool
	Duration time.Duration
	Mode     string
}

// Notifier receives playback observations for the UI layer.
type Notifier interface {
	// PlaybackChanged fires on every phase, index, or playing transition.
	PlaybackChanged(snapshot model.PlaybackSnapshot)
	// NowPlaying fires when an event's narration begins.
	NowPlaying(index int, event model.TimelineEvent)
}

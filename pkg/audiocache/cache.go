// Package audiocache stores synthesized audio keyed by utterance text so
// repeated narration never pays the synthesis round trip twice.
package audiocache

import (
	"log/slog"
	"sync"

	"whatify/pkg/model"
	"whatify/pkg/tracker"
)

// Cache maps utterance text to previously synthesized audio.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]model.AudioHandle
	tracker *tracker.Tracker
}

// New creates an empty Cache. The tracker may be nil.
func New(t *tracker.Tracker) *Cache {
	return &Cache{
		entries: make(map[string]model.AudioHandle),
		tracker: t,
	}
}

// Has reports whether audio for the text is cached.
func (c *Cache) Has(text string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[text]
	return ok
}

// Get returns the cached audio for the text, if any. Lookups record
// cache hits and misses.
func (c *Cache) Get(text string) (model.AudioHandle, bool) {
	c.mu.RLock()
	h, ok := c.entries[text]
	c.mu.RUnlock()

	if c.tracker != nil {
		if ok {
			c.tracker.TrackCacheHit("audio")
		} else {
			c.tracker.TrackCacheMiss("audio")
		}
	}
	return h, ok
}

// Set stores audio for the text. Zero handles are ignored so a failed
// synthesis never shadows a later successful one.
func (c *Cache) Set(text string, h model.AudioHandle) {
	if h.IsZero() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[text] = h
}

// Clear drops all entries. Called when a new scenario starts so stale
// narration from the previous timeline cannot play.
func (c *Cache) Clear() {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[string]model.AudioHandle)
	c.mu.Unlock()

	if n > 0 {
		slog.Debug("AudioCache: Cleared", "entries", n)
	}
}

// Len returns the number of cached utterances.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

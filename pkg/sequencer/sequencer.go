// Package sequencer serializes narration. Utterances drain strictly in
// enqueue order, one at a time; Reset abandons the queue and interrupts
// in-flight audio.
package sequencer

import (
	"context"
	"log/slog"
	"sync"
)

// Speaker is the narration backend the sequencer drives.
type Speaker interface {
	// Speak blocks until the utterance settles. It never reports failure.
	Speak(ctx context.Context, text string)
	// Stop interrupts the current utterance.
	Stop()
}

// Request is one unit of narration.
type Request struct {
	Text    string
	OnStart func()
	OnDone  func()
}

// Sequencer drains queued narration single-flight.
type Sequencer struct {
	engine Speaker

	mu       sync.Mutex
	queue    []Request
	speaking bool
	epoch    uint64
}

// New creates an idle sequencer.
func New(engine Speaker) *Sequencer {
	return &Sequencer{engine: engine}
}

// Enqueue appends a request and starts draining if idle.
func (s *Sequencer) Enqueue(req Request) {
	s.mu.Lock()
	s.queue = append(s.queue, req)
	if !s.speaking {
		s.speaking = true
		go s.drain(s.epoch)
	}
	s.mu.Unlock()
}

// Reset empties the queue and interrupts the current utterance. An
// in-flight Speak still settles and fires its OnDone, but its drain loop
// stops there; nothing queued before the reset is ever spoken.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	n := len(s.queue)
	s.queue = nil
	s.epoch++
	s.speaking = false
	s.mu.Unlock()

	s.engine.Stop()

	if n > 0 {
		slog.Debug("Sequencer: Reset dropped queued narration", "dropped", n)
	}
}

// Speaking reports whether an utterance is in flight.
func (s *Sequencer) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Pending returns the number of queued, not yet started requests.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Sequencer) drain(epoch uint64) {
	for {
		s.mu.Lock()
		if s.epoch != epoch {
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			s.speaking = false
			s.mu.Unlock()
			return
		}
		req := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if req.OnStart != nil {
			req.OnStart()
		}
		s.engine.Speak(context.Background(), req.Text)
		if req.OnDone != nil {
			req.OnDone()
		}
	}
}

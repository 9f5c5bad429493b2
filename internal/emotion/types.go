// Package emotion provides ambient vocal emotion monitoring for the Hey Buddy
// voice core.
package emotion

import (
	"sync"
	"time"
)

// DefaultMaxHistory bounds the sample ring buffer.
const DefaultMaxHistory = 10

// Sample is one classification of ambient vocal emotion.
type Sample struct {
	DominantLabel string    `json:"dominant_label"`
	Confidence    float64   `json:"confidence"` // 0-1
	Timestamp     time.Time `json:"timestamp"`
}

// History is a fixed-capacity ring of the most recent samples. The oldest
// sample is evicted on overflow; length never exceeds capacity.
type History struct {
	mu      sync.RWMutex
	samples []Sample
	max     int
}

// NewHistory creates a history with the given capacity (DefaultMaxHistory
// when non-positive).
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultMaxHistory
	}
	return &History{
		samples: make([]Sample, 0, max),
		max:     max,
	}
}

// Add appends a sample, evicting the oldest on overflow.
func (h *History) Add(s Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples = append(h.samples, s)
	if len(h.samples) > h.max {
		h.samples = h.samples[len(h.samples)-h.max:]
	}
}

// Latest returns the most recent sample, if any.
func (h *History) Latest() (Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.samples) == 0 {
		return Sample{}, false
	}
	return h.samples[len(h.samples)-1], true
}

// All returns a copy of the samples, oldest first.
func (h *History) All() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Sample, len(h.samples))
	copy(out, h.samples)
	return out
}

// Len returns the number of retained samples.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples)
}

// Clear removes all samples. Called explicitly by the user or on session
// reset.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = h.samples[:0]
}

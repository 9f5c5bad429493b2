// Package audio provides microphone capture, level monitoring, and the
// loudness gate for the Hey Buddy voice core.
package audio

import (
	"errors"
	"math"
	"time"
)

// Common errors
var (
	ErrDeviceNotFound    = errors.New("audio device not found")
	ErrPermissionDenied  = errors.New("microphone permission denied")
	ErrCaptureNotStarted = errors.New("capture not started")
	ErrCaptureBusy       = errors.New("capture already open")
)

// Chunk is a bounded window of captured mono PCM audio.
type Chunk struct {
	Samples    []float32     `json:"-"`           // mono float32 PCM in [-1, 1]
	SampleRate int           `json:"sample_rate"` // sample rate in Hz
	Duration   time.Duration `json:"duration"`    // duration of this chunk
	Timestamp  time.Time     `json:"timestamp"`   // when capture of this chunk started
	RMS        float64       `json:"rms"`         // root mean square energy
	Peak       float64       `json:"peak"`        // absolute peak amplitude
}

// NewChunk wraps samples and precomputes the energy measures the gate and
// level monitor need.
func NewChunk(samples []float32, sampleRate int, start time.Time) *Chunk {
	c := &Chunk{
		Samples:    samples,
		SampleRate: sampleRate,
		Timestamp:  start,
		RMS:        RMS(samples),
		Peak:       Peak(samples),
	}
	if sampleRate > 0 {
		c.Duration = time.Duration(len(samples)) * time.Second / time.Duration(sampleRate)
	}
	return c
}

// RMS computes root mean square energy of float32 PCM samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Peak returns the largest absolute sample amplitude.
func Peak(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	return peak
}

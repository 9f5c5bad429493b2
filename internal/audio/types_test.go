package audio

import (
	"math"
	"testing"
	"time"
)

func chunkStart() time.Time {
	return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
}

func TestRMS(t *testing.T) {
	if got := RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}

	// Constant amplitude signal: RMS equals the amplitude.
	samples := []float32{0.5, -0.5, 0.5, -0.5}
	if got := RMS(samples); math.Abs(got-0.5) > 1e-6 {
		t.Errorf("RMS = %v, want 0.5", got)
	}
}

func TestPeak(t *testing.T) {
	samples := []float32{0.1, -0.7, 0.3}
	if got := Peak(samples); math.Abs(got-0.7) > 1e-6 {
		t.Errorf("Peak = %v, want 0.7", got)
	}
}

func TestNewChunk_Duration(t *testing.T) {
	samples := make([]float32, 16000)
	c := NewChunk(samples, 16000, chunkStart())

	if c.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", c.Duration)
	}
	if c.Timestamp != chunkStart() {
		t.Errorf("Timestamp = %v, want %v", c.Timestamp, chunkStart())
	}
}

func TestNewChunk_ZeroSampleRate(t *testing.T) {
	c := NewChunk(make([]float32, 100), 0, chunkStart())
	if c.Duration != 0 {
		t.Errorf("Duration = %v, want 0 for zero sample rate", c.Duration)
	}
}

package audio

// Gate is the loudness pre-filter in front of the transcription backend.
// Chunks below both floors are silence and never reach the matcher, saving a
// backend round-trip per empty cycle.
type Gate struct {
	rmsFloor  float64
	peakFloor float64
}

// NewGate creates a gate. Non-positive floors fall back to the defaults tuned
// for 16kHz mono speech.
func NewGate(rmsFloor, peakFloor float64) *Gate {
	if rmsFloor <= 0 {
		rmsFloor = 0.012
	}
	if peakFloor <= 0 {
		peakFloor = 0.05
	}
	return &Gate{rmsFloor: rmsFloor, peakFloor: peakFloor}
}

// Silent reports whether the chunk should be rejected as silence. A chunk is
// silent only when RMS and peak are both under their floors; either measure
// alone clearing its floor counts as possible speech.
func (g *Gate) Silent(c *Chunk) bool {
	if c == nil || len(c.Samples) == 0 {
		return true
	}
	return c.RMS < g.rmsFloor && c.Peak < g.peakFloor
}

package audio

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level bounds. The floor keeps the UI indicator visibly alive; the clamp
// keeps a shouting user from pinning the meter off-scale.
const (
	LevelFloor = 0.05
	LevelCeil  = 1.0
)

// LevelConfig tunes the smoothing filter.
type LevelConfig struct {
	Refresh        time.Duration // tick cadence, default 16ms (~60Hz)
	AttackWeight   float64       // applied when instant level exceeds VoiceThreshold
	DecayWeight    float64       // applied otherwise
	VoiceThreshold float64       // instant level that counts as voice onset
	RMSWeight      float64       // RMS share of the combined instant level
}

// DefaultLevelConfig returns the tuning used in production.
func DefaultLevelConfig() LevelConfig {
	return LevelConfig{
		Refresh:        16 * time.Millisecond,
		AttackWeight:   0.6,
		DecayWeight:    0.9,
		VoiceThreshold: 0.08,
		RMSWeight:      0.7,
	}
}

// LevelMonitor converts raw frames into a smoothed, UI-safe amplitude scalar.
// Speech onsets register fast (attack) while silence fades out slowly (decay)
// so the indicator never snaps or jitters.
type LevelMonitor struct {
	cfg    LevelConfig
	logger zerolog.Logger

	mu        sync.Mutex
	level     float64
	instant   float64
	listening bool

	onLevel func(level float64)
}

// NewLevelMonitor creates a monitor starting at the floor level.
func NewLevelMonitor(cfg LevelConfig, logger zerolog.Logger) *LevelMonitor {
	if cfg.Refresh <= 0 {
		cfg.Refresh = 16 * time.Millisecond
	}
	if cfg.AttackWeight <= 0 || cfg.AttackWeight > 1 {
		cfg.AttackWeight = 0.6
	}
	if cfg.DecayWeight <= 0 || cfg.DecayWeight >= 1 {
		cfg.DecayWeight = 0.9
	}
	if cfg.RMSWeight <= 0 || cfg.RMSWeight > 1 {
		cfg.RMSWeight = 0.7
	}
	return &LevelMonitor{
		cfg:    cfg,
		level:  LevelFloor,
		logger: logger.With().Str("component", "level").Logger(),
	}
}

// OnLevel registers a callback invoked with the smoothed level on every tick.
func (m *LevelMonitor) OnLevel(fn func(level float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLevel = fn
}

// Feed supplies a raw frame. A frame that fails to arrive is simply not fed,
// which the ticker treats as silence.
func (m *LevelMonitor) Feed(frame []float32) {
	instant := m.cfg.RMSWeight*RMS(frame) + (1-m.cfg.RMSWeight)*Peak(frame)

	m.mu.Lock()
	m.instant = instant
	m.mu.Unlock()
}

// SetListening toggles decay-to-floor behavior. While not listening the level
// ignores input and fades toward the floor.
func (m *LevelMonitor) SetListening(listening bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listening = listening
	if !listening {
		m.instant = 0
	}
}

// Level returns the current smoothed level, always within [0.05, 1.0].
func (m *LevelMonitor) Level() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

// Tick advances the filter one refresh step. Exposed for tests; Run drives it
// in production.
func (m *LevelMonitor) Tick() float64 {
	m.mu.Lock()

	instant := m.instant
	if !m.listening {
		instant = 0
	}

	if instant > m.cfg.VoiceThreshold {
		// Fast attack: speech onsets must register immediately.
		m.level = m.level*(1-m.cfg.AttackWeight) + instant*m.cfg.AttackWeight
	} else {
		// Slow decay toward the floor.
		m.level = m.level*m.cfg.DecayWeight + LevelFloor*(1-m.cfg.DecayWeight)
	}

	m.level = clampLevel(m.level)

	// Instant level is consumed per tick; a missing next frame reads as
	// silence rather than a stale value.
	m.instant = 0

	cb := m.onLevel
	level := m.level
	m.mu.Unlock()

	if cb != nil {
		cb(level)
	}
	return level
}

// Run ticks the filter at the configured cadence until ctx is cancelled.
func (m *LevelMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

func clampLevel(v float64) float64 {
	return math.Min(LevelCeil, math.Max(LevelFloor, v))
}

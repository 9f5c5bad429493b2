package emotion

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenhan/heybuddy/internal/audio"
	"github.com/thenhan/heybuddy/internal/bus"
)

// Classifier is the external emotion classification contract.
type Classifier interface {
	Classify(ctx context.Context, chunk *audio.Chunk) (*Sample, error)
}

// Recorder captures one bounded window of ambient audio. Provided by the
// coordinator so the monitor never touches the microphone directly.
type Recorder func(ctx context.Context, dur time.Duration) (*audio.Chunk, error)

// GateFn reports whether the session is paused for speech output. The monitor
// skips cycles while the gate is closed.
type GateFn func() bool

// MonitorConfig configures the monitoring loop.
type MonitorConfig struct {
	SampleDur  time.Duration // capture window per cycle, default 2s
	MaxHistory int           // retained samples, default 10
}

// Monitor periodically samples ambient audio, classifies vocal emotion, and
// maintains a bounded history. Classifier errors are non-fatal: the cycle is
// skipped and the loop continues.
type Monitor struct {
	cfg        MonitorConfig
	classifier Classifier
	record     Recorder
	paused     GateFn
	history    *History
	eventBus   *bus.EventBus
	logger     zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewMonitor creates a monitor. The gate may be nil when no speech output
// exists (tests).
func NewMonitor(cfg MonitorConfig, classifier Classifier, record Recorder, paused GateFn,
	eventBus *bus.EventBus, logger zerolog.Logger) *Monitor {
	if cfg.SampleDur <= 0 {
		cfg.SampleDur = 2 * time.Second
	}
	return &Monitor{
		cfg:        cfg,
		classifier: classifier,
		record:     record,
		paused:     paused,
		history:    NewHistory(cfg.MaxHistory),
		eventBus:   eventBus,
		logger:     logger.With().Str("component", "emotion").Logger(),
	}
}

// History exposes the bounded sample history.
func (m *Monitor) History() *History {
	return m.history
}

// Start launches the monitoring loop. Starting twice is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.loop(loopCtx, m.done)
	m.logger.Info().Dur("sample_dur", m.cfg.SampleDur).Msg("Emotion monitoring started")
}

// Stop halts the loop and waits for the in-flight cycle to finish. Always
// safe to call, even if never started.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.running = false
	m.mu.Unlock()

	cancel()
	<-done
	m.logger.Info().Msg("Emotion monitoring stopped")
}

// Running reports whether the loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m.cycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.SampleDur / 2):
			// Short idle between cycles keeps sampling roughly continuous
			// without starving the wake-word pipeline.
		}
	}
}

// cycle runs one capture/classify round.
func (m *Monitor) cycle(ctx context.Context) {
	if m.paused != nil && m.paused() {
		return
	}

	chunk, err := m.record(ctx, m.cfg.SampleDur)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Debug().Err(err).Msg("Ambient capture unavailable this cycle")
		return
	}

	sample, err := m.classifier.Classify(ctx, chunk)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Warn().Err(err).Msg("Emotion classification unavailable")
		if m.eventBus != nil {
			m.eventBus.Publish(bus.Event{Type: bus.EventTypeEmotionUnavailable})
		}
		return
	}

	m.history.Add(*sample)
	m.logger.Debug().
		Str("label", sample.DominantLabel).
		Float64("confidence", sample.Confidence).
		Msg("Emotion sample recorded")

	if m.eventBus != nil {
		m.eventBus.Publish(bus.Event{
			Type: bus.EventTypeEmotionSample,
			Data: map[string]any{
				"label":      sample.DominantLabel,
				"confidence": sample.Confidence,
			},
		})
	}
}

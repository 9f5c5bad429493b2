package voice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thenhan/heybuddy/internal/audio"
	"github.com/thenhan/heybuddy/internal/bus"
	"github.com/thenhan/heybuddy/internal/stt"
)

// Transcriber converts one audio chunk to text. Satisfied by *stt.Controller.
type Transcriber interface {
	Transcribe(ctx context.Context, chunk *audio.Chunk) (string, error)
}

// WakeEvent is emitted once per wake-phrase detection.
type WakeEvent struct {
	ID             string
	Phrase         string // canonical phrase
	MatchedVariant string
	Transcript     string
	Timestamp      time.Time
}

// SessionConfig holds the tunables of the listening loop.
type SessionConfig struct {
	// CycleDur is the length of one captured chunk. Constrained devices run
	// longer cycles to amortize backend cost.
	CycleDur time.Duration
}

// Session runs the wake-phrase loop: capture a chunk, gate out silence,
// transcribe, match. It owns the microphone while running and releases it
// when paused or stopped.
type Session struct {
	cfg         SessionConfig
	capture     audio.Capture
	gate        *audio.Gate
	transcriber Transcriber
	matcher     *Matcher
	eventBus    *bus.EventBus
	logger      zerolog.Logger
	onWake      func(WakeEvent)

	mu       sync.Mutex
	state    State
	lastErr  error
	lastWake *WakeEvent // most recent detection, kept for audit
	gen      uint64     // bumped on pause/stop; stale loop results are discarded
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSession wires a session. onWake may be nil; detections are always
// published on the bus regardless.
func NewSession(cfg SessionConfig, capture audio.Capture, gate *audio.Gate, transcriber Transcriber,
	matcher *Matcher, eventBus *bus.EventBus, onWake func(WakeEvent), logger zerolog.Logger) *Session {
	if cfg.CycleDur <= 0 {
		cfg.CycleDur = 1500 * time.Millisecond
	}
	return &Session{
		cfg:         cfg,
		capture:     capture,
		gate:        gate,
		transcriber: transcriber,
		matcher:     matcher,
		eventBus:    eventBus,
		logger:      logger.With().Str("component", "session").Logger(),
		onWake:      onWake,
		state:       StateIdle,
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that moved the session into StateError, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastWake returns the most recent wake detection, or nil before the first.
func (s *Session) LastWake() *WakeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWake
}

// Start acquires the microphone and launches the listening loop. Only valid
// from Idle.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.mu.Unlock()

	if err := s.capture.Open(ctx); err != nil {
		s.fail(err)
		return err
	}
	s.launch(ctx)
	s.eventBus.Publish(bus.Event{Type: bus.EventTypeListeningStarted})
	s.logger.Info().Dur("cycle", s.cfg.CycleDur).Msg("Listening for wake phrase")
	return nil
}

// Pause halts the loop and releases the microphone. Idempotent; pausing an
// idle or errored session is a no-op.
func (s *Session) Pause() {
	s.mu.Lock()
	if s.state == StateIdle || s.state == StatePaused || s.state == StateError {
		s.mu.Unlock()
		return
	}
	s.gen++
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.capture.Close()
	s.setState(StatePaused)
	s.eventBus.Publish(bus.Event{Type: bus.EventTypeListeningStopped})
	s.logger.Debug().Msg("Session paused, microphone released")
}

// Resume reacquires the microphone and restarts the loop. Only valid from
// Paused.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StatePaused {
		s.mu.Unlock()
		return errors.New("session not paused")
	}
	s.mu.Unlock()

	if err := s.capture.Open(ctx); err != nil {
		s.fail(err)
		return err
	}
	s.launch(ctx)
	s.eventBus.Publish(bus.Event{Type: bus.EventTypeListeningStarted})
	s.logger.Debug().Msg("Session resumed")
	return nil
}

// Stop halts the loop, releases the microphone and returns the session to
// Idle. Safe to call in any state.
func (s *Session) Stop() {
	s.mu.Lock()
	s.gen++
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	wasRunning := s.state != StateIdle
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.capture.Close()
	if wasRunning {
		s.setState(StateIdle)
		s.eventBus.Publish(bus.Event{Type: bus.EventTypeListeningStopped})
	}
}

func (s *Session) launch(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	gen := s.gen
	done := s.done
	s.mu.Unlock()

	s.setState(StateListening)
	go s.run(loopCtx, gen, done)
}

func (s *Session) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		s.transition(gen, StateCapturing)
		chunk, err := s.capture.Record(ctx, s.cfg.CycleDur)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, audio.ErrPermissionDenied) || errors.Is(err, audio.ErrDeviceNotFound) {
				s.fail(err)
				return
			}
			s.logger.Warn().Err(err).Msg("Capture error, retrying next cycle")
			s.transition(gen, StateListening)
			continue
		}

		if s.gate.Silent(chunk) {
			s.transition(gen, StateListening)
			continue
		}

		s.transition(gen, StateTranscribing)
		text, err := s.transcriber.Transcribe(ctx, chunk)
		if s.stale(gen) || ctx.Err() != nil {
			// Paused or stopped mid-flight; the result is discarded.
			return
		}
		if err != nil {
			if errors.Is(err, stt.ErrTimeout) {
				s.transition(gen, StateListening)
				continue
			}
			s.logger.Warn().Err(err).Msg("Transcription error, continuing")
			s.transition(gen, StateListening)
			continue
		}

		if variant, ok := s.matcher.Match(text); ok {
			s.transition(gen, StateWakeDetected)
			ev := WakeEvent{
				ID:             uuid.NewString(),
				Phrase:         s.matcher.Phrase(),
				MatchedVariant: variant,
				Transcript:     text,
				Timestamp:      time.Now(),
			}
			s.mu.Lock()
			s.lastWake = &ev
			s.mu.Unlock()
			s.logger.Info().Str("variant", variant).Str("transcript", text).Msg("Wake phrase detected")
			s.eventBus.Publish(bus.Event{
				Type: bus.EventTypeWakeWordDetected,
				Data: map[string]any{
					"id":         ev.ID,
					"variant":    ev.MatchedVariant,
					"transcript": ev.Transcript,
					"timestamp":  ev.Timestamp,
				},
			})
			// A detection ends the cycle: capture stops and the session
			// parks in Paused until the wake handler's speech path (or the
			// owner) resumes it.
			s.selfPause(gen)
			if s.onWake != nil {
				go s.onWake(ev)
			}
			return
		}

		s.transition(gen, StateListening)
	}
}

// transition moves the state only while the loop generation is current, so a
// cancelled loop cannot clobber Paused or Error set by the owner.
func (s *Session) transition(gen uint64, to State) {
	s.mu.Lock()
	if s.gen != gen || !ValidTransition(s.state, to) {
		s.mu.Unlock()
		return
	}
	from := s.state
	s.state = to
	s.mu.Unlock()

	if from != to {
		s.publishStateChange(from, to)
	}
}

func (s *Session) setState(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()

	if from != to {
		s.publishStateChange(from, to)
	}
}

func (s *Session) publishStateChange(from, to State) {
	s.eventBus.Publish(bus.Event{
		Type: bus.EventTypeSessionStateChanged,
		Data: map[string]any{"from": string(from), "to": string(to)},
	})
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.gen++
	s.lastErr = err
	from := s.state
	s.state = StateError
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	s.capture.Close()
	s.logger.Error().Err(err).Msg("Session entered error state")
	if from != StateError {
		s.publishStateChange(from, StateError)
	}
	s.eventBus.Publish(bus.Event{
		Type: bus.EventTypeSessionError,
		Data: map[string]any{"error": err.Error()},
	})
}

// selfPause is Pause invoked from the loop goroutine itself, which cannot
// wait on its own done channel.
func (s *Session) selfPause(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		// Owner already paused or stopped concurrently; leave its state be.
		s.mu.Unlock()
		return
	}
	s.gen++
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	s.capture.Close()
	s.setState(StatePaused)
	s.eventBus.Publish(bus.Event{Type: bus.EventTypeListeningStopped})
	s.logger.Debug().Msg("Session paused after wake detection")
}

func (s *Session) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != gen
}

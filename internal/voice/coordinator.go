package voice

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenhan/heybuddy/internal/audio"
	"github.com/thenhan/heybuddy/internal/bus"
	"github.com/thenhan/heybuddy/internal/tts"
)

// DefaultSettleDelay is the pause between speech output ending and the
// microphone reopening, long enough for playback tails to decay so the
// companion does not transcribe itself.
const DefaultSettleDelay = 300 * time.Millisecond

// Speaker synthesizes text to audio. Satisfied by the tts providers.
type Speaker interface {
	Synthesize(ctx context.Context, text string) (*tts.Audio, error)
}

// Playback plays synthesized audio to completion.
type Playback interface {
	Play(a *tts.Audio) error
	Stop()
}

// Coordinator enforces mutual exclusion between the microphone and speech
// output: while the companion speaks, the session is paused and the mic is
// released; listening resumes only after a settle delay.
type Coordinator struct {
	session     *Session
	capture     audio.Capture
	speaker     Speaker
	player      Playback
	eventBus    *bus.EventBus
	settleDelay time.Duration
	logger      zerolog.Logger

	mu       sync.Mutex
	speaking bool
}

// NewCoordinator wires the coordinator over a session and the speech output
// chain. speaker and player may be nil when the host has no audio output; in
// that case Speak degrades to pause/resume without playback.
func NewCoordinator(session *Session, capture audio.Capture, speaker Speaker, player Playback,
	eventBus *bus.EventBus, settleDelay time.Duration, logger zerolog.Logger) *Coordinator {
	if settleDelay <= 0 {
		settleDelay = DefaultSettleDelay
	}
	return &Coordinator{
		session:     session,
		capture:     capture,
		speaker:     speaker,
		player:      player,
		eventBus:    eventBus,
		settleDelay: settleDelay,
		logger:      logger.With().Str("component", "coordinator").Logger(),
	}
}

// PauseForSpeech releases the microphone ahead of speech output. Idempotent;
// a second call while already speaking changes nothing.
func (c *Coordinator) PauseForSpeech() {
	c.mu.Lock()
	if c.speaking {
		c.mu.Unlock()
		return
	}
	c.speaking = true
	c.mu.Unlock()

	c.session.Pause()
	c.eventBus.Publish(bus.Event{Type: bus.EventTypeSpeakingStarted})
}

// ResumeAfterSpeech waits out the settle delay and reacquires the microphone.
// A no-op unless PauseForSpeech ran first, so the two always pair.
func (c *Coordinator) ResumeAfterSpeech(ctx context.Context) {
	c.mu.Lock()
	if !c.speaking {
		c.mu.Unlock()
		return
	}
	c.speaking = false
	c.mu.Unlock()

	c.eventBus.Publish(bus.Event{Type: bus.EventTypeSpeakingStopped})

	select {
	case <-time.After(c.settleDelay):
	case <-ctx.Done():
		return
	}

	if err := c.session.Resume(ctx); err != nil {
		c.logger.Error().Err(err).Msg("Failed to resume listening after speech")
	}
}

// Speaking reports whether speech output currently holds the floor.
func (c *Coordinator) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Speak synthesizes and plays text under the mutual-exclusion protocol.
// Listening resumes whether or not synthesis or playback succeed.
func (c *Coordinator) Speak(ctx context.Context, text string) error {
	c.PauseForSpeech()
	defer c.ResumeAfterSpeech(ctx)

	if c.speaker == nil || c.player == nil {
		c.logger.Debug().Str("text", text).Msg("No speech output configured, skipping playback")
		return nil
	}

	a, err := c.speaker.Synthesize(ctx, text)
	if err != nil {
		c.logger.Error().Err(err).Msg("Speech synthesis failed")
		return err
	}
	if err := c.player.Play(a); err != nil {
		c.logger.Error().Err(err).Msg("Playback failed")
		return err
	}
	return nil
}

// MicrophoneIdle reports whether the ambient emotion recorder may sample the
// microphone right now. Sampling is blocked while speech output holds the
// floor or when the session is not actively listening.
func (c *Coordinator) MicrophoneIdle() bool {
	if c.Speaking() {
		return false
	}
	switch c.session.State() {
	case StatePaused, StateError, StateIdle:
		return false
	}
	return true
}

// RecordAmbient captures one short chunk for emotion analysis. It shares the
// session's capture stream; the stream serializes concurrent reads.
func (c *Coordinator) RecordAmbient(ctx context.Context, dur time.Duration) (*audio.Chunk, error) {
	return c.capture.Record(ctx, dur)
}

// Package tts provides speech synthesis for the Hey Buddy voice core.
package tts

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrProviderUnavailable = errors.New("TTS provider unavailable")
	ErrTextTooLong         = errors.New("text exceeds maximum length")
	ErrTimeout             = errors.New("synthesis timeout")
)

// MaxTextLen bounds a single synthesis request.
const MaxTextLen = 4096

// Synthesizer converts text to playable audio. The coordinator is the only
// caller: it pauses listening before Speak and resumes unconditionally after.
type Synthesizer interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, text string) (*Audio, error)

	// Health checks if the provider is reachable.
	Health(ctx context.Context) error
}

// Audio is a synthesized utterance.
type Audio struct {
	Data           []byte        `json:"-"`
	Format         string        `json:"format"` // wav or mp3
	SampleRate     int           `json:"sample_rate"`
	ProcessingTime time.Duration `json:"processing_time"`
	Provider       string        `json:"provider"`
}

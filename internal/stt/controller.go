package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenhan/heybuddy/internal/audio"
	"github.com/thenhan/heybuddy/internal/device"
)

// DefaultTranscribeTimeout bounds a single transcription call. On expiry the
// chunk is dropped, not retried: losing one utterance beats blocking the
// session.
const DefaultTranscribeTimeout = 4 * time.Second

// Controller owns exactly one active transcription backend and switches
// Primary -> Fallback on initialization failure. The mode never upgrades
// mid-session.
type Controller struct {
	primary  Backend
	fallback Backend
	timeout  time.Duration
	logger   zerolog.Logger

	mu          sync.Mutex
	mode        Mode
	active      Backend
	initialized bool
}

// NewController creates a controller over the two pipelines. Either backend
// may be nil when the host cannot support it; SelectInitial and Initialize
// handle the degenerate cases.
func NewController(primary, fallback Backend, timeout time.Duration, logger zerolog.Logger) *Controller {
	if timeout <= 0 {
		timeout = DefaultTranscribeTimeout
	}
	return &Controller{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		logger:   logger.With().Str("component", "stt").Logger(),
	}
}

// SelectInitial picks the starting mode from the device profile. Primary
// requires both a numeric runtime and standard memory; anything less gets the
// fallback pipeline.
func SelectInitial(profile device.Profile) Mode {
	if profile.HasNumericRuntime && profile.MemoryClass == device.MemoryStandard {
		return ModePrimary
	}
	return ModeFallback
}

// Initialize loads the backend for the given mode. A primary failure
// (including an out-of-memory signal) automatically retries once with the
// fallback; a fallback failure is fatal since no further retry target exists.
func (c *Controller) Initialize(ctx context.Context, mode Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if mode == ModePrimary {
		if c.primary == nil {
			c.logger.Warn().Msg("Primary backend unavailable, starting in fallback mode")
			mode = ModeFallback
		} else if err := c.primary.Initialize(ctx); err != nil {
			if errors.Is(err, ErrOutOfMemory) {
				c.logger.Warn().Err(err).Msg("Primary backend out of memory, retrying with fallback")
			} else {
				c.logger.Warn().Err(err).Msg("Primary backend failed to load, retrying with fallback")
			}
			mode = ModeFallback
		} else {
			c.mode = ModePrimary
			c.active = c.primary
			c.initialized = true
			c.logger.Info().Str("backend", c.primary.Name()).Msg("Transcription backend ready")
			return nil
		}
	}

	if c.fallback == nil {
		return fmt.Errorf("%w: no fallback backend available", ErrInitialization)
	}
	if err := c.fallback.Initialize(ctx); err != nil {
		return fmt.Errorf("%w: fallback: %v", ErrInitialization, err)
	}

	c.mode = ModeFallback
	c.active = c.fallback
	c.initialized = true
	c.logger.Info().Str("backend", c.fallback.Name()).Msg("Transcription backend ready")
	return nil
}

// Mode returns the currently active mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Transcribe submits one chunk to the active backend, bounded by the
// configured timeout. Timeout drops the chunk and returns ErrTimeout; any
// other runtime error is logged and reported as silence so the caller just
// proceeds to the next listening cycle.
func (c *Controller) Transcribe(ctx context.Context, chunk *audio.Chunk) (string, error) {
	c.mu.Lock()
	backend := c.active
	initialized := c.initialized
	c.mu.Unlock()

	if !initialized || backend == nil {
		return "", ErrNotInitialized
	}

	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := backend.Transcribe(tctx, chunk)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			c.logger.Warn().
				Str("backend", backend.Name()).
				Dur("timeout", c.timeout).
				Msg("Transcription timed out, chunk dropped")
			return "", ErrTimeout
		}
		if ctx.Err() != nil {
			// Caller cancelled mid-flight; the result is discarded upstream.
			return "", ctx.Err()
		}
		// Runtime errors are silence: log and continue the cycle.
		c.logger.Warn().Err(err).Str("backend", backend.Name()).Msg("Transcription error, treating as silence")
		return "", nil
	}

	return res.Text, nil
}

// Close releases whichever backends were created.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, b := range []Backend{c.primary, c.fallback} {
		if b == nil {
			continue
		}
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.initialized = false
	c.active = nil
	return firstErr
}

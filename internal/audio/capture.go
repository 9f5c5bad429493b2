package audio

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

// Capture is the microphone resource. Exactly one capture stream may be open
// system-wide; the coordinator serializes Open/Close.
type Capture interface {
	// Open acquires the microphone. Opening an already-open capture fails
	// with ErrCaptureBusy.
	Open(ctx context.Context) error

	// Record reads one bounded chunk of audio. Returns early (with the
	// samples read so far) when ctx is cancelled.
	Record(ctx context.Context, dur time.Duration) (*Chunk, error)

	// Close releases the microphone. Safe to call when not open.
	Close() error

	// Active reports whether the microphone is currently open.
	Active() bool
}

// MicCapture captures from the default input device via portaudio.
type MicCapture struct {
	sampleRate int
	frameSize  int
	logger     zerolog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []float32

	// recMu serializes Record calls; the wake loop and the ambient emotion
	// recorder share one stream and must not interleave frames.
	recMu sync.Mutex

	onFrame func(frame []float32)
}

// NewMicCapture creates a portaudio-backed capture. portaudio.Initialize must
// have been called by the process (see cmd/heybuddy).
func NewMicCapture(sampleRate, frameSize int, logger zerolog.Logger) *MicCapture {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if frameSize <= 0 {
		frameSize = 320 // 20ms at 16kHz
	}
	return &MicCapture{
		sampleRate: sampleRate,
		frameSize:  frameSize,
		logger:     logger.With().Str("component", "capture").Logger(),
	}
}

// OnFrame registers a tap invoked for every frame read while recording. Used
// by the level monitor; must not block.
func (c *MicCapture) OnFrame(fn func(frame []float32)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = fn
}

// Open acquires the default input stream.
func (c *MicCapture) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return ErrCaptureBusy
	}

	buf := make([]float32, c.frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(c.sampleRate), len(buf), buf)
	if err != nil {
		return classifyPortAudioErr(err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return classifyPortAudioErr(err)
	}

	c.stream = stream
	c.buf = buf
	c.logger.Debug().Int("sample_rate", c.sampleRate).Int("frame_size", c.frameSize).Msg("Microphone opened")
	return nil
}

// Record reads frames until dur audio has been gathered or ctx is done.
func (c *MicCapture) Record(ctx context.Context, dur time.Duration) (*Chunk, error) {
	c.recMu.Lock()
	defer c.recMu.Unlock()

	c.mu.Lock()
	stream := c.stream
	buf := c.buf
	tap := c.onFrame
	c.mu.Unlock()

	if stream == nil {
		return nil, ErrCaptureNotStarted
	}

	start := time.Now()
	want := int(dur.Seconds() * float64(c.sampleRate))
	out := make([]float32, 0, want)

	for len(out) < want {
		select {
		case <-ctx.Done():
			return NewChunk(out, c.sampleRate, start), ctx.Err()
		default:
		}

		if err := stream.Read(); err != nil {
			return nil, classifyPortAudioErr(err)
		}

		frame := make([]float32, len(buf))
		copy(frame, buf)
		out = append(out, frame...)
		if tap != nil {
			tap(frame)
		}
	}

	return NewChunk(out, c.sampleRate, start), nil
}

// Close releases the stream.
func (c *MicCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return nil
	}
	c.stream.Stop()
	err := c.stream.Close()
	c.stream = nil
	c.buf = nil
	c.logger.Debug().Msg("Microphone closed")
	return err
}

// Active reports whether the stream is open.
func (c *MicCapture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// classifyPortAudioErr maps host errors onto the package sentinels so callers
// can distinguish permission denial (user-facing, never auto-retried) from
// ordinary device loss.
func classifyPortAudioErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission") || strings.Contains(msg, "denied"):
		return ErrPermissionDenied
	case strings.Contains(msg, "no device") || strings.Contains(msg, "invalid device"):
		return ErrDeviceNotFound
	default:
		return err
	}
}

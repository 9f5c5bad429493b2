package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog"

	"github.com/thenhan/heybuddy/internal/audio"
)

// WhisperConfig configures the on-device primary backend.
type WhisperConfig struct {
	ModelPath  string `json:"model_path"`
	Language   string `json:"language"`
	NumThreads int    `json:"num_threads"`
}

// WhisperBackend runs whisper.cpp locally. This is the primary pipeline on
// standard-memory devices with the model present.
type WhisperBackend struct {
	cfg    WhisperConfig
	logger zerolog.Logger

	mu    sync.Mutex
	model whisper.Model
}

// NewWhisperBackend creates the backend without loading the model; loading
// happens in Initialize so the controller can react to failure.
func NewWhisperBackend(cfg WhisperConfig, logger zerolog.Logger) *WhisperBackend {
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.NumThreads <= 0 {
		cfg.NumThreads = runtime.NumCPU()
	}
	return &WhisperBackend{
		cfg:    cfg,
		logger: logger.With().Str("backend", "whisper").Logger(),
	}
}

// Name returns the backend identifier.
func (b *WhisperBackend) Name() string { return "whisper" }

// Initialize loads the model file. Allocation failures surface as
// ErrOutOfMemory so the controller can downgrade to the fallback pipeline.
func (b *WhisperBackend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.model != nil {
		return nil
	}
	if b.cfg.ModelPath == "" {
		return fmt.Errorf("%w: no model path configured", ErrInitialization)
	}

	start := time.Now()
	model, err := whisper.New(b.cfg.ModelPath)
	if err != nil {
		if isOutOfMemory(err) {
			return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
		}
		return fmt.Errorf("%w: load model: %v", ErrInitialization, err)
	}

	b.model = model
	b.logger.Info().
		Str("model", b.cfg.ModelPath).
		Dur("load_time", time.Since(start)).
		Msg("Whisper model loaded")
	return nil
}

// Transcribe runs the model over one chunk of 16kHz mono float32 PCM.
func (b *WhisperBackend) Transcribe(ctx context.Context, chunk *audio.Chunk) (*Result, error) {
	b.mu.Lock()
	model := b.model
	b.mu.Unlock()

	if model == nil {
		return nil, ErrNotInitialized
	}
	if chunk == nil || len(chunk.Samples) == 0 {
		return &Result{Backend: b.Name()}, nil
	}

	start := time.Now()

	wctx, err := model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	if err := wctx.SetLanguage(b.cfg.Language); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}
	wctx.SetThreads(uint(b.cfg.NumThreads))

	if err := wctx.Process(chunk.Samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}

	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("next segment: %w", err)
		}
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(strings.TrimSpace(seg.Text))
	}

	return &Result{
		Text:           sb.String(),
		ProcessingTime: time.Since(start),
		Backend:        b.Name(),
	}, nil
}

// Close releases the model.
func (b *WhisperBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.model == nil {
		return nil
	}
	err := b.model.Close()
	b.model = nil
	return err
}

// isOutOfMemory recognizes allocation failures from the native runtime.
func isOutOfMemory(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrOutOfMemory) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "out of memory") ||
		strings.Contains(msg, "failed to allocate") ||
		strings.Contains(msg, "alloc")
}

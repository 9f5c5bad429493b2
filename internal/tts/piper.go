package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// PiperConfig configures the local Piper synthesizer.
type PiperConfig struct {
	BinaryPath string `json:"binary_path"` // piper executable, searched if empty
	ModelsDir  string `json:"models_dir"`  // directory holding .onnx voices
	Voice      string `json:"voice"`       // voice model name, e.g. en_US-amy-medium
}

// DefaultPiperConfig returns sensible defaults.
func DefaultPiperConfig() PiperConfig {
	home, _ := os.UserHomeDir()
	return PiperConfig{
		ModelsDir: filepath.Join(home, ".heybuddy", "piper-voices"),
		Voice:     "en_US-amy-medium",
	}
}

// PiperProvider synthesizes speech fully offline via the piper binary. It is
// the speech output of choice on devices that should keep working without a
// network, pairing with the on-device transcription pipeline.
type PiperProvider struct {
	cfg    PiperConfig
	binary string
	logger zerolog.Logger
}

// NewPiperProvider creates the provider, locating the piper binary if no
// explicit path is configured.
func NewPiperProvider(cfg PiperConfig, logger zerolog.Logger) *PiperProvider {
	if cfg.ModelsDir == "" || cfg.Voice == "" {
		def := DefaultPiperConfig()
		if cfg.ModelsDir == "" {
			cfg.ModelsDir = def.ModelsDir
		}
		if cfg.Voice == "" {
			cfg.Voice = def.Voice
		}
	}

	binary := cfg.BinaryPath
	if binary == "" {
		if found, err := exec.LookPath("piper"); err == nil {
			binary = found
		}
	}

	return &PiperProvider{
		cfg:    cfg,
		binary: binary,
		logger: logger.With().Str("provider", "piper-tts").Logger(),
	}
}

// Name returns the provider identifier.
func (p *PiperProvider) Name() string { return "piper" }

// Health reports whether the binary and the configured voice model exist.
func (p *PiperProvider) Health(_ context.Context) error {
	if p.binary == "" {
		return fmt.Errorf("%w: piper binary not found", ErrProviderUnavailable)
	}
	if _, err := os.Stat(p.binary); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if _, err := os.Stat(p.modelPath()); err != nil {
		return fmt.Errorf("%w: voice model missing: %v", ErrProviderUnavailable, err)
	}
	return nil
}

// piperMaxTextLen caps a single run; piper degrades on very long input.
const piperMaxTextLen = 500

// Synthesize renders text to WAV through the piper process.
func (p *PiperProvider) Synthesize(ctx context.Context, text string) (*Audio, error) {
	if err := p.Health(ctx); err != nil {
		return nil, err
	}

	text = sanitizeForPiper(text)
	if text == "" {
		return nil, fmt.Errorf("empty text after sanitization")
	}
	if len(text) > piperMaxTextLen {
		text = text[:piperMaxTextLen] + "..."
	}

	tmp, err := os.CreateTemp("", "heybuddy-piper-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	start := time.Now()
	cmd := exec.CommandContext(ctx, p.binary, "--model", p.modelPath(), "-f", tmpPath)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		p.logger.Error().Err(err).Str("stderr", stderr.String()).Msg("Piper synthesis failed")
		return nil, fmt.Errorf("piper: %w", err)
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("read synthesized audio: %w", err)
	}

	elapsed := time.Since(start)
	p.logger.Debug().
		Str("voice", p.cfg.Voice).
		Int("bytes", len(data)).
		Dur("elapsed", elapsed).
		Msg("Synthesized speech offline")

	return &Audio{
		Data:           data,
		Format:         "wav",
		SampleRate:     22050, // piper default output rate
		ProcessingTime: elapsed,
		Provider:       p.Name(),
	}, nil
}

func (p *PiperProvider) modelPath() string {
	return filepath.Join(p.cfg.ModelsDir, p.cfg.Voice+".onnx")
}

var (
	piperCodeBlock  = regexp.MustCompile("(?s)```[^`]*```")
	piperBold       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	piperItalic     = regexp.MustCompile(`\*([^*]+)\*`)
	piperInlineCode = regexp.MustCompile("`[^`]+`")
	piperLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	piperBullets    = regexp.MustCompile(`(?m)^[\s]*(?:[-*•]|\d+\.)\s*`)
	piperWhitespace = regexp.MustCompile(`\s+`)
)

// sanitizeForPiper strips markdown and control characters that make piper
// stumble; generated greetings occasionally carry formatting.
func sanitizeForPiper(text string) string {
	text = piperCodeBlock.ReplaceAllString(text, "")
	text = piperBold.ReplaceAllString(text, "$1")
	text = piperItalic.ReplaceAllString(text, "$1")
	text = piperInlineCode.ReplaceAllString(text, "")
	text = piperLink.ReplaceAllString(text, "$1")
	text = piperBullets.ReplaceAllString(text, "")
	text = piperWhitespace.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, `"`, "'")
	text = strings.ReplaceAll(text, `\`, "")
	return strings.TrimSpace(text)
}

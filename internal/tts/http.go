package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPConfig configures the HTTP synthesis provider.
type HTTPConfig struct {
	ServerURL string        `json:"server_url"` // OpenAI-style /v1/audio/speech server
	Model     string        `json:"model"`
	Voice     string        `json:"voice"`
	Speed     float64       `json:"speed"`
	Timeout   time.Duration `json:"timeout"`
}

// DefaultHTTPConfig returns sensible defaults.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		ServerURL: "http://localhost:8000",
		Model:     "tts-1",
		Voice:     "nova",
		Speed:     1.0,
		Timeout:   30 * time.Second,
	}
}

// HTTPProvider synthesizes speech via an OpenAI-compatible speech endpoint.
type HTTPProvider struct {
	cfg    HTTPConfig
	client *http.Client
	logger zerolog.Logger
}

// NewHTTPProvider creates the provider.
func NewHTTPProvider(cfg HTTPConfig, logger zerolog.Logger) *HTTPProvider {
	if cfg.ServerURL == "" {
		cfg = DefaultHTTPConfig()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("provider", "http-tts").Logger(),
	}
}

// Name returns the provider identifier.
func (p *HTTPProvider) Name() string { return "http" }

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize posts text to the speech endpoint and returns the WAV audio.
func (p *HTTPProvider) Synthesize(ctx context.Context, text string) (*Audio, error) {
	if len(text) > MaxTextLen {
		return nil, ErrTextTooLong
	}

	start := time.Now()

	body, err := json.Marshal(speechRequest{
		Model:          p.cfg.Model,
		Input:          text,
		Voice:          p.cfg.Voice,
		ResponseFormat: "wav",
		Speed:          p.cfg.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.ServerURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, resp.StatusCode, msg)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}

	p.logger.Debug().
		Int("bytes", len(audio)).
		Dur("elapsed", time.Since(start)).
		Msg("Synthesis complete")

	return &Audio{
		Data:           audio,
		Format:         "wav",
		ProcessingTime: time.Since(start),
		Provider:       p.Name(),
	}, nil
}

// Health pings the server.
func (p *HTTPProvider) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.ServerURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	return nil
}

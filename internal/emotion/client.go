package emotion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"

	"github.com/thenhan/heybuddy/internal/audio"
)

// ErrClassifierUnavailable indicates the classifier could not be reached or
// failed; callers treat it as a recoverable "unavailable" state.
var ErrClassifierUnavailable = errors.New("emotion classifier unavailable")

// ClientConfig configures the classifier client.
type ClientConfig struct {
	ServerURL string        `json:"server_url"`
	Timeout   time.Duration `json:"timeout"`
}

// Client submits audio chunks to the companion backend's emotion classifier.
type Client struct {
	cfg    ClientConfig
	client *http.Client
	logger zerolog.Logger
}

// NewClient creates a classifier client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("component", "emotion-client").Logger(),
	}
}

// classifyResponse mirrors the backend's analyze-audio payload.
type classifyResponse struct {
	Success bool `json:"success"`
	Data    struct {
		DominantEmotion string  `json:"dominant_emotion"`
		Confidence      float64 `json:"confidence"`
	} `json:"data"`
}

// Classify uploads the chunk as WAV and returns the dominant emotion.
func (c *Client) Classify(ctx context.Context, chunk *audio.Chunk) (*Sample, error) {
	if chunk == nil || len(chunk.Samples) == 0 {
		return nil, fmt.Errorf("%w: empty chunk", ErrClassifierUnavailable)
	}

	wavData, err := encodeWAV(chunk)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrClassifierUnavailable, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio_file", "chunk.wav")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	mw.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.ServerURL+"/api/v1/emotion/analyze-audio", &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%w: status %d: %s", ErrClassifierUnavailable, resp.StatusCode, msg)
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrClassifierUnavailable, err)
	}
	if !parsed.Success || parsed.Data.DominantEmotion == "" {
		return nil, fmt.Errorf("%w: no classification in response", ErrClassifierUnavailable)
	}

	return &Sample{
		DominantLabel: parsed.Data.DominantEmotion,
		Confidence:    clamp01(parsed.Data.Confidence),
		Timestamp:     time.Now(),
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// encodeWAV packs float32 PCM into a 16-bit mono WAV container.
func encodeWAV(chunk *audio.Chunk) ([]byte, error) {
	ws := &memWriteSeeker{}
	enc := wav.NewEncoder(ws, chunk.SampleRate, 16, 1, 1)

	data := make([]int, len(chunk.Samples))
	for i, s := range chunk.Samples {
		v := s
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(v * 32767)
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: chunk.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// memWriteSeeker satisfies the WAV encoder's io.WriteSeeker over memory.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if need := m.pos + len(p); need > len(m.buf) {
		grown := make([]byte, need)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var target int
	switch whence {
	case io.SeekStart:
		target = int(offset)
	case io.SeekCurrent:
		target = m.pos + int(offset)
	case io.SeekEnd:
		target = len(m.buf) + int(offset)
	default:
		return 0, errors.New("invalid whence")
	}
	if target < 0 {
		return 0, errors.New("negative seek position")
	}
	m.pos = target
	return int64(target), nil
}

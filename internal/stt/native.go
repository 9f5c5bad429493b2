package stt

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/thenhan/heybuddy/internal/audio"
)

// NativeConfig configures the streaming recognition fallback backend.
type NativeConfig struct {
	Endpoint       string        `json:"endpoint"` // wss:// listen endpoint
	APIKey         string        `json:"api_key"`
	APIKeyEnv      string        `json:"api_key_env"`
	Model          string        `json:"model"`
	Language       string        `json:"language"`
	SampleRate     int           `json:"sample_rate"`
	InterimResults bool          `json:"interim_results"`
	DialTimeout    time.Duration `json:"dial_timeout"`
}

// DefaultNativeConfig returns sensible defaults.
func DefaultNativeConfig() NativeConfig {
	return NativeConfig{
		Endpoint:    "wss://api.deepgram.com/v1/listen",
		APIKeyEnv:   "DEEPGRAM_API_KEY",
		Model:       "nova-2",
		Language:    "en-US",
		SampleRate:  16000,
		DialTimeout: 10 * time.Second,
	}
}

// NativeBackend is the fallback pipeline: platform-native continuous
// recognition over a streaming websocket. It exposes the streaming callback
// contract (partial/final/error) and adapts it to the chunked Backend
// interface the controller drives.
type NativeBackend struct {
	cfg    NativeConfig
	logger zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	onPartial func(text string)
	onError   func(err error)

	finalCh chan *Result
	readErr chan error
	done    chan struct{}
}

// NewNativeBackend creates the backend; connection happens in Initialize.
func NewNativeBackend(cfg NativeConfig, logger zerolog.Logger) *NativeBackend {
	if cfg.Endpoint == "" {
		cfg = DefaultNativeConfig()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.APIKey == "" && cfg.APIKeyEnv != "" {
		cfg.APIKey = os.Getenv(cfg.APIKeyEnv)
	}
	return &NativeBackend{
		cfg:    cfg,
		logger: logger.With().Str("backend", "native").Logger(),
	}
}

// Name returns the backend identifier.
func (b *NativeBackend) Name() string { return "native" }

// OnPartial registers the partial-result callback.
func (b *NativeBackend) OnPartial(fn func(text string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPartial = fn
}

// OnError registers the stream-error callback.
func (b *NativeBackend) OnError(fn func(err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Initialize dials the recognition endpoint and starts the read loop. Failure
// here is fatal for the session: there is no further fallback target.
func (b *NativeBackend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		return nil
	}
	if b.cfg.APIKey == "" {
		return fmt.Errorf("%w: no recognition API key configured", ErrInitialization)
	}

	u, err := url.Parse(b.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("%w: bad endpoint: %v", ErrInitialization, err)
	}
	q := u.Query()
	q.Set("model", b.cfg.Model)
	q.Set("language", b.cfg.Language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", fmt.Sprintf("%d", b.cfg.SampleRate))
	q.Set("channels", "1")
	q.Set("interim_results", fmt.Sprintf("%t", b.cfg.InterimResults))
	u.RawQuery = q.Encode()

	header := http.Header{"Authorization": []string{"Token " + b.cfg.APIKey}}
	dialer := websocket.Dialer{HandshakeTimeout: b.cfg.DialTimeout}

	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("%w: dial recognition endpoint: %v", ErrInitialization, err)
	}

	b.conn = conn
	b.finalCh = make(chan *Result, 4)
	b.readErr = make(chan error, 1)
	b.done = make(chan struct{})
	go b.readLoop(conn, b.finalCh, b.readErr, b.done)

	b.logger.Info().Str("endpoint", u.Host).Str("model", b.cfg.Model).Msg("Native recognition connected")
	return nil
}

// recognitionMessage is the wire format of streaming results.
type recognitionMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (b *NativeBackend) readLoop(conn *websocket.Conn, finalCh chan *Result, readErr chan error, done chan struct{}) {
	for {
		var msg recognitionMessage
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case readErr <- err:
			default:
			}
			b.mu.Lock()
			onError := b.onError
			b.mu.Unlock()
			if onError != nil {
				onError(err)
			}
			return
		}

		select {
		case <-done:
			return
		default:
		}

		if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
			continue
		}
		alt := msg.Channel.Alternatives[0]

		if !msg.IsFinal {
			b.mu.Lock()
			onPartial := b.onPartial
			b.mu.Unlock()
			if onPartial != nil && alt.Transcript != "" {
				onPartial(alt.Transcript)
			}
			continue
		}

		res := &Result{
			Text:       alt.Transcript,
			Confidence: alt.Confidence,
			Backend:    b.Name(),
		}
		select {
		case finalCh <- res:
		case <-done:
			return
		}
	}
}

// Transcribe streams one chunk and waits for the final result or ctx expiry.
func (b *NativeBackend) Transcribe(ctx context.Context, chunk *audio.Chunk) (*Result, error) {
	b.mu.Lock()
	conn := b.conn
	finalCh := b.finalCh
	readErr := b.readErr
	b.mu.Unlock()

	if conn == nil {
		return nil, ErrNotInitialized
	}
	if chunk == nil || len(chunk.Samples) == 0 {
		return &Result{Backend: b.Name()}, nil
	}

	start := time.Now()

	// Drain any stale final from a cancelled previous cycle.
	for {
		select {
		case <-finalCh:
			continue
		default:
		}
		break
	}

	pcm := floatToLinear16(chunk.Samples)
	if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// Force an immediate final result for this chunk.
	if err := conn.WriteJSON(map[string]string{"type": "Finalize"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	select {
	case res := <-finalCh:
		res.ProcessingTime = time.Since(start)
		return res, nil
	case err := <-readErr:
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tears down the stream.
func (b *NativeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil
	}
	close(b.done)
	b.conn.WriteJSON(map[string]string{"type": "CloseStream"})
	err := b.conn.Close()
	b.conn = nil
	return err
}

// floatToLinear16 converts float32 PCM to little-endian 16-bit PCM.
func floatToLinear16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(math.Max(-1, math.Min(1, float64(s))) * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

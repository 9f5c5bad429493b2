package emotion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thenhan/heybuddy/internal/audio"
)

func testChunk() *audio.Chunk {
	samples := make([]float32, 3200)
	for i := range samples {
		samples[i] = 0.25
	}
	return audio.NewChunk(samples, 16000, time.Now())
}

func TestClient_Classify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/emotion/analyze-audio", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("audio_file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "chunk.wav", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"dominant_emotion":"happy","confidence":0.87}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{ServerURL: srv.URL}, testLogger())
	sample, err := c.Classify(context.Background(), testChunk())

	require.NoError(t, err)
	assert.Equal(t, "happy", sample.DominantLabel)
	assert.InDelta(t, 0.87, sample.Confidence, 1e-9)
	assert.False(t, sample.Timestamp.IsZero())
}

func TestClient_ClassifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{ServerURL: srv.URL}, testLogger())
	_, err := c.Classify(context.Background(), testChunk())

	assert.True(t, errors.Is(err, ErrClassifierUnavailable), "got %v", err)
}

func TestClient_ClassifyUnreachable(t *testing.T) {
	c := NewClient(ClientConfig{
		ServerURL: "http://127.0.0.1:1",
		Timeout:   200 * time.Millisecond,
	}, testLogger())

	_, err := c.Classify(context.Background(), testChunk())
	assert.True(t, errors.Is(err, ErrClassifierUnavailable), "got %v", err)
}

func TestClient_ClassifyEmptyChunk(t *testing.T) {
	c := NewClient(ClientConfig{ServerURL: "http://localhost"}, testLogger())
	_, err := c.Classify(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrClassifierUnavailable), "got %v", err)
}

func TestClient_ConfidenceClamped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"dominant_emotion":"surprised","confidence":1.7}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{ServerURL: srv.URL}, testLogger())
	sample, err := c.Classify(context.Background(), testChunk())

	require.NoError(t, err)
	assert.Equal(t, 1.0, sample.Confidence)
}

func TestEncodeWAV(t *testing.T) {
	data, err := encodeWAV(testChunk())
	require.NoError(t, err)
	require.Greater(t, len(data), 44, "WAV should have header plus payload")
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))
}

// Package stt provides transcription backends and the fallback controller for
// the Hey Buddy voice core.
package stt

import (
	"context"
	"errors"
	"time"

	"github.com/thenhan/heybuddy/internal/audio"
)

// Common errors
var (
	ErrInitialization = errors.New("backend initialization failed")
	ErrOutOfMemory    = errors.New("backend out of memory")
	ErrTimeout        = errors.New("transcription timeout")
	ErrNotInitialized = errors.New("backend not initialized")
	ErrUnavailable    = errors.New("backend unavailable")
)

// Mode identifies which transcription pipeline is active.
type Mode string

const (
	// ModePrimary is the on-device inference pipeline.
	ModePrimary Mode = "primary"
	// ModeFallback is the platform-native continuous recognition pipeline.
	ModeFallback Mode = "fallback"
)

// Backend is a transcription pipeline. Implementations: the on-device whisper
// backend (primary) and the native streaming recognition backend (fallback).
type Backend interface {
	// Name returns the backend identifier.
	Name() string

	// Initialize loads the backend. A primary backend may fail with
	// ErrOutOfMemory on constrained hosts.
	Initialize(ctx context.Context) error

	// Transcribe converts one captured chunk to text.
	Transcribe(ctx context.Context, chunk *audio.Chunk) (*Result, error)

	// Close releases backend resources. Safe to call when not initialized.
	Close() error
}

// Result is a transcription result.
type Result struct {
	Text           string        `json:"text"`
	Confidence     float64       `json:"confidence"`
	ProcessingTime time.Duration `json:"processing_time"`
	Backend        string        `json:"backend"`
}

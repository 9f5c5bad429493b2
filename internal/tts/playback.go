package tts

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/rs/zerolog"
)

// Player plays synthesized audio on the default output device.
type Player struct {
	logger zerolog.Logger

	mu          sync.Mutex
	initialized bool
	sampleRate  beep.SampleRate
}

// NewPlayer creates an uninitialized player; the speaker device is acquired
// lazily on first play so a missing output device does not block startup.
func NewPlayer(logger zerolog.Logger) *Player {
	return &Player{
		logger: logger.With().Str("component", "playback").Logger(),
	}
}

type nopReadCloser struct{ io.Reader }

func (nopReadCloser) Close() error { return nil }

// Play decodes and plays the audio, blocking until playback completes. The
// coordinator relies on this blocking behavior to know when speech output has
// settled.
func (p *Player) Play(a *Audio) error {
	if a == nil || len(a.Data) == 0 {
		return nil
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch a.Format {
	case "mp3":
		streamer, format, err = mp3.Decode(nopReadCloser{bytes.NewReader(a.Data)})
	default:
		streamer, format, err = wav.Decode(bytes.NewReader(a.Data))
	}
	if err != nil {
		return fmt.Errorf("decode %s audio: %w", a.Format, err)
	}
	defer streamer.Close()

	if err := p.ensureSpeaker(format.SampleRate); err != nil {
		return err
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(p.resampled(streamer, format), beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}

// Stop halts any in-progress playback.
func (p *Player) Stop() {
	p.mu.Lock()
	initialized := p.initialized
	p.mu.Unlock()
	if initialized {
		speaker.Clear()
	}
}

func (p *Player) ensureSpeaker(rate beep.SampleRate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}
	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	p.initialized = true
	p.sampleRate = rate
	p.logger.Debug().Int("sample_rate", int(rate)).Msg("Speaker initialized")
	return nil
}

// resampled matches the stream to the speaker rate chosen at init time.
func (p *Player) resampled(s beep.Streamer, format beep.Format) beep.Streamer {
	p.mu.Lock()
	rate := p.sampleRate
	p.mu.Unlock()

	if format.SampleRate == rate {
		return s
	}
	return beep.Resample(4, format.SampleRate, rate, s)
}

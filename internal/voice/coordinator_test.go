package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenhan/heybuddy/internal/bus"
	"github.com/thenhan/heybuddy/internal/tts"
)

type fakeSpeaker struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSpeaker) Synthesize(_ context.Context, text string) (*tts.Audio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &tts.Audio{Data: []byte(text), Format: "wav"}, nil
}

type fakePlayer struct {
	mu     sync.Mutex
	played []*tts.Audio
	err    error
}

func (f *fakePlayer) Play(a *tts.Audio) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.played = append(f.played, a)
	return nil
}

func (f *fakePlayer) Stop() {}

func newTestCoordinator(t *testing.T, capture *fakeCapture, speaker Speaker, player Playback) (*Coordinator, *Session) {
	t.Helper()
	session := newTestSession(capture, &fakeTranscriber{}, nil)
	coord := NewCoordinator(session, capture, speaker, player,
		bus.NewEventBus(), 10*time.Millisecond, zerolog.Nop())
	return coord, session
}

func TestCoordinatorPauseResumePairing(t *testing.T) {
	capture := &fakeCapture{}
	coord, session := newTestCoordinator(t, capture, nil, nil)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	coord.PauseForSpeech()
	if capture.Active() {
		t.Error("microphone should be released during speech")
	}
	if !coord.Speaking() {
		t.Error("Speaking() should report true after PauseForSpeech")
	}

	coord.ResumeAfterSpeech(context.Background())
	if !capture.Active() {
		t.Error("microphone should be reacquired after resume")
	}
	if coord.Speaking() {
		t.Error("Speaking() should report false after resume")
	}
	if got := session.State(); got != StateListening && got != StateCapturing && got != StateTranscribing {
		t.Errorf("session state = %s, want a running state", got)
	}
}

func TestCoordinatorResumeWithoutPauseIsNoop(t *testing.T) {
	capture := &fakeCapture{}
	coord, session := newTestCoordinator(t, capture, nil, nil)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	coord.ResumeAfterSpeech(context.Background())

	capture.mu.Lock()
	opens := capture.opens
	capture.mu.Unlock()
	if opens != 1 {
		t.Errorf("opens = %d, unpaired resume must not reopen the microphone", opens)
	}
}

func TestCoordinatorPauseIdempotent(t *testing.T) {
	capture := &fakeCapture{}
	coord, session := newTestCoordinator(t, capture, nil, nil)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	coord.PauseForSpeech()
	coord.PauseForSpeech()
	coord.ResumeAfterSpeech(context.Background())

	capture.mu.Lock()
	opens, closes := capture.opens, capture.closes
	capture.mu.Unlock()
	if opens != 2 || closes != 1 {
		t.Errorf("opens=%d closes=%d, want 2/1 for pause-pause-resume", opens, closes)
	}
}

func TestCoordinatorSpeakPlaysAndResumes(t *testing.T) {
	capture := &fakeCapture{}
	speaker := &fakeSpeaker{}
	player := &fakePlayer{}
	coord, session := newTestCoordinator(t, capture, speaker, player)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	if err := coord.Speak(context.Background(), "hello there"); err != nil {
		t.Fatalf("Speak: %v", err)
	}

	player.mu.Lock()
	played := len(player.played)
	player.mu.Unlock()
	if played != 1 {
		t.Fatalf("played %d clips, want 1", played)
	}
	if !capture.Active() {
		t.Error("listening should resume after Speak")
	}
}

func TestCoordinatorSpeakResumesOnSynthesisError(t *testing.T) {
	capture := &fakeCapture{}
	speaker := &fakeSpeaker{err: errors.New("tts down")}
	coord, session := newTestCoordinator(t, capture, speaker, &fakePlayer{})

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	if err := coord.Speak(context.Background(), "hello"); err == nil {
		t.Error("Speak should surface the synthesis error")
	}
	if !capture.Active() {
		t.Error("listening must resume even when synthesis fails")
	}
	if coord.Speaking() {
		t.Error("Speaking() must clear even when synthesis fails")
	}
}

func TestCoordinatorMicrophoneIdle(t *testing.T) {
	capture := &fakeCapture{}
	coord, session := newTestCoordinator(t, capture, nil, nil)

	if coord.MicrophoneIdle() {
		t.Error("idle session should not allow ambient sampling")
	}

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	if !coord.MicrophoneIdle() {
		t.Error("running session should allow ambient sampling")
	}

	coord.PauseForSpeech()
	if coord.MicrophoneIdle() {
		t.Error("ambient sampling must be blocked while speaking")
	}
	coord.ResumeAfterSpeech(context.Background())
}

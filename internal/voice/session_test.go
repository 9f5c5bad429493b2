package voice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenhan/heybuddy/internal/audio"
	"github.com/thenhan/heybuddy/internal/bus"
)

// fakeCapture serves scripted chunks and tracks the open/close pairing the
// coordinator relies on.
type fakeCapture struct {
	mu        sync.Mutex
	open      bool
	openErr   error
	opens     int
	closes    int
	chunks    []*audio.Chunk
	recordErr error
}

func loudChunk() *audio.Chunk {
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = 0.5
	}
	return audio.NewChunk(samples, 16000, time.Now())
}

func silentChunk() *audio.Chunk {
	return audio.NewChunk(make([]float32, 1600), 16000, time.Now())
}

func (f *fakeCapture) Open(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	if f.open {
		return audio.ErrCaptureBusy
	}
	f.open = true
	f.opens++
	return nil
}

func (f *fakeCapture) Record(ctx context.Context, _ time.Duration) (*audio.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return nil, audio.ErrCaptureNotStarted
	}
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	if len(f.chunks) == 0 {
		// Script exhausted; behave like ongoing silence without spinning.
		f.mu.Unlock()
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Millisecond):
		}
		f.mu.Lock()
		return silentChunk(), ctx.Err()
	}
	c := f.chunks[0]
	f.chunks = f.chunks[1:]
	return c, nil
}

func (f *fakeCapture) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		f.open = false
		f.closes++
	}
	return nil
}

func (f *fakeCapture) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

type fakeTranscriber struct {
	mu    sync.Mutex
	texts []string
	calls int
	err   error
	delay time.Duration
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, _ *audio.Chunk) (string, error) {
	f.mu.Lock()
	f.calls++
	text := ""
	if len(f.texts) > 0 {
		text = f.texts[0]
		f.texts = f.texts[1:]
	}
	err := f.err
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestSession(capture *fakeCapture, tr Transcriber, onWake func(WakeEvent)) *Session {
	matcher := NewMatcher("hey buddy", []string{"hey buddy", "hey bud"})
	gate := audio.NewGate(0.012, 0.05)
	return NewSession(SessionConfig{CycleDur: 10 * time.Millisecond},
		capture, gate, tr, matcher, bus.NewEventBus(), onWake, zerolog.Nop())
}

func waitCond(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSessionDetectsWakePhraseInSentence(t *testing.T) {
	capture := &fakeCapture{chunks: []*audio.Chunk{loudChunk()}}
	tr := &fakeTranscriber{texts: []string{"hi there, hey buddy, can you help"}}

	var mu sync.Mutex
	var events []WakeEvent
	session := newTestSession(capture, tr, func(ev WakeEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	waitCond(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1
	})

	mu.Lock()
	ev := events[0]
	mu.Unlock()
	if ev.MatchedVariant != "hey buddy" {
		t.Errorf("MatchedVariant = %q, want %q", ev.MatchedVariant, "hey buddy")
	}
	if ev.Transcript != "hi there, hey buddy, can you help" {
		t.Errorf("Transcript = %q", ev.Transcript)
	}
	if ev.ID == "" {
		t.Error("WakeEvent.ID should be set")
	}

	// A detection parks the session and releases the microphone until the
	// speech path resumes it.
	waitCond(t, func() bool { return session.State() == StatePaused })
	if capture.Active() {
		t.Error("microphone should be released after wake detection")
	}
	if last := session.LastWake(); last == nil || last.ID != ev.ID {
		t.Error("LastWake should retain the detection")
	}
}

func TestSessionWakeFiresOncePerCycle(t *testing.T) {
	// Both chunks would match, but the first detection pauses the session so
	// the second chunk is never captured.
	capture := &fakeCapture{chunks: []*audio.Chunk{loudChunk(), loudChunk()}}
	tr := &fakeTranscriber{texts: []string{"hey buddy", "hey buddy again"}}

	var mu sync.Mutex
	wakes := 0
	session := newTestSession(capture, tr, func(WakeEvent) {
		mu.Lock()
		wakes++
		mu.Unlock()
	})

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	waitCond(t, func() bool { return session.State() == StatePaused })
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	got := wakes
	mu.Unlock()
	if got != 1 {
		t.Errorf("wake fired %d times, want 1", got)
	}
	if n := tr.callCount(); n != 1 {
		t.Errorf("transcriber called %d times after detection, want 1", n)
	}
}

func TestSessionSilenceSkipsTranscription(t *testing.T) {
	capture := &fakeCapture{chunks: []*audio.Chunk{silentChunk(), silentChunk(), silentChunk()}}
	tr := &fakeTranscriber{}
	session := newTestSession(capture, tr, nil)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	time.Sleep(100 * time.Millisecond)
	if n := tr.callCount(); n != 0 {
		t.Errorf("transcriber called %d times for silent chunks, want 0", n)
	}
}

func TestSessionPauseReleasesMicrophone(t *testing.T) {
	capture := &fakeCapture{}
	session := newTestSession(capture, &fakeTranscriber{}, nil)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	if !capture.Active() {
		t.Fatal("microphone should be open while listening")
	}

	session.Pause()
	if capture.Active() {
		t.Error("microphone should be released when paused")
	}
	if got := session.State(); got != StatePaused {
		t.Errorf("state = %s, want %s", got, StatePaused)
	}

	if err := session.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !capture.Active() {
		t.Error("microphone should be reopened after resume")
	}
}

func TestSessionPauseIdempotent(t *testing.T) {
	capture := &fakeCapture{}
	session := newTestSession(capture, &fakeTranscriber{}, nil)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	session.Pause()
	session.Pause()
	session.Pause()

	capture.mu.Lock()
	opens, closes := capture.opens, capture.closes
	capture.mu.Unlock()
	if opens != 1 || closes != 1 {
		t.Errorf("opens=%d closes=%d, want 1/1 after repeated Pause", opens, closes)
	}
}

func TestSessionDoubleStartFails(t *testing.T) {
	capture := &fakeCapture{}
	session := newTestSession(capture, &fakeTranscriber{}, nil)

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	if err := session.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
}

func TestSessionPermissionDeniedEntersErrorState(t *testing.T) {
	capture := &fakeCapture{openErr: audio.ErrPermissionDenied}
	session := newTestSession(capture, &fakeTranscriber{}, nil)

	if err := session.Start(context.Background()); err == nil {
		t.Fatal("Start should surface permission denial")
	}
	if got := session.State(); got != StateError {
		t.Errorf("state = %s, want %s", got, StateError)
	}
	if session.Err() == nil {
		t.Error("Err() should report the cause")
	}
}

func TestSessionStaleResultDiscardedAfterPause(t *testing.T) {
	capture := &fakeCapture{chunks: []*audio.Chunk{loudChunk()}}
	tr := &fakeTranscriber{texts: []string{"hey buddy"}, delay: 200 * time.Millisecond}

	wakeCh := make(chan WakeEvent, 1)
	session := newTestSession(capture, tr, func(ev WakeEvent) { wakeCh <- ev })

	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer session.Stop()

	// Pause lands while the transcription is in flight; the result must be
	// dropped, not turned into a wake event.
	waitCond(t, func() bool { return tr.callCount() == 1 })
	session.Pause()

	select {
	case <-wakeCh:
		t.Error("wake event fired from a result that arrived after pause")
	case <-time.After(300 * time.Millisecond):
	}
}

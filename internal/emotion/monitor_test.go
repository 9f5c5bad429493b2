package emotion

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenhan/heybuddy/internal/audio"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type fakeClassifier struct {
	label string
	err   error
	calls atomic.Int32
}

func (f *fakeClassifier) Classify(ctx context.Context, chunk *audio.Chunk) (*Sample, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &Sample{DominantLabel: f.label, Confidence: 0.9, Timestamp: time.Now()}, nil
}

func fakeRecorder() Recorder {
	return func(ctx context.Context, dur time.Duration) (*audio.Chunk, error) {
		samples := make([]float32, 100)
		for i := range samples {
			samples[i] = 0.2
		}
		return audio.NewChunk(samples, 16000, time.Now()), nil
	}
}

func TestHistory_BoundedAtCapacity(t *testing.T) {
	h := NewHistory(10)

	for i := 0; i < 50; i++ {
		h.Add(Sample{DominantLabel: "calm", Timestamp: time.Now()})
		if h.Len() > 10 {
			t.Fatalf("history length %d exceeds capacity after %d adds", h.Len(), i+1)
		}
	}
	if h.Len() != 10 {
		t.Errorf("expected 10 retained samples, got %d", h.Len())
	}
}

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(3)

	for _, label := range []string{"sad", "calm", "happy", "angry"} {
		h.Add(Sample{DominantLabel: label})
	}

	all := h.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(all))
	}
	if all[0].DominantLabel != "calm" {
		t.Errorf("oldest retained = %q, want calm", all[0].DominantLabel)
	}
	if all[2].DominantLabel != "angry" {
		t.Errorf("newest = %q, want angry", all[2].DominantLabel)
	}
}

func TestHistory_LatestAndClear(t *testing.T) {
	h := NewHistory(10)

	if _, ok := h.Latest(); ok {
		t.Error("empty history should have no latest sample")
	}

	h.Add(Sample{DominantLabel: "happy"})
	latest, ok := h.Latest()
	if !ok || latest.DominantLabel != "happy" {
		t.Errorf("Latest = %+v, ok=%v", latest, ok)
	}

	h.Clear()
	if h.Len() != 0 {
		t.Errorf("expected empty history after Clear, got %d", h.Len())
	}
}

func TestMonitor_AppendsOnSuccess(t *testing.T) {
	cls := &fakeClassifier{label: "happy"}
	m := NewMonitor(MonitorConfig{SampleDur: 10 * time.Millisecond}, cls, fakeRecorder(), nil, nil, testLogger())

	m.Start(context.Background())
	defer m.Stop()

	deadline := time.After(2 * time.Second)
	for m.History().Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("no sample recorded within deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}

	latest, _ := m.History().Latest()
	if latest.DominantLabel != "happy" {
		t.Errorf("latest label = %q, want happy", latest.DominantLabel)
	}
}

func TestMonitor_ClassifierErrorSkipsHistory(t *testing.T) {
	cls := &fakeClassifier{err: errors.New("model not loaded")}
	m := NewMonitor(MonitorConfig{SampleDur: 10 * time.Millisecond}, cls, fakeRecorder(), nil, nil, testLogger())

	m.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for cls.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("classifier not retried within deadline")
		case <-time.After(5 * time.Millisecond):
		}
	}
	m.Stop()

	// Loop kept cycling despite errors, with no history updates.
	if m.History().Len() != 0 {
		t.Errorf("expected empty history on classifier errors, got %d", m.History().Len())
	}
}

func TestMonitor_GateSkipsCycles(t *testing.T) {
	cls := &fakeClassifier{label: "calm"}
	paused := func() bool { return true }
	m := NewMonitor(MonitorConfig{SampleDur: 5 * time.Millisecond}, cls, fakeRecorder(), paused, nil, testLogger())

	m.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	m.Stop()

	if cls.calls.Load() != 0 {
		t.Errorf("classifier called %d times while gated, want 0", cls.calls.Load())
	}
}

func TestMonitor_StopWithoutStart(t *testing.T) {
	m := NewMonitor(MonitorConfig{}, &fakeClassifier{}, fakeRecorder(), nil, nil, testLogger())
	m.Stop() // must not panic or block
	m.Stop()
}

func TestMonitor_StartTwice(t *testing.T) {
	m := NewMonitor(MonitorConfig{SampleDur: 10 * time.Millisecond}, &fakeClassifier{label: "calm"}, fakeRecorder(), nil, nil, testLogger())

	m.Start(context.Background())
	m.Start(context.Background()) // no-op
	if !m.Running() {
		t.Error("monitor should be running")
	}
	m.Stop()
	if m.Running() {
		t.Error("monitor should be stopped")
	}
}

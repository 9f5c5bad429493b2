package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Wake.Phrase != "hey buddy" {
		t.Errorf("wake phrase = %q, want %q", cfg.Wake.Phrase, "hey buddy")
	}
	if len(cfg.Wake.Variants) == 0 {
		t.Fatal("wake variants must not be empty")
	}
	if cfg.Wake.Variants[0] != cfg.Wake.Phrase {
		t.Errorf("canonical phrase %q should be the first variant, got %q",
			cfg.Wake.Phrase, cfg.Wake.Variants[0])
	}
	if cfg.STT.TranscribeTimeout != 4*time.Second {
		t.Errorf("transcribe timeout = %v, want 4s", cfg.STT.TranscribeTimeout)
	}
	if cfg.Audio.SettleDelay != 300*time.Millisecond {
		t.Errorf("settle delay = %v, want 300ms", cfg.Audio.SettleDelay)
	}
	if cfg.Emotion.MaxHistory != 10 {
		t.Errorf("emotion max history = %d, want 10", cfg.Emotion.MaxHistory)
	}
	if cfg.Wake.CycleDurConstrained <= cfg.Wake.CycleDur {
		t.Error("constrained cycle must be longer than the standard cycle")
	}
	if cfg.Engage.CheckInterval < 5*time.Minute || cfg.Engage.CheckInterval > 30*time.Minute {
		t.Errorf("engage interval %v outside [5m, 30m]", cfg.Engage.CheckInterval)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
user:
  id: test-user
wake:
  phrase: hey buddy
  cycle_duration: 2s
stt:
  transcribe_timeout: 6s
engage:
  enabled: false
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.User.ID != "test-user" {
		t.Errorf("user id = %q, want test-user", cfg.User.ID)
	}
	if cfg.Wake.CycleDur != 2*time.Second {
		t.Errorf("cycle duration = %v, want 2s", cfg.Wake.CycleDur)
	}
	if cfg.STT.TranscribeTimeout != 6*time.Second {
		t.Errorf("transcribe timeout = %v, want 6s", cfg.STT.TranscribeTimeout)
	}
	if cfg.Engage.Enabled {
		t.Error("engage should be disabled by the file")
	}

	// Unset keys keep their defaults.
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want default 16000", cfg.Audio.SampleRate)
	}
}

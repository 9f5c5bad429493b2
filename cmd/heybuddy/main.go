// Command heybuddy runs the always-on voice core: it listens for the wake
// phrase, replies with a spoken greeting, samples ambient emotion, and checks
// in proactively.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gordonklaus/portaudio"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/thenhan/heybuddy/internal/audio"
	"github.com/thenhan/heybuddy/internal/bus"
	"github.com/thenhan/heybuddy/internal/config"
	"github.com/thenhan/heybuddy/internal/device"
	"github.com/thenhan/heybuddy/internal/emotion"
	"github.com/thenhan/heybuddy/internal/engage"
	"github.com/thenhan/heybuddy/internal/llm"
	"github.com/thenhan/heybuddy/internal/logging"
	"github.com/thenhan/heybuddy/internal/stt"
	"github.com/thenhan/heybuddy/internal/tts"
	"github.com/thenhan/heybuddy/internal/voice"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "heybuddy:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = pflag.String("config", "", "path to config file (default ~/.heybuddy/config.yaml)")
		logLevel   = pflag.String("log-level", "info", "log level (debug, info, warn, error)")
		noConsole  = pflag.Bool("no-console-log", false, "disable console log output")
	)
	pflag.Parse()

	// Local .env is optional; API keys can come from the environment proper.
	_ = godotenv.Load()

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(*logLevel)
	logCfg.Console = !*noConsole
	log, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Close()
	mainLog := log.Component("main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		mainLog.Warn().Err(err).Msg("Config load failed, using defaults")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("init audio host: %w", err)
	}
	defer portaudio.Terminate()

	eventBus := bus.NewEventBus()

	// Device profile decides the transcription pipeline and cycle cadence.
	profile := device.NewDetector(cfg.STT.ModelPath, cfg.STT.FallbackAPIKeyEnv, log.Zerolog()).Detect()

	var primary stt.Backend
	if cfg.STT.ModelPath != "" {
		primary = stt.NewWhisperBackend(stt.WhisperConfig{
			ModelPath:  cfg.STT.ModelPath,
			Language:   cfg.STT.Language,
			NumThreads: cfg.STT.NumThreads,
		}, log.Zerolog())
	}
	var fallback stt.Backend
	if profile.HasNativeRecognition {
		fallback = stt.NewNativeBackend(stt.NativeConfig{
			Endpoint:       cfg.STT.FallbackURL,
			APIKeyEnv:      cfg.STT.FallbackAPIKeyEnv,
			Model:          cfg.STT.FallbackModel,
			Language:       cfg.STT.Language,
			SampleRate:     cfg.Audio.SampleRate,
			InterimResults: cfg.STT.InterimResults,
		}, log.Zerolog())
	}

	controller := stt.NewController(primary, fallback, cfg.STT.TranscribeTimeout, log.Zerolog())
	defer controller.Close()

	mode := stt.SelectInitial(profile)
	if err := controller.Initialize(ctx, mode); err != nil {
		return fmt.Errorf("no transcription backend available: %w", err)
	}
	eventBus.Publish(bus.Event{
		Type: bus.EventTypeModeChanged,
		Data: map[string]any{"mode": string(controller.Mode())},
	})

	capture := audio.NewMicCapture(cfg.Audio.SampleRate, cfg.Audio.FrameSize, log.Zerolog())

	level := audio.NewLevelMonitor(audio.LevelConfig{Refresh: cfg.Audio.LevelRefresh}, log.Zerolog())
	capture.OnFrame(level.Feed)
	level.OnLevel(func(v float64) {
		eventBus.Publish(bus.Event{Type: bus.EventTypeAudioLevel, Data: map[string]any{"level": v}})
	})
	go level.Run(ctx)
	eventBus.SubscribeMultiple([]bus.EventType{bus.EventTypeListeningStarted, bus.EventTypeListeningStopped},
		func(ev bus.Event) {
			level.SetListening(ev.Type == bus.EventTypeListeningStarted)
		})

	var synth tts.Synthesizer
	if cfg.TTS.Provider == "piper" {
		synth = tts.NewPiperProvider(tts.PiperConfig{
			BinaryPath: cfg.TTS.PiperBinary,
			ModelsDir:  cfg.TTS.PiperModels,
			Voice:      cfg.TTS.PiperVoice,
		}, log.Zerolog())
	} else {
		synth = tts.NewHTTPProvider(tts.HTTPConfig{
			ServerURL: cfg.TTS.ServerURL,
			Model:     cfg.TTS.Model,
			Voice:     cfg.TTS.Voice,
			Speed:     cfg.TTS.Speed,
			Timeout:   cfg.TTS.Timeout,
		}, log.Zerolog())
	}
	player := tts.NewPlayer(log.Zerolog())

	generator := llm.NewClient(llm.Config{
		BaseURL:   cfg.LLM.BaseURL,
		APIKeyEnv: cfg.LLM.APIKeyEnv,
		Model:     cfg.LLM.Model,
		Timeout:   cfg.LLM.Timeout,
	}, log.Zerolog())
	// The emotion monitor is wired after the coordinator below; the mood
	// source reads through this variable once it exists.
	var monitor *emotion.Monitor
	mood := func() string {
		if monitor == nil {
			return ""
		}
		if sample, ok := monitor.History().Latest(); ok {
			return sample.DominantLabel
		}
		return ""
	}
	greeter := voice.NewGreeter(generator, cfg.User.ID, mood, log.Zerolog())

	cycle := cfg.Wake.CycleDur
	if profile.MemoryClass == device.MemoryConstrained {
		cycle = cfg.Wake.CycleDurConstrained
	}

	// coord is captured by the wake handler before it exists; the session
	// only starts after the coordinator is wired below.
	var coord *voice.Coordinator
	onWake := func(ev voice.WakeEvent) {
		greeting := greeter.Greet(ctx)
		eventBus.Publish(bus.Event{
			Type: bus.EventTypeGreetingReady,
			Data: map[string]any{
				"text":        greeting.Text,
				"source":      string(greeting.Source),
				"time_of_day": greeting.TimeOfDay,
				"mood":        greeting.Mood,
				"wake_id":     ev.ID,
			},
		})
		if err := coord.Speak(ctx, greeting.Text); err != nil {
			mainLog.Warn().Err(err).Msg("Greeting playback failed")
		}
	}

	session := voice.NewSession(voice.SessionConfig{CycleDur: cycle},
		capture,
		audio.NewGate(cfg.Audio.SilenceRMS, cfg.Audio.SilencePeak),
		controller,
		voice.NewMatcher(cfg.Wake.Phrase, cfg.Wake.Variants),
		eventBus, onWake, log.Zerolog())
	coord = voice.NewCoordinator(session, capture, synth, player, eventBus, cfg.Audio.SettleDelay, log.Zerolog())

	monitor = emotion.NewMonitor(emotion.MonitorConfig{
		SampleDur:  cfg.Emotion.SampleDur,
		MaxHistory: cfg.Emotion.MaxHistory,
	},
		emotion.NewClient(emotion.ClientConfig{ServerURL: cfg.Emotion.ServerURL, Timeout: cfg.Emotion.Timeout}, log.Zerolog()),
		coord.RecordAmbient,
		func() bool { return !coord.MicrophoneIdle() },
		eventBus, log.Zerolog())

	scheduler := engage.NewScheduler(
		engage.NewClient(engage.ClientConfig{ServerURL: cfg.Engage.ServerURL, Timeout: cfg.Engage.Timeout}, log.Zerolog()),
		eventBus, cfg.User.ID, cfg.Engage.CheckInterval,
		func(ctx context.Context, message string) {
			if err := coord.Speak(ctx, message); err != nil {
				mainLog.Warn().Err(err).Msg("Proactive message playback failed")
			}
		}, log.Zerolog())
	scheduler.SetEnabled(cfg.Engage.Enabled)

	watcher, err := config.NewWatcher(*configPath, log.Zerolog(), func(updated *config.Config) {
		// Only the toggles that are safe to flip live; the pipelines keep
		// their boot-time configuration.
		scheduler.SetEnabled(updated.Engage.Enabled)
	})
	if err != nil {
		mainLog.Warn().Err(err).Msg("Config watcher unavailable")
	} else {
		defer watcher.Close()
	}

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start listening: %w", err)
	}
	monitor.Start(ctx)
	scheduler.Start(ctx)

	mainLog.Info().
		Str("mode", string(controller.Mode())).
		Str("phrase", cfg.Wake.Phrase).
		Msg("Hey Buddy is listening")

	<-ctx.Done()
	mainLog.Info().Msg("Shutting down")

	scheduler.Stop()
	monitor.Stop()
	session.Stop()
	return nil
}

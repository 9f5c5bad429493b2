// Package config provides configuration management for the Hey Buddy voice core.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	User    UserConfig    `mapstructure:"user"`
	Audio   AudioConfig   `mapstructure:"audio"`
	STT     STTConfig     `mapstructure:"stt"`
	TTS     TTSConfig     `mapstructure:"tts"`
	Wake    WakeConfig    `mapstructure:"wake"`
	Emotion EmotionConfig `mapstructure:"emotion"`
	Engage  EngageConfig  `mapstructure:"engage"`
	LLM     LLMConfig     `mapstructure:"llm"`
}

// UserConfig identifies the user
type UserConfig struct {
	ID string `mapstructure:"id"`
}

// AudioConfig configures audio capture
type AudioConfig struct {
	InputDevice  string        `mapstructure:"input_device"`
	SampleRate   int           `mapstructure:"sample_rate"`
	FrameSize    int           `mapstructure:"frame_size"`
	SilenceRMS   float64       `mapstructure:"silence_rms"`   // loudness gate RMS floor
	SilencePeak  float64       `mapstructure:"silence_peak"`  // loudness gate peak floor
	LevelRefresh time.Duration `mapstructure:"level_refresh"` // level monitor cadence
	SettleDelay  time.Duration `mapstructure:"settle_delay"`  // mic restart delay after speech
}

// STTConfig configures transcription backends
type STTConfig struct {
	ModelPath          string        `mapstructure:"model_path"`      // whisper model for the primary backend
	Language           string        `mapstructure:"language"`
	NumThreads         int           `mapstructure:"num_threads"`
	TranscribeTimeout  time.Duration `mapstructure:"transcribe_timeout"`
	FallbackURL        string        `mapstructure:"fallback_url"` // native continuous recognition endpoint
	FallbackAPIKeyEnv  string        `mapstructure:"fallback_api_key_env"`
	FallbackModel      string        `mapstructure:"fallback_model"`
	InterimResults     bool          `mapstructure:"interim_results"`
}

// TTSConfig configures speech synthesis
type TTSConfig struct {
	Provider    string        `mapstructure:"provider"` // http or piper
	ServerURL   string        `mapstructure:"server_url"`
	Voice       string        `mapstructure:"voice"`
	Model       string        `mapstructure:"model"`
	Speed       float64       `mapstructure:"speed"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PiperBinary string        `mapstructure:"piper_binary"`
	PiperModels string        `mapstructure:"piper_models"` // directory of .onnx voices
	PiperVoice  string        `mapstructure:"piper_voice"`
}

// WakeConfig configures wake-phrase detection
type WakeConfig struct {
	Phrase    string        `mapstructure:"phrase"`
	Variants  []string      `mapstructure:"variants"`
	CycleDur  time.Duration `mapstructure:"cycle_duration"`
	// CycleDurConstrained is used instead of CycleDur on constrained devices.
	CycleDurConstrained time.Duration `mapstructure:"cycle_duration_constrained"`
}

// EmotionConfig configures the emotion monitoring loop
type EmotionConfig struct {
	ServerURL  string        `mapstructure:"server_url"`
	SampleDur  time.Duration `mapstructure:"sample_duration"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxHistory int           `mapstructure:"max_history"`
}

// EngageConfig configures the proactive engagement scheduler
type EngageConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	ServerURL     string        `mapstructure:"server_url"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// LLMConfig configures the text generation client
type LLMConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKeyEnv string        `mapstructure:"api_key_env"`
	Model     string        `mapstructure:"model"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		User: UserConfig{
			ID: "default-user",
		},
		Audio: AudioConfig{
			InputDevice:  "",
			SampleRate:   16000,
			FrameSize:    320, // 20ms at 16kHz
			SilenceRMS:   0.012,
			SilencePeak:  0.05,
			LevelRefresh: 16 * time.Millisecond,
			SettleDelay:  300 * time.Millisecond,
		},
		STT: STTConfig{
			ModelPath:         "",
			Language:          "en",
			NumThreads:        4,
			TranscribeTimeout: 4 * time.Second,
			FallbackURL:       "wss://api.deepgram.com/v1/listen",
			FallbackAPIKeyEnv: "DEEPGRAM_API_KEY",
			FallbackModel:     "nova-2",
			InterimResults:    false,
		},
		TTS: TTSConfig{
			Provider:  "http",
			ServerURL: "http://localhost:8000",
			Voice:     "nova",
			Model:     "tts-1",
			Speed:     1.0,
			Timeout:   30 * time.Second,
		},
		Wake: WakeConfig{
			Phrase: "hey buddy",
			Variants: []string{
				"hey buddy", "hey, buddy", "hey bud", "hey body",
				"hey birdie", "a buddy", "hi buddy", "hello buddy",
			},
			CycleDur:            1500 * time.Millisecond,
			CycleDurConstrained: 3 * time.Second,
		},
		Emotion: EmotionConfig{
			ServerURL:  "http://localhost:8000",
			SampleDur:  2 * time.Second,
			Timeout:    10 * time.Second,
			MaxHistory: 10,
		},
		Engage: EngageConfig{
			Enabled:       true,
			ServerURL:     "http://localhost:8000",
			CheckInterval: 10 * time.Minute,
			Timeout:       15 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:   "http://localhost:3000/v1",
			APIKeyEnv: "LOCAL_AI_KEY",
			Model:     "thenhan",
			Timeout:   20 * time.Second,
		},
	}
}

// Dir returns the configuration directory path
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".heybuddy"), nil
}

// Load reads configuration from file and environment
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		dir, err := Dir()
		if err != nil {
			return cfg, err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return cfg, err
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		v.AddConfigPath(".")
	}

	// Environment variable overrides
	v.SetEnvPrefix("HEYBUDDY")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		}
		// Config file not found, use defaults and create one
		if err := Save(cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	if err := v.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to file
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	v := viper.New()
	v.Set("user", cfg.User)
	v.Set("audio", cfg.Audio)
	v.Set("stt", cfg.STT)
	v.Set("tts", cfg.TTS)
	v.Set("wake", cfg.Wake)
	v.Set("emotion", cfg.Emotion)
	v.Set("engage", cfg.Engage)
	v.Set("llm", cfg.LLM)

	return v.WriteConfigAs(filepath.Join(dir, "config.yaml"))
}

// Package device probes host capabilities to pick an operating mode for the
// voice pipeline.
package device

import (
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/mem"
)

// MemoryClass buckets devices by available memory.
type MemoryClass string

const (
	MemoryConstrained MemoryClass = "constrained"
	MemoryStandard    MemoryClass = "standard"
)

// constrainedBelow is the total-memory boundary for the constrained class.
const constrainedBelow = 4 << 30 // 4 GiB

// Profile describes what the host can support. Computed once at startup and
// immutable for the session.
type Profile struct {
	MemoryClass          MemoryClass `json:"memory_class"`
	HasNumericRuntime    bool        `json:"has_numeric_runtime"`
	HasNativeRecognition bool        `json:"has_native_recognition"`
	IsHandheld           bool        `json:"is_handheld"`
}

// Signals are the raw probes a Profile is derived from. Split out so the
// classification rules can be tested without touching the host.
type Signals struct {
	TotalMemoryBytes uint64
	MemoryKnown      bool
	ModelPath        string
	FallbackKey      string
	GOOS             string
}

// Detector probes the host environment. Probing is idempotent and has no side
// effects, so Detect may be called repeatedly (e.g. on explicit re-init).
type Detector struct {
	modelPath      string
	fallbackKeyEnv string
	logger         zerolog.Logger
}

// NewDetector creates a detector. modelPath is the on-device transcription
// model; fallbackKeyEnv names the env var holding the native recognition key.
func NewDetector(modelPath, fallbackKeyEnv string, logger zerolog.Logger) *Detector {
	return &Detector{
		modelPath:      modelPath,
		fallbackKeyEnv: fallbackKeyEnv,
		logger:         logger.With().Str("component", "device").Logger(),
	}
}

// Detect reads the host environment and classifies it.
func (d *Detector) Detect() Profile {
	sig := Signals{
		ModelPath:   d.modelPath,
		FallbackKey: os.Getenv(d.fallbackKeyEnv),
		GOOS:        runtime.GOOS,
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		sig.TotalMemoryBytes = vm.Total
		sig.MemoryKnown = true
	} else {
		d.logger.Warn().Err(err).Msg("Memory probe failed, assuming constrained")
	}

	profile := DetectFrom(sig)
	d.logger.Info().
		Str("memory_class", string(profile.MemoryClass)).
		Bool("numeric_runtime", profile.HasNumericRuntime).
		Bool("native_recognition", profile.HasNativeRecognition).
		Bool("handheld", profile.IsHandheld).
		Msg("Device profile detected")
	return profile
}

// DetectFrom derives a Profile from raw signals. Any ambiguous signal is
// classified conservatively: a silently failing heavy pipeline on a weak
// device is worse than a degraded fallback experience.
func DetectFrom(sig Signals) Profile {
	p := Profile{
		MemoryClass: MemoryConstrained,
		IsHandheld:  sig.GOOS == "android" || sig.GOOS == "ios",
	}

	if sig.MemoryKnown && sig.TotalMemoryBytes >= constrainedBelow {
		p.MemoryClass = MemoryStandard
	}

	if sig.ModelPath != "" {
		if info, err := os.Stat(sig.ModelPath); err == nil && !info.IsDir() {
			p.HasNumericRuntime = true
		}
	}

	p.HasNativeRecognition = sig.FallbackKey != ""

	return p
}

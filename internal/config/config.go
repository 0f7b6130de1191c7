package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/Empreinte/internal/model"
)

// Strategy names accepted by Config.Strategy.
const (
	StrategyOffsetAlignment = "offset"
	StrategyHashCount       = "hashcount"
)

// ------------------------ TUNABLES ------------------------

// Config holds every tunable of the fingerprinting pipeline. One value is
// passed explicitly into each stage so runs are reproducible.
type Config struct {
	SampleRate  int     // input sample rate (Hz)
	Decimation  int     // integer decimation factor N
	CutoffRatio float64 // low-pass cutoff as a fraction of the decimated rate
	MinDuration time.Duration

	WindowSize int // FFT size W
	HopSize    int // frame advance H

	PeaksPerFrame int // K
	FanOut        int // F
	MaxDeltaTime  int // frames

	MinMatches          int // offset-alignment threshold
	HashCountMinMatches int // threshold when Strategy is StrategyHashCount
	Strategy            string

	Workers        int
	RequestTimeout time.Duration
}

// Default returns the reference configuration (44.1 kHz input, 11025 Hz analysis).
func Default() Config {
	return Config{
		SampleRate:          44100,
		Decimation:          4,
		CutoffRatio:         0.45,
		MinDuration:         8 * time.Second,
		WindowSize:          1024,
		HopSize:             512,
		PeaksPerFrame:       5,
		FanOut:              5,
		MaxDeltaTime:        200,
		MinMatches:          800,
		HashCountMinMatches: 5,
		Strategy:            StrategyOffsetAlignment,
		Workers:             runtime.NumCPU(),
		RequestTimeout:      2 * time.Minute,
	}
}

// Validate reports configuration values the pipeline cannot run with.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be positive, got %d", model.ErrInvalidInput, c.SampleRate)
	case c.Decimation <= 0:
		return fmt.Errorf("%w: decimation must be positive, got %d", model.ErrInvalidInput, c.Decimation)
	case c.CutoffRatio <= 0 || c.CutoffRatio > 0.5:
		return fmt.Errorf("%w: cutoff ratio must be in (0, 0.5], got %g", model.ErrInvalidInput, c.CutoffRatio)
	case c.MinDuration < 0:
		return fmt.Errorf("%w: negative minimum duration", model.ErrInvalidInput)
	case c.WindowSize < 2 || c.WindowSize&(c.WindowSize-1) != 0:
		return fmt.Errorf("%w: window size must be a power of two >= 2, got %d", model.ErrInvalidInput, c.WindowSize)
	case c.WindowSize/2 > 1<<16:
		return fmt.Errorf("%w: window size %d yields bins that do not fit 16 bits", model.ErrInvalidInput, c.WindowSize)
	case c.HopSize <= 0 || c.HopSize > c.WindowSize:
		return fmt.Errorf("%w: hop size must be in (0, %d], got %d", model.ErrInvalidInput, c.WindowSize, c.HopSize)
	case c.PeaksPerFrame <= 0:
		return fmt.Errorf("%w: peaks per frame must be positive, got %d", model.ErrInvalidInput, c.PeaksPerFrame)
	case c.FanOut <= 0:
		return fmt.Errorf("%w: fan-out must be positive, got %d", model.ErrInvalidInput, c.FanOut)
	case c.MaxDeltaTime <= 0 || c.MaxDeltaTime > 0xFFFF:
		return fmt.Errorf("%w: max delta time must be in (0, 65535], got %d", model.ErrInvalidInput, c.MaxDeltaTime)
	case c.MinMatches <= 0 || c.HashCountMinMatches <= 0:
		return fmt.Errorf("%w: match thresholds must be positive, got %d/%d", model.ErrInvalidInput, c.MinMatches, c.HashCountMinMatches)
	case c.Strategy != StrategyOffsetAlignment && c.Strategy != StrategyHashCount:
		return fmt.Errorf("%w: unknown strategy %q", model.ErrInvalidInput, c.Strategy)
	}
	return nil
}

// DecimatedRate is the sample rate the spectrogram is computed at.
func (c Config) DecimatedRate() float64 {
	return float64(c.SampleRate) / float64(c.Decimation)
}

// Cutoff is the anti-alias filter cutoff in Hz.
func (c Config) Cutoff() float64 {
	return c.CutoffRatio * c.DecimatedRate()
}

// FrameDuration is the time between consecutive spectrogram frames.
func (c Config) FrameDuration() time.Duration {
	return time.Duration(float64(c.HopSize) / c.DecimatedRate() * float64(time.Second))
}

// Bins is the number of frequency bins kept per frame.
func (c Config) Bins() int {
	return c.WindowSize / 2
}

// FromEnv overlays PREFIX_* environment variables (e.g. EMPREINTE_FAN_OUT)
// on top of base. Unset variables keep the base value.
func FromEnv(prefix string, base Config) (Config, error) {
	cfg := base
	ints := []struct {
		name string
		dst  *int
	}{
		{"SAMPLE_RATE", &cfg.SampleRate},
		{"DECIMATION", &cfg.Decimation},
		{"WINDOW_SIZE", &cfg.WindowSize},
		{"HOP_SIZE", &cfg.HopSize},
		{"PEAKS_PER_FRAME", &cfg.PeaksPerFrame},
		{"FAN_OUT", &cfg.FanOut},
		{"MAX_DELTA_TIME", &cfg.MaxDeltaTime},
		{"MIN_MATCHES", &cfg.MinMatches},
		{"HASHCOUNT_MIN_MATCHES", &cfg.HashCountMinMatches},
		{"WORKERS", &cfg.Workers},
	}
	for _, v := range ints {
		raw := os.Getenv(prefix + "_" + v.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return base, fmt.Errorf("%w: %s_%s=%q: %v", model.ErrInvalidInput, prefix, v.name, raw, err)
		}
		*v.dst = n
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"MIN_DURATION", &cfg.MinDuration},
		{"REQUEST_TIMEOUT", &cfg.RequestTimeout},
	}
	for _, v := range durations {
		raw := os.Getenv(prefix + "_" + v.name)
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return base, fmt.Errorf("%w: %s_%s=%q: %v", model.ErrInvalidInput, prefix, v.name, raw, err)
		}
		*v.dst = d
	}

	if raw := os.Getenv(prefix + "_CUTOFF_RATIO"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return base, fmt.Errorf("%w: %s_CUTOFF_RATIO=%q: %v", model.ErrInvalidInput, prefix, raw, err)
		}
		cfg.CutoffRatio = f
	}
	if raw := os.Getenv(prefix + "_STRATEGY"); raw != "" {
		cfg.Strategy = strings.ToLower(strings.TrimSpace(raw))
	}

	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

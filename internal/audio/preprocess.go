package audio

import (
	"fmt"
	"math"

	"github.com/himanishpuri/Empreinte/internal/config"
	"github.com/himanishpuri/Empreinte/internal/model"
)

// LowPass applies a single-pole IIR low-pass filter with the given cutoff
// (Hz) to samples recorded at sampleRate. The first output equals the first
// input.
func LowPass(samples []float64, sampleRate, cutoff float64) []float64 {
	out := make([]float64, len(samples))
	if len(samples) == 0 {
		return out
	}

	rc := 2 * math.Pi * cutoff / sampleRate
	alpha := rc / (rc + 1)

	out[0] = samples[0]
	for i := 1; i < len(samples); i++ {
		out[i] = alpha*samples[i] + (1-alpha)*out[i-1]
	}
	return out
}

// Decimate keeps every factor-th sample starting at index 0.
func Decimate(samples []float64, factor int) []float64 {
	if factor <= 1 {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out
	}
	out := make([]float64, 0, (len(samples)+factor-1)/factor)
	for i := 0; i < len(samples); i += factor {
		out = append(out, samples[i])
	}
	return out
}

// Duration returns the length of samples at sampleRate, in seconds.
func Duration(samples []float64, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(samples)) / float64(sampleRate)
}

// Preprocess validates a mono clip at cfg.SampleRate, low-pass filters it at
// cfg.Cutoff() and decimates by cfg.Decimation. Clips shorter than
// cfg.MinDuration (measured at the input rate) fail with ErrClipTooShort.
func Preprocess(samples []float64, cfg config.Config) ([]float64, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: empty sample stream", model.ErrInvalidInput)
	}
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: non-finite sample at index %d", model.ErrInvalidInput, i)
		}
	}

	duration := Duration(samples, cfg.SampleRate)
	if duration < cfg.MinDuration.Seconds() {
		return nil, fmt.Errorf("%w: %.2fs < %.2fs", model.ErrClipTooShort, duration, cfg.MinDuration.Seconds())
	}

	filtered := LowPass(samples, float64(cfg.SampleRate), cfg.Cutoff())
	return Decimate(filtered, cfg.Decimation), nil
}

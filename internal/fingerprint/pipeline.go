package fingerprint

import (
	"context"

	"github.com/himanishpuri/Empreinte/internal/audio"
	"github.com/himanishpuri/Empreinte/internal/config"
)

// Result carries every intermediate product of one pipeline run.
type Result struct {
	Frames       int
	Peaks        []Peak
	Fingerprints []Fingerprint
}

// Extract runs preprocess -> spectrogram -> peaks -> fingerprints over a
// mono clip sampled at cfg.SampleRate.
func Extract(ctx context.Context, samples []float64, cfg config.Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	decimated, err := audio.Preprocess(samples, cfg)
	if err != nil {
		return nil, err
	}

	spec, err := Spectrogram(ctx, decimated, cfg)
	if err != nil {
		return nil, err
	}

	peaks, err := ExtractPeaks(spec, cfg.PeaksPerFrame)
	if err != nil {
		return nil, err
	}

	fps, err := Generate(peaks, cfg.FanOut, cfg.MaxDeltaTime)
	if err != nil {
		return nil, err
	}

	return &Result{Frames: len(spec), Peaks: peaks, Fingerprints: fps}, nil
}

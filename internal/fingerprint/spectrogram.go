package fingerprint

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/Empreinte/internal/config"
	"github.com/himanishpuri/Empreinte/internal/model"
)

// Hamming returns the symmetric n-point Hamming window
// 0.54 - 0.46*cos(2*pi*i/(n-1)).
func Hamming(n int) []float64 {
	return window.Hamming(n)
}

// FFTReal runs a forward FFT on a real-valued frame and keeps only the
// first len(frame)/2 bins; the upper half mirrors the lower one.
func FFTReal(frame []float64) []complex128 {
	full := fft.FFTReal(frame)
	half := make([]complex128, len(frame)/2)
	copy(half, full)
	return half
}

// Magnitudes converts a complex spectrum into bin moduli.
func Magnitudes(spectrum []complex128) ([]float64, error) {
	mag := make([]float64, len(spectrum))
	for i, c := range spectrum {
		m := cmplx.Abs(c)
		if math.IsNaN(m) {
			return nil, fmt.Errorf("%w: NaN magnitude at bin %d", model.ErrInvalidInput, i)
		}
		mag[i] = m
	}
	return mag, nil
}

// FrameCount returns how many frames Spectrogram produces for n samples.
func FrameCount(n, windowSize, hopSize int) int {
	if n <= 0 {
		return 0
	}
	padded := ((n + windowSize - 1) / windowSize) * windowSize
	return (padded-windowSize)/hopSize + 1
}

// Spectrogram computes the short-time FFT of samples (already decimated)
// and returns spectrogram[frame][bin] with cfg.WindowSize/2 complex bins per
// frame. The tail is zero-padded to a multiple of the window size. Frames are
// computed on cfg.Workers goroutines and kept in time order.
func Spectrogram(ctx context.Context, samples []float64, cfg config.Config) ([][]complex128, error) {
	ws, hs := cfg.WindowSize, cfg.HopSize
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: empty sample stream", model.ErrInvalidInput)
	}
	if ws < 2 || hs <= 0 || hs > ws {
		return nil, fmt.Errorf("%w: window %d / hop %d", model.ErrInvalidInput, ws, hs)
	}

	padded := samples
	if rem := len(samples) % ws; rem != 0 {
		padded = make([]float64, len(samples)+ws-rem)
		copy(padded, samples)
	}

	win := Hamming(ws)
	nFrames := FrameCount(len(samples), ws, hs)
	spectrogram := make([][]complex128, nFrames)

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > nFrames {
		workers = nFrames
	}
	chunk := (nFrames + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < nFrames; start += chunk {
		lo, hi := start, min(start+chunk, nFrames)
		g.Go(func() error {
			frame := make([]float64, ws)
			for f := lo; f < hi; f++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				offset := f * hs
				for i := 0; i < ws; i++ {
					frame[i] = padded[offset+i] * win[i]
				}
				spectrogram[f] = FFTReal(frame)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return spectrogram, nil
}

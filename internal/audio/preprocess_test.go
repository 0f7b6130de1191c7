package audio

import (
	"errors"
	"math"
	"testing"

	"github.com/himanishpuri/Empreinte/internal/config"
	"github.com/himanishpuri/Empreinte/internal/model"
)

func TestLowPassFirstSampleAndRecurrence(t *testing.T) {
	x := []float64{1, 0, 0, 0, 1}
	fs, cutoff := 44100.0, 4961.25

	y := LowPass(x, fs, cutoff)
	if len(y) != len(x) {
		t.Fatalf("Expected %d samples, got %d", len(x), len(y))
	}
	if y[0] != x[0] {
		t.Errorf("Expected y[0] == x[0] (%f), got %f", x[0], y[0])
	}

	rc := 2 * math.Pi * cutoff / fs
	alpha := rc / (rc + 1)
	for i := 1; i < len(x); i++ {
		want := alpha*x[i] + (1-alpha)*y[i-1]
		if math.Abs(y[i]-want) > 1e-12 {
			t.Errorf("y[%d] = %f, expected %f", i, y[i], want)
		}
	}
}

func TestLowPassAttenuatesHighFrequency(t *testing.T) {
	fs := 44100.0
	n := 44100
	low := make([]float64, n)
	high := make([]float64, n)
	for i := range low {
		low[i] = math.Sin(2 * math.Pi * 200 * float64(i) / fs)
		high[i] = math.Sin(2 * math.Pi * 15000 * float64(i) / fs)
	}

	rms := func(s []float64) float64 {
		var sum float64
		for _, v := range s[1000:] {
			sum += v * v
		}
		return math.Sqrt(sum / float64(len(s)-1000))
	}

	lowOut := rms(LowPass(low, fs, 4961.25))
	highOut := rms(LowPass(high, fs, 4961.25))
	if highOut >= lowOut {
		t.Errorf("High frequency should be attenuated more: low=%f high=%f", lowOut, highOut)
	}
}

func TestDecimate(t *testing.T) {
	tests := []struct {
		name   string
		in     []float64
		factor int
		want   []float64
	}{
		{"factor 4", []float64{0, 1, 2, 3, 4, 5, 6, 7, 8}, 4, []float64{0, 4, 8}},
		{"factor 1 copies", []float64{1, 2, 3}, 1, []float64{1, 2, 3}},
		{"shorter than factor", []float64{5, 6}, 4, []float64{5}},
		{"empty", nil, 4, []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decimate(tt.in, tt.factor)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Expected %v, got %v", tt.want, got)
					break
				}
			}
		})
	}
}

func TestPreprocessMinimumDurationBoundary(t *testing.T) {
	cfg := config.Default()
	exact := int(cfg.MinDuration.Seconds()) * cfg.SampleRate // 8.00s

	out, err := Preprocess(make([]float64, exact), cfg)
	if err != nil {
		t.Fatalf("Clip of exactly the minimum duration should be accepted: %v", err)
	}
	if want := exact / cfg.Decimation; len(out) != want {
		t.Errorf("Expected %d decimated samples, got %d", want, len(out))
	}

	_, err = Preprocess(make([]float64, exact-1), cfg)
	if !errors.Is(err, model.ErrClipTooShort) {
		t.Errorf("Expected ErrClipTooShort one sample short, got %v", err)
	}
}

func TestPreprocessInvalidInput(t *testing.T) {
	cfg := config.Default()

	if _, err := Preprocess(nil, cfg); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty input, got %v", err)
	}

	samples := make([]float64, 10*cfg.SampleRate)
	samples[1234] = math.NaN()
	if _, err := Preprocess(samples, cfg); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for NaN sample, got %v", err)
	}
}

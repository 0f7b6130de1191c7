package audio

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/himanishpuri/Empreinte/internal/model"
)

// writeTestWAV encodes interleaved 16-bit samples into a WAV file under t.TempDir.
func writeTestWAV(t *testing.T, name string, data []int, channels, sampleRate int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create WAV file: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Failed to write WAV data: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Failed to finalize WAV file: %v", err)
	}
	return path
}

func TestDecodeWAVMono(t *testing.T) {
	path := writeTestWAV(t, "mono.wav", []int{0, 16384, -16384, 32767, -32768}, 1, 44100)

	clip, err := DecodeFile(context.Background(), path, t.TempDir(), 44100)
	if err != nil {
		t.Fatalf("DecodeFile failed: %v", err)
	}

	if clip.SampleRate != 44100 {
		t.Errorf("Expected sample rate 44100, got %d", clip.SampleRate)
	}
	if clip.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", clip.Channels)
	}

	want := []float64{0, 0.5, -0.5, 32767.0 / 32768.0, -1}
	if len(clip.Samples) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(clip.Samples))
	}
	for i := range want {
		if math.Abs(clip.Samples[i]-want[i]) > 1e-9 {
			t.Errorf("Sample %d: expected %f, got %f", i, want[i], clip.Samples[i])
		}
	}
}

func TestDecodeWAVStereoIsAveraged(t *testing.T) {
	// L/R frames: (16384, 0), (-16384, -16384), (32767, -32767)
	path := writeTestWAV(t, "stereo.wav", []int{16384, 0, -16384, -16384, 32767, -32767}, 2, 22050)

	clip, err := DecodeFile(context.Background(), path, t.TempDir(), 22050)
	if err != nil {
		t.Fatalf("DecodeFile failed: %v", err)
	}

	if clip.Channels != 2 {
		t.Errorf("Expected source channel count 2, got %d", clip.Channels)
	}

	want := []float64{0.25, -0.5, 0}
	if len(clip.Samples) != len(want) {
		t.Fatalf("Expected %d mono frames, got %d", len(want), len(clip.Samples))
	}
	for i := range want {
		if math.Abs(clip.Samples[i]-want[i]) > 1e-9 {
			t.Errorf("Frame %d: expected %f, got %f", i, want[i], clip.Samples[i])
		}
	}
}

func TestDecodeWAVUnsupportedLayout(t *testing.T) {
	path := writeTestWAV(t, "surround.wav", []int{1, 2, 3, 4, 5, 6}, 3, 44100)

	_, err := DecodeFile(context.Background(), path, t.TempDir(), 44100)
	if !errors.Is(err, model.ErrUnsupportedChannelLayout) {
		t.Errorf("Expected ErrUnsupportedChannelLayout, got %v", err)
	}
}

func TestDecodeWAVInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wav")
	if err := os.WriteFile(path, []byte("INVALID HEADER DATA"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	_, err := DecodeFile(context.Background(), path, t.TempDir(), 44100)
	if !errors.Is(err, model.ErrIO) {
		t.Errorf("Expected ErrIO for invalid WAV, got %v", err)
	}
}

func TestDecodeFileMissing(t *testing.T) {
	_, err := DecodeFile(context.Background(), filepath.Join(t.TempDir(), "missing.wav"), t.TempDir(), 44100)
	if !errors.Is(err, model.ErrIO) {
		t.Errorf("Expected ErrIO for missing file, got %v", err)
	}
}

func TestSongIDFromFileFallsBackToStem(t *testing.T) {
	path := writeTestWAV(t, "Darude - Sandstorm.wav", []int{0, 0, 0, 0}, 1, 44100)

	if got := SongIDFromFile(path); got != "Darude - Sandstorm" {
		t.Errorf("Expected file stem as song id, got %q", got)
	}
}

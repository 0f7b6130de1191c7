package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/himanishpuri/Empreinte/internal/model"
)

// Clip is a decoded, mono, normalized sample stream.
type Clip struct {
	Samples    []float64 // mono, in [-1, 1]
	SampleRate int
	Channels   int // channel count of the source before downmixing
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	return Duration(c.Samples, c.SampleRate)
}

// DecodeFile decodes a WAV or MP3 file into a mono clip at sampleRate.
// Other containers, and files recorded at a different rate, are first
// converted to WAV with ffmpeg (written under tempDir).
func DecodeFile(ctx context.Context, path, tempDir string, sampleRate int) (*Clip, error) {
	var (
		clip *Clip
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		clip, err = decodeWith(path, func(f *os.File) (*Clip, error) { return DecodeWAV(f) })
	case ".mp3":
		clip, err = decodeWith(path, func(f *os.File) (*Clip, error) { return DecodeMP3(f) })
	default:
		return convertAndDecode(ctx, path, tempDir, sampleRate)
	}
	if err != nil {
		return nil, err
	}

	if sampleRate > 0 && clip.SampleRate != sampleRate {
		return convertAndDecode(ctx, path, tempDir, sampleRate)
	}
	return clip, nil
}

func decodeWith(path string, decode func(*os.File) (*Clip, error)) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrIO, err)
	}
	defer f.Close()
	return decode(f)
}

func convertAndDecode(ctx context.Context, path, tempDir string, sampleRate int) (*Clip, error) {
	wavPath, err := ConvertToWAV(ctx, path, tempDir, ConvertWAVConfig{SampleRate: sampleRate})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrIO, err)
	}
	defer os.Remove(wavPath)

	return decodeWith(wavPath, func(f *os.File) (*Clip, error) { return DecodeWAV(f) })
}

// DecodeWAV reads a PCM WAV stream of any bit depth. Stereo is averaged to
// mono; other channel layouts fail with ErrUnsupportedChannelLayout.
func DecodeWAV(r io.ReadSeeker) (*Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV stream", model.ErrIO)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: reading PCM data: %v", model.ErrIO, err)
	}
	if buf.Format == nil {
		return nil, fmt.Errorf("%w: missing WAV format", model.ErrIO)
	}

	samples, err := toMono(buf)
	if err != nil {
		return nil, err
	}

	return &Clip{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}, nil
}

// DecodeMP3 decodes an MP3 stream. The decoder always yields 16-bit
// interleaved stereo, which is averaged to mono.
func DecodeMP3(r io.Reader) (*Clip, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: opening MP3 stream: %v", model.ErrIO, err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: decoding MP3 frames: %v", model.ErrIO, err)
	}

	const bytesPerFrame = 4 // 2 channels x 16 bit
	frames := len(raw) / bytesPerFrame
	data := make([]int, 0, frames*2)
	for i := 0; i < frames*bytesPerFrame; i += 2 {
		data = append(data, int(int16(uint16(raw[i])|uint16(raw[i+1])<<8)))
	}

	samples, err := toMono(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: dec.SampleRate()},
		Data:           data,
		SourceBitDepth: 16,
	})
	if err != nil {
		return nil, err
	}

	return &Clip{Samples: samples, SampleRate: dec.SampleRate(), Channels: 2}, nil
}

// toMono normalizes an interleaved integer buffer to [-1, 1] and averages
// left/right for stereo input.
func toMono(buf *goaudio.IntBuffer) ([]float64, error) {
	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = 16
	}
	scale := 1.0 / float64(int64(1)<<uint(depth-1))

	switch buf.Format.NumChannels {
	case 1:
		out := make([]float64, len(buf.Data))
		for i, s := range buf.Data {
			out[i] = float64(s) * scale
		}
		return out, nil

	case 2:
		frames := len(buf.Data) / 2
		out := make([]float64, frames)
		for i := 0; i < frames; i++ {
			l := float64(buf.Data[2*i]) * scale
			r := float64(buf.Data[2*i+1]) * scale
			out[i] = (l + r) * 0.5
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %d channels", model.ErrUnsupportedChannelLayout, buf.Format.NumChannels)
	}
}

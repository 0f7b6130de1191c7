package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/Empreinte/internal/config"
	"github.com/himanishpuri/Empreinte/internal/fingerprint"
	"github.com/himanishpuri/Empreinte/internal/model"
	"github.com/himanishpuri/Empreinte/internal/storage"
	"github.com/himanishpuri/Empreinte/pkg/logger"
)

const sampleRate = 44100

// synthSong renders seconds of seeded pseudo-music: a new three-note chord
// every half second over a bed of noise.
func synthSong(seed int64, seconds float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	n := int(seconds * sampleRate)
	out := make([]float64, n)

	const noteLen = sampleRate / 2
	var freqs [3]float64
	for i := range out {
		if i%noteLen == 0 {
			for k := range freqs {
				freqs[k] = 150 + rng.Float64()*3500
			}
		}
		t := float64(i) / sampleRate
		v := 0.0
		for k, f := range freqs {
			v += math.Sin(2*math.Pi*f*t) / float64(k+2)
		}
		out[i] = 0.6*v + 0.1*(rng.Float64()*2-1)
	}
	return out
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Output: io.Discard})
}

// setupTestEngine creates an engine over an in-memory index
func setupTestEngine(t *testing.T, idx storage.Index) *Engine {
	t.Helper()

	if idx == nil {
		idx = storage.NewMemoryIndex()
	}
	engine, err := NewEngine(idx, config.Default(), WithLogger(quietLogger()), WithTempDir(t.TempDir()))
	if err != nil {
		t.Fatalf("Failed to create test engine: %v", err)
	}
	t.Cleanup(func() {
		engine.Close()
	})
	return engine
}

// excerpt cuts seconds of audio starting at the hop boundary nearest to at.
func excerpt(song []float64, at, seconds float64) ([]float64, int64) {
	const hop = 2048 // 512 decimated samples
	frame := int(at*sampleRate) / hop
	start := frame * hop
	return song[start : start+int(seconds*sampleRate)], int64(frame)
}

func TestRoundTrip(t *testing.T) {
	engine := setupTestEngine(t, nil)
	ctx := context.Background()
	song := synthSong(1, 40)

	stored, err := engine.Insert(ctx, "S", song)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if stored.Fingerprints == 0 {
		t.Fatal("Expected fingerprints to be stored")
	}
	if stored.DurationMs != 40000 {
		t.Errorf("Expected duration 40000ms, got %d", stored.DurationMs)
	}

	clip, frame := excerpt(song, 15, 10)
	res, err := engine.Recognize(ctx, clip)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if !res.Matched || res.SongID != "S" {
		t.Fatalf("Expected match on S, got %+v", res)
	}
	if res.Votes < engine.Config().MinMatches {
		t.Errorf("Expected at least %d votes, got %d", engine.Config().MinMatches, res.Votes)
	}
	if res.Offset != frame {
		t.Errorf("Expected offset %d frames, got %d", frame, res.Offset)
	}
}

func TestRecognizeFingerprints(t *testing.T) {
	engine := setupTestEngine(t, nil)
	ctx := context.Background()
	song := synthSong(4, 30)

	if _, err := engine.Insert(ctx, "S", song); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	clip, frame := excerpt(song, 10, 10)
	fp, err := engine.Fingerprint(ctx, clip)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	want, err := engine.Recognize(ctx, clip)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}

	got, err := engine.RecognizeFingerprints(ctx, fp.Fingerprints)
	if err != nil {
		t.Fatalf("RecognizeFingerprints failed: %v", err)
	}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
	if !got.Matched || got.Offset != frame {
		t.Errorf("Expected match at frame %d, got %+v", frame, got)
	}

	if _, err := engine.RecognizeFingerprints(ctx, nil); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty query, got %v", err)
	}
}

func TestOffsetInvariance(t *testing.T) {
	engine := setupTestEngine(t, nil)
	ctx := context.Background()
	song := synthSong(2, 40)

	if _, err := engine.Insert(ctx, "S", song); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := engine.Insert(ctx, "Other", synthSong(3, 30)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var offsets []int64
	for _, at := range []float64{5, 25} {
		clip, _ := excerpt(song, at, 10)
		res, err := engine.Recognize(ctx, clip)
		if err != nil {
			t.Fatalf("Recognize failed: %v", err)
		}
		if !res.Matched || res.SongID != "S" {
			t.Fatalf("Excerpt at %.0fs: expected match on S, got %+v", at, res)
		}
		offsets = append(offsets, res.Offset)
	}
	if offsets[0] == offsets[1] {
		t.Errorf("Expected different winning offsets, got %v", offsets)
	}
}

func TestNoiseRejection(t *testing.T) {
	engine := setupTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.Insert(ctx, "S", synthSong(4, 40)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	res, err := engine.Recognize(ctx, synthSong(99, 10))
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.Matched {
		t.Errorf("Expected no match for unrelated audio, got %+v", res)
	}
}

func TestRecognizeEmptyIndex(t *testing.T) {
	engine := setupTestEngine(t, nil)

	res, err := engine.Recognize(context.Background(), synthSong(5, 9))
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.Matched || res.Votes != 0 {
		t.Errorf("Expected empty no-match, got %+v", res)
	}
}

func TestInsertMissingSongID(t *testing.T) {
	engine := setupTestEngine(t, nil)

	_, err := engine.Insert(context.Background(), "  ", synthSong(6, 9))
	if !errors.Is(err, model.ErrMissingSongIdentifier) {
		t.Errorf("Expected ErrMissingSongIdentifier, got %v", err)
	}
}

func TestInsertShortClip(t *testing.T) {
	engine := setupTestEngine(t, nil)

	_, err := engine.Insert(context.Background(), "short", make([]float64, 8*sampleRate-1))
	if !errors.Is(err, model.ErrClipTooShort) {
		t.Errorf("Expected ErrClipTooShort, got %v", err)
	}
	songs, _ := engine.Songs(context.Background())
	if len(songs) != 0 {
		t.Errorf("Expected nothing stored, got %d songs", len(songs))
	}
}

func TestInsertDuplicate(t *testing.T) {
	engine := setupTestEngine(t, nil)
	ctx := context.Background()
	song := synthSong(7, 9)

	if _, err := engine.Insert(ctx, "dup", song); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := engine.Insert(ctx, "dup", song); !errors.Is(err, model.ErrSongExists) {
		t.Errorf("Expected ErrSongExists, got %v", err)
	}
}

type brokenIndex struct {
	*storage.MemoryIndex
}

func (brokenIndex) Lookup(ctx context.Context, key uint64) ([]model.Occurrence, error) {
	return nil, fmt.Errorf("%w: database is locked", model.ErrStorageFailure)
}

func TestRecognizeStorageFailure(t *testing.T) {
	engine := setupTestEngine(t, brokenIndex{storage.NewMemoryIndex()})

	res, err := engine.Recognize(context.Background(), synthSong(8, 9))
	if !errors.Is(err, model.ErrStorageFailure) {
		t.Fatalf("Expected ErrStorageFailure, got %v", err)
	}
	if res.Matched {
		t.Errorf("Expected zero result alongside error, got %+v", res)
	}
}

func TestRecognizeCancelled(t *testing.T) {
	engine := setupTestEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Recognize(ctx, synthSong(9, 9))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestSQLiteRoundTripAndDelete(t *testing.T) {
	idx, err := storage.Open(storage.BackendSQLite, filepath.Join(t.TempDir(), "engine.sqlite3"))
	if err != nil {
		t.Fatalf("Failed to open index: %v", err)
	}
	engine := setupTestEngine(t, idx)
	ctx := context.Background()
	song := synthSong(10, 30)

	if _, err := engine.Insert(ctx, "Artist - Title", song); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	clip, _ := excerpt(song, 12, 10)
	res, err := engine.Recognize(ctx, clip)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if !res.Matched || res.SongID != "Artist - Title" {
		t.Fatalf("Expected match, got %+v", res)
	}

	if err := engine.Delete(ctx, "Artist - Title"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	res, err = engine.Recognize(ctx, clip)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if res.Matched {
		t.Errorf("Expected no match after delete, got %+v", res)
	}
}

func TestHashCountStrategy(t *testing.T) {
	cfg := config.Default()
	cfg.Strategy = config.StrategyHashCount
	engine, err := NewEngine(storage.NewMemoryIndex(), cfg, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	ctx := context.Background()
	song := synthSong(11, 30)

	if _, err := engine.Insert(ctx, "S", song); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	clip, _ := excerpt(song, 10, 10)
	res, err := engine.Recognize(ctx, clip)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if !res.Matched || res.SongID != "S" || res.Offset != 0 {
		t.Errorf("Expected hash-count match on S, got %+v", res)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	engine := setupTestEngine(t, nil)
	song := synthSong(12, 9)

	a, err := engine.Fingerprint(context.Background(), song)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	b, err := engine.Fingerprint(context.Background(), song)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	if fingerprint.Digest(a.Fingerprints) != fingerprint.Digest(b.Fingerprints) {
		t.Error("Expected identical digests for identical input")
	}
}

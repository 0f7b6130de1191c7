package empreinte

import (
	"context"
	"fmt"
	"time"

	"github.com/himanishpuri/Empreinte/internal/audio"
	"github.com/himanishpuri/Empreinte/internal/fingerprint"
	"github.com/himanishpuri/Empreinte/internal/model"
	"github.com/himanishpuri/Empreinte/internal/service"
	"github.com/himanishpuri/Empreinte/internal/storage"
	"github.com/himanishpuri/Empreinte/pkg/logger"
)

// empreinteService is the default implementation of the Service interface.
type empreinteService struct {
	engine *service.Engine
	config *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Pipeline.Validate(); err != nil {
		return nil, err
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().Named("empreinte")
	}

	index := cfg.Index
	if index == nil {
		var err error
		index, err = storage.Open(cfg.Backend, cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	engine, err := service.NewEngine(index, cfg.Pipeline,
		service.WithLogger(cfg.Logger),
		service.WithTempDir(cfg.TempDir),
	)
	if err != nil {
		index.Close()
		return nil, err
	}

	return &empreinteService{engine: engine, config: cfg}, nil
}

// AddSong decodes an audio file and indexes it. An empty songID is derived
// from the file's tags, falling back to its name.
func (s *empreinteService) AddSong(ctx context.Context, audioPath, songID string) (Song, error) {
	song, err := s.engine.InsertFile(ctx, audioPath, songID)
	if err != nil {
		return Song{}, err
	}
	return songFromModel(song), nil
}

func (s *empreinteService) AddSamples(ctx context.Context, songID string, samples []float64) (Song, error) {
	song, err := s.engine.Insert(ctx, songID, samples)
	if err != nil {
		return Song{}, err
	}
	return songFromModel(song), nil
}

func (s *empreinteService) MatchSong(ctx context.Context, audioPath string) (MatchResult, error) {
	res, err := s.engine.RecognizeFile(ctx, audioPath)
	if err != nil {
		return MatchResult{}, err
	}
	return s.toResult(res), nil
}

func (s *empreinteService) MatchSamples(ctx context.Context, samples []float64) (MatchResult, error) {
	res, err := s.engine.Recognize(ctx, samples)
	if err != nil {
		return MatchResult{}, err
	}
	return s.toResult(res), nil
}

// MatchFingerprints votes precomputed fingerprints, such as those produced
// by the browser build, against the index.
func (s *empreinteService) MatchFingerprints(ctx context.Context, query []QueryFingerprint) (MatchResult, error) {
	fps := make([]fingerprint.Fingerprint, len(query))
	for i, q := range query {
		if q.Key>>48 != 0 {
			return MatchResult{}, fmt.Errorf("%w: fingerprint %d has key %d wider than 48 bits", ErrInvalidInput, i, q.Key)
		}
		fa, ft, dt := fingerprint.UnpackKey(q.Key)
		if dt == 0 || int(dt) > s.config.Pipeline.MaxDeltaTime {
			return MatchResult{}, fmt.Errorf("%w: fingerprint %d has delta %d", ErrInvalidInput, i, dt)
		}
		fps[i] = fingerprint.Fingerprint{FreqAnchor: fa, FreqTarget: ft, DeltaTime: dt, AnchorTime: q.AnchorTime}
	}

	res, err := s.engine.RecognizeFingerprints(ctx, fps)
	if err != nil {
		return MatchResult{}, err
	}
	return s.toResult(res), nil
}

func (s *empreinteService) toResult(res model.MatchResult) MatchResult {
	frame := s.config.Pipeline.FrameDuration()
	return MatchResult{
		Matched:  res.Matched,
		SongID:   res.SongID,
		Votes:    res.Votes,
		Offset:   res.Offset,
		OffsetMs: (time.Duration(res.Offset) * frame).Milliseconds(),
		Strategy: s.config.Pipeline.Strategy,
	}
}

// Fingerprint decodes an audio file and summarizes its fingerprint set.
func (s *empreinteService) Fingerprint(ctx context.Context, audioPath string) (FingerprintSummary, error) {
	clip, err := audio.DecodeFile(ctx, audioPath, s.config.TempDir, s.config.Pipeline.SampleRate)
	if err != nil {
		return FingerprintSummary{}, err
	}
	res, err := s.engine.Fingerprint(ctx, clip.Samples)
	if err != nil {
		return FingerprintSummary{}, err
	}
	return FingerprintSummary{
		DurationMs:   int(clip.Duration() * 1000),
		Frames:       res.Frames,
		Peaks:        len(res.Peaks),
		Fingerprints: len(res.Fingerprints),
		Digest:       fingerprint.Digest(res.Fingerprints),
	}, nil
}

func (s *empreinteService) ListSongs(ctx context.Context) ([]Song, error) {
	songs, err := s.engine.Songs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Song, 0, len(songs))
	for _, song := range songs {
		out = append(out, songFromModel(song))
	}
	return out, nil
}

func (s *empreinteService) DeleteSong(ctx context.Context, songID string) error {
	return s.engine.Delete(ctx, songID)
}

func (s *empreinteService) Close() error {
	return s.engine.Close()
}

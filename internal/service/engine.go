package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/Empreinte/internal/audio"
	"github.com/himanishpuri/Empreinte/internal/config"
	"github.com/himanishpuri/Empreinte/internal/fingerprint"
	"github.com/himanishpuri/Empreinte/internal/matcher"
	"github.com/himanishpuri/Empreinte/internal/model"
	"github.com/himanishpuri/Empreinte/internal/storage"
	"github.com/himanishpuri/Empreinte/pkg/logger"
)

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Engine ties the fingerprint pipeline to an index: ingestion writes a
// song's fingerprints, recognition votes a query against them.
type Engine struct {
	index   storage.Index
	matcher *matcher.Matcher
	cfg     config.Config
	log     Logger
	tempDir string
}

type Option func(*Engine)

func WithLogger(log Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

func WithTempDir(dir string) Option {
	return func(e *Engine) {
		if dir != "" {
			e.tempDir = dir
		}
	}
}

func NewEngine(index storage.Index, cfg config.Config, opts ...Option) (*Engine, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: nil index", model.ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		index:   index,
		cfg:     cfg,
		log:     logger.GetLogger().Named("engine"),
		tempDir: os.TempDir(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.matcher = matcher.New(index, matcher.StrategyFromConfig(cfg), cfg.Workers)
	return e, nil
}

func (e *Engine) Config() config.Config { return e.cfg }

// withDeadline bounds requests that arrive without one.
func (e *Engine) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || e.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.RequestTimeout)
}

// Fingerprint runs the pipeline over a mono clip without touching the index.
func (e *Engine) Fingerprint(ctx context.Context, samples []float64) (*fingerprint.Result, error) {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()
	return fingerprint.Extract(ctx, samples, e.cfg)
}

// Insert fingerprints a mono clip at the configured sample rate and stores
// it under songID.
func (e *Engine) Insert(ctx context.Context, songID string, samples []float64) (model.Song, error) {
	songID = strings.TrimSpace(songID)
	if songID == "" {
		return model.Song{}, model.ErrMissingSongIdentifier
	}

	ctx, cancel := e.withDeadline(ctx)
	defer cancel()

	start := time.Now()
	res, err := fingerprint.Extract(ctx, samples, e.cfg)
	if err != nil {
		return model.Song{}, err
	}
	e.log.Debugf("%s: %d frames, %d peaks, %d fingerprints", songID, res.Frames, len(res.Peaks), len(res.Fingerprints))

	song := model.Song{
		ID:           songID,
		Fingerprints: len(res.Fingerprints),
		DurationMs:   int(audio.Duration(samples, e.cfg.SampleRate) * 1000),
	}
	if err := e.index.Insert(ctx, song, res.Fingerprints); err != nil {
		return model.Song{}, err
	}

	e.log.Infof("Indexed %q: %s fingerprints in %s", songID, humanize.Comma(int64(song.Fingerprints)), time.Since(start).Round(time.Millisecond))
	return song, nil
}

// Recognize fingerprints a query clip and votes it against the index.
// Storage failures are returned as errors, never as a non-match.
func (e *Engine) Recognize(ctx context.Context, samples []float64) (model.MatchResult, error) {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()

	start := time.Now()
	res, err := fingerprint.Extract(ctx, samples, e.cfg)
	if err != nil {
		return model.MatchResult{}, err
	}

	return e.vote(ctx, res.Fingerprints, start)
}

// RecognizeFingerprints votes fingerprints computed elsewhere, e.g. by the
// browser build, against the index.
func (e *Engine) RecognizeFingerprints(ctx context.Context, fps []fingerprint.Fingerprint) (model.MatchResult, error) {
	if len(fps) == 0 {
		return model.MatchResult{}, fmt.Errorf("%w: no query fingerprints", model.ErrInvalidInput)
	}

	ctx, cancel := e.withDeadline(ctx)
	defer cancel()
	return e.vote(ctx, fps, time.Now())
}

func (e *Engine) vote(ctx context.Context, fps []fingerprint.Fingerprint, start time.Time) (model.MatchResult, error) {
	result, err := e.matcher.Match(ctx, fps)
	if err != nil {
		e.log.Errorf("Recognition aborted after %d query fingerprints: %v", len(fps), err)
		return model.MatchResult{}, err
	}

	if result.Matched {
		e.log.Infof("Matched %q with %d votes at offset %d frames (%s)", result.SongID, result.Votes, result.Offset, time.Since(start).Round(time.Millisecond))
	} else {
		e.log.Infof("No match (best %q with %d/%d votes)", result.SongID, result.Votes, e.matcher.Strategy().Threshold())
	}
	return result, nil
}

// InsertFile decodes path and inserts it. An empty songID is derived from
// the file's tags or name.
func (e *Engine) InsertFile(ctx context.Context, path, songID string) (model.Song, error) {
	if strings.TrimSpace(songID) == "" {
		songID = audio.SongIDFromFile(path)
	}
	if strings.TrimSpace(songID) == "" {
		return model.Song{}, model.ErrMissingSongIdentifier
	}

	clip, err := audio.DecodeFile(ctx, path, e.tempDir, e.cfg.SampleRate)
	if err != nil {
		return model.Song{}, err
	}
	return e.Insert(ctx, songID, clip.Samples)
}

func (e *Engine) RecognizeFile(ctx context.Context, path string) (model.MatchResult, error) {
	clip, err := audio.DecodeFile(ctx, path, e.tempDir, e.cfg.SampleRate)
	if err != nil {
		return model.MatchResult{}, err
	}
	return e.Recognize(ctx, clip.Samples)
}

func (e *Engine) Songs(ctx context.Context) ([]model.Song, error) {
	return e.index.Songs(ctx)
}

func (e *Engine) Delete(ctx context.Context, songID string) error {
	if strings.TrimSpace(songID) == "" {
		return model.ErrMissingSongIdentifier
	}
	if err := e.index.Delete(ctx, songID); err != nil {
		return err
	}
	e.log.Infof("Deleted %q", songID)
	return nil
}

func (e *Engine) Close() error {
	return e.index.Close()
}

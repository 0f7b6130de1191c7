package empreinte

import (
	"context"

	"github.com/himanishpuri/Empreinte/internal/storage"
)

type Service interface {
	AddSong(ctx context.Context, audioPath, songID string) (Song, error)
	AddSamples(ctx context.Context, songID string, samples []float64) (Song, error)
	MatchSong(ctx context.Context, audioPath string) (MatchResult, error)
	MatchSamples(ctx context.Context, samples []float64) (MatchResult, error)
	MatchFingerprints(ctx context.Context, query []QueryFingerprint) (MatchResult, error)
	Fingerprint(ctx context.Context, audioPath string) (FingerprintSummary, error)
	ListSongs(ctx context.Context) ([]Song, error)
	DeleteSong(ctx context.Context, songID string) error
	Close() error
}

// Index is a fingerprint store. Use WithIndex to plug in a custom one.
type Index = storage.Index

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

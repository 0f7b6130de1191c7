package empreinte

import "github.com/himanishpuri/Empreinte/internal/model"

// MatchResult is the outcome of one recognition request.
type MatchResult struct {
	Matched  bool   // false means "no match"
	SongID   string // best candidate, set even when Matched is false
	Votes    int    // votes for the winning (song, offset) bucket
	Offset   int64  // stored anchor frame minus query anchor frame
	OffsetMs int64  // Offset converted to milliseconds
	Strategy string
}

// Song is a catalog entry.
type Song struct {
	ID           string
	Fingerprints int
	DurationMs   int
}

// Errors returned by the service. Compare with errors.Is.
var (
	ErrClipTooShort             = model.ErrClipTooShort
	ErrUnsupportedChannelLayout = model.ErrUnsupportedChannelLayout
	ErrIO                       = model.ErrIO
	ErrMissingSongIdentifier    = model.ErrMissingSongIdentifier
	ErrStorageFailure           = model.ErrStorageFailure
	ErrInvalidInput             = model.ErrInvalidInput
	ErrSongExists               = model.ErrSongExists
	ErrSongNotFound             = model.ErrSongNotFound
)

func songFromModel(s model.Song) Song {
	return Song{ID: s.ID, Fingerprints: s.Fingerprints, DurationMs: s.DurationMs}
}

// FingerprintSummary describes one pipeline run without touching the index.
type FingerprintSummary struct {
	DurationMs   int
	Frames       int
	Peaks        int
	Fingerprints int
	Digest       uint64 // xxhash of the ordered fingerprint set
}

// QueryFingerprint is one fingerprint computed outside the service, keyed
// the same way the index stores them.
type QueryFingerprint struct {
	Key        uint64 // fingerprint.PackKey(anchor bin, target bin, delta frames)
	AnchorTime uint32 // anchor frame
}

package model

// Occurrence is the stored value for a fingerprint key: the song the
// fingerprint was extracted from and the frame of its anchor peak.
type Occurrence struct {
	SongID     string
	AnchorTime uint32
}

// Song is a catalog entry written alongside a song's fingerprints.
type Song struct {
	ID           string
	Fingerprints int
	DurationMs   int
}

// MatchResult is the outcome of a recognition request. Matched is false for
// "no match"; SongID and Votes then describe the best (rejected) candidate.
type MatchResult struct {
	Matched bool
	SongID  string
	Votes   int
	Offset  int64 // stored anchor frame - query anchor frame
}

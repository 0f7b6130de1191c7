package main

import "fmt"

// Fingerprint batch limits for POST /api/match/fingerprints
const (
	// MaxFingerprints is roughly two minutes of audio at the default fan-out
	MaxFingerprints = 60000

	// FingerprintWarningThreshold triggers logging for large batches
	FingerprintWarningThreshold = 20000
)

// FingerprintDTO is one client-computed fingerprint
type FingerprintDTO struct {
	Key        uint64 `json:"key"`
	AnchorTime uint32 `json:"anchor_time"`
}

// MatchFingerprintsRequest is the request body for POST /api/match/fingerprints
type MatchFingerprintsRequest struct {
	Fingerprints []FingerprintDTO `json:"fingerprints"`
}

// Validate checks batch size
func (r *MatchFingerprintsRequest) Validate() error {
	if len(r.Fingerprints) == 0 {
		return fmt.Errorf("fingerprints cannot be empty")
	}
	if len(r.Fingerprints) > MaxFingerprints {
		return fmt.Errorf("too many fingerprints: %d (maximum: %d)", len(r.Fingerprints), MaxFingerprints)
	}
	return nil
}

// AddSongResponse is the response for successful song addition
type AddSongResponse struct {
	Message      string `json:"message"`
	ID           string `json:"id"`
	Fingerprints int    `json:"fingerprints"`
	DurationMs   int    `json:"duration_ms"`
}

// MatchResponse is the response for POST /api/match
type MatchResponse struct {
	Matched  bool   `json:"matched"`
	SongID   string `json:"song_id,omitempty"`
	Votes    int    `json:"votes"`
	Offset   int64  `json:"offset_frames"`
	OffsetMs int64  `json:"offset_ms"`
	Strategy string `json:"strategy"`
}

// SongDTO represents a song in API responses
type SongDTO struct {
	ID           string `json:"id"`
	Fingerprints int    `json:"fingerprints"`
	DurationMs   int    `json:"duration_ms"`
}

// ListSongsResponse is the response for GET /api/songs
type ListSongsResponse struct {
	Songs []SongDTO `json:"songs"`
	Count int       `json:"count"`
}

// DeleteSongResponse is the response for DELETE /api/songs/{id}
type DeleteSongResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and index metrics
type MetricsResponse struct {
	Status           string `json:"status"`
	DatabasePath     string `json:"database_path"`
	Backend          string `json:"backend"`
	Strategy         string `json:"strategy"`
	SongCount        int    `json:"song_count"`
	FingerprintCount int64  `json:"fingerprint_count"`
	SampleRate       int    `json:"sample_rate"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

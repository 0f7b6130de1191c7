package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/himanishpuri/Empreinte/pkg/empreinte"
	"github.com/himanishpuri/Empreinte/pkg/logger"
)

const maxUploadBytes = 100 << 20

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service empreinte.Service
	config  *ServerConfig
	log     empreinte.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	Backend        string
	TempDir        string
	SampleRate     int
	Strategy       string
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service empreinte.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().Named("http"),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Code:      statusCode,
		RequestID: w.Header().Get(requestIDHeader),
	})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, empreinte.ErrMissingSongIdentifier),
		errors.Is(err, empreinte.ErrClipTooShort),
		errors.Is(err, empreinte.ErrUnsupportedChannelLayout),
		errors.Is(err, empreinte.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, empreinte.ErrSongExists):
		return http.StatusConflict
	case errors.Is(err, empreinte.ErrSongNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondServiceError(w http.ResponseWriter, action string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Errorf("%s failed [%s]: %v", action, w.Header().Get(requestIDHeader), err)
	} else {
		s.log.Warnf("%s rejected [%s]: %v", action, w.Header().Get(requestIDHeader), err)
	}
	s.respondError(w, code, fmt.Sprintf("%s: %v", action, err))
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "Empreinte API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":     "GET /health",
			"metrics":    "GET /api/health/metrics",
			"songs":      "GET /api/songs",
			"addSong":    "POST /api/songs",
			"getSong":    "GET /api/songs/{id}",
			"deleteSong": "DELETE /api/songs/{id}",
			"match":      "POST /api/match",
			"matchFps":   "POST /api/match/fingerprints",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	songs, err := s.service.ListSongs(r.Context())
	if err != nil {
		s.respondServiceError(w, "Retrieve metrics", err)
		return
	}

	var total int64
	for _, song := range songs {
		total += int64(song.Fingerprints)
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:           "healthy",
		DatabasePath:     s.config.DBPath,
		Backend:          s.config.Backend,
		Strategy:         s.config.Strategy,
		SongCount:        len(songs),
		FingerprintCount: total,
		SampleRate:       s.config.SampleRate,
	})
}

// handleListSongs handles GET /api/songs
func (s *Server) handleListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.service.ListSongs(r.Context())
	if err != nil {
		s.respondServiceError(w, "List songs", err)
		return
	}

	songDTOs := make([]SongDTO, len(songs))
	for i, song := range songs {
		songDTOs[i] = toSongDTO(song)
	}

	s.respondJSON(w, http.StatusOK, ListSongsResponse{
		Songs: songDTOs,
		Count: len(songDTOs),
	})
}

func toSongDTO(song empreinte.Song) SongDTO {
	return SongDTO{ID: song.ID, Fingerprints: song.Fingerprints, DurationMs: song.DurationMs}
}

// handleGetSong handles GET /api/songs/{id}
func (s *Server) handleGetSong(w http.ResponseWriter, r *http.Request, songID string) {
	songs, err := s.service.ListSongs(r.Context())
	if err != nil {
		s.respondServiceError(w, "Get song", err)
		return
	}
	for _, song := range songs {
		if song.ID == songID {
			s.respondJSON(w, http.StatusOK, toSongDTO(song))
			return
		}
	}
	s.respondError(w, http.StatusNotFound, fmt.Sprintf("Song %q not found", songID))
}

// handleDeleteSong handles DELETE /api/songs/{id}
func (s *Server) handleDeleteSong(w http.ResponseWriter, r *http.Request, songID string) {
	if err := s.service.DeleteSong(r.Context(), songID); err != nil {
		s.respondServiceError(w, "Delete song", err)
		return
	}

	s.log.Infof("Deleted song %q", songID)
	s.respondJSON(w, http.StatusOK, DeleteSongResponse{
		Message: "Song deleted successfully",
		ID:      songID,
	})
}

// saveUpload copies the multipart "audio" field into a fresh directory
// under TempDir, keeping the client's file name so its extension and stem
// survive. The caller removes the returned directory.
func (s *Server) saveUpload(r *http.Request) (path, dir string, err error) {
	file, header, err := r.FormFile("audio")
	if err != nil {
		return "", "", fmt.Errorf("%w: audio file is required", empreinte.ErrInvalidInput)
	}
	defer file.Close()

	dir, err = os.MkdirTemp(s.config.TempDir, "upload-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return "", "", fmt.Errorf("%w: creating upload dir: %v", empreinte.ErrIO, err)
	}

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "upload.bin"
	}
	path = filepath.Join(dir, name)

	out, err := os.Create(path)
	if err != nil {
		os.RemoveAll(dir)
		return "", "", fmt.Errorf("%w: creating upload file: %v", empreinte.ErrIO, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.RemoveAll(dir)
		return "", "", fmt.Errorf("%w: saving upload: %v", empreinte.ErrIO, err)
	}
	return path, dir, nil
}

// handleAddSong handles POST /api/songs (multipart file upload)
func (s *Server) handleAddSong(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	path, dir, err := s.saveUpload(r)
	if err != nil {
		s.respondServiceError(w, "Upload", err)
		return
	}
	defer os.RemoveAll(dir)

	song, err := s.service.AddSong(ctx, path, strings.TrimSpace(r.FormValue("song_id")))
	if err != nil {
		s.respondServiceError(w, "Add song", err)
		return
	}

	s.log.Infof("Added song %q (%d fingerprints)", song.ID, song.Fingerprints)
	s.respondJSON(w, http.StatusCreated, AddSongResponse{
		Message:      "Song added successfully",
		ID:           song.ID,
		Fingerprints: song.Fingerprints,
		DurationMs:   song.DurationMs,
	})
}

// handleMatchFile handles POST /api/match (multipart file upload)
func (s *Server) handleMatchFile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	path, dir, err := s.saveUpload(r)
	if err != nil {
		s.respondServiceError(w, "Upload", err)
		return
	}
	defer os.RemoveAll(dir)

	res, err := s.service.MatchSong(ctx, path)
	if err != nil {
		s.respondServiceError(w, "Match", err)
		return
	}

	s.respondJSON(w, http.StatusOK, MatchResponse{
		Matched:  res.Matched,
		SongID:   res.SongID,
		Votes:    res.Votes,
		Offset:   res.Offset,
		OffsetMs: res.OffsetMs,
		Strategy: res.Strategy,
	})
}

// handleMatchFingerprints handles POST /api/match/fingerprints (fingerprints computed by the WASM client)
func (s *Server) handleMatchFingerprints(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req MatchFingerprintsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		s.log.Errorf("Failed to decode request: %v", err)
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(req.Fingerprints) >= FingerprintWarningThreshold {
		s.log.Warnf("Large fingerprint batch received: %d", len(req.Fingerprints))
	}

	query := make([]empreinte.QueryFingerprint, len(req.Fingerprints))
	for i, fp := range req.Fingerprints {
		query[i] = empreinte.QueryFingerprint{Key: fp.Key, AnchorTime: fp.AnchorTime}
	}

	res, err := s.service.MatchFingerprints(ctx, query)
	if err != nil {
		s.respondServiceError(w, "Match fingerprints", err)
		return
	}

	s.respondJSON(w, http.StatusOK, MatchResponse{
		Matched:  res.Matched,
		SongID:   res.SongID,
		Votes:    res.Votes,
		Offset:   res.Offset,
		OffsetMs: res.OffsetMs,
		Strategy: res.Strategy,
	})
}

// handleSongs routes requests to /api/songs
func (s *Server) handleSongs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListSongs(w, r)
	case http.MethodPost:
		s.handleAddSong(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleSong routes requests to /api/songs/{id}
func (s *Server) handleSong(w http.ResponseWriter, r *http.Request) {
	songID := strings.TrimPrefix(r.URL.Path, "/api/songs/")
	if songID == "" {
		s.respondError(w, http.StatusBadRequest, "Song ID required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetSong(w, r, songID)
	case http.MethodDelete:
		s.handleDeleteSong(w, r, songID)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleMatch routes requests to /api/match
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleMatchFile(w, r)
}

// handleMatchFingerprintsRoute routes requests to /api/match/fingerprints
func (s *Server) handleMatchFingerprintsRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleMatchFingerprints(w, r)
}

package model

import "errors"

var (
	ErrClipTooShort             = errors.New("clip too short")
	ErrUnsupportedChannelLayout = errors.New("unsupported channel layout: only mono/stereo supported")
	ErrIO                       = errors.New("audio read failure")
	ErrMissingSongIdentifier    = errors.New("missing song identifier")
	ErrStorageFailure           = errors.New("storage failure")
	ErrInvalidInput             = errors.New("invalid input")

	// Catalog errors.
	ErrSongExists   = errors.New("song already indexed")
	ErrSongNotFound = errors.New("song not found")
)

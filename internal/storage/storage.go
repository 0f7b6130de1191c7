package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/himanishpuri/Empreinte/internal/fingerprint"
	"github.com/himanishpuri/Empreinte/internal/model"
)

// Backend names understood by Open.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Index is the persistent fingerprint key -> occurrences mapping plus the
// song catalog written alongside it.
type Index interface {
	// Insert stores every fingerprint of one song. Either all entries and
	// the catalog row are committed or none are.
	Insert(ctx context.Context, song model.Song, fps []fingerprint.Fingerprint) error
	// Lookup returns the occurrences stored under key, empty when unknown.
	Lookup(ctx context.Context, key uint64) ([]model.Occurrence, error)
	Songs(ctx context.Context) ([]model.Song, error)
	Delete(ctx context.Context, songID string) error
	Close() error
}

// Open returns the backend named by kind rooted at path. The memory backend
// ignores path.
func Open(kind, path string) (Index, error) {
	switch strings.ToLower(kind) {
	case "", BackendSQLite:
		return NewDBClientWithPath(path)
	case BackendBadger:
		return NewBadgerIndex(path)
	case BackendMemory:
		return NewMemoryIndex(), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", model.ErrInvalidInput, kind)
	}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", model.ErrStorageFailure, op, err)
}

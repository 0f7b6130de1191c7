package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/himanishpuri/Empreinte/internal/fingerprint"
	"github.com/himanishpuri/Empreinte/internal/model"
)

// MemoryIndex keeps everything in process memory. Used by tests and by the
// fingerprint-only CLI paths.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[uint64][]model.Occurrence
	songs   map[string]model.Song
	order   []string
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		entries: make(map[uint64][]model.Occurrence),
		songs:   make(map[string]model.Song),
	}
}

func (m *MemoryIndex) Insert(ctx context.Context, song model.Song, fps []fingerprint.Fingerprint) error {
	if err := ctx.Err(); err != nil {
		return storageErr("insert", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.songs[song.ID]; ok {
		return fmt.Errorf("%w: %s", model.ErrSongExists, song.ID)
	}
	for _, fp := range fps {
		key := fp.Key()
		m.entries[key] = append(m.entries[key], model.Occurrence{SongID: song.ID, AnchorTime: fp.AnchorTime})
	}
	m.songs[song.ID] = song
	m.order = append(m.order, song.ID)
	return nil
}

func (m *MemoryIndex) Lookup(ctx context.Context, key uint64) ([]model.Occurrence, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("lookup", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	occ := m.entries[key]
	out := make([]model.Occurrence, len(occ))
	copy(out, occ)
	return out, nil
}

func (m *MemoryIndex) Songs(ctx context.Context) ([]model.Song, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("listing songs", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Song, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.songs[id])
	}
	return out, nil
}

func (m *MemoryIndex) Delete(ctx context.Context, songID string) error {
	if err := ctx.Err(); err != nil {
		return storageErr("delete", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.songs[songID]; !ok {
		return fmt.Errorf("%w: %s", model.ErrSongNotFound, songID)
	}
	for key, occ := range m.entries {
		kept := occ[:0]
		for _, o := range occ {
			if o.SongID != songID {
				kept = append(kept, o)
			}
		}
		if len(kept) == 0 {
			delete(m.entries, key)
		} else {
			m.entries[key] = kept
		}
	}
	delete(m.songs, songID)
	for i, id := range m.order {
		if id == songID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len reports the number of stored occurrences.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, occ := range m.entries {
		n += len(occ)
	}
	return n
}

func (m *MemoryIndex) Close() error { return nil }

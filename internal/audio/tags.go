package audio

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// SongIDFromFile derives a song identifier for path: "Artist - Title" from
// embedded tags when a title is present, otherwise the file name without
// its extension.
func SongIDFromFile(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	f, err := os.Open(path)
	if err != nil {
		return stem
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return stem
	}

	title := strings.TrimSpace(m.Title())
	if title == "" {
		return stem
	}
	if artist := strings.TrimSpace(m.Artist()); artist != "" {
		return artist + " - " + title
	}
	return title
}

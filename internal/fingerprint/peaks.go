package fingerprint

import (
	"fmt"
	"sort"

	"github.com/himanishpuri/Empreinte/internal/model"
)

type Peak struct {
	Frame     int
	Bin       int
	Magnitude float64
}

// ExtractPeaks picks the k strongest bins of every frame. Peaks come out
// ordered by frame, then by descending magnitude within a frame; equal
// magnitudes resolve to the lower bin.
func ExtractPeaks(spectrogram [][]complex128, k int) ([]Peak, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: peaks per frame must be positive, got %d", model.ErrInvalidInput, k)
	}

	peaks := make([]Peak, 0, len(spectrogram)*k)
	for frame, bins := range spectrogram {
		if len(bins) < 1 {
			continue
		}

		mags, err := Magnitudes(bins)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", frame, err)
		}

		order := make([]int, len(mags))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			ma, mb := mags[order[a]], mags[order[b]]
			if ma != mb {
				return ma > mb
			}
			return order[a] < order[b]
		})

		for _, bin := range order[:min(k, len(order))] {
			peaks = append(peaks, Peak{Frame: frame, Bin: bin, Magnitude: mags[bin]})
		}
	}

	return peaks, nil
}

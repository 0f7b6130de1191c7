package fingerprint

import (
	"fmt"
	"math"

	"github.com/himanishpuri/Empreinte/internal/model"
)

// Fingerprint pairs an anchor peak with a later target peak.
type Fingerprint struct {
	FreqAnchor uint16
	FreqTarget uint16
	DeltaTime  uint16 // frames between anchor and target
	AnchorTime uint32 // frame index of the anchor
}

// Key returns the packed (anchor, target, delta) lookup key.
func (f Fingerprint) Key() uint64 {
	return PackKey(f.FreqAnchor, f.FreqTarget, f.DeltaTime)
}

// Generate pairs every peak with at most fanOut of the peaks that follow it
// in list order. A pair is kept only when the target lies strictly after the
// anchor and no more than maxDelta frames away.
func Generate(peaks []Peak, fanOut, maxDelta int) ([]Fingerprint, error) {
	if fanOut <= 0 {
		return nil, fmt.Errorf("%w: fan-out must be positive, got %d", model.ErrInvalidInput, fanOut)
	}
	if maxDelta <= 0 || maxDelta > math.MaxUint16 {
		return nil, fmt.Errorf("%w: max delta time out of range: %d", model.ErrInvalidInput, maxDelta)
	}

	fps := make([]Fingerprint, 0, len(peaks)*fanOut)
	for i, anchor := range peaks {
		if anchor.Bin < 0 || anchor.Bin > math.MaxUint16 || anchor.Frame < 0 || int64(anchor.Frame) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: peak %d out of range (frame %d, bin %d)", model.ErrInvalidInput, i, anchor.Frame, anchor.Bin)
		}

		end := min(i+1+fanOut, len(peaks))
		for _, target := range peaks[i+1 : end] {
			dt := target.Frame - anchor.Frame
			if dt <= 0 || dt > maxDelta {
				continue
			}
			if target.Bin < 0 || target.Bin > math.MaxUint16 {
				return nil, fmt.Errorf("%w: target bin %d out of range", model.ErrInvalidInput, target.Bin)
			}
			fps = append(fps, Fingerprint{
				FreqAnchor: uint16(anchor.Bin),
				FreqTarget: uint16(target.Bin),
				DeltaTime:  uint16(dt),
				AnchorTime: uint32(anchor.Frame),
			})
		}
	}

	return fps, nil
}

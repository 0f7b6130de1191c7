package fingerprint

import (
	"encoding/binary"

	xxhash "github.com/OneOfOne/xxhash"
)

// Digest folds an ordered fingerprint set into one 64-bit checksum. Two
// runs over identical audio must yield the same digest.
func Digest(fps []Fingerprint) uint64 {
	h := xxhash.New64()
	buf := make([]byte, 12)
	for _, fp := range fps {
		binary.LittleEndian.PutUint16(buf[0:], fp.FreqAnchor)
		binary.LittleEndian.PutUint16(buf[2:], fp.FreqTarget)
		binary.LittleEndian.PutUint16(buf[4:], fp.DeltaTime)
		binary.LittleEndian.PutUint32(buf[6:], fp.AnchorTime)
		binary.LittleEndian.PutUint16(buf[10:], 0)
		h.Write(buf)
	}
	return h.Sum64()
}

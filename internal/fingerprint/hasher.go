package fingerprint

// Key layout: | 16 bits freq anchor | 16 bits freq target | 16 bits delta time |
// packed into the low 48 bits of a uint64.
const (
	anchorShift = 32
	targetShift = 16
	fieldMask   = 0xFFFF
)

// PackKey builds the index lookup key of a fingerprint. Distinct tuples
// always produce distinct keys.
func PackKey(freqAnchor, freqTarget, deltaTime uint16) uint64 {
	return uint64(freqAnchor)<<anchorShift |
		uint64(freqTarget)<<targetShift |
		uint64(deltaTime)
}

// UnpackKey is the inverse of PackKey.
func UnpackKey(key uint64) (freqAnchor, freqTarget, deltaTime uint16) {
	return uint16((key >> anchorShift) & fieldMask),
		uint16((key >> targetShift) & fieldMask),
		uint16(key & fieldMask)
}

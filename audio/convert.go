package audio

import (
	"encoding/binary"
	"math"
)

// Float32ToInt16 scales a [-1, 1] sample to int16, saturating at the range
// boundaries: 1.0 maps to 32767, -1.0 to -32768.
func Float32ToInt16(x float32) int16 {
	if math.IsNaN(float64(x)) {
		return 0
	}
	v := float64(x) * 32768
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// EncodeFloat32 converts samples to little-endian 16-bit PCM, appending to dst.
func EncodeFloat32(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(Float32ToInt16(s)))
	}
	return dst
}

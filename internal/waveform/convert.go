package waveform

import "math"

// Normalize16 maps a signed 16-bit sample to [-1, 1] by dividing by the
// largest positive value. math.MinInt16 would land just below -1 and is
// clamped.
func Normalize16(v int16) float32 {
	f := float32(v) / math.MaxInt16
	if f < -1 {
		return -1
	}
	return f
}

// ConvertFrame normalizes one interleaved stereo frame.
func ConvertFrame(left, right int16) (float32, float32) {
	return Normalize16(left), Normalize16(right)
}

package transport

import (
	"math"

	"github.com/tphakala/simd/f64"
)

// Normalization factors from integer PCM to [-1, 1].
const (
	Int32ToFloatFactor = 1.0 / 2147483647.0
	Int24ToFloatFactor = 1.0 / 8388607.0
	Int16ToFloatFactor = 3.051850947599719e-05
)

// Fractional scales used on the way out. A full-scale 1.0 maps one step
// past the largest code and is clipped, as in a Q-format conversion.
const (
	q31Scale = 2147483648.0
	q23Scale = 8388608.0
	q15Scale = 32768.0
)

// Int32ToFloat converts 32-bit samples to float.
func Int32ToFloat(dst []float64, src []int32) {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = float64(src[i])
	}
	f64.Scale(dst[:n], dst[:n], Int32ToFloatFactor)
}

// Int24ToFloat converts sign-extended 24-bit samples held in int32.
func Int24ToFloat(dst []float64, src []int32) {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = float64(src[i])
	}
	f64.Scale(dst[:n], dst[:n], Int24ToFloatFactor)
}

// Int16ToFloat converts 16-bit samples to float.
func Int16ToFloat(dst []float64, src []int16) {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = float64(src[i])
	}
	f64.Scale(dst[:n], dst[:n], Int16ToFloatFactor)
}

// quantize scales x, truncates toward zero and saturates to [lo, hi].
func quantize(x, scale, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	v := math.Trunc(x * scale)
	switch {
	case v > hi:
		return hi
	case v < lo:
		return lo
	}
	return v
}

// FloatToInt32 converts float samples to 32-bit with saturation.
func FloatToInt32(dst []int32, src []float64) {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = int32(quantize(src[i], q31Scale, math.MinInt32, math.MaxInt32))
	}
}

// FloatToInt24 converts float samples to sign-extended 24-bit values with
// saturation.
func FloatToInt24(dst []int32, src []float64) {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = int32(quantize(src[i], q23Scale, -8388608, 8388607))
	}
}

// FloatToInt16 converts float samples to 16-bit with saturation.
func FloatToInt16(dst []int16, src []float64) {
	n := min(len(dst), len(src))
	for i := range n {
		dst[i] = int16(quantize(src[i], q15Scale, math.MinInt16, math.MaxInt16))
	}
}

package core

import "math"

// Clamp limits value to the inclusive range [lo, hi]. Swapped bounds are
// reordered.
func Clamp(value, lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	return min(max(value, lo), hi)
}

// Clamp01 limits a control value to [0, 1]. NaN maps to 0.
func Clamp01(value float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	return Clamp(value, 0, 1)
}

// MapRange linearly maps x from [inMin, inMax] onto [outMin, outMax].
// The output is not clamped.
func MapRange(x, inMin, inMax, outMin, outMax float64) float64 {
	if inMax == inMin {
		return outMin
	}
	return (x-inMin)*(outMax-outMin)/(inMax-inMin) + outMin
}

// Package testutil holds signal generators and numeric assertions shared by
// the engine tests.
package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine returns length samples of amp·sin(2π·hz·n/rate).
func DeterministicSine(hz, rate, amp float64, length int) []float64 {
	w := 2 * math.Pi * hz / rate
	out := make([]float64, length)
	for n := range out {
		out[n] = amp * math.Sin(w*float64(n))
	}
	return out
}

// DeterministicNoise returns uniform noise in [-amp, amp). The same seed
// always yields the same samples.
func DeterministicNoise(seed int64, amp float64, length int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, length)
	for n := range out {
		out[n] = amp * (2*rng.Float64() - 1)
	}
	return out
}

// Impulse returns a zero buffer with a single 1 at pos. A pos outside the
// buffer yields silence.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// Ones returns n samples of full-scale DC.
func Ones(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

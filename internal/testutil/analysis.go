package testutil

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// RMS returns the root-mean-square level of x. Empty input yields 0.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

// WindowedRMS splits x into consecutive windows of size n and returns the
// RMS of each complete window. A trailing partial window is dropped.
func WindowedRMS(x []float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, 0, len(x)/n)
	for start := 0; start+n <= len(x); start += n {
		out = append(out, RMS(x[start:start+n]))
	}
	return out
}

// MagnitudeSpectrum returns |X[k]| for k in [0, len(x)/2] using a real FFT.
func MagnitudeSpectrum(x []float64) []float64 {
	fft := fourier.NewFFT(len(x))
	coeffs := fft.Coefficients(nil, x)

	re := make([]float64, len(coeffs))
	im := make([]float64, len(coeffs))
	for i, c := range coeffs {
		re[i] = real(c)
		im[i] = imag(c)
	}
	mag := make([]float64, len(coeffs))
	vecmath.Magnitude(mag, re, im)
	return mag
}

// Energy returns the sum of squares of x.
func Energy(x []float64) float64 {
	return floats.Dot(x, x)
}

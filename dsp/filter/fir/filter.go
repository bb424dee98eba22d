package fir

import "github.com/tphakala/simd/f64"

// Filter is a direct-form FIR filter. The delay line is stored twice in a
// buffer of 2N samples so the newest N inputs are always one contiguous
// window, and each output is a single SIMD dot product.
type Filter struct {
	coeffs []float64
	rev    []float64
	line   []float64
	pos    int
}

// New creates a FIR filter from the given coefficient slice.
// The coefficients are copied. The filter order is len(coeffs)-1.
func New(coeffs []float64) *Filter {
	n := len(coeffs)
	f := &Filter{
		coeffs: make([]float64, n),
		rev:    make([]float64, n),
		line:   make([]float64, 2*n),
	}
	copy(f.coeffs, coeffs)
	for i, c := range coeffs {
		f.rev[n-1-i] = c
	}
	return f
}

// ProcessSample filters one input sample.
//
//	y[n] = sum_{k=0}^{N-1} h[k] * x[n-k]
func (f *Filter) ProcessSample(x float64) float64 {
	n := len(f.rev)
	if n == 0 {
		return 0
	}
	f.pos++
	if f.pos >= n {
		f.pos = 0
	}
	f.line[f.pos] = x
	f.line[f.pos+n] = x
	return f64.DotProduct(f.rev, f.line[f.pos+1:f.pos+1+n])
}

// ProcessBlock filters a block of samples in-place.
func (f *Filter) ProcessBlock(buf []float64) {
	for i, x := range buf {
		buf[i] = f.ProcessSample(x)
	}
}

// ProcessBlockTo filters src into dst. dst must be at least as long as src.
func (f *Filter) ProcessBlockTo(dst, src []float64) {
	if len(src) == 0 {
		return
	}
	_ = dst[len(src)-1]
	for i, x := range src {
		dst[i] = f.ProcessSample(x)
	}
}

// Reset clears the delay line to zero.
func (f *Filter) Reset() {
	clear(f.line)
	f.pos = 0
}

// Len returns the number of taps.
func (f *Filter) Len() int {
	return len(f.coeffs)
}

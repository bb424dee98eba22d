package allpass

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-pedalfx/dsp/arena"
	"github.com/cwbudde/algo-pedalfx/dsp/param"
)

// ErrInvalidSize is returned for a non-positive stage length.
var ErrInvalidSize = errors.New("allpass: size must be > 0")

// Stage is a single allpass section:
//
//	out    = buf[i] + k*in
//	buf[i] = in - k*out
type Stage struct {
	buf    []float64
	idx    int
	coeff  float64
	handle param.Handle
}

// New returns a heap-backed stage of the given length and coefficient.
func New(size int, coeff float64) (*Stage, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return &Stage{buf: make([]float64, size), coeff: coeff}, nil
}

// NewFromArena returns a stage whose buffer is carved from a.
func NewFromArena(a *arena.Arena, tier arena.Tier, size int, coeff float64) (*Stage, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	buf, err := a.Float64s(tier, size)
	if err != nil {
		return nil, fmt.Errorf("allpass: allocate %d samples: %w", size, err)
	}
	return &Stage{buf: buf, coeff: coeff}, nil
}

// Bind makes ProcessShared read coefficient h.
func (s *Stage) Bind(h param.Handle) { s.handle = h }

// Handle returns the bound coefficient handle.
func (s *Stage) Handle() param.Handle { return s.handle }

// SetCoeff sets the coefficient used by Process.
func (s *Stage) SetCoeff(k float64) { s.coeff = k }

// Coeff returns the coefficient used by Process.
func (s *Stage) Coeff() float64 { return s.coeff }

// Len returns the buffer length in samples.
func (s *Stage) Len() int { return len(s.buf) }

// Process filters one sample with the stage's own coefficient.
func (s *Stage) Process(in float64) float64 {
	return s.step(in, s.coeff)
}

// ProcessShared filters one sample with the live value of the bound
// handle in bank.
func (s *Stage) ProcessShared(in float64, bank *param.Bank) float64 {
	return s.step(in, bank.Value(s.handle))
}

func (s *Stage) step(in, k float64) float64 {
	out := s.buf[s.idx] + k*in
	s.buf[s.idx] = in - k*out
	s.idx++
	if s.idx >= len(s.buf) {
		s.idx = 0
	}
	return out
}

// ProcessBlock filters buf in place with the stage's own coefficient.
func (s *Stage) ProcessBlock(buf []float64) {
	for i, x := range buf {
		buf[i] = s.step(x, s.coeff)
	}
}

func (s *Stage) wrap(i int) int {
	n := len(s.buf)
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// Tap reads offset samples behind the current index, blending linearly
// toward the next older sample by frac. It is used to modulate the stage
// together with WriteToOffset.
func (s *Stage) Tap(offset int, frac float64) float64 {
	i := s.wrap(s.idx - offset)
	if frac == 0 {
		return s.buf[i]
	}
	j := i - 1
	if j < 0 {
		j += len(s.buf)
	}
	return s.buf[i]*(1-frac) + s.buf[j]*frac
}

// WriteToOffset stores x offset samples behind the current index.
func (s *Stage) WriteToOffset(x float64, offset int) {
	s.buf[s.wrap(s.idx-offset)] = x
}

// UpdateIndex advances the index without filtering.
func (s *Stage) UpdateIndex() {
	s.idx++
	if s.idx >= len(s.buf) {
		s.idx = 0
	}
}

// Reset zeroes the buffer and rewinds the index.
func (s *Stage) Reset() {
	clear(s.buf)
	s.idx = 0
}

// ResetRange zeroes buffer positions [start, end), clamped to the buffer.
func (s *Stage) ResetRange(start, end int) {
	if start < 0 {
		start = 0
	}
	if end > len(s.buf) {
		end = len(s.buf)
	}
	if start >= end {
		return
	}
	clear(s.buf[start:end])
}

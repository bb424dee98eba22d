// Package lfo provides the fixed-point sine oscillator that modulates
// delay taps in the reverb and delay engines.
package lfo

import (
	"math"
)

// Phase offsets in 1/256 turns.
const (
	Phase0   uint8 = 0
	Phase60  uint8 = 43
	Phase90  uint8 = 64
	Phase120 uint8 = 85
	Phase180 uint8 = 128
)

const (
	tableSize = 256
	fracMask  = 0x00FFFFFF
	fullScale = 0x7FFF
)

// sineTable holds one period of a 16-bit sine plus a guard point.
var sineTable = func() [tableSize + 1]int32 {
	var t [tableSize + 1]int32
	for i := range t {
		t[i] = int32(math.Round(fullScale * math.Sin(2*math.Pi*float64(i)/tableSize)))
	}
	return t
}()

// LFO is a 32-bit phase accumulator driving a table sine. Its output is a
// delay offset in samples in [0, 2*depth], split into an integer and a
// fractional part so it can feed delay.Line.Tap directly.
type LFO struct {
	acc        uint32
	adder      uint32
	divider    int32
	sampleRate float64
}

// New returns an oscillator at rateHz with the given depth in samples.
func New(sampleRate, rateHz float64, depth int) *LFO {
	l := &LFO{sampleRate: sampleRate}
	l.SetRate(rateHz)
	l.SetDepth(depth)
	return l
}

// SetRate sets the frequency in Hz. Negative rates are treated as 0.
func (l *LFO) SetRate(hz float64) {
	if !(hz > 0) || l.sampleRate <= 0 {
		l.adder = 0
		return
	}
	inc := hz * math.MaxUint32 / l.sampleRate
	if inc >= math.MaxUint32 {
		inc = math.MaxUint32
	}
	l.adder = uint32(inc)
}

// SetDepth sets the peak excursion in samples. A depth of 0 parks the
// output at zero offset.
func (l *LFO) SetDepth(depth int) {
	if depth <= 0 {
		l.divider = 0
		return
	}
	l.divider = int32((fullScale + depth/2) / depth)
}

// Increment returns the per-sample phase step.
func (l *LFO) Increment() uint32 { return l.adder }

// Reset rewinds the phase to zero.
func (l *LFO) Reset() { l.acc = 0 }

// Update advances the phase by one sample.
func (l *LFO) Update() {
	l.acc += l.adder
}

// Get returns the current output at the given phase offset as an integer
// sample offset and a fractional remainder in [0, 1).
func (l *LFO) Get(phase uint8) (int, float64) {
	if l.divider == 0 {
		return 0, 0
	}
	idx := (l.acc>>24 + uint32(phase)) & 0xFF
	y0 := int64(sineTable[idx] + fullScale)
	y1 := int64(sineTable[idx+1] + fullScale)

	f := int64(l.acc & fracMask)
	y := (y0*(fracMask-f) + y1*f) >> 24

	ip, frac := math.Modf(float64(y) / float64(l.divider))
	return int(ip), frac
}

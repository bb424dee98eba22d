package pitch

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-pedalfx/dsp/arena"
	"github.com/cwbudde/algo-pedalfx/dsp/core"
	"github.com/cwbudde/algo-pedalfx/dsp/filter/damping"
)

const (
	shifterBufBits  = 12
	ShifterBufSize  = 1 << shifterBufBits
	shifterBufMask  = ShifterBufSize - 1
	shifterFracBits = 32 - shifterBufBits
	shifterFracMask = 1<<shifterFracBits - 1

	// unityAdder advances the read pointer by exactly one sample.
	unityAdder = 1 << shifterFracBits

	halfTurn = 0x80000000

	xfadeFracBits = 23
	xfadeFracMask = 1<<xfadeFracBits - 1

	// MinSemitones and MaxSemitones bound SetSemitones.
	MinSemitones = -12
	MaxSemitones = 24

	maxShifterRatio = 4.0

	toneHPCoeff = 0.003
	toneLPCoeff = 0.26
)

// xfadeTable is a rising raised-cosine from 0 to 1 with a guard point.
var xfadeTable = func() [257]float64 {
	var t [257]float64
	for i := range t {
		t[i] = 0.5 - 0.5*math.Cos(math.Pi*float64(i)/256)
	}
	return t
}()

// Shifter is a two-tap delay-line pitch shifter. A read pointer moves
// through a 4096-sample ring at the pitch ratio while input is written at
// unit rate. A second tap half a buffer away is crossfaded in whenever the
// first approaches the write position.
//
// The output passes through a shelving tone filter and a linear dry/wet
// mix. With mix 0 or a ratio of exactly 1 the input is returned unchanged
// (the ring is still fed so the shifter can be re-engaged seamlessly).
type Shifter struct {
	buf   []float64
	write uint32
	read  uint32
	adder uint32

	mix      float64
	toneGain float64
	tone     *damping.Shelving
}

// NewShifter returns a heap-backed shifter at unity pitch, full wet and
// open tone.
func NewShifter() *Shifter {
	return newShifter(make([]float64, ShifterBufSize))
}

// NewShifterFromArena returns a shifter whose ring is carved from a.
func NewShifterFromArena(a *arena.Arena, tier arena.Tier) (*Shifter, error) {
	buf, err := a.Float64s(tier, ShifterBufSize)
	if err != nil {
		return nil, fmt.Errorf("pitch: allocate shifter ring: %w", err)
	}
	return newShifter(buf), nil
}

func newShifter(buf []float64) *Shifter {
	return &Shifter{
		buf:      buf,
		adder:    unityAdder,
		mix:      1,
		toneGain: 1,
		tone:     damping.NewShelving(toneHPCoeff, 0, toneLPCoeff, 1),
	}
}

// SetPitch sets the pitch ratio, clamped to [0, 4].
func (s *Shifter) SetPitch(ratio float64) {
	ratio = core.Clamp(ratio, 0, maxShifterRatio)
	s.adder = uint32(float64(unityAdder) * ratio)
}

// SetSemitones sets the pitch in equal-tempered semitones, clamped to
// [MinSemitones, MaxSemitones].
func (s *Shifter) SetSemitones(semitones int) {
	semitones = min(max(semitones, MinSemitones), MaxSemitones)
	s.SetPitch(SemitoneRatio(semitones))
}

// SemitoneRatio returns the frequency ratio of an equal-tempered interval.
func SemitoneRatio(semitones int) float64 {
	return math.Exp2(float64(semitones) / 12)
}

// Pitch returns the current pitch ratio.
func (s *Shifter) Pitch() float64 {
	return float64(s.adder) / unityAdder
}

// SetTone sets the treble gain of the output filter in [0, 1].
func (s *Shifter) SetTone(t float64) { s.toneGain = core.Clamp01(t) }

// SetMix sets the wet fraction in [0, 1].
func (s *Shifter) SetMix(m float64) { s.mix = core.Clamp01(m) }

// Mix returns the wet fraction.
func (s *Shifter) Mix() float64 { return s.mix }

// Bypassed reports whether Process currently returns its input.
func (s *Shifter) Bypassed() bool {
	return s.mix == 0 || s.adder == unityAdder
}

func (s *Shifter) tap(addr uint32) float64 {
	idx := (addr >> shifterFracBits) & shifterBufMask
	f := float64(addr&shifterFracMask) / shifterFracMask
	return s.buf[idx]*(1-f) + s.buf[(idx+1)&shifterBufMask]*f
}

// Process shifts one sample.
func (s *Shifter) Process(x float64) float64 {
	s.buf[s.write] = x
	s.read += s.adder

	if s.Bypassed() {
		s.write = (s.write + 1) & shifterBufMask
		return x
	}

	main := s.tap(s.read)
	half := s.tap(s.read + halfTurn)

	// Distance between the pointers picks the crossfade position. The upper
	// 9 bits cover a fade in followed by a fade out.
	dist := s.read - s.write<<shifterFracBits
	pos := (dist >> xfadeFracBits) & 0x1FF
	df := float64(dist&xfadeFracMask) / xfadeFracMask
	i := pos & 0xFF
	k := xfadeTable[i]*(1-df) + xfadeTable[i+1]*df
	if pos > 0xFF {
		k = 1 - k
	}
	y := main*k + half*(1-k)

	s.write = (s.write + 1) & shifterBufMask
	y = s.tone.Process(y, s.toneGain, 0)
	return y*s.mix + x*(1-s.mix)
}

// ProcessBlock shifts buf in place.
func (s *Shifter) ProcessBlock(buf []float64) {
	for i, x := range buf {
		buf[i] = s.Process(x)
	}
}

// Len returns the ring size in samples.
func (s *Shifter) Len() int { return len(s.buf) }

// ResetRange zeroes ring positions [start, end).
func (s *Shifter) ResetRange(start, end int) {
	start = max(start, 0)
	end = min(end, len(s.buf))
	if start >= end {
		return
	}
	clear(s.buf[start:end])
}

// Reset clears the ring, pointers and tone filter. Pitch, tone and mix
// settings are kept.
func (s *Shifter) Reset() {
	clear(s.buf)
	s.read = 0
	s.write = 0
	s.tone.Reset()
}

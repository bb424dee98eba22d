package damping

import (
	"github.com/cwbudde/algo-pedalfx/dsp/param"
)

// DampStep is the largest per-sample change of either shelf gain.
const DampStep = 0.02

// Shelving is a one-pole LP/HP shelving damper.
type Shelving struct {
	lpCoeff float64
	hpCoeff float64
	lpReg   float64
	hpReg   float64

	hi param.Ramp
	lo param.Ramp

	hiHandle param.Handle
	loHandle param.Handle
}

// NewShelving returns a damper with the given one-pole coefficients
// (0..1, fraction of the remaining distance per sample) and initial shelf
// gains.
func NewShelving(hpCoeff, loDamp, lpCoeff, hiDamp float64) *Shelving {
	return &Shelving{
		lpCoeff: lpCoeff,
		hpCoeff: hpCoeff,
		hi:      param.Ramp{Value: hiDamp, Step: DampStep},
		lo:      param.Ramp{Value: loDamp, Step: DampStep},
	}
}

// Bind selects the bank coefficients read by ProcessShared.
func (s *Shelving) Bind(hiDamp, loDamp param.Handle) {
	s.hiHandle = hiDamp
	s.loHandle = loDamp
}

// SetCoefficients changes the lowpass and highpass corner coefficients.
func (s *Shelving) SetCoefficients(hpCoeff, lpCoeff float64) {
	s.hpCoeff = hpCoeff
	s.lpCoeff = lpCoeff
}

// Process filters one sample, slewing the shelf gains toward hiDamp and
// loDamp.
func (s *Shelving) Process(in, hiDamp, loDamp float64) float64 {
	hi := s.hi.Next(hiDamp)
	lo := s.lo.Next(loDamp)

	s.lpReg += (in - s.lpReg) * s.lpCoeff
	treble := in - s.lpReg
	s.hpReg += (s.lpReg - s.hpReg) * s.hpCoeff

	return s.lpReg + hi*treble + lo*s.hpReg
}

// ProcessShared filters one sample using the bound bank coefficients.
func (s *Shelving) ProcessShared(in float64, bank *param.Bank) float64 {
	return s.Process(in, bank.Value(s.hiHandle), bank.Value(s.loHandle))
}

// Gains returns the current (slewed) high and low shelf gains.
func (s *Shelving) Gains() (hiDamp, loDamp float64) {
	return s.hi.Value, s.lo.Value
}

// Reset clears the filter state. Shelf gains are kept.
func (s *Shelving) Reset() {
	s.lpReg = 0
	s.hpReg = 0
}

// Lowpass is a plain one-pole lowpass with an externally supplied
// coefficient.
type Lowpass struct {
	reg float64
}

// Process filters one sample with coefficient k.
func (l *Lowpass) Process(in, k float64) float64 {
	l.reg += (in - l.reg) * k
	return l.reg
}

// Reset clears the filter state.
func (l *Lowpass) Reset() { l.reg = 0 }

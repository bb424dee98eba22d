package param

import "math"

// Smoother is a one-pole interpolator: each Next moves Value by
// Coeff times the remaining distance to the target.
type Smoother struct {
	Value float64
	Coeff float64
}

// NewSmoother returns a smoother starting at initial.
func NewSmoother(initial, coeff float64) Smoother {
	return Smoother{Value: initial, Coeff: coeff}
}

// Next advances toward target and returns the new value.
func (s *Smoother) Next(target float64) float64 {
	s.Value += (target - s.Value) * s.Coeff
	return s.Value
}

// Ramp moves toward its target by at most Step per call.
type Ramp struct {
	Value float64
	Step  float64
}

// Next advances toward target and returns the new value.
func (r *Ramp) Next(target float64) float64 {
	d := target - r.Value
	if math.Abs(d) <= r.Step {
		r.Value = target
	} else if d > 0 {
		r.Value += r.Step
	} else {
		r.Value -= r.Step
	}
	return r.Value
}

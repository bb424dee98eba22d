package core

// powerMixCurve bends the crossfade so wet^0.5 + dry^0.5 stays near
// constant energy across the whole travel. Tuned by ear.
const powerMixCurve = 1.4186

// PowerMix maps a dry/wet position in [0, 1] (0 = dry only, 1 = wet only)
// onto an energy-constant pair of gains.
func PowerMix(mix float64) (wet, dry float64) {
	mix = Clamp01(mix)
	inv := 1 - mix
	a := mix * inv
	b := a * (1 + powerMixCurve*a)
	c := b + mix
	d := b + inv
	return c * c, d * d
}

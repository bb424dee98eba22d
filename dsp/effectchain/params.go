package effectchain

import "math"

// Params holds the parsed parameters for a single rack node.
type Params struct {
	ID       string
	Type     string
	Bypassed bool
	Num      map[string]float64
	Str      map[string]string
}

// GetNum safely extracts a numeric parameter, returning def if missing or invalid.
func (p Params) GetNum(key string, def float64) float64 {
	if v, ok := p.LookupNum(key); ok {
		return v
	}

	return def
}

// LookupNum reports a finite numeric parameter and whether it was set.
func (p Params) LookupNum(key string) (float64, bool) {
	if p.Num == nil {
		return 0, false
	}

	v, ok := p.Num[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}

	return v, true
}

// GetStr returns a string parameter, or def if missing.
func (p Params) GetStr(key, def string) string {
	if v, ok := p.Str[key]; ok {
		return v
	}

	return def
}

// numSetter applies one numeric parameter to an engine.
type numSetter struct {
	key string
	set func(float64)
}

// applyNum calls each setter whose key is present, so a partial preset
// leaves the other controls where they are.
func applyNum(p Params, setters []numSetter) {
	for _, s := range setters {
		if v, ok := p.LookupNum(s.key); ok {
			s.set(v)
		}
	}
}

package effectchain

// stubRuntime is a minimal Runtime implementation for testing.
type stubRuntime struct {
	configureErr   error
	configureCalls int
	processCalls   int
	lastCtx        Context
	lastParams     Params
	bypassed       bool
}

func (s *stubRuntime) Configure(ctx Context, params Params) error {
	s.configureCalls++
	s.lastCtx = ctx
	s.lastParams = params

	return s.configureErr
}

func (s *stubRuntime) Process(inL, inR, outL, outR []float64) {
	s.processCalls++
	copy(outL, inL)
	copy(outR, inR)
}

func (s *stubRuntime) SetBypass(on bool) {
	s.bypassed = on
}

// gainRuntime multiplies every sample by a fixed gain.
type gainRuntime struct {
	gain float64
}

func (g *gainRuntime) Configure(_ Context, params Params) error {
	g.gain = params.GetNum("gain", 1.0)

	return nil
}

func (g *gainRuntime) Process(inL, inR, outL, outR []float64) {
	for i := range inL {
		outL[i] = inL[i] * g.gain
		outR[i] = inR[i] * g.gain
	}
}

// addRuntime adds a constant to every sample, so node order shows in the output.
type addRuntime struct {
	value float64
}

func (a *addRuntime) Configure(_ Context, params Params) error {
	a.value = params.GetNum("value", 0)

	return nil
}

func (a *addRuntime) Process(inL, inR, outL, outR []float64) {
	for i := range inL {
		outL[i] = inL[i] + a.value
		outR[i] = inR[i] + a.value
	}
}

// swapRuntime exchanges the channels.
type swapRuntime struct{}

func (swapRuntime) Configure(Context, Params) error { return nil }

func (swapRuntime) Process(inL, inR, outL, outR []float64) {
	copy(outL, inR)
	copy(outR, inL)
}

// testRegistry creates a registry with simple test effects.
func testRegistry() *Registry {
	r := NewRegistry()

	r.MustRegister("stub", func(_ Context) (Runtime, error) {
		return &stubRuntime{}, nil
	})
	r.MustRegister("gain", func(_ Context) (Runtime, error) {
		return &gainRuntime{gain: 1.0}, nil
	})
	r.MustRegister("add", func(_ Context) (Runtime, error) {
		return &addRuntime{}, nil
	})
	r.MustRegister("swap", func(_ Context) (Runtime, error) {
		return swapRuntime{}, nil
	})

	return r
}

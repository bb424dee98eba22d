package effectchain

import "github.com/cwbudde/algo-pedalfx/dsp/lifecycle"

// Runtime is the per-node processing and configuration contract. Process
// reads one stereo block and writes the next; inputs and outputs never
// alias.
type Runtime interface {
	Configure(ctx Context, params Params) error
	Process(inL, inR, outL, outR []float64)
}

// engine is the control surface every built-in processor shares.
type engine interface {
	ProcessBlock(inL, inR, outL, outR []float64)
	SetBypass(on bool)
	SetBypassMode(m lifecycle.Mode)
	SetFreeze(on bool) error
	Initialized() bool
}

package reverb

import (
	"github.com/cwbudde/algo-pedalfx/dsp/allpass"
	"github.com/cwbudde/algo-pedalfx/dsp/arena"
	"github.com/cwbudde/algo-pedalfx/dsp/core"
	"github.com/cwbudde/algo-pedalfx/dsp/delay"
	"github.com/cwbudde/algo-pedalfx/dsp/effects/pitch"
)

// Option configures an engine at construction.
type Option func(*options)

type options struct {
	procOpts []core.ProcessorOption
	arena    *arena.Arena
	tier     arena.Tier
	plate    PlateLayout
	spring   SpringLayout
	lines    [scatterLines]ScatterLine
}

func defaultOptions() options {
	return options{
		tier:   arena.Slow,
		plate:  DefaultPlateLayout,
		spring: DefaultSpringLayout,
		lines:  DefaultScatterTable,
	}
}

func applyOptions(opts []Option) (options, core.ProcessorConfig) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o, core.ApplyProcessorOptions(o.procOpts...)
}

// WithProcessorOptions passes sample rate, block size and logger settings.
func WithProcessorOptions(opts ...core.ProcessorOption) Option {
	return func(o *options) { o.procOpts = append(o.procOpts, opts...) }
}

// WithArena carves every delay buffer from a in the given tier. Without
// it the engine allocates from the heap.
func WithArena(a *arena.Arena, tier arena.Tier) Option {
	return func(o *options) {
		o.arena = a
		o.tier = tier
	}
}

// WithPlateLayout overrides the plate buffer sizes and taps.
func WithPlateLayout(l PlateLayout) Option {
	return func(o *options) { o.plate = l }
}

// WithSpringLayout overrides the spring loop sizes.
func WithSpringLayout(l SpringLayout) Option {
	return func(o *options) { o.spring = l }
}

// WithScatterTable overrides the scattering line parameters.
func WithScatterTable(t [scatterLines]ScatterLine) Option {
	return func(o *options) { o.lines = t }
}

// allocator builds primitives from the configured memory source and keeps
// the first failure. Everything requested after a failure comes back nil.
type allocator struct {
	arena *arena.Arena
	tier  arena.Tier
	err   error
}

func (al *allocator) line(n int) *delay.Line {
	if al.err != nil {
		return nil
	}
	var (
		l   *delay.Line
		err error
	)
	if al.arena != nil {
		l, err = delay.NewFromArena(al.arena, al.tier, n)
	} else {
		l, err = delay.New(n)
	}
	al.err = err
	return l
}

func (al *allocator) stage(n int, k float64) *allpass.Stage {
	if al.err != nil {
		return nil
	}
	var (
		s   *allpass.Stage
		err error
	)
	if al.arena != nil {
		s, err = allpass.NewFromArena(al.arena, al.tier, n, k)
	} else {
		s, err = allpass.New(n, k)
	}
	al.err = err
	return s
}

func (al *allocator) shifter() *pitch.Shifter {
	if al.err != nil {
		return nil
	}
	if al.arena == nil {
		return pitch.NewShifter()
	}
	s, err := pitch.NewShifterFromArena(al.arena, al.tier)
	al.err = err
	return s
}

func (al *allocator) floats(n int) []float64 {
	if al.err != nil {
		return nil
	}
	if al.arena == nil {
		return make([]float64, n)
	}
	buf, err := al.arena.Float64s(al.tier, n)
	al.err = err
	return buf
}

// sampleAt reads an input block, treating a missing or short block as
// silence.
func sampleAt(in []float64, i int) float64 {
	if i < len(in) {
		return in[i]
	}
	return 0
}

// blockLen is the number of samples an engine writes for one block.
func blockLen(outL, outR []float64) int {
	return min(len(outL), len(outR))
}

package effectchain

import (
	"fmt"

	"github.com/cwbudde/algo-pedalfx/dsp/conv"
	"github.com/cwbudde/algo-pedalfx/dsp/core"
	"github.com/cwbudde/algo-pedalfx/dsp/effects"
	"github.com/cwbudde/algo-pedalfx/dsp/effects/reverb"
	"github.com/cwbudde/algo-pedalfx/dsp/lifecycle"
)

// Built-in node types.
const (
	TypePlate      = "plate"
	TypeScattering = "scattering"
	TypeSpring     = "spring"
	TypeCabinet    = "cabinet"
	TypeDelay      = "delay"
)

type registryConfig struct {
	irProvider IRProvider
}

// RegistryOption configures the default registry.
type RegistryOption func(*registryConfig)

// WithIRProvider sets where cabinet nodes load impulse responses from.
func WithIRProvider(p IRProvider) RegistryOption {
	return func(c *registryConfig) { c.irProvider = p }
}

func processorOptions(ctx Context) []core.ProcessorOption {
	return []core.ProcessorOption{
		core.WithSampleRate(ctx.SampleRate),
		core.WithBlockSize(ctx.BlockSize),
		core.WithLogger(ctx.Logger),
	}
}

// DefaultRegistry returns a Registry pre-populated with the built-in engines.
func DefaultRegistry(opts ...RegistryOption) *Registry {
	cfg := &registryConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := NewRegistry()

	r.MustRegister(TypePlate, func(ctx Context) (Runtime, error) {
		fx, err := reverb.NewPlate(reverb.WithProcessorOptions(processorOptions(ctx)...))
		if err != nil {
			return nil, err
		}

		return &plateRuntime{engineBase{fx}, fx}, nil
	})
	r.MustRegister(TypeScattering, func(ctx Context) (Runtime, error) {
		fx, err := reverb.NewScattering(reverb.WithProcessorOptions(processorOptions(ctx)...))
		if err != nil {
			return nil, err
		}

		return &scatteringRuntime{engineBase{fx}, fx}, nil
	})
	r.MustRegister(TypeSpring, func(ctx Context) (Runtime, error) {
		fx, err := reverb.NewSpring(reverb.WithProcessorOptions(processorOptions(ctx)...))
		if err != nil {
			return nil, err
		}

		return &springRuntime{engineBase{fx}, fx}, nil
	})
	r.MustRegister(TypeCabinet, func(ctx Context) (Runtime, error) {
		fx, err := conv.NewCabinet(conv.WithCabinetProcessorOptions(processorOptions(ctx)...))
		if err != nil {
			return nil, err
		}

		return &cabinetRuntime{engineBase: engineBase{fx}, fx: fx, provider: cfg.irProvider}, nil
	})
	r.MustRegister(TypeDelay, func(ctx Context) (Runtime, error) {
		fx, err := effects.NewStereoDelay(effects.WithDelayProcessorOptions(processorOptions(ctx)...))
		if err != nil {
			return nil, err
		}

		return &delayRuntime{engineBase: engineBase{fx}, fx: fx}, nil
	})

	return r
}

// engineBase carries the processing and lifecycle controls every engine
// shares.
type engineBase struct {
	fx engine
}

func (b engineBase) Process(inL, inR, outL, outR []float64) {
	b.fx.ProcessBlock(inL, inR, outL, outR)
}

func (b engineBase) SetBypass(on bool) {
	b.fx.SetBypass(on)
}

// configureLifecycle applies the "mode" and "freeze" parameters and the
// node's bypass flag. Bypass goes first since engaging it ends a freeze.
func (b engineBase) configureLifecycle(p Params) error {
	if s, ok := p.Str["mode"]; ok {
		m, ok := lifecycle.ParseMode(s)
		if !ok {
			return fmt.Errorf("%w: bypass mode %q", ErrInvalidParam, s)
		}

		b.fx.SetBypassMode(m)
	}

	b.fx.SetBypass(p.Bypassed)

	if v, ok := p.LookupNum("freeze"); ok {
		err := b.fx.SetFreeze(v >= 0.5)
		if err != nil && v >= 0.5 {
			return err
		}
	}

	return nil
}

type plateRuntime struct {
	engineBase
	fx *reverb.Plate
}

func (rt *plateRuntime) Configure(_ Context, p Params) error {
	fx := rt.fx
	applyNum(p, []numSetter{
		{"size", fx.SetSize},
		{"hiDamp", fx.SetHiDamp},
		{"loDamp", fx.SetLoDamp},
		{"lowpass", fx.SetLowpass},
		{"hipass", fx.SetHipass},
		{"diffusion", fx.SetDiffusion},
		{"bleed", fx.SetFreezeBleedIn},
		{"chorus", fx.SetChorus},
		{"mix", fx.SetMix},
		{"wet", fx.SetWetLevel},
		{"dry", fx.SetDryLevel},
		{"shimmer", fx.SetShimmer},
		{"shimmerSemitones", func(v float64) { fx.SetShimmerSemitones(int(v)) }},
		{"pitchSemitones", func(v float64) { fx.SetPitchSemitones(int(v)) }},
		{"pitchMix", fx.SetPitchMix},
	})

	return rt.configureLifecycle(p)
}

type scatteringRuntime struct {
	engineBase
	fx *reverb.Scattering
}

func (rt *scatteringRuntime) Configure(_ Context, p Params) error {
	fx := rt.fx
	applyNum(p, []numSetter{
		{"size", fx.SetSize},
		{"lowpass", fx.SetLowpass},
		{"bleed", fx.SetFreezeBleedIn},
		{"mix", fx.SetMix},
		{"wet", fx.SetWetLevel},
		{"dry", fx.SetDryLevel},
	})

	return rt.configureLifecycle(p)
}

type springRuntime struct {
	engineBase
	fx *reverb.Spring
}

func (rt *springRuntime) Configure(_ Context, p Params) error {
	fx := rt.fx
	applyNum(p, []numSetter{
		{"time", fx.SetTime},
		{"trebleCut", fx.SetTrebleCut},
		{"bassCut", fx.SetBassCut},
		{"mix", fx.SetMix},
		{"wet", fx.SetWetLevel},
		{"dry", fx.SetDryLevel},
	})

	return rt.configureLifecycle(p)
}

type delayRuntime struct {
	engineBase
	fx         *effects.StereoDelay
	configured bool
}

// Configure applies the delay controls. The first preset jumps straight
// to its delay time; later ones glide.
func (rt *delayRuntime) Configure(ctx Context, p Params) error {
	fx := rt.fx
	force := !rt.configured
	applyNum(p, []numSetter{
		{"time", func(v float64) { fx.SetTime(v, force) }},
		{"timeMs", func(v float64) { fx.SetDelaySamples(int(v * ctx.SampleRate / 1000)) }},
		{"feedback", fx.SetFeedback},
		{"inertia", fx.SetInertia},
		{"treble", fx.SetTreble},
		{"trebleCut", fx.SetTrebleCut},
		{"bass", fx.SetBass},
		{"bassCut", fx.SetBassCut},
		{"mix", fx.SetMix},
		{"modRate", fx.SetModRate},
		{"modDepth", fx.SetModDepth},
	})
	rt.configured = true

	return rt.configureLifecycle(p)
}

type cabinetRuntime struct {
	engineBase
	fx       *conv.Cabinet
	provider IRProvider
	irName   string
	irGain   float64
}

// Latency is the cabinet's FIFO delay while it convolves. A bypassed
// cabinet passes audio through undelayed.
func (rt *cabinetRuntime) Latency() int {
	if rt.fx.Bypassed() {
		return 0
	}

	return rt.fx.Latency()
}

// Configure loads the "ir" response when its name or "irGain" changes.
// The load is synchronous; the new response is heard from the next block.
func (rt *cabinetRuntime) Configure(_ Context, p Params) error {
	fx := rt.fx
	applyNum(p, []numSetter{
		{"inputGain", fx.SetInputGain},
		{"doubler", func(v float64) { fx.SetDoubler(v >= 0.5) }},
	})

	name := p.GetStr("ir", "")
	gain := p.GetNum("irGain", 1)

	if name != "" && (name != rt.irName || gain != rt.irGain) {
		if rt.provider == nil {
			return fmt.Errorf("%w: cannot load %q", ErrNoIRProvider, name)
		}

		ir, err := rt.provider.LoadIR(name)
		if err != nil {
			return err
		}

		err = fx.Load(ir.Samples, ir.Gain*gain)
		if err != nil {
			return err
		}

		rt.irName, rt.irGain = name, gain
	}

	return rt.configureLifecycle(p)
}

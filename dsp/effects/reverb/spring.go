package reverb

import (
	"fmt"

	"github.com/cwbudde/algo-pedalfx/dsp/allpass"
	"github.com/cwbudde/algo-pedalfx/dsp/core"
	"github.com/cwbudde/algo-pedalfx/dsp/delay"
	"github.com/cwbudde/algo-pedalfx/dsp/filter/damping"
	"github.com/cwbudde/algo-pedalfx/dsp/lfo"
	"github.com/cwbudde/algo-pedalfx/dsp/lifecycle"
	"github.com/cwbudde/algo-pedalfx/dsp/param"
	"github.com/sirupsen/logrus"
)

const (
	springChains = 16

	springAllpassCoeff = 0.6
	springTrebleLoss   = 0.55
	springBassLoss     = 0.36
	springInputTreble  = 0.95
	springBassBoost    = 2.5

	springTimeMin     = 0.7
	springTimeMax     = 0.97
	springTimeDefault = 0.8
	springInputMax    = 0.5
	springInputMin    = 0.2

	springLFOHz    = 1.35
	springLFODepth = 10
	springWetMax   = 6.0
)

var springChirpCoeffs = [4]float64{-0.7, -0.65, -0.6, -0.5}

// SpringLayout holds the loop and chirp sizes of a spring tank.
type SpringLayout struct {
	LoopA [4]int
	LoopB [4]int
	Delay [2]int
	Chirp [4]int
}

// DefaultSpringLayout is the 44.1 kHz spring.
var DefaultSpringLayout = SpringLayout{
	LoopA: [4]int{224, 420, 856, 1089},
	LoopB: [4]int{156, 478, 956, 1289},
	Delay: [2]int{1945, 1363},
	Chirp: [4]int{3, 5, 6, 7},
}

func (l SpringLayout) validate() error {
	for i := range 4 {
		if l.LoopA[i] <= 0 || l.LoopB[i] <= 0 || l.Chirp[i] <= 0 {
			return fmt.Errorf("%w: spring buffer size", ErrInvalidLayout)
		}
	}
	if l.LoopA[3] <= 2*springLFODepth+2 || l.LoopB[3] <= 2*springLFODepth+2 {
		return fmt.Errorf("%w: spring modulated allpass too short", ErrInvalidLayout)
	}
	if l.Delay[0] <= 0 || l.Delay[1] <= 0 {
		return fmt.Errorf("%w: spring delay size", ErrInvalidLayout)
	}
	return nil
}

// chirpBank is 16 short allpass chains sharing one buffer. Chains 0-3 of
// every group of 8 process the left channel, 4-7 the right.
type chirpBank struct {
	length int
	buf    lifecycle.Floats
	idx    [springChains]int
}

func (c *chirpBank) step(chain int, x, k float64) float64 {
	i := chain*c.length + c.idx[chain]
	out := c.buf[i] + k*x
	c.buf[i] = x - k*out
	c.idx[chain]++
	if c.idx[chain] >= c.length {
		c.idx[chain] = 0
	}
	return out
}

func (c *chirpBank) process(l, r float64) (float64, float64) {
	for j := 0; j < springChains; j += 8 {
		for s := range 4 {
			l = c.step(j+s, l, springChirpCoeffs[s])
		}
		for s := range 4 {
			r = c.step(j+4+s, r, springChirpCoeffs[3-s])
		}
	}
	return l, r
}

type springParams struct {
	rvTime    param.Handle
	inputGain param.Handle
	treble    param.Handle
	bassCut   param.Handle
	wet       param.Handle
	dry       param.Handle
}

// Spring is a stereo spring reverb model. A mono sum circulates through
// two damped allpass/delay loops, and the loop output is smeared by banks
// of very short allpass chains that mimic the dispersive chirp of a
// spring. Freeze is not supported.
type Spring struct {
	cfg core.ProcessorConfig
	log *logrus.Entry

	ctl         *lifecycle.Controller
	cleaner     *lifecycle.Cleaner
	initialized bool

	bank param.Bank
	h    springParams

	loopA, loopB [4]*allpass.Stage
	dly1, dly2   *delay.Line
	fltIn        *damping.Shelving
	flt1, flt2   *damping.Shelving
	chirps       [4]chirpBank
	mod          *lfo.LFO

	inGain param.Smoother
}

// NewSpring builds a spring reverb. On allocation failure the error wraps
// arena.ErrBudgetExceeded and the returned engine passes audio through.
func NewSpring(opts ...Option) (*Spring, error) {
	o, cfg := applyOptions(opts)
	s := &Spring{
		cfg:    cfg,
		log:    cfg.Log("spring"),
		ctl:    lifecycle.NewController(false),
		inGain: param.NewSmoother(springInputMax, inputSmoothing),
	}
	b := &s.bank
	s.h = springParams{
		rvTime:    b.Add(springTimeDefault, param.Immediate),
		inputGain: b.Add(springInputMax, param.Immediate),
		treble:    b.Add(1, param.Immediate),
		bassCut:   b.Add(0, param.Immediate),
	}
	wet, dry := core.PowerMix(0.5)
	s.h.wet = b.Add(wet, param.Immediate)
	s.h.dry = b.Add(dry, param.Immediate)

	if err := o.spring.validate(); err != nil {
		s.log.WithFields(logrus.Fields{"function": "NewSpring", "error": err}).Error("invalid layout")
		return s, err
	}

	al := allocator{arena: o.arena, tier: o.tier}
	for i := range 4 {
		s.loopA[i] = al.stage(o.spring.LoopA[i], springAllpassCoeff)
		s.loopB[i] = al.stage(o.spring.LoopB[i], springAllpassCoeff)
	}
	s.dly1 = al.line(o.spring.Delay[0])
	s.dly2 = al.line(o.spring.Delay[1])
	for i := range s.chirps {
		s.chirps[i].length = o.spring.Chirp[i]
		s.chirps[i].buf = al.floats(springChains * o.spring.Chirp[i])
	}
	if al.err != nil {
		s.log.WithFields(logrus.Fields{"function": "NewSpring", "error": al.err}).Error("buffer allocation failed, passing audio through")
		return s, fmt.Errorf("spring: %w", al.err)
	}

	s.fltIn = damping.NewShelving(springBassLoss, 0, springTrebleLoss, springInputTreble)
	s.flt1 = damping.NewShelving(springBassLoss, 0, springTrebleLoss, 1)
	s.flt2 = damping.NewShelving(springBassLoss, 0, springTrebleLoss, 1)
	s.mod = lfo.New(cfg.SampleRate, springLFOHz, springLFODepth)

	s.cleaner = lifecycle.NewCleaner(lifecycle.DefaultChunk)
	for i := range 4 {
		s.cleaner.Add(s.loopA[i], s.loopB[i])
	}
	s.cleaner.Add(s.dly1, s.dly2)
	for i := range s.chirps {
		s.cleaner.Add(s.chirps[i].buf)
	}
	s.cleaner.Finalize = func() {
		s.fltIn.Reset()
		s.flt1.Reset()
		s.flt2.Reset()
	}

	s.initialized = true
	s.log.WithFields(logrus.Fields{
		"function":   "NewSpring",
		"sampleRate": cfg.SampleRate,
		"samples":    s.cleaner.Total(),
	}).Debug("spring reverb ready")
	return s, nil
}

// Initialized reports whether every buffer was allocated.
func (s *Spring) Initialized() bool { return s.initialized }

// Lifecycle exposes the bypass controller.
func (s *Spring) Lifecycle() *lifecycle.Controller { return s.ctl }

// SetTime sets the decay from 0 (short) to 1 (long). Longer decays lower
// the input level.
func (s *Spring) SetTime(n float64) {
	n = core.MapRange(core.Clamp01(n), 0, 1, springTimeMin, springTimeMax)
	s.bank.Set(s.h.rvTime, n)
	s.bank.Set(s.h.inputGain, core.MapRange(n, 0, springTimeMax, springInputMax, springInputMin))
}

// Time returns the loop gain set by SetTime.
func (s *Spring) Time() float64 { return s.bank.Target(s.h.rvTime) }

// SetTrebleCut sets the treble loss inside the loops.
func (s *Spring) SetTrebleCut(n float64) {
	s.bank.Set(s.h.treble, 1-core.Clamp01(n))
}

// SetBassCut sets the bass loss of the input filter.
func (s *Spring) SetBassCut(n float64) {
	n = core.Clamp01(n)
	s.bank.Set(s.h.bassCut, -(2*n - n*n))
}

// SetMix sets an energy-constant dry/wet balance.
func (s *Spring) SetMix(m float64) {
	wet, dry := core.PowerMix(m)
	s.bank.Set(s.h.wet, wet)
	s.bank.Set(s.h.dry, dry)
}

// SetWetLevel sets the wet gain directly, 0..6.
func (s *Spring) SetWetLevel(v float64) { s.bank.Set(s.h.wet, core.Clamp(v, 0, springWetMax)) }

// SetDryLevel sets the dry gain directly, 0..1.
func (s *Spring) SetDryLevel(v float64) { s.bank.Set(s.h.dry, core.Clamp01(v)) }

// SetBypass enables or disables bypass.
func (s *Spring) SetBypass(on bool) { s.ctl.SetBypass(on) }

// SetBypassMode selects what the bypassed engine emits.
func (s *Spring) SetBypassMode(m lifecycle.Mode) { s.ctl.SetMode(m) }

// SetFreeze always fails: a spring tank has no sustain mode.
func (s *Spring) SetFreeze(on bool) error { return s.ctl.SetFreeze(on) }

// Bypassed reports the bypass flag.
func (s *Spring) Bypassed() bool { return s.ctl.Load().Bypassed() }

// ProcessBlock renders one stereo block. Inputs may be nil (silence) and
// may alias the outputs.
func (s *Spring) ProcessBlock(inL, inR, outL, outR []float64) {
	snap, run := s.ctl.BypassBlock(s.initialized, s.cleaner, inL, inR, outL, outR)
	if !run {
		return
	}
	if snap.Trails() {
		inL, inR = nil, nil
	}

	b := &s.bank
	b.Tick()
	rv := b.Value(s.h.rvTime)
	inTarget := b.Value(s.h.inputGain)
	treble := b.Value(s.h.treble)
	bassCut := b.Value(s.h.bassCut)
	bassGain := 1 - bassCut*springBassBoost
	wet, dry := b.Value(s.h.wet), b.Value(s.h.dry)
	modOffset := 2*springLFODepth + 1

	for i := range blockLen(outL, outR) {
		s.mod.Update()
		g := s.inGain.Next(inTarget)
		dryL, dryR := sampleAt(inL, i), sampleAt(inR, i)

		mono := s.fltIn.Process((dryL+dryR)*g, springInputTreble, bassCut) * bassGain

		lp1 := s.flt1.Process(s.dly1.Tap(0, 0)*rv, treble, 0)
		acc := lp1
		for _, ap := range s.loopA {
			acc = ap.Process(acc)
		}
		acc = s.dly2.Process(acc+mono) * rv
		s.dly2.UpdateIndex()
		lp2 := s.flt2.Process(acc, treble, 0)

		acc = lp2
		for _, ap := range s.loopB {
			acc = ap.Process(acc)
		}
		s.dly1.WriteToOffset(acc+mono, 0)
		s.dly1.UpdateIndex()

		l, r := lp1+lp2, lp1+lp2
		for c := range s.chirps {
			l, r = s.chirps[c].process(l, r)
		}

		n, fr := s.mod.Get(lfo.Phase0)
		s.loopA[3].WriteToOffset(s.loopA[3].Tap(n+1, fr), modOffset)
		n, fr = s.mod.Get(lfo.Phase90)
		s.loopB[3].WriteToOffset(s.loopB[3].Tap(n+1, fr), modOffset)

		outL[i] = l*wet + dryL*dry
		outR[i] = r*wet + dryR*dry
	}
}

package reverb

import (
	"fmt"

	"github.com/cwbudde/algo-pedalfx/dsp/allpass"
	"github.com/cwbudde/algo-pedalfx/dsp/core"
	"github.com/cwbudde/algo-pedalfx/dsp/delay"
	"github.com/cwbudde/algo-pedalfx/dsp/effects/pitch"
	"github.com/cwbudde/algo-pedalfx/dsp/filter/damping"
	"github.com/cwbudde/algo-pedalfx/dsp/lfo"
	"github.com/cwbudde/algo-pedalfx/dsp/lifecycle"
	"github.com/cwbudde/algo-pedalfx/dsp/param"
	"github.com/sirupsen/logrus"
)

const (
	plateAllpassCoeff = 0.65

	plateTrebleLoss = 0.3
	plateBassLoss   = 0.06

	plateMasterHP = 0.08
	plateMasterLP = 0.1

	plateTapWeight1 = 0.8
	plateTapWeight2 = 0.7
	plateTapWeight3 = 0.6
	plateTapWeight4 = 0.5

	plateTimeMin      = 0.2
	plateTimeMax      = 0.97
	plateTimeDefault  = 0.2
	plateInputGain    = 0.5
	plateLoDampScaler = 0.12

	plateDiffusionMin = 0.005
	plateDiffusionMax = 0.65

	plateBleedMax     = 0.1
	plateBleedDefault = 0.05
	plateWetMax       = 6.0

	plateLFO1Hz        = 1.35
	plateLFO2Hz        = 1.57
	plateChorusMin     = 1
	plateChorusMax     = 100
	plateChorusDefault = 20

	platePitchTone   = 0.36
	plateShimmerTone = 0.26
	plateShimmerRate = 2.0

	// inputSmoothing is the one-pole step of the input gain per sample.
	inputSmoothing = 0.25
)

// PlateLayout holds the buffer sizes and output taps of a plate.
type PlateLayout struct {
	InputL      [4]int
	InputR      [4]int
	LoopAllpass [4]int
	LoopDelay   [4]int
	TapL        [4]int
	TapR        [4]int
}

// DefaultPlateLayout is the 44.1 kHz plate.
var DefaultPlateLayout = PlateLayout{
	InputL:      [4]int{224, 420, 856, 1089},
	InputR:      [4]int{156, 520, 956, 1289},
	LoopAllpass: [4]int{2303, 2905, 3175, 2398},
	LoopDelay:   [4]int{3423, 4589, 4365, 3698},
	TapL:        [4]int{201, 145, 1897, 280},
	TapR:        [4]int{1897, 1245, 487, 780},
}

var plateTapWeights = [4]float64{plateTapWeight1, plateTapWeight2, plateTapWeight3, plateTapWeight4}

func (l PlateLayout) validate() error {
	for i := range 4 {
		for _, n := range []int{l.InputL[i], l.InputR[i], l.LoopAllpass[i], l.LoopDelay[i]} {
			if n <= 0 {
				return fmt.Errorf("%w: plate buffer size %d", ErrInvalidLayout, n)
			}
		}
		if l.TapL[i] < 0 || l.TapL[i] >= l.LoopDelay[i] || l.TapR[i] < 0 || l.TapR[i] >= l.LoopDelay[i] {
			return fmt.Errorf("%w: plate tap %d outside delay %d", ErrInvalidLayout, i, l.LoopDelay[i])
		}
		if l.LoopDelay[i] <= 2*plateChorusMax+2 {
			return fmt.Errorf("%w: plate delay %d too short for modulation", ErrInvalidLayout, l.LoopDelay[i])
		}
	}
	return nil
}

type plateParams struct {
	diffusion   param.Handle
	rvTime      param.Handle
	timeScaler  param.Handle
	hiDamp      param.Handle
	loDamp      param.Handle
	masterLP    param.Handle
	masterHP    param.Handle
	inputGain   param.Handle
	bleed       param.Handle
	wet         param.Handle
	dry         param.Handle
	chorus      param.Handle
	shimmerMix  param.Handle
	shimmerRate param.Handle
	pitchRate   param.Handle
	pitchMix    param.Handle
}

// Plate is a stereo plate reverb: per-channel input diffusers feed a
// four-stage cross-coupled loop of allpass, delay and damping sections
// whose delays are modulated by two quadrature LFOs. Optional pitch
// shifters in the loop produce shimmer.
type Plate struct {
	cfg    core.ProcessorConfig
	log    *logrus.Entry
	layout PlateLayout

	ctl         *lifecycle.Controller
	cleaner     *lifecycle.Cleaner
	initialized bool

	bank param.Bank
	h    plateParams

	inL, inR [4]*allpass.Stage
	loopAP   [4]*allpass.Stage
	loopDly  [4]*delay.Line
	loopFlt  [4]*damping.Shelving
	masterL  *damping.Shelving
	masterR  *damping.Shelving
	pitchL   *pitch.Shifter
	shimL    *pitch.Shifter
	shimR    *pitch.Shifter
	lfo1     *lfo.LFO
	lfo2     *lfo.LFO
	depth    int

	inGain  param.Smoother
	loopOut float64
}

// NewPlate builds a plate reverb. When a buffer cannot be allocated the
// error wraps arena.ErrBudgetExceeded and the returned engine passes
// audio through unchanged.
func NewPlate(opts ...Option) (*Plate, error) {
	o, cfg := applyOptions(opts)
	p := &Plate{
		cfg:    cfg,
		log:    cfg.Log("plate"),
		layout: o.plate,
		ctl:    lifecycle.NewController(true),
		depth:  plateChorusDefault,
		inGain: param.NewSmoother(plateInputGain, inputSmoothing),
	}
	p.registerParams()

	if err := o.plate.validate(); err != nil {
		p.log.WithFields(logrus.Fields{"function": "NewPlate", "error": err}).Error("invalid layout")
		return p, err
	}

	al := allocator{arena: o.arena, tier: o.tier}
	for i := range 4 {
		p.inL[i] = al.stage(o.plate.InputL[i], plateAllpassCoeff)
		p.inR[i] = al.stage(o.plate.InputR[i], plateAllpassCoeff)
		p.loopAP[i] = al.stage(o.plate.LoopAllpass[i], plateAllpassCoeff)
		p.loopDly[i] = al.line(o.plate.LoopDelay[i])
	}
	p.pitchL = al.shifter()
	p.shimL = al.shifter()
	p.shimR = al.shifter()
	if al.err != nil {
		p.log.WithFields(logrus.Fields{"function": "NewPlate", "error": al.err}).Error("buffer allocation failed, passing audio through")
		return p, fmt.Errorf("plate: %w", al.err)
	}

	for i := range 4 {
		p.inL[i].Bind(p.h.diffusion)
		p.inR[i].Bind(p.h.diffusion)
		p.loopAP[i].Bind(p.h.diffusion)
		p.loopFlt[i] = damping.NewShelving(plateBassLoss, 0, plateTrebleLoss, 1)
	}
	p.masterL = damping.NewShelving(plateMasterHP, 0, plateMasterLP, 1)
	p.masterR = damping.NewShelving(plateMasterHP, 0, plateMasterLP, 1)
	p.masterL.Bind(p.h.masterLP, p.h.masterHP)
	p.masterR.Bind(p.h.masterLP, p.h.masterHP)

	p.pitchL.SetTone(platePitchTone)
	p.pitchL.SetMix(0)
	for _, s := range []*pitch.Shifter{p.shimL, p.shimR} {
		s.SetPitch(plateShimmerRate)
		s.SetTone(plateShimmerTone)
		s.SetMix(0)
	}

	p.lfo1 = lfo.New(cfg.SampleRate, plateLFO1Hz, p.depth)
	p.lfo2 = lfo.New(cfg.SampleRate, plateLFO2Hz, p.depth)

	p.cleaner = lifecycle.NewCleaner(lifecycle.DefaultChunk)
	for i := range 4 {
		p.cleaner.Add(p.inL[i], p.inR[i])
	}
	for i := range 4 {
		p.cleaner.Add(p.loopAP[i], p.loopDly[i])
	}
	p.cleaner.Add(p.pitchL, p.shimL, p.shimR)
	p.cleaner.Finalize = p.resetState

	p.initialized = true
	p.log.WithFields(logrus.Fields{
		"function":   "NewPlate",
		"sampleRate": cfg.SampleRate,
		"samples":    p.cleaner.Total(),
	}).Debug("plate reverb ready")
	return p, nil
}

func (p *Plate) registerParams() {
	b := &p.bank
	p.h = plateParams{
		diffusion:   b.Add(plateAllpassCoeff, param.Immediate),
		rvTime:      b.Add(plateTimeDefault, param.Immediate),
		timeScaler:  b.Add(1, param.Immediate),
		hiDamp:      b.Add(1, param.Immediate),
		loDamp:      b.Add(0, param.Immediate),
		masterLP:    b.Add(1, param.Immediate),
		masterHP:    b.Add(0, param.Immediate),
		inputGain:   b.Add(plateInputGain, param.Immediate),
		bleed:       b.Add(plateBleedDefault, param.Immediate),
		wet:         b.Add(1, param.Immediate),
		dry:         b.Add(0, param.Immediate),
		chorus:      b.Add(plateChorusDefault, param.Immediate),
		shimmerMix:  b.Add(0, param.Immediate),
		shimmerRate: b.Add(plateShimmerRate, param.Immediate),
		pitchRate:   b.Add(1, param.Immediate),
		pitchMix:    b.Add(0, param.Immediate),
	}
}

func (p *Plate) resetState() {
	for _, f := range p.loopFlt {
		f.Reset()
	}
	p.masterL.Reset()
	p.masterR.Reset()
	p.pitchL.Reset()
	p.shimL.Reset()
	p.shimR.Reset()
	p.loopOut = 0
}

// Initialized reports whether every buffer was allocated.
func (p *Plate) Initialized() bool { return p.initialized }

// Lifecycle exposes the bypass/freeze controller.
func (p *Plate) Lifecycle() *lifecycle.Controller { return p.ctl }

// SetSize sets the decay time from 0 (short) to 1 (long).
func (p *Plate) SetSize(n float64) {
	n = core.Clamp01(n)
	n = 2*n - n*n
	p.bank.Set(p.h.rvTime, core.MapRange(n, 0, 1, plateTimeMin, plateTimeMax))
	p.bank.Set(p.h.inputGain, plateInputGain)
}

// Size returns the loop gain set by SetSize.
func (p *Plate) Size() float64 { return p.bank.Target(p.h.rvTime) }

// SetHiDamp sets the treble loss inside the loop.
func (p *Plate) SetHiDamp(n float64) {
	p.bank.Set(p.h.hiDamp, 1-core.Clamp01(n))
}

// SetLoDamp sets the bass loss inside the loop. The loop gain is scaled
// down with it so the tail cannot clip at maximum size.
func (p *Plate) SetLoDamp(n float64) {
	n = -core.Clamp01(n)
	p.bank.Set(p.h.loDamp, n)
	p.bank.Set(p.h.timeScaler, 1+n*plateLoDampScaler)
}

// SetLowpass sets the treble cut of the output tone filter.
func (p *Plate) SetLowpass(n float64) {
	p.bank.Set(p.h.masterLP, 1-core.Clamp01(n))
}

// SetHipass sets the bass cut of the output tone filter.
func (p *Plate) SetHipass(n float64) {
	p.bank.Set(p.h.masterHP, -core.Clamp01(n))
}

// SetDiffusion sets every allpass coefficient.
func (p *Plate) SetDiffusion(n float64) {
	p.bank.Set(p.h.diffusion, core.MapRange(core.Clamp01(n), 0, 1, plateDiffusionMin, plateDiffusionMax))
}

// SetFreezeBleedIn sets how much input still reaches a frozen tail.
func (p *Plate) SetFreezeBleedIn(n float64) {
	p.bank.Set(p.h.bleed, core.MapRange(core.Clamp01(n), 0, 1, 0, plateBleedMax))
}

// SetMix sets an energy-constant dry/wet balance.
func (p *Plate) SetMix(m float64) {
	wet, dry := core.PowerMix(m)
	p.bank.Set(p.h.wet, wet)
	p.bank.Set(p.h.dry, dry)
}

// SetWetLevel sets the wet gain directly, 0..6.
func (p *Plate) SetWetLevel(v float64) {
	p.bank.Set(p.h.wet, core.Clamp(v, 0, plateWetMax))
}

// SetDryLevel sets the dry gain directly, 0..1.
func (p *Plate) SetDryLevel(v float64) {
	p.bank.Set(p.h.dry, core.Clamp01(v))
}

// SetChorus sets the delay modulation depth.
func (p *Plate) SetChorus(n float64) {
	p.bank.Set(p.h.chorus, float64(int(core.MapRange(core.Clamp01(n), 0, 1, plateChorusMin, plateChorusMax))))
}

// SetShimmer sets the amount of pitch-shifted signal fed back into the
// loop. Shimmer is muted while frozen.
func (p *Plate) SetShimmer(s float64) {
	s = core.Clamp01(s)
	p.bank.Set(p.h.shimmerMix, 2*s-s*s)
}

// SetShimmerPitch sets the shimmer pitch ratio.
func (p *Plate) SetShimmerPitch(ratio float64) {
	p.bank.Set(p.h.shimmerRate, ratio)
}

// SetShimmerSemitones sets the shimmer interval in semitones (-12..24).
func (p *Plate) SetShimmerSemitones(s int) {
	p.bank.Set(p.h.shimmerRate, pitch.SemitoneRatio(min(max(s, pitch.MinSemitones), pitch.MaxSemitones)))
}

// SetPitchSemitones sets the interval of the input pitch insert.
func (p *Plate) SetPitchSemitones(s int) {
	p.bank.Set(p.h.pitchRate, pitch.SemitoneRatio(min(max(s, pitch.MinSemitones), pitch.MaxSemitones)))
}

// SetPitchMix sets the wet fraction of the input pitch insert.
func (p *Plate) SetPitchMix(m float64) {
	p.bank.Set(p.h.pitchMix, core.Clamp01(m))
}

// SetBypass enables or disables bypass. Enabling it ends a freeze.
func (p *Plate) SetBypass(on bool) { p.ctl.SetBypass(on) }

// SetBypassMode selects what the bypassed engine emits.
func (p *Plate) SetBypassMode(m lifecycle.Mode) { p.ctl.SetMode(m) }

// SetFreeze holds the current tail indefinitely. Ignored while bypassed.
func (p *Plate) SetFreeze(on bool) error { return p.ctl.SetFreeze(on) }

// Bypassed reports the bypass flag.
func (p *Plate) Bypassed() bool { return p.ctl.Load().Bypassed() }

// Frozen reports the freeze flag.
func (p *Plate) Frozen() bool { return p.ctl.Load().Frozen() }

// ProcessBlock renders one stereo block. Inputs may be nil (silence) and
// may alias the outputs.
func (p *Plate) ProcessBlock(inL, inR, outL, outR []float64) {
	snap, run := p.ctl.BypassBlock(p.initialized, p.cleaner, inL, inR, outL, outR)
	if !run {
		return
	}
	if snap.Trails() {
		inL, inR = nil, nil
	}

	b := &p.bank
	b.Tick()

	rv := b.Value(p.h.rvTime) * b.Value(p.h.timeScaler)
	hi, lo := b.Value(p.h.hiDamp), b.Value(p.h.loDamp)
	inTarget := b.Value(p.h.inputGain)
	shimMix := b.Value(p.h.shimmerMix)
	if snap.Frozen() {
		rv = 1
		hi, lo = 1, 0
		inTarget = b.Value(p.h.bleed)
		shimMix = 0
	}
	wet, dry := b.Value(p.h.wet), b.Value(p.h.dry)

	p.shimL.SetMix(shimMix)
	p.shimR.SetMix(shimMix)
	p.shimL.SetPitch(b.Value(p.h.shimmerRate))
	p.shimR.SetPitch(b.Value(p.h.shimmerRate))
	p.pitchL.SetPitch(b.Value(p.h.pitchRate))
	p.pitchL.SetMix(b.Value(p.h.pitchMix))

	modOffset := 2 * p.depth
	for i := range blockLen(outL, outR) {
		p.lfo1.Update()
		p.lfo2.Update()
		g := p.inGain.Next(inTarget)

		dryL, dryR := sampleAt(inL, i), sampleAt(inR, i)

		acc := dryL * g
		for _, s := range p.inL {
			acc = s.ProcessShared(acc, b)
		}
		diffL := p.pitchL.Process(acc)

		acc = dryR * g
		for _, s := range p.inR {
			acc = s.ProcessShared(acc, b)
		}
		diffR := acc

		acc = p.shimR.Process(p.loopOut + diffR)
		acc = p.loopAP[0].ProcessShared(acc, b)
		acc = p.loopDly[0].Process(acc)
		acc = p.loopFlt[0].Process(acc, hi, lo) * rv

		acc = p.loopAP[1].ProcessShared(acc+diffL, b)
		acc = p.loopDly[1].Process(acc)
		acc = p.loopFlt[1].Process(acc, hi, lo) * rv

		acc = p.shimL.Process(acc + diffR)
		acc = p.loopAP[2].ProcessShared(acc, b)
		acc = p.loopDly[2].Process(acc)
		acc = p.loopFlt[2].Process(acc, hi, lo) * rv

		acc = p.loopAP[3].ProcessShared(acc+diffL, b)
		acc = p.loopDly[3].Process(acc)
		p.loopOut = p.loopFlt[3].Process(acc, hi, lo) * rv

		var accL, accR float64
		for j, d := range p.loopDly {
			accL += d.Tap(p.layout.TapL[j], 0) * plateTapWeights[j]
			accR += d.Tap(p.layout.TapR[j], 0) * plateTapWeights[j]
		}
		outL[i] = p.masterL.ProcessShared(accL, b)*wet + dryL*dry
		outR[i] = p.masterR.ProcessShared(accR, b)*wet + dryR*dry

		p.modulate(p.loopDly[0], p.lfo1, lfo.Phase0, modOffset)
		p.modulate(p.loopDly[1], p.lfo1, lfo.Phase90, modOffset)
		p.modulate(p.loopDly[2], p.lfo2, lfo.Phase0, modOffset)
		p.modulate(p.loopDly[3], p.lfo2, lfo.Phase90, modOffset)
	}

	if depth := int(b.Value(p.h.chorus)); depth != p.depth {
		p.depth = depth
		p.lfo1.SetDepth(depth)
		p.lfo2.SetDepth(depth)
	}
}

// modulate moves a sample from an LFO-driven tap to a fixed offset, which
// slowly varies the effective loop length, then advances the line.
func (p *Plate) modulate(d *delay.Line, l *lfo.LFO, phase uint8, offset int) {
	n, fr := l.Get(phase)
	d.WriteToOffset(d.Tap(n, fr), offset)
	d.UpdateIndex()
}

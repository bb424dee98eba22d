package reverb

import (
	"fmt"

	"github.com/cwbudde/algo-pedalfx/dsp/core"
	"github.com/cwbudde/algo-pedalfx/dsp/interp"
	"github.com/cwbudde/algo-pedalfx/dsp/lifecycle"
	"github.com/cwbudde/algo-pedalfx/dsp/param"
	"github.com/sirupsen/logrus"
)

const (
	scatterLines = 8

	scatterOutputGain = 0.35
	junctionScale     = 0.25

	// Read positions are fixed point with 28 fraction bits.
	delayPosShift = 28
	delayPosScale = 1 << delayPosShift
	delayPosMask  = delayPosScale - 1

	scatterFeedbackDefault = 0.7
	scatterFeedbackMin     = 0.1
	scatterFeedbackMax     = 0.99
	scatterDampDefault     = 0.195847
	scatterLowpassMax      = 0.96
	scatterInputMax        = 0.5
	scatterInputMin        = 0.2
	scatterBleedDefault    = 0.05
	scatterBleedMax        = 0.1

	scatterReferenceRate = 44100.0
)

// ScatterLine describes one waveguide: nominal delay, random variation
// (both in seconds), how often a new random target is drawn (Hz) and the
// generator seed.
type ScatterLine struct {
	Delay     float64
	Variation float64
	Frequency float64
	Seed      float64
}

// DefaultScatterTable holds the classic eight-line tuning.
var DefaultScatterTable = [scatterLines]ScatterLine{
	{2473 / scatterReferenceRate, 0.0010, 3.100, 1966},
	{2767 / scatterReferenceRate, 0.0011, 3.500, 29491},
	{3217 / scatterReferenceRate, 0.0017, 1.110, 22937},
	{3557 / scatterReferenceRate, 0.0006, 3.973, 9830},
	{3907 / scatterReferenceRate, 0.0010, 2.341, 20643},
	{4127 / scatterReferenceRate, 0.0011, 1.897, 22937},
	{2143 / scatterReferenceRate, 0.0017, 0.891, 29491},
	{1933 / scatterReferenceRate, 0.0006, 3.221, 14417},
}

// maxSamples is the buffer length that covers the nominal delay plus the
// widest random excursion.
func (l ScatterLine) maxSamples(sampleRate float64) int {
	return int((l.Delay+l.Variation*1.125)*sampleRate + 16.5)
}

type waveguide struct {
	def ScatterLine
	buf []float64

	write   int
	read    int
	frac    int
	fracInc int
	seed    int
	count   int
	state   float64
}

func (w *waveguide) init(sampleRate float64) {
	w.write = 0
	w.seed = int(w.def.Seed + 0.5)
	pos := float64(len(w.buf)) - (w.def.Delay+float64(w.seed)*w.def.Variation/32768)*sampleRate
	w.read = int(pos)
	w.frac = int((pos-float64(w.read))*delayPosScale + 0.5)
	w.nextSegment(sampleRate)
	w.state = 0
}

// nextSegment draws a new random delay target and sets the read rate so
// the delay reaches it linearly over one segment.
func (w *waveguide) nextSegment(sampleRate float64) {
	if w.seed < 0 {
		w.seed += 0x10000
	}
	w.seed = (w.seed*15625 + 1) & 0xFFFF
	if w.seed >= 0x8000 {
		w.seed -= 0x10000
	}

	w.count = int(sampleRate/w.def.Frequency + 0.5)

	prev := float64(w.write) - (float64(w.read) + float64(w.frac)/delayPosScale)
	for prev < 0 {
		prev += float64(len(w.buf))
	}
	prev /= sampleRate

	next := w.def.Delay + float64(w.seed)*w.def.Variation/32768

	inc := (prev-next)/float64(w.count)*sampleRate + 1
	w.fracInc = int(inc*delayPosScale + 0.5)
}

// tick pushes one sample in and returns the damped line output.
func (w *waveguide) tick(in, damp float64) float64 {
	size := len(w.buf)
	w.buf[w.write] = in - w.state
	w.write++
	if w.write >= size {
		w.write -= size
	}

	if w.frac >= delayPosScale {
		w.read += w.frac >> delayPosShift
		w.frac &= delayPosMask
	}
	if w.read >= size {
		w.read -= size
	}

	r := w.read
	var xm1, x0, x1, x2 float64
	if r > 0 && r < size-2 {
		xm1, x0, x1, x2 = w.buf[r-1], w.buf[r], w.buf[r+1], w.buf[r+2]
	} else {
		xm1 = w.buf[(r-1+size)%size]
		x0 = w.buf[r%size]
		x1 = w.buf[(r+1)%size]
		x2 = w.buf[(r+2)%size]
	}
	v := interp.Lagrange4(float64(w.frac)/delayPosScale, xm1, x0, x1, x2)
	w.frac += w.fracInc

	return (w.state-v)*damp + v
}

type scatterParams struct {
	feedback  param.Handle
	damp      param.Handle
	inputGain param.Handle
	bleed     param.Handle
	wet       param.Handle
	dry       param.Handle
}

// Scattering is an eight-line feedback delay network joined at a lossless
// scattering junction. Each line's delay drifts along a random walk, even
// lines feed the left output and odd lines the right.
type Scattering struct {
	cfg core.ProcessorConfig
	log *logrus.Entry

	ctl         *lifecycle.Controller
	cleaner     *lifecycle.Cleaner
	initialized bool

	bank param.Bank
	h    scatterParams

	lines  [scatterLines]waveguide
	inGain param.Smoother
}

// NewScattering builds the scattering reverb. On allocation failure the
// error wraps arena.ErrBudgetExceeded and the returned engine passes
// audio through.
func NewScattering(opts ...Option) (*Scattering, error) {
	o, cfg := applyOptions(opts)
	s := &Scattering{
		cfg:    cfg,
		log:    cfg.Log("scattering"),
		ctl:    lifecycle.NewController(true),
		inGain: param.NewSmoother(scatterInputMax, inputSmoothing),
	}
	b := &s.bank
	s.h = scatterParams{
		feedback:  b.Add(scatterFeedbackDefault, param.Immediate),
		damp:      b.Add(scatterDampDefault, param.Immediate),
		inputGain: b.Add(scatterInputMax, param.Immediate),
		bleed:     b.Add(scatterBleedDefault, param.Immediate),
	}
	wet, dry := core.PowerMix(0.5)
	s.h.wet = b.Add(wet, param.Immediate)
	s.h.dry = b.Add(dry, param.Immediate)

	total := 0
	for i, sl := range o.lines {
		if !(sl.Delay > 0) || sl.Variation < 0 || !(sl.Frequency > 0) {
			err := fmt.Errorf("%w: scattering line %d", ErrInvalidLayout, i)
			s.log.WithFields(logrus.Fields{"function": "NewScattering", "error": err}).Error("invalid line table")
			return s, err
		}
		total += sl.maxSamples(cfg.SampleRate)
	}

	al := allocator{arena: o.arena, tier: o.tier}
	mem := al.floats(total)
	if al.err != nil {
		s.log.WithFields(logrus.Fields{"function": "NewScattering", "error": al.err}).Error("delay memory unavailable, passing audio through")
		return s, fmt.Errorf("scattering: %w", al.err)
	}

	off := 0
	for i, sl := range o.lines {
		n := sl.maxSamples(cfg.SampleRate)
		w := &s.lines[i]
		w.def = sl
		w.buf = mem[off : off+n : off+n]
		w.init(cfg.SampleRate)
		off += n
	}

	s.cleaner = lifecycle.NewCleaner(lifecycle.DefaultChunk, lifecycle.Floats(mem))
	s.cleaner.Finalize = func() {
		for i := range s.lines {
			s.lines[i].state = 0
		}
	}
	s.initialized = true
	s.log.WithFields(logrus.Fields{
		"function":   "NewScattering",
		"sampleRate": cfg.SampleRate,
		"samples":    total,
	}).Debug("scattering reverb ready")
	return s, nil
}

// Initialized reports whether the delay memory was allocated.
func (s *Scattering) Initialized() bool { return s.initialized }

// Lifecycle exposes the bypass/freeze controller.
func (s *Scattering) Lifecycle() *lifecycle.Controller { return s.ctl }

// SetSize sets the feedback from 0 (short) to 1 (long) and lowers the
// input level as the tail grows.
func (s *Scattering) SetSize(x float64) {
	x = core.Clamp01(x)
	fb := core.MapRange(2*x-x*x, 0, 1, scatterFeedbackMin, scatterFeedbackMax)
	s.bank.Set(s.h.feedback, fb)
	s.bank.Set(s.h.inputGain, core.MapRange(fb, scatterFeedbackMin, scatterFeedbackMax, scatterInputMax, scatterInputMin))
}

// Feedback returns the loop gain set by SetSize.
func (s *Scattering) Feedback() float64 { return s.bank.Target(s.h.feedback) }

// SetLowpass sets the per-line damping, 0 (bright) to 1 (dark).
func (s *Scattering) SetLowpass(x float64) {
	x = core.Clamp(x, 0, scatterLowpassMax)
	s.bank.Set(s.h.damp, x*x*x)
}

// SetMix sets an energy-constant dry/wet balance.
func (s *Scattering) SetMix(m float64) {
	wet, dry := core.PowerMix(m)
	s.bank.Set(s.h.wet, wet)
	s.bank.Set(s.h.dry, dry)
}

// SetWetLevel sets the wet gain directly, 0..1.
func (s *Scattering) SetWetLevel(v float64) { s.bank.Set(s.h.wet, core.Clamp01(v)) }

// SetDryLevel sets the dry gain directly, 0..1.
func (s *Scattering) SetDryLevel(v float64) { s.bank.Set(s.h.dry, core.Clamp01(v)) }

// SetFreezeBleedIn sets how much input still reaches a frozen tail.
func (s *Scattering) SetFreezeBleedIn(n float64) {
	s.bank.Set(s.h.bleed, core.MapRange(core.Clamp01(n), 0, 1, 0, scatterBleedMax))
}

// SetBypass enables or disables bypass. Enabling it ends a freeze.
func (s *Scattering) SetBypass(on bool) { s.ctl.SetBypass(on) }

// SetBypassMode selects what the bypassed engine emits.
func (s *Scattering) SetBypassMode(m lifecycle.Mode) { s.ctl.SetMode(m) }

// SetFreeze holds the current tail indefinitely. Ignored while bypassed.
func (s *Scattering) SetFreeze(on bool) error { return s.ctl.SetFreeze(on) }

// Bypassed reports the bypass flag.
func (s *Scattering) Bypassed() bool { return s.ctl.Load().Bypassed() }

// Frozen reports the freeze flag.
func (s *Scattering) Frozen() bool { return s.ctl.Load().Frozen() }

// ProcessBlock renders one stereo block. Inputs may be nil (silence) and
// may alias the outputs.
func (s *Scattering) ProcessBlock(inL, inR, outL, outR []float64) {
	snap, run := s.ctl.BypassBlock(s.initialized, s.cleaner, inL, inR, outL, outR)
	if !run {
		return
	}
	if snap.Trails() {
		inL, inR = nil, nil
	}

	b := &s.bank
	b.Tick()
	fb, damp, inTarget := b.Value(s.h.feedback), b.Value(s.h.damp), b.Value(s.h.inputGain)
	if snap.Frozen() {
		fb, damp, inTarget = 1, 0, b.Value(s.h.bleed)
	}
	wet, dry := b.Value(s.h.wet), b.Value(s.h.dry)
	sr := s.cfg.SampleRate

	for i := range blockLen(outL, outR) {
		g := s.inGain.Next(inTarget)
		dryL, dryR := sampleAt(inL, i), sampleAt(inR, i)

		var junction float64
		for n := range s.lines {
			junction += s.lines[n].state
		}
		junction *= junctionScale
		feedL := junction + dryL*g
		feedR := junction + dryR*g

		var wetL, wetR float64
		for n := range s.lines {
			w := &s.lines[n]
			feed := feedL
			if n&1 != 0 {
				feed = feedR
			}
			v := w.tick(feed, damp)
			if n&1 != 0 {
				wetR += v
			} else {
				wetL += v
			}
			w.state = v * fb

			w.count--
			if w.count <= 0 {
				w.nextSegment(sr)
			}
		}

		outL[i] = wetL*scatterOutputGain*wet + dryL*dry
		outR[i] = wetR*scatterOutputGain*wet + dryR*dry
	}
}

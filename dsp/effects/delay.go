package effects

import (
	"fmt"
	"sync/atomic"

	"github.com/cwbudde/algo-pedalfx/dsp/arena"
	"github.com/cwbudde/algo-pedalfx/dsp/core"
	"github.com/cwbudde/algo-pedalfx/dsp/delay"
	"github.com/cwbudde/algo-pedalfx/dsp/filter/damping"
	"github.com/cwbudde/algo-pedalfx/dsp/lfo"
	"github.com/cwbudde/algo-pedalfx/dsp/lifecycle"
	"github.com/cwbudde/algo-pedalfx/dsp/param"
	"github.com/sirupsen/logrus"
)

const (
	defaultDelayRangeMs = 400
	delayHeadroomMs     = 500

	// MinDelaySamples is the shortest echo the stereo delay produces.
	MinDelaySamples = 128

	delayTrebleLoss = 0.20
	delayBassLoss   = 0.05
	delayTapGain    = 0.6

	delayFeedbackMax  = 0.96
	delayInputMinGain = 0.4

	delayInertiaFast = 10.0
	delayInertiaSlow = 0.3
	delayTimeLowpass = 0.1

	delayLFOMaxHz    = 16.0
	delayLFOMaxDepth = 127

	delayTapMaxSeconds   = 3.0
	delayTapDeltaSeconds = 0.3
)

// StereoDelayOption configures a StereoDelay at construction.
type StereoDelayOption func(*stereoDelayOptions)

type stereoDelayOptions struct {
	procOpts []core.ProcessorOption
	rangeMs  int
	arena    *arena.Arena
	tier     arena.Tier
}

// WithDelayRange sets the longest delay time in milliseconds. The lines
// carry an extra 500 ms for modulation and tap tempo.
func WithDelayRange(ms int) StereoDelayOption {
	return func(o *stereoDelayOptions) { o.rangeMs = ms }
}

// WithDelayArena carves the four delay lines from a.
func WithDelayArena(a *arena.Arena, tier arena.Tier) StereoDelayOption {
	return func(o *stereoDelayOptions) {
		o.arena = a
		o.tier = tier
	}
}

// WithDelayProcessorOptions passes sample rate and logger settings.
func WithDelayProcessorOptions(opts ...core.ProcessorOption) StereoDelayOption {
	return func(o *stereoDelayOptions) { o.procOpts = append(o.procOpts, opts...) }
}

type stereoDelayParams struct {
	time      param.Handle
	inertia   param.Handle
	feedback  param.Handle
	inputGain param.Handle
	trebleCut param.Handle
	bassCut   param.Handle
	treble    param.Handle
	bass      param.Handle
	wet       param.Handle
	dry       param.Handle
	lfoRate   param.Handle
	lfoDepth  param.Handle
}

// StereoDelay is a modulated ping-pong delay. Each channel runs through two
// cascaded lines whose taps are cross-fed, so echoes alternate between the
// outputs. Repeats lose treble and bass through a damping filter in the
// feedback path and a tone filter on the way in. The delay time glides
// toward its target like a tape transport.
type StereoDelay struct {
	cfg core.ProcessorConfig
	log *logrus.Entry

	ctl         *lifecycle.Controller
	cleaner     *lifecycle.Cleaner
	initialized bool

	bank param.Bank
	h    stereoDelayParams

	line0a, line0b *delay.Line
	line1a, line1b *delay.Line

	lossL, lossR *damping.Shelving
	toneL, toneR *damping.Shelving

	mod      *lfo.LFO
	rate     float64
	depth    int
	length   int
	maxDelay float64

	cur, flt float64
	snap     atomic.Bool
	inGain   param.Smoother

	tapActive  atomic.Bool
	tapCounter atomic.Int64
	tapLast    int64
}

// NewStereoDelay builds a stereo delay. On allocation failure the error
// wraps arena.ErrBudgetExceeded and the returned delay passes audio
// through.
func NewStereoDelay(opts ...StereoDelayOption) (*StereoDelay, error) {
	o := stereoDelayOptions{rangeMs: defaultDelayRangeMs, tier: arena.Slow}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	cfg := core.ApplyProcessorOptions(o.procOpts...)
	d := &StereoDelay{
		cfg:    cfg,
		log:    cfg.Log("stereo-delay"),
		ctl:    lifecycle.NewController(true),
		inGain: param.NewSmoother(1, 0.25),
	}

	if o.rangeMs <= 0 {
		err := fmt.Errorf("%w: delay range %d ms", delay.ErrInvalidSize, o.rangeMs)
		d.log.WithFields(logrus.Fields{"function": "NewStereoDelay", "error": err}).Error("invalid delay range")
		return d, err
	}
	d.length = int(float64(o.rangeMs+delayHeadroomMs) / 1000 * cfg.SampleRate)
	d.maxDelay = float64(d.length - 2)

	b := &d.bank
	d.h = stereoDelayParams{
		time:      b.Add(d.maxDelay, param.Immediate),
		inertia:   b.Add(delayInertiaFast, param.Immediate),
		feedback:  b.Add(0, param.Immediate),
		inputGain: b.Add(1, param.Immediate),
		trebleCut: b.Add(1, param.Immediate),
		bassCut:   b.Add(0, param.Immediate),
		treble:    b.Add(1, param.Immediate),
		bass:      b.Add(0, param.Immediate),
		wet:       b.Add(0, param.Immediate),
		dry:       b.Add(1, param.Immediate),
		lfoRate:   b.Add(0, param.Immediate),
		lfoDepth:  b.Add(0, param.Immediate),
	}
	d.SetMix(0.5)
	d.SetFeedback(0.5)
	d.cur = d.maxDelay
	d.flt = d.maxDelay

	var err error
	for _, l := range []**delay.Line{&d.line0a, &d.line0b, &d.line1a, &d.line1b} {
		if o.arena != nil {
			*l, err = delay.NewFromArena(o.arena, o.tier, d.length)
		} else {
			*l, err = delay.New(d.length)
		}
		if err != nil {
			d.log.WithFields(logrus.Fields{"function": "NewStereoDelay", "error": err}).Error("delay memory unavailable, passing audio through")
			return d, fmt.Errorf("stereo delay: %w", err)
		}
	}

	d.lossL = damping.NewShelving(delayBassLoss, 0, delayTrebleLoss, 1)
	d.lossR = damping.NewShelving(delayBassLoss, 0, delayTrebleLoss, 1)
	d.toneL = damping.NewShelving(delayBassLoss, 0, delayTrebleLoss, 1)
	d.toneR = damping.NewShelving(delayBassLoss, 0, delayTrebleLoss, 1)
	d.mod = lfo.New(cfg.SampleRate, 0, 0)

	d.cleaner = lifecycle.NewCleaner(lifecycle.DefaultChunk, d.line0a, d.line0b, d.line1a, d.line1b)
	d.cleaner.Finalize = func() {
		d.lossL.Reset()
		d.lossR.Reset()
		d.toneL.Reset()
		d.toneR.Reset()
	}
	d.initialized = true
	d.log.WithFields(logrus.Fields{
		"function":   "NewStereoDelay",
		"sampleRate": cfg.SampleRate,
		"length":     d.length,
	}).Debug("stereo delay ready")
	return d, nil
}

// Initialized reports whether the delay lines were allocated.
func (d *StereoDelay) Initialized() bool { return d.initialized }

// Lifecycle exposes the bypass/freeze controller.
func (d *StereoDelay) Lifecycle() *lifecycle.Controller { return d.ctl }

// MaxDelaySamples is the longest reachable delay.
func (d *StereoDelay) MaxDelaySamples() int { return int(d.maxDelay) }

// SetTime sets the delay time from 0 (shortest) to 1 (longest) on a
// square-law taper. With force the new time is reached on the next block
// without gliding.
func (d *StereoDelay) SetTime(t float64, force bool) {
	t = core.Clamp01(t)
	d.setDelay(core.MapRange(t*t, 0, 1, MinDelaySamples, d.maxDelay), force)
}

// SetDelaySamples sets the delay time in samples. The glide applies.
func (d *StereoDelay) SetDelaySamples(n int) {
	d.setDelay(float64(n), false)
}

func (d *StereoDelay) setDelay(n float64, force bool) {
	d.bank.Set(d.h.time, core.Clamp(n, MinDelaySamples, d.maxDelay))
	if force {
		d.snap.Store(true)
	}
}

// DelaySamples returns the target delay time in samples.
func (d *StereoDelay) DelaySamples() float64 { return d.bank.Target(d.h.time) }

// CurrentDelaySamples returns the gliding delay time the audio path uses.
// Call it from the audio goroutine or between blocks.
func (d *StereoDelay) CurrentDelaySamples() float64 { return d.cur }

// SetFeedback sets the amount of repeats. More feedback lowers the input
// level so the sum stays in range.
func (d *StereoDelay) SetFeedback(n float64) {
	n = core.Clamp01(n)
	d.bank.Set(d.h.feedback, n*delayFeedbackMax)
	d.bank.Set(d.h.inputGain, core.MapRange(n*n*n, 0, 1, 1, delayInputMinGain))
}

// Feedback returns the loop gain.
func (d *StereoDelay) Feedback() float64 { return d.bank.Target(d.h.feedback) }

// SetInertia sets how fast the delay time follows changes, 0 (fastest) to
// 1 (slow tape-like glide).
func (d *StereoDelay) SetInertia(n float64) {
	n = core.Clamp01(n)
	n = 2*n - n*n
	d.bank.Set(d.h.inertia, core.MapRange(n, 0, 1, delayInertiaFast, delayInertiaSlow))
}

// SetTreble sets the tone filter treble.
func (d *StereoDelay) SetTreble(n float64) { d.bank.Set(d.h.treble, core.Clamp01(n)) }

// SetTrebleCut darkens each repeat.
func (d *StereoDelay) SetTrebleCut(n float64) { d.bank.Set(d.h.trebleCut, 1-core.Clamp01(n)) }

// SetBass sets the tone filter bass. 0 cuts fully, 1 is flat.
func (d *StereoDelay) SetBass(n float64) {
	n = core.Clamp01(n)
	d.bank.Set(d.h.bass, -(1 - 2*n + n*n))
}

// SetBassCut thins each repeat.
func (d *StereoDelay) SetBassCut(n float64) {
	n = core.Clamp01(n)
	d.bank.Set(d.h.bassCut, -(2*n - n*n))
}

// SetMix sets an energy-constant dry/wet balance.
func (d *StereoDelay) SetMix(m float64) {
	wet, dry := core.PowerMix(m)
	d.bank.Set(d.h.wet, wet)
	d.bank.Set(d.h.dry, dry)
}

// SetModRateHz sets the modulation rate, 0..16 Hz.
func (d *StereoDelay) SetModRateHz(f float64) {
	d.bank.Set(d.h.lfoRate, core.Clamp(f, 0, delayLFOMaxHz))
}

// SetModRate sets the modulation rate on a cubic 0..1 taper.
func (d *StereoDelay) SetModRate(r float64) {
	r = core.Clamp01(r)
	d.bank.Set(d.h.lfoRate, r*r*r*delayLFOMaxHz)
}

// SetModDepth sets the modulation depth, 0..1.
func (d *StereoDelay) SetModDepth(n float64) {
	d.bank.Set(d.h.lfoDepth, core.Clamp01(n)*delayLFOMaxDepth)
}

// SetBypass enables or disables bypass. Enabling it ends a freeze.
func (d *StereoDelay) SetBypass(on bool) { d.ctl.SetBypass(on) }

// SetBypassMode selects what the bypassed delay emits.
func (d *StereoDelay) SetBypassMode(m lifecycle.Mode) { d.ctl.SetMode(m) }

// SetFreeze loops the current repeats forever and mutes the input.
func (d *StereoDelay) SetFreeze(on bool) error { return d.ctl.SetFreeze(on) }

// Bypassed reports the bypass flag.
func (d *StereoDelay) Bypassed() bool { return d.ctl.Load().Bypassed() }

// Frozen reports the freeze flag.
func (d *StereoDelay) Frozen() bool { return d.ctl.Load().Frozen() }

// TapTempo registers one tap. The first tap starts the counter; each
// following tap sets the delay to the interval since the previous one,
// averaged with the last interval unless avg is false or the tempo moved
// by more than 0.3 s. Intervals longer than the delay range are halved
// until they fit. It returns the new delay in samples, or 0 for the first
// tap.
func (d *StereoDelay) TapTempo(avg bool) int {
	if !d.tapActive.Load() {
		d.tapCounter.Store(0)
		d.tapActive.Store(true)
		return 0
	}
	interval := d.tapCounter.Swap(0)
	ticks := interval
	delta := interval - d.tapLast
	if avg && max(delta, -delta) <= int64(delayTapDeltaSeconds*d.cfg.SampleRate) {
		ticks = interval/2 + d.tapLast/2
	}
	for ticks > int64(d.maxDelay) {
		ticks >>= 1
	}
	d.tapLast = ticks
	d.SetDelaySamples(int(ticks))
	return int(ticks)
}

func (d *StereoDelay) countTaps(n int) {
	if !d.tapActive.Load() {
		return
	}
	if d.tapCounter.Add(int64(n)) > int64(delayTapMaxSeconds*d.cfg.SampleRate) {
		d.tapActive.Store(false)
		d.tapCounter.Store(0)
	}
}

// ProcessBlock renders one stereo block. Inputs may be nil (silence) and
// may alias the outputs.
func (d *StereoDelay) ProcessBlock(inL, inR, outL, outR []float64) {
	snap, run := d.ctl.BypassBlock(d.initialized, d.cleaner, inL, inR, outL, outR)
	if snap.Bypassed() {
		d.tapActive.Store(false)
	}
	if !run {
		return
	}
	if snap.Trails() {
		inL, inR = nil, nil
	}
	n := blockLen(outL, outR)
	d.countTaps(n)

	b := &d.bank
	b.Tick()
	target := b.Value(d.h.time)
	if d.snap.Swap(false) {
		d.cur, d.flt = target, target
	}
	step := b.Value(d.h.inertia)
	fb := b.Value(d.h.feedback)
	inTarget := b.Value(d.h.inputGain)
	if snap.Frozen() {
		fb, inTarget = 1, 0
	}
	trebleCut, bassCut := b.Value(d.h.trebleCut), b.Value(d.h.bassCut)
	treble, bass := b.Value(d.h.treble), b.Value(d.h.bass)
	wet, dry := b.Value(d.h.wet), b.Value(d.h.dry)

	if rate := b.Value(d.h.lfoRate); rate != d.rate {
		d.rate = rate
		d.mod.SetRate(rate)
	}
	if depth := int(b.Value(d.h.lfoDepth)); depth != d.depth {
		d.depth = depth
		d.mod.SetDepth(depth)
	}

	for i := range n {
		g := d.inGain.Next(inTarget)

		switch {
		case d.cur < target:
			d.cur = min(d.cur+step, target)
		case d.cur > target:
			d.cur = max(d.cur-step, target)
		}
		d.flt += (d.cur - d.flt) * delayTimeLowpass
		d.cur = d.flt

		d.mod.Update()
		t0 := d.cur + d.modOffset(lfo.Phase0)
		t60 := d.cur + d.modOffset(lfo.Phase60)
		t120 := d.cur + d.modOffset(lfo.Phase120)
		t180 := d.cur + d.modOffset(lfo.Phase180)

		dryL, dryR := sampleAt(inL, i), sampleAt(inR, i)

		acc := d.line0b.TapHermite(t0)
		wetR := acc * delayTapGain
		acc = d.lossR.Process(acc, trebleCut, bassCut)*fb + dryR*g
		acc = d.toneR.Process(acc, treble, bass)
		echo := d.line0a.TapHermite(t60)
		d.line0b.WriteToOffset(echo, 0)
		wetL := echo * delayTapGain
		d.line0a.WriteToOffset(acc, 0)

		acc = d.line1b.TapHermite(t120)
		wetR += acc * delayTapGain
		acc = d.lossL.Process(acc, trebleCut, bassCut)*fb + dryL*g
		acc = d.toneL.Process(acc, treble, bass)
		echo = d.line1a.TapHermite(t180)
		d.line1b.WriteToOffset(echo, 0)
		wetL += echo * delayTapGain
		d.line1a.WriteToOffset(acc, 0)

		d.line0a.UpdateIndex()
		d.line0b.UpdateIndex()
		d.line1a.UpdateIndex()
		d.line1b.UpdateIndex()

		outL[i] = wetL*wet + dryL*dry
		outR[i] = wetR*wet + dryR*dry
	}
}

func (d *StereoDelay) modOffset(phase uint8) float64 {
	n, fr := d.mod.Get(phase)
	return float64(n) + fr
}

func sampleAt(in []float64, i int) float64 {
	if i < len(in) {
		return in[i]
	}
	return 0
}

func blockLen(outL, outR []float64) int {
	return min(len(outL), len(outR))
}

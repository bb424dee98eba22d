package conv

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-pedalfx/dsp/arena"
	"github.com/cwbudde/algo-pedalfx/dsp/core"
	"github.com/cwbudde/algo-pedalfx/dsp/delay"
	"github.com/cwbudde/algo-pedalfx/dsp/lifecycle"
	"github.com/cwbudde/algo-pedalfx/dsp/param"
	"github.com/sirupsen/logrus"
	"github.com/tphakala/simd/c128"
	"github.com/tphakala/simd/f64"
)

// Cabinet geometry. One partition covers BlockSize samples of impulse
// response and is transformed with an FFTSize-point FFT.
const (
	BlockSize     = 128
	FFTSize       = 2 * BlockSize
	inputGainRate = 0.25
	MaxPartitions = 64
	MaxIRSamples  = MaxPartitions * BlockSize
)

// Errors returned by impulse response loads.
var (
	ErrImpulseEmpty   = errors.New("conv: impulse response is empty")
	ErrImpulseInvalid = errors.New("conv: impulse response contains non-finite samples")
	ErrInvalidGain    = errors.New("conv: invalid impulse response gain")
)

// maskTable is an immutable set of partition spectra.
type maskTable struct {
	masks      [][]complex128
	partitions int
	gain       float64
	lengthMs   float64
}

// stagedLoad is an impulse response being turned into masks one block at
// a time by the audio goroutine.
type stagedLoad struct {
	ir    []float64
	table *maskTable
	step  int
}

// CabinetOption configures a Cabinet at construction.
type CabinetOption func(*cabinetOptions)

type cabinetOptions struct {
	procOpts []core.ProcessorOption
	arena    *arena.Arena
	tier     arena.Tier
}

// WithCabinetArena carves the spectrum history and doubler memory from a.
func WithCabinetArena(a *arena.Arena, tier arena.Tier) CabinetOption {
	return func(o *cabinetOptions) {
		o.arena = a
		o.tier = tier
	}
}

// WithCabinetProcessorOptions passes sample rate and logger settings.
func WithCabinetProcessorOptions(opts ...core.ProcessorOption) CabinetOption {
	return func(o *cabinetOptions) { o.procOpts = append(o.procOpts, opts...) }
}

// Cabinet is a stereo speaker cabinet simulator built on uniformly
// partitioned overlap-save convolution. The stereo pair is packed into one
// complex signal, L in the real part and R in the imaginary part, so a
// single FFT serves both channels.
//
// Audio is regrouped into BlockSize frames through an internal FIFO, so
// any host block size works and every output sample is convolved. The
// price is a fixed delay of BlockSize samples, reported by Latency.
// Until an impulse response is loaded the cabinet passes audio through
// with no delay.
type Cabinet struct {
	cfg  core.ProcessorConfig
	log  *logrus.Entry
	ctl  *lifecycle.Controller
	init bool

	// mu serializes loads against each other and against the publication
	// of a staged load. The audio path only ever uses TryLock.
	mu       sync.Mutex
	loadPlan *algofft.Plan[complex128]
	active   atomic.Pointer[maskTable]
	staged   atomic.Pointer[stagedLoad]

	inputGain param.Cell
	doubleOn  atomic.Bool

	// Audio goroutine state.
	plan    *algofft.Plan[complex128]
	seen    *maskTable
	ring    [][]complex128
	ringMem lifecycle.Complexes
	prev    lifecycle.Floats
	frame   []complex128
	acc     []complex128
	prod    []complex128
	bufL    lifecycle.Floats // input FIFO
	bufR    lifecycle.Floats
	outL    lifecycle.Floats // output FIFO
	outR    lifecycle.Floats
	fill    int
	gain    param.Smoother
	ramp    []float64
	head    int
	dbl     *doubler
	dblWas  bool
	cleaner *lifecycle.Cleaner
}

// NewCabinet builds an empty cabinet. When memory cannot be allocated the
// returned cabinet passes audio through and the error wraps
// arena.ErrBudgetExceeded.
func NewCabinet(opts ...CabinetOption) (*Cabinet, error) {
	o := cabinetOptions{tier: arena.Slow}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	cfg := core.ApplyProcessorOptions(o.procOpts...)
	c := &Cabinet{
		cfg: cfg,
		log: cfg.Log("cabinet"),
		ctl: lifecycle.NewController(false),
	}
	c.inputGain.Store(1)
	c.gain = param.NewSmoother(1, inputGainRate)

	var err error
	if c.plan, err = algofft.NewPlan64(FFTSize); err != nil {
		return c, fmt.Errorf("conv: cabinet FFT plan: %w", err)
	}
	if c.loadPlan, err = algofft.NewPlan64(FFTSize); err != nil {
		return c, fmt.Errorf("conv: cabinet FFT plan: %w", err)
	}

	dlyLen := doublerDelay(cfg.SampleRate)
	var (
		ringMem []complex128
		prev    []float64
		dly     *delay.Line
	)
	if o.arena != nil {
		ringMem, err = o.arena.Complex128s(o.tier, MaxPartitions*FFTSize)
		if err == nil {
			prev, err = o.arena.Float64s(o.tier, 2*BlockSize)
		}
		if err == nil {
			dly, err = delay.NewFromArena(o.arena, o.tier, dlyLen)
		}
	} else {
		ringMem = make([]complex128, MaxPartitions*FFTSize)
		prev = make([]float64, 2*BlockSize)
		dly, err = delay.New(dlyLen)
	}
	if err != nil {
		c.log.WithFields(logrus.Fields{"function": "NewCabinet", "error": err}).Error("buffer allocation failed, passing audio through")
		return c, fmt.Errorf("cabinet: %w", err)
	}

	c.ringMem = lifecycle.Complexes(ringMem)
	c.ring = make([][]complex128, MaxPartitions)
	for i := range c.ring {
		c.ring[i] = ringMem[i*FFTSize : (i+1)*FFTSize]
	}
	c.prev = lifecycle.Floats(prev)
	c.frame = make([]complex128, FFTSize)
	c.acc = make([]complex128, FFTSize)
	c.prod = make([]complex128, FFTSize)
	c.bufL = make(lifecycle.Floats, BlockSize)
	c.bufR = make(lifecycle.Floats, BlockSize)
	c.outL = make(lifecycle.Floats, BlockSize)
	c.outR = make(lifecycle.Floats, BlockSize)
	c.ramp = make([]float64, BlockSize)
	c.dbl = newDoubler(dly)

	c.cleaner = lifecycle.NewCleaner(lifecycle.DefaultChunk, c.ringMem, c.prev, dly, c.bufL, c.bufR, c.outL, c.outR)
	c.cleaner.Finalize = func() {
		c.head = 0
		c.fill = 0
		c.dbl.reset()
	}

	c.init = true
	c.log.WithFields(logrus.Fields{
		"function":   "NewCabinet",
		"sampleRate": cfg.SampleRate,
		"doublerLen": dlyLen,
	}).Debug("cabinet ready")
	return c, nil
}

// doublerDelay is the right-channel delay of the doubler in samples.
func doublerDelay(sampleRate float64) int {
	return max(int(math.Round(doublerDelaySeconds*sampleRate)), 1)
}

func validateIR(ir []float64, gain float64) error {
	if len(ir) == 0 {
		return ErrImpulseEmpty
	}
	if math.IsNaN(gain) || math.IsInf(gain, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidGain, gain)
	}
	for i, v := range ir {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: sample %d", ErrImpulseInvalid, i)
		}
	}
	return nil
}

func (c *Cabinet) newTable(ir []float64, gain float64) *maskTable {
	n := min(len(ir), MaxIRSamples)
	p := (n + BlockSize - 1) / BlockSize
	t := &maskTable{
		masks:      make([][]complex128, p),
		partitions: p,
		gain:       gain,
		lengthMs:   float64(p*BlockSize) / c.cfg.SampleRate * 1000,
	}
	for j := range t.masks {
		t.masks[j] = make([]complex128, FFTSize)
	}
	return t
}

// computeMask fills mask j from partition j of ir, zero-padded to FFTSize.
func computeMask(plan *algofft.Plan[complex128], dst []complex128, ir []float64, j int, gain float64) error {
	clear(dst)
	start := j * BlockSize
	end := min(start+BlockSize, len(ir), MaxIRSamples)
	for i := start; i < end; i++ {
		dst[i-start] = complex(ir[i]*gain, 0)
	}
	return plan.Forward(dst, dst)
}

// Load replaces the impulse response. The masks are computed on the
// calling goroutine and published atomically; the audio path picks the new
// table up at its next block and restarts from a clean history. Samples
// beyond MaxIRSamples are ignored. On error the active table is kept.
func (c *Cabinet) Load(ir []float64, gain float64) error {
	logger := c.log.WithFields(logrus.Fields{"function": "Load", "samples": len(ir)})
	if !c.init {
		return fmt.Errorf("cabinet: %w", arena.ErrBudgetExceeded)
	}
	if err := validateIR(ir, gain); err != nil {
		logger.WithField("error", err).Warn("impulse response rejected")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.newTable(ir, gain)
	for j, m := range t.masks {
		if err := computeMask(c.loadPlan, m, ir, j, gain); err != nil {
			logger.WithField("error", err).Error("mask transform failed")
			return fmt.Errorf("conv: mask %d: %w", j, err)
		}
	}
	c.staged.Store(nil)
	c.active.Store(t)
	logger.WithFields(logrus.Fields{"partitions": t.partitions, "lengthMs": t.lengthMs}).Info("impulse response loaded")
	return nil
}

// BeginLoad stages an impulse response to be converted by ProcessBlock,
// one partition per block, so a load never costs the audio path more than
// one FFT. The new table goes live after Partitions()+2 blocks. A later
// Load or BeginLoad supersedes a pending one.
func (c *Cabinet) BeginLoad(ir []float64, gain float64) error {
	logger := c.log.WithFields(logrus.Fields{"function": "BeginLoad", "samples": len(ir)})
	if !c.init {
		return fmt.Errorf("cabinet: %w", arena.ErrBudgetExceeded)
	}
	if err := validateIR(ir, gain); err != nil {
		logger.WithField("error", err).Warn("impulse response rejected")
		return err
	}

	s := &stagedLoad{
		ir:    append([]float64(nil), ir[:min(len(ir), MaxIRSamples)]...),
		table: c.newTable(ir, gain),
	}
	c.mu.Lock()
	c.staged.Store(s)
	c.mu.Unlock()
	logger.WithField("partitions", s.table.partitions).Debug("impulse response staged")
	return nil
}

// LoadPending reports whether a staged load has not been published yet.
func (c *Cabinet) LoadPending() bool {
	return c.staged.Load() != nil
}

// stepLoad advances a staged load by one step: clear, one mask per call,
// then publish.
func (c *Cabinet) stepLoad() {
	s := c.staged.Load()
	if s == nil {
		return
	}
	p := s.table.partitions
	switch {
	case s.step == 0:
		for _, m := range s.table.masks {
			clear(m)
		}
		s.step++
	case s.step <= p:
		j := s.step - 1
		if err := computeMask(c.plan, s.table.masks[j], s.ir, j, s.table.gain); err != nil {
			// A plan of fixed size only fails on length mismatch, which
			// cannot happen here. Drop the load rather than publish garbage.
			c.staged.CompareAndSwap(s, nil)
			return
		}
		s.step++
	default:
		if !c.mu.TryLock() {
			return
		}
		if c.staged.CompareAndSwap(s, nil) {
			c.active.Store(s.table)
		}
		c.mu.Unlock()
	}
}

// resetHistory is run on the audio goroutine whenever the active table
// changes.
func (c *Cabinet) resetHistory() {
	clear(c.ringMem)
	clear(c.prev)
	clear(c.bufL)
	clear(c.bufR)
	clear(c.outL)
	clear(c.outR)
	c.fill = 0
	c.head = 0
	c.gain.Value = c.inputGain.Load()
	c.dbl.reset()
	c.cleaner.Rewind()
}

// Partitions returns the partition count of the active impulse response,
// or 0 when none is loaded.
func (c *Cabinet) Partitions() int {
	if t := c.active.Load(); t != nil {
		return t.partitions
	}
	return 0
}

// Latency returns the delay the cabinet adds, in samples: BlockSize while
// an impulse response is active, 0 while it passes audio through.
func (c *Cabinet) Latency() int {
	if c.init && c.active.Load() != nil {
		return BlockSize
	}
	return 0
}

// IRLengthMs returns the length of the active impulse response as
// processed, rounded up to whole partitions.
func (c *Cabinet) IRLengthMs() float64 {
	if t := c.active.Load(); t != nil {
		return t.lengthMs
	}
	return 0
}

// SetInputGain sets the gain applied ahead of the convolution, clamped to
// [0, 1]. Changes are smoothed per sample.
func (c *Cabinet) SetInputGain(g float64) {
	c.inputGain.Store(core.Clamp01(g))
}

// InputGain returns the current input gain.
func (c *Cabinet) InputGain() float64 { return c.inputGain.Load() }

// SetDoubler enables the stereo doubler. Switching it on starts from a
// cleared doubler delay.
func (c *Cabinet) SetDoubler(on bool) { c.doubleOn.Store(on) }

// Doubler reports whether the doubler is enabled.
func (c *Cabinet) Doubler() bool { return c.doubleOn.Load() }

// SetBypass switches bypass.
func (c *Cabinet) SetBypass(on bool) { c.ctl.SetBypass(on) }

// SetBypassMode selects pass, mute or trails.
func (c *Cabinet) SetBypassMode(m lifecycle.Mode) { c.ctl.SetMode(m) }

// SetFreeze always fails: a cabinet has nothing to hold.
func (c *Cabinet) SetFreeze(on bool) error { return c.ctl.SetFreeze(on) }

// Bypassed reports the bypass state.
func (c *Cabinet) Bypassed() bool { return c.ctl.Load().Bypassed() }

// Initialized reports whether every buffer was allocated.
func (c *Cabinet) Initialized() bool { return c.init }

// Lifecycle exposes the lifecycle controller.
func (c *Cabinet) Lifecycle() *lifecycle.Controller { return c.ctl }

// ProcessBlock convolves one stereo block of any length. Input is
// collected into BlockSize frames; output lags input by Latency samples.
func (c *Cabinet) ProcessBlock(inL, inR, outL, outR []float64) {
	var t *maskTable
	if c.init {
		c.stepLoad()
		t = c.active.Load()
		if t != c.seen {
			c.seen = t
			c.resetHistory()
		}
	}

	snap, run := c.ctl.BypassBlock(c.init && t != nil, c.cleaner, inL, inR, outL, outR)
	if !run {
		return
	}
	if snap.Trails() {
		inL, inR = nil, nil
	}

	dbl := c.doubleOn.Load()
	if dbl && !c.dblWas {
		c.dbl.reset()
	}
	c.dblWas = dbl
	target := c.inputGain.Load()

	n := min(len(outL), len(outR))
	for pos := 0; pos < n; {
		f := c.fill
		k := min(BlockSize-f, n-pos)
		c.push(inL, inR, pos, k, target)
		copy(outL[pos:pos+k], c.outL[f:f+k])
		copy(outR[pos:pos+k], c.outR[f:f+k])
		pos += k
		c.fill += k
		if c.fill < BlockSize {
			continue
		}
		c.fill = 0
		if dbl {
			c.dbl.pre(c.bufL, c.bufR)
		}
		c.convolve(t, c.outL, c.outR)
		if dbl {
			c.dbl.post(c.outL, c.outR)
		}
	}
}

func tail(in []float64, start, end int) []float64 {
	if start >= len(in) {
		return nil
	}
	return in[start:min(end, len(in))]
}

// push appends k input samples from pos to the input FIFO, applying the
// smoothed input gain.
func (c *Cabinet) push(inL, inR []float64, pos, k int, target float64) {
	f := c.fill
	l, r := c.bufL[f:f+k], c.bufR[f:f+k]
	core.CopyOrZero(l, tail(inL, pos, pos+k))
	core.CopyOrZero(r, tail(inR, pos, pos+k))
	g := c.ramp[:k]
	for i := range g {
		g[i] = c.gain.Next(target)
	}
	f64.Mul(l, l, g)
	f64.Mul(r, r, g)
}

// convolve runs one overlap-save step over bufL/bufR.
func (c *Cabinet) convolve(t *maskTable, outL, outR []float64) {
	prevL, prevR := c.prev[:BlockSize], c.prev[BlockSize:]
	for i := range BlockSize {
		c.frame[i] = complex(prevL[i], prevR[i])
		c.frame[BlockSize+i] = complex(c.bufL[i], c.bufR[i])
	}
	copy(prevL, c.bufL)
	copy(prevR, c.bufR)

	p := t.partitions
	slot := c.ring[c.head]
	if err := c.plan.Forward(slot, c.frame); err != nil {
		clear(outL)
		clear(outR)
		return
	}

	clear(c.acc)
	k := c.head
	for j := range p {
		c128.Mul(c.prod, t.masks[j], c.ring[k])
		for i, v := range c.prod {
			c.acc[i] += v
		}
		k--
		if k < 0 {
			k = p - 1
		}
	}
	if err := c.plan.Inverse(c.acc, c.acc); err != nil {
		clear(outL)
		clear(outR)
		return
	}
	for i := range BlockSize {
		v := c.acc[BlockSize+i]
		outL[i] = real(v)
		outR[i] = imag(v)
	}

	c.head++
	if c.head >= p {
		c.head = 0
	}
}

package effectchain

import (
	"errors"
	"fmt"
	"os"

	"github.com/cwbudde/algo-pedalfx/dsp/buffer"
	"github.com/cwbudde/algo-pedalfx/dsp/core"
	"github.com/sirupsen/logrus"
)

// Processing errors.
var (
	ErrUnknownEffect  = errors.New("effectchain: unknown effect type")
	ErrFrameMismatch  = errors.New("effectchain: left and right lengths differ")
	ErrPoolExhausted  = errors.New("effectchain: no free blocks")
	ErrNodeNotFound   = errors.New("effectchain: node not found")
	ErrInvalidParam   = errors.New("effectchain: invalid parameter")
	ErrNoIRProvider   = errors.New("effectchain: no impulse response provider")
	ErrBlockSizeLimit = errors.New("effectchain: pool blocks smaller than the rack block size")
)

// blocksPerPass is the number of pool blocks a pass holds: one stereo
// pair read and one written.
const blocksPerPass = 4

type nodeRuntime struct {
	id         string
	effectType string
	runtime    Runtime
}

// Chain is a serial stereo rack: every node reads the previous node's
// output block. Loading a preset and processing must happen on the same
// goroutine.
type Chain struct {
	ctx      Context
	registry *Registry
	pool     *buffer.Pool
	log      *logrus.Entry

	name  string
	nodes []*nodeRuntime
}

// Option configures a Chain.
type Option func(*Chain)

// WithPool makes the chain draw its work blocks from a shared pool. The
// pool needs four free blocks of at least the context block size.
func WithPool(p *buffer.Pool) Option {
	return func(c *Chain) { c.pool = p }
}

// New creates an empty Chain. Zero context fields take the core defaults.
func New(ctx Context, registry *Registry, opts ...Option) (*Chain, error) {
	if ctx.SampleRate <= 0 {
		ctx.SampleRate = core.DefaultSampleRate
	}

	if ctx.BlockSize <= 0 {
		ctx.BlockSize = core.DefaultBlockSize
	}

	cfg := core.ApplyProcessorOptions(core.WithLogger(ctx.Logger))

	c := &Chain{
		ctx:      ctx,
		registry: registry,
		log:      cfg.Log("effectchain"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.pool == nil {
		pool, err := buffer.NewPool(blocksPerPass, ctx.BlockSize)
		if err != nil {
			return nil, err
		}

		c.pool = pool
	}

	if c.pool.BlockSize() < ctx.BlockSize {
		return nil, fmt.Errorf("%w: %d < %d", ErrBlockSizeLimit, c.pool.BlockSize(), ctx.BlockSize)
	}

	return c, nil
}

// Context returns the chain context.
func (c *Chain) Context() Context {
	return c.ctx
}

// Name returns the name of the loaded preset.
func (c *Chain) Name() string {
	return c.name
}

// Nodes returns the node ids in signal order.
func (c *Chain) Nodes() []string {
	ids := make([]string, len(c.nodes))
	for i, n := range c.nodes {
		ids[i] = n.id
	}

	return ids
}

// NodeRuntime returns the Runtime for the given node ID, or nil.
func (c *Chain) NodeRuntime(nodeID string) Runtime {
	for _, n := range c.nodes {
		if n.id == nodeID {
			return n.runtime
		}
	}

	return nil
}

// LoadPresetFile reads and loads a JSON preset file.
func (c *Chain) LoadPresetFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("effectchain: read preset: %w", err)
	}

	return c.LoadPreset(raw)
}

// LoadPreset parses a JSON preset and synchronizes the node runtimes. Nodes
// that keep their id and type keep their state; the rest are rebuilt. On
// error the previous rack stays in place.
func (c *Chain) LoadPreset(raw []byte) error {
	preset, err := ParsePreset(raw)
	if err != nil {
		c.log.WithFields(logrus.Fields{"function": "LoadPreset", "error": err}).Error("preset rejected")
		return err
	}

	nodes, err := c.syncNodes(preset)
	if err != nil {
		c.log.WithFields(logrus.Fields{"function": "LoadPreset", "preset": preset.Name, "error": err}).Error("preset rejected")
		return err
	}

	c.name = preset.Name
	c.nodes = nodes

	c.log.WithFields(logrus.Fields{
		"function": "LoadPreset",
		"preset":   preset.Name,
		"nodes":    c.Nodes(),
	}).Info("preset loaded")

	return nil
}

// syncNodes builds the runtime list for a preset, reusing runtimes whose
// id and type are unchanged.
func (c *Chain) syncNodes(preset *Preset) ([]*nodeRuntime, error) {
	existing := make(map[string]*nodeRuntime, len(c.nodes))
	for _, n := range c.nodes {
		existing[n.id] = n
	}

	nodes := make([]*nodeRuntime, 0, len(preset.Nodes))

	for _, p := range preset.Nodes {
		rt := existing[p.ID]
		if rt == nil || rt.effectType != p.Type {
			runtime, err := c.newRuntime(p.Type)
			if err != nil {
				if errors.Is(err, ErrUnknownEffect) {
					c.log.WithFields(logrus.Fields{"function": "LoadPreset", "node": p.ID, "type": p.Type}).Warn("skipping unknown effect")
					continue
				}

				return nil, fmt.Errorf("effectchain: create node %q (%s): %w", p.ID, p.Type, err)
			}

			rt = &nodeRuntime{id: p.ID, effectType: p.Type, runtime: runtime}
		}

		err := rt.runtime.Configure(c.ctx, p)
		if err != nil {
			return nil, fmt.Errorf("effectchain: configure node %q (%s): %w", p.ID, p.Type, err)
		}

		nodes = append(nodes, rt)
	}

	return nodes, nil
}

func (c *Chain) newRuntime(effectType string) (Runtime, error) {
	factory := c.registry.Lookup(effectType)
	if factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEffect, effectType)
	}

	return factory(c.ctx)
}

// Reset removes every node.
func (c *Chain) Reset() {
	c.name = ""
	c.nodes = nil
}

// Process runs the rack over l and r in place, one context block at a
// time. An empty rack leaves the audio untouched.
func (c *Chain) Process(l, r []float64) error {
	if len(l) != len(r) {
		return fmt.Errorf("%w: %d != %d", ErrFrameMismatch, len(l), len(r))
	}

	if len(c.nodes) == 0 {
		return nil
	}

	for pos := 0; pos < len(l); pos += c.ctx.BlockSize {
		end := min(pos+c.ctx.BlockSize, len(l))

		err := c.processBlock(l[pos:end], r[pos:end])
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *Chain) processBlock(l, r []float64) error {
	var blocks [blocksPerPass]*buffer.Block

	defer func() {
		for _, b := range blocks {
			if b != nil {
				b.Release()
			}
		}
	}()

	for i := range blocks {
		blocks[i] = c.pool.Allocate()
		if blocks[i] == nil {
			return ErrPoolExhausted
		}
	}

	n := len(l)
	inL, inR := blocks[0].Samples()[:n], blocks[1].Samples()[:n]
	outL, outR := blocks[2].Samples()[:n], blocks[3].Samples()[:n]

	copy(inL, l)
	copy(inR, r)

	for _, node := range c.nodes {
		node.runtime.Process(inL, inR, outL, outR)
		inL, outL = outL, inL
		inR, outR = outR, inR
	}

	copy(l, inL)
	copy(r, inR)

	return nil
}

// latencyReporter is implemented by runtimes that delay their output.
type latencyReporter interface {
	Latency() int
}

// Latency returns the total delay of the rack in samples, the sum of the
// delays its nodes currently report.
func (c *Chain) Latency() int {
	total := 0
	for _, n := range c.nodes {
		if l, ok := n.runtime.(latencyReporter); ok {
			total += l.Latency()
		}
	}

	return total
}

// bypasser is implemented by runtimes with a bypass switch.
type bypasser interface {
	SetBypass(on bool)
}

// SetBypass toggles bypass on one node without reloading the preset.
func (c *Chain) SetBypass(nodeID string, on bool) error {
	rt := c.NodeRuntime(nodeID)
	if rt == nil {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, nodeID)
	}

	b, ok := rt.(bypasser)
	if !ok {
		return fmt.Errorf("%w: node %q has no bypass", ErrInvalidParam, nodeID)
	}

	b.SetBypass(on)

	return nil
}

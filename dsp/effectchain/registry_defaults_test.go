package effectchain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-pedalfx/dsp/conv"
	"github.com/cwbudde/algo-pedalfx/dsp/effects"
	"github.com/cwbudde/algo-pedalfx/dsp/effects/reverb"
	"github.com/cwbudde/algo-pedalfx/dsp/irfile"
	"github.com/cwbudde/algo-pedalfx/dsp/lifecycle"
	"github.com/cwbudde/algo-pedalfx/internal/testutil"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	want := []string{TypeCabinet, TypeDelay, TypePlate, TypeScattering, TypeSpring}
	got := DefaultRegistry().Types()

	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Types() = %v, want %v", got, want)
	}
}

func TestDefaultRegistryCreatesRuntimes(t *testing.T) {
	t.Parallel()

	reg := DefaultRegistry()

	tests := []struct {
		effectType string
		check      func(Runtime) bool
	}{
		{TypePlate, func(rt Runtime) bool { p, ok := rt.(*plateRuntime); return ok && p.fx.Initialized() }},
		{TypeScattering, func(rt Runtime) bool { s, ok := rt.(*scatteringRuntime); return ok && s.fx.Initialized() }},
		{TypeSpring, func(rt Runtime) bool { s, ok := rt.(*springRuntime); return ok && s.fx.Initialized() }},
		{TypeCabinet, func(rt Runtime) bool { c, ok := rt.(*cabinetRuntime); return ok && c.fx.Initialized() }},
		{TypeDelay, func(rt Runtime) bool { d, ok := rt.(*delayRuntime); return ok && d.fx.Initialized() }},
	}

	for _, tt := range tests {
		t.Run(tt.effectType, func(t *testing.T) {
			t.Parallel()

			rt, err := reg.Lookup(tt.effectType)(testCtx())
			if err != nil {
				t.Fatalf("factory error: %v", err)
			}

			if !tt.check(rt) {
				t.Errorf("unexpected runtime %T", rt)
			}
		})
	}
}

// stubIRProvider serves fixed responses and counts loads.
type stubIRProvider struct {
	irs   map[string][]float64
	loads int
}

func (p *stubIRProvider) LoadIR(name string) (*irfile.IR, error) {
	p.loads++

	s, ok := p.irs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", irfile.ErrFileNotFound, name)
	}

	return &irfile.IR{Name: name, Samples: s, Gain: 1, SampleRate: 44100}, nil
}

func newDefaultChain(t *testing.T, opts ...RegistryOption) *Chain {
	t.Helper()

	c, err := New(testCtx(), DefaultRegistry(opts...))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return c
}

// --- engines in a rack ---

func TestRackImpulseThroughReverbs(t *testing.T) {
	t.Parallel()

	for _, typ := range []string{TypePlate, TypeScattering, TypeSpring} {
		t.Run(typ, func(t *testing.T) {
			t.Parallel()

			c := newDefaultChain(t)

			err := c.LoadPreset(buildPresetJSON("verb", presetNode{ID: "v", Type: typ, Params: map[string]any{"mix": 0.5}}))
			if err != nil {
				t.Fatalf("LoadPreset: %v", err)
			}

			n := 44100
			l, r := testutil.Impulse(n, 0), testutil.Impulse(n, 0)

			if err := c.Process(l, r); err != nil {
				t.Fatalf("Process: %v", err)
			}

			testutil.RequireFinite(t, l)
			testutil.RequireFinite(t, r)

			if testutil.Energy(l[1:]) == 0 {
				t.Error("no reverb tail")
			}
		})
	}
}

func TestRackBypassedNodePassesThrough(t *testing.T) {
	t.Parallel()

	c := newDefaultChain(t)

	err := c.LoadPreset(buildPresetJSON("p",
		presetNode{ID: "v", Type: TypePlate, Bypassed: true, Params: map[string]any{"mode": "pass"}},
		presetNode{ID: "d", Type: TypeDelay, Bypassed: true},
	))
	if err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}

	in := testutil.DeterministicSine(440, testSampleRate, 0.5, 1024)
	l := append([]float64(nil), in...)
	r := append([]float64(nil), in...)

	if err := c.Process(l, r); err != nil {
		t.Fatalf("Process: %v", err)
	}

	testutil.RequireSliceNearlyEqual(t, l, in, 0)
	testutil.RequireSliceNearlyEqual(t, r, in, 0)

	if err := c.LoadPreset(buildPresetJSON("p",
		presetNode{ID: "v", Type: TypePlate, Bypassed: true, Params: map[string]any{"mode": "mute"}},
	)); err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}

	if err := c.Process(l, r); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if testutil.Energy(l) != 0 {
		t.Error("muted bypass produced output")
	}
}

func TestRackLifecycleParams(t *testing.T) {
	t.Parallel()

	c := newDefaultChain(t)

	err := c.LoadPreset(buildPresetJSON("p", presetNode{ID: "v", Type: TypePlate, Params: map[string]any{"freeze": true, "mode": "trails"}}))
	if err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}

	plate := c.NodeRuntime("v").(*plateRuntime).fx
	if !plate.Frozen() {
		t.Error("freeze param not applied")
	}

	if plate.Lifecycle().Load().Mode() != lifecycle.ModeTrails {
		t.Error("mode param not applied")
	}

	err = c.LoadPreset(buildPresetJSON("p", presetNode{ID: "s", Type: TypeSpring, Params: map[string]any{"freeze": true}}))
	if !errors.Is(err, lifecycle.ErrFreezeUnsupported) {
		t.Errorf("spring freeze: expected ErrFreezeUnsupported, got %v", err)
	}

	err = c.LoadPreset(buildPresetJSON("p", presetNode{ID: "s", Type: TypeSpring, Params: map[string]any{"freeze": false}}))
	if err != nil {
		t.Errorf("clearing freeze on a spring should succeed: %v", err)
	}

	err = c.LoadPreset(buildPresetJSON("p", presetNode{ID: "s", Type: TypeSpring, Params: map[string]any{"mode": "fade"}}))
	if !errors.Is(err, ErrInvalidParam) {
		t.Errorf("bad mode: expected ErrInvalidParam, got %v", err)
	}
}

func TestRackEngineParams(t *testing.T) {
	t.Parallel()

	c := newDefaultChain(t)

	err := c.LoadPreset(buildPresetJSON("p",
		presetNode{ID: "v", Type: TypePlate, Params: map[string]any{"size": 1.0}},
		presetNode{ID: "d", Type: TypeDelay, Params: map[string]any{"timeMs": 250.0, "feedback": 0.5}},
		presetNode{ID: "s", Type: TypeSpring, Params: map[string]any{"time": 0.0}},
	))
	if err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}

	plate := c.NodeRuntime("v").(*plateRuntime).fx
	ref, _ := reverb.NewPlate()
	ref.SetSize(1)

	if plate.Size() != ref.Size() {
		t.Errorf("plate size = %v, want %v", plate.Size(), ref.Size())
	}

	delay := c.NodeRuntime("d").(*delayRuntime).fx
	if got := delay.DelaySamples(); got != float64(int(250*testSampleRate/1000)) {
		t.Errorf("delay samples = %v", got)
	}

	refDelay, _ := effects.NewStereoDelay()
	refDelay.SetFeedback(0.5)

	if delay.Feedback() != refDelay.Feedback() {
		t.Errorf("feedback = %v, want %v", delay.Feedback(), refDelay.Feedback())
	}

	// A later preset that omits a control leaves it alone.
	err = c.LoadPreset(buildPresetJSON("p",
		presetNode{ID: "v", Type: TypePlate, Params: map[string]any{"mix": 0.3}},
	))
	if err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}

	if plate.Size() != ref.Size() {
		t.Error("omitted size was reset")
	}
}

// --- cabinet ---

func TestRackCabinetLoadsIR(t *testing.T) {
	t.Parallel()

	provider := &stubIRProvider{irs: map[string][]float64{"unity": {1}, "half": {0.5}}}
	c := newDefaultChain(t, WithIRProvider(provider))

	load := func(name string, extra map[string]any) error {
		params := map[string]any{"ir": name}
		for k, v := range extra {
			params[k] = v
		}

		return c.LoadPreset(buildPresetJSON("cab", presetNode{ID: "c", Type: TypeCabinet, Params: params}))
	}

	if err := load("half", nil); err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}

	in := testutil.DeterministicNoise(1, 0.5, conv.BlockSize*4)
	l := append([]float64(nil), in...)
	r := append([]float64(nil), in...)

	if err := c.Process(l, r); err != nil {
		t.Fatalf("Process: %v", err)
	}

	lat := c.Latency()
	if lat != conv.BlockSize {
		t.Fatalf("Latency = %d, want %d", lat, conv.BlockSize)
	}

	for i := range in {
		want := 0.0
		if i >= lat {
			want = in[i-lat] * 0.5
		}

		if d := l[i] - want; d > 1e-12 || d < -1e-12 {
			t.Fatalf("l[%d] = %v, want %v", i, l[i], want)
		}
	}

	if err := load("half", map[string]any{"doubler": false}); err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}

	if provider.loads != 1 {
		t.Errorf("unchanged IR reloaded: %d loads", provider.loads)
	}

	if err := load("half", map[string]any{"irGain": 2.0}); err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}

	if provider.loads != 2 {
		t.Errorf("irGain change did not reload: %d loads", provider.loads)
	}

	if err := load("missing", nil); !errors.Is(err, irfile.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestRackCabinetConvolvesShortBlocks(t *testing.T) {
	t.Parallel()

	ctx := testCtx()
	ctx.BlockSize = 48

	ir := make([]float64, 11)
	ir[10] = 0.5
	provider := &stubIRProvider{irs: map[string][]float64{"tap10": ir}}

	c, err := New(ctx, DefaultRegistry(WithIRProvider(provider)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = c.LoadPreset(buildPresetJSON("cab", presetNode{ID: "c", Type: TypeCabinet, Params: map[string]any{"ir": "tap10"}}))
	if err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}

	// 300 samples leave a 12-sample remainder after the 48-sample blocks.
	l := testutil.Impulse(300, 0)
	r := testutil.Impulse(300, 0)
	if err := c.Process(l, r); err != nil {
		t.Fatalf("Process: %v", err)
	}

	at := c.Latency() + 10
	for i, v := range l {
		want := 0.0
		if i == at {
			want = 0.5
		}

		if d := v - want; d > 1e-12 || d < -1e-12 {
			t.Fatalf("l[%d] = %v, want %v", i, v, want)
		}
	}

	if err := c.SetBypass("c", true); err != nil {
		t.Fatalf("SetBypass: %v", err)
	}

	if got := c.Latency(); got != 0 {
		t.Errorf("bypassed cabinet reports latency %d", got)
	}
}

func TestRackCabinetParams(t *testing.T) {
	t.Parallel()

	c := newDefaultChain(t)

	err := c.LoadPreset(buildPresetJSON("cab", presetNode{ID: "c", Type: TypeCabinet, Params: map[string]any{"doubler": true, "inputGain": 0.25}}))
	if err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}

	cab := c.NodeRuntime("c").(*cabinetRuntime).fx
	if !cab.Doubler() || cab.InputGain() != 0.25 {
		t.Errorf("doubler=%v inputGain=%v", cab.Doubler(), cab.InputGain())
	}

	err = c.LoadPreset(buildPresetJSON("cab", presetNode{ID: "c", Type: TypeCabinet, Params: map[string]any{"ir": "x.wav"}}))
	if !errors.Is(err, ErrNoIRProvider) {
		t.Errorf("expected ErrNoIRProvider, got %v", err)
	}
}

func TestFileIRProvider(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "room.wav")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	enc := wav.NewEncoder(f, 44100, 16, 1, 1)

	err = enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 44100},
		Data:           []int{32767, 16384, 0},
		SourceBitDepth: 16,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	ir, err := FileIRProvider{Dir: dir}.LoadIR("room.wav")
	if err != nil {
		t.Fatalf("LoadIR: %v", err)
	}

	if ir.Name != "room" || len(ir.Samples) != 3 {
		t.Errorf("ir = %q with %d samples", ir.Name, len(ir.Samples))
	}

	if _, err := (FileIRProvider{}).LoadIR(path); err != nil {
		t.Errorf("absolute path: %v", err)
	}
}

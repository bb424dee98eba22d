package effectchain

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-pedalfx/dsp/buffer"
)

const testSampleRate = 44100.0

func testCtx() Context {
	return Context{SampleRate: testSampleRate, BlockSize: 128}
}

// buildPresetJSON is a helper to construct preset documents for testing.
func buildPresetJSON(name string, nodes ...presetNode) []byte {
	data, err := json.Marshal(presetState{Name: name, Nodes: nodes})
	if err != nil {
		panic(err)
	}

	return data
}

func newTestChain(t *testing.T, opts ...Option) *Chain {
	t.Helper()

	c, err := New(testCtx(), testRegistry(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return c
}

func ramp(n int, offset float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = offset + float64(i)
	}

	return out
}

func TestChainNewDefaults(t *testing.T) {
	t.Parallel()

	c, err := New(Context{}, testRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := c.Context()
	if ctx.SampleRate != 44100 || ctx.BlockSize != 128 {
		t.Errorf("defaults = %+v, want 44100 Hz and 128 samples", ctx)
	}

	if len(c.Nodes()) != 0 {
		t.Error("new chain should be empty")
	}
}

func TestChainEmptyRackLeavesAudio(t *testing.T) {
	t.Parallel()

	c := newTestChain(t)
	if err := c.LoadPreset(nil); err != nil {
		t.Fatalf("LoadPreset(nil): %v", err)
	}

	l, r := ramp(200, 0), ramp(200, 1000)

	if err := c.Process(l, r); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if l[199] != 199 || r[0] != 1000 {
		t.Error("empty rack modified the audio")
	}
}

// --- ordering ---

func TestChainRunsNodesInOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		nodes []presetNode
		want  func(x float64) float64
	}{
		{
			name: "add then gain",
			nodes: []presetNode{
				{ID: "a", Type: "add", Params: map[string]any{"value": 1.0}},
				{ID: "g", Type: "gain", Params: map[string]any{"gain": 2.0}},
			},
			want: func(x float64) float64 { return (x + 1) * 2 },
		},
		{
			name: "gain then add",
			nodes: []presetNode{
				{ID: "g", Type: "gain", Params: map[string]any{"gain": 2.0}},
				{ID: "a", Type: "add", Params: map[string]any{"value": 1.0}},
			},
			want: func(x float64) float64 { return x*2 + 1 },
		},
		{
			name: "three nodes",
			nodes: []presetNode{
				{ID: "a1", Type: "add", Params: map[string]any{"value": 1.0}},
				{ID: "g", Type: "gain", Params: map[string]any{"gain": 3.0}},
				{ID: "a2", Type: "add", Params: map[string]any{"value": -2.0}},
			},
			want: func(x float64) float64 { return (x+1)*3 - 2 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestChain(t)
			if err := c.LoadPreset(buildPresetJSON("order", tt.nodes...)); err != nil {
				t.Fatalf("LoadPreset: %v", err)
			}

			l, r := ramp(300, 0), ramp(300, 0.5)
			if err := c.Process(l, r); err != nil {
				t.Fatalf("Process: %v", err)
			}

			for i := range l {
				if want := tt.want(float64(i)); l[i] != want {
					t.Fatalf("l[%d] = %v, want %v", i, l[i], want)
				}

				if want := tt.want(float64(i) + 0.5); r[i] != want {
					t.Fatalf("r[%d] = %v, want %v", i, r[i], want)
				}
			}
		})
	}
}

func TestChainKeepsChannelsApart(t *testing.T) {
	t.Parallel()

	c := newTestChain(t)
	if err := c.LoadPreset(buildPresetJSON("swap", presetNode{ID: "s", Type: "swap"})); err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}

	l, r := ramp(64, 0), ramp(64, 100)
	if err := c.Process(l, r); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if l[5] != 105 || r[5] != 5 {
		t.Errorf("swap: l[5]=%v r[5]=%v, want 105 and 5", l[5], r[5])
	}
}

// --- blocks ---

func TestChainProcessSplitsIntoBlocks(t *testing.T) {
	t.Parallel()

	pool, err := buffer.NewPool(4, 128)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	c := newTestChain(t, WithPool(pool))
	if err := c.LoadPreset(buildPresetJSON("p", presetNode{ID: "s", Type: "stub"})); err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}

	l, r := ramp(300, 0), ramp(300, 0)
	if err := c.Process(l, r); err != nil {
		t.Fatalf("Process: %v", err)
	}

	stub, _ := c.NodeRuntime("s").(*stubRuntime)
	if stub == nil {
		t.Fatal("stub runtime missing")
	}

	if stub.processCalls != 3 {
		t.Errorf("processCalls = %d, want 3 for 128+128+44 samples", stub.processCalls)
	}

	if pool.InUse() != 0 {
		t.Errorf("pool.InUse() = %d after Process, want 0", pool.InUse())
	}

	if pool.MaxUsed() != blocksPerPass {
		t.Errorf("pool.MaxUsed() = %d, want %d", pool.MaxUsed(), blocksPerPass)
	}
}

func TestChainProcessErrors(t *testing.T) {
	t.Parallel()

	t.Run("mismatched channels", func(t *testing.T) {
		t.Parallel()

		c := newTestChain(t)

		err := c.Process(make([]float64, 4), make([]float64, 5))
		if !errors.Is(err, ErrFrameMismatch) {
			t.Fatalf("expected ErrFrameMismatch, got %v", err)
		}
	})

	t.Run("pool exhausted", func(t *testing.T) {
		t.Parallel()

		pool, err := buffer.NewPool(3, 128)
		if err != nil {
			t.Fatalf("NewPool: %v", err)
		}

		c := newTestChain(t, WithPool(pool))
		if err := c.LoadPreset(buildPresetJSON("p", presetNode{ID: "s", Type: "stub"})); err != nil {
			t.Fatalf("LoadPreset: %v", err)
		}

		err = c.Process(make([]float64, 8), make([]float64, 8))
		if !errors.Is(err, ErrPoolExhausted) {
			t.Fatalf("expected ErrPoolExhausted, got %v", err)
		}

		if pool.InUse() != 0 {
			t.Errorf("blocks leaked: InUse = %d", pool.InUse())
		}
	})

	t.Run("pool blocks too small", func(t *testing.T) {
		t.Parallel()

		pool, err := buffer.NewPool(4, 64)
		if err != nil {
			t.Fatalf("NewPool: %v", err)
		}

		_, err = New(testCtx(), testRegistry(), WithPool(pool))
		if !errors.Is(err, ErrBlockSizeLimit) {
			t.Fatalf("expected ErrBlockSizeLimit, got %v", err)
		}
	})
}

// --- presets ---

func TestChainLoadPreset(t *testing.T) {
	t.Parallel()

	t.Run("skips unknown types", func(t *testing.T) {
		t.Parallel()

		c := newTestChain(t)

		err := c.LoadPreset(buildPresetJSON("p",
			presetNode{ID: "x", Type: "wah"},
			presetNode{ID: "g", Type: "gain"},
		))
		if err != nil {
			t.Fatalf("LoadPreset: %v", err)
		}

		if ids := c.Nodes(); len(ids) != 1 || ids[0] != "g" {
			t.Errorf("Nodes() = %v, want [g]", ids)
		}
	})

	t.Run("passes context and params", func(t *testing.T) {
		t.Parallel()

		c := newTestChain(t)

		err := c.LoadPreset(buildPresetJSON("named",
			presetNode{ID: "s", Type: "stub", Bypassed: true, Params: map[string]any{"mode": "trails", "level": 0.5}},
		))
		if err != nil {
			t.Fatalf("LoadPreset: %v", err)
		}

		if c.Name() != "named" {
			t.Errorf("Name() = %q", c.Name())
		}

		stub := c.NodeRuntime("s").(*stubRuntime)
		if stub.lastCtx.SampleRate != testSampleRate {
			t.Errorf("runtime saw sample rate %v", stub.lastCtx.SampleRate)
		}

		p := stub.lastParams
		if !p.Bypassed || p.GetStr("mode", "") != "trails" || p.GetNum("level", 0) != 0.5 {
			t.Errorf("params not forwarded: %+v", p)
		}
	})

	t.Run("reuses runtimes with the same id and type", func(t *testing.T) {
		t.Parallel()

		c := newTestChain(t)
		preset := buildPresetJSON("p", presetNode{ID: "s", Type: "stub"})

		if err := c.LoadPreset(preset); err != nil {
			t.Fatalf("LoadPreset: %v", err)
		}

		first := c.NodeRuntime("s")

		if err := c.LoadPreset(preset); err != nil {
			t.Fatalf("LoadPreset: %v", err)
		}

		if c.NodeRuntime("s") != first {
			t.Error("runtime was rebuilt for an unchanged node")
		}

		if first.(*stubRuntime).configureCalls != 2 {
			t.Errorf("configureCalls = %d, want 2", first.(*stubRuntime).configureCalls)
		}

		if err := c.LoadPreset(buildPresetJSON("p", presetNode{ID: "s", Type: "gain"})); err != nil {
			t.Fatalf("LoadPreset: %v", err)
		}

		if _, ok := c.NodeRuntime("s").(*gainRuntime); !ok {
			t.Error("type change did not rebuild the runtime")
		}
	})

	t.Run("failure keeps previous rack", func(t *testing.T) {
		t.Parallel()

		c := newTestChain(t)
		if err := c.LoadPreset(buildPresetJSON("good", presetNode{ID: "g", Type: "gain"})); err != nil {
			t.Fatalf("LoadPreset: %v", err)
		}

		bad := []struct {
			name string
			raw  []byte
			want error
		}{
			{"invalid json", []byte(`{"nodes": [`), ErrInvalidPreset},
			{"duplicate id", buildPresetJSON("dup",
				presetNode{ID: "a", Type: "gain"},
				presetNode{ID: "a", Type: "add"},
			), ErrDuplicateNode},
		}

		for _, tc := range bad {
			err := c.LoadPreset(tc.raw)
			if !errors.Is(err, tc.want) {
				t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
			}
		}

		if c.Name() != "good" || len(c.Nodes()) != 1 {
			t.Errorf("rack changed after rejected presets: %q %v", c.Name(), c.Nodes())
		}
	})

	t.Run("configure error", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		r := NewRegistry()
		r.MustRegister("bad", func(_ Context) (Runtime, error) {
			return &stubRuntime{configureErr: boom}, nil
		})

		c, err := New(testCtx(), r)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		err = c.LoadPreset(buildPresetJSON("p", presetNode{ID: "b", Type: "bad"}))
		if !errors.Is(err, boom) {
			t.Fatalf("expected wrapped configure error, got %v", err)
		}
	})
}

func TestChainLoadPresetFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rack.json")
	raw := []byte(`{"name": "file", "nodes": [{"id": "g", "type": "gain", "params": {"gain": 0.5}}]}`)

	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatal(err)
	}

	c := newTestChain(t)
	if err := c.LoadPresetFile(path); err != nil {
		t.Fatalf("LoadPresetFile: %v", err)
	}

	if c.NodeRuntime("g").(*gainRuntime).gain != 0.5 {
		t.Error("gain param not applied")
	}

	if err := c.LoadPresetFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestChainSetBypass(t *testing.T) {
	t.Parallel()

	c := newTestChain(t)

	err := c.LoadPreset(buildPresetJSON("p",
		presetNode{ID: "s", Type: "stub"},
		presetNode{ID: "g", Type: "gain"},
	))
	if err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}

	if err := c.SetBypass("s", true); err != nil {
		t.Fatalf("SetBypass: %v", err)
	}

	if !c.NodeRuntime("s").(*stubRuntime).bypassed {
		t.Error("bypass not forwarded")
	}

	if err := c.SetBypass("nope", true); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}

	if err := c.SetBypass("g", true); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("expected ErrInvalidParam, got %v", err)
	}
}

func TestChainReset(t *testing.T) {
	t.Parallel()

	c := newTestChain(t)
	if err := c.LoadPreset(buildPresetJSON("p", presetNode{ID: "g", Type: "gain"})); err != nil {
		t.Fatalf("LoadPreset: %v", err)
	}

	c.Reset()

	if len(c.Nodes()) != 0 || c.Name() != "" || c.NodeRuntime("g") != nil {
		t.Error("Reset left nodes behind")
	}
}

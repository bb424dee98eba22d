package reverb

import (
	"testing"

	"github.com/cwbudde/algo-pedalfx/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type freezer interface {
	engine
	SetFreeze(on bool) error
	Frozen() bool
}

func TestFreezeHoldsEnergy(t *testing.T) {
	cases := []struct {
		name string
		make func() (freezer, error)
	}{
		{"plate", func() (freezer, error) {
			p, err := NewPlate()
			if err == nil {
				p.SetSize(0.8)
			}
			return p, err
		}},
		{"scattering", func() (freezer, error) {
			s, err := NewScattering()
			if err == nil {
				s.SetSize(0.8)
			}
			return s, err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, err := tc.make()
			require.NoError(t, err)

			fill := testRate
			excite := lowNoise(11, fill)
			render(e, excite, excite, fill)

			require.NoError(t, e.SetFreeze(true))
			require.True(t, e.Frozen())

			n := testRate * 4
			outL, outR := render(e, nil, nil, n)
			testutil.RequireFinite(t, outL)
			testutil.RequireFinite(t, outR)

			// The first window still holds the transition into freeze.
			rms := testutil.WindowedRMS(outL, 16384)[1:]
			ref := rms[0]
			require.Greater(t, ref, 1e-4)
			for i, v := range rms {
				assert.InDelta(t, 1, v/ref, 0.15, "window %d", i+1)
			}

			require.NoError(t, e.SetFreeze(false))
			after, _ := render(e, nil, nil, testRate*6)
			tail := testutil.WindowedRMS(after, 16384)
			assert.Less(t, tail[len(tail)-1], tail[0]*0.5, "tail kept ringing after release")
		})
	}
}

func TestBypassEndsFreeze(t *testing.T) {
	p, err := NewPlate()
	require.NoError(t, err)
	require.NoError(t, p.SetFreeze(true))
	p.SetBypass(true)
	assert.False(t, p.Frozen())
	assert.True(t, p.Bypassed())

	require.NoError(t, p.SetFreeze(true))
	assert.False(t, p.Frozen(), "freeze ignored while bypassed")
}

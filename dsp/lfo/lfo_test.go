package lfo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSineTable(t *testing.T) {
	assert.Equal(t, int32(0), sineTable[0])
	assert.Equal(t, int32(804), sineTable[1])
	assert.Equal(t, int32(fullScale), sineTable[64])
	assert.Equal(t, int32(-fullScale), sineTable[192])
	assert.Equal(t, int32(0), sineTable[256])
}

func TestRateIncrement(t *testing.T) {
	l := New(44100, 1.35, 20)
	rate, fs := 1.35, 44100.0
	want := uint32(rate * math.MaxUint32 / fs)
	assert.Equal(t, want, l.Increment())

	l.SetRate(-3)
	assert.Zero(t, l.Increment())
}

func TestOutputRange(t *testing.T) {
	const depth = 20
	l := New(44100, 7, depth)

	lo, hi := math.Inf(1), math.Inf(-1)
	for range 44100 {
		l.Update()
		for _, ph := range []uint8{Phase0, Phase60, Phase90, Phase120, Phase180} {
			n, fr := l.Get(ph)
			require.GreaterOrEqual(t, fr, 0.0)
			require.Less(t, fr, 1.0)
			v := float64(n) + fr
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	assert.InDelta(t, 0, lo, 0.1)
	assert.InDelta(t, 2*depth, hi, 0.1)
}

func TestPhaseOffsetQuadrature(t *testing.T) {
	l := New(44100, 0, 100)
	// acc = 0: phase 0 sits at mid-scale, 90 degrees at the peak and
	// 180 degrees back at mid-scale.
	n0, f0 := l.Get(Phase0)
	n90, f90 := l.Get(Phase90)
	n180, f180 := l.Get(Phase180)

	mid := float64(fullScale) / float64(l.divider)
	assert.InDelta(t, mid, float64(n0)+f0, 0.05)
	assert.InDelta(t, 2*mid, float64(n90)+f90, 0.05)
	assert.InDelta(t, mid, float64(n180)+f180, 0.05)
}

func TestZeroDepthIsSilent(t *testing.T) {
	l := New(44100, 5, 0)
	for range 1000 {
		l.Update()
		n, fr := l.Get(Phase90)
		require.Zero(t, n)
		require.Zero(t, fr)
	}
}

func TestPeriod(t *testing.T) {
	const sr = 1000.0
	l := New(sr, 10, 50)

	// After one period the phase wraps back to (nearly) the start.
	start, startFr := l.Get(Phase0)
	for range int(sr / 10) {
		l.Update()
	}
	n, fr := l.Get(Phase0)
	assert.InDelta(t, float64(start)+startFr, float64(n)+fr, 0.05)

	l.Reset()
	n, fr = l.Get(Phase0)
	assert.Equal(t, start, n)
	assert.Equal(t, startFr, fr)
}

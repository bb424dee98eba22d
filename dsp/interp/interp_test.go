package interp

import (
	"math"
	"testing"
)

func TestHermite4IdentityOnLinearRamp(t *testing.T) {
	xm1, x0, x1, x2 := -1.0, 0.0, 1.0, 2.0
	for _, tc := range []struct {
		t float64
		w float64
	}{
		{t: 0.0, w: 0.0},
		{t: 0.25, w: 0.25},
		{t: 0.5, w: 0.5},
		{t: 1.0, w: 1.0},
	} {
		got := Hermite4(tc.t, xm1, x0, x1, x2)
		if diff := got - tc.w; diff < -1e-12 || diff > 1e-12 {
			t.Fatalf("t=%v: got %v want %v", tc.t, got, tc.w)
		}
	}
}

func TestLinear2(t *testing.T) {
	if got := Linear2(0.25, 2, 4); got != 2.5 {
		t.Fatalf("got %v want 2.5", got)
	}
}

func TestLagrange4HitsSamplePoints(t *testing.T) {
	xm1, x0, x1, x2 := 0.3, -0.7, 1.1, 0.4
	if got := Lagrange4(0, xm1, x0, x1, x2); got != x0 {
		t.Fatalf("t=0: got %v want %v", got, x0)
	}
	if got := Lagrange4(1, xm1, x0, x1, x2); math.Abs(got-x1) > 1e-12 {
		t.Fatalf("t=1: got %v want %v", got, x1)
	}
}

func TestLagrange4ExactOnCubic(t *testing.T) {
	// Third-order Lagrange reproduces any cubic through the four points.
	f := func(x float64) float64 { return 0.5*x*x*x - x*x + 0.25*x + 2 }
	for _, frac := range []float64{0.1, 0.37, 0.5, 0.93} {
		got := Lagrange4(frac, f(-1), f(0), f(1), f(2))
		if math.Abs(got-f(frac)) > 1e-12 {
			t.Fatalf("t=%v: got %v want %v", frac, got, f(frac))
		}
	}
}

package testutil

import (
	"math"
	"testing"
)

// RequireSliceNearlyEqual stops the test at the first sample where got and
// want differ by more than eps.
func RequireSliceNearlyEqual(t testing.TB, got, want []float64, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range got {
		if d := math.Abs(got[i] - want[i]); d > eps || math.IsNaN(d) {
			t.Fatalf("sample %d: got %v, want %v (|diff| %g > %g)", i, got[i], want[i], d, eps)
		}
	}
}

// RequireFinite stops the test at the first NaN or infinite sample.
func RequireFinite(t testing.TB, x []float64) {
	t.Helper()
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("sample %d is %v", i, v)
		}
	}
}

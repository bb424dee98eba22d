package interp

// Linear2 interpolates between x0 (t = 0) and x1 (t = 1).
func Linear2(t, x0, x1 float64) float64 {
	return x0 + t*(x1-x0)
}

// Hermite4 computes cubic 4-point interpolation.
// It interpolates from x0 to x1 using neighbor points xm1 and x2.
func Hermite4(t, xm1, x0, x1, x2 float64) float64 {
	c0 := x0
	c1 := 0.5 * (x1 - xm1)
	c2 := xm1 - 2.5*x0 + 2*x1 - 0.5*x2
	c3 := 0.5*(x2-xm1) + 1.5*(x0-x1)
	return ((c3*t+c2)*t+c1)*t + c0
}

// Lagrange4 computes 4-point, third-order Lagrange interpolation between
// x0 and x1. The coefficients are arranged so the result is x0 plus a
// correction scaled by t, which keeps the t = 0 case exact.
func Lagrange4(t, xm1, x0, x1, x2 float64) float64 {
	a2 := (t*t - 1) * (1.0 / 6.0)
	a1 := (t + 1) * 0.5
	am1 := a1 - 1
	a0 := 3 * a2
	a1 -= a0
	am1 -= a2
	a0 -= t
	return (am1*xm1+a0*x0+a1*x1+a2*x2)*t + x0
}

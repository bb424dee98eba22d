// Package interp provides interpolation primitives used by delay-based DSP blocks.
//
// Available methods, from cheapest to highest quality:
//
//   - [Linear2]:   2-point linear interpolation
//   - [Hermite4]:  4-point cubic Hermite (Catmull-Rom), used for modulated taps
//   - [Lagrange4]: 4-point cubic Lagrange, used by the scattering reverb
package interp

// Package reverb provides the three algorithmic reverb engines.
//
// Included engines:
//   - Plate: Dattorro-style tank with modulated delays, shimmer and a pitch insert.
//   - Scattering: eight-line feedback delay network with a fixed scattering matrix.
//   - Spring: dispersive allpass chirp banks over a short feedback loop.
//
// Engines take their delay memory from an arena and stay usable as a
// pass-through when it runs out. Parameters are set from any goroutine and
// smoothed per block on the audio path.
package reverb

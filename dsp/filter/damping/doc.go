// Package damping provides the one-pole loss filters placed inside
// reverb and delay feedback loops.
//
// Shelving splits the signal with a one-pole lowpass and a one-pole
// highpass derived from it and recombines them with two gains:
//
//	y = lp + hiDamp*(x - lp) + loDamp*hp
//
// With hiDamp = 1 and loDamp = 0 the filter is transparent. Lowering
// hiDamp removes treble, a negative loDamp removes bass. Gain changes
// are slewed by a fixed step per sample so they can be driven directly
// from control values without zipper noise.
package damping

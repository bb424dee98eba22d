// Package effects holds the time-based effects that sit beside the
// reverbs.
//
// StereoDelay is a ping-pong pair of long delay lines with Hermite taps,
// a four-phase modulation LFO, gliding delay time and damped repeats. It
// shares the reverbs' bypass, freeze and incremental cleanup behavior.
//
// Subpackages:
//   - github.com/cwbudde/algo-pedalfx/dsp/effects/pitch
//   - github.com/cwbudde/algo-pedalfx/dsp/effects/reverb
package effects

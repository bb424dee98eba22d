// Package param holds lock-free parameter storage shared between a control
// goroutine and the audio goroutine.
//
// A Cell is a single atomic float64. A Bank groups cells owned by one engine
// and exposes them through Handles: many processing stages can borrow the
// same coefficient by handle without holding a pointer into the engine.
// The audio path calls Bank.Tick once per sample (or per block) to move its
// private live copies toward the published targets.
package param

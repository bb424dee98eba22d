// Package lifecycle implements the bypass, freeze and cleanup state shared
// by every engine.
//
// A Controller packs the control state into one atomic word so a control
// goroutine can flip bypass or freeze while the audio goroutine reads a
// consistent Snapshot once per block. Transitions are compare-and-swap
// loops: enabling bypass while frozen clears the freeze in the same
// update, and freeze requests are ignored while bypassed.
//
// A Cleaner zeroes large delay memory a chunk per block after an engine
// goes idle, so re-enabling it never replays stale audio and no single
// block pays for clearing everything.
//
// BypassBlock ties the two together and produces the pass, mute or trails
// output for blocks the engine does not process itself.
package lifecycle

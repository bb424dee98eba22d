package lifecycle

import "github.com/cwbudde/algo-pedalfx/dsp/core"

// BypassBlock decides how the engine handles one stereo block.
//
// It returns run = true when the engine must process the block itself:
// either it is active, or it is bypassed in ModeTrails (the engine then
// mutes its own input). Otherwise the block has been written here:
//
//   - an uninitialized engine copies its input forever
//   - a bypassed engine copies (ModePass) or silences (ModeMute) and
//     advances its cleanup by one chunk
//   - an engine that was just re-enabled while a cleanup pass is partway
//     through keeps bypassing until the pass completes
//
// Entering ModeTrails abandons a partial cleanup pass: the engine runs
// again, and resuming the old cursor later would zero a live tail.
//
// Nil inputs are treated as silence. cleaner may be nil for engines
// without delay memory.
func (c *Controller) BypassBlock(initialized bool, cleaner *Cleaner, inL, inR, outL, outR []float64) (snap Snapshot, run bool) {
	snap = c.Load()
	if !initialized {
		core.CopyOrZero(outL, inL)
		core.CopyOrZero(outR, inR)
		return snap, false
	}

	mode := snap.Mode()
	bypassed := snap.Bypassed()
	if bypassed && mode == ModeTrails {
		if cleaner != nil {
			cleaner.Rewind()
		}
		c.markDirty()
		return snap, true
	}

	gated := !bypassed && cleaner != nil && cleaner.Started()
	if !bypassed && !gated {
		c.markDirty()
		return snap, true
	}

	if snap.CleanupPending() {
		if cleaner == nil || cleaner.Step() {
			c.markClean()
		}
	}

	if mode == ModeMute {
		clear(outL)
		clear(outR)
	} else {
		core.CopyOrZero(outL, inL)
		core.CopyOrZero(outR, inR)
	}
	return c.Load(), false
}

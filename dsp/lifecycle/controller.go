package lifecycle

import (
	"errors"
	"sync/atomic"
)

// ErrFreezeUnsupported is returned by SetFreeze on an engine whose
// topology cannot hold its tail indefinitely.
var ErrFreezeUnsupported = errors.New("lifecycle: freeze not supported")

// Mode selects what a bypassed engine emits.
type Mode uint32

const (
	// ModePass copies the input to the output.
	ModePass Mode = iota
	// ModeMute emits silence.
	ModeMute
	// ModeTrails keeps the engine running with its input muted so the
	// tail decays naturally.
	ModeTrails

	numModes
)

func (m Mode) String() string {
	switch m {
	case ModePass:
		return "pass"
	case ModeMute:
		return "mute"
	case ModeTrails:
		return "trails"
	default:
		return "unknown"
	}
}

// ParseMode maps a name produced by Mode.String back to a Mode.
func ParseMode(s string) (Mode, bool) {
	for m := ModePass; m < numModes; m++ {
		if m.String() == s {
			return m, true
		}
	}
	return ModePass, false
}

const (
	bitBypass  = 1 << 0
	bitFrozen  = 1 << 1
	bitCleanup = 1 << 2
	modeShift  = 3
	modeMask   = 0x3 << modeShift
)

// Snapshot is one consistent reading of a Controller.
type Snapshot uint32

// Bypassed reports the bypass flag.
func (s Snapshot) Bypassed() bool { return s&bitBypass != 0 }

// Frozen reports the freeze flag.
func (s Snapshot) Frozen() bool { return s&bitFrozen != 0 }

// CleanupPending reports whether delay memory holds audio that has not
// been cleared since the engine last ran.
func (s Snapshot) CleanupPending() bool { return s&bitCleanup != 0 }

// Mode returns the bypass mode.
func (s Snapshot) Mode() Mode { return Mode(s&modeMask) >> modeShift }

// Trails reports whether the engine must keep processing while bypassed.
func (s Snapshot) Trails() bool { return s.Bypassed() && s.Mode() == ModeTrails }

// Controller holds the packed lifecycle state of one engine.
type Controller struct {
	word      atomic.Uint32
	freezable bool
}

// NewController returns an active, unfrozen controller in ModePass.
func NewController(freezable bool) *Controller {
	return &Controller{freezable: freezable}
}

// Load returns the current state.
func (c *Controller) Load() Snapshot {
	return Snapshot(c.word.Load())
}

func (c *Controller) update(fn func(old uint32) uint32) (old, updated uint32) {
	for {
		old = c.word.Load()
		updated = fn(old)
		if updated == old || c.word.CompareAndSwap(old, updated) {
			return old, updated
		}
	}
}

// SetBypass enables or disables bypass. Enabling bypass also ends a
// freeze. It reports whether the state changed.
func (c *Controller) SetBypass(on bool) bool {
	old, updated := c.update(func(w uint32) uint32 {
		if on {
			return (w | bitBypass) &^ bitFrozen
		}
		return w &^ bitBypass
	})
	return old != updated
}

// ToggleBypass flips bypass and returns the new value.
func (c *Controller) ToggleBypass() bool {
	_, updated := c.update(func(w uint32) uint32 {
		if w&bitBypass != 0 {
			return w &^ bitBypass
		}
		return (w | bitBypass) &^ bitFrozen
	})
	return updated&bitBypass != 0
}

// SetMode selects the bypass mode. Unknown modes are ignored.
func (c *Controller) SetMode(m Mode) {
	if m >= numModes {
		return
	}
	c.update(func(w uint32) uint32 {
		return w&^modeMask | uint32(m)<<modeShift
	})
}

// SetFreeze enables or disables freeze. It is a no-op while bypassed and
// fails with ErrFreezeUnsupported for engines built without freeze.
func (c *Controller) SetFreeze(on bool) error {
	if !c.freezable {
		return ErrFreezeUnsupported
	}
	c.update(func(w uint32) uint32 {
		if w&bitBypass != 0 {
			return w
		}
		if on {
			return w | bitFrozen
		}
		return w &^ bitFrozen
	})
	return nil
}

// ToggleFreeze flips freeze and returns the new value.
func (c *Controller) ToggleFreeze() (bool, error) {
	if !c.freezable {
		return false, ErrFreezeUnsupported
	}
	_, updated := c.update(func(w uint32) uint32 {
		if w&bitBypass != 0 {
			return w
		}
		return w ^ bitFrozen
	})
	return updated&bitFrozen != 0, nil
}

// Freezable reports whether the engine supports freeze.
func (c *Controller) Freezable() bool { return c.freezable }

func (c *Controller) markDirty() {
	if c.word.Load()&bitCleanup == 0 {
		c.word.Or(bitCleanup)
	}
}

func (c *Controller) markClean() {
	c.word.And(^uint32(bitCleanup))
}

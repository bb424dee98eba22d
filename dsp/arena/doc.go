// Package arena provides a budgeted, tiered sample allocator.
//
// Every engine carves its delay and allpass buffers from an Arena at
// construction time. Each memory tier (Fast for on-chip RAM, Slow for
// external RAM on embedded targets) is reserved once against a declared
// budget; a request that does not fit is returned as ErrBudgetExceeded
// instead of degrading silently. After construction no further allocation
// happens on the audio path.
package arena

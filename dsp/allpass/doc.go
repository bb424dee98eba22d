// Package allpass implements the Schroeder allpass stage used by the
// diffusers and feedback loops of the reverb engines.
//
// A Stage either owns its coefficient (Process) or reads it from an
// engine-owned param.Bank (ProcessShared), so several stages can follow
// one control without holding a pointer to it.
package allpass

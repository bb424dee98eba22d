package reverb

import "errors"

// ErrInvalidLayout is returned for buffer sizes or taps an engine cannot
// run with.
var ErrInvalidLayout = errors.New("reverb: invalid layout")

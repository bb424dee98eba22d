// Package fir provides a direct-form FIR filter runtime for short kernels
// such as the cabinet doubler's voicing filters. Long impulse responses
// belong in the partitioned convolver in dsp/conv.
package fir

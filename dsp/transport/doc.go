// Package transport converts between the integer PCM used by codecs and
// files and the float blocks the engines process.
//
// Integer to float conversion divides by the largest positive code, so
// full scale reads as exactly ±1. The reverse multiplies by the next power
// of two and saturates, matching Q-format conversion. Interleaving helpers
// and bridges to go-audio's IntBuffer cover stereo file I/O.
package transport

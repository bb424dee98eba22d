// Package irfile loads cabinet impulse responses from RIFF/WAVE files.
//
// Mono and stereo integer PCM at 8, 16 or 24 bits is accepted; the first
// channel becomes the response. Responses longer than a cabinet can hold
// are truncated with a short fade-out. Every failure wraps one of the
// package errors, and CodeOf turns it into a small enumerated Code.
package irfile

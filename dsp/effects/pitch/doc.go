// Package pitch provides the crossfading delay-line pitch shifter used for
// the plate's shimmer and pitch insert.
//
// Two read heads sweep a short circular buffer at the pitch ratio and are
// crossfaded so neither is heard as it wraps past the write head.
package pitch

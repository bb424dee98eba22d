package param

import (
	"math"
	"sync/atomic"
)

// Cell is a float64 that can be written by one goroutine and read by
// another without locking.
type Cell struct {
	bits atomic.Uint64
}

// NewCell returns a cell holding v.
func NewCell(v float64) *Cell {
	c := &Cell{}
	c.Store(v)
	return c
}

// Load returns the current value.
func (c *Cell) Load() float64 {
	return math.Float64frombits(c.bits.Load())
}

// Store publishes v.
func (c *Cell) Store(v float64) {
	c.bits.Store(math.Float64bits(v))
}

// Swap publishes v and returns the previous value.
func (c *Cell) Swap(v float64) float64 {
	return math.Float64frombits(c.bits.Swap(math.Float64bits(v)))
}

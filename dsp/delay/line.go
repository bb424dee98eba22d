package delay

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-pedalfx/dsp/arena"
	"github.com/cwbudde/algo-pedalfx/dsp/interp"
)

// ErrInvalidSize is returned for a non-positive capacity.
var ErrInvalidSize = errors.New("delay: size must be > 0")

// Line is a circular delay line.
type Line struct {
	buffer   []float64
	writePos int
}

// New returns a heap-backed delay line of fixed size.
func New(size int) (*Line, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return &Line{buffer: make([]float64, size)}, nil
}

// NewFromArena returns a delay line whose storage is carved from a.
// It fails with arena.ErrBudgetExceeded when the tier is exhausted.
func NewFromArena(a *arena.Arena, tier arena.Tier, size int) (*Line, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	buf, err := a.Float64s(tier, size)
	if err != nil {
		return nil, fmt.Errorf("delay: allocate %d samples: %w", size, err)
	}
	return &Line{buffer: buf}, nil
}

// Len returns internal buffer size.
func (d *Line) Len() int {
	return len(d.buffer)
}

// Index returns the current write index.
func (d *Line) Index() int {
	return d.writePos
}

func (d *Line) wrap(i int) int {
	n := len(d.buffer)
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// Write writes one sample and advances.
func (d *Line) Write(sample float64) {
	d.buffer[d.writePos] = sample
	d.UpdateIndex()
}

// Read reads an integer delay in samples. After Write, Read(1) is the
// sample just written.
func (d *Line) Read(delay int) float64 {
	return d.buffer[d.wrap(d.writePos-delay)]
}

// Process returns the sample at the write index (the oldest one, a full
// buffer length ago) and replaces it with x. The index is not advanced.
func (d *Line) Process(x float64) float64 {
	out := d.buffer[d.writePos]
	d.buffer[d.writePos] = x
	return out
}

// Tap reads offset samples behind the write index. A non-zero frac blends
// linearly toward the next older sample.
func (d *Line) Tap(offset int, frac float64) float64 {
	i := d.wrap(d.writePos - offset)
	if frac == 0 {
		return d.buffer[i]
	}
	j := i - 1
	if j < 0 {
		j += len(d.buffer)
	}
	return interp.Linear2(frac, d.buffer[i], d.buffer[j])
}

// TapHermite reads a fractional delay behind the write index with 4-point
// cubic interpolation. TapHermite(float64(n)) equals Tap(n, 0).
// The delay is clamped to [0, Len()-2].
func (d *Line) TapHermite(delay float64) float64 {
	maxDelay := float64(len(d.buffer) - 2)
	if !(delay > 0) {
		delay = 0
	}
	if delay > maxDelay {
		delay = maxDelay
	}

	n := int(math.Floor(delay))
	t := delay - float64(n)

	xm1 := d.buffer[d.wrap(d.writePos-n+1)]
	x0 := d.buffer[d.wrap(d.writePos-n)]
	x1 := d.buffer[d.wrap(d.writePos-n-1)]
	x2 := d.buffer[d.wrap(d.writePos-n-2)]
	return interp.Hermite4(t, xm1, x0, x1, x2)
}

// WriteToOffset stores x offset samples behind the write index without
// advancing.
func (d *Line) WriteToOffset(x float64, offset int) {
	d.buffer[d.wrap(d.writePos-offset)] = x
}

// UpdateIndex advances the write index by one sample.
func (d *Line) UpdateIndex() {
	d.writePos++
	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}
}

// Reset clears line state.
func (d *Line) Reset() {
	clear(d.buffer)
	d.writePos = 0
}

// ResetRange zeroes buffer positions [start, end). end is clamped to the
// buffer length and an empty or inverted range is a no-op. The write
// index is left alone so a running line can be cleared piecewise.
func (d *Line) ResetRange(start, end int) {
	if start < 0 {
		start = 0
	}
	if end > len(d.buffer) {
		end = len(d.buffer)
	}
	if start >= end {
		return
	}
	clear(d.buffer[start:end])
}

// ReadFractional reads a fractional delay with Hermite interpolation, in
// the same convention as Read.
func (d *Line) ReadFractional(delay float64) float64 {
	return d.TapHermite(delay)
}

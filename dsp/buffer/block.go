package buffer

import "sync/atomic"

// Block is a fixed-size audio block owned by a Pool. A block is shared by
// reference: every holder calls Retain, and the last Release hands it
// back to its pool.
type Block struct {
	samples []float64
	refs    atomic.Int32
	pool    *Pool
	id      int
}

// Samples returns the block's sample storage.
func (b *Block) Samples() []float64 {
	return b.samples
}

// Len returns the block size.
func (b *Block) Len() int {
	return len(b.samples)
}

// ID returns the block's index within its pool.
func (b *Block) ID() int {
	return b.id
}

// Refs returns the current reference count.
func (b *Block) Refs() int {
	return int(b.refs.Load())
}

// Zero sets all samples to 0.
func (b *Block) Zero() {
	clear(b.samples)
}

// ZeroRange sets samples in [start, end) to 0.
// Indices are clamped to valid bounds.
func (b *Block) ZeroRange(start, end int) {
	start = max(start, 0)
	end = min(end, len(b.samples))
	if start < end {
		clear(b.samples[start:end])
	}
}

// CopyFrom fills the block from src. Missing samples are zeroed and extra
// ones ignored. It returns the number of samples copied.
func (b *Block) CopyFrom(src []float64) int {
	n := copy(b.samples, src)
	clear(b.samples[n:])
	return n
}

// Retain adds a reference, for example when a block is transmitted to a
// second consumer.
func (b *Block) Retain() *Block {
	b.refs.Add(1)
	return b
}

// Release drops a reference. The last release returns the block to its
// pool. Releasing a block that is already free panics.
func (b *Block) Release() {
	switch n := b.refs.Add(-1); {
	case n == 0:
		b.pool.put(b)
	case n < 0:
		panic("buffer: release of free block")
	}
}

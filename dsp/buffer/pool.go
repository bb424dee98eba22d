package buffer

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cwbudde/algo-pedalfx/dsp/arena"
)

// ErrInvalidPool is returned for a non-positive block count or size.
var ErrInvalidPool = errors.New("buffer: invalid pool geometry")

// Pool is a fixed set of equally sized blocks, allocated once. Allocate
// never grows the pool: when every block is in use it returns nil and the
// caller treats the block as absent.
type Pool struct {
	size    int
	blocks  []Block
	free    chan *Block
	inUse   atomic.Int32
	maxUsed atomic.Int32
}

// NewPool returns a pool of count blocks of size samples on the heap.
func NewPool(count, size int) (*Pool, error) {
	if count <= 0 || size <= 0 {
		return nil, fmt.Errorf("%w: %d x %d", ErrInvalidPool, count, size)
	}
	return newPool(make([]float64, count*size), count, size), nil
}

// NewPoolFromArena carves the pool storage from a.
func NewPoolFromArena(a *arena.Arena, tier arena.Tier, count, size int) (*Pool, error) {
	if count <= 0 || size <= 0 {
		return nil, fmt.Errorf("%w: %d x %d", ErrInvalidPool, count, size)
	}
	mem, err := a.Float64s(tier, count*size)
	if err != nil {
		return nil, fmt.Errorf("buffer: pool of %d blocks: %w", count, err)
	}
	return newPool(mem, count, size), nil
}

func newPool(mem []float64, count, size int) *Pool {
	p := &Pool{
		size:   size,
		blocks: make([]Block, count),
		free:   make(chan *Block, count),
	}
	for i := range p.blocks {
		b := &p.blocks[i]
		b.samples = mem[i*size : (i+1)*size : (i+1)*size]
		b.pool = p
		b.id = i
		p.free <- b
	}
	return p
}

// Allocate takes a zeroed block with one reference, or returns nil when
// the pool is exhausted.
func (p *Pool) Allocate() *Block {
	select {
	case b := <-p.free:
		b.Zero()
		b.refs.Store(1)
		n := p.inUse.Add(1)
		for {
			m := p.maxUsed.Load()
			if n <= m || p.maxUsed.CompareAndSwap(m, n) {
				break
			}
		}
		return b
	default:
		return nil
	}
}

func (p *Pool) put(b *Block) {
	p.inUse.Add(-1)
	p.free <- b
}

// InUse returns the number of allocated blocks.
func (p *Pool) InUse() int {
	return int(p.inUse.Load())
}

// MaxUsed returns the highest InUse seen since construction or the last
// ResetMaxUsed.
func (p *Pool) MaxUsed() int {
	return int(p.maxUsed.Load())
}

// ResetMaxUsed restarts the high-water mark at the current usage.
func (p *Pool) ResetMaxUsed() {
	p.maxUsed.Store(p.inUse.Load())
}

// Count returns the number of blocks in the pool.
func (p *Pool) Count() int {
	return len(p.blocks)
}

// BlockSize returns the samples per block.
func (p *Pool) BlockSize() int {
	return p.size
}

package lifecycle

// DefaultChunk is the number of samples a Cleaner zeroes per block.
const DefaultChunk = 2048

// Clearable is delay memory that can be zeroed piecewise.
type Clearable interface {
	Len() int
	ResetRange(start, end int)
}

// Cleaner walks a fixed set of buffers with a (buffer, offset) cursor.
type Cleaner struct {
	targets []Clearable
	chunk   int
	buf     int
	pos     int

	// Finalize runs once each time a full pass completes. Engines use it
	// to reset small state such as filter registers and write indexes.
	Finalize func()
}

// NewCleaner returns a cleaner over targets zeroing at most chunk samples
// per Step. A non-positive chunk selects DefaultChunk.
func NewCleaner(chunk int, targets ...Clearable) *Cleaner {
	if chunk <= 0 {
		chunk = DefaultChunk
	}
	c := &Cleaner{chunk: chunk}
	c.Add(targets...)
	return c
}

// Add registers more buffers. Nil entries are skipped.
func (c *Cleaner) Add(targets ...Clearable) {
	for _, t := range targets {
		if t != nil {
			c.targets = append(c.targets, t)
		}
	}
}

// Total returns the number of samples covered by one full pass.
func (c *Cleaner) Total() int {
	n := 0
	for _, t := range c.targets {
		n += t.Len()
	}
	return n
}

// Started reports whether a pass is partway through.
func (c *Cleaner) Started() bool {
	return c.buf != 0 || c.pos != 0
}

// Rewind abandons a partial pass.
func (c *Cleaner) Rewind() {
	c.buf = 0
	c.pos = 0
}

// Step zeroes up to one chunk, continuing across buffer boundaries, and
// reports whether the pass completed. A completed pass rewinds the cursor
// and runs Finalize.
func (c *Cleaner) Step() bool {
	budget := c.chunk
	for budget > 0 && c.buf < len(c.targets) {
		t := c.targets[c.buf]
		end := min(c.pos+budget, t.Len())
		t.ResetRange(c.pos, end)
		budget -= end - c.pos
		c.pos = end
		if c.pos >= t.Len() {
			c.buf++
			c.pos = 0
		}
	}
	if c.buf < len(c.targets) {
		return false
	}
	c.Rewind()
	if c.Finalize != nil {
		c.Finalize()
	}
	return true
}

// Run completes the current pass synchronously.
func (c *Cleaner) Run() {
	for !c.Step() {
	}
}

// Floats adapts a raw sample buffer to Clearable.
type Floats []float64

func (f Floats) Len() int { return len(f) }

func (f Floats) ResetRange(start, end int) {
	start = max(start, 0)
	end = min(end, len(f))
	if start < end {
		clear(f[start:end])
	}
}

// Complexes adapts a spectrum buffer to Clearable.
type Complexes []complex128

func (c Complexes) Len() int { return len(c) }

func (c Complexes) ResetRange(start, end int) {
	start = max(start, 0)
	end = min(end, len(c))
	if start < end {
		clear(c[start:end])
	}
}

package arena

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"
)

// Errors returned by Arena.
var (
	ErrBudgetExceeded = errors.New("arena: memory budget exceeded")
	ErrInvalidSize    = errors.New("arena: invalid allocation size")
	ErrUnknownTier    = errors.New("arena: unknown memory tier")
)

// Tier selects a memory region.
type Tier int

const (
	// Fast is small, low-latency memory for short buffers.
	Fast Tier = iota
	// Slow is large memory for long delay lines.
	Slow

	numTiers
)

func (t Tier) String() string {
	switch t {
	case Fast:
		return "fast"
	case Slow:
		return "slow"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Budget declares the capacity of each tier in float64 samples.
type Budget struct {
	Fast int
	Slow int
}

// DefaultBudget fits the three reverbs, the stereo delay and one cabinet
// at 44.1 kHz with room to spare.
var DefaultBudget = Budget{
	Fast: 1 << 17,
	Slow: 1 << 20,
}

type region struct {
	backing []float64
	used    int
}

// Arena hands out zeroed sub-slices of per-tier backing storage.
// It is safe for concurrent use, although allocation is expected
// to happen once, while engines are constructed.
type Arena struct {
	mu      sync.Mutex
	regions [numTiers]region
	spill   bool
	log     *logrus.Entry
}

// Option configures an Arena.
type Option func(*Arena)

// WithSpill lets Fast requests that do not fit fall back to Slow memory.
func WithSpill() Option {
	return func(a *Arena) { a.spill = true }
}

// WithLogger sets the logger used for budget warnings.
func WithLogger(entry *logrus.Entry) Option {
	return func(a *Arena) {
		if entry != nil {
			a.log = entry
		}
	}
}

// New reserves the budget of every tier up front.
func New(b Budget, opts ...Option) *Arena {
	a := &Arena{log: logrus.WithField("component", "arena")}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.regions[Fast].backing = make([]float64, max(b.Fast, 0))
	a.regions[Slow].backing = make([]float64, max(b.Slow, 0))
	return a
}

// Float64s returns n zeroed samples from tier t.
func (a *Arena) Float64s(t Tier, n int) ([]float64, error) {
	if t < 0 || t >= numTiers {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTier, int(t))
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if buf, ok := a.carve(t, n); ok {
		return buf, nil
	}
	if t == Fast && a.spill {
		if buf, ok := a.carve(Slow, n); ok {
			a.log.WithFields(logrus.Fields{
				"function": "Float64s",
				"samples":  n,
			}).Debug("fast tier full, spilled to slow tier")
			return buf, nil
		}
	}

	r := &a.regions[t]
	a.log.WithFields(logrus.Fields{
		"function":  "Float64s",
		"tier":      t.String(),
		"requested": n,
		"remaining": len(r.backing) - r.used,
	}).Warn("allocation exceeds budget")

	return nil, fmt.Errorf("%w: %s tier needs %d samples, %d left",
		ErrBudgetExceeded, t, n, len(r.backing)-r.used)
}

// Complex128s returns n zeroed complex values from tier t.
// They occupy 2n samples of the tier's budget.
func (a *Arena) Complex128s(t Tier, n int) ([]complex128, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, n)
	}
	f, err := a.Float64s(t, 2*n)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*complex128)(unsafe.Pointer(&f[0])), n), nil
}

func (a *Arena) carve(t Tier, n int) ([]float64, bool) {
	r := &a.regions[t]
	if r.used+n > len(r.backing) {
		return nil, false
	}
	buf := r.backing[r.used : r.used+n : r.used+n]
	r.used += n
	return buf, true
}

// Used returns the number of samples handed out from tier t.
func (a *Arena) Used(t Tier) int {
	if t < 0 || t >= numTiers {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.regions[t].used
}

// Remaining returns the free capacity of tier t in samples.
func (a *Arena) Remaining(t Tier) int {
	if t < 0 || t >= numTiers {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.regions[t].backing) - a.regions[t].used
}

// Release zeroes and reclaims everything. Slices obtained earlier
// must no longer be used.
func (a *Arena) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.regions {
		clear(a.regions[i].backing[:a.regions[i].used])
		a.regions[i].used = 0
	}
}

package param

// Handle addresses one coefficient inside a Bank.
type Handle int

// Immediate is the smoothing rate that makes a coefficient follow its
// target without interpolation.
const Immediate = 1.0

type slot struct {
	target Cell
	live   float64
	rate   float64
}

// Bank is an engine-owned set of smoothed coefficients.
//
// Add is only legal during construction. After that, Set and Target may be
// called from any goroutine while Tick, Value and Snap belong to the audio
// goroutine.
type Bank struct {
	slots []slot
}

// Add registers a coefficient with an initial value and a one-pole
// smoothing rate in (0, 1]. Rates outside that range become Immediate.
func (b *Bank) Add(initial, rate float64) Handle {
	if !(rate > 0 && rate <= 1) {
		rate = Immediate
	}
	b.slots = append(b.slots, slot{live: initial, rate: rate})
	s := &b.slots[len(b.slots)-1]
	s.target.Store(initial)
	return Handle(len(b.slots) - 1)
}

// Len returns the number of registered coefficients.
func (b *Bank) Len() int { return len(b.slots) }

// Set publishes a new target for h.
func (b *Bank) Set(h Handle, v float64) {
	b.slots[h].target.Store(v)
}

// Target returns the last published target for h.
func (b *Bank) Target(h Handle) float64 {
	return b.slots[h].target.Load()
}

// Value returns the audio-side live value of h.
func (b *Bank) Value(h Handle) float64 {
	return b.slots[h].live
}

// Tick moves every live value one smoothing step toward its target.
func (b *Bank) Tick() {
	for i := range b.slots {
		s := &b.slots[i]
		t := s.target.Load()
		if s.rate == Immediate {
			s.live = t
			continue
		}
		s.live += (t - s.live) * s.rate
	}
}

// Snap jumps every live value straight to its target.
func (b *Bank) Snap() {
	for i := range b.slots {
		b.slots[i].live = b.slots[i].target.Load()
	}
}

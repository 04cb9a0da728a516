package pursuit

import (
	"math"

	"github.com/pursuitlab/roadchase/internal/rng"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// PoolParams size the arena.
type PoolParams struct {
	// Size is the number of slots instantiated at start and after Reset.
	Size int
	// Capacity bounds Append; slots beyond Size are only used by reinforcements.
	Capacity int
	// Base is the number of pursuers active at start.
	Base int
	// RingStart and RingStep place the base pursuers at RingStart + i*RingStep.
	RingStart float64
	RingStep  float64
}

// DefaultPoolParams returns the reference sizing.
func DefaultPoolParams() PoolParams {
	return PoolParams{Size: 10, Capacity: 20, Base: 3, RingStart: 50, RingStep: 10}
}

// Pool is a fixed-capacity arena of pursuers addressed by slot index.
// The backing array is allocated once; no method allocates afterwards.
type Pool struct {
	slots  []Pursuer
	params PoolParams
	ai     AIParams
	src    rng.Source
}

// NewPool allocates the arena and applies the initial placement around the origin.
func NewPool(params PoolParams, ai AIParams, src rng.Source) *Pool {
	if params.Capacity < params.Size {
		params.Capacity = params.Size
	}
	if params.Base > params.Size {
		params.Base = params.Size
	}
	p := &Pool{
		slots:  make([]Pursuer, params.Size, params.Capacity),
		params: params,
		ai:     ai,
		src:    src,
	}
	p.Reset(core.Vec2{})
	return p
}

// Reset truncates the arena to its initial size and reapplies the initial
// placement around center: base pursuers on a ring, the rest parked.
func (p *Pool) Reset(center core.Vec2) {
	p.slots = p.slots[:p.params.Size]
	base := p.params.Base
	for i := range p.slots {
		s := &p.slots[i]
		*s = Pursuer{}
		s.randomize(p.src, p.ai)
		if i < base {
			theta := 2 * math.Pi * float64(i) / float64(base)
			s.placeAround(center, p.params.RingStart+float64(i)*p.params.RingStep, theta)
			s.Active = true
		} else {
			s.Pos = ParkedPosition
		}
	}
}

// Len returns the number of instantiated slots.
func (p *Pool) Len() int { return len(p.slots) }

// Cap returns the maximum number of slots.
func (p *Pool) Cap() int { return cap(p.slots) }

// Base returns the number of pursuers active after Reset.
func (p *Pool) Base() int { return p.params.Base }

// Get returns the pursuer in slot i.
func (p *Pool) Get(i int) *Pursuer { return &p.slots[i] }

// ActiveCount returns the number of active slots.
func (p *Pool) ActiveCount() int {
	n := 0
	for i := range p.slots {
		if p.slots[i].Active {
			n++
		}
	}
	return n
}

// Activate places slot i on a random ring around center, facing it.
// It reports false when the slot was already active.
func (p *Pool) Activate(i int, center core.Vec2) bool {
	s := &p.slots[i]
	if s.Active {
		return false
	}
	r := rng.Range(p.src, p.ai.RespawnMin, p.ai.RespawnMax)
	s.placeAround(center, r, rng.Angle(p.src))
	s.ClearContact()
	s.Active = true
	return true
}

// Deactivate parks slot i and drops its contact. It reports whether the slot
// was touching the vehicle when parked.
func (p *Pool) Deactivate(i int) (wasTouching bool) {
	s := &p.slots[i]
	wasTouching = s.Touching
	s.Active = false
	s.ClearContact()
	s.Pos = ParkedPosition
	return wasTouching
}

// Append instantiates a new active pursuer at distance r and a random angle
// around center. It is a no-op returning false when the arena is full.
func (p *Pool) Append(center core.Vec2, r float64) (int, bool) {
	if len(p.slots) == cap(p.slots) {
		return -1, false
	}
	p.slots = p.slots[:len(p.slots)+1]
	i := len(p.slots) - 1
	s := &p.slots[i]
	*s = Pursuer{}
	s.randomize(p.src, p.ai)
	s.placeAround(center, r, rng.Angle(p.src))
	s.Active = true
	return i, true
}

// Each calls fn for every active pursuer in slot order.
func (p *Pool) Each(fn func(i int, s *Pursuer)) {
	for i := range p.slots {
		if p.slots[i].Active {
			fn(i, &p.slots[i])
		}
	}
}

// Steer runs the steering behaviour on every active pursuer.
func (p *Pool) Steer(target core.Vec2, diff int, dt float64) {
	for i := range p.slots {
		Steer(&p.slots[i], target, diff, p.ai, dt)
	}
}

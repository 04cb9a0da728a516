// Package proximity tracks continuous contact between the vehicle and active pursuers.
package proximity

import (
	"github.com/pursuitlab/roadchase/internal/pursuit"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// DefaultThreshold is the contact distance in world units.
const DefaultThreshold = 3.0

// Result is the aggregate contact signal for one frame.
// Started and Broken alias detector buffers and are valid until the next Update.
type Result struct {
	MaxDuration float64
	AnyContact  bool
	Touching    int
	Started     []int
	Broken      []int
}

// Detector updates per-pursuer contact state each frame.
type Detector struct {
	Threshold float64

	started []int
	broken  []int
}

// New returns a detector with the given threshold. Buffers are sized for capacity pursuers.
func New(threshold float64, capacity int) *Detector {
	return &Detector{
		Threshold: threshold,
		started:   make([]int, 0, capacity),
		broken:    make([]int, 0, capacity),
	}
}

// Update classifies every active pursuer as touching (distance <= Threshold)
// or not, and advances its contact timer. Leaving contact resets the timer
// immediately, there is no grace period.
func (d *Detector) Update(now float64, vehicle core.Vec2, pool *pursuit.Pool) Result {
	d.started = d.started[:0]
	d.broken = d.broken[:0]
	res := Result{}

	for i := 0; i < pool.Len(); i++ {
		p := pool.Get(i)
		if !p.Active {
			continue
		}
		touching := p.Pos.Dist(vehicle) <= d.Threshold
		switch {
		case touching && !p.Touching:
			p.Touching = true
			p.ContactStart = now
			p.ContactDuration = 0
			d.started = append(d.started, i)
		case touching:
			p.ContactDuration = now - p.ContactStart
		case p.Touching:
			p.ClearContact()
			d.broken = append(d.broken, i)
		}
		if p.Touching {
			res.AnyContact = true
			res.Touching++
			if p.ContactDuration > res.MaxDuration {
				res.MaxDuration = p.ContactDuration
			}
		}
	}

	res.Started = d.started
	res.Broken = d.broken
	return res
}

// Package spawn decides how many pursuers are active and when reinforcements arrive.
package spawn

import (
	"math"

	"github.com/pursuitlab/roadchase/internal/pursuit"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// Params tune both spawn policies.
type Params struct {
	Policy core.SpawnPolicy

	// level policy
	BaseCount       int
	TiersPerPursuer int

	// reinforcement policy, seconds
	BaseInterval  float64
	MinInterval   float64
	SpawnDistance float64
}

// DefaultParams returns the reference tuning with the level policy.
func DefaultParams() Params {
	return Params{
		Policy:          core.SpawnLevel,
		BaseCount:       3,
		TiersPerPursuer: 2,
		BaseInterval:    30,
		MinInterval:     10,
		SpawnDistance:   100,
	}
}

// Change records a slot that changed state during a scheduling pass.
type Change struct {
	Slot        int
	Activated   bool
	Reinforced  bool
	WasTouching bool
}

// Scheduler applies the configured policy to a pursuer pool.
type Scheduler struct {
	params    Params
	lastSpawn float64
	changes   []Change
}

// New returns a scheduler. capacity sizes the change buffer.
func New(params Params, capacity int) *Scheduler {
	return &Scheduler{params: params, changes: make([]Change, 0, capacity)}
}

// Params returns the scheduler configuration.
func (s *Scheduler) Params() Params { return s.params }

// Reset restarts the reinforcement clock.
func (s *Scheduler) Reset() { s.lastSpawn = 0 }

// LastSpawn returns the time of the last reinforcement.
func (s *Scheduler) LastSpawn() float64 { return s.lastSpawn }

// TargetCount is the desired active count at a difficulty tier, capped at poolSize.
// The reinforcement policy has no tier-driven target and reports zero.
func (s *Scheduler) TargetCount(tier, poolSize int) int {
	if s.params.Policy == core.SpawnReinforcement {
		return 0
	}
	per := s.params.TiersPerPursuer
	if per < 1 {
		per = 1
	}
	n := s.params.BaseCount + tier/per
	if n > poolSize {
		n = poolSize
	}
	if n < 0 {
		n = 0
	}
	return n
}

// Interval is the reinforcement interval after elapsed seconds:
// max(MinInterval, BaseInterval - elapsed minutes).
func (s *Scheduler) Interval(elapsed float64) float64 {
	return math.Max(s.params.MinInterval, s.params.BaseInterval-math.Floor(elapsed/60))
}

// Update runs one scheduling pass for the configured policy and returns the
// slots it changed. The returned slice is reused by the next call.
func (s *Scheduler) Update(now, elapsed float64, target int, pool *pursuit.Pool, vehicle core.Vec2) []Change {
	if s.params.Policy == core.SpawnReinforcement {
		return s.Reinforce(now, elapsed, pool, vehicle)
	}
	return s.Reconcile(target, pool, vehicle)
}

// Reconcile keeps slot i active iff it is among the first target slots in
// index order, activating parked slots around the vehicle and parking the
// rest. Active count equals min(target, pool size) afterwards.
func (s *Scheduler) Reconcile(target int, pool *pursuit.Pool, vehicle core.Vec2) []Change {
	s.changes = s.changes[:0]
	active := 0
	for i := 0; i < pool.Len(); i++ {
		p := pool.Get(i)
		if active < target {
			if !p.Active {
				pool.Activate(i, vehicle)
				s.changes = append(s.changes, Change{Slot: i, Activated: true})
			}
			active++
			continue
		}
		if p.Active {
			touching := pool.Deactivate(i)
			s.changes = append(s.changes, Change{Slot: i, WasTouching: touching})
		}
	}
	return s.changes
}

// Reinforce appends one fresh pursuer at SpawnDistance once the interval has
// passed since the last reinforcement. A full pool is a silent no-op.
func (s *Scheduler) Reinforce(now, elapsed float64, pool *pursuit.Pool, vehicle core.Vec2) []Change {
	s.changes = s.changes[:0]
	if now-s.lastSpawn <= s.Interval(elapsed) {
		return s.changes
	}
	s.lastSpawn = now
	if i, ok := pool.Append(vehicle, s.params.SpawnDistance); ok {
		s.changes = append(s.changes, Change{Slot: i, Activated: true, Reinforced: true})
	}
	return s.changes
}

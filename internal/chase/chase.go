// Package chase holds the scoring and failure state of a run.
package chase

import (
	"math"

	"github.com/pursuitlab/roadchase/internal/util"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// Params tune scoring and the catch rule.
type Params struct {
	CatchMode         core.CatchMode
	ScoreMode         core.ScoreMode
	MaxCaughtTime     float64 // seconds
	TierDuration      float64 // seconds per difficulty tier
	DistanceScale     float64 // score units per world unit travelled along Z
	DistancePrecision int     // decimal places reported in snapshots
}

// DefaultParams returns the reference tuning.
func DefaultParams() Params {
	return Params{
		CatchMode:         core.CatchContact,
		ScoreMode:         core.ScoreSurvival,
		MaxCaughtTime:     5,
		TierDuration:      30,
		DistanceScale:     1,
		DistancePrecision: 2,
	}
}

// Input is what the state machine consumes each frame.
type Input struct {
	Dt         float64
	DeltaZ     float64 // vehicle longitudinal displacement this frame
	MaxContact float64 // longest continuous contact among touching pursuers
	AnyContact bool
}

// Transition reports what changed during an Update.
type Transition struct {
	DifficultyChanged bool
	PrevDifficulty    int
	Caught            bool
}

// State is Running until caught, then GameOver until Reset.
type State struct {
	params Params

	Score          int
	ElapsedTime    float64
	// Distance accumulates unrounded; Snapshot rounds it.
	Distance       float64
	Difficulty     int
	TargetPursuers int
	CaughtProgress float64
	CollisionTimer float64
	GameOver       bool
}

// New returns a Running state.
func New(params Params) *State {
	s := &State{params: params}
	s.Reset()
	return s
}

// Params returns the scoring configuration.
func (s *State) Params() Params { return s.params }

// Reset restores every field to its initial value.
func (s *State) Reset() {
	s.Score = 0
	s.ElapsedTime = 0
	s.Distance = 0
	s.Difficulty = 1
	s.TargetPursuers = 0
	s.CaughtProgress = 0
	s.CollisionTimer = 0
	s.GameOver = false
}

// Update advances a Running state by one frame. A GameOver state is left
// unchanged.
func (s *State) Update(in Input) Transition {
	var tr Transition
	if s.GameOver {
		return tr
	}

	s.ElapsedTime += in.Dt
	s.Distance += math.Abs(in.DeltaZ) * s.params.DistanceScale

	switch s.params.ScoreMode {
	case core.ScoreDistance:
		s.Score = int(math.Floor(s.Distance * 10))
	default:
		s.Score = int(math.Floor(s.ElapsedTime * 10))
	}

	tier := s.Tier()
	if tier != s.Difficulty {
		tr.DifficultyChanged = true
		tr.PrevDifficulty = s.Difficulty
		s.Difficulty = tier
	}

	switch s.params.CatchMode {
	case core.CatchCollision:
		if in.AnyContact {
			s.CollisionTimer += in.Dt
		} else {
			s.CollisionTimer = 0
		}
		s.CaughtProgress = s.progress(s.CollisionTimer)
		s.GameOver = s.CollisionTimer >= s.params.MaxCaughtTime
	default:
		s.CaughtProgress = s.progress(in.MaxContact)
		s.GameOver = s.CaughtProgress >= 1
	}
	tr.Caught = s.GameOver
	return tr
}

// Tier is the difficulty tier for the current elapsed time.
func (s *State) Tier() int {
	if s.params.TierDuration <= 0 {
		return 1
	}
	return int(math.Floor(s.ElapsedTime/s.params.TierDuration)) + 1
}

func (s *State) progress(held float64) float64 {
	if s.params.MaxCaughtTime <= 0 {
		return 1
	}
	return core.Clamp(held/s.params.MaxCaughtTime, 0, 1)
}

// Snapshot returns the renderer view of the state.
func (s *State) Snapshot(active int) core.ChaseSnapshot {
	return core.ChaseSnapshot{
		Score:          s.Score,
		ElapsedTime:    s.ElapsedTime,
		Distance:       util.RoundTo(s.Distance, s.params.DistancePrecision),
		Difficulty:     s.Difficulty,
		TargetPursuers: s.TargetPursuers,
		ActivePursuers: active,
		CaughtProgress: s.CaughtProgress,
		GameOver:       s.GameOver,
	}
}

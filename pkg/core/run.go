// pkg/core/run.go
package core

import "time"

// Reasons a run ends.
const (
	EndCaught  = "caught"
	EndReset   = "reset"
	EndStopped = "stopped"
)

// Run describes one recorded chase session from start to game over or reset.
type Run struct {
	ID          string
	StartTime   time.Time
	Seed        uint64
	CatchMode   CatchMode
	ScoreMode   ScoreMode
	SpawnPolicy SpawnPolicy
	SpeedFactor float64
	CarColor    string
	Config      map[string]any
}

// RunResult is the final state of a run.
type RunResult struct {
	RunID       string
	EndTime     time.Time
	Frames      uint64
	Score       int
	ElapsedTime float64
	Distance    float64
	Difficulty  int
	GameOver    bool
	Reason      string
	Track       []Vec2
}

// FrameSample is a down-sampled snapshot persisted for replay and analysis.
type FrameSample struct {
	RunID          string
	Frame          uint64
	Time           time.Time
	Vehicle        Pose
	Speed          float64
	Score          int
	Difficulty     int
	ActivePursuers int
	CaughtProgress float64
	GameOver       bool
}

// SampleFromSnapshot builds a FrameSample from a snapshot.
func SampleFromSnapshot(runID string, at time.Time, s Snapshot) FrameSample {
	return FrameSample{
		RunID:          runID,
		Frame:          s.Frame,
		Time:           at,
		Vehicle:        s.Vehicle.Pose,
		Speed:          s.Vehicle.Speed,
		Score:          s.Chase.Score,
		Difficulty:     s.Chase.Difficulty,
		ActivePursuers: s.Chase.ActivePursuers,
		CaughtProgress: s.Chase.CaughtProgress,
		GameOver:       s.Chase.GameOver,
	}
}

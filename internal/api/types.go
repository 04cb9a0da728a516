package api

import (
	"time"

	"github.com/pursuitlab/roadchase/internal/storage"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// RunSummary is the JSON shape of a stored run.
type RunSummary struct {
	ID          string           `json:"id"`
	StartTime   time.Time        `json:"startTime"`
	EndTime     *time.Time       `json:"endTime,omitempty"`
	Seed        uint64           `json:"seed"`
	CatchMode   core.CatchMode   `json:"catchMode"`
	ScoreMode   core.ScoreMode   `json:"scoreMode"`
	SpawnPolicy core.SpawnPolicy `json:"spawnPolicy"`
	SpeedFactor float64          `json:"speedFactor"`
	CarColor    string           `json:"carColor,omitempty"`
	FrameCount  int              `json:"frameCount"`
	EventCount  int              `json:"eventCount"`
	Duration    float64          `json:"durationSeconds"`

	Result *RunResult `json:"result,omitempty"`
}

// RunResult is the outcome part of a RunSummary.
type RunResult struct {
	Frames      uint64      `json:"frames"`
	Score       int         `json:"score"`
	ElapsedTime float64     `json:"elapsedTime"`
	Distance    float64     `json:"distance"`
	Difficulty  int         `json:"difficulty"`
	GameOver    bool        `json:"gameOver"`
	Reason      string      `json:"reason"`
	Track       []core.Vec2 `json:"track,omitempty"`
}

// Summarize converts a stored record. The track is only kept when withTrack is set.
func Summarize(rec storage.RunRecord, withTrack bool) RunSummary {
	out := RunSummary{
		ID:          rec.Run.ID,
		StartTime:   rec.Run.StartTime,
		Seed:        rec.Run.Seed,
		CatchMode:   rec.Run.CatchMode,
		ScoreMode:   rec.Run.ScoreMode,
		SpawnPolicy: rec.Run.SpawnPolicy,
		SpeedFactor: rec.Run.SpeedFactor,
		CarColor:    rec.Run.CarColor,
		FrameCount:  rec.FrameCount,
		EventCount:  rec.EventCount,
		Duration:    rec.Duration().Seconds(),
	}
	if res := rec.Result; res != nil {
		end := res.EndTime
		out.EndTime = &end
		out.Result = &RunResult{
			Frames:      res.Frames,
			Score:       res.Score,
			ElapsedTime: res.ElapsedTime,
			Distance:    res.Distance,
			Difficulty:  res.Difficulty,
			GameOver:    res.GameOver,
			Reason:      res.Reason,
		}
		if withTrack {
			out.Result.Track = res.Track
		}
	}
	return out
}

// ControlRequest is the body of the control endpoints. Only the field the
// endpoint needs is read.
type ControlRequest struct {
	Seed   *uint64  `json:"seed,omitempty"`
	Factor *float64 `json:"factor,omitempty"`
	Color  string   `json:"color,omitempty"`
}

// ControlResponse carries the handler result.
type ControlResponse struct {
	Result any `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/pursuitlab/roadchase/internal/geo"
	"github.com/pursuitlab/roadchase/internal/model"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// RunToCore converts a GORM Run to a core.Run.
func RunToCore(m model.Run) core.Run {
	var cfg map[string]any
	if len(m.Config) > 0 {
		_ = json.Unmarshal(m.Config, &cfg)
	}
	return core.Run{
		ID:          m.ID,
		StartTime:   m.StartTime,
		Seed:        uint64(m.Seed),
		CatchMode:   core.CatchMode(m.CatchMode),
		ScoreMode:   core.ScoreMode(m.ScoreMode),
		SpawnPolicy: core.SpawnPolicy(m.SpawnPolicy),
		SpeedFactor: m.SpeedFactor,
		CarColor:    m.CarColor,
		Config:      cfg,
	}
}

// RunToResult returns the run's result, or nil if the run never ended.
func RunToResult(m model.Run) *core.RunResult {
	if !m.EndTime.Valid {
		return nil
	}
	return &core.RunResult{
		RunID:       m.ID,
		EndTime:     m.EndTime.Time,
		Frames:      m.Frames,
		Score:       m.Score,
		ElapsedTime: m.ElapsedTime,
		Distance:    m.Distance,
		Difficulty:  m.Difficulty,
		GameOver:    m.GameOver,
		Reason:      m.Reason,
		Track:       geo.TrackFromGeometry(m.Track),
	}
}

// FrameSampleToCore converts a GORM FrameSample to a core.FrameSample.
func FrameSampleToCore(m model.FrameSample) core.FrameSample {
	pos, _ := geo.VecFromPoint(m.Position)
	return core.FrameSample{
		RunID:          m.RunID,
		Frame:          m.Frame,
		Time:           m.Time,
		Vehicle:        core.Pose{Position: pos, Heading: m.Heading},
		Speed:          m.Speed,
		Score:          m.Score,
		Difficulty:     m.Difficulty,
		ActivePursuers: m.ActivePursuers,
		CaughtProgress: m.CaughtProgress,
		GameOver:       m.GameOver,
	}
}

// RunEventToCore converts a GORM RunEvent to a core.FrameEvent.
func RunEventToCore(m model.RunEvent) core.FrameEvent {
	return core.FrameEvent{
		Frame:  m.Frame,
		Time:   m.SimTime,
		Kind:   core.EventKind(m.Kind),
		Slot:   m.Slot,
		Value:  m.Value,
		Detail: m.Detail,
	}
}

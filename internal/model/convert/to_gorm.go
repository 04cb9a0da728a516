package convert

import (
	"database/sql"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/pursuitlab/roadchase/internal/geo"
	"github.com/pursuitlab/roadchase/internal/model"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// configToJSON converts the run's effective configuration for DB storage.
func configToJSON(cfg map[string]any) datatypes.JSON {
	if len(cfg) == 0 {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToRun converts a core.Run to a GORM model.Run.
// The uint64 seed is stored by bit pattern in a signed column.
func CoreToRun(r core.Run) model.Run {
	return model.Run{
		ID:          r.ID,
		StartTime:   r.StartTime,
		Seed:        int64(r.Seed),
		CatchMode:   string(r.CatchMode),
		ScoreMode:   string(r.ScoreMode),
		SpawnPolicy: string(r.SpawnPolicy),
		SpeedFactor: r.SpeedFactor,
		CarColor:    r.CarColor,
		Config:      configToJSON(r.Config),
	}
}

// ApplyResult copies a run result onto a stored run.
func ApplyResult(m *model.Run, res core.RunResult) {
	m.EndTime = sql.NullTime{Time: res.EndTime, Valid: !res.EndTime.IsZero()}
	m.Frames = res.Frames
	m.Score = res.Score
	m.ElapsedTime = res.ElapsedTime
	m.Distance = res.Distance
	m.Difficulty = res.Difficulty
	m.GameOver = res.GameOver
	m.Reason = res.Reason
	m.Track = geo.LineStringFromTrack(res.Track).AsGeometry()
}

// ResultColumns is the column map used to update a run when it ends.
func ResultColumns(res core.RunResult) map[string]any {
	var m model.Run
	ApplyResult(&m, res)
	return map[string]any{
		"end_time":     m.EndTime,
		"frames":       m.Frames,
		"score":        m.Score,
		"elapsed_time": m.ElapsedTime,
		"distance":     m.Distance,
		"difficulty":   m.Difficulty,
		"game_over":    m.GameOver,
		"reason":       m.Reason,
		"track":        m.Track,
	}
}

// CoreToFrameSample converts a core.FrameSample to a GORM model.FrameSample.
func CoreToFrameSample(s core.FrameSample) model.FrameSample {
	return model.FrameSample{
		Time:           s.Time,
		RunID:          s.RunID,
		Frame:          s.Frame,
		Position:       geo.PointFromVec(s.Vehicle.Position),
		Heading:        s.Vehicle.Heading,
		Speed:          s.Speed,
		Score:          s.Score,
		Difficulty:     s.Difficulty,
		ActivePursuers: s.ActivePursuers,
		CaughtProgress: s.CaughtProgress,
		GameOver:       s.GameOver,
	}
}

// CoreToRunEvent converts a core.FrameEvent to a GORM model.RunEvent.
// Time is the wall-clock time the event was recorded; SimTime is the engine's.
func CoreToRunEvent(runID string, e core.FrameEvent, recorded time.Time) model.RunEvent {
	return model.RunEvent{
		Time:    recorded,
		RunID:   runID,
		Frame:   e.Frame,
		SimTime: e.Time,
		Kind:    string(e.Kind),
		Slot:    e.Slot,
		Value:   e.Value,
		Detail:  e.Detail,
	}
}

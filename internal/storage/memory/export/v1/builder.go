package v1

import (
	"time"

	"github.com/pursuitlab/roadchase/internal/util"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// RunData contains everything needed to build an export
type RunData struct {
	Run    core.Run
	Result *core.RunResult
	Frames []core.FrameSample
	Events []core.FrameEvent
}

// Build creates an Export from the run data
func Build(data *RunData) Export {
	export := Export{
		Version:     FormatVersion,
		RunID:       data.Run.ID,
		StartTime:   data.Run.StartTime.UTC().Format(time.RFC3339Nano),
		Seed:        data.Run.Seed,
		CatchMode:   string(data.Run.CatchMode),
		ScoreMode:   string(data.Run.ScoreMode),
		SpawnPolicy: string(data.Run.SpawnPolicy),
		SpeedFactor: data.Run.SpeedFactor,
		CarColor:    data.Run.CarColor,
		Frames:      make([][]any, 0, len(data.Frames)),
		Events:      make([][]any, 0, len(data.Events)),
	}

	for _, f := range data.Frames {
		export.Frames = append(export.Frames, []any{
			f.Frame,
			util.RoundTo(f.Vehicle.Position.X, 3),
			util.RoundTo(f.Vehicle.Position.Z, 3),
			util.RoundTo(f.Vehicle.Heading, 4),
			util.RoundTo(f.Speed, 3),
			f.Score,
			f.Difficulty,
			f.ActivePursuers,
			util.RoundTo(f.CaughtProgress, 3),
		})
	}

	for _, e := range data.Events {
		export.Events = append(export.Events, []any{
			e.Frame,
			util.RoundTo(e.Time, 3),
			string(e.Kind),
			e.Slot,
			util.RoundTo(e.Value, 3),
			e.Detail,
		})
	}

	if r := data.Result; r != nil {
		export.EndTime = r.EndTime.UTC().Format(time.RFC3339Nano)
		export.Result = &Result{
			Reason:      r.Reason,
			Frames:      r.Frames,
			Score:       r.Score,
			ElapsedTime: util.RoundTo(r.ElapsedTime, 3),
			Distance:    r.Distance,
			Difficulty:  r.Difficulty,
			Caught:      r.GameOver,
		}
		if len(r.Track) > 0 {
			export.Track = make([][2]float64, len(r.Track))
			for i, p := range r.Track {
				export.Track[i] = [2]float64{util.RoundTo(p.X, 3), util.RoundTo(p.Z, 3)}
			}
		}
	}

	return export
}

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ttacon/chalk"

	"github.com/pursuitlab/roadchase/internal/api"
	"github.com/pursuitlab/roadchase/internal/handlers"
	v1 "github.com/pursuitlab/roadchase/internal/storage/memory/export/v1"
	"github.com/pursuitlab/roadchase/pkg/core"
)

func outcome(r *api.RunResult) string {
	switch {
	case r == nil:
		return chalk.Yellow.Color("running")
	case r.GameOver:
		return chalk.Red.Color(r.Reason)
	default:
		return chalk.Green.Color(r.Reason)
	}
}

func printRuns(w io.Writer, runs []api.RunSummary) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSEED\tMODE\tFRAMES\tSCORE\tOUTCOME")
	for _, r := range runs {
		score := "-"
		if r.Result != nil {
			score = fmt.Sprint(r.Result.Score)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s/%s\t%d\t%s\t%s\n",
			r.ID, r.StartTime.Format(time.DateTime), r.Seed, r.CatchMode, r.ScoreMode,
			r.FrameCount, score, outcome(r.Result))
	}
	return tw.Flush()
}

func printRun(w io.Writer, r api.RunSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", chalk.Bold.TextStyle(r.ID))
	fmt.Fprintf(tw, "started\t%s\n", r.StartTime.Format(time.RFC3339))
	fmt.Fprintf(tw, "seed\t%d\n", r.Seed)
	fmt.Fprintf(tw, "catch\t%s\n", r.CatchMode)
	fmt.Fprintf(tw, "score mode\t%s\n", r.ScoreMode)
	fmt.Fprintf(tw, "spawn\t%s\n", r.SpawnPolicy)
	fmt.Fprintf(tw, "speed factor\t%g\n", r.SpeedFactor)
	if r.CarColor != "" {
		fmt.Fprintf(tw, "color\t%s\n", r.CarColor)
	}
	fmt.Fprintf(tw, "samples\t%d frames, %d events\n", r.FrameCount, r.EventCount)
	fmt.Fprintf(tw, "outcome\t%s\n", outcome(r.Result))
	if res := r.Result; res != nil {
		fmt.Fprintf(tw, "frames\t%d\n", res.Frames)
		fmt.Fprintf(tw, "score\t%d\n", res.Score)
		fmt.Fprintf(tw, "elapsed\t%.1fs\n", res.ElapsedTime)
		fmt.Fprintf(tw, "distance\t%.1fm\n", res.Distance)
		fmt.Fprintf(tw, "difficulty\t%d\n", res.Difficulty)
		if len(res.Track) > 0 {
			fmt.Fprintf(tw, "track\t%d points\n", len(res.Track))
		}
	}
	return tw.Flush()
}

func printFrames(w io.Writer, frames []core.FrameSample) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "FRAME\tX\tZ\tHEADING\tSPEED\tSCORE\tDIFF\tPURSUERS\tCAUGHT\t")
	for _, f := range frames {
		fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%.3f\t%.2f\t%d\t%d\t%d\t%.2f\t\n",
			f.Frame, f.Vehicle.Position.X, f.Vehicle.Position.Z, f.Vehicle.Heading,
			f.Speed, f.Score, f.Difficulty, f.ActivePursuers, f.CaughtProgress)
	}
	return tw.Flush()
}

func printEvents(w io.Writer, events []core.FrameEvent) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FRAME\tTIME\tKIND\tSLOT\tVALUE\tDETAIL")
	for _, e := range events {
		kind := string(e.Kind)
		if e.Kind == core.EventGameOver {
			kind = chalk.Red.Color(kind)
		}
		fmt.Fprintf(tw, "%d\t%.2f\t%s\t%d\t%g\t%s\n", e.Frame, e.Time, kind, e.Slot, e.Value, e.Detail)
	}
	return tw.Flush()
}

func printStatus(w io.Writer, st handlers.Status) error {
	c := st.Snapshot.Chase
	v := st.Snapshot.Vehicle
	state := chalk.Green.Color("driving")
	if c.GameOver {
		state = chalk.Red.Color("caught")
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "state\t%s\n", state)
	fmt.Fprintf(tw, "frame\t%d\n", st.Snapshot.Frame)
	fmt.Fprintf(tw, "score\t%d\n", c.Score)
	fmt.Fprintf(tw, "elapsed\t%.1fs\n", c.ElapsedTime)
	fmt.Fprintf(tw, "distance\t%.1fm\n", c.Distance)
	fmt.Fprintf(tw, "difficulty\t%d\n", c.Difficulty)
	fmt.Fprintf(tw, "pursuers\t%d/%d\n", c.ActivePursuers, c.TargetPursuers)
	fmt.Fprintf(tw, "caught\t%.0f%%\n", c.CaughtProgress*100)
	fmt.Fprintf(tw, "position\t%.1f, %.1f\n", v.Position.X, v.Position.Z)
	fmt.Fprintf(tw, "speed\t%.1f\n", v.Speed)
	fmt.Fprintf(tw, "speed factor\t%g\n", st.SpeedFactor)
	if len(st.Ghosts) > 0 {
		fmt.Fprintf(tw, "ghosts\t%d\n", len(st.Ghosts))
	}
	return tw.Flush()
}

func printExport(w io.Writer, e v1.Export) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", chalk.Bold.TextStyle(e.RunID))
	fmt.Fprintf(tw, "version\t%d\n", e.Version)
	fmt.Fprintf(tw, "started\t%s\n", e.StartTime)
	fmt.Fprintf(tw, "seed\t%d\n", e.Seed)
	fmt.Fprintf(tw, "modes\t%s/%s/%s\n", e.CatchMode, e.ScoreMode, e.SpawnPolicy)
	fmt.Fprintf(tw, "samples\t%d frames, %d events, %d track points\n", len(e.Frames), len(e.Events), len(e.Track))
	if r := e.Result; r != nil {
		reason := chalk.Green.Color(r.Reason)
		if r.Caught {
			reason = chalk.Red.Color(r.Reason)
		}
		fmt.Fprintf(tw, "outcome\t%s\n", reason)
		fmt.Fprintf(tw, "score\t%d in %.1fs over %.1fm\n", r.Score, r.ElapsedTime, r.Distance)
	} else {
		fmt.Fprintf(tw, "outcome\t%s\n", chalk.Yellow.Color("unfinished"))
	}
	return tw.Flush()
}

// Package worker records runs off the frame loop. The Recorder is a frame
// sink: it turns snapshots and events into run lifecycle calls, frame samples
// and event rows, and a background goroutine hands them to the storage backend.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pursuitlab/roadchase/internal/engine"
	"github.com/pursuitlab/roadchase/internal/geo"
	"github.com/pursuitlab/roadchase/internal/queue"
	"github.com/pursuitlab/roadchase/internal/session"
	"github.com/pursuitlab/roadchase/internal/storage"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// Defaults applied by NewRecorder.
const (
	DefaultSampleEvery   = 6
	DefaultMaxPending    = 4096
	DefaultFlushInterval = 250 * time.Millisecond
	DefaultTrackSpacing  = 5.0
	DefaultTrackPoints   = 2000
)

// Dependencies holds all dependencies for the recorder
type Dependencies struct {
	Backend storage.Backend
	Session *session.Context
	Logger  *slog.Logger

	// Sim supplies the modes and initial settings stamped on each run.
	Sim engine.Config
	// Settings is stored verbatim as the run configuration.
	Settings map[string]any
	// Seed is called on the frame loop when a run starts.
	Seed func() uint64
	// NewID returns a run ID. Defaults to a random UUID.
	NewID func() string

	SampleEvery   int
	MaxPending    int
	FlushInterval time.Duration
	TrackSpacing  float64
	TrackPoints   int
}

// Stats are the recorder counters reported by the monitor.
type Stats struct {
	Pending int
	Written uint64
	Dropped uint64
	Failed  uint64
}

// Recorder is an engine.Sink that persists runs. Consume must be called
// from the frame loop only; Close must be called after the loop has stopped.
type Recorder struct {
	deps Dependencies

	ops  *queue.Queue[op]
	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	started   atomic.Bool
	closeOnce sync.Once

	// frame loop state
	run       *core.Run
	ended     bool
	baseFrame uint64
	lastFrame uint64
	lastChase core.ChaseSnapshot
	lastAt    time.Time
	track     *geo.Track

	settingsMu  sync.Mutex
	speedFactor float64
	color       string

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

var (
	_ engine.Sink = (*Recorder)(nil)
)

// NewRecorder creates a recorder. Call Start to begin writing.
func NewRecorder(deps Dependencies) *Recorder {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	if deps.Seed == nil {
		deps.Seed = func() uint64 { return 0 }
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.SampleEvery <= 0 {
		deps.SampleEvery = DefaultSampleEvery
	}
	if deps.MaxPending <= 0 {
		deps.MaxPending = DefaultMaxPending
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.TrackSpacing <= 0 {
		deps.TrackSpacing = DefaultTrackSpacing
	}
	if deps.TrackPoints <= 0 {
		deps.TrackPoints = DefaultTrackPoints
	}
	return &Recorder{
		deps:        deps,
		ops:         queue.New[op](),
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		track:       geo.NewTrack(deps.TrackSpacing, deps.TrackPoints),
		speedFactor: deps.Sim.Vehicle.SpeedFactor,
		color:       deps.Sim.CarColor,
	}
}

// Start launches the writer goroutine.
func (r *Recorder) Start() {
	if r.started.Swap(true) {
		return
	}
	go r.writerLoop()
}

// SpeedFactorChanged stamps f on the next run.
func (r *Recorder) SpeedFactorChanged(f float64) {
	r.settingsMu.Lock()
	r.speedFactor = f
	r.settingsMu.Unlock()
}

// ColorChanged stamps c on the next run.
func (r *Recorder) ColorChanged(c string) {
	r.settingsMu.Lock()
	r.color = c
	r.settingsMu.Unlock()
}

// Stats returns the current counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Pending: r.ops.Len(),
		Written: r.written.Load(),
		Dropped: r.dropped.Load(),
		Failed:  r.failed.Load(),
	}
}

// RunID returns the run being recorded, or "" before the first frame.
// Frame loop only.
func (r *Recorder) RunID() string {
	if r.run == nil {
		return ""
	}
	return r.run.ID
}

// Consume implements engine.Sink.
func (r *Recorder) Consume(f engine.Frame) {
	snap := f.Snapshot
	if r.run == nil {
		r.begin(f.At, 0)
	}

	over := false
	for i := range f.Events {
		ev := f.Events[i]
		switch ev.Kind {
		case core.EventReset:
			if !r.ended {
				r.end(r.lastAt, r.lastFrame, r.lastChase, core.EndReset)
			}
			r.begin(f.At, ev.Frame)
		case core.EventGameOver:
			over = true
		}
		if r.ended {
			continue
		}
		ev.Frame = r.relative(ev.Frame)
		r.push(op{kind: opEvent, runID: r.run.ID, event: ev}, false)
	}
	if r.ended {
		return
	}

	rel := r.relative(snap.Frame)
	r.track.Add(snap.Vehicle.Position)
	if over || rel%uint64(r.deps.SampleEvery) == 0 {
		sample := core.SampleFromSnapshot(r.run.ID, f.At, snap)
		sample.Frame = rel
		r.push(op{kind: opFrame, sample: &sample}, !over)
	}

	r.lastAt = f.At
	r.lastFrame = snap.Frame
	r.lastChase = snap.Chase
	r.deps.Session.Observe(rel, int64(snap.Chase.Score))

	if over {
		r.end(f.At, snap.Frame, snap.Chase, core.EndCaught)
	}
}

func (r *Recorder) relative(frame uint64) uint64 {
	if frame < r.baseFrame {
		return 0
	}
	return frame - r.baseFrame
}

func (r *Recorder) begin(at time.Time, base uint64) {
	r.settingsMu.Lock()
	speed, color := r.speedFactor, r.color
	r.settingsMu.Unlock()

	r.run = &core.Run{
		ID:          r.deps.NewID(),
		StartTime:   at,
		Seed:        r.deps.Seed(),
		CatchMode:   r.deps.Sim.Chase.CatchMode,
		ScoreMode:   r.deps.Sim.Chase.ScoreMode,
		SpawnPolicy: r.deps.Sim.Spawn.Policy,
		SpeedFactor: speed,
		CarColor:    color,
		Config:      r.deps.Settings,
	}
	r.ended = false
	r.baseFrame = base
	r.lastAt = at
	r.lastFrame = base
	r.lastChase = core.ChaseSnapshot{}
	r.track.Reset()
	r.deps.Session.SetRun(r.run)
	r.push(op{kind: opStart, run: r.run}, false)
	r.deps.Logger.Info("run started", "run_id", r.run.ID, "seed", r.run.Seed)
}

func (r *Recorder) end(at time.Time, frame uint64, chase core.ChaseSnapshot, reason string) {
	res := &core.RunResult{
		RunID:       r.run.ID,
		EndTime:     at,
		Frames:      r.relative(frame),
		Score:       chase.Score,
		ElapsedTime: chase.ElapsedTime,
		Distance:    chase.Distance,
		Difficulty:  chase.Difficulty,
		GameOver:    chase.GameOver,
		Reason:      reason,
		Track:       r.track.Points(),
	}
	r.ended = true
	r.push(op{kind: opEnd, result: res}, false)
	r.deps.Logger.Info("run ended", "run_id", res.RunID, "reason", reason, "score", res.Score, "frames", res.Frames)
}

// push queues o. Sheddable ops are dropped when the writer is behind;
// lifecycle ops and events never are.
func (r *Recorder) push(o op, sheddable bool) {
	if sheddable && r.ops.Len() >= r.deps.MaxPending {
		r.dropped.Add(1)
		return
	}
	r.ops.Push(o)
	if !sheddable {
		select {
		case r.wake <- struct{}{}:
		default:
		}
	}
}

// Close ends the open run as stopped and waits for queued writes to reach
// the backend. It does not close the backend.
func (r *Recorder) Close(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		if r.run != nil && !r.ended {
			r.end(r.lastAt, r.lastFrame, r.lastChase, core.EndStopped)
		}
		if !r.started.Load() {
			r.flush()
			return
		}
		close(r.stop)
		select {
		case <-r.done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

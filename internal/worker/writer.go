package worker

import (
	"errors"
	"time"

	"github.com/pursuitlab/roadchase/pkg/core"
)

type opKind uint8

const (
	opStart opKind = iota
	opEnd
	opFrame
	opEvent
)

func (k opKind) String() string {
	switch k {
	case opStart:
		return "start_run"
	case opEnd:
		return "end_run"
	case opFrame:
		return "frame"
	case opEvent:
		return "event"
	}
	return "unknown"
}

// op is one queued backend call.
type op struct {
	kind   opKind
	run    *core.Run
	result *core.RunResult
	sample *core.FrameSample
	runID  string
	event  core.FrameEvent
}

func (o op) id() string {
	switch o.kind {
	case opStart:
		return o.run.ID
	case opEnd:
		return o.result.RunID
	case opFrame:
		return o.sample.RunID
	}
	return o.runID
}

func (r *Recorder) writerLoop() {
	defer close(r.done)
	ticker := time.NewTicker(r.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			r.flush()
			return
		case <-r.wake:
			r.flush()
		case <-ticker.C:
			r.flush()
		}
	}
}

// flush hands every queued op to the backend in order. Failed ops are
// logged and counted, not retried.
func (r *Recorder) flush() {
	if r.ops.Empty() {
		return
	}
	for _, o := range r.ops.GetAndEmpty() {
		if err := r.apply(o); err != nil {
			r.failed.Add(1)
			r.deps.Logger.Error("recorder write failed", "op", o.kind.String(), "run_id", o.id(), "error", err)
			continue
		}
		r.written.Add(1)
	}
}

func (r *Recorder) apply(o op) error {
	if r.deps.Backend == nil {
		return nil
	}
	switch o.kind {
	case opStart:
		return r.deps.Backend.StartRun(o.run)
	case opEnd:
		return r.deps.Backend.EndRun(o.result)
	case opFrame:
		return r.deps.Backend.RecordFrame(o.sample)
	case opEvent:
		return r.deps.Backend.RecordEvent(o.runID, &o.event)
	}
	return errors.New("unknown recorder op")
}

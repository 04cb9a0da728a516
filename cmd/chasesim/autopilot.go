package main

import (
	"time"

	"github.com/pursuitlab/roadchase/internal/engine"
	"github.com/pursuitlab/roadchase/internal/handlers"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// autopilot drives the car when no host input is latched: full throttle,
// weaving across the road, and a reset some time after each game over.
// Intent and Consume both run on the frame loop.
type autopilot struct {
	latch      *handlers.IntentLatch
	weave      uint64 // frames per steering quarter-cycle
	resetAfter time.Duration
	submit     func(func(*engine.Engine)) error

	frame       uint64
	overAt      time.Time
	resetQueued bool
}

func newAutopilot(latch *handlers.IntentLatch, submit func(func(*engine.Engine)) error) *autopilot {
	return &autopilot{
		latch:      latch,
		weave:      45,
		resetAfter: 3 * time.Second,
		submit:     submit,
	}
}

// Intent implements engine.IntentSource.
func (a *autopilot) Intent() core.ControlIntent {
	if a.latch != nil {
		if in := a.latch.Intent(); in != (core.ControlIntent{}) {
			return in
		}
	}
	a.frame++
	phase := (a.frame / a.weave) % 4
	return core.ControlIntent{
		Accelerate: true,
		Left:       phase == 1,
		Right:      phase == 3,
	}
}

// Consume implements engine.Sink.
func (a *autopilot) Consume(f engine.Frame) {
	if !f.Snapshot.Chase.GameOver {
		a.overAt = time.Time{}
		a.resetQueued = false
		return
	}
	if a.overAt.IsZero() {
		a.overAt = f.At
		return
	}
	if a.resetQueued || f.At.Sub(a.overAt) < a.resetAfter {
		return
	}
	if err := a.submit(func(e *engine.Engine) { e.Reset() }); err == nil {
		a.resetQueued = true
	}
}

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/pursuitlab/roadchase/pkg/core"
)

// ErrMailboxFull is returned by Submit when the command mailbox has no room.
var ErrMailboxFull = errors.New("engine mailbox full")

// IntentSource supplies the control intent for the next frame.
type IntentSource interface {
	Intent() core.ControlIntent
}

// IntentFunc adapts a function to IntentSource.
type IntentFunc func() core.ControlIntent

func (f IntentFunc) Intent() core.ControlIntent { return f() }

// Frame is what sinks receive after every tick. Snapshot and Events alias
// runner buffers and are only valid during Consume.
type Frame struct {
	At       time.Time
	Snapshot core.Snapshot
	Events   []core.FrameEvent
}

// Sink consumes frames. Consume runs on the frame loop and must not block.
type Sink interface {
	Consume(f Frame)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Frame)

func (f SinkFunc) Consume(fr Frame) { f(fr) }

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock replaces the system clock.
func WithClock(c Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithTickRate sets the loop frequency in Hz.
func WithTickRate(hz int) RunnerOption {
	return func(r *Runner) {
		if hz > 0 {
			r.interval = time.Second / time.Duration(hz)
		}
	}
}

// WithSink adds a frame sink.
func WithSink(s Sink) RunnerOption {
	return func(r *Runner) { r.sinks = append(r.sinks, s) }
}

// WithRunnerLogger sets the runner logger.
func WithRunnerLogger(l zerolog.Logger) RunnerOption {
	return func(r *Runner) { r.log = l }
}

// WithMailboxSize sets the command mailbox capacity.
func WithMailboxSize(n int) RunnerOption {
	return func(r *Runner) { r.mailbox = make(chan func(*Engine), n) }
}

// Runner drives an engine from a single goroutine. Other goroutines reach the
// engine only through Submit and Call, whose functions run at the start of
// the next tick.
type Runner struct {
	eng      *Engine
	intents  IntentSource
	clock    Clock
	interval time.Duration
	sinks    []Sink
	mailbox  chan func(*Engine)
	log      zerolog.Logger

	last   time.Time
	events []core.FrameEvent
}

// NewRunner returns a runner at 60 Hz on the system clock.
func NewRunner(eng *Engine, intents IntentSource, opts ...RunnerOption) *Runner {
	r := &Runner{
		eng:      eng,
		intents:  intents,
		clock:    SystemClock{},
		interval: time.Second / 60,
		mailbox:  make(chan func(*Engine), 64),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Interval returns the tick interval.
func (r *Runner) Interval() time.Duration { return r.interval }

// Submit queues fn to run against the engine on the loop goroutine.
func (r *Runner) Submit(fn func(*Engine)) error {
	select {
	case r.mailbox <- fn:
		return nil
	default:
		return ErrMailboxFull
	}
}

// Call runs fn on the loop goroutine and waits for its result.
func (r *Runner) Call(ctx context.Context, fn func(*Engine) any) (any, error) {
	reply := make(chan any, 1)
	job := func(e *Engine) { reply <- fn(e) }
	select {
	case r.mailbox <- job:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Tick samples the clock once, applies pending commands, steps the engine
// and fans the frame out to the sinks. The first tick has a zero delta.
func (r *Runner) Tick() core.Snapshot {
	now := r.clock.Now()
	var dt float64
	if !r.last.IsZero() {
		dt = now.Sub(r.last).Seconds()
	}
	r.last = now

	r.drainMailbox()

	var intent core.ControlIntent
	if r.intents != nil {
		intent = r.intents.Intent()
	}
	snap := r.eng.Step(intent, dt)
	r.events = r.eng.Events(r.events[:0])

	frame := Frame{At: now, Snapshot: snap, Events: r.events}
	for _, s := range r.sinks {
		s.Consume(frame)
	}
	return snap
}

func (r *Runner) drainMailbox() {
	for {
		select {
		case fn := <-r.mailbox:
			fn(r.eng)
		default:
			return
		}
	}
}

// Run ticks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.interval).Msg("frame loop started")
	r.Tick()
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Uint64("frames", r.eng.Frame()).Msg("frame loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.Tick()
		}
	}
}

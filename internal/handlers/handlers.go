// Package handlers binds host commands to the frame loop. Every engine
// mutation goes through the loop mailbox so the simulation keeps a single
// owner goroutine.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pursuitlab/roadchase/internal/cache"
	"github.com/pursuitlab/roadchase/internal/dispatcher"
	"github.com/pursuitlab/roadchase/internal/engine"
	"github.com/pursuitlab/roadchase/internal/parser"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// Host commands.
const (
	CmdInput       = ":INPUT:"
	CmdReset       = ":RESET:"
	CmdSpeed       = ":SPEED:"
	CmdColor       = ":COLOR:"
	CmdRemotePoses = ":REMOTE:POSES:"
	CmdStatus      = ":STATUS:"
)

// Loop is the part of engine.Runner the handlers need.
type Loop interface {
	Submit(fn func(*engine.Engine)) error
	Call(ctx context.Context, fn func(*engine.Engine) any) (any, error)
}

// SettingsListener is told about cosmetic and tuning changes so they can be
// stamped on the next recorded run.
type SettingsListener interface {
	SpeedFactorChanged(f float64)
	ColorChanged(c string)
}

// IntentLatch holds the most recent control intent. The host writes it from
// :INPUT:; the frame loop reads it once per tick.
type IntentLatch struct {
	mu sync.RWMutex
	in core.ControlIntent
}

func (l *IntentLatch) Set(in core.ControlIntent) {
	l.mu.Lock()
	l.in = in
	l.mu.Unlock()
}

// Intent implements engine.IntentSource.
func (l *IntentLatch) Intent() core.ControlIntent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.in
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Loop     Loop
	Parser   *parser.Parser
	Intent   *IntentLatch
	Ghosts   *cache.GhostCache
	Listener SettingsListener // optional
	Logger   *slog.Logger
	// CallTimeout bounds commands that wait for the loop (:SPEED:, :STATUS:).
	CallTimeout time.Duration
	Now         func() time.Time
}

// Service provides handler methods for host commands
type Service struct {
	deps Dependencies
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.Logger)
	}
	if deps.Intent == nil {
		deps.Intent = &IntentLatch{}
	}
	if deps.CallTimeout <= 0 {
		deps.CallTimeout = time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{deps: deps}
}

// Intent returns the latch the frame loop should read input from.
func (s *Service) Intent() *IntentLatch {
	return s.deps.Intent
}

// Register binds every host command on d.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	d.Register(CmdInput, s.HandleInput)
	d.Register(CmdReset, s.HandleReset, dispatcher.Logged())
	d.Register(CmdSpeed, s.HandleSpeed, dispatcher.Logged())
	d.Register(CmdColor, s.HandleColor, dispatcher.Logged())
	d.Register(CmdStatus, s.HandleStatus)
	if s.deps.Ghosts != nil {
		d.Register(CmdRemotePoses, s.HandleRemotePoses, dispatcher.Buffered(64), dispatcher.Logged())
	}
}

// HandleInput latches [accelerate, brake, left, right] for the next tick.
func (s *Service) HandleInput(e dispatcher.Event) (any, error) {
	in, err := s.deps.Parser.ParseInput(e.Args)
	if err != nil {
		return nil, err
	}
	s.deps.Intent.Set(in)
	return "ok", nil
}

// HandleReset queues a reset, reseeding first when a seed is given.
func (s *Service) HandleReset(e dispatcher.Event) (any, error) {
	seed, reseed, err := s.deps.Parser.ParseReset(e.Args)
	if err != nil {
		return nil, err
	}
	err = s.deps.Loop.Submit(func(eng *engine.Engine) {
		if reseed && !eng.Reseed(seed) {
			s.deps.Logger.Warn("random source cannot be reseeded", "seed", seed)
		}
		eng.Reset()
	})
	if err != nil {
		return nil, fmt.Errorf("queue reset: %w", err)
	}
	s.deps.Intent.Set(core.ControlIntent{})
	return "ok", nil
}

// HandleSpeed applies a speed factor and returns the clamped value in effect.
func (s *Service) HandleSpeed(e dispatcher.Event) (any, error) {
	f, err := s.deps.Parser.ParseSpeed(e.Args)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.CallTimeout)
	defer cancel()
	v, err := s.deps.Loop.Call(ctx, func(eng *engine.Engine) any {
		return eng.SetSpeedFactor(f)
	})
	if err != nil {
		return nil, fmt.Errorf("apply speed factor: %w", err)
	}
	applied := v.(float64)
	if s.deps.Listener != nil {
		s.deps.Listener.SpeedFactorChanged(applied)
	}
	return applied, nil
}

// HandleColor stores the car colour. It has no effect on the simulation.
func (s *Service) HandleColor(e dispatcher.Event) (any, error) {
	c, err := s.deps.Parser.ParseColor(e.Args)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Loop.Submit(func(eng *engine.Engine) { eng.SetColor(c) }); err != nil {
		return nil, fmt.Errorf("queue colour: %w", err)
	}
	if s.deps.Listener != nil {
		s.deps.Listener.ColorChanged(c)
	}
	return c, nil
}

// HandleRemotePoses stores remote players in the ghost cache.
func (s *Service) HandleRemotePoses(e dispatcher.Event) (any, error) {
	poses, err := s.deps.Parser.ParseRemotePoses(e.Args)
	if err != nil {
		return nil, err
	}
	at := e.Timestamp
	if at.IsZero() {
		at = s.deps.Now()
	}
	return s.deps.Ghosts.Update(poses, at), nil
}

// Status is the :STATUS: reply.
type Status struct {
	Snapshot    core.Snapshot     `json:"snapshot"`
	SpeedFactor float64           `json:"speedFactor"`
	Ghosts      []core.RemotePose `json:"ghosts,omitempty"`
}

// HandleStatus returns the current snapshot as JSON.
func (s *Service) HandleStatus(e dispatcher.Event) (any, error) {
	st, err := s.Status(context.Background())
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal status: %w", err)
	}
	return string(b), nil
}

// Status reads a detached snapshot from the loop.
func (s *Service) Status(ctx context.Context) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, s.deps.CallTimeout)
	defer cancel()
	v, err := s.deps.Loop.Call(ctx, func(eng *engine.Engine) any {
		return Status{Snapshot: eng.Snapshot().Clone(), SpeedFactor: eng.SpeedFactor()}
	})
	if err != nil {
		return Status{}, fmt.Errorf("read snapshot: %w", err)
	}
	st := v.(Status)
	if s.deps.Ghosts != nil {
		st.Ghosts = s.deps.Ghosts.Poses(s.deps.Now())
	}
	return st, nil
}

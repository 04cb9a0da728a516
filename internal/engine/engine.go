// Package engine runs one chase simulation: it owns every piece of mutable
// state and advances it once per frame in a fixed order.
package engine

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/pursuitlab/roadchase/internal/chase"
	"github.com/pursuitlab/roadchase/internal/kinematics"
	"github.com/pursuitlab/roadchase/internal/proximity"
	"github.com/pursuitlab/roadchase/internal/pursuit"
	"github.com/pursuitlab/roadchase/internal/rng"
	"github.com/pursuitlab/roadchase/internal/spawn"
	"github.com/pursuitlab/roadchase/internal/world"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	log   zerolog.Logger
	meter metric.Meter
}

// WithLogger sets the frame logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMeter overrides the global OTel meter.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

// Engine is the simulation core. It is not safe for concurrent use: exactly
// one goroutine may call its methods.
type Engine struct {
	cfg     Config
	src     rng.Source
	vparams kinematics.Params
	color   string

	vehicle  kinematics.Vehicle
	pool     *pursuit.Pool
	detector *proximity.Detector
	road     *world.Road
	field    *world.Field
	sched    *spawn.Scheduler
	state    *chase.State

	frame uint64
	now   float64 // simulated seconds since the last reset
	flash float64 // siren clock, keeps running after game over

	events  eventLog
	hits    []int
	prevHit []bool
	curHit  []bool

	pursuerBuf []core.PursuerState
	objectBuf  []core.WorldObject

	log     zerolog.Logger
	metrics *metrics
}

// New validates cfg and builds an engine whose randomness comes from src.
func New(cfg Config, src rng.Source, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidConfig)
	}

	o := options{log: zerolog.Nop(), meter: meter()}
	for _, opt := range opts {
		opt(&o)
	}

	m, err := newMetrics(o.meter)
	if err != nil {
		return nil, fmt.Errorf("engine metrics: %w", err)
	}

	capacity := max(cfg.Pool.Capacity, cfg.Pool.Size)
	e := &Engine{
		cfg:        cfg,
		src:        src,
		vparams:    cfg.Vehicle,
		vehicle:    kinematics.Vehicle{Heading: cfg.StartHeading},
		color:      cfg.CarColor,
		pool:       pursuit.NewPool(cfg.Pool, cfg.AI, src),
		detector:   proximity.New(cfg.ContactThreshold, capacity),
		road:       world.NewRoad(cfg.Road, 0),
		field:      world.NewField(cfg.Field, src),
		sched:      spawn.New(cfg.Spawn, capacity),
		state:      chase.New(cfg.Chase),
		hits:       make([]int, 0, cfg.Field.MaxObjects),
		prevHit:    make([]bool, cfg.Field.MaxObjects),
		curHit:     make([]bool, cfg.Field.MaxObjects),
		pursuerBuf: make([]core.PursuerState, 0, capacity),
		objectBuf:  make([]core.WorldObject, 0, cfg.Field.MaxObjects),
		log:        o.log,
		metrics:    m,
	}
	e.vparams.SpeedFactor = e.vparams.ClampSpeedFactor(e.vparams.SpeedFactor)
	e.state.TargetPursuers = e.sched.TargetCount(e.state.Difficulty, e.pool.Len())
	e.events.buf = make([]core.FrameEvent, 0, 4*capacity)
	return e, nil
}

// Close releases the metric registration.
func (e *Engine) Close() error {
	return e.metrics.close()
}

// ClampDelta bounds dt to [0, MaxFrameDelta]. Non-positive and NaN deltas become 0.
func (e *Engine) ClampDelta(dt float64) (float64, bool) {
	if math.IsNaN(dt) || dt <= 0 {
		return 0, false
	}
	if dt > e.cfg.MaxFrameDelta {
		return e.cfg.MaxFrameDelta, true
	}
	return dt, false
}

// Step advances the simulation by dt seconds under the given control intent
// and returns the resulting snapshot. Once the run is over, Step only keeps
// the siren clock running and returns the frozen state.
func (e *Engine) Step(in core.ControlIntent, dt float64) core.Snapshot {
	dt, clamped := e.ClampDelta(dt)
	e.flash += dt
	if e.state.GameOver || dt == 0 {
		return e.Snapshot()
	}

	e.frame++
	e.now += dt

	prevZ := e.vehicle.Pos.Z
	e.vehicle = kinematics.Step(e.vehicle, in, e.vparams, dt)
	vpos := e.vehicle.Pos

	e.pool.Steer(vpos, e.state.Difficulty, dt)

	contact := e.detector.Update(e.now, vpos, e.pool)
	for _, i := range contact.Started {
		e.events.add(e.frame, e.now, core.EventContactStarted, i, 0)
	}
	for _, i := range contact.Broken {
		e.events.add(e.frame, e.now, core.EventContactBroken, i, 0)
	}

	tr := e.state.Update(chase.Input{
		Dt:         dt,
		DeltaZ:     vpos.Z - prevZ,
		MaxContact: contact.MaxDuration,
		AnyContact: contact.AnyContact,
	})
	if tr.DifficultyChanged {
		e.events.add(e.frame, e.now, core.EventDifficultyChanged, -1, float64(e.state.Difficulty))
		e.log.Info().Int("difficulty", e.state.Difficulty).Float64("elapsed", e.state.ElapsedTime).Msg("difficulty increased")
	}
	e.state.TargetPursuers = e.sched.TargetCount(e.state.Difficulty, e.pool.Len())

	e.road.Update(vpos.Z)
	e.field.Update(dt, vpos.Z)

	for _, c := range e.sched.Update(e.now, e.state.ElapsedTime, e.state.TargetPursuers, e.pool, vpos) {
		switch {
		case c.Reinforced:
			e.events.add(e.frame, e.now, core.EventPursuerReinforced, c.Slot, 0)
		case c.Activated:
			e.events.add(e.frame, e.now, core.EventPursuerActivated, c.Slot, 0)
		default:
			if c.WasTouching {
				e.events.add(e.frame, e.now, core.EventContactBroken, c.Slot, 0)
			}
			e.events.add(e.frame, e.now, core.EventPursuerDeactivated, c.Slot, 0)
		}
	}

	e.updateObstacleHits(vpos)

	active := e.pool.ActiveCount()
	if tr.Caught {
		e.events.add(e.frame, e.now, core.EventGameOver, -1, float64(e.state.Score))
		e.metrics.gameOver(string(e.cfg.Chase.CatchMode))
		e.log.Info().
			Int("score", e.state.Score).
			Float64("elapsed", e.state.ElapsedTime).
			Float64("distance", e.state.Distance).
			Msg("caught")
	}
	e.metrics.frame(clamped, active)

	e.log.Debug().
		Uint64("frame", e.frame).
		Float64("dt", dt).
		Bool("clamped", clamped).
		Float64("x", vpos.X).
		Float64("z", vpos.Z).
		Float64("speed", e.vehicle.Speed).
		Int("active", active).
		Float64("contact", contact.MaxDuration).
		Msg("frame")

	return e.Snapshot()
}

// updateObstacleHits emits ObstacleHit once per object when the vehicle starts overlapping it.
func (e *Engine) updateObstacleHits(vpos core.Vec2) {
	clear(e.curHit)
	e.hits = e.field.Hits(vpos, e.cfg.VehicleRadius, e.hits[:0])
	for _, i := range e.hits {
		e.curHit[i] = true
		if !e.prevHit[i] {
			e.events.addDetail(e.frame, e.now, core.EventObstacleHit, i, string(e.field.Get(i).Kind))
		}
	}
	e.prevHit, e.curHit = e.curHit, e.prevHit
}

// Reset reinitialises the run in place: vehicle at the origin facing down the road, base pursuers
// on their initial ring, fresh road and objects, chase state back to Running.
// The speed factor and colour are kept.
func (e *Engine) Reset() {
	e.vehicle = kinematics.Vehicle{Heading: e.cfg.StartHeading}
	e.pool.Reset(core.Vec2{})
	e.road.Reset(0)
	e.field.Reset()
	e.sched.Reset()
	e.state.Reset()
	e.state.TargetPursuers = e.sched.TargetCount(e.state.Difficulty, e.pool.Len())
	e.now = 0
	e.flash = 0
	clear(e.prevHit)
	e.events.add(e.frame, 0, core.EventReset, -1, 0)
	e.metrics.activeCount.Store(int64(e.pool.ActiveCount()))
	e.log.Info().Uint64("frame", e.frame).Msg("run reset")
}

// Reseed restarts the random source at seed when it supports reseeding.
// Call Reset afterwards to rebuild the world from the new sequence.
func (e *Engine) Reseed(seed uint64) bool {
	r, ok := e.src.(interface{ Reseed(uint64) })
	if !ok {
		return false
	}
	r.Reseed(seed)
	return true
}

// Seed returns the seed of the random source, if it has one.
func (e *Engine) Seed() (uint64, bool) {
	s, ok := e.src.(interface{ Seed() uint64 })
	if !ok {
		return 0, false
	}
	return s.Seed(), true
}

// SetSpeedFactor applies a clamped speed factor and returns the value in effect.
func (e *Engine) SetSpeedFactor(f float64) float64 {
	e.vparams.SpeedFactor = e.vparams.ClampSpeedFactor(f)
	return e.vparams.SpeedFactor
}

// SpeedFactor returns the speed factor in effect.
func (e *Engine) SpeedFactor() float64 { return e.vparams.SpeedFactor }

// SetColor stores the cosmetic car colour. The simulation never reads it.
func (e *Engine) SetColor(c string) { e.color = c }

// Color returns the cosmetic car colour.
func (e *Engine) Color() string { return e.color }

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config { return e.cfg }

// Frame returns the number of integrated frames.
func (e *Engine) Frame() uint64 { return e.frame }

// GameOver reports whether the run has ended.
func (e *Engine) GameOver() bool { return e.state.GameOver }

// LocalPose returns the vehicle pose for the multiplayer transport.
func (e *Engine) LocalPose() core.Pose { return e.vehicle.Pose() }

// Speed returns the signed vehicle speed.
func (e *Engine) Speed() float64 { return e.vehicle.Speed }

// Events appends the frame events pending since the last call to dst and
// clears them.
func (e *Engine) Events(dst []core.FrameEvent) []core.FrameEvent {
	return e.events.drain(dst)
}

// PendingEvents returns the number of undrained events.
func (e *Engine) PendingEvents() int { return e.events.len() }

// Snapshot returns the current renderer view. Its slices alias engine buffers.
func (e *Engine) Snapshot() core.Snapshot {
	e.pursuerBuf = e.pursuerBuf[:0]
	for i := 0; i < e.pool.Len(); i++ {
		p := e.pool.Get(i)
		if !p.Active {
			continue
		}
		e.pursuerBuf = append(e.pursuerBuf, core.PursuerState{
			Slot:            i,
			Pose:            p.Pose(),
			Speed:           p.Speed,
			Touching:        p.Touching,
			ContactDuration: p.ContactDuration,
		})
	}

	e.objectBuf = e.objectBuf[:0]
	e.field.Each(func(_ int, o *world.Object) {
		e.objectBuf = append(e.objectBuf, core.WorldObject{Position: o.Pos, Kind: o.Kind, Radius: o.Radius})
	})

	return core.Snapshot{
		Frame: e.frame,
		Vehicle: core.VehicleState{
			Pose:      e.vehicle.Pose(),
			Speed:     e.vehicle.Speed,
			WheelSpin: kinematics.WheelSpin(e.vehicle.Speed),
		},
		Pursuers: e.pursuerBuf,
		Road:     e.road.Segments(),
		Objects:  e.objectBuf,
		Chase:    e.state.Snapshot(len(e.pursuerBuf)),
		LightsOn: FlashPhase(e.flash, e.cfg.LightFlashPeriod),
		Color:    e.color,
	}
}

// FlashPhase reports whether the siren is in its first half-cycle at time t.
func FlashPhase(t, period float64) bool {
	return math.Mod(t, period) < period/2
}

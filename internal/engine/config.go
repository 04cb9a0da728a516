package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/pursuitlab/roadchase/internal/chase"
	"github.com/pursuitlab/roadchase/internal/kinematics"
	"github.com/pursuitlab/roadchase/internal/proximity"
	"github.com/pursuitlab/roadchase/internal/pursuit"
	"github.com/pursuitlab/roadchase/internal/spawn"
	"github.com/pursuitlab/roadchase/internal/world"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// ErrInvalidConfig is returned by New when a Config fails validation.
var ErrInvalidConfig = errors.New("invalid engine config")

// Config gathers every tunable of a run.
type Config struct {
	Vehicle          kinematics.Params
	AI               pursuit.AIParams
	Pool             pursuit.PoolParams
	ContactThreshold float64
	Road             world.RoadParams
	Field            world.FieldParams
	Spawn            spawn.Params
	Chase            chase.Params

	// StartHeading is the vehicle yaw at the start of a run. Pi faces down the road.
	StartHeading float64
	// MaxFrameDelta bounds a single step, in seconds.
	MaxFrameDelta float64
	// VehicleRadius is added to object radii for obstacle hits.
	VehicleRadius float64
	// LightFlashPeriod is the siren cycle, in seconds.
	LightFlashPeriod float64
	CarColor         string
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		Vehicle:          kinematics.DefaultParams(),
		AI:               pursuit.DefaultAIParams(),
		Pool:             pursuit.DefaultPoolParams(),
		ContactThreshold: proximity.DefaultThreshold,
		Road:             world.DefaultRoadParams(),
		Field:            world.DefaultFieldParams(),
		Spawn:            spawn.DefaultParams(),
		Chase:            chase.DefaultParams(),
		StartHeading:     math.Pi,
		MaxFrameDelta:    0.1,
		VehicleRadius:    0,
		LightFlashPeriod: 0.5,
		CarColor:         "#ff0000",
	}
}

func validWeights(f world.FieldParams) bool {
	var total float64
	for _, k := range f.Kinds {
		if !(k.Weight >= 0) {
			return false
		}
		total += k.Weight
	}
	return total > 0
}

// Validate reports the first setting that would make the simulation ill-defined.
func (c Config) Validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{c.Vehicle.BaseMaxSpeed > 0, "vehicle.baseMaxSpeed must be positive"},
		{c.Vehicle.MinSpeedFactor > 0, "vehicle.minSpeedFactor must be positive"},
		{c.Vehicle.MaxSpeedFactor >= c.Vehicle.MinSpeedFactor, "vehicle.maxSpeedFactor below minSpeedFactor"},
		{c.Vehicle.Acceleration > 0 && c.Vehicle.Deceleration > 0, "vehicle acceleration rates must be positive"},
		{c.AI.YawRate > 0, "ai.yawRate must be positive"},
		{c.AI.SpeedMax >= c.AI.SpeedMin, "ai.speedMax below speedMin"},
		{c.AI.RespawnMax >= c.AI.RespawnMin, "ai.respawnMax below respawnMin"},
		{c.Pool.Size > 0, "pool.size must be positive"},
		{c.Pool.Base >= 0 && c.Pool.Base <= c.Pool.Size, "pool.base must be within pool.size"},
		{c.ContactThreshold > 0, "contactThreshold must be positive"},
		{c.Road.Segments > 0 && c.Road.SegmentLength > 0, "road ring must be non-empty"},
		{c.Field.MaxObjects >= 0, "field.maxObjects must not be negative"},
		{c.Field.SpawnInterval > 0, "field.spawnInterval must be positive"},
		{len(c.Field.Kinds) > 0, "field.kinds must not be empty"},
		{validWeights(c.Field), "field.kinds weights must be non-negative with a positive total"},
		{c.Chase.MaxCaughtTime > 0, "chase.maxCaughtTime must be positive"},
		{c.Chase.TierDuration > 0, "chase.tierDuration must be positive"},
		{c.MaxFrameDelta > 0, "maxFrameDelta must be positive"},
		{c.LightFlashPeriod > 0, "lightFlashPeriod must be positive"},
	}
	for _, chk := range checks {
		if !chk.ok {
			return fmt.Errorf("%w: %s", ErrInvalidConfig, chk.msg)
		}
	}
	switch c.Spawn.Policy {
	case core.SpawnLevel, core.SpawnReinforcement:
	default:
		return fmt.Errorf("%w: unknown spawn policy %q", ErrInvalidConfig, c.Spawn.Policy)
	}
	switch c.Chase.CatchMode {
	case core.CatchContact, core.CatchCollision:
	default:
		return fmt.Errorf("%w: unknown catch mode %q", ErrInvalidConfig, c.Chase.CatchMode)
	}
	switch c.Chase.ScoreMode {
	case core.ScoreSurvival, core.ScoreDistance:
	default:
		return fmt.Errorf("%w: unknown score mode %q", ErrInvalidConfig, c.Chase.ScoreMode)
	}
	return nil
}

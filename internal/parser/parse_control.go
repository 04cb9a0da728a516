package parser

import (
	"fmt"
	"math"

	"github.com/pursuitlab/roadchase/internal/util"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// ParseInput parses [accelerate, brake, left, right].
func (p *Parser) ParseInput(data []string) (core.ControlIntent, error) {
	var in core.ControlIntent
	if err := argCount(":INPUT:", data, 4, 4); err != nil {
		return in, err
	}
	data = clean(data)

	flags := []*bool{&in.Accelerate, &in.Brake, &in.Left, &in.Right}
	for i, f := range flags {
		v, err := util.ParseBool(data[i])
		if err != nil {
			return core.ControlIntent{}, fmt.Errorf("%w: input flag %d: %v", ErrInvalidArgs, i, err)
		}
		*f = v
	}
	return in, nil
}

// ParseSpeed parses [factor]. Range clamping is left to the engine.
func (p *Parser) ParseSpeed(data []string) (float64, error) {
	if err := argCount(":SPEED:", data, 1, 1); err != nil {
		return 0, err
	}
	f, err := util.ParseFloat(data[0])
	if err != nil {
		return 0, fmt.Errorf("%w: speed factor: %v", ErrInvalidArgs, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: speed factor %q is not finite", ErrInvalidArgs, data[0])
	}
	return f, nil
}

// ParseColor parses [hex] into "#rrggbb".
func (p *Parser) ParseColor(data []string) (string, error) {
	if err := argCount(":COLOR:", data, 1, 1); err != nil {
		return "", err
	}
	c, err := util.NormalizeColor(data[0])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return c, nil
}

// ParseReset parses the optional [seed]. reseed is false when no seed was given.
func (p *Parser) ParseReset(data []string) (seed uint64, reseed bool, err error) {
	if err := argCount(":RESET:", data, 0, 1); err != nil {
		return 0, false, err
	}
	if len(data) == 0 {
		return 0, false, nil
	}
	data = clean(data)
	if data[0] == "" {
		return 0, false, nil
	}
	seed, err = parseUintFromFloat(data[0])
	if err != nil {
		return 0, false, fmt.Errorf("%w: seed: %v", ErrInvalidArgs, err)
	}
	return seed, true, nil
}

// Package parser converts raw host command arguments into domain values.
// It has no dependencies beyond a logger and never touches the engine.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pursuitlab/roadchase/internal/util"
)

// ErrInvalidArgs is wrapped by every parse failure.
var ErrInvalidArgs = errors.New("invalid arguments")

// Parser provides pure []string -> domain conversion.
type Parser struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger, now: time.Now}
}

// clean fixes quoting on every argument in place.
func clean(data []string) []string {
	for i, v := range data {
		data[i] = util.CleanArg(v)
	}
	return data
}

func argCount(cmd string, data []string, min, max int) error {
	if len(data) < min || len(data) > max {
		if min == max {
			return fmt.Errorf("%w: %s expects %d args, got %d", ErrInvalidArgs, cmd, min, len(data))
		}
		return fmt.Errorf("%w: %s expects %d-%d args, got %d", ErrInvalidArgs, cmd, min, max, len(data))
	}
	return nil
}

// parseUintFromFloat parses a string that may be an integer ("32") or float ("32.00") into uint64.
// Hosts that only have a float number type serialize integers that way.
func parseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("%q is not a valid uint64", s)
	}
	return uint64(f), nil
}

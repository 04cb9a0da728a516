// Package util provides small helpers shared by the host command layer and the simulation.
package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArg trims whitespace and surrounding quotes and unescapes embedded quotes.
func CleanArg(s string) string {
	return FixEscapeQuotes(TrimQuotes(strings.TrimSpace(s)))
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// ParseBool accepts true/false, 1/0 and yes/no in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(CleanArg(s)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no", "":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool %q", s)
}

// ParseFloat parses a float argument after cleaning it.
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(CleanArg(s), 64)
}

// NormalizeColor returns a colour as lower-case "#rrggbb". It accepts
// "#rgb", "#rrggbb", "rrggbb" and "0xrrggbb".
func NormalizeColor(s string) (string, error) {
	c := strings.ToLower(CleanArg(s))
	c = strings.TrimPrefix(c, "#")
	c = strings.TrimPrefix(c, "0x")
	if len(c) == 3 {
		c = string([]byte{c[0], c[0], c[1], c[1], c[2], c[2]})
	}
	if len(c) != 6 {
		return "", fmt.Errorf("invalid colour %q", s)
	}
	if _, err := strconv.ParseUint(c, 16, 32); err != nil {
		return "", fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return "#" + c, nil
}

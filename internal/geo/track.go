package geo

import (
	"encoding/json"
	"fmt"

	"github.com/pursuitlab/roadchase/pkg/core"
)

// Track accumulates a down-sampled vehicle path. A point is kept once it is at
// least Spacing away from the last kept point. When MaxPoints is reached every
// other point is discarded and the spacing doubles, so long runs stay bounded.
type Track struct {
	base      float64
	spacing   float64
	maxPoints int
	points    []core.Vec2
	last      core.Vec2
	hasLast   bool
}

// NewTrack creates a track. maxPoints below 2 means unbounded.
func NewTrack(spacing float64, maxPoints int) *Track {
	return &Track{base: spacing, spacing: spacing, maxPoints: maxPoints}
}

// Add offers a position and reports whether it was kept.
func (t *Track) Add(p core.Vec2) bool {
	t.last, t.hasLast = p, true
	if n := len(t.points); n > 0 && t.points[n-1].Dist(p) < t.spacing {
		return false
	}
	t.points = append(t.points, p)
	if t.maxPoints >= 2 && len(t.points) > t.maxPoints {
		t.thin()
	}
	return true
}

func (t *Track) thin() {
	kept := t.points[:0]
	for i := 0; i < len(t.points); i += 2 {
		kept = append(kept, t.points[i])
	}
	t.points = kept
	t.spacing *= 2
}

// Points returns the kept points plus the most recent position if it was
// skipped, so the track always ends where the vehicle is.
func (t *Track) Points() []core.Vec2 {
	out := make([]core.Vec2, len(t.points), len(t.points)+1)
	copy(out, t.points)
	if t.hasLast && (len(out) == 0 || out[len(out)-1] != t.last) {
		out = append(out, t.last)
	}
	return out
}

// Len is the number of kept points.
func (t *Track) Len() int {
	return len(t.points)
}

// Spacing is the current minimum distance between kept points.
func (t *Track) Spacing() float64 {
	return t.spacing
}

// Reset clears the track and restores the initial spacing.
func (t *Track) Reset() {
	t.points = t.points[:0]
	t.spacing = t.base
	t.hasLast = false
}

// ParseTrack parses a JSON array of coordinates into a track.
// Input format: "[[x1,z1],[x2,z2],...]"
func ParseTrack(input string) ([]core.Vec2, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse track JSON: %w", err)
	}
	if len(coords) < 2 {
		return nil, fmt.Errorf("track must have at least 2 points, got %d", len(coords))
	}
	track := make([]core.Vec2, len(coords))
	for i, c := range coords {
		if len(c) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		track[i] = core.Vec2{X: c[0], Z: c[1]}
	}
	return track, nil
}

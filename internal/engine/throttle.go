package engine

import "time"

// DefaultPoseInterval is the minimum spacing of outgoing local poses.
const DefaultPoseInterval = 100 * time.Millisecond

// PoseThrottle gates local pose emission to about once per interval. A call
// up to a tenth of the interval early still passes.
// It is not safe for concurrent use.
type PoseThrottle struct {
	interval time.Duration
	slack    time.Duration
	last     time.Time
}

// NewPoseThrottle returns a throttle that allows the first call immediately.
func NewPoseThrottle(interval time.Duration) *PoseThrottle {
	return &PoseThrottle{interval: interval, slack: interval / 10}
}

// Allow reports whether a pose may be emitted at now, and records it if so.
func (t *PoseThrottle) Allow(now time.Time) bool {
	if !t.last.IsZero() && now.Sub(t.last) < t.interval-t.slack {
		return false
	}
	t.last = now
	return true
}

// Reset lets the next call through.
func (t *PoseThrottle) Reset() {
	t.last = time.Time{}
}

// pkg/core/control.go
package core

// ControlIntent is the player's input for one simulated frame.
// The four flags are independent; Accelerate wins over Brake when both are set.
type ControlIntent struct {
	Accelerate bool `json:"accelerate"`
	Brake      bool `json:"brake"`
	Left       bool `json:"left"`
	Right      bool `json:"right"`
}

// Idle reports whether no control is held.
func (c ControlIntent) Idle() bool {
	return !c.Accelerate && !c.Brake && !c.Left && !c.Right
}

// Pose is a position and yaw on the ground plane.
type Pose struct {
	Position Vec2    `json:"position"`
	Heading  float64 `json:"heading"`
}

// RemotePose is another player's vehicle as reported by the multiplayer transport.
// Remote poses are display-only ghosts and never take part in contact detection.
type RemotePose struct {
	ID        string  `json:"id"`
	Position  Vec2    `json:"position"`
	Heading   float64 `json:"heading"`
	Speed     float64 `json:"speed,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"` // unix milliseconds
}

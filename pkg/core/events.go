// pkg/core/events.go
package core

// EventKind names something notable that happened during a frame.
type EventKind string

const (
	EventContactStarted     EventKind = "contact_started"
	EventContactBroken      EventKind = "contact_broken"
	EventPursuerActivated   EventKind = "pursuer_activated"
	EventPursuerDeactivated EventKind = "pursuer_deactivated"
	EventPursuerReinforced  EventKind = "pursuer_reinforced"
	EventDifficultyChanged  EventKind = "difficulty_changed"
	EventObstacleHit        EventKind = "obstacle_hit"
	EventGameOver           EventKind = "game_over"
	EventReset              EventKind = "reset"
)

// FrameEvent is emitted by the engine and drained by the host after each step.
// Slot is the pursuer or object slot the event concerns, or -1.
type FrameEvent struct {
	Frame  uint64    `json:"frame"`
	Time   float64   `json:"time"`
	Kind   EventKind `json:"kind"`
	Slot   int       `json:"slot"`
	Value  float64   `json:"value,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

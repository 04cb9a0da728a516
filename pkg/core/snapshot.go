// pkg/core/snapshot.go
package core

// ObjectKind tags a roadside object.
type ObjectKind string

const (
	ObjectTree      ObjectKind = "tree"
	ObjectRock      ObjectKind = "rock"
	ObjectBillboard ObjectKind = "billboard"
)

// VehicleState is the player vehicle as read by the renderer.
type VehicleState struct {
	Pose
	Speed     float64 `json:"speed"`
	WheelSpin float64 `json:"wheelSpin"` // radians per second
}

// PursuerState is one active pursuer as read by the renderer.
type PursuerState struct {
	Slot            int     `json:"slot"`
	Pose
	Speed           float64 `json:"speed"`
	Touching        bool    `json:"touching"`
	ContactDuration float64 `json:"contactDuration"`
}

// WorldObject is a live roadside object.
type WorldObject struct {
	Position Vec2       `json:"position"`
	Kind     ObjectKind `json:"kind"`
	Radius   float64    `json:"radius"`
}

// ChaseSnapshot is the scoring/failure state after a frame.
type ChaseSnapshot struct {
	Score          int     `json:"score"`
	ElapsedTime    float64 `json:"elapsedTime"`
	Distance       float64 `json:"distance"`
	Difficulty     int     `json:"difficulty"`
	TargetPursuers int     `json:"targetPursuers"`
	ActivePursuers int     `json:"activePursuers"`
	CaughtProgress float64 `json:"caughtProgress"`
	GameOver       bool    `json:"gameOver"`
}

// Snapshot is everything the renderer reads after an update pass.
// Slices alias engine buffers and are only valid until the next step; use Clone
// to retain one.
type Snapshot struct {
	Frame    uint64         `json:"frame"`
	Vehicle  VehicleState   `json:"vehicle"`
	Pursuers []PursuerState `json:"pursuers"`
	Road     []float64      `json:"road"`
	Objects  []WorldObject  `json:"objects"`
	Chase    ChaseSnapshot  `json:"chase"`
	// LightsOn is the siren flash phase for pursuer light bars.
	LightsOn bool   `json:"lightsOn"`
	Color    string `json:"color,omitempty"`
}

// Clone returns a deep copy that does not alias engine buffers.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Pursuers = append([]PursuerState(nil), s.Pursuers...)
	out.Road = append([]float64(nil), s.Road...)
	out.Objects = append([]WorldObject(nil), s.Objects...)
	return out
}

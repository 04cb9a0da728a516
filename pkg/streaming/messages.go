package streaming

import (
	"encoding/json"

	"github.com/pursuitlab/roadchase/pkg/core"
)

// Message type constants for the multiplayer relay protocol.
const (
	TypeJoin        = "join"
	TypeStartRun    = "start_run"
	TypeEndRun      = "end_run"
	TypePose        = "pose"
	TypeRemotePoses = "remote_poses"
	TypeFrameEvent  = "frame_event"
	TypeAck         = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the relay's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// JoinPayload announces the local player to the relay.
type JoinPayload struct {
	PlayerID string `json:"playerId"`
	Color    string `json:"color,omitempty"`
}

// StartRunPayload carries the run header.
type StartRunPayload struct {
	RunID       string  `json:"runId"`
	Seed        uint64  `json:"seed"`
	CatchMode   string  `json:"catchMode"`
	ScoreMode   string  `json:"scoreMode"`
	SpawnPolicy string  `json:"spawnPolicy"`
	SpeedFactor float64 `json:"speedFactor"`
	Color       string  `json:"color,omitempty"`
}

// EndRunPayload carries the final chase state.
type EndRunPayload struct {
	RunID    string  `json:"runId"`
	Score    int     `json:"score"`
	Elapsed  float64 `json:"elapsed"`
	Distance float64 `json:"distance"`
	Reason   string  `json:"reason"`
}

// RemotePosesPayload is pushed by the relay with the latest pose of every other player.
type RemotePosesPayload struct {
	Poses []core.RemotePose `json:"poses"`
}

// NewEnvelope marshals payload into an Envelope of the given type.
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Payload: raw}, nil
}

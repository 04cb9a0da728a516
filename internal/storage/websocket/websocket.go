package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pursuitlab/roadchase/internal/config"
	"github.com/pursuitlab/roadchase/internal/engine"
	"github.com/pursuitlab/roadchase/internal/storage"
	"github.com/pursuitlab/roadchase/pkg/core"
	"github.com/pursuitlab/roadchase/pkg/streaming"
)

// PoseMessage is the payload of an outgoing pose.
type PoseMessage struct {
	RunID string `json:"runId"`
	core.RemotePose
}

// FrameEventMessage is the payload of an outgoing frame event.
type FrameEventMessage struct {
	RunID string `json:"runId"`
	core.FrameEvent
}

// RemotePoseHandler receives the other players' poses pushed by the relay.
type RemotePoseHandler func([]core.RemotePose)

// Backend streams the local run to a multiplayer relay over WebSocket and
// receives other players' poses from it. Poses are throttled; run start and
// end wait for the relay's ack.
type Backend struct {
	conn *connection
	cfg  config.StreamConfig

	throttleMu sync.Mutex
	throttle   *engine.PoseThrottle

	runID     atomic.Value // string
	color     atomic.Value // string
	sent      atomic.Uint64
	throttled atomic.Uint64
}

var _ storage.Backend = (*Backend)(nil)

// New creates a new WebSocket storage backend.
func New(cfg config.StreamConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.PoseInterval
	if interval <= 0 {
		interval = engine.DefaultPoseInterval
	}
	b := &Backend{
		conn:     newConnection(logger.With("component", "stream"), cfg.MaxBackoff),
		cfg:      cfg,
		throttle: engine.NewPoseThrottle(interval),
	}
	b.runID.Store("")
	b.color.Store("")
	return b
}

// OnRemotePoses registers the handler for remote_poses pushes. Must be called
// before Init.
func (b *Backend) OnRemotePoses(h RemotePoseHandler) {
	b.conn.mu.Lock()
	defer b.conn.mu.Unlock()
	b.conn.onEnvelope = func(env streaming.Envelope) {
		if env.Type != streaming.TypeRemotePoses {
			return
		}
		var p streaming.RemotePosesPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			b.conn.logger.Debug("Bad remote_poses payload", "error", err)
			return
		}
		h(p.Poses)
	}
}

// SetColor changes the color announced on the next join or start_run.
func (b *Backend) SetColor(color string) {
	b.color.Store(color)
}

// Init connects to the relay and announces the local player.
func (b *Backend) Init() error {
	if err := b.conn.dial(b.cfg.URL, b.cfg.PlayerID); err != nil {
		return err
	}
	data, err := marshalEnvelope(streaming.TypeJoin, streaming.JoinPayload{
		PlayerID: b.cfg.PlayerID,
		Color:    b.color.Load().(string),
	})
	if err != nil {
		return err
	}
	b.conn.mu.Lock()
	b.conn.cachedJoinMsg = data
	b.conn.mu.Unlock()
	b.conn.send(data)
	return nil
}

// Close disconnects from the relay. The relay treats the close frame as the
// player leaving.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	env, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload and pushes it to the write loop
// (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	if b.conn.send(data) {
		b.sent.Add(1)
	}
	return nil
}

// StartRun sends the run header and waits for the relay's ack.
func (b *Backend) StartRun(run *core.Run) error {
	data, err := marshalEnvelope(streaming.TypeStartRun, streaming.StartRunPayload{
		RunID:       run.ID,
		Seed:        run.Seed,
		CatchMode:   string(run.CatchMode),
		ScoreMode:   string(run.ScoreMode),
		SpawnPolicy: string(run.SpawnPolicy),
		SpeedFactor: run.SpeedFactor,
		Color:       run.CarColor,
	})
	if err != nil {
		return err
	}

	// Cache for reconnect replay.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = data
	b.conn.mu.Unlock()

	b.runID.Store(run.ID)
	b.throttleMu.Lock()
	b.throttle.Reset()
	b.throttleMu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeStartRun, ackTimeout)
}

// EndRun sends end_run and waits for the relay's ack.
func (b *Backend) EndRun(result *core.RunResult) error {
	if b.runID.Load().(string) != result.RunID {
		return storage.ErrNoActiveRun
	}
	data, err := marshalEnvelope(streaming.TypeEndRun, streaming.EndRunPayload{
		RunID:    result.RunID,
		Score:    result.Score,
		Elapsed:  result.ElapsedTime,
		Distance: result.Distance,
		Reason:   result.Reason,
	})
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndRun, ackTimeout)

	// Clear cached state regardless of error.
	b.conn.mu.Lock()
	b.conn.cachedStartMsg = nil
	b.conn.mu.Unlock()
	b.runID.Store("")

	return err
}

// RecordFrame sends the vehicle pose at most once per pose interval.
func (b *Backend) RecordFrame(s *core.FrameSample) error {
	if b.runID.Load().(string) != s.RunID {
		return storage.ErrNoActiveRun
	}
	at := s.Time
	if at.IsZero() {
		at = time.Now()
	}
	b.throttleMu.Lock()
	allowed := b.throttle.Allow(at)
	b.throttleMu.Unlock()
	if !allowed {
		b.throttled.Add(1)
		return nil
	}
	return b.sendEnvelope(streaming.TypePose, PoseMessage{
		RunID: s.RunID,
		RemotePose: core.RemotePose{
			ID:        b.cfg.PlayerID,
			Position:  s.Vehicle.Position,
			Heading:   s.Vehicle.Heading,
			Speed:     s.Speed,
			Timestamp: at.UnixMilli(),
		},
	})
}

// RecordEvent forwards a frame event to the relay.
func (b *Backend) RecordEvent(runID string, e *core.FrameEvent) error {
	if b.runID.Load().(string) != runID {
		return storage.ErrNoActiveRun
	}
	return b.sendEnvelope(streaming.TypeFrameEvent, FrameEventMessage{RunID: runID, FrameEvent: *e})
}

// Stats reports how many messages were queued and how many poses the
// throttle held back.
func (b *Backend) Stats() (sent, throttled uint64) {
	return b.sent.Load(), b.throttled.Load()
}

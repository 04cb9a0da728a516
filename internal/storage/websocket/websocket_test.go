package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pursuitlab/roadchase/internal/config"
	"github.com/pursuitlab/roadchase/internal/storage"
	"github.com/pursuitlab/roadchase/pkg/core"
	"github.com/pursuitlab/roadchase/pkg/streaming"
)

// relay is an httptest server that upgrades to WebSocket, records received
// messages, acks start_run/end_run and answers join with remote_poses.
type relay struct {
	srv         *httptest.Server
	mu          sync.Mutex
	messages    []streaming.Envelope
	connections atomic.Int32
	// dropFirst closes the first connection right after acking start_run.
	dropFirst bool
}

func newRelay(t *testing.T, dropFirst bool) *relay {
	t.Helper()
	r := &relay{dropFirst: dropFirst}
	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	r.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		c, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()
		n := r.connections.Add(1)

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			r.add(env)

			switch env.Type {
			case streaming.TypeStartRun, streaming.TypeEndRun:
				data, _ := json.Marshal(streaming.AckMessage{Type: streaming.TypeAck, For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
				if env.Type == streaming.TypeStartRun && r.dropFirst && n == 1 {
					return
				}
			case streaming.TypeJoin:
				push, _ := streaming.NewEnvelope(streaming.TypeRemotePoses, streaming.RemotePosesPayload{
					Poses: []core.RemotePose{{ID: "ghost", Position: core.Vec2{X: 1, Z: -5}, Timestamp: 10}},
				})
				data, _ := json.Marshal(push)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(r.srv.Close)
	return r
}

func (r *relay) add(env streaming.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, env)
}

func (r *relay) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		out[i] = m.Type
	}
	return out
}

func (r *relay) count(msgType string) int {
	n := 0
	for _, typ := range r.types() {
		if typ == msgType {
			n++
		}
	}
	return n
}

func (r *relay) url() string {
	return "ws" + strings.TrimPrefix(r.srv.URL, "http")
}

func newTestBackend(t *testing.T, r *relay) *Backend {
	t.Helper()
	b := New(config.StreamConfig{
		URL:          r.url(),
		PlayerID:     "me",
		PoseInterval: 100 * time.Millisecond,
		MaxBackoff:   2 * time.Second,
	}, nil)
	return b
}

func testRun() *core.Run {
	return &core.Run{ID: "r1", Seed: 9, CatchMode: core.CatchContact, ScoreMode: core.ScoreSurvival, SpawnPolicy: core.SpawnLevel, SpeedFactor: 1}
}

func TestStartAndEndRun(t *testing.T) {
	r := newRelay(t, false)
	b := newTestBackend(t, r)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartRun(testRun()))
	require.NoError(t, b.EndRun(&core.RunResult{RunID: "r1", Score: 12, Reason: "caught"}))

	assert.Equal(t, []string{streaming.TypeJoin, streaming.TypeStartRun, streaming.TypeEndRun}, r.types())
}

func TestEndRun_WrongRun(t *testing.T) {
	r := newRelay(t, false)
	b := newTestBackend(t, r)
	require.NoError(t, b.Init())
	defer b.Close()

	assert.ErrorIs(t, b.EndRun(&core.RunResult{RunID: "other"}), storage.ErrNoActiveRun)
	assert.ErrorIs(t, b.RecordFrame(&core.FrameSample{RunID: "other"}), storage.ErrNoActiveRun)
	assert.ErrorIs(t, b.RecordEvent("other", &core.FrameEvent{}), storage.ErrNoActiveRun)
}

func TestRecordFrame_Throttled(t *testing.T) {
	r := newRelay(t, false)
	b := newTestBackend(t, r)
	require.NoError(t, b.Init())
	defer b.Close()
	require.NoError(t, b.StartRun(testRun()))

	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{0, 50 * time.Millisecond, 99 * time.Millisecond, 100 * time.Millisecond, 150 * time.Millisecond} {
		require.NoError(t, b.RecordFrame(&core.FrameSample{RunID: "r1", Time: t0.Add(offset)}))
	}
	require.NoError(t, b.RecordEvent("r1", &core.FrameEvent{Frame: 1, Kind: core.EventContactStarted}))

	assert.Eventually(t, func() bool {
		return r.count(streaming.TypePose) == 2 && r.count(streaming.TypeFrameEvent) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sent, throttled := b.Stats()
	assert.Equal(t, uint64(3), sent)
	assert.Equal(t, uint64(3), throttled)
}

func TestPosePayload(t *testing.T) {
	r := newRelay(t, false)
	b := newTestBackend(t, r)
	require.NoError(t, b.Init())
	defer b.Close()
	require.NoError(t, b.StartRun(testRun()))

	at := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, b.RecordFrame(&core.FrameSample{
		RunID:   "r1",
		Time:    at,
		Vehicle: core.Pose{Position: core.Vec2{X: 2, Z: -30}, Heading: 3},
		Speed:   18,
	}))

	var pose PoseMessage
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, m := range r.messages {
			if m.Type == streaming.TypePose {
				return json.Unmarshal(m.Payload, &pose) == nil
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "r1", pose.RunID)
	assert.Equal(t, "me", pose.ID)
	assert.Equal(t, core.Vec2{X: 2, Z: -30}, pose.Position)
	assert.Equal(t, int64(1_700_000_000_000), pose.Timestamp)
}

func TestRemotePoses(t *testing.T) {
	r := newRelay(t, false)
	b := newTestBackend(t, r)
	got := make(chan []core.RemotePose, 1)
	b.OnRemotePoses(func(p []core.RemotePose) {
		select {
		case got <- p:
		default:
		}
	})
	require.NoError(t, b.Init())
	defer b.Close()

	select {
	case poses := <-got:
		require.Len(t, poses, 1)
		assert.Equal(t, "ghost", poses[0].ID)
		assert.Equal(t, -5.0, poses[0].Position.Z)
	case <-time.After(2 * time.Second):
		t.Fatal("no remote poses received")
	}
}

func TestReconnectReplaysSession(t *testing.T) {
	r := newRelay(t, true)
	b := newTestBackend(t, r)
	require.NoError(t, b.Init())
	defer b.Close()

	require.NoError(t, b.StartRun(testRun()))

	// first connection is dropped after start_run; the replay re-sends
	// join and start_run on the second connection
	assert.Eventually(t, func() bool {
		return r.connections.Load() >= 2 && r.count(streaming.TypeStartRun) >= 2
	}, 5*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, r.count(streaming.TypeJoin), 2)
}

func TestInit_DialError(t *testing.T) {
	b := New(config.StreamConfig{URL: "ws://127.0.0.1:1/ws"}, nil)
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestMarshalEnvelope(t *testing.T) {
	data, err := marshalEnvelope(streaming.TypeJoin, streaming.JoinPayload{PlayerID: "me"})
	require.NoError(t, err)

	var env streaming.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, streaming.TypeJoin, env.Type)
	assert.JSONEq(t, `{"playerId":"me"}`, string(env.Payload))
}

package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pursuitlab/roadchase/internal/cache"
	"github.com/pursuitlab/roadchase/internal/dispatcher"
	"github.com/pursuitlab/roadchase/internal/engine"
	"github.com/pursuitlab/roadchase/internal/rng"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// syncLoop runs mailbox jobs immediately on the caller's goroutine.
type syncLoop struct {
	eng  *engine.Engine
	full bool
}

func (l *syncLoop) Submit(fn func(*engine.Engine)) error {
	if l.full {
		return engine.ErrMailboxFull
	}
	fn(l.eng)
	return nil
}

func (l *syncLoop) Call(_ context.Context, fn func(*engine.Engine) any) (any, error) {
	return fn(l.eng), nil
}

type recordingListener struct {
	speeds []float64
	colors []string
}

func (r *recordingListener) SpeedFactorChanged(f float64) { r.speeds = append(r.speeds, f) }
func (r *recordingListener) ColorChanged(c string)        { r.colors = append(r.colors, c) }

var now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *syncLoop, *recordingListener) {
	t.Helper()
	eng, err := engine.New(engine.DefaultConfig(), rng.New(9))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	loop := &syncLoop{eng: eng}
	listener := &recordingListener{}
	svc := NewService(Dependencies{
		Loop:     loop,
		Ghosts:   cache.NewGhostCache(5 * time.Second),
		Listener: listener,
		Now:      func() time.Time { return now },
	})
	return svc, loop, listener
}

func TestHandleInput(t *testing.T) {
	svc, _, _ := newTestService(t)

	res, err := svc.HandleInput(dispatcher.Event{Command: CmdInput, Args: []string{"1", "0", "0", "1"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
	assert.Equal(t, core.ControlIntent{Accelerate: true, Right: true}, svc.Intent().Intent())

	_, err = svc.HandleInput(dispatcher.Event{Command: CmdInput, Args: []string{"1"}})
	require.Error(t, err)
	assert.Equal(t, core.ControlIntent{Accelerate: true, Right: true}, svc.Intent().Intent(), "bad input keeps the last intent")
}

func TestHandleReset(t *testing.T) {
	svc, loop, _ := newTestService(t)
	for range 30 {
		loop.eng.Step(core.ControlIntent{Accelerate: true}, 0.05)
	}
	svc.Intent().Set(core.ControlIntent{Accelerate: true})
	require.NotZero(t, loop.eng.Speed())

	_, err := svc.HandleReset(dispatcher.Event{Command: CmdReset, Args: []string{"77"}})
	require.NoError(t, err)

	assert.Zero(t, loop.eng.Speed())
	assert.Equal(t, core.Vec2{}, loop.eng.LocalPose().Position)
	assert.True(t, svc.Intent().Intent().Idle(), "reset releases held input")
}

func TestHandleReset_MailboxFull(t *testing.T) {
	svc, loop, _ := newTestService(t)
	loop.full = true

	_, err := svc.HandleReset(dispatcher.Event{Command: CmdReset})
	require.ErrorIs(t, err, engine.ErrMailboxFull)
}

func TestHandleSpeed(t *testing.T) {
	svc, loop, listener := newTestService(t)

	res, err := svc.HandleSpeed(dispatcher.Event{Command: CmdSpeed, Args: []string{"5"}})
	require.NoError(t, err)
	assert.Equal(t, 2.0, res, "factor is clamped by the engine")
	assert.Equal(t, 2.0, loop.eng.SpeedFactor())
	assert.Equal(t, []float64{2.0}, listener.speeds)

	_, err = svc.HandleSpeed(dispatcher.Event{Command: CmdSpeed, Args: []string{"x"}})
	require.Error(t, err)
	assert.Len(t, listener.speeds, 1)
}

func TestHandleColor(t *testing.T) {
	svc, loop, listener := newTestService(t)

	res, err := svc.HandleColor(dispatcher.Event{Command: CmdColor, Args: []string{"0x00FF00"}})
	require.NoError(t, err)
	assert.Equal(t, "#00ff00", res)
	assert.Equal(t, "#00ff00", loop.eng.Color())
	assert.Equal(t, []string{"#00ff00"}, listener.colors)
}

func TestHandleRemotePoses(t *testing.T) {
	svc, _, _ := newTestService(t)

	args := []string{`[{"id":"p2","position":{"x":3,"z":-40},"heading":3.14}]`}
	res, err := svc.HandleRemotePoses(dispatcher.Event{Command: CmdRemotePoses, Args: args})
	require.NoError(t, err)
	assert.Equal(t, 1, res)

	g, ok := svc.deps.Ghosts.Get("p2")
	require.True(t, ok)
	assert.Equal(t, now, g.Updated)
}

func TestHandleStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.deps.Ghosts.Update([]core.RemotePose{{ID: "p2"}}, now)

	res, err := svc.HandleStatus(dispatcher.Event{Command: CmdStatus})
	require.NoError(t, err)

	var st Status
	require.NoError(t, json.Unmarshal([]byte(res.(string)), &st))
	assert.Equal(t, 1, st.Snapshot.Chase.Difficulty)
	assert.Len(t, st.Snapshot.Pursuers, 3)
	assert.Equal(t, 1.0, st.SpeedFactor)
	require.Len(t, st.Ghosts, 1)
	assert.Equal(t, "p2", st.Ghosts[0].ID)
}

func TestRegister_RoutesCommands(t *testing.T) {
	svc, loop, _ := newTestService(t)
	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)
	t.Cleanup(d.Close)

	svc.Register(d)
	for _, cmd := range []string{CmdInput, CmdReset, CmdSpeed, CmdColor, CmdRemotePoses, CmdStatus} {
		assert.True(t, d.HasHandler(cmd), cmd)
	}

	_, err = d.Dispatch(dispatcher.Event{Command: CmdColor, Args: []string{"#abc"}})
	require.NoError(t, err)
	assert.Equal(t, "#aabbcc", loop.eng.Color())
}

func TestService_WithRunner(t *testing.T) {
	eng, err := engine.New(engine.DefaultConfig(), rng.New(3))
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	latch := &IntentLatch{}
	runner := engine.NewRunner(eng, latch, engine.WithTickRate(500))
	svc := NewService(Dependencies{Loop: runner, Intent: latch})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = runner.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	res, err := svc.HandleSpeed(dispatcher.Event{Command: CmdSpeed, Args: []string{"1.5"}})
	require.NoError(t, err)
	assert.Equal(t, 1.5, res)

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.5, st.SpeedFactor)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pursuitlab/roadchase/internal/api"
	"github.com/pursuitlab/roadchase/internal/config"
	"github.com/pursuitlab/roadchase/internal/dispatcher"
	"github.com/pursuitlab/roadchase/internal/handlers"
	"github.com/pursuitlab/roadchase/internal/storage/memory"
	"github.com/pursuitlab/roadchase/pkg/core"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func recordRun(t *testing.T, b *memory.Backend, id string) {
	t.Helper()
	require.NoError(t, b.StartRun(&core.Run{ID: id, StartTime: start, Seed: 7, CatchMode: core.CatchContact}))
	for i := uint64(1); i <= 4; i++ {
		require.NoError(t, b.RecordFrame(&core.FrameSample{RunID: id, Frame: i * 6, Time: start, Score: int(i)}))
	}
	require.NoError(t, b.RecordEvent(id, &core.FrameEvent{Frame: 24, Kind: core.EventGameOver}))
	require.NoError(t, b.EndRun(&core.RunResult{
		RunID:    id,
		EndTime:  start.Add(20 * time.Second),
		Frames:   24,
		Score:    4,
		GameOver: true,
		Reason:   core.EndCaught,
	}))
}

type fakeStatus struct{}

func (fakeStatus) Status(context.Context) (handlers.Status, error) {
	return handlers.Status{
		Snapshot:    core.Snapshot{Frame: 120, Chase: core.ChaseSnapshot{Score: 9, ActivePursuers: 2, TargetPursuers: 3}},
		SpeedFactor: 1.25,
	}, nil
}

type dispatchLog struct {
	mu     sync.Mutex
	events []dispatcher.Event
}

func (d *dispatchLog) commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, e := range d.events {
		out = append(out, e.Command)
	}
	return out
}

func newTestAPI(t *testing.T) (string, *dispatchLog) {
	t.Helper()
	store := memory.New(config.MemoryConfig{})
	require.NoError(t, store.Init())
	recordRun(t, store, "run-a")

	seen := &dispatchLog{}
	srv := api.NewServer("", api.Dependencies{
		Status: fakeStatus{},
		Runs:   store,
		Dispatch: func(e dispatcher.Event) (any, error) {
			seen.mu.Lock()
			seen.events = append(seen.events, e)
			seen.mu.Unlock()
			switch e.Command {
			case handlers.CmdSpeed:
				return 1.5, nil
			case handlers.CmdColor:
				return "#ff0000", nil
			}
			return nil, nil
		},
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL, seen
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := makeapp()
	var out bytes.Buffer
	app.Writer = &out
	err := app.Run(append([]string{"chasectl"}, args...))
	return out.String(), err
}

func TestRunsAndShow(t *testing.T) {
	url, _ := newTestAPI(t)

	out, err := runApp(t, "--api", url, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "run-a")
	assert.Contains(t, out, "caught")

	out, err = runApp(t, "--api", url, "show", "run-a")
	require.NoError(t, err)
	assert.Contains(t, out, "seed")
	assert.Contains(t, out, "4 frames, 1 events")

	_, err = runApp(t, "--api", url, "show", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = runApp(t, "--api", url, "show")
	assert.EqualError(t, err, "missing run id")
}

func TestFramesTailAndEvents(t *testing.T) {
	url, _ := newTestAPI(t)

	out, err := runApp(t, "--api", url, "frames", "--tail", "2", "run-a")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)

	out, err = runApp(t, "--api", url, "events", "run-a")
	require.NoError(t, err)
	assert.Contains(t, out, "game_over")
}

func TestStatusAndControl(t *testing.T) {
	url, seen := newTestAPI(t)

	out, err := runApp(t, "--api", url, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "2/3")
	assert.Contains(t, out, "1.25")

	out, err = runApp(t, "--api", url, "speed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "speed factor 1.5")

	out, err = runApp(t, "--api", url, "color", "red")
	require.NoError(t, err)
	assert.Contains(t, out, "#ff0000")

	_, err = runApp(t, "--api", url, "reset", "--seed", "42")
	require.NoError(t, err)

	assert.Equal(t, []string{handlers.CmdSpeed, handlers.CmdColor, handlers.CmdReset}, seen.commands())

	_, err = runApp(t, "--api", url, "reset", "--seed", "abc")
	assert.Error(t, err)
	_, err = runApp(t, "--api", url, "speed", "fast")
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	url, _ := newTestAPI(t)
	out, err := runApp(t, "--api", url, "ping")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
}

func TestInspectAndConvert(t *testing.T) {
	dir := t.TempDir()
	store := memory.New(config.MemoryConfig{OutputDir: dir})
	require.NoError(t, store.Init())
	recordRun(t, store, "run-x")
	path := store.ExportedFilePath()
	require.NotEmpty(t, path)

	out, err := runApp(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "run-x")
	assert.Contains(t, out, "4 frames, 1 events")

	converted := filepath.Join(dir, "copy.yaml")
	_, err = runApp(t, "convert", path, converted)
	require.NoError(t, err)

	back, err := memory.ReadExport(converted)
	require.NoError(t, err)
	assert.Equal(t, "run-x", back.RunID)
	assert.Len(t, back.Frames, 4)

	_, err = runApp(t, "convert", path)
	assert.Error(t, err)
}

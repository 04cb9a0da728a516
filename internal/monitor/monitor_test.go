package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pursuitlab/roadchase/internal/model"
	"github.com/pursuitlab/roadchase/internal/session"
	"github.com/pursuitlab/roadchase/internal/storage"
	"github.com/pursuitlab/roadchase/internal/worker"
	"github.com/pursuitlab/roadchase/pkg/core"
)

type fakeRecorder struct{ st worker.Stats }

func (f fakeRecorder) Stats() worker.Stats { return f.st }

type queuedBackend struct {
	frames, events int
	last           time.Duration
}

func (b *queuedBackend) Init() error { return nil }
func (b *queuedBackend) Close() error { return nil }
func (b *queuedBackend) StartRun(*core.Run) error { return nil }
func (b *queuedBackend) EndRun(*core.RunResult) error { return nil }
func (b *queuedBackend) RecordFrame(*core.FrameSample) error { return nil }
func (b *queuedBackend) RecordEvent(string, *core.FrameEvent) error { return nil }
func (b *queuedBackend) QueueLengths() (int, int) { return b.frames, b.events }
func (b *queuedBackend) LastWriteDuration() time.Duration { return b.last }

type perfSink struct {
	mu   sync.Mutex
	rows []model.RunPerformance
}

func (p *perfSink) RecordPerformance(r model.RunPerformance) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = append(p.rows, r)
	return nil
}

func (p *perfSink) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rows)
}

func TestGetProgramStatus(t *testing.T) {
	sess := session.NewContext()
	sess.SetRun(&core.Run{ID: "r1"})
	sess.Observe(60, 9)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	svc := NewService(Dependencies{
		Session:  sess,
		Recorder: fakeRecorder{st: worker.Stats{Pending: 7, Dropped: 2}},
		Backend: storage.NewMulti(
			&queuedBackend{frames: 3, events: 1, last: 40 * time.Millisecond},
			&queuedBackend{frames: 2, last: 10 * time.Millisecond},
		),
		Now: func() time.Time { return clock },
	})

	out, perf := svc.GetProgramStatus(true, true, true)
	require.Len(t, out, 4)
	assert.Contains(t, out[0], "run r1 frame 60 score 9")
	assert.Equal(t, "r1", perf.RunID)
	assert.Equal(t, uint64(60), perf.Frame)
	assert.Equal(t, uint32(7), perf.BufferLengths.Frames)
	assert.Equal(t, uint32(2), perf.BufferLengths.Dropped)
	assert.Equal(t, model.WriteQueueLengths{Frames: 5, Events: 1}, perf.WriteQueueLengths)
	assert.Equal(t, float32(40), perf.LastWriteDurationMs)
	assert.Zero(t, perf.FPS, "no rate before a second sample")

	clock = now.Add(2 * time.Second)
	sess.Observe(180, 9)
	_, perf = svc.GetProgramStatus(false, false, false)
	assert.InDelta(t, 60, perf.FPS, 1e-6)
}

func TestGetProgramStatus_NoBackend(t *testing.T) {
	svc := NewService(Dependencies{})
	out, perf := svc.GetProgramStatus(false, true, false)
	require.Len(t, out, 2)
	assert.Equal(t, session.NoRun, perf.RunID)
	assert.Equal(t, model.WriteQueueLengths{}, perf.WriteQueueLengths)
}

func TestStartStop(t *testing.T) {
	dir := t.TempDir()
	sess := session.NewContext()
	sess.SetRun(&core.Run{ID: "r1"})
	perf := &perfSink{}

	svc := NewService(Dependencies{
		Session:   sess,
		Backend:   &queuedBackend{},
		Perf:      perf,
		StatusDir: dir,
		Interval:  10 * time.Millisecond,
	})
	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())

	require.Eventually(t, func() bool { return perf.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	svc.Stop()
	assert.False(t, svc.IsRunning())
	svc.Stop()

	b, err := os.ReadFile(filepath.Join(dir, StatusFile))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "run r1 frame 0"), string(b))
}

func TestStart_SkipsBeforeFirstRun(t *testing.T) {
	perf := &perfSink{}
	svc := NewService(Dependencies{Perf: perf, Interval: 5 * time.Millisecond})
	require.NoError(t, svc.Start())
	time.Sleep(30 * time.Millisecond)
	svc.Stop()
	assert.Zero(t, perf.count())
}

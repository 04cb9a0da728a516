// internal/storage/memory/memory.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pursuitlab/roadchase/internal/config"
	"github.com/pursuitlab/roadchase/internal/storage"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// RunRecord groups a run with all its time-series data
type RunRecord struct {
	Run    core.Run
	Result *core.RunResult
	Frames []core.FrameSample
	Events []core.FrameEvent
}

// Backend stores runs in memory and exports each finished run to a file
type Backend struct {
	cfg config.MemoryConfig

	runs    map[string]*RunRecord
	order   []string // run IDs in start order
	current *RunRecord

	lastExportPath string
	mu             sync.RWMutex
}

var (
	_ storage.Backend  = (*Backend)(nil)
	_ storage.Reader   = (*Backend)(nil)
	_ storage.Exporter = (*Backend)(nil)
)

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:  cfg,
		runs: make(map[string]*RunRecord),
	}
}

// Init checks the export format
func (b *Backend) Init() error {
	switch b.cfg.Format {
	case "", FormatJSON, FormatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported export format %q", b.cfg.Format)
	}
}

// Close ends and exports a run that was still open
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil || b.current.Result != nil {
		return nil
	}
	rec := b.current
	b.current = nil
	return b.export(rec)
}

// StartRun begins recording a new run. An open run is left without a result.
func (b *Backend) StartRun(run *core.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run has no ID")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.runs[run.ID]; exists {
		return fmt.Errorf("run %s already recorded", run.ID)
	}
	rec := &RunRecord{
		Run:    *run,
		Frames: make([]core.FrameSample, 0),
		Events: make([]core.FrameEvent, 0),
	}
	b.runs[run.ID] = rec
	b.order = append(b.order, run.ID)
	b.current = rec
	return nil
}

// EndRun finalizes and exports the current run
func (b *Backend) EndRun(result *core.RunResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil || b.current.Run.ID != result.RunID {
		return storage.ErrNoActiveRun
	}
	rec := b.current
	r := *result
	rec.Result = &r
	b.current = nil
	return b.export(rec)
}

// RecordFrame appends a frame sample to the current run
func (b *Backend) RecordFrame(s *core.FrameSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil || b.current.Run.ID != s.RunID {
		return storage.ErrNoActiveRun
	}
	b.current.Frames = append(b.current.Frames, *s)
	return nil
}

// RecordEvent appends an event to the current run
func (b *Backend) RecordEvent(runID string, e *core.FrameEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil || b.current.Run.ID != runID {
		return storage.ErrNoActiveRun
	}
	b.current.Events = append(b.current.Events, *e)
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (b *Backend) ListRuns(_ context.Context, limit int) ([]storage.RunRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]storage.RunRecord, 0, len(b.order))
	for i := len(b.order) - 1; i >= 0; i-- {
		out = append(out, summarize(b.runs[b.order[i]]))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetRun looks up a run by ID
func (b *Backend) GetRun(_ context.Context, id string) (storage.RunRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.runs[id]
	if !ok {
		return storage.RunRecord{}, storage.ErrRunNotFound
	}
	return summarize(rec), nil
}

// RunFrames returns a copy of the run's frame samples ordered by frame
func (b *Backend) RunFrames(_ context.Context, id string) ([]core.FrameSample, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.runs[id]
	if !ok {
		return nil, storage.ErrRunNotFound
	}
	out := append([]core.FrameSample(nil), rec.Frames...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Frame < out[j].Frame })
	return out, nil
}

// RunEvents returns a copy of the run's events in recording order
func (b *Backend) RunEvents(_ context.Context, id string) ([]core.FrameEvent, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.runs[id]
	if !ok {
		return nil, storage.ErrRunNotFound
	}
	return append([]core.FrameEvent(nil), rec.Events...), nil
}

// ExportedFilePath returns the path of the last exported file
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

func summarize(rec *RunRecord) storage.RunRecord {
	return storage.RunRecord{
		Run:        rec.Run,
		Result:     rec.Result,
		FrameCount: len(rec.Frames),
		EventCount: len(rec.Events),
	}
}

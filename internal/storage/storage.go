package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pursuitlab/roadchase/pkg/core"
)

var (
	// ErrNoActiveRun is returned when recording outside StartRun/EndRun.
	ErrNoActiveRun = errors.New("no active run")
	// ErrRunNotFound is returned by Reader.GetRun for unknown IDs.
	ErrRunNotFound = errors.New("run not found")
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management
	StartRun(run *core.Run) error
	EndRun(result *core.RunResult) error

	// Recording
	RecordFrame(s *core.FrameSample) error
	RecordEvent(runID string, e *core.FrameEvent) error
}

// RunRecord is a stored run with its result, if it has ended.
type RunRecord struct {
	Run        core.Run
	Result     *core.RunResult
	FrameCount int
	EventCount int
}

// Duration is the run's wall-clock length, or zero while it is still open.
func (r RunRecord) Duration() time.Duration {
	if r.Result == nil {
		return 0
	}
	return r.Result.EndTime.Sub(r.Run.StartTime)
}

// Reader is an optional interface for backends that can list stored runs.
type Reader interface {
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	GetRun(ctx context.Context, id string) (RunRecord, error)
	RunFrames(ctx context.Context, id string) ([]core.FrameSample, error)
	RunEvents(ctx context.Context, id string) ([]core.FrameEvent, error)
}

// Exporter is an optional interface for backends that write each finished
// run to a file.
type Exporter interface {
	ExportedFilePath() string
}

// WriteDurationProvider is an optional interface for backends that flush in
// batches and can report how long the last flush took.
type WriteDurationProvider interface {
	LastWriteDuration() time.Duration
}

// Package gormstorage implements the storage.Backend interface on GORM with
// internal queues and a background DB writer goroutine. The postgres and
// sqlite backends wrap it and only differ in how the connection is made.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/pursuitlab/roadchase/internal/database"
	"github.com/pursuitlab/roadchase/internal/logging"
	"github.com/pursuitlab/roadchase/internal/model"
	"github.com/pursuitlab/roadchase/internal/model/convert"
	"github.com/pursuitlab/roadchase/internal/queue"
	"github.com/pursuitlab/roadchase/internal/storage"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// DefaultFlushInterval is how often queued rows are written.
const DefaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	LogManager    *logging.SlogManager
	FlushInterval time.Duration
	// InstallationName is written once when the schema is first created.
	InstallationName string
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	Frames *queue.Queue[model.FrameSample]
	Events *queue.Queue[model.RunEvent]
}

func newQueues() *queues {
	return &queues{
		Frames: queue.New[model.FrameSample](),
		Events: queue.New[model.RunEvent](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	queues *queues

	runID     atomic.Value // string
	lastWrite atomic.Int64 // nanoseconds
	writeMu   sync.Mutex   // serializes flushes

	stopChan  chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

var (
	_ storage.Backend               = (*Backend)(nil)
	_ storage.Reader                = (*Backend)(nil)
	_ storage.WriteDurationProvider = (*Backend)(nil)
)

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.InstallationName == "" {
		deps.InstallationName = "roadchase"
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	b := &Backend{
		deps:   deps,
		queues: newQueues(),
	}
	b.runID.Store("")
	return b
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("no database connection")
	}
	if err := database.Setup(b.deps.DB, b.deps.InstallationName); err != nil {
		b.deps.LogManager.WriteLog("setupDB", err.Error(), "ERROR")
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.deps.LogManager.WriteLog("setupDB", "Database setup complete", "INFO")

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
			<-b.done
		}
	})
	return nil
}

// StartRun inserts the run row synchronously so frames can reference it.
func (b *Backend) StartRun(run *core.Run) error {
	if run.ID == "" {
		return errors.New("run has no ID")
	}
	if b.deps.DB != nil {
		row := convert.CoreToRun(*run)
		if err := b.deps.DB.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
	}
	b.runID.Store(run.ID)
	return nil
}

// EndRun flushes pending rows and writes the result onto the run.
func (b *Backend) EndRun(result *core.RunResult) error {
	if b.currentRun() != result.RunID {
		return storage.ErrNoActiveRun
	}
	b.runID.Store("")
	if b.deps.DB == nil {
		return nil
	}
	// the result is written even when pending rows fail; they stay queued
	flushErr := b.Flush()
	err := b.deps.DB.Model(&model.Run{}).
		Where("id = ?", result.RunID).
		Updates(convert.ResultColumns(*result)).Error
	if err != nil {
		err = fmt.Errorf("failed to update run: %w", err)
	}
	return errors.Join(flushErr, err)
}

func (b *Backend) currentRun() string {
	return b.runID.Load().(string)
}

// RecordFrame converts and queues a frame sample.
func (b *Backend) RecordFrame(s *core.FrameSample) error {
	if cur := b.currentRun(); cur == "" || cur != s.RunID {
		return storage.ErrNoActiveRun
	}
	b.queues.Frames.Push(convert.CoreToFrameSample(*s))
	return nil
}

// RecordEvent converts and queues a frame event.
func (b *Backend) RecordEvent(runID string, e *core.FrameEvent) error {
	if cur := b.currentRun(); cur == "" || cur != runID {
		return storage.ErrNoActiveRun
	}
	b.queues.Events.Push(convert.CoreToRunEvent(runID, *e, time.Now()))
	return nil
}

// QueueLengths reports the rows waiting to be written.
func (b *Backend) QueueLengths() (frames, events int) {
	return b.queues.Frames.Len(), b.queues.Events.Len()
}

// LastWriteDuration is how long the most recent flush took.
func (b *Backend) LastWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// Flush writes all queued rows now.
func (b *Backend) Flush() error {
	if b.deps.DB == nil {
		return nil
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	start := time.Now()
	log := b.deps.LogManager.WriteLog
	err := errors.Join(
		writeQueue(b.deps.DB, b.queues.Frames, "frame samples", log),
		writeQueue(b.deps.DB, b.queues.Events, "run events", log),
	)
	b.lastWrite.Store(int64(time.Since(start)))
	return err
}

// writeQueue writes all items from a queue to the database in a transaction.
// Failed batches are pushed back for the next cycle.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string)) error {
	if q.Empty() {
		return nil
	}

	items := q.GetAndEmpty()
	tx := db.Begin()
	if err := tx.Create(&items).Error; err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
		tx.Rollback()
		q.Push(items...)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tx.Commit().Error; err != nil {
		q.Push(items...)
		return fmt.Errorf("committing %s: %w", name, err)
	}
	return nil
}

// writerLoop periodically drains queues into the DB.
func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			_ = b.Flush()
			return
		case <-ticker.C:
			_ = b.Flush()
		}
	}
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (b *Backend) ListRuns(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	if b.deps.DB == nil {
		return nil, errors.New("no database connection")
	}
	q := b.deps.DB.WithContext(ctx).Order("start_time desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []model.Run
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	out := make([]storage.RunRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := b.record(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetRun looks up a run by ID.
func (b *Backend) GetRun(ctx context.Context, id string) (storage.RunRecord, error) {
	if b.deps.DB == nil {
		return storage.RunRecord{}, errors.New("no database connection")
	}
	var row model.Run
	err := b.deps.DB.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.RunRecord{}, storage.ErrRunNotFound
	}
	if err != nil {
		return storage.RunRecord{}, fmt.Errorf("getting run: %w", err)
	}
	return b.record(ctx, row)
}

func (b *Backend) record(ctx context.Context, row model.Run) (storage.RunRecord, error) {
	db := b.deps.DB.WithContext(ctx)
	var frames, events int64
	if err := db.Model(&model.FrameSample{}).Where("run_id = ?", row.ID).Count(&frames).Error; err != nil {
		return storage.RunRecord{}, fmt.Errorf("counting frames: %w", err)
	}
	if err := db.Model(&model.RunEvent{}).Where("run_id = ?", row.ID).Count(&events).Error; err != nil {
		return storage.RunRecord{}, fmt.Errorf("counting events: %w", err)
	}
	return storage.RunRecord{
		Run:        convert.RunToCore(row),
		Result:     convert.RunToResult(row),
		FrameCount: int(frames),
		EventCount: int(events),
	}, nil
}

// RunFrames returns the run's frame samples ordered by frame.
func (b *Backend) RunFrames(ctx context.Context, id string) ([]core.FrameSample, error) {
	if _, err := b.GetRun(ctx, id); err != nil {
		return nil, err
	}
	var rows []model.FrameSample
	if err := b.deps.DB.WithContext(ctx).Where("run_id = ?", id).Order("frame asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading frames: %w", err)
	}
	out := make([]core.FrameSample, len(rows))
	for i, row := range rows {
		out[i] = convert.FrameSampleToCore(row)
	}
	return out, nil
}

// RunEvents returns the run's events in recording order.
func (b *Backend) RunEvents(ctx context.Context, id string) ([]core.FrameEvent, error) {
	if _, err := b.GetRun(ctx, id); err != nil {
		return nil, err
	}
	var rows []model.RunEvent
	if err := b.deps.DB.WithContext(ctx).Where("run_id = ?", id).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	out := make([]core.FrameEvent, len(rows))
	for i, row := range rows {
		out[i] = convert.RunEventToCore(row)
	}
	return out, nil
}

// RecordPerformance inserts a performance row synchronously.
func (b *Backend) RecordPerformance(p model.RunPerformance) error {
	if b.deps.DB == nil {
		return nil
	}
	return b.deps.DB.Create(&p).Error
}

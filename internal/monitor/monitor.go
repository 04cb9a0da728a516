// Package monitor reports recorder health: a status file rewritten every
// interval and, when a database backend is configured, run_performances rows.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pursuitlab/roadchase/internal/logging"
	"github.com/pursuitlab/roadchase/internal/model"
	"github.com/pursuitlab/roadchase/internal/session"
	"github.com/pursuitlab/roadchase/internal/storage"
	"github.com/pursuitlab/roadchase/internal/worker"
)

// StatusFile is the file name written in Dependencies.StatusDir.
const StatusFile = "status.txt"

// RecorderStats is implemented by worker.Recorder.
type RecorderStats interface {
	Stats() worker.Stats
}

// QueueLengthProvider is implemented by backends with write queues.
type QueueLengthProvider interface {
	QueueLengths() (frames, events int)
}

// PerformanceWriter stores performance rows.
type PerformanceWriter interface {
	RecordPerformance(p model.RunPerformance) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager *logging.SlogManager
	Session    *session.Context
	Recorder   RecorderStats
	Backend    storage.Backend
	Perf       PerformanceWriter // optional
	StatusDir  string
	Interval   time.Duration
	Now        func() time.Time
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}

	rateMu    sync.Mutex
	lastFrame uint64
	lastAt    time.Time
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// backends flattens a Multi so optional interfaces can be found on its members.
func (s *Service) backends() []storage.Backend {
	if m, ok := s.deps.Backend.(*storage.Multi); ok {
		return m.Backends()
	}
	if s.deps.Backend == nil {
		return nil
	}
	return []storage.Backend{s.deps.Backend}
}

func (s *Service) writeQueues() model.WriteQueueLengths {
	var out model.WriteQueueLengths
	for _, b := range s.backends() {
		if q, ok := b.(QueueLengthProvider); ok {
			frames, events := q.QueueLengths()
			out.Frames += uint32(frames)
			out.Events += uint32(events)
		}
	}
	return out
}

func (s *Service) lastWriteDuration() time.Duration {
	var longest time.Duration
	for _, b := range s.backends() {
		if p, ok := b.(storage.WriteDurationProvider); ok {
			longest = max(longest, p.LastWriteDuration())
		}
	}
	return longest
}

// fps is the simulated frame rate since the previous call.
func (s *Service) fps(now time.Time, frame uint64) float32 {
	s.rateMu.Lock()
	defer s.rateMu.Unlock()
	var rate float32
	if !s.lastAt.IsZero() && frame >= s.lastFrame {
		if dt := now.Sub(s.lastAt).Seconds(); dt > 0 {
			rate = float32(float64(frame-s.lastFrame) / dt)
		}
	}
	s.lastAt = now
	s.lastFrame = frame
	return rate
}

// GetProgramStatus returns the current program status
func (s *Service) GetProgramStatus(
	rawBuffers bool,
	writeQueues bool,
	lastWrite bool,
) (output []string, perfModel model.RunPerformance) {
	now := s.deps.Now()
	frame := s.deps.Session.Frame()

	buffersObj := model.BufferLengths{}
	if s.deps.Recorder != nil {
		st := s.deps.Recorder.Stats()
		buffersObj.Frames = uint32(st.Pending)
		buffersObj.Dropped = uint32(st.Dropped)
	}
	writeQueuesObj := s.writeQueues()

	perf := model.RunPerformance{
		Time:                now,
		RunID:               s.deps.Session.RunID(),
		Frame:               frame,
		FPS:                 s.fps(now, frame),
		BufferLengths:       buffersObj,
		WriteQueueLengths:   writeQueuesObj,
		LastWriteDurationMs: float32(s.lastWriteDuration().Milliseconds()),
	}

	output = append(output, fmt.Sprintf("run %s frame %d score %d fps %.1f",
		perf.RunID, frame, s.deps.Session.Score(), perf.FPS))
	if rawBuffers {
		output = append(output, marshalStatus(buffersObj))
	}
	if writeQueues {
		output = append(output, marshalStatus(writeQueuesObj))
	}
	if lastWrite {
		output = append(output, marshalStatus(perf.LastWriteDurationMs))
	}

	return output, perf
}

func marshalStatus(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": "%s"}`, err)
	}
	return string(b)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	var statusFile *os.File
	if s.deps.StatusDir != "" {
		if err := os.MkdirAll(s.deps.StatusDir, 0755); err != nil {
			return fmt.Errorf("create status dir: %w", err)
		}
		f, err := os.Create(filepath.Join(s.deps.StatusDir, StatusFile))
		if err != nil {
			return fmt.Errorf("create status file: %w", err)
		}
		statusFile = f
	}

	go func() {
		defer func() {
			if statusFile != nil {
				statusFile.Close()
			}
			close(s.done)
		}()

		logger := s.deps.LogManager.Component("monitor")
		logger.Debug("Starting status monitor goroutine")

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				if s.deps.Session.RunID() == session.NoRun {
					continue
				}

				statusStr, perfModel := s.GetProgramStatus(true, true, true)
				if statusFile != nil {
					if err := rewrite(statusFile, statusStr); err != nil {
						logger.Error("Error writing status file", "error", err)
					}
				}
				if s.deps.Perf != nil {
					if err := s.deps.Perf.RecordPerformance(perfModel); err != nil {
						logger.Error("Error writing perf model", "error", err)
					}
				}
			}
		}
	}()

	return nil
}

func rewrite(f *os.File, lines []string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}

// Package influx writes per-frame chase telemetry to InfluxDB. When the
// server cannot be reached points go to a gzip line-protocol backup file
// instead, which can be replayed with the influx CLI.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/pursuitlab/roadchase/internal/config"
	"github.com/pursuitlab/roadchase/internal/engine"
	"github.com/pursuitlab/roadchase/internal/queue"
	"github.com/pursuitlab/roadchase/internal/session"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// Measurements written by the Writer.
const (
	FrameMeasurement = "chase_frame"
	EventMeasurement = "chase_event"
)

// MaxPending bounds the points held between flushes; the oldest are dropped.
const MaxPending = 10000

// Writer is an engine.Sink that samples frames into InfluxDB points.
type Writer struct {
	cfg        config.InfluxConfig
	log        zerolog.Logger
	session    *session.Context
	backupPath string

	client     influxdb2.Client
	api        influxdb2_api.WriteAPI
	backupFile *os.File
	backup     *gzip.Writer
	valid      bool
	writeMu    sync.Mutex

	points *queue.Queue[*influxdb2_write.Point]
	frames uint64 // frame loop only

	stop      chan struct{}
	done      chan struct{}
	started   atomic.Bool
	closeOnce sync.Once
	written   atomic.Uint64
}

var _ engine.Sink = (*Writer)(nil)

// NewWriter creates a writer. sess supplies the run_id tag and may be nil.
func NewWriter(cfg config.InfluxConfig, log zerolog.Logger, backupPath string, sess *session.Context) *Writer {
	if cfg.SampleEvery <= 0 {
		cfg.SampleEvery = 1
	}
	if sess == nil {
		sess = session.NewContext()
	}
	return &Writer{
		cfg:        cfg,
		log:        log,
		session:    sess,
		backupPath: backupPath,
		points:     queue.NewBounded[*influxdb2_write.Point](MaxPending),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// URL is the server address built from the config.
func (w *Writer) URL() string {
	return fmt.Sprintf("%s://%s:%s", w.cfg.Protocol, w.cfg.Host, w.cfg.Port)
}

// Connect establishes a connection to InfluxDB, falling back to the backup
// file when the server does not answer a ping.
func (w *Writer) Connect(ctx context.Context) error {
	if !w.cfg.Enabled {
		return errors.New("influx.enabled is false")
	}

	w.client = influxdb2.NewClientWithOptions(
		w.URL(),
		w.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := w.client.Ping(ctx)
	if err != nil || !running {
		w.log.Warn().Err(err).Str("backupPath", w.backupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return w.openBackup()
	}

	if err := w.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	w.api = w.client.WriteAPI(w.cfg.Org, w.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			w.log.Error().Err(writeErr).Str("bucket", w.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(w.api.Errors())
	w.valid = true
	w.log.Info().Str("url", w.URL()).Str("bucket", w.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (w *Writer) openBackup() error {
	if w.backup != nil {
		return nil
	}
	if w.backupPath == "" {
		return errors.New("no influx backup path configured")
	}
	file, err := os.OpenFile(w.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	w.backupFile = file
	w.backup = gzip.NewWriter(file)
	w.valid = false
	return nil
}

func (w *Writer) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := w.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, w.cfg.Org)
	if err != nil {
		w.log.Info().Str("org", w.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, w.cfg.Org)
		if err != nil {
			return fmt.Errorf("create organization %s: %w", w.cfg.Org, err)
		}
	}

	buckets := w.client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, w.cfg.Bucket); err == nil {
		return nil
	}
	w.log.Info().Str("bucket", w.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = buckets.CreateBucketWithName(ctx, org, w.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: 60 * 60 * 24 * 30,
	})
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", w.cfg.Bucket, err)
	}
	return nil
}

// Start launches the goroutine that drains queued points every interval.
func (w *Writer) Start(interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	if w.started.Swap(true) {
		return
	}
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				w.Flush()
				return
			case <-ticker.C:
				w.Flush()
			}
		}
	}()
}

// Consume implements engine.Sink. Every SampleEvery-th frame becomes a
// point; every event does.
func (w *Writer) Consume(f engine.Frame) {
	runID := w.session.RunID()
	for i := range f.Events {
		w.points.Push(EventPoint(runID, f.At, f.Events[i]))
	}
	w.frames++
	if w.frames%uint64(w.cfg.SampleEvery) != 0 && !f.Snapshot.Chase.GameOver {
		return
	}
	w.points.Push(FramePoint(runID, f.At, f.Snapshot))
}

// Dropped returns the number of points evicted before they were written.
func (w *Writer) Dropped() uint64 {
	return w.points.Dropped()
}

// Written returns the number of points handed to InfluxDB or the backup.
func (w *Writer) Written() uint64 {
	return w.written.Load()
}

// Flush writes every queued point.
func (w *Writer) Flush() {
	for _, p := range w.points.GetAndEmpty() {
		if err := w.WritePoint(p); err != nil {
			w.log.Error().Err(err).Msg("Error writing point")
			continue
		}
		w.written.Add(1)
	}
}

// WritePoint writes a point to InfluxDB or the backup file.
func (w *Writer) WritePoint(point *influxdb2_write.Point) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.valid {
		w.api.WritePoint(point)
		return nil
	}
	if w.backup == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	line := strings.TrimRight(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := w.backup.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close stops the drain goroutine if one was started, flushes and closes
// the client or backup file.
func (w *Writer) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stop)
		if w.started.Load() {
			<-w.done
		} else {
			w.Flush()
		}

		w.writeMu.Lock()
		defer w.writeMu.Unlock()
		if w.api != nil {
			w.api.Flush()
		}
		if w.client != nil {
			w.client.Close()
		}
		if w.backup != nil {
			err = errors.Join(w.backup.Close(), w.backupFile.Close())
			w.backup = nil
		}
	})
	return err
}

// FramePoint builds a chase_frame point from a snapshot.
func FramePoint(runID string, at time.Time, s core.Snapshot) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		FrameMeasurement,
		map[string]string{"run_id": runID},
		map[string]any{
			"frame":           int64(s.Frame),
			"x":               s.Vehicle.Position.X,
			"z":               s.Vehicle.Position.Z,
			"heading":         s.Vehicle.Heading,
			"speed":           s.Vehicle.Speed,
			"score":           s.Chase.Score,
			"distance":        s.Chase.Distance,
			"difficulty":      s.Chase.Difficulty,
			"active_pursuers": s.Chase.ActivePursuers,
			"caught_progress": s.Chase.CaughtProgress,
			"objects":         len(s.Objects),
			"game_over":       s.Chase.GameOver,
		},
		at,
	)
}

// EventPoint builds a chase_event point.
func EventPoint(runID string, at time.Time, e core.FrameEvent) *influxdb2_write.Point {
	p := influxdb2_write.NewPoint(
		EventMeasurement,
		map[string]string{"run_id": runID, "kind": string(e.Kind)},
		map[string]any{
			"frame":    int64(e.Frame),
			"sim_time": e.Time,
			"slot":     e.Slot,
			"value":    e.Value,
		},
		at,
	)
	if e.Detail != "" {
		p.AddField("detail", e.Detail)
	}
	return p
}

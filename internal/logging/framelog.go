package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/pursuitlab/roadchase/internal/session"
	"github.com/rs/zerolog"
)

// FrameLogConfig configures the per-frame diagnostic logger.
type FrameLogConfig struct {
	Level string
	// GelfAddress enables a GELF UDP writer when non-empty.
	GelfAddress string
	// Burst frames are logged in full per Period before falling back to 1 in Every.
	Burst  uint32
	Period time.Duration
	Every  uint32
	// Session, when set, tags every record with the current run ID.
	Session *session.Context
}

// DefaultFrameLogConfig logs 5 frames per 10 seconds, then 1 in 100.
func DefaultFrameLogConfig() FrameLogConfig {
	return FrameLogConfig{Level: "info", Burst: 5, Period: 10 * time.Second, Every: 100}
}

// NewFrameLogger builds the zerolog logger used inside the frame loop.
// Debug records are sampled; info and above are always written.
func NewFrameLogger(w io.Writer, cfg FrameLogConfig) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}

	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	var writer io.Writer = out
	if cfg.GelfAddress != "" {
		gw, err := gelf.NewWriter(cfg.GelfAddress)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("failed to create GELF writer: %w", err)
		}
		writer = zerolog.MultiLevelWriter(out, gw)
	}

	every := cfg.Every
	if every == 0 {
		every = 1
	}
	sampler := zerolog.LevelSampler{
		DebugSampler: &zerolog.BurstSampler{
			Burst:       cfg.Burst,
			Period:      cfg.Period,
			NextSampler: &zerolog.BasicSampler{N: every},
		},
	}

	logger := zerolog.New(writer).
		Level(lvl).
		Sample(sampler).
		With().Timestamp().Str("component", "sim").Logger()
	if cfg.Session != nil {
		sess := cfg.Session
		logger = logger.Hook(zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
			e.Str("run_id", sess.RunID())
		}))
	}
	return logger, nil
}

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405")),
	)
}

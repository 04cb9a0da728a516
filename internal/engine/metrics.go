package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/pursuitlab/roadchase/internal/engine"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	frames    metric.Int64Counter
	clamped   metric.Int64Counter
	gameOvers metric.Int64Counter
	active    metric.Int64ObservableGauge

	// written by the frame loop, read by the gauge callback
	activeCount atomic.Int64
	reg         metric.Registration
}

func newMetrics(m metric.Meter) (*metrics, error) {
	mt := &metrics{}
	var err error

	mt.frames, err = m.Int64Counter(
		"sim.frames",
		metric.WithDescription("Total simulated frames"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}

	mt.clamped, err = m.Int64Counter(
		"sim.dt.clamped",
		metric.WithDescription("Frames whose delta time was clamped"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating clamp counter: %w", err)
	}

	mt.gameOvers, err = m.Int64Counter(
		"sim.runs.gameover",
		metric.WithDescription("Runs ended by capture"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating game over counter: %w", err)
	}

	mt.active, err = m.Int64ObservableGauge(
		"sim.pursuers.active",
		metric.WithDescription("Currently active pursuers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating active pursuers gauge: %w", err)
	}

	mt.reg, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(mt.active, mt.activeCount.Load())
			return nil
		},
		mt.active,
	)
	if err != nil {
		return nil, fmt.Errorf("registering active pursuers callback: %w", err)
	}

	return mt, nil
}

func (m *metrics) frame(clamped bool, active int) {
	ctx := context.Background()
	m.frames.Add(ctx, 1)
	if clamped {
		m.clamped.Add(ctx, 1)
	}
	m.activeCount.Store(int64(active))
}

func (m *metrics) gameOver(mode string) {
	m.gameOvers.Add(context.Background(), 1, metric.WithAttributes(attribute.String("catch_mode", mode)))
}

func (m *metrics) close() error {
	if m.reg == nil {
		return nil
	}
	return m.reg.Unregister()
}

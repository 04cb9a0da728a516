package storage

import (
	"errors"

	"github.com/pursuitlab/roadchase/pkg/core"
)

// Multi fans every call out to several backends. All backends are called even
// when one fails; the errors are joined.
type Multi struct {
	backends []Backend
}

var _ Backend = (*Multi)(nil)

// NewMulti combines backends. Nil entries are skipped.
func NewMulti(backends ...Backend) *Multi {
	m := &Multi{}
	for _, b := range backends {
		if b != nil {
			m.backends = append(m.backends, b)
		}
	}
	return m
}

// Backends returns the combined backends in call order.
func (m *Multi) Backends() []Backend {
	return m.backends
}

func (m *Multi) each(fn func(Backend) error) error {
	var errs []error
	for _, b := range m.backends {
		if err := fn(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Init() error {
	return m.each(Backend.Init)
}

// Close closes in reverse order.
func (m *Multi) Close() error {
	var errs []error
	for i := len(m.backends) - 1; i >= 0; i-- {
		if err := m.backends[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) StartRun(run *core.Run) error {
	return m.each(func(b Backend) error { return b.StartRun(run) })
}

func (m *Multi) EndRun(result *core.RunResult) error {
	return m.each(func(b Backend) error { return b.EndRun(result) })
}

func (m *Multi) RecordFrame(s *core.FrameSample) error {
	return m.each(func(b Backend) error { return b.RecordFrame(s) })
}

func (m *Multi) RecordEvent(runID string, e *core.FrameEvent) error {
	return m.each(func(b Backend) error { return b.RecordEvent(runID, e) })
}

// Reader returns the first backend that can list runs.
func (m *Multi) Reader() (Reader, bool) {
	for _, b := range m.backends {
		if r, ok := b.(Reader); ok {
			return r, true
		}
	}
	return nil, false
}

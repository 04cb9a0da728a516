// Package session tracks the run currently being simulated so that
// logging, monitoring and recording can tag their output with it.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/pursuitlab/roadchase/pkg/core"
)

// NoRun is the run ID reported before the first run starts.
const NoRun = "no run started"

// Context holds the current run and the latest simulated frame
type Context struct {
	mu    sync.RWMutex
	run   *core.Run
	frame atomic.Uint64
	score atomic.Int64
}

// NewContext creates a new Context with no active run
func NewContext() *Context {
	return &Context{
		run: &core.Run{ID: NoRun},
	}
}

// GetRun returns the current run
func (c *Context) GetRun() *core.Run {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.run
}

// RunID returns the ID of the current run.
func (c *Context) RunID() string {
	return c.GetRun().ID
}

// SetRun sets the current run and rewinds the frame counter
func (c *Context) SetRun(run *core.Run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run = run
	c.frame.Store(0)
	c.score.Store(0)
}

// Observe records the latest frame. Called from the frame loop.
func (c *Context) Observe(frame uint64, score int64) {
	c.frame.Store(frame)
	c.score.Store(score)
}

// Frame returns the last observed frame number.
func (c *Context) Frame() uint64 {
	return c.frame.Load()
}

// Score returns the last observed score.
func (c *Context) Score() int64 {
	return c.score.Load()
}

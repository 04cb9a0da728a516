package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pursuitlab/roadchase/internal/engine"
	"github.com/pursuitlab/roadchase/internal/handlers"
	"github.com/pursuitlab/roadchase/pkg/core"
)

func overFrame(at time.Time, over bool) engine.Frame {
	var f engine.Frame
	f.At = at
	f.Snapshot.Chase.GameOver = over
	return f
}

func TestAutopilot_LatchedIntentWins(t *testing.T) {
	latch := &handlers.IntentLatch{}
	a := newAutopilot(latch, nil)

	latch.Set(core.ControlIntent{Brake: true})
	assert.Equal(t, core.ControlIntent{Brake: true}, a.Intent())

	latch.Set(core.ControlIntent{})
	assert.True(t, a.Intent().Accelerate)
}

func TestAutopilot_Weaves(t *testing.T) {
	a := newAutopilot(nil, nil)
	a.weave = 2

	var got []core.ControlIntent
	for i := 0; i < 8; i++ {
		got = append(got, a.Intent())
	}
	// frames 1..8 with quarter-cycle 2: phases 0,1,1,2,2,3,3,0
	assert.False(t, got[0].Left || got[0].Right)
	assert.True(t, got[1].Left)
	assert.True(t, got[2].Left)
	assert.False(t, got[3].Left || got[3].Right)
	assert.True(t, got[5].Right)
	assert.True(t, got[6].Right)
	assert.False(t, got[7].Left || got[7].Right)
	for _, in := range got {
		assert.True(t, in.Accelerate)
	}
}

func TestAutopilot_ResetsAfterGameOver(t *testing.T) {
	submitted := 0
	a := newAutopilot(nil, func(func(*engine.Engine)) error {
		submitted++
		return nil
	})
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a.Consume(overFrame(t0, false))
	a.Consume(overFrame(t0, true))
	a.Consume(overFrame(t0.Add(time.Second), true))
	assert.Equal(t, 0, submitted)

	a.Consume(overFrame(t0.Add(3*time.Second), true))
	a.Consume(overFrame(t0.Add(4*time.Second), true))
	assert.Equal(t, 1, submitted)

	// a new run arms it again
	a.Consume(overFrame(t0.Add(5*time.Second), false))
	a.Consume(overFrame(t0.Add(6*time.Second), true))
	a.Consume(overFrame(t0.Add(9*time.Second), true))
	assert.Equal(t, 2, submitted)
}

func TestAutopilot_RetriesWhenMailboxFull(t *testing.T) {
	calls := 0
	a := newAutopilot(nil, func(func(*engine.Engine)) error {
		calls++
		if calls == 1 {
			return errors.New("mailbox full")
		}
		return nil
	})
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	a.Consume(overFrame(t0, true))
	a.Consume(overFrame(t0.Add(3*time.Second), true))
	a.Consume(overFrame(t0.Add(3*time.Second+time.Millisecond), true))
	a.Consume(overFrame(t0.Add(4*time.Second), true))
	require.Equal(t, 2, calls)
}

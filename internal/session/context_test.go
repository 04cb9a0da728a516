package session

import (
	"sync"
	"testing"

	"github.com/pursuitlab/roadchase/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestContext_Defaults(t *testing.T) {
	ctx := NewContext()

	assert.Equal(t, NoRun, ctx.RunID())
	assert.Equal(t, uint64(0), ctx.Frame())
	assert.Equal(t, int64(0), ctx.Score())
}

func TestContext_SetRunRewindsFrame(t *testing.T) {
	ctx := NewContext()
	ctx.Observe(120, 20)

	ctx.SetRun(&core.Run{ID: "run-1", Seed: 7})

	assert.Equal(t, "run-1", ctx.RunID())
	assert.Equal(t, uint64(7), ctx.GetRun().Seed)
	assert.Equal(t, uint64(0), ctx.Frame())
	assert.Equal(t, int64(0), ctx.Score())
}

func TestContext_ThreadSafe(t *testing.T) {
	ctx := NewContext()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ctx.Observe(uint64(i), int64(i))
		}()
		go func() {
			defer wg.Done()
			_ = ctx.RunID()
			_ = ctx.Frame()
		}()
	}
	wg.Wait()

	assert.Less(t, ctx.Frame(), uint64(8))
}

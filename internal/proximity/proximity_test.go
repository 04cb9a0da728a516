package proximity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pursuitlab/roadchase/internal/pursuit"
	"github.com/pursuitlab/roadchase/internal/rng"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// newPool returns a pool with only slot 0 active, placed at pos.
func newPool(t *testing.T, pos core.Vec2) *pursuit.Pool {
	t.Helper()
	pool := pursuit.NewPool(pursuit.PoolParams{Size: 4, Capacity: 4, Base: 1}, pursuit.DefaultAIParams(), rng.New(1))
	pool.Get(0).Pos = pos
	return pool
}

func TestUpdate_ContactLifecycle(t *testing.T) {
	pool := newPool(t, core.Vec2{X: 1})
	d := New(DefaultThreshold, pool.Cap())

	res := d.Update(10, core.Vec2{}, pool)
	assert.True(t, res.AnyContact)
	assert.Equal(t, []int{0}, res.Started)
	assert.Equal(t, 0.0, res.MaxDuration)
	assert.Equal(t, 10.0, pool.Get(0).ContactStart)

	res = d.Update(12.5, core.Vec2{}, pool)
	assert.Empty(t, res.Started)
	assert.Equal(t, 2.5, res.MaxDuration)
	assert.Equal(t, 1, res.Touching)

	pool.Get(0).Pos = core.Vec2{X: 10}
	res = d.Update(13, core.Vec2{}, pool)
	assert.False(t, res.AnyContact)
	assert.Equal(t, []int{0}, res.Broken)
	assert.Equal(t, 0.0, res.MaxDuration)
	assert.False(t, pool.Get(0).Touching)
	assert.Zero(t, pool.Get(0).ContactDuration)
}

func TestUpdate_ThresholdIsInclusive(t *testing.T) {
	pool := newPool(t, core.Vec2{Z: DefaultThreshold})
	d := New(DefaultThreshold, pool.Cap())
	res := d.Update(0, core.Vec2{}, pool)
	assert.True(t, res.AnyContact)

	pool.Get(0).Pos = core.Vec2{Z: DefaultThreshold + 1e-9}
	res = d.Update(1, core.Vec2{}, pool)
	assert.False(t, res.AnyContact)
}

func TestUpdate_BoundaryCrossingResetsProgress(t *testing.T) {
	pool := newPool(t, core.Vec2{})
	d := New(DefaultThreshold, pool.Cap())

	d.Update(0, core.Vec2{}, pool)
	res := d.Update(4, core.Vec2{}, pool)
	require.Equal(t, 4.0, res.MaxDuration)

	pool.Get(0).Pos = core.Vec2{X: 5}
	d.Update(4.0625, core.Vec2{}, pool)

	pool.Get(0).Pos = core.Vec2{}
	res = d.Update(4.125, core.Vec2{}, pool)
	assert.Equal(t, 0.0, res.MaxDuration)
	res = d.Update(5, core.Vec2{}, pool)
	assert.Equal(t, 0.875, res.MaxDuration)
}

func TestUpdate_MaxAcrossPursuers(t *testing.T) {
	pool := newPool(t, core.Vec2{X: 1})
	pool.Activate(1, core.Vec2{})
	pool.Get(1).Pos = core.Vec2{X: 100}
	d := New(DefaultThreshold, pool.Cap())

	d.Update(0, core.Vec2{}, pool)
	pool.Get(1).Pos = core.Vec2{Z: 2}
	d.Update(1, core.Vec2{}, pool)
	res := d.Update(3, core.Vec2{}, pool)

	assert.Equal(t, 2, res.Touching)
	assert.Equal(t, 3.0, res.MaxDuration)
	assert.Equal(t, 2.0, pool.Get(1).ContactDuration)
}

func TestUpdate_SkipsInactive(t *testing.T) {
	pool := newPool(t, core.Vec2{})
	pool.Get(2).Pos = core.Vec2{}
	d := New(DefaultThreshold, pool.Cap())

	res := d.Update(0, core.Vec2{}, pool)
	assert.Equal(t, 1, res.Touching)
	assert.False(t, pool.Get(2).Touching)
}

package pursuit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pursuitlab/roadchase/internal/rng"
	"github.com/pursuitlab/roadchase/pkg/core"
)

func newTestPool() *Pool {
	return NewPool(DefaultPoolParams(), DefaultAIParams(), rng.New(1))
}

func TestNewPool_InitialPlacement(t *testing.T) {
	pool := newTestPool()
	require.Equal(t, 10, pool.Len())
	assert.Equal(t, 20, pool.Cap())
	assert.Equal(t, 3, pool.ActiveCount())

	for i := range 3 {
		s := pool.Get(i)
		assert.True(t, s.Active)
		assert.InDelta(t, 50+float64(i)*10, s.Pos.Len(), 1e-9)
		want := core.Polar(core.Vec2{}, 50+float64(i)*10, 2*math.Pi*float64(i)/3)
		assert.InDelta(t, want.X, s.Pos.X, 1e-9)
		assert.InDelta(t, want.Z, s.Pos.Z, 1e-9)
		assert.GreaterOrEqual(t, s.Speed, 27.0)
		assert.Less(t, s.Speed, 33.0)
		assert.GreaterOrEqual(t, s.ChaseDistance, 30.0)
		assert.Less(t, s.ChaseDistance, 40.0)
	}
	for i := 3; i < pool.Len(); i++ {
		assert.False(t, pool.Get(i).Active)
		assert.Equal(t, ParkedPosition, pool.Get(i).Pos)
		// parked well outside contact range of the vehicle spawn point
		assert.Greater(t, pool.Get(i).Pos.Len(), 1000.0)
	}
}

func TestPool_ActivateDeactivate(t *testing.T) {
	pool := newTestPool()
	center := core.Vec2{X: 3, Z: -400}

	require.True(t, pool.Activate(5, center))
	assert.False(t, pool.Activate(5, center))
	s := pool.Get(5)
	d := s.Pos.Dist(center)
	assert.GreaterOrEqual(t, d, 50.0)
	assert.Less(t, d, 80.0)
	assert.InDelta(t, center.Sub(s.Pos).Heading(), s.Heading, 1e-12)
	assert.Equal(t, 4, pool.ActiveCount())

	s.Touching = true
	s.ContactDuration = 2
	assert.True(t, pool.Deactivate(5))
	assert.False(t, s.Active)
	assert.False(t, s.Touching)
	assert.Zero(t, s.ContactDuration)
	assert.Equal(t, 3, pool.ActiveCount())
}

func TestPool_AppendUntilFull(t *testing.T) {
	pool := newTestPool()
	for n := pool.Len(); n < pool.Cap(); n++ {
		i, ok := pool.Append(core.Vec2{}, 100)
		require.True(t, ok)
		assert.Equal(t, n, i)
		assert.InDelta(t, 100, pool.Get(i).Pos.Len(), 1e-9)
		assert.True(t, pool.Get(i).Active)
	}
	i, ok := pool.Append(core.Vec2{}, 100)
	assert.False(t, ok)
	assert.Equal(t, -1, i)
	assert.Equal(t, pool.Cap(), pool.Len())
}

func TestPool_ResetRestoresInitialState(t *testing.T) {
	pool := newTestPool()
	pool.Append(core.Vec2{}, 100)
	pool.Activate(7, core.Vec2{})
	pool.Deactivate(0)

	pool.Reset(core.Vec2{})
	assert.Equal(t, 10, pool.Len())
	assert.Equal(t, 3, pool.ActiveCount())
	for i := range 3 {
		assert.True(t, pool.Get(i).Active)
	}
}

func TestPool_EachVisitsActiveInOrder(t *testing.T) {
	pool := newTestPool()
	pool.Activate(6, core.Vec2{})
	pool.Deactivate(1)

	var seen []int
	pool.Each(func(i int, s *Pursuer) {
		seen = append(seen, i)
	})
	assert.Equal(t, []int{0, 2, 6}, seen)
}

func TestPool_SteerSkipsInactive(t *testing.T) {
	pool := newTestPool()
	parked := *pool.Get(4)
	before := pool.Get(0).Pos
	pool.Steer(core.Vec2{}, 1, dt)
	assert.Equal(t, parked, *pool.Get(4))
	assert.NotEqual(t, before, pool.Get(0).Pos)
}

func TestNewPool_ClampsParams(t *testing.T) {
	pool := NewPool(PoolParams{Size: 2, Capacity: 1, Base: 5}, DefaultAIParams(), rng.New(1))
	assert.Equal(t, 2, pool.Len())
	assert.Equal(t, 2, pool.Cap())
	assert.Equal(t, 2, pool.Base())
	assert.Equal(t, 2, pool.ActiveCount())
}

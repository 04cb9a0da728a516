package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertRingInvariant(t *testing.T, r *Road, vz float64) {
	t.Helper()
	p := r.Params()
	require.Len(t, r.Segments(), p.Segments)
	for _, z := range r.Segments() {
		require.GreaterOrEqual(t, z, vz-p.Span())
		require.LessOrEqual(t, z, vz+p.SegmentLength)
	}
}

func TestNewRoad_Layout(t *testing.T) {
	r := NewRoad(DefaultRoadParams(), 0)
	assert.Equal(t, []float64{0, -100, -200, -300, -400, -500, -600, -700, -800, -900}, r.Segments())
	assert.Equal(t, 1000.0, r.Params().Span())
}

func TestRoad_RecyclesPassedSegments(t *testing.T) {
	r := NewRoad(DefaultRoadParams(), 0)

	// segment at z=0 is passed once the vehicle is below z=-100
	moved := r.Update(-100.5)
	assert.Equal(t, 1, moved)
	assert.Equal(t, -100.5-1000+100, r.Segments()[0])
	assertRingInvariant(t, r, -100.5)
}

func TestRoad_InvariantOverLongDrive(t *testing.T) {
	r := NewRoad(DefaultRoadParams(), 0)
	vz := 0.0
	for range 5000 {
		vz -= 3.75
		r.Update(vz)
		assertRingInvariant(t, r, vz)
	}
}

func TestRoad_Reversing(t *testing.T) {
	r := NewRoad(DefaultRoadParams(), 0)
	vz := 0.0
	for range 2000 {
		vz += 1.5
		r.Update(vz)
		assertRingInvariant(t, r, vz)
	}
}

func TestRoad_StationaryIsNoop(t *testing.T) {
	r := NewRoad(DefaultRoadParams(), 0)
	before := append([]float64(nil), r.Segments()...)
	assert.Zero(t, r.Update(0))
	assert.Equal(t, before, r.Segments())
}

// Package world streams the road surface and roadside objects around the vehicle.
// The direction of travel is -Z: "ahead" means smaller Z.
package world

// RoadParams size the segment ring.
type RoadParams struct {
	Segments      int
	SegmentLength float64
}

// DefaultRoadParams returns a 1000 unit road in 100 unit segments.
func DefaultRoadParams() RoadParams {
	return RoadParams{Segments: 10, SegmentLength: 100}
}

// Span is the total length covered by the ring.
func (p RoadParams) Span() float64 {
	return float64(p.Segments) * p.SegmentLength
}

// Road is a fixed ring of segment Z positions recycled as the vehicle moves.
type Road struct {
	params RoadParams
	z      []float64
}

// NewRoad lays the ring out ahead of vehicleZ.
func NewRoad(params RoadParams, vehicleZ float64) *Road {
	r := &Road{params: params, z: make([]float64, params.Segments)}
	r.Reset(vehicleZ)
	return r
}

// Reset lays segment i at vehicleZ - i*SegmentLength.
func (r *Road) Reset(vehicleZ float64) {
	for i := range r.z {
		r.z[i] = vehicleZ - float64(i)*r.params.SegmentLength
	}
}

// Update relocates every segment the vehicle has passed to the front of the
// ring. A segment left further ahead than the ring span (vehicle reversing)
// is brought back under the vehicle. It returns the number of relocations.
func (r *Road) Update(vehicleZ float64) int {
	moved := 0
	front := vehicleZ - r.params.Span() + r.params.SegmentLength
	back := vehicleZ - r.params.Span()
	for i, z := range r.z {
		switch {
		case z-r.params.SegmentLength > vehicleZ:
			r.z[i] = front
			moved++
		case z < back:
			r.z[i] = vehicleZ
			moved++
		}
	}
	return moved
}

// Segments returns the segment Z positions. The slice is owned by the road.
func (r *Road) Segments() []float64 { return r.z }

// Params returns the ring sizing.
func (r *Road) Params() RoadParams { return r.params }

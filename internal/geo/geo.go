package geo

import (
	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/pursuitlab/roadchase/pkg/core"
)

// GROUND PLANE
// Positions are stored as planar XY geometry: world X maps to X and world Z
// maps to Y. No SRID is attached because the road is not georeferenced.

// PointFromVec converts a ground-plane position to a geom.Point.
func PointFromVec(v core.Vec2) geom.Point {
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: v.X, Y: v.Z}})
}

// VecFromPoint converts a geom.Point back to a ground-plane position.
// Empty points return the origin and false.
func VecFromPoint(p geom.Point) (core.Vec2, bool) {
	c, ok := p.Coordinates()
	if !ok {
		return core.Vec2{}, false
	}
	return core.Vec2{X: c.XY.X, Z: c.XY.Y}, true
}

// LineStringFromTrack builds a LineString from a vehicle track.
// Tracks with fewer than two points produce an empty LineString.
func LineStringFromTrack(track []core.Vec2) geom.LineString {
	if len(track) < 2 {
		return geom.LineString{}
	}
	flat := make([]float64, 0, len(track)*2)
	for _, p := range track {
		flat = append(flat, p.X, p.Z)
	}
	return geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
}

// TrackFromLineString is the inverse of LineStringFromTrack.
func TrackFromLineString(ls geom.LineString) []core.Vec2 {
	seq := ls.Coordinates()
	if seq.Length() == 0 {
		return nil
	}
	track := make([]core.Vec2, seq.Length())
	for i := 0; i < seq.Length(); i++ {
		xy := seq.GetXY(i)
		track[i] = core.Vec2{X: xy.X, Z: xy.Y}
	}
	return track
}

// TrackFromGeometry extracts a track from a stored geometry column.
// Anything other than a LineString yields nil.
func TrackFromGeometry(g geom.Geometry) []core.Vec2 {
	ls, ok := g.AsLineString()
	if !ok {
		return nil
	}
	return TrackFromLineString(ls)
}

// TrackLength sums the planar segment lengths of a track.
func TrackLength(track []core.Vec2) float64 {
	var total float64
	for i := 1; i < len(track); i++ {
		total += track[i-1].Dist(track[i])
	}
	return total
}

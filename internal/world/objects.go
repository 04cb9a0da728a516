package world

import (
	"math"

	"github.com/dhconnelly/rtreego"

	"github.com/pursuitlab/roadchase/internal/rng"
	"github.com/pursuitlab/roadchase/pkg/core"
)

// KindSpec is one entry of the weighted object table.
type KindSpec struct {
	Kind   core.ObjectKind
	Weight float64
	Radius float64
}

// FieldParams tune roadside object generation.
type FieldParams struct {
	MaxObjects    int
	SpawnInterval float64 // seconds
	RoadWidth     float64
	Shoulder      float64
	LateralSpread float64
	Lead          float64
	LeadSpread    float64
	TrailRemove   float64
	Kinds         []KindSpec
}

// DefaultFieldParams returns the reference object table and placement bands.
func DefaultFieldParams() FieldParams {
	return FieldParams{
		MaxObjects:    100,
		SpawnInterval: 0.5,
		RoadWidth:     20,
		Shoulder:      5,
		LateralSpread: 20,
		Lead:          100,
		LeadSpread:    50,
		TrailRemove:   100,
		Kinds: []KindSpec{
			{Kind: core.ObjectTree, Weight: 0.5, Radius: 3},
			{Kind: core.ObjectRock, Weight: 0.3, Radius: 2},
			{Kind: core.ObjectBillboard, Weight: 0.2, Radius: 2},
		},
	}
}

// Object is a roadside object slot.
type Object struct {
	Pos    core.Vec2
	Kind   core.ObjectKind
	Radius float64
	Live   bool

	slot   int
	bounds rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (o *Object) Bounds() rtreego.Rect {
	return o.bounds
}

// Field is a fixed-capacity set of roadside objects with a spatial index for
// obstacle queries.
type Field struct {
	params    FieldParams
	objects   []Object
	live      int
	acc       float64
	weights   []float64
	maxRadius float64
	src       rng.Source
	index     *rtreego.Rtree
}

// NewField allocates MaxObjects slots.
func NewField(params FieldParams, src rng.Source) *Field {
	f := &Field{
		params:  params,
		objects: make([]Object, params.MaxObjects),
		weights: make([]float64, len(params.Kinds)),
		src:     src,
	}
	for i, k := range params.Kinds {
		f.weights[i] = k.Weight
		f.maxRadius = math.Max(f.maxRadius, k.Radius)
	}
	f.Reset()
	return f
}

// Reset removes every object and restarts the generation clock.
func (f *Field) Reset() {
	for i := range f.objects {
		f.objects[i] = Object{slot: i}
	}
	f.live = 0
	f.acc = 0
	f.index = rtreego.NewTree(2, 25, 50)
}

// Update advances the generation clock by dt, generating one object per
// elapsed interval, then removes objects trailing the vehicle.
// It returns the number of objects generated and removed.
func (f *Field) Update(dt, vehicleZ float64) (generated, removed int) {
	if dt > 0 && f.params.SpawnInterval > 0 {
		f.acc += dt
		for f.acc >= f.params.SpawnInterval {
			f.acc -= f.params.SpawnInterval
			if f.Generate(vehicleZ) {
				generated++
			}
		}
	}
	removed = f.Cleanup(vehicleZ)
	return generated, removed
}

// Generate places one object ahead of vehicleZ. It is a no-op returning false
// when every slot is live.
func (f *Field) Generate(vehicleZ float64) bool {
	if f.live >= len(f.objects) || len(f.weights) == 0 {
		return false
	}
	slot := -1
	for i := range f.objects {
		if !f.objects[i].Live {
			slot = i
			break
		}
	}
	if slot < 0 {
		return false
	}

	k := rng.Weighted(f.src, f.weights)
	if k < 0 {
		return false
	}
	spec := f.params.Kinds[k]
	side := rng.Sign(f.src)
	lateral := f.params.RoadWidth/2 + f.params.Shoulder + f.src.Float64()*f.params.LateralSpread
	z := vehicleZ - f.params.Lead - f.src.Float64()*f.params.LeadSpread

	o := &f.objects[slot]
	o.Pos = core.Vec2{X: side * lateral, Z: z}
	o.Kind = spec.Kind
	o.Radius = spec.Radius
	o.Live = true
	o.bounds = rtreego.Point{o.Pos.X, o.Pos.Z}.ToRect(o.Radius)
	f.index.Insert(o)
	f.live++
	return true
}

// Cleanup removes objects more than TrailRemove behind vehicleZ.
func (f *Field) Cleanup(vehicleZ float64) int {
	removed := 0
	limit := vehicleZ + f.params.TrailRemove
	for i := range f.objects {
		o := &f.objects[i]
		if o.Live && o.Pos.Z > limit {
			f.index.Delete(o)
			o.Live = false
			f.live--
			removed++
		}
	}
	return removed
}

// Hits appends to out the slots of live objects overlapping a circle of the
// given radius at pos.
func (f *Field) Hits(pos core.Vec2, radius float64, out []int) []int {
	if f.live == 0 {
		return out
	}
	query := rtreego.Point{pos.X, pos.Z}.ToRect(radius + f.maxRadius)
	for _, s := range f.index.SearchIntersect(query) {
		o := s.(*Object)
		if o.Live && o.Pos.Dist(pos) < o.Radius+radius {
			out = append(out, o.slot)
		}
	}
	return out
}

// Live returns the number of live objects.
func (f *Field) Live() int { return f.live }

// Get returns slot i.
func (f *Field) Get(i int) *Object { return &f.objects[i] }

// Each calls fn for every live object in slot order.
func (f *Field) Each(fn func(i int, o *Object)) {
	for i := range f.objects {
		if f.objects[i].Live {
			fn(i, &f.objects[i])
		}
	}
}

// Params returns the generation parameters.
func (f *Field) Params() FieldParams { return f.params }

package snapshot

import "math"

// DiffPoint is a relative position of B with respect to A, expressed in A's
// VNB frame. Count is 1 for one-to-one pairs and the voxel occupancy for
// binned all-to-all output; it is always positive.
type DiffPoint struct {
	X, Y, Z float32
	Count   uint32
}

// Vec returns the point as an array.
func (p DiffPoint) Vec() [3]float32 {
	return [3]float32{p.X, p.Y, p.Z}
}

// Range3 is an axis-aligned bounding box.
type Range3 struct {
	Min [3]float32
	Max [3]float32
}

// Width returns Max-Min along axis i.
func (r Range3) Width(i int) float64 {
	return float64(r.Max[i]) - float64(r.Min[i])
}

// Centre returns the midpoint along axis i.
func (r Range3) Centre(i int) float64 {
	return (float64(r.Max[i]) + float64(r.Min[i])) / 2
}

// Stats summarises a diff set against a hard-body radius.
type Stats struct {
	// Count is the total weight of all points.
	Count uint64
	// Hits is the total weight of points within HBR of the origin.
	Hits    uint64
	Bounds  Range3
	MinMiss [3]float32
	MaxMiss [3]float32
	Pc      float64
	HBR     float64
}

// MinMissDistance is the norm of MinMiss.
func (s Stats) MinMissDistance() float64 {
	return norm(s.MinMiss)
}

// MaxMissDistance is the norm of MaxMiss.
func (s Stats) MaxMissDistance() float64 {
	return norm(s.MaxMiss)
}

func norm(v [3]float32) float64 {
	x, y, z := float64(v[0]), float64(v[1]), float64(v[2])
	return math.Sqrt(x*x + y*y + z*z)
}

// Vertex is a coloured point ready for a renderer.
type Vertex struct {
	Position [3]float32
	Color    [3]uint8
	Weight   uint32
}

// BinningParams controls the adaptive all-to-all voxel grid.
type BinningParams struct {
	// BinCount is the voxel budget per attempt.
	BinCount uint32 `json:"bin_count"`
	// InitialMultiplier scales the one-to-one bounds on the first attempt;
	// attempt k uses InitialMultiplier*k.
	InitialMultiplier float64 `json:"initial_multiplier"`
	// MaxTries bounds the number of overflowing attempts.
	MaxTries uint32 `json:"max_tries"`
}

// Output is the published result of one recompute.
type Output struct {
	Stats    Stats
	Vertices []Vertex
	AllToAll bool
	Binning  BinningParams
	HBR      float64
	RunID    string
}

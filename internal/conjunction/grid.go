package conjunction

import (
	"fmt"
	"math"

	"github.com/banshee-data/snapshot/internal/snapshot"
)

const (
	// MinAspect floors each grid axis to this fraction of the widest one,
	// so a flat one-to-one cloud still gets a usable thickness.
	MinAspect = 0.05
	// MinExtent (km) is the grid width used when every axis is degenerate.
	MinExtent = 1e-6
	// MaxBinCount caps the voxel budget of a single attempt.
	MaxBinCount = 64_000_000
)

// voxelGrid treats a flat slice of counters as a 3D grid of cubic voxels.
type voxelGrid struct {
	Origin [3]float64
	Step   float64
	Dims   [3]int

	length, area, volume int
}

// maxGridVolume bounds the voxel count of one grid. floor+1 sizing can
// overshoot the budget by a few slabs.
const maxGridVolume = 2 * MaxBinCount

// newVoxelGrid sizes a grid over bounds scaled by multiplier about their
// centre so that it holds roughly binCount cubic voxels. It fails with
// ErrInvalidGrid when the bounds are not finite or the grid would not fit
// in maxGridVolume voxels.
func newVoxelGrid(bounds snapshot.Range3, multiplier float64, binCount uint32) (*voxelGrid, error) {
	if binCount == 0 {
		return nil, fmt.Errorf("%w: zero voxel budget", ErrInvalidGrid)
	}
	if binCount > MaxBinCount {
		binCount = MaxBinCount
	}

	var w [3]float64
	largest := 0.0
	for i := 0; i < 3; i++ {
		w[i] = bounds.Width(i) * multiplier
		if !isFinite(w[i]) || !isFinite(bounds.Centre(i)) {
			return nil, fmt.Errorf("%w: axis %d bounds [%g, %g] x%g", ErrInvalidGrid, i, bounds.Min[i], bounds.Max[i], multiplier)
		}
		largest = math.Max(largest, w[i])
	}
	floor := math.Max(largest*MinAspect, MinExtent*multiplier)
	for i := 0; i < 3; i++ {
		w[i] = math.Max(w[i], floor)
	}

	step := math.Cbrt(w[0] * w[1] * w[2] / float64(binCount))
	if !isFinite(step) || step <= 0 {
		return nil, fmt.Errorf("%w: step %g for widths %v", ErrInvalidGrid, step, w)
	}

	g := &voxelGrid{Step: step}
	volume := 1.0
	for i := 0; i < 3; i++ {
		// floor+1 keeps a point lying exactly on the far edge inside.
		dim := math.Floor(w[i]/step) + 1
		volume *= dim
		if !isFinite(dim) || volume > maxGridVolume {
			return nil, fmt.Errorf("%w: %g voxels exceed %d", ErrInvalidGrid, volume, maxGridVolume)
		}
		g.Dims[i] = int(dim)
		g.Origin[i] = bounds.Centre(i) - dim*step/2
	}
	g.length = g.Dims[0]
	g.area = g.Dims[0] * g.Dims[1]
	g.volume = g.area * g.Dims[2]
	return g, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Idx returns the flat index of the voxel containing p, and false if p
// lies outside the grid on any axis.
func (g *voxelGrid) Idx(p [3]float64) (int, bool) {
	var c [3]int
	for i := 0; i < 3; i++ {
		f := math.Floor((p[i] - g.Origin[i]) / g.Step)
		if !(f >= 0 && f < float64(g.Dims[i])) {
			return -1, false
		}
		c[i] = int(f)
	}
	return c[0] + c[1]*g.length + c[2]*g.area, true
}

// Corner returns the minimum corner of voxel idx.
func (g *voxelGrid) Corner(idx int) [3]float32 {
	x := idx % g.length
	y := (idx % g.area) / g.length
	z := idx / g.area
	return [3]float32{
		float32(g.Origin[0] + float64(x)*g.Step),
		float32(g.Origin[1] + float64(y)*g.Step),
		float32(g.Origin[2] + float64(z)*g.Step),
	}
}

// Volume returns the number of voxels.
func (g *voxelGrid) Volume() int {
	return g.volume
}

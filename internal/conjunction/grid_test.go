package conjunction

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/snapshot/internal/snapshot"
)

func mustGrid(t *testing.T, bounds snapshot.Range3, multiplier float64, binCount uint32) *voxelGrid {
	t.Helper()
	g, err := newVoxelGrid(bounds, multiplier, binCount)
	if err != nil {
		t.Fatalf("newVoxelGrid() error = %v", err)
	}
	return g
}

func TestVoxelGrid_SizedToBudget(t *testing.T) {
	bounds := snapshot.Range3{Min: [3]float32{-1, -2, -0.5}, Max: [3]float32{1, 2, 0.5}}

	for _, budget := range []uint32{64, 1000, 1_000_000} {
		g := mustGrid(t, bounds, 1.5, budget)
		vol := float64(g.Volume())
		// floor+1 per axis can add at most one slab per axis.
		if vol < float64(budget) || vol > float64(budget)*2.5 {
			t.Errorf("budget %d: volume %v out of expected range (dims %v)", budget, vol, g.Dims)
		}
		for i := 0; i < 3; i++ {
			extent := float64(g.Dims[i]) * g.Step
			if extent < bounds.Width(i)*1.5 {
				t.Errorf("budget %d axis %d: extent %v smaller than scaled width %v", budget, i, extent, bounds.Width(i)*1.5)
			}
		}
	}
}

func TestVoxelGrid_IdxAndCorner(t *testing.T) {
	bounds := snapshot.Range3{Min: [3]float32{0, 0, 0}, Max: [3]float32{4, 4, 4}}
	g := mustGrid(t, bounds, 1, 64)

	idx, ok := g.Idx([3]float64{2, 2, 2})
	if !ok {
		t.Fatal("centre should be inside the grid")
	}
	c := g.Corner(idx)
	for i := 0; i < 3; i++ {
		lo := float64(c[i])
		if 2 < lo-1e-6 || 2 >= lo+g.Step+1e-6 {
			t.Errorf("axis %d: point 2 not within voxel [%v, %v)", i, lo, lo+g.Step)
		}
	}

	// Far edge of the bounds stays inside.
	if _, ok := g.Idx([3]float64{4, 4, 4}); !ok {
		t.Error("max corner of bounds should be inside the grid")
	}
	if _, ok := g.Idx([3]float64{0, 0, 0}); !ok {
		t.Error("min corner of bounds should be inside the grid")
	}

	outside := [][3]float64{
		{100, 2, 2},
		{2, -100, 2},
		{2, 2, math.NaN()},
		{math.Inf(1), 0, 0},
	}
	for _, p := range outside {
		if _, ok := g.Idx(p); ok {
			t.Errorf("expected %v outside the grid", p)
		}
	}
}

func TestVoxelGrid_CornerCoversAllIndices(t *testing.T) {
	bounds := snapshot.Range3{Min: [3]float32{-1, -1, -1}, Max: [3]float32{1, 1, 1}}
	g := mustGrid(t, bounds, 1, 27)

	for idx := 0; idx < g.Volume(); idx++ {
		c := g.Corner(idx)
		// Nudge into the voxel interior to avoid edge rounding.
		p := [3]float64{float64(c[0]) + g.Step/2, float64(c[1]) + g.Step/2, float64(c[2]) + g.Step/2}
		got, ok := g.Idx(p)
		if !ok || got != idx {
			t.Fatalf("corner of %d maps back to %d (ok=%v)", idx, got, ok)
		}
	}
}

func TestVoxelGrid_Degenerate(t *testing.T) {
	// A single repeated diff: every width is zero.
	bounds := snapshot.Range3{Min: [3]float32{3, 3, 3}, Max: [3]float32{3, 3, 3}}
	g := mustGrid(t, bounds, 1.5, 1000)

	if g.Step <= 0 || math.IsNaN(g.Step) {
		t.Fatalf("invalid step %v", g.Step)
	}
	if _, ok := g.Idx([3]float64{3, 3, 3}); !ok {
		t.Error("the only diff must fall inside the grid")
	}

	// A flat cloud: one axis degenerate is floored to a fraction of the widest.
	flat := snapshot.Range3{Min: [3]float32{-10, 0, -10}, Max: [3]float32{10, 0, 10}}
	g = mustGrid(t, flat, 1, 1000)
	if ext := float64(g.Dims[1]) * g.Step; ext < 20*MinAspect {
		t.Errorf("degenerate axis extent %v below floor %v", ext, 20*MinAspect)
	}
	if g.Volume() > 4000 {
		t.Errorf("flat cloud blew the voxel budget: %d", g.Volume())
	}
}

func TestVoxelGrid_Invalid(t *testing.T) {
	inf := float32(math.Inf(1))
	nan := float32(math.NaN())
	unit := snapshot.Range3{Min: [3]float32{-1, -1, -1}, Max: [3]float32{1, 1, 1}}

	cases := []struct {
		name       string
		bounds     snapshot.Range3
		multiplier float64
		budget     uint32
	}{
		{"infinite max", snapshot.Range3{Min: [3]float32{0, 0, 0}, Max: [3]float32{1, inf, 1}}, 1.5, 1000},
		{"infinite min", snapshot.Range3{Min: [3]float32{-inf, 0, 0}, Max: [3]float32{1, 1, 1}}, 1.5, 1000},
		{"both infinite", snapshot.Range3{Min: [3]float32{0, 0, -inf}, Max: [3]float32{1, 1, inf}}, 1.5, 1000},
		{"nan bound", snapshot.Range3{Min: [3]float32{0, nan, 0}, Max: [3]float32{1, 1, 1}}, 1.5, 1000},
		{"infinite multiplier", unit, math.Inf(1), 1000},
		{"zero multiplier", unit, 0, 1000},
		{"zero budget", unit, 1, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := newVoxelGrid(tc.bounds, tc.multiplier, tc.budget)
			if !errors.Is(err, ErrInvalidGrid) {
				t.Fatalf("newVoxelGrid() = %+v, %v; want ErrInvalidGrid", g, err)
			}
		})
	}
}

func TestVoxelGrid_VolumeCapped(t *testing.T) {
	// A huge but finite spread sized to the largest budget stays within
	// the volume cap.
	wide := snapshot.Range3{Min: [3]float32{-3e38, -3e38, -3e38}, Max: [3]float32{3e38, 3e38, 3e38}}
	g := mustGrid(t, wide, 1, math.MaxUint32)
	if g.Volume() > maxGridVolume {
		t.Errorf("volume %d exceeds cap %d", g.Volume(), maxGridVolume)
	}
	if g.Volume() < MaxBinCount {
		t.Errorf("volume %d below clamped budget %d", g.Volume(), MaxBinCount)
	}
}

package conjunction

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/snapshot/internal/snapshot"
)

func TestCalcStats(t *testing.T) {
	points := []snapshot.DiffPoint{
		{X: 0.01, Y: 0, Z: 0, Count: 3},    // hit at hbr 0.02
		{X: -1, Y: 2, Z: 0.5, Count: 1},    // miss, farthest
		{X: 0.5, Y: -0.5, Z: -2, Count: 6}, // miss
		{X: 99, Y: 99, Z: 99, Count: 0},    // ignored
	}

	got, err := CalcStats(points, 0.02)
	if err != nil {
		t.Fatalf("CalcStats() error = %v", err)
	}

	want := snapshot.Stats{
		Count: 10,
		Hits:  3,
		Bounds: snapshot.Range3{
			Min: [3]float32{-1, -0.5, -2},
			Max: [3]float32{0.5, 2, 0.5},
		},
		MinMiss: [3]float32{0.01, 0, 0},
		MaxMiss: [3]float32{-1, 2, 0.5},
		Pc:      0.3,
		HBR:     0.02,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CalcStats mismatch (-want +got):\n%s", diff)
	}
}

func TestCalcStats_Empty(t *testing.T) {
	cases := map[string][]snapshot.DiffPoint{
		"nil":         nil,
		"zero weight": {{X: 1, Count: 0}},
	}
	for name, pts := range cases {
		t.Run(name, func(t *testing.T) {
			st, err := CalcStats(pts, 1)
			if !errors.Is(err, ErrEmptyDiffSet) {
				t.Fatalf("expected ErrEmptyDiffSet, got %v", err)
			}
			if st.Pc != 0 || st.Count != 0 {
				t.Errorf("expected zero stats, got %+v", st)
			}
		})
	}
}

func TestCalcStats_PcMonotoneInHBR(t *testing.T) {
	var pts []snapshot.DiffPoint
	for i := 0; i < 50; i++ {
		f := float32(i) / 10
		pts = append(pts, snapshot.DiffPoint{X: f, Y: -f / 2, Z: f / 3, Count: uint32(i%4 + 1)})
	}

	prev := -1.0
	for _, hbr := range []float64{0, 0.05, 0.1, 0.5, 1, 2, 4, 8, 100} {
		st, err := CalcStats(pts, hbr)
		if err != nil {
			t.Fatalf("CalcStats(%v) error = %v", hbr, err)
		}
		if st.Pc < prev {
			t.Errorf("Pc decreased at hbr=%v: %v < %v", hbr, st.Pc, prev)
		}
		if st.Pc < 0 || st.Pc > 1 {
			t.Errorf("Pc out of range at hbr=%v: %v", hbr, st.Pc)
		}
		prev = st.Pc
	}
	if prev != 1 {
		t.Errorf("expected Pc 1 for a huge radius, got %v", prev)
	}
}

func TestVertices(t *testing.T) {
	pts := []snapshot.DiffPoint{
		{X: 0, Y: 0.1, Z: 0, Count: 2},
		{X: 3, Y: 0, Z: 0, Count: 5},
		{X: 0, Y: 0, Z: 0, Count: 0},
	}

	got := Vertices(pts, 0.5)
	want := []snapshot.Vertex{
		{Position: [3]float32{0, 0.1, 0}, Color: HitColor, Weight: 2},
		{Position: [3]float32{3, 0, 0}, Color: MissColor, Weight: 5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Vertices mismatch (-want +got):\n%s", diff)
	}
}

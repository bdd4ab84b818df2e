package conjunction

import (
	"math"

	"github.com/banshee-data/snapshot/internal/snapshot"
)

// Vertex colours for points inside and outside the hard-body radius.
var (
	HitColor  = [3]uint8{255, 64, 64}
	MissColor = [3]uint8{64, 160, 255}
)

func dist2(p snapshot.DiffPoint) float64 {
	x, y, z := float64(p.X), float64(p.Y), float64(p.Z)
	return x*x + y*y + z*z
}

// CalcStats summarises points in one pass. Each point contributes its
// Count to the total; points within hbr of the origin also count as hits.
// Zero-count points are ignored. An empty or zero-weight set returns
// ErrEmptyDiffSet.
func CalcStats(points []snapshot.DiffPoint, hbr float64) (snapshot.Stats, error) {
	st := snapshot.Stats{HBR: hbr}
	hbr2 := hbr * hbr

	minD, maxD := math.Inf(1), math.Inf(-1)
	first := true
	for _, p := range points {
		if p.Count == 0 {
			continue
		}
		v := p.Vec()
		if first {
			st.Bounds.Min = v
			st.Bounds.Max = v
			first = false
		} else {
			for i := 0; i < 3; i++ {
				if v[i] < st.Bounds.Min[i] {
					st.Bounds.Min[i] = v[i]
				}
				if v[i] > st.Bounds.Max[i] {
					st.Bounds.Max[i] = v[i]
				}
			}
		}

		d2 := dist2(p)
		if d2 < minD {
			minD = d2
			st.MinMiss = v
		}
		if d2 > maxD {
			maxD = d2
			st.MaxMiss = v
		}

		st.Count += uint64(p.Count)
		if d2 <= hbr2 {
			st.Hits += uint64(p.Count)
		}
	}

	if st.Count == 0 {
		return snapshot.Stats{HBR: hbr}, ErrEmptyDiffSet
	}
	st.Pc = float64(st.Hits) / float64(st.Count)
	return st, nil
}

// Vertices colours each point by whether it falls within hbr.
func Vertices(points []snapshot.DiffPoint, hbr float64) []snapshot.Vertex {
	hbr2 := hbr * hbr
	out := make([]snapshot.Vertex, 0, len(points))
	for _, p := range points {
		if p.Count == 0 {
			continue
		}
		color := MissColor
		if dist2(p) <= hbr2 {
			color = HitColor
		}
		out = append(out, snapshot.Vertex{
			Position: p.Vec(),
			Color:    color,
			Weight:   p.Count,
		})
	}
	return out
}

// Package refframe builds the VNB (velocity, normal, binormal) reference
// frame of an orbiting object and rotates relative vectors into it.
package refframe

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ParallelTolerance is the smallest |unit(r) x unit(v)| accepted before the
// frame is considered degenerate.
const ParallelTolerance = 1e-12

var (
	ErrZeroPosition = errors.New("refframe: zero position vector")
	ErrZeroVelocity = errors.New("refframe: zero velocity vector")
	ErrParallel     = errors.New("refframe: position and velocity are parallel")
	ErrNonFinite    = errors.New("refframe: non-finite state component")
)

func finite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Basis is a rotation matrix stored as rows V, N, B. Rotate maps an
// inertial vector to (along-track, normal, binormal) components.
type Basis [3]r3.Vec

// Row indices into Basis.
const (
	AxisV = 0
	AxisN = 1
	AxisB = 2
)

// VNB builds the frame for a state: V is the unit velocity, N the unit of
// r x v, and B completes the right-handed set as v x n. It never returns a
// basis containing NaN; degenerate inputs yield an error instead.
func VNB(pos, vel r3.Vec) (Basis, error) {
	if !finite(pos) || !finite(vel) {
		return Basis{}, ErrNonFinite
	}
	if r3.Norm(pos) == 0 {
		return Basis{}, ErrZeroPosition
	}
	if r3.Norm(vel) == 0 {
		return Basis{}, ErrZeroVelocity
	}

	r := r3.Unit(pos)
	v := r3.Unit(vel)
	rxv := r3.Cross(r, v)
	if r3.Norm(rxv) < ParallelTolerance {
		return Basis{}, ErrParallel
	}
	n := r3.Unit(rxv)
	b := r3.Unit(r3.Cross(v, n))

	if !finite(v) || !finite(n) || !finite(b) {
		return Basis{}, ErrNonFinite
	}
	return Basis{v, n, b}, nil
}

// Rotate returns the components of d along each basis row.
func (m Basis) Rotate(d r3.Vec) r3.Vec {
	return r3.Vec{
		X: r3.Dot(m[AxisV], d),
		Y: r3.Dot(m[AxisN], d),
		Z: r3.Dot(m[AxisB], d),
	}
}

// Dense returns the basis as a 3x3 row-major matrix.
func (m Basis) Dense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		m[0].X, m[0].Y, m[0].Z,
		m[1].X, m[1].Y, m[1].Z,
		m[2].X, m[2].Y, m[2].Z,
	})
}

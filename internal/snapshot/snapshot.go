// Package snapshot holds the per-epoch working set of a conjunction: the
// immutable inputs derived from two objects' samples, memoised diff sets,
// and the most recently published output.
package snapshot

import (
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/snapshot/internal/refframe"
	"github.com/banshee-data/snapshot/internal/states"
)

// SnapshotData is built once per epoch group. Its input fields are never
// modified after New returns; diff caches fill lazily under an internal
// lock and outputs are swapped in atomically by Publish.
type SnapshotData struct {
	Epoch float64
	IDA   uint16
	IDB   uint16

	// BasesA[i] is the VNB frame of A sample i; it is only meaningful
	// where ValidA[i] is true.
	BasesA []refframe.Basis
	ValidA []bool
	PosA   []r3.Vec
	PosB   []r3.Vec

	// Degenerate counts A samples whose frame could not be built.
	Degenerate int

	mu          sync.Mutex
	oneToOne    []DiffPoint
	hasOneToOne bool
	allToAll    []DiffPoint
	allToAllKey BinningParams
	hasAllToAll bool

	out atomic.Pointer[Output]
}

// New builds the inputs for one epoch group, computing A's VNB frame per
// sample.
func New(g states.EpochGroup) *SnapshotData {
	d := &SnapshotData{
		Epoch:  g.Epoch,
		IDA:    g.IDA,
		IDB:    g.IDB,
		BasesA: make([]refframe.Basis, len(g.A)),
		ValidA: make([]bool, len(g.A)),
		PosA:   make([]r3.Vec, len(g.A)),
		PosB:   make([]r3.Vec, len(g.B)),
	}
	for i, s := range g.A {
		d.PosA[i] = s.Position
		basis, err := refframe.VNB(s.Position, s.Velocity)
		if err != nil {
			d.Degenerate++
			continue
		}
		d.BasesA[i] = basis
		d.ValidA[i] = true
	}
	for i, s := range g.B {
		d.PosB[i] = s.Position
	}
	return d
}

// SamplesA returns the number of A samples.
func (d *SnapshotData) SamplesA() int { return len(d.PosA) }

// SamplesB returns the number of B samples.
func (d *SnapshotData) SamplesB() int { return len(d.PosB) }

// OneToOne returns the memoised one-to-one diff set, running compute on
// the first call. Errors are not cached.
func (d *SnapshotData) OneToOne(compute func() ([]DiffPoint, error)) ([]DiffPoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hasOneToOne {
		return d.oneToOne, nil
	}
	pts, err := compute()
	if err != nil {
		return nil, err
	}
	d.oneToOne = pts
	d.hasOneToOne = true
	return pts, nil
}

// AllToAll returns the memoised all-to-all diff set for the given binning
// parameters, running compute when the parameters differ from the cached
// set. Only the most recent parameter set is kept.
func (d *SnapshotData) AllToAll(key BinningParams, compute func() ([]DiffPoint, error)) ([]DiffPoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hasAllToAll && d.allToAllKey == key {
		return d.allToAll, nil
	}
	pts, err := compute()
	if err != nil {
		return nil, err
	}
	d.allToAll = pts
	d.allToAllKey = key
	d.hasAllToAll = true
	return pts, nil
}

// Publish replaces the visible output. Readers see either the previous or
// the new output, never a mix.
func (d *SnapshotData) Publish(out *Output) {
	d.out.Store(out)
}

// Output returns the last published output, or nil.
func (d *SnapshotData) Output() *Output {
	return d.out.Load()
}

// Stats returns the published stats and whether any output exists.
func (d *SnapshotData) Stats() (Stats, bool) {
	out := d.out.Load()
	if out == nil {
		return Stats{}, false
	}
	return out.Stats, true
}

// Vertices returns the published vertices. The slice must not be modified.
func (d *SnapshotData) Vertices() []Vertex {
	out := d.out.Load()
	if out == nil {
		return nil
	}
	return out.Vertices
}

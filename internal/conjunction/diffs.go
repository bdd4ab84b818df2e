package conjunction

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/snapshot/internal/snapshot"
)

// Binning attempt outcomes reported to an Observer.
const (
	AttemptOK       = "ok"
	AttemptOverflow = "overflow"
	AttemptCanceled = "canceled"
	AttemptInvalid  = "invalid"
)

// Attempt records one all-to-all binning attempt.
type Attempt struct {
	K          uint32
	Multiplier float64
	Dims       [3]int
	Step       float64
	Err        error
}

// oneToOne pairs A[i] with B[i] for every i with a usable frame.
func oneToOne(d *snapshot.SnapshotData) []snapshot.DiffPoint {
	n := min(len(d.PosA), len(d.PosB))
	out := make([]snapshot.DiffPoint, 0, n)
	for i := 0; i < n; i++ {
		if !d.ValidA[i] {
			continue
		}
		v := d.BasesA[i].Rotate(r3.Sub(d.PosB[i], d.PosA[i]))
		out = append(out, snapshot.DiffPoint{
			X:     float32(v.X),
			Y:     float32(v.Y),
			Z:     float32(v.Z),
			Count: 1,
		})
	}
	return out
}

// OneToOne returns the memoised one-to-one diff set.
func (u *UnitOfWork) OneToOne() ([]snapshot.DiffPoint, error) {
	return u.data.OneToOne(func() ([]snapshot.DiffPoint, error) {
		return oneToOne(u.data), nil
	})
}

// AllToAll returns the memoised binned all-pairs diff set for the unit's
// binning parameters.
func (u *UnitOfWork) AllToAll() ([]snapshot.DiffPoint, error) {
	seed, err := u.OneToOne()
	if err != nil {
		return nil, err
	}
	return u.data.AllToAll(u.opts.Binning, func() ([]snapshot.DiffPoint, error) {
		return u.binAllToAll(seed)
	})
}

// binAllToAll sizes the grid from the one-to-one bounds and widens it on
// every overflow until MaxTries attempts have failed.
func (u *UnitOfWork) binAllToAll(seed []snapshot.DiffPoint) ([]snapshot.DiffPoint, error) {
	seedStats, err := CalcStats(seed, u.opts.HBR)
	if err != nil {
		return nil, fmt.Errorf("all-to-all bounds: %w", err)
	}

	p := u.opts.Binning
	for k := uint32(1); k <= p.MaxTries; k++ {
		if err := u.checkCanceled(); err != nil {
			return nil, err
		}

		mult := p.InitialMultiplier * float64(k)
		grid, err := newVoxelGrid(seedStats.Bounds, mult, p.BinCount)
		if err != nil {
			u.attempts = append(u.attempts, Attempt{K: k, Multiplier: mult, Err: err})
			u.observe(AttemptInvalid)
			return nil, fmt.Errorf("all-to-all attempt %d: %w", k, err)
		}
		counts, err := u.fill(grid, k)

		a := Attempt{K: k, Multiplier: mult, Dims: grid.Dims, Step: grid.Step, Err: err}
		u.attempts = append(u.attempts, a)

		switch {
		case err == nil:
			u.observe(AttemptOK)
			u.logf("[Conjunction] %d/%d all-to-all binned on attempt %d (x%.2f, %dx%dx%d, step %.3g)",
				u.data.IDA, u.data.IDB, k, mult, grid.Dims[0], grid.Dims[1], grid.Dims[2], grid.Step)
			return collect(grid, counts), nil
		case isCanceled(err):
			u.observe(AttemptCanceled)
			return nil, err
		default:
			u.observe(AttemptOverflow)
			u.throttle.Logf("[Conjunction] %d/%d attempt %d/%d overflowed at x%.2f, widening",
				u.data.IDA, u.data.IDB, k, p.MaxTries, mult)
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, p.MaxTries, ErrGridOverflow)
}

// fill bins every (a, b) pair into grid, parallel over A rows. Any pair
// outside the grid aborts the attempt.
func (u *UnitOfWork) fill(grid *voxelGrid, k uint32) ([]uint32, error) {
	d := u.data
	counts := make([]uint32, grid.Volume())

	var (
		stop     atomic.Bool
		rowsDone atomic.Int64
	)
	total := len(d.PosA)
	u.opts.Progress.Set(func() string {
		return fmt.Sprintf("Binning %d/%d: attempt %d, %d/%d rows",
			d.IDA, d.IDB, k, rowsDone.Load(), total)
	})

	var g errgroup.Group
	g.SetLimit(u.opts.Workers)
	for a := range d.PosA {
		if stop.Load() {
			break
		}
		if !d.ValidA[a] {
			rowsDone.Add(1)
			continue
		}
		g.Go(func() error {
			if stop.Load() {
				return nil
			}
			if err := u.checkCanceled(); err != nil {
				stop.Store(true)
				return err
			}
			basis := d.BasesA[a]
			origin := d.PosA[a]
			for _, pb := range d.PosB {
				v := basis.Rotate(r3.Sub(pb, origin))
				idx, ok := grid.Idx([3]float64{v.X, v.Y, v.Z})
				if !ok {
					stop.Store(true)
					return ErrGridOverflow
				}
				atomic.AddUint32(&counts[idx], 1)
			}
			rowsDone.Add(1)
			return nil
		})
	}
	err := g.Wait()

	// Cancellation wins over an overflow seen by another row.
	if cerr := u.checkCanceled(); cerr != nil {
		return nil, cerr
	}
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// collect turns non-empty voxels into diff points at the voxel corner, in
// grid index order.
func collect(grid *voxelGrid, counts []uint32) []snapshot.DiffPoint {
	var out []snapshot.DiffPoint
	for idx, c := range counts {
		if c == 0 {
			continue
		}
		v := grid.Corner(idx)
		out = append(out, snapshot.DiffPoint{X: v[0], Y: v[1], Z: v[2], Count: c})
	}
	return out
}

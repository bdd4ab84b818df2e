package conjunction

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/banshee-data/snapshot/internal/monitoring"
	"github.com/banshee-data/snapshot/internal/progress"
	"github.com/banshee-data/snapshot/internal/snapshot"
)

// BinningParams controls the adaptive all-to-all voxel grid.
type BinningParams = snapshot.BinningParams

// DefaultBinning returns the stock binning parameters.
func DefaultBinning() BinningParams {
	return BinningParams{BinCount: 1_000_000, InitialMultiplier: 1.5, MaxTries: 5}
}

// Observer receives one call per all-to-all binning attempt with one of
// AttemptOK, AttemptOverflow, AttemptCanceled or AttemptInvalid.
type Observer interface {
	BinningAttempt(result string)
}

// Options configures a UnitOfWork.
type Options struct {
	// AllToAll selects binned all-pairs diffs instead of index pairs.
	AllToAll bool
	// HBR is the hard-body radius in km.
	HBR     float64
	Binning BinningParams
	// Progress is optional.
	Progress *progress.Sink
	// Canceled is polled at every cooperative checkpoint. A non-nil return
	// stops the computation with ErrCanceled.
	Canceled func() error
	// Workers bounds the all-to-all goroutines; 0 uses GOMAXPROCS.
	Workers int
	// Logger is optional; if nil, uses log.Default()
	Logger *log.Logger
	// Observer is optional.
	Observer Observer
}

// UnitOfWork computes and stages the outputs for one snapshot. Results are
// only visible to readers of the snapshot after Commit.
type UnitOfWork struct {
	data     *snapshot.SnapshotData
	opts     Options
	throttle *monitoring.Throttle

	attempts []Attempt
	points   []snapshot.DiffPoint
	stats    snapshot.Stats
	hasDiffs bool
	vertices []snapshot.Vertex
	hasVerts bool
}

// NewUnitOfWork prepares a computation over data. Zero binning fields take
// their DefaultBinning values.
func NewUnitOfWork(data *snapshot.SnapshotData, opts Options) *UnitOfWork {
	def := DefaultBinning()
	if opts.Binning.BinCount == 0 {
		opts.Binning.BinCount = def.BinCount
	}
	if opts.Binning.BinCount > MaxBinCount {
		opts.Binning.BinCount = MaxBinCount
	}
	if opts.Binning.InitialMultiplier <= 0 {
		opts.Binning.InitialMultiplier = def.InitialMultiplier
	}
	if opts.Binning.MaxTries == 0 {
		opts.Binning.MaxTries = def.MaxTries
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &UnitOfWork{
		data:     data,
		opts:     opts,
		throttle: monitoring.NewThrottle(2*time.Second, 3),
	}
}

// Data returns the snapshot this unit works on.
func (u *UnitOfWork) Data() *snapshot.SnapshotData { return u.data }

// Attempts returns the binning attempts made by this unit.
func (u *UnitOfWork) Attempts() []Attempt { return u.attempts }

// CalcDiffs builds the diff set for the selected mode and stages its
// statistics. Repeated calls reuse the snapshot's diff caches.
func (u *UnitOfWork) CalcDiffs() (snapshot.Stats, error) {
	if err := u.checkCanceled(); err != nil {
		return snapshot.Stats{}, err
	}

	var (
		pts []snapshot.DiffPoint
		err error
	)
	if u.opts.AllToAll {
		pts, err = u.AllToAll()
	} else {
		pts, err = u.OneToOne()
	}
	if err != nil {
		return snapshot.Stats{}, err
	}

	st, err := CalcStats(pts, u.opts.HBR)
	if err != nil {
		return snapshot.Stats{}, err
	}
	u.points = pts
	u.stats = st
	u.hasDiffs = true
	u.hasVerts = false
	return st, nil
}

// CalcOutputs colours the staged diff set. CalcDiffs must have succeeded.
func (u *UnitOfWork) CalcOutputs() ([]snapshot.Vertex, error) {
	if !u.hasDiffs {
		return nil, fmt.Errorf("outputs: %w", ErrNotReady)
	}
	if err := u.checkCanceled(); err != nil {
		return nil, err
	}
	u.vertices = Vertices(u.points, u.opts.HBR)
	u.hasVerts = true
	return u.vertices, nil
}

// Commit publishes the staged stats and vertices on the snapshot.
func (u *UnitOfWork) Commit(runID string) (*snapshot.Output, error) {
	if !u.hasDiffs || !u.hasVerts {
		return nil, fmt.Errorf("commit: %w", ErrNotReady)
	}
	out := &snapshot.Output{
		Stats:    u.stats,
		Vertices: u.vertices,
		AllToAll: u.opts.AllToAll,
		Binning:  u.opts.Binning,
		HBR:      u.opts.HBR,
		RunID:    runID,
	}
	u.data.Publish(out)
	return out, nil
}

func (u *UnitOfWork) checkCanceled() error {
	if u.opts.Canceled == nil {
		return nil
	}
	err := u.opts.Canceled()
	if err == nil || errors.Is(err, ErrCanceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrCanceled, err)
}

func isCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

func (u *UnitOfWork) observe(result string) {
	if u.opts.Observer != nil {
		u.opts.Observer.BinningAttempt(result)
	}
}

func (u *UnitOfWork) logf(format string, v ...interface{}) {
	u.opts.Logger.Printf(format, v...)
}

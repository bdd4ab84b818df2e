// Package filemanager orchestrates loading state files and recomputing the
// selected snapshot. Every setter returns immediately; requests are
// debounced with a version counter so only the newest one runs, and a run
// that has been superseded stops at its next checkpoint.
package filemanager

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/snapshot/internal/conjunction"
	"github.com/banshee-data/snapshot/internal/fsutil"
	"github.com/banshee-data/snapshot/internal/metrics"
	"github.com/banshee-data/snapshot/internal/progress"
	"github.com/banshee-data/snapshot/internal/snapshot"
	"github.com/banshee-data/snapshot/internal/states"
)

var (
	// ErrNoEpochs means the loaded records contained no epoch with exactly
	// two objects.
	ErrNoEpochs = errors.New("filemanager: no epochs with exactly two objects")
	// ErrCanceled is returned at a checkpoint once a newer request exists.
	ErrCanceled = conjunction.ErrCanceled
	// ErrNoFiles means a run was requested before any input was set.
	ErrNoFiles = errors.New("filemanager: no input files")
)

// Config holds the initial settings.
type Config struct {
	Files      []string
	EpochIndex uint32
	AllToAll   bool
	// HBR is the hard-body radius in km.
	HBR     float64
	Binning conjunction.BinningParams
	// Workers bounds all-to-all parallelism; 0 uses GOMAXPROCS.
	Workers int
	// Logger is optional; if nil, uses log.Default()
	Logger *log.Logger
}

// Option configures optional collaborators.
type Option func(*FileManager)

// WithFileSystem reads inputs through fs instead of the OS.
func WithFileSystem(fs fsutil.FileSystem) Option {
	return func(fm *FileManager) { fm.fs = fs }
}

// WithMetrics records run outcomes on p.
func WithMetrics(p *metrics.Pipeline) Option {
	return func(fm *FileManager) { fm.metrics = p }
}

// WithProgress reports status through sink.
func WithProgress(sink *progress.Sink) Option {
	return func(fm *FileManager) { fm.progress = sink }
}

// WithRunIDs overrides the run id generator.
func WithRunIDs(next func() string) Option {
	return func(fm *FileManager) { fm.newRunID = next }
}

// Settings is a copy of the current configuration axes.
type Settings struct {
	Files      []string                  `json:"files"`
	EpochIndex uint32                    `json:"epoch_index"`
	AllToAll   bool                      `json:"all_to_all"`
	HBR        float64                   `json:"hbr"`
	Binning    conjunction.BinningParams `json:"binning"`
}

// FileManager owns the loaded snapshots and serialises recomputes.
type FileManager struct {
	logger   *log.Logger
	fs       fsutil.FileSystem
	metrics  *metrics.Pipeline
	progress *progress.Sink
	registry *Registry
	newRunID func() string
	workers  int

	filesMu  sync.Mutex
	files    []string
	filesGen uint64

	epochMu    sync.Mutex
	epochIndex uint32

	modeMu   sync.Mutex
	allToAll bool

	hbrMu sync.Mutex
	hbr   float64

	binMu   sync.Mutex
	binning conjunction.BinningParams

	snapMu    sync.RWMutex
	snapshots []*snapshot.SnapshotData
	epochs    []float64
	loadedGen uint64

	version    atomic.Uint64
	pipelineMu sync.Mutex
	running    atomic.Bool

	publishMu sync.Mutex
	current   atomic.Pointer[snapshot.SnapshotData]

	// reqMu orders wg.Add in request against Close.
	reqMu  sync.Mutex
	closed bool
	wg     sync.WaitGroup

	errMu   sync.Mutex
	lastErr error
}

// New creates a FileManager. Nothing is loaded until Reload or a setter
// issues the first request.
func New(cfg Config, opts ...Option) *FileManager {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	binning := cfg.Binning
	if binning == (conjunction.BinningParams{}) {
		binning = conjunction.DefaultBinning()
	}
	fm := &FileManager{
		logger:     logger,
		fs:         fsutil.OSFileSystem{},
		progress:   progress.NewSink(),
		registry:   NewRegistry(),
		newRunID:   func() string { return uuid.New().String() },
		workers:    cfg.Workers,
		files:      append([]string(nil), cfg.Files...),
		filesGen:   1,
		epochIndex: cfg.EpochIndex,
		allToAll:   cfg.AllToAll,
		hbr:        cfg.HBR,
		binning:    binning,
	}
	for _, opt := range opts {
		opt(fm)
	}
	return fm
}

// SetFiles replaces the input files and schedules a reload.
func (fm *FileManager) SetFiles(paths []string) {
	fm.filesMu.Lock()
	fm.files = append([]string(nil), paths...)
	fm.filesGen++
	fm.filesMu.Unlock()
	fm.request()
}

// Reload re-reads the current input files.
func (fm *FileManager) Reload() {
	fm.filesMu.Lock()
	fm.filesGen++
	fm.filesMu.Unlock()
	fm.request()
}

// SetEpochIndex selects the epoch to compute. Out-of-range indices are
// clamped when the run executes.
func (fm *FileManager) SetEpochIndex(i uint32) {
	fm.epochMu.Lock()
	fm.epochIndex = i
	fm.epochMu.Unlock()
	fm.request()
}

// StepEpoch moves the epoch index by delta, clamped to the loaded epochs,
// and returns the new index.
func (fm *FileManager) StepEpoch(delta int) uint32 {
	n := len(fm.GetEpochs())

	fm.epochMu.Lock()
	idx := int(fm.epochIndex) + delta
	if idx > n-1 {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	fm.epochIndex = uint32(idx)
	fm.epochMu.Unlock()

	fm.request()
	return uint32(idx)
}

// SetAllToAll switches between one-to-one and binned all-to-all diffs.
func (fm *FileManager) SetAllToAll(on bool) {
	fm.modeMu.Lock()
	fm.allToAll = on
	fm.modeMu.Unlock()
	fm.request()
}

// SetHardBodyRadius sets the HBR in km.
func (fm *FileManager) SetHardBodyRadius(hbr float64) {
	fm.hbrMu.Lock()
	fm.hbr = hbr
	fm.hbrMu.Unlock()
	fm.request()
}

// SetBinning replaces the all-to-all binning parameters.
func (fm *FileManager) SetBinning(p conjunction.BinningParams) {
	fm.binMu.Lock()
	fm.binning = p
	fm.binMu.Unlock()
	fm.request()
}

// Cancel supersedes any in-flight run without scheduling a new one.
func (fm *FileManager) Cancel() {
	fm.version.Add(1)
	fm.logger.Printf("[FileManager] cancel requested")
}

// Wait blocks until every scheduled request has finished and returns the
// error of the last run that executed to completion or failure. Canceled
// runs do not replace it.
func (fm *FileManager) Wait() error {
	fm.wg.Wait()
	fm.errMu.Lock()
	defer fm.errMu.Unlock()
	return fm.lastErr
}

// Close cancels in-flight work, waits for it, and rejects further requests.
func (fm *FileManager) Close() {
	fm.reqMu.Lock()
	fm.closed = true
	fm.reqMu.Unlock()
	fm.Cancel()
	fm.wg.Wait()
}

// GetEpochs returns the loaded epochs in ascending order.
func (fm *FileManager) GetEpochs() []float64 {
	fm.snapMu.RLock()
	defer fm.snapMu.RUnlock()
	out := make([]float64, len(fm.epochs))
	copy(out, fm.epochs)
	return out
}

// Current returns the snapshot of the last published run, or nil.
func (fm *FileManager) Current() *snapshot.SnapshotData {
	return fm.current.Load()
}

// Registry returns the post-processing registry.
func (fm *FileManager) Registry() *Registry { return fm.registry }

// Progress returns the status sink.
func (fm *FileManager) Progress() *progress.Sink { return fm.progress }

// Running reports whether a run is executing.
func (fm *FileManager) Running() bool { return fm.running.Load() }

// Settings returns a copy of the current settings.
func (fm *FileManager) Settings() Settings {
	var s Settings
	fm.filesMu.Lock()
	s.Files = append([]string(nil), fm.files...)
	fm.filesMu.Unlock()
	fm.epochMu.Lock()
	s.EpochIndex = fm.epochIndex
	fm.epochMu.Unlock()
	fm.modeMu.Lock()
	s.AllToAll = fm.allToAll
	fm.modeMu.Unlock()
	fm.hbrMu.Lock()
	s.HBR = fm.hbr
	fm.hbrMu.Unlock()
	fm.binMu.Lock()
	s.Binning = fm.binning
	fm.binMu.Unlock()
	return s
}

// request stamps a new version and schedules a run for it. The run only
// executes if no newer request has been stamped by the time it holds the
// pipeline lock.
func (fm *FileManager) request() {
	fm.reqMu.Lock()
	if fm.closed {
		fm.reqMu.Unlock()
		return
	}
	v := fm.version.Add(1)
	fm.wg.Add(1)
	fm.reqMu.Unlock()

	go func() {
		defer fm.wg.Done()
		fm.pipelineMu.Lock()
		defer fm.pipelineMu.Unlock()

		if fm.version.Load() != v {
			fm.metrics.RecordSuperseded()
			return
		}
		fm.execute(v)
	}()
}

func (fm *FileManager) execute(v uint64) {
	fm.running.Store(true)
	defer fm.running.Store(false)
	defer fm.progress.Clear()

	checkpoint := func() error {
		if fm.version.Load() != v {
			return ErrCanceled
		}
		return nil
	}

	start := time.Now()
	err := fm.run(checkpoint)
	elapsed := time.Since(start)

	outcome := metrics.OutcomePublished
	switch {
	case err == nil:
	case errors.Is(err, ErrCanceled):
		outcome = metrics.OutcomeCanceled
		fm.logger.Printf("[FileManager] run superseded after %v", elapsed.Round(time.Millisecond))
	default:
		outcome = metrics.OutcomeFailed
		fm.logger.Printf("[FileManager] run failed after %v: %v", elapsed.Round(time.Millisecond), err)
	}
	fm.metrics.RecordRun(outcome, elapsed)

	if outcome != metrics.OutcomeCanceled {
		fm.errMu.Lock()
		fm.lastErr = err
		fm.errMu.Unlock()
	}
}

func (fm *FileManager) run(checkpoint func() error) error {
	fm.filesMu.Lock()
	files := append([]string(nil), fm.files...)
	gen := fm.filesGen
	fm.filesMu.Unlock()

	fm.snapMu.RLock()
	dirty := gen != fm.loadedGen
	fm.snapMu.RUnlock()

	if dirty {
		if err := fm.load(files, gen, checkpoint); err != nil {
			return err
		}
	}

	settings := fm.Settings()

	fm.snapMu.RLock()
	snaps := fm.snapshots
	fm.snapMu.RUnlock()
	if len(snaps) == 0 {
		return ErrNoEpochs
	}
	idx := int(settings.EpochIndex)
	if idx > len(snaps)-1 {
		idx = len(snaps) - 1
	}
	data := snaps[idx]

	if err := checkpoint(); err != nil {
		return err
	}

	var obs conjunction.Observer
	if fm.metrics != nil {
		obs = fm.metrics
	}
	unit := conjunction.NewUnitOfWork(data, conjunction.Options{
		AllToAll: settings.AllToAll,
		HBR:      settings.HBR,
		Binning:  settings.Binning,
		Progress: fm.progress,
		Canceled: checkpoint,
		Workers:  fm.workers,
		Logger:   fm.logger,
		Observer: obs,
	})

	fm.progress.SetText(fmt.Sprintf("Computing diffs for epoch %d/%d", idx+1, len(snaps)))
	if _, err := unit.CalcDiffs(); err != nil {
		return fmt.Errorf("epoch %d: %w", idx, err)
	}
	if err := checkpoint(); err != nil {
		return err
	}
	if _, err := unit.CalcOutputs(); err != nil {
		return fmt.Errorf("epoch %d: %w", idx, err)
	}
	if err := checkpoint(); err != nil {
		return err
	}

	fm.publishMu.Lock()
	defer fm.publishMu.Unlock()

	out, err := unit.Commit(fm.newRunID())
	if err != nil {
		return err
	}
	fm.current.Store(data)
	fm.metrics.SetPc(out.Stats.Pc)
	fm.logger.Printf("[FileManager] published run %s: epoch %v (%d/%d) %d/%d mode=%s Pc=%.3e",
		out.RunID, data.Epoch, idx+1, len(snaps), data.IDA, data.IDB, modeName(out.AllToAll), out.Stats.Pc)

	fm.registry.Run(data)
	return nil
}

// load parses files and rebuilds every snapshot. The loaded generation
// only advances on success, so a canceled or failed load is retried by the
// next request.
func (fm *FileManager) load(files []string, gen uint64, checkpoint func() error) error {
	if len(files) == 0 {
		return ErrNoFiles
	}

	var current atomic.Int64
	fm.progress.Set(func() string {
		return fmt.Sprintf("Loading file %d/%d", current.Load(), len(files))
	})

	parser := states.NewParser(fm.fs, fm.logger)
	parser.OnFile = func(i, _ int, _ string) { current.Store(int64(i + 1)) }

	res, err := parser.ParseFiles(files, checkpoint)
	if err != nil {
		if errors.Is(err, ErrCanceled) {
			return err
		}
		return fmt.Errorf("load: %w", err)
	}
	fm.metrics.AddMalformed(res.Malformed())

	groups, report := states.GroupByEpoch(res.Records)
	if report.Dropped > 0 {
		fm.logger.Printf("[FileManager] dropped %d epochs without exactly two objects", report.Dropped)
	}
	if len(groups) == 0 {
		return fmt.Errorf("load: %w", ErrNoEpochs)
	}

	fm.progress.SetText(fmt.Sprintf("Building %d snapshots", len(groups)))
	snaps := make([]*snapshot.SnapshotData, len(groups))
	epochs := make([]float64, len(groups))
	degenerate := 0
	for i, g := range groups {
		if err := checkpoint(); err != nil {
			return err
		}
		snaps[i] = snapshot.New(g)
		epochs[i] = g.Epoch
		degenerate += snaps[i].Degenerate
	}
	if degenerate > 0 {
		fm.logger.Printf("[FileManager] %d samples with degenerate VNB frames excluded", degenerate)
	}

	fm.snapMu.Lock()
	fm.snapshots = snaps
	fm.epochs = epochs
	fm.loadedGen = gen
	fm.snapMu.Unlock()

	fm.metrics.SetEpochs(len(epochs))
	fm.logger.Printf("[FileManager] loaded %d records from %d files into %d epochs",
		len(res.Records), res.Loaded, len(epochs))
	return nil
}

func modeName(allToAll bool) string {
	if allToAll {
		return "all-to-all"
	}
	return "one-to-one"
}

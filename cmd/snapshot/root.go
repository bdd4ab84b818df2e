package main

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/snapshot/internal/config"
	"github.com/banshee-data/snapshot/internal/conjunction"
	"github.com/banshee-data/snapshot/internal/filemanager"
	"github.com/banshee-data/snapshot/internal/metrics"
	"github.com/banshee-data/snapshot/internal/monitoring"
	"github.com/banshee-data/snapshot/internal/version"
)

// options holds the flags shared by the commands that run the pipeline.
// Flags only override the config file when set explicitly.
type options struct {
	configPath string
	quiet      bool

	epoch    uint32
	hbr      float64
	allToAll bool
	bins     uint32
	binMult  float64
	maxTries uint32
	workers  int

	outDir string
	png    bool
	html   bool

	listen    string
	allowDirs []string
	watch     bool
	debounce  time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "snapshot",
		Short: "Conjunction snapshot analysis of two tracked objects",
		Long: `Loads time-tagged state vectors ("objectId epoch x y z vx vy vz" per line),
groups them by epoch, and for the selected epoch computes the relative
positions of the second object in the first object's VNB frame, their
statistics, and a probability of collision against a hard-body radius.

Examples:
  snapshot run states.txt                      # one-to-one at epoch 0
  snapshot run --all-to-all --hbr 0.05 a.txt   # binned all-pairs
  snapshot run --all-epochs --png --out plots a.txt
  snapshot epochs a.txt b.txt                  # list usable epochs
  snapshot serve --watch --allow-dir data data/states.txt
  snapshot ctl hbr 0.1                         # drive a running server`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (.json, .yaml or .yml)")
	root.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress diagnostic logging")

	root.AddCommand(
		newRunCmd(opts),
		newEpochsCmd(opts),
		newServeCmd(opts),
		newCtlCmd(),
		newVersionCmd(),
	)
	return root
}

func addPipelineFlags(cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	f.Uint32VarP(&opts.epoch, "epoch", "e", 0, "Epoch index to compute")
	f.Float64Var(&opts.hbr, "hbr", config.DefaultHardBodyRadius, "Hard-body radius (km)")
	f.BoolVar(&opts.allToAll, "all-to-all", false, "Use binned all-pairs diffs instead of index pairs")
	f.Uint32Var(&opts.bins, "bins", config.DefaultAllToAllBinCount, "Voxel budget per all-to-all attempt")
	f.Float64Var(&opts.binMult, "bin-mult", config.DefaultAllToAllInitialBinMult, "Initial all-to-all bounds multiplier")
	f.Uint32Var(&opts.maxTries, "max-tries", config.DefaultAllToAllMaxBinTries, "All-to-all attempts before giving up")
	f.IntVar(&opts.workers, "workers", 0, "All-to-all goroutines (0 = GOMAXPROCS)")
	f.StringVarP(&opts.outDir, "out", "o", config.DefaultOutputDir, "Directory for plots and charts")
	f.BoolVar(&opts.png, "png", false, "Write a PNG plot per published snapshot")
	f.BoolVar(&opts.html, "html", false, "Write an HTML chart per published snapshot")
}

// loadConfig reads the config file (or the defaults) and applies explicit
// flags and positional input files on top.
func loadConfig(cmd *cobra.Command, opts *options, args []string) (*config.SnapshotConfig, error) {
	cfg := config.DefaultSnapshotConfig()
	if opts.configPath != "" {
		loaded, err := config.LoadSnapshotConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	if changed("epoch") {
		cfg.EpochIndex = &opts.epoch
	}
	if changed("hbr") {
		cfg.HardBodyRadius = &opts.hbr
	}
	if changed("all-to-all") {
		cfg.AllToAll = &opts.allToAll
	}
	if changed("bins") {
		cfg.AllToAllBinCount = &opts.bins
	}
	if changed("bin-mult") {
		cfg.AllToAllInitialBinMult = &opts.binMult
	}
	if changed("max-tries") {
		cfg.AllToAllMaxBinTries = &opts.maxTries
	}
	if changed("workers") {
		cfg.Workers = &opts.workers
	}
	if changed("out") {
		cfg.OutputDir = &opts.outDir
	}
	if changed("png") {
		cfg.PlotPNG = &opts.png
	}
	if changed("html") {
		cfg.ChartHTML = &opts.html
	}
	if changed("listen") {
		cfg.Listen = &opts.listen
	}
	if changed("allow-dir") {
		cfg.AllowedDirs = opts.allowDirs
	}
	if changed("watch") {
		cfg.Watch = &opts.watch
	}
	if changed("debounce") {
		d := opts.debounce.String()
		cfg.WatchDebounce = &d
	}
	if len(args) > 0 {
		cfg.InputFiles = args
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.InputFiles) == 0 {
		return nil, fmt.Errorf("no input files: pass them as arguments or set input_files in the config")
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, opts *options) *log.Logger {
	if opts.quiet {
		monitoring.SetLogger(nil)
		return log.New(io.Discard, "", 0)
	}
	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	monitoring.SetLogger(logger.Printf)
	return logger
}

func newFileManager(cfg *config.SnapshotConfig, logger *log.Logger, pm *metrics.Pipeline) *filemanager.FileManager {
	return filemanager.New(filemanager.Config{
		Files:      cfg.InputFiles,
		EpochIndex: cfg.GetEpochIndex(),
		AllToAll:   cfg.GetAllToAll(),
		HBR:        cfg.GetHardBodyRadius(),
		Binning: conjunction.BinningParams{
			BinCount:          cfg.GetAllToAllBinCount(),
			InitialMultiplier: cfg.GetAllToAllInitialBinMultiplier(),
			MaxTries:          cfg.GetAllToAllMaxBinTries(),
		},
		Workers: cfg.GetWorkers(),
		Logger:  logger,
	}, filemanager.WithMetrics(pm))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

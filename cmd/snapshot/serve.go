package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/banshee-data/snapshot/internal/config"
	"github.com/banshee-data/snapshot/internal/filemanager"
	"github.com/banshee-data/snapshot/internal/metrics"
	"github.com/banshee-data/snapshot/internal/monitor"
	"github.com/banshee-data/snapshot/internal/watch"
)

// watchedFiles keeps the file watcher in step with file changes made over
// HTTP.
type watchedFiles struct {
	*filemanager.FileManager
	watcher *watch.Watcher
	logger  *log.Logger
}

func (c *watchedFiles) SetFiles(paths []string) {
	if err := c.watcher.SetFiles(paths); err != nil {
		c.logger.Printf("[Watcher] failed to follow new files: %v", err)
	}
	c.FileManager.SetFiles(paths)
}

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [state files...]",
		Short: "Serve live settings, the HUD, plots and metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, args)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, opts)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	addPipelineFlags(cmd, opts)
	f := cmd.Flags()
	f.StringVar(&opts.listen, "listen", config.DefaultListen, "HTTP listen address")
	f.StringSliceVar(&opts.allowDirs, "allow-dir", nil, "Directory POST /api/files may read from (repeatable)")
	f.BoolVar(&opts.watch, "watch", false, "Reload when input files change on disk")
	f.DurationVar(&opts.debounce, "debounce", config.DefaultWatchDebounce, "Quiet period before a watched change reloads")
	return cmd
}

func serve(ctx context.Context, cfg *config.SnapshotConfig, logger *log.Logger) error {
	reg := prometheus.NewRegistry()
	fm := newFileManager(cfg, logger, metrics.NewPipeline(reg))
	defer fm.Close()

	hud := monitor.NewHUD(logger)
	fm.Registry().Register("hud", hud)
	if cfg.GetPlotPNG() || cfg.GetChartHTML() {
		fm.Registry().Register("artifacts", monitor.NewArtifactWriter(cfg.GetOutputDir(), cfg.GetPlotPNG(), cfg.GetChartHTML(), logger))
	}

	var ctrl monitor.Controller = fm
	if cfg.GetWatch() {
		w, err := watch.New(cfg.InputFiles, func([]string) { fm.Reload() }, watch.Options{
			Debounce: cfg.GetWatchDebounce(),
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("watch inputs: %w", err)
		}
		defer w.Stop()
		w.Start(ctx)
		ctrl = &watchedFiles{FileManager: fm, watcher: w, logger: logger}
	}

	ws := monitor.NewWebServer(monitor.WebServerConfig{
		Address:     cfg.GetListen(),
		Controller:  ctrl,
		HUD:         hud,
		AllowedDirs: cfg.AllowedDirs,
		Gatherer:    reg,
		Logger:      logger,
	})

	fm.Reload()
	return ws.Start(ctx)
}

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/banshee-data/snapshot/internal/filemanager"
	"github.com/banshee-data/snapshot/internal/fsutil"
	"github.com/banshee-data/snapshot/internal/metrics"
	"github.com/banshee-data/snapshot/internal/monitor"
	"github.com/banshee-data/snapshot/internal/snapshot"
	"github.com/banshee-data/snapshot/internal/states"
)

func newRunCmd(opts *options) *cobra.Command {
	var allEpochs bool

	cmd := &cobra.Command{
		Use:   "run [state files...]",
		Short: "Compute the snapshot for one epoch (or all) and print the HUD",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, args)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, opts)

			fm := newFileManager(cfg, logger, metrics.NewPipeline(prometheus.NewRegistry()))
			defer fm.Close()

			hud := monitor.NewHUD(nil)
			fm.Registry().Register("hud", hud)
			if cfg.GetPlotPNG() || cfg.GetChartHTML() {
				fm.Registry().Register("artifacts", monitor.NewArtifactWriter(cfg.GetOutputDir(), cfg.GetPlotPNG(), cfg.GetChartHTML(), logger))
			}
			out := cmd.OutOrStdout()
			fm.Registry().Register("print", filemanager.StepFunc(func(_ *snapshot.SnapshotData) {
				printHUD(out, hud.Lines())
			}))

			fm.Reload()
			if err := fm.Wait(); err != nil {
				return err
			}
			if !allEpochs {
				return nil
			}

			n := len(fm.GetEpochs())
			for i := 0; i < n; i++ {
				if i == int(fm.Settings().EpochIndex) {
					continue
				}
				fm.SetEpochIndex(uint32(i))
				if err := fm.Wait(); err != nil {
					return fmt.Errorf("epoch %d: %w", i, err)
				}
			}
			return nil
		},
	}
	addPipelineFlags(cmd, opts)
	cmd.Flags().BoolVar(&allEpochs, "all-epochs", false, "Compute every epoch in turn")
	return cmd
}

func printHUD(w io.Writer, lines []string) {
	fmt.Fprintln(w, strings.Join(lines, "\n  "))
}

func formatEpoch(e float64) string {
	return strconv.FormatFloat(e, 'f', -1, 64)
}

func newEpochsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "epochs [state files...]",
		Short: "List the epochs that hold exactly two objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, args)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, opts)

			res, err := states.NewParser(fsutil.OSFileSystem{}, logger).ParseFiles(cfg.InputFiles, nil)
			if err != nil {
				return err
			}
			groups, report := states.GroupByEpoch(res.Records)
			if len(groups) == 0 {
				return filemanager.ErrNoEpochs
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-6s %-18s %-6s %-6s %-4s %-4s\n", "INDEX", "EPOCH", "A", "B", "NA", "NB")
			for i, g := range groups {
				fmt.Fprintf(out, "%-6d %-18s %-6d %-6d %-4d %-4d\n", i, formatEpoch(g.Epoch), g.IDA, g.IDB, len(g.A), len(g.B))
			}
			if report.Dropped > 0 {
				fmt.Fprintf(out, "(%d epochs without exactly two objects skipped)\n", report.Dropped)
			}
			return nil
		},
	}
}

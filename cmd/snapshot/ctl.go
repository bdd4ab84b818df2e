package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/snapshot/internal/config"
	"github.com/banshee-data/snapshot/internal/conjunction"
	"github.com/banshee-data/snapshot/internal/monitor"
)

func newCtlCmd() *cobra.Command {
	var server string
	client := func() *monitor.Client { return monitor.NewClient(nil, server) }

	ctl := &cobra.Command{
		Use:   "ctl",
		Short: "Drive a running snapshot server",
	}
	ctl.PersistentFlags().StringVar(&server, "server", "http://localhost"+config.DefaultListen, "Server base URL")

	accepted := func(cmd *cobra.Command, err error) error {
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "accepted")
		return nil
	}

	ctl.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show settings, progress and the current snapshot",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				st, err := client().Status()
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			},
		},
		&cobra.Command{
			Use:   "epochs",
			Short: "List loaded epochs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				resp, err := client().Epochs()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for i, e := range resp.Epochs {
					marker := " "
					if uint32(i) == resp.Index {
						marker = "*"
					}
					fmt.Fprintf(out, "%s %-4d %s\n", marker, i, formatEpoch(e))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "epoch <index>",
			Short: "Select an epoch by index",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				i, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid index %q: %w", args[0], err)
				}
				return accepted(cmd, client().SetEpoch(uint32(i)))
			},
		},
		stepCmd("next", "Select the next epoch", 1, client),
		stepCmd("prev", "Select the previous epoch", -1, client),
		&cobra.Command{
			Use:   "hbr <km>",
			Short: "Set the hard-body radius",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				hbr, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("invalid radius %q: %w", args[0], err)
				}
				return accepted(cmd, client().SetHBR(hbr))
			},
		},
		&cobra.Command{
			Use:       "mode one|all",
			Short:     "Switch between one-to-one and all-to-all diffs",
			Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
			ValidArgs: []string{"one", "all"},
			RunE: func(cmd *cobra.Command, args []string) error {
				return accepted(cmd, client().SetAllToAll(args[0] == "all"))
			},
		},
		&cobra.Command{
			Use:   "bins <count> <multiplier> <tries>",
			Short: "Set the all-to-all binning parameters",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := parseBinning(args)
				if err != nil {
					return err
				}
				return accepted(cmd, client().SetBinning(p))
			},
		},
		&cobra.Command{
			Use:   "cancel",
			Short: "Supersede the in-flight recompute",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return accepted(cmd, client().Cancel())
			},
		},
		&cobra.Command{
			Use:   "files <paths...>",
			Short: "Replace the input files and reload",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return accepted(cmd, client().SetFiles(args))
			},
		},
	)
	return ctl
}

func stepCmd(use, short string, delta int, client func() *monitor.Client) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			idx, err := client().StepEpoch(delta)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "epoch index %d\n", idx)
			return nil
		},
	}
}

func parseBinning(args []string) (conjunction.BinningParams, error) {
	count, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return conjunction.BinningParams{}, fmt.Errorf("invalid bin count %q: %w", args[0], err)
	}
	mult, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return conjunction.BinningParams{}, fmt.Errorf("invalid multiplier %q: %w", args[1], err)
	}
	tries, err := strconv.ParseUint(args[2], 10, 32)
	if err != nil {
		return conjunction.BinningParams{}, fmt.Errorf("invalid tries %q: %w", args[2], err)
	}
	return conjunction.BinningParams{
		BinCount:          uint32(count),
		InitialMultiplier: mult,
		MaxTries:          uint32(tries),
	}, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Package commands implements the samplemirror CLI commands.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/samplemirror/internal/config"
	"github.com/leapstack-labs/samplemirror/pkg/mirror"
)

// NewMirrorsCommand creates the mirrors command group.
func NewMirrorsCommand(cfgFile *string, verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirrors",
		Short: "Inspect and manage the configured mirrors",
	}
	cmd.AddCommand(newListCommand(cfgFile, verbose))
	cmd.AddCommand(newGrowCommand(cfgFile, verbose))
	return cmd
}

func newListCommand(cfgFile *string, verbose *bool) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all mirrors with their locally stored row counts",
		Example: `  # List mirrors as a table
  samplemirror mirrors list

  # List mirrors as JSON
  samplemirror mirrors list --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fleet, cleanup, err := openFleet(cmd.Context(), *cfgFile, *verbose)
			if err != nil {
				return err
			}
			defer cleanup()

			infos := fleet.List()
			if output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Table", "Rows Stored Locally"})
			for _, info := range infos {
				t.AppendRow(table.Row{info.Name, info.TableName, info.RowsStoredLocally})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json")
	return cmd
}

func newGrowCommand(cfgFile *string, verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grow NAME TARGET",
		Short: "Grow a mirror's sample to at least TARGET rows",
		Long: `Grow asks the named mirror's sampling policy to enlarge the local
sample to at least TARGET rows and reports the count actually reached.
Policies with a fixed mirrored subset report their current count
unchanged; growth never shrinks a mirror.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid row target %q: %w", args[1], err)
			}

			fleet, cleanup, err := openFleet(cmd.Context(), *cfgFile, *verbose)
			if err != nil {
				return err
			}
			defer cleanup()

			count, err := fleet.SetRowTarget(cmd.Context(), args[0], target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now stores %d rows locally\n", args[0], count)
			return nil
		},
	}
	return cmd
}

// openFleet loads the configuration and opens every configured mirror
// into a fresh fleet. The returned cleanup closes all store handles.
func openFleet(ctx context.Context, cfgFile string, verbose bool) (*mirror.Fleet, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelInfo
	if verbose || cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	fleet := mirror.NewFleet(logger)
	for _, def := range cfg.Mirrors {
		if _, err := mirror.Open(ctx, mirror.OpenOptions{
			Options: def.OptionBag(),
			Columns: def.StoreColumns(),
			Fleet:   fleet,
			Logger:  logger,
		}); err != nil {
			_ = fleet.Close()
			return nil, nil, fmt.Errorf("opening mirror %s: %w", def.Name, err)
		}
	}
	return fleet, func() { _ = fleet.Close() }, nil
}

// Package cli provides the command-line interface for samplemirror.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/samplemirror/internal/cli/commands"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "samplemirror",
		Short: "samplemirror - sampled mirrors of remote relational tables",
		Long: `samplemirror maintains small local mirrors of large remote tables and
routes queries between them: reads are answered from a mirror whenever
its sampling policy can guarantee a complete answer, and fall through
to the remote store otherwise.`,
		Version:       fmt.Sprintf("%s (%s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "samplemirror.yaml", "path to the mirror configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(commands.NewMirrorsCommand(&cfgFile, &verbose))
	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit))

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

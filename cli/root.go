// Package cli implements the workbench command-line interface: the host
// bridge daemon, the event stream tail, and the self-update commands.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/workbench-labs/workbench/config"
)

// loadConfig resolves and loads the configuration for a command, honoring
// its --config flag. Built-in defaults apply when no file is found.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	explicitPath, _ := cmd.Flags().GetString("config")

	path, found, err := config.Discover(explicitPath)
	if err != nil {
		return config.Config{}, exitError(exitConfig, "%v", err)
	}
	if !found {
		return config.Default(), nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, exitError(exitConfig, "%v", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the root command's verbosity
// flags. Logs go to stderr so stdout stays clean for command output.
func newLogger(cmd *cobra.Command) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")

	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

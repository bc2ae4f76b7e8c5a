package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/workbench-labs/workbench/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "workbench",
	Short: "Workbench client companion CLI",
	Long:  "Workbench is the companion CLI for the etcd workbench client: host bridge, event stream, clipboard, and self-update.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "", false, "Suppress all output except errors")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("workbench version %s\n", version))

	rootCmd.AddCommand(cli.NewBridgeCmd(version))
	rootCmd.AddCommand(cli.NewEventsCmd())
	rootCmd.AddCommand(cli.NewCheckCmd(version))
	rootCmd.AddCommand(cli.NewUpdateCmd(version))
	rootCmd.AddCommand(cli.NewCopyCmd())
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/workbench-labs/workbench/update"
)

// NewCheckCmd creates the "check" subcommand.
func NewCheckCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a newer release is available",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, version)
		},
	}

	cmd.Flags().String("config", "", "Path to workbench.yaml (default: ./workbench.yaml, ~/.workbench/config.yaml)")
	cmd.Flags().String("manifest-url", "", "Override the release manifest URL")

	return cmd
}

func runCheck(cmd *cobra.Command, version string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	manifestURL, _ := cmd.Flags().GetString("manifest-url")
	if manifestURL == "" {
		manifestURL = cfg.Update.ManifestURL
	}
	if manifestURL == "" {
		return exitError(exitConfig, "no manifest URL configured; set update.manifest_url or pass --manifest-url")
	}

	checker, err := update.NewHTTPChecker(update.HTTPCheckerConfig{
		ManifestURL: manifestURL,
		Current:     version,
	})
	if err != nil {
		return exitError(exitConfig, "configuring update check: %v", err)
	}

	manifest, err := checker.Check(cmd.Context())
	switch {
	case errors.Is(err, update.ErrNoUpdate):
		fmt.Fprintf(cmd.OutOrStdout(), "Already the latest version (%s).\n", version)
		return nil
	case err != nil:
		return exitError(exitCheck, "update check failed: %v", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Update available: %s\n", manifest.Version)
	if manifest.Notes != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Notes: %s\n", manifest.Notes)
	}
	if manifest.URL != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Download: %s\n", manifest.URL)
	}
	return nil
}

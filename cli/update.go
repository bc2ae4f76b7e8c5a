package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/workbench-labs/workbench/bus"
	"github.com/workbench-labs/workbench/interact"
	"github.com/workbench-labs/workbench/remote"
	"github.com/workbench-labs/workbench/update"
)

// NewUpdateCmd creates the "update" subcommand.
func NewUpdateCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for a newer release and install it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUpdate(cmd, version)
		},
	}

	cmd.Flags().String("config", "", "Path to workbench.yaml (default: ./workbench.yaml, ~/.workbench/config.yaml)")
	cmd.Flags().String("manifest-url", "", "Override the release manifest URL")
	cmd.Flags().String("otlp-endpoint", "", "OTLP/HTTP endpoint for workflow traces")

	return cmd
}

func runUpdate(cmd *cobra.Command, version string) error {
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
	otlpEndpoint, _ := cmd.Flags().GetString("otlp-endpoint")

	logger := newLogger(cmd)

	tracer, shutdownTracing, err := setupTracing(cmd.Context(), otlpEndpoint, version)
	if err != nil {
		return exitError(exitConfig, "%v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("flushing traces failed", "error", err)
		}
	}()

	registry := bus.NewRegistry(bus.RegistryConfig{Logger: logger})
	presenter := newTerminalPresenter(cmd.InOrStdin(), cmd.OutOrStdout())
	for _, sub := range presenter.attach(registry) {
		defer sub.Close()
	}

	var global *remote.Global
	if cfg.Host.Endpoint != "" {
		global, err = remote.NewGlobal(remote.GlobalConfig{
			Endpoint: cfg.Host.Endpoint,
			Logger:   logger,
		})
		if err != nil {
			return exitError(exitConfig, "%v", err)
		}
		global.Start(cmd.Context())
		defer func() {
			_ = global.Close()
		}()
	}

	checker, err := update.NewHTTPChecker(update.HTTPCheckerConfig{
		ManifestURL: manifestURL,
		Current:     version,
		Logger:      logger,
	})
	if err != nil {
		return exitError(exitConfig, "configuring update checker: %v", err)
	}

	orchestratorCfg := update.OrchestratorConfig{
		Checker:     checker,
		Installer:   &binaryInstaller{},
		Relauncher:  &processRelauncher{},
		Interact:    interact.New(interact.InteractorConfig{Bus: registry, Logger: logger}),
		Bus:         registry,
		ReleasePage: cfg.Update.ReleasePage,
		Tracer:      tracer,
		Logger:      logger,
	}
	if global != nil {
		orchestratorCfg.Global = global
	}
	orchestrator, err := update.NewOrchestrator(orchestratorCfg)
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}

	orchestrator.Run(cmd.Context(), update.RunOptions{})
	return nil
}

// binaryInstaller downloads the release binary and swaps it over the
// running executable.
type binaryInstaller struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
}

func (i *binaryInstaller) Install(ctx context.Context, m *update.Manifest) error {
	if m.URL == "" {
		return fmt.Errorf("release manifest has no download URL")
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	client := i.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return fmt.Errorf("building download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading release: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading release: unexpected status %s", resp.Status)
	}

	// Stage in the executable's directory so the final rename stays on
	// one filesystem.
	staged, err := os.CreateTemp(filepath.Dir(exe), ".workbench-update-*")
	if err != nil {
		return fmt.Errorf("staging download: %w", err)
	}
	stagedPath := staged.Name()
	defer os.Remove(stagedPath)

	if _, err := io.Copy(staged, resp.Body); err != nil {
		staged.Close()
		return fmt.Errorf("writing download: %w", err)
	}
	if err := staged.Close(); err != nil {
		return fmt.Errorf("writing download: %w", err)
	}
	if err := os.Chmod(stagedPath, 0o755); err != nil {
		return fmt.Errorf("marking download executable: %w", err)
	}
	if err := os.Rename(stagedPath, exe); err != nil {
		return fmt.Errorf("replacing executable: %w", err)
	}
	return nil
}

var _ update.Installer = (*binaryInstaller)(nil)

// processRelauncher starts a fresh copy of the current process with the
// same arguments and lets it run detached.
type processRelauncher struct{}

func (*processRelauncher) Relaunch(_ context.Context) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}

	next := exec.Command(exe, os.Args[1:]...)
	next.Stdout = os.Stdout
	next.Stderr = os.Stderr
	next.Stdin = os.Stdin
	if err := next.Start(); err != nil {
		return fmt.Errorf("starting new process: %w", err)
	}
	// Not reaped; the new process outlives this one.
	return next.Process.Release()
}

var _ update.Relauncher = (*processRelauncher)(nil)

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/workbench-labs/workbench/bus"
	"github.com/workbench-labs/workbench/interact"
	"github.com/workbench-labs/workbench/journal"
	workbenchotel "github.com/workbench-labs/workbench/otel"
	"github.com/workbench-labs/workbench/remote"
	"github.com/workbench-labs/workbench/sse"
	"github.com/workbench-labs/workbench/update"
)

// NewBridgeCmd creates the "bridge" subcommand.
func NewBridgeCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Run the host bridge HTTP server",
		Long: "Run the host bridge: accepts globally-emitted events over HTTP, " +
			"journals them, and re-streams them to connected clients over SSE.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBridge(cmd, version)
		},
	}

	cmd.Flags().String("config", "", "Path to workbench.yaml (default: ./workbench.yaml, ~/.workbench/config.yaml)")
	cmd.Flags().String("listen", "", "Listen address (overrides host.listen)")
	cmd.Flags().String("journal-path", "", "SQLite journal path (overrides journal.path)")
	cmd.Flags().String("cors-origin", "*", "Allowed CORS origin")
	cmd.Flags().Int64("max-body", 1<<20, "Max request body size in bytes")
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 0, "HTTP write timeout (0 keeps SSE streams open)")

	return cmd
}

func runBridge(cmd *cobra.Command, version string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	listen, _ := cmd.Flags().GetString("listen")
	if listen == "" {
		listen = cfg.Host.Listen
	}
	journalPath, _ := cmd.Flags().GetString("journal-path")
	if journalPath == "" {
		journalPath = cfg.Journal.Path
	}
	corsOrigin, _ := cmd.Flags().GetString("cors-origin")
	maxBody, _ := cmd.Flags().GetInt64("max-body")
	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	writeTimeout, _ := cmd.Flags().GetDuration("write-timeout")

	logger := newLogger(cmd)

	metrics, err := workbenchotel.NewDispatchMetrics(
		otelapi.GetMeterProvider().Meter("workbench/bus"),
	)
	if err != nil {
		return fmt.Errorf("initializing dispatch metrics: %w", err)
	}

	registry := bus.NewRegistry(bus.RegistryConfig{
		Logger:  logger,
		OnPanic: metrics.PanicHook(),
	})
	defer registry.SubscribeAll(metrics.Handler()).Close()

	var replayer sse.Replayer
	if journalPath != "" {
		j, err := journal.Open(journal.Config{
			DSN:            journalPath,
			RetentionAge:   cfg.Journal.RetentionAge.Std(),
			RetentionCount: cfg.Journal.RetentionCount,
			Logger:         logger,
		})
		if err != nil {
			return fmt.Errorf("opening event journal: %w", err)
		}
		defer func() {
			_ = j.Close()
		}()
		defer registry.SubscribeAll(j.Handler()).Close()
		replayer = j
	}

	hostHandler := remote.NewHostHandler(remote.HostHandlerConfig{
		Bus:     registry,
		MaxBody: maxBody,
		Logger:  logger,
	})
	streamHandler, err := sse.NewHandler(sse.HandlerConfig{
		Bus:     registry,
		Journal: replayer,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating stream handler: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/events", hostHandler)
	mux.Handle("GET /api/events/stream", streamHandler)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Background update checks surface as notifications on the bus, where
	// connected clients pick them up through the stream.
	scheduler, err := newBridgeUpdateScheduler(cfg.Update.ManifestURL, cfg.Update.Schedule, version, registry, logger)
	if err != nil {
		return exitError(exitConfig, "%v", err)
	}
	if scheduler != nil {
		if err := scheduler.Start(cmd.Context()); err != nil {
			return fmt.Errorf("starting update scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	httpServer := &http.Server{
		Addr:         listen,
		Handler:      withCORS(mux, corsOrigin),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "Workbench bridge listening on %s\n", listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}

// newBridgeUpdateScheduler builds the background check scheduler, or nil
// when checks are not configured.
func newBridgeUpdateScheduler(manifestURL, schedule, version string, registry *bus.Registry, logger *slog.Logger) (*update.Scheduler, error) {
	if manifestURL == "" || schedule == "" {
		return nil, nil
	}

	checker, err := update.NewHTTPChecker(update.HTTPCheckerConfig{
		ManifestURL: manifestURL,
		Current:     version,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring update checker: %w", err)
	}
	notifier := interact.New(interact.InteractorConfig{
		Bus:    registry,
		Logger: logger,
	})

	return update.NewScheduler(update.SchedulerConfig{
		Schedule: schedule,
		Logger:   logger,
		Run: func(ctx context.Context) {
			manifest, err := checker.Check(ctx)
			switch {
			case errors.Is(err, update.ErrNoUpdate):
				return
			case err != nil:
				logger.Warn("background update check failed", "error", err)
				return
			}
			notifier.TipInfo(fmt.Sprintf("New version %s is available.", manifest.Version))
		},
	})
}

func withCORS(next http.Handler, allowedOrigin string) http.Handler {
	origin := strings.TrimSpace(allowedOrigin)
	if origin == "" {
		origin = "*"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

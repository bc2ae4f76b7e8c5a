// Package update drives the self-update lifecycle of the installed client:
// check for a new version, confirm with the user, install, and relaunch.
// Each stage converts its failures into user notifications and diagnostic
// log entries; nothing propagates past the orchestrator.
package update

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	workbench "github.com/workbench-labs/workbench"
	"github.com/workbench-labs/workbench/bus"
	"github.com/workbench-labs/workbench/interact"
)

// ErrNoUpdate is returned by Checker.Check when the installed version is
// already the latest. It is an expected negative outcome, not a failure.
var ErrNoUpdate = errors.New("no update available")

// Manifest describes an available application update. Only Version is
// interpreted by this package; everything else is carried for presenters.
type Manifest struct {
	Version string `json:"version"`
	Notes   string `json:"notes,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Checker resolves whether an update is available.
type Checker interface {
	// Check returns the manifest of an available update, ErrNoUpdate when
	// the installed version is current, or any other error when the check
	// itself failed.
	Check(ctx context.Context) (*Manifest, error)
}

// Installer downloads and installs an update. A single attempt is made per
// workflow run; retry is the user's decision.
type Installer interface {
	Install(ctx context.Context, m *Manifest) error
}

// Relauncher restarts the application after a successful install.
type Relauncher interface {
	Relaunch(ctx context.Context) error
}

// Emitter is the optional cross-process mirror for loading indicators.
type Emitter interface {
	Emit(event workbench.Event)
}

// OrchestratorConfig configures an Orchestrator.
type OrchestratorConfig struct {
	Checker    Checker
	Installer  Installer
	Relauncher Relauncher

	// Interact builds the confirmation dialog and outcome notifications.
	Interact *interact.Interactor

	// Bus receives loading indicator events.
	Bus bus.Publisher

	// Global, if set, mirrors loading indicators to the host process.
	Global Emitter

	// ReleasePage is the URL template for a version's release page;
	// %s is replaced with the manifest version.
	ReleasePage string

	// Tracer, if set, records one span per workflow stage.
	Tracer trace.Tracer

	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// RunOptions control one workflow run.
type RunOptions struct {
	// Quiet suppresses the "already the latest version" notification.
	// Background runs set it; user-initiated runs do not.
	Quiet bool
}

// Orchestrator runs the four-stage update workflow. Once the install stage
// begins the workflow cannot be aborted; cancellation is expressed only
// through the confirmation stage's declined outcome.
type Orchestrator struct {
	checker    Checker
	installer  Installer
	relauncher Relauncher
	interact   *interact.Interactor
	bus        bus.Publisher
	global     Emitter

	releasePage string
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewOrchestrator creates an Orchestrator. Checker, Installer, Relauncher,
// Interact, and Bus are required.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Checker == nil {
		return nil, errors.New("update: checker is required")
	}
	if cfg.Installer == nil {
		return nil, errors.New("update: installer is required")
	}
	if cfg.Relauncher == nil {
		return nil, errors.New("update: relauncher is required")
	}
	if cfg.Interact == nil {
		return nil, errors.New("update: interactor is required")
	}
	if cfg.Bus == nil {
		return nil, errors.New("update: bus is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		checker:     cfg.Checker,
		installer:   cfg.Installer,
		relauncher:  cfg.Relauncher,
		interact:    cfg.Interact,
		bus:         cfg.Bus,
		global:      cfg.Global,
		releasePage: cfg.ReleasePage,
		tracer:      cfg.Tracer,
		logger:      logger,
	}, nil
}

// Run executes the workflow: check, confirm, install, relaunch. Every exit
// path clears any loading indicator it set. Failures surface to the user as
// notifications; a declined confirmation terminates silently.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) {
	manifest, ok := o.check(ctx, opts)
	if !ok {
		return
	}
	if !o.confirm(ctx, manifest) {
		return
	}
	if !o.install(ctx, manifest) {
		return
	}
	o.relaunch(ctx)
}

// check runs stage one and reports whether the workflow should continue.
func (o *Orchestrator) check(ctx context.Context, opts RunOptions) (*Manifest, bool) {
	ctx, end := o.stage(ctx, "check")
	defer end(nil)

	o.setLoading("Checking for update...")
	manifest, err := o.checker.Check(ctx)
	o.clearLoading()

	switch {
	case errors.Is(err, ErrNoUpdate):
		if !opts.Quiet {
			o.interact.TipSuccess("Already the latest version.")
		}
		return nil, false
	case err != nil:
		end(err)
		o.logger.Error("update check failed", "error", err)
		o.interact.TipError(fmt.Sprintf("Failed to check for update: %s", err))
		return nil, false
	}
	return manifest, true
}

// confirm runs stage two and reports whether the user accepted.
func (o *Orchestrator) confirm(ctx context.Context, m *Manifest) bool {
	ctx, end := o.stage(ctx, "confirm")
	defer end(nil)

	message := fmt.Sprintf("New version %s is available.", m.Version)
	if page := o.releasePageFor(m); page != "" {
		message = fmt.Sprintf("%s See what changed: %s", message, page)
	}

	outcome, err := o.interact.ConfirmUpdate(message).Wait(ctx)
	if err != nil {
		o.logger.Debug("update confirmation abandoned", "error", err)
		return false
	}
	// A decline is an intentional quiet exit, not an error.
	return outcome == interact.OutcomeAccepted
}

// install runs stage three and reports whether the workflow should continue.
func (o *Orchestrator) install(ctx context.Context, m *Manifest) bool {
	ctx, end := o.stage(ctx, "install")

	o.setLoading("Installing...")
	err := o.installer.Install(ctx, m)
	end(err)
	if err != nil {
		o.clearLoading()
		o.logger.Error("update install failed", "version", m.Version, "error", err)
		o.interact.TipError(fmt.Sprintf("Failed to install update: %s", err))
		return false
	}
	return true
}

// relaunch runs stage four. The installing indicator is still active on
// entry; it is swapped for a restarting indicator, which is cleared on
// every exit path.
func (o *Orchestrator) relaunch(ctx context.Context) {
	ctx, end := o.stage(ctx, "relaunch")

	o.clearLoading()
	o.setLoading("Restarting...")
	defer o.clearLoading()

	err := o.relauncher.Relaunch(ctx)
	end(err)
	if err != nil {
		o.logger.Error("relaunch failed", "error", err)
		o.interact.AlertError(fmt.Sprintf("The update was installed but the application could not restart itself. Please relaunch it manually. (%s)", err))
	}
}

func (o *Orchestrator) releasePageFor(m *Manifest) string {
	if m.URL != "" {
		return m.URL
	}
	if o.releasePage == "" {
		return ""
	}
	return fmt.Sprintf(o.releasePage, m.Version)
}

func (o *Orchestrator) setLoading(text string) {
	o.publishLoading(&workbench.Loading{Active: true, Text: text})
}

func (o *Orchestrator) clearLoading() {
	o.publishLoading(&workbench.Loading{Active: false})
}

func (o *Orchestrator) publishLoading(event *workbench.Loading) {
	o.bus.Publish(event)
	if o.global != nil {
		o.global.Emit(event)
	}
}

// stage opens a span for one workflow stage when tracing is configured.
// The returned end function records the stage error and is safe to call
// more than once with nil.
func (o *Orchestrator) stage(ctx context.Context, name string) (context.Context, func(error)) {
	if o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, "update."+name)
	var ended bool
	return ctx, func(err error) {
		if ended {
			return
		}
		ended = true
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// Package interact builds user-facing confirmation dialogs and transient
// notifications on top of the local dispatcher. Confirmation flows bridge
// the fire-and-forget publish/subscribe bus into a result-bearing
// continuation: a Decision that completes affirmatively when the user
// confirms and negatively when they cancel or dismiss.
package interact

import (
	"context"
	"log/slog"
	"sync"

	workbench "github.com/workbench-labs/workbench"
	"github.com/workbench-labs/workbench/bus"
)

// SystemDialogTitle is the fixed title used by ConfirmSystem.
const SystemDialogTitle = "System"

// Outcome is the two-variant result of a confirmation flow.
type Outcome int

const (
	// OutcomeDeclined means the user cancelled or dismissed the dialog.
	// It is a normal completion, not an error.
	OutcomeDeclined Outcome = iota

	// OutcomeAccepted means the user invoked the affirmative action.
	OutcomeAccepted
)

// String returns a readable name for the outcome.
func (o Outcome) String() string {
	if o == OutcomeAccepted {
		return "accepted"
	}
	return "declined"
}

// Decision is the continuation returned by a confirmation flow. It resolves
// exactly once, to Accepted or Declined; there is no timeout-driven
// resolution, the flow stays open until a user action fires.
type Decision struct {
	once sync.Once
	ch   chan Outcome
}

func newDecision() *Decision {
	return &Decision{ch: make(chan Outcome, 1)}
}

// resolve completes the decision. Later calls are no-ops.
func (d *Decision) resolve(o Outcome) {
	d.once.Do(func() { d.ch <- o })
}

// Wait blocks until the user acts or ctx ends. A declined dialog is a
// normal Outcome, never an error; the only error is the context's.
func (d *Decision) Wait(ctx context.Context) (Outcome, error) {
	select {
	case o := <-d.ch:
		return o, nil
	case <-ctx.Done():
		return OutcomeDeclined, ctx.Err()
	}
}

// InteractorConfig configures an Interactor.
type InteractorConfig struct {
	// Bus is the local dispatcher dialog and tip requests are published on.
	Bus bus.Publisher

	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Interactor publishes dialog and tip requests on the local dispatcher.
type Interactor struct {
	bus    bus.Publisher
	logger *slog.Logger
}

// New creates an Interactor. cfg.Bus must be set.
func New(cfg InteractorConfig) *Interactor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Interactor{bus: cfg.Bus, logger: logger}
}

// Confirm presents a two-action ("Cancel"/"Confirm") dialog and returns its
// continuation. Dismissing the dialog without an action resolves it
// declined.
func (i *Interactor) Confirm(title, content string) *Decision {
	return i.confirm(title, content, "Confirm")
}

// ConfirmSystem is Confirm with the fixed system title.
func (i *Interactor) ConfirmSystem(content string) *Decision {
	return i.confirm(SystemDialogTitle, content, "Confirm")
}

// ConfirmUpdate presents the update-specific two-action
// ("Cancel"/"Install") dialog used by the update workflow.
func (i *Interactor) ConfirmUpdate(content string) *Decision {
	return i.confirm("Update Available", content, "Install")
}

func (i *Interactor) confirm(title, content, acceptLabel string) *Decision {
	d := newDecision()
	req := workbench.NewDialogRequest(title, content)
	req.Actions = []workbench.DialogAction{
		{Label: "Cancel"},
		{Label: acceptLabel, Style: "primary"},
	}
	req.Actions[0].Invoke = func() {
		req.Visible = false
		d.resolve(OutcomeDeclined)
	}
	req.Actions[1].Invoke = func() {
		req.Visible = false
		d.resolve(OutcomeAccepted)
	}
	req.OnDismiss = func() { d.resolve(OutcomeDeclined) }

	i.bus.Publish(req)
	return d
}

// ShowContent presents a non-actionable dialog with a close affordance.
func (i *Interactor) ShowContent(content string) {
	req := workbench.NewDialogRequest("", content)
	req.CloseButton = true
	i.bus.Publish(req)
}

// AlertError presents a single-action ("Close") error dialog. Fire and
// forget; there is no continuation.
func (i *Interactor) AlertError(content string) {
	req := workbench.NewDialogRequest("Error", content)
	req.Icon = "CircleCloseFilled"
	req.IconColor = "red"
	req.Actions = []workbench.DialogAction{{Label: "Close"}}
	req.Actions[0].Invoke = func() { req.Visible = false }
	i.bus.Publish(req)
}

// TipError shows a transient error notification.
func (i *Interactor) TipError(content string) {
	i.bus.Publish(workbench.NewTipRequest(workbench.SeverityError, content))
}

// TipWarn shows a transient warning notification.
func (i *Interactor) TipWarn(content string) {
	i.bus.Publish(workbench.NewTipRequest(workbench.SeverityWarn, content))
}

// TipSuccess shows a transient success notification.
func (i *Interactor) TipSuccess(content string) {
	i.bus.Publish(workbench.NewTipRequest(workbench.SeveritySuccess, content))
}

// TipInfo shows a transient informational notification.
func (i *Interactor) TipInfo(content string) {
	i.bus.Publish(workbench.NewTipRequest(workbench.SeverityInfo, content))
}

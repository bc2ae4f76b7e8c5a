package interact

import (
	"context"
	"log/slog"
	"testing"
	"time"

	workbench "github.com/workbench-labs/workbench"
	"github.com/workbench-labs/workbench/bus"
)

// capture collects everything published on a registry.
func capture(t *testing.T) (*bus.Registry, *[]workbench.Event) {
	t.Helper()
	r := bus.NewRegistry(bus.RegistryConfig{Logger: slog.New(slog.DiscardHandler)})
	var events []workbench.Event
	r.SubscribeAll(func(e workbench.Event) { events = append(events, e) })
	return r, &events
}

func lastDialog(t *testing.T, events []workbench.Event) *workbench.DialogRequest {
	t.Helper()
	for i := len(events) - 1; i >= 0; i-- {
		if d, ok := events[i].(*workbench.DialogRequest); ok {
			return d
		}
	}
	t.Fatal("no dialog request was published")
	return nil
}

func newTestInteractor(t *testing.T) (*Interactor, *[]workbench.Event) {
	t.Helper()
	r, events := capture(t)
	return New(InteractorConfig{Bus: r, Logger: slog.New(slog.DiscardHandler)}), events
}

func waitOutcome(t *testing.T, d *Decision) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	o, err := d.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return o
}

func TestConfirm_AcceptResolvesAffirmatively(t *testing.T) {
	i, events := newTestInteractor(t)

	d := i.Confirm("Delete key", "Really delete /app/config?")
	dialog := lastDialog(t, *events)

	if dialog.Title != "Delete key" || !dialog.Visible {
		t.Errorf("dialog = %+v, want visible with given title", dialog)
	}
	if len(dialog.Actions) != 2 || dialog.Actions[0].Label != "Cancel" || dialog.Actions[1].Label != "Confirm" {
		t.Fatalf("actions = %v, want [Cancel Confirm]", dialog.Actions)
	}

	dialog.Actions[1].Invoke()

	if got := waitOutcome(t, d); got != OutcomeAccepted {
		t.Errorf("outcome = %v, want accepted", got)
	}
	if dialog.Visible {
		t.Error("confirm action should hide the dialog")
	}
}

func TestConfirm_CancelResolvesNegatively(t *testing.T) {
	i, events := newTestInteractor(t)

	d := i.Confirm("t", "c")
	dialog := lastDialog(t, *events)
	dialog.Actions[0].Invoke()

	if got := waitOutcome(t, d); got != OutcomeDeclined {
		t.Errorf("outcome = %v, want declined", got)
	}
}

func TestConfirm_DismissResolvesNegatively(t *testing.T) {
	i, events := newTestInteractor(t)

	d := i.Confirm("t", "c")
	lastDialog(t, *events).Dismiss()

	if got := waitOutcome(t, d); got != OutcomeDeclined {
		t.Errorf("outcome = %v, want declined on dismiss", got)
	}
}

func TestConfirm_ResolvesExactlyOnce(t *testing.T) {
	i, events := newTestInteractor(t)

	d := i.Confirm("t", "c")
	dialog := lastDialog(t, *events)

	// Confirm first, then attempt every other completion path.
	dialog.Actions[1].Invoke()
	dialog.Actions[0].Invoke()
	dialog.Dismiss()

	if got := waitOutcome(t, d); got != OutcomeAccepted {
		t.Errorf("outcome = %v, want the first resolution to win", got)
	}

	// No second resolution may be buffered.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := d.Wait(ctx); err == nil {
		t.Error("second Wait() resolved; decision must complete exactly once")
	}
}

func TestConfirmSystem_UsesFixedTitle(t *testing.T) {
	i, events := newTestInteractor(t)

	i.ConfirmSystem("sure?")

	if got := lastDialog(t, *events).Title; got != SystemDialogTitle {
		t.Errorf("title = %q, want %q", got, SystemDialogTitle)
	}
}

func TestConfirmUpdate_InstallAction(t *testing.T) {
	i, events := newTestInteractor(t)

	d := i.ConfirmUpdate("New version 2.0.0 is available.")
	dialog := lastDialog(t, *events)

	if len(dialog.Actions) != 2 || dialog.Actions[1].Label != "Install" {
		t.Fatalf("actions = %v, want [Cancel Install]", dialog.Actions)
	}

	dialog.Actions[1].Invoke()
	if got := waitOutcome(t, d); got != OutcomeAccepted {
		t.Errorf("outcome = %v, want accepted", got)
	}
}

func TestShowContent_NoActions(t *testing.T) {
	i, events := newTestInteractor(t)

	i.ShowContent("details")
	dialog := lastDialog(t, *events)

	if len(dialog.Actions) != 0 {
		t.Errorf("actions = %v, want none", dialog.Actions)
	}
	if !dialog.CloseButton {
		t.Error("content dialog should carry a close affordance")
	}
}

func TestAlertError_SingleCloseAction(t *testing.T) {
	i, events := newTestInteractor(t)

	i.AlertError("disk on fire")
	dialog := lastDialog(t, *events)

	if len(dialog.Actions) != 1 || dialog.Actions[0].Label != "Close" {
		t.Fatalf("actions = %v, want single Close", dialog.Actions)
	}
	dialog.Actions[0].Invoke()
	if dialog.Visible {
		t.Error("close action should hide the dialog")
	}
}

func TestTips_SeverityPerBuilder(t *testing.T) {
	i, events := newTestInteractor(t)

	i.TipError("e")
	i.TipWarn("w")
	i.TipSuccess("s")
	i.TipInfo("i")

	want := []workbench.Severity{
		workbench.SeverityError,
		workbench.SeverityWarn,
		workbench.SeveritySuccess,
		workbench.SeverityInfo,
	}
	if len(*events) != 4 {
		t.Fatalf("published %d events, want 4", len(*events))
	}
	for n, e := range *events {
		tip, ok := e.(*workbench.TipRequest)
		if !ok {
			t.Fatalf("event %d is %T, want *TipRequest", n, e)
		}
		if tip.Severity != want[n] {
			t.Errorf("tip %d severity = %v, want %v", n, tip.Severity, want[n])
		}
		if tip.Timeout != workbench.TipTimeout {
			t.Errorf("tip %d timeout = %v, want %v", n, tip.Timeout, workbench.TipTimeout)
		}
	}
}

func TestDecision_WaitContextCancelled(t *testing.T) {
	i, _ := newTestInteractor(t)

	d := i.Confirm("t", "c")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.Wait(ctx); err == nil {
		t.Error("Wait() with cancelled context should return the context error")
	}
}

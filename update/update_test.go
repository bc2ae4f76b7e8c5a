package update

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	workbench "github.com/workbench-labs/workbench"
	"github.com/workbench-labs/workbench/bus"
	"github.com/workbench-labs/workbench/interact"
)

type fakeChecker struct {
	manifest *Manifest
	err      error
	calls    int
}

func (f *fakeChecker) Check(context.Context) (*Manifest, error) {
	f.calls++
	return f.manifest, f.err
}

type fakeInstaller struct {
	err   error
	calls int
}

func (f *fakeInstaller) Install(context.Context, *Manifest) error {
	f.calls++
	return f.err
}

type fakeRelauncher struct {
	err   error
	calls int
}

func (f *fakeRelauncher) Relaunch(context.Context) error {
	f.calls++
	return f.err
}

// workflowHarness wires an orchestrator to a capturing bus and an optional
// scripted answer for the confirmation dialog.
type workflowHarness struct {
	orch       *Orchestrator
	events     *[]workbench.Event
	checker    *fakeChecker
	installer  *fakeInstaller
	relauncher *fakeRelauncher
}

// answer selects which dialog action the scripted user presses.
type answer int

const (
	noAnswer answer = iota
	pressCancel
	pressInstall
)

func newHarness(t *testing.T, checker *fakeChecker, respond answer) *workflowHarness {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	registry := bus.NewRegistry(bus.RegistryConfig{Logger: logger})

	var events []workbench.Event
	registry.SubscribeAll(func(e workbench.Event) { events = append(events, e) })

	if respond != noAnswer {
		registry.Subscribe(workbench.KindDialog, func(e workbench.Event) {
			dialog := e.(*workbench.DialogRequest)
			if len(dialog.Actions) != 2 {
				return
			}
			if respond == pressInstall {
				dialog.Actions[1].Invoke()
			} else {
				dialog.Actions[0].Invoke()
			}
		})
	}

	installer := &fakeInstaller{}
	relauncher := &fakeRelauncher{}
	orch, err := NewOrchestrator(OrchestratorConfig{
		Checker:     checker,
		Installer:   installer,
		Relauncher:  relauncher,
		Interact:    interact.New(interact.InteractorConfig{Bus: registry, Logger: logger}),
		Bus:         registry,
		ReleasePage: "https://example.com/releases/%s",
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	return &workflowHarness{
		orch:       orch,
		events:     &events,
		checker:    checker,
		installer:  installer,
		relauncher: relauncher,
	}
}

func (h *workflowHarness) loadingStarts() int {
	n := 0
	for _, e := range *h.events {
		if l, ok := e.(*workbench.Loading); ok && l.Active {
			n++
		}
	}
	return n
}

func (h *workflowHarness) loadingStops() int {
	n := 0
	for _, e := range *h.events {
		if l, ok := e.(*workbench.Loading); ok && !l.Active {
			n++
		}
	}
	return n
}

func (h *workflowHarness) tips() []*workbench.TipRequest {
	var tips []*workbench.TipRequest
	for _, e := range *h.events {
		if tip, ok := e.(*workbench.TipRequest); ok {
			tips = append(tips, tip)
		}
	}
	return tips
}

func (h *workflowHarness) dialogs() []*workbench.DialogRequest {
	var dialogs []*workbench.DialogRequest
	for _, e := range *h.events {
		if d, ok := e.(*workbench.DialogRequest); ok {
			dialogs = append(dialogs, d)
		}
	}
	return dialogs
}

// lastLoadingIsStop reports whether the final loading event cleared the
// indicator, i.e. no indicator is left active at workflow end.
func (h *workflowHarness) lastLoadingIsStop() bool {
	for i := len(*h.events) - 1; i >= 0; i-- {
		if l, ok := (*h.events)[i].(*workbench.Loading); ok {
			return !l.Active
		}
	}
	return true
}

func TestRun_NoUpdate(t *testing.T) {
	h := newHarness(t, &fakeChecker{err: ErrNoUpdate}, noAnswer)

	h.orch.Run(context.Background(), RunOptions{})

	if h.loadingStarts() != 1 || h.loadingStops() != 1 {
		t.Errorf("loading start/stop = %d/%d, want 1/1", h.loadingStarts(), h.loadingStops())
	}
	tips := h.tips()
	if len(tips) != 1 || tips[0].Severity != workbench.SeveritySuccess {
		t.Fatalf("tips = %v, want exactly one success tip", tips)
	}
	if !strings.Contains(tips[0].Content, "latest version") {
		t.Errorf("tip content = %q, want latest-version wording", tips[0].Content)
	}
	if len(h.dialogs()) != 0 {
		t.Error("no dialog may be published in the no-update case")
	}
}

func TestRun_NoUpdateQuiet(t *testing.T) {
	h := newHarness(t, &fakeChecker{err: ErrNoUpdate}, noAnswer)

	h.orch.Run(context.Background(), RunOptions{Quiet: true})

	if len(h.tips()) != 0 {
		t.Errorf("quiet run published %d tips, want 0", len(h.tips()))
	}
}

func TestRun_CheckFailure(t *testing.T) {
	h := newHarness(t, &fakeChecker{err: errors.New("feed unreachable")}, noAnswer)

	h.orch.Run(context.Background(), RunOptions{})

	tips := h.tips()
	if len(tips) != 1 || tips[0].Severity != workbench.SeverityError {
		t.Fatalf("tips = %v, want exactly one error tip", tips)
	}
	if !strings.Contains(tips[0].Content, "feed unreachable") {
		t.Errorf("tip content = %q, want the failure detail", tips[0].Content)
	}
	if h.loadingStarts() != 1 || h.loadingStops() != 1 {
		t.Errorf("loading start/stop = %d/%d, want 1/1", h.loadingStarts(), h.loadingStops())
	}
}

func TestRun_Declined(t *testing.T) {
	h := newHarness(t, &fakeChecker{manifest: &Manifest{Version: "2.1.0"}}, pressCancel)

	h.orch.Run(context.Background(), RunOptions{})

	if h.installer.calls != 0 {
		t.Error("install must not run after a decline")
	}
	if h.relauncher.calls != 0 {
		t.Error("relaunch must not run after a decline")
	}
	if len(h.tips()) != 0 {
		t.Errorf("decline published %d tips, want silent exit", len(h.tips()))
	}
	if !h.lastLoadingIsStop() {
		t.Error("a loading indicator was left active")
	}
}

func TestRun_InstallFailure(t *testing.T) {
	h := newHarness(t, &fakeChecker{manifest: &Manifest{Version: "2.1.0"}}, pressInstall)
	h.installer.err = errors.New("disk full")

	h.orch.Run(context.Background(), RunOptions{})

	tips := h.tips()
	var errorTips []*workbench.TipRequest
	for _, tip := range tips {
		if tip.Severity == workbench.SeverityError {
			errorTips = append(errorTips, tip)
		}
	}
	if len(errorTips) != 1 {
		t.Fatalf("got %d error tips, want 1", len(errorTips))
	}
	if !strings.Contains(errorTips[0].Content, "disk full") {
		t.Errorf("tip content = %q, want install failure detail", errorTips[0].Content)
	}
	if h.relauncher.calls != 0 {
		t.Error("relaunch must not run after an install failure")
	}
	if !h.lastLoadingIsStop() {
		t.Error("a loading indicator was left active")
	}
}

func TestRun_Success(t *testing.T) {
	h := newHarness(t, &fakeChecker{manifest: &Manifest{Version: "2.1.0"}}, pressInstall)

	h.orch.Run(context.Background(), RunOptions{})

	if h.installer.calls != 1 || h.relauncher.calls != 1 {
		t.Errorf("install/relaunch calls = %d/%d, want 1/1", h.installer.calls, h.relauncher.calls)
	}
	if h.loadingStarts() != h.loadingStops() {
		t.Errorf("loading start/stop = %d/%d, want balanced", h.loadingStarts(), h.loadingStops())
	}
	if !h.lastLoadingIsStop() {
		t.Error("a loading indicator was left active at workflow end")
	}
}

func TestRun_RelaunchFailure(t *testing.T) {
	h := newHarness(t, &fakeChecker{manifest: &Manifest{Version: "2.1.0"}}, pressInstall)
	h.relauncher.err = errors.New("exec blocked")

	h.orch.Run(context.Background(), RunOptions{})

	var alert *workbench.DialogRequest
	for _, d := range h.dialogs() {
		if len(d.Actions) == 1 && d.Actions[0].Label == "Close" {
			alert = d
		}
	}
	if alert == nil {
		t.Fatal("relaunch failure must raise an error alert")
	}
	if !strings.Contains(alert.Content, "manually") {
		t.Errorf("alert content = %q, want manual-relaunch instruction", alert.Content)
	}
	if !h.lastLoadingIsStop() {
		t.Error("a loading indicator was left active after relaunch failure")
	}
}

func TestRun_ConfirmMessageEmbedsVersionAndReleasePage(t *testing.T) {
	h := newHarness(t, &fakeChecker{manifest: &Manifest{Version: "3.0.0"}}, pressCancel)

	h.orch.Run(context.Background(), RunOptions{})

	dialogs := h.dialogs()
	if len(dialogs) != 1 {
		t.Fatalf("got %d dialogs, want 1", len(dialogs))
	}
	content := dialogs[0].Content
	if !strings.Contains(content, "3.0.0") {
		t.Errorf("dialog content = %q, want manifest version embedded", content)
	}
	if !strings.Contains(content, "https://example.com/releases/3.0.0") {
		t.Errorf("dialog content = %q, want release page link", content)
	}
}

func TestNewOrchestrator_Validation(t *testing.T) {
	if _, err := NewOrchestrator(OrchestratorConfig{}); err == nil {
		t.Error("NewOrchestrator() without capabilities should fail")
	}
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	workbench "github.com/workbench-labs/workbench"
	"github.com/workbench-labs/workbench/update"
)

func manifestServer(t *testing.T, manifest update.Manifest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(manifest); err != nil {
			t.Errorf("encoding manifest: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckCmdUpdateAvailable(t *testing.T) {
	srv := manifestServer(t, update.Manifest{
		Version: "2.0.0",
		Notes:   "Bug fixes",
		URL:     "https://example.com/download/2.0.0",
	})

	cmd := NewCheckCmd("1.0.0")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--manifest-url", srv.URL})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	output := out.String()
	if !strings.Contains(output, "Update available: 2.0.0") {
		t.Errorf("output missing availability line: %q", output)
	}
	if !strings.Contains(output, "Bug fixes") {
		t.Errorf("output missing notes: %q", output)
	}
	if !strings.Contains(output, "https://example.com/download/2.0.0") {
		t.Errorf("output missing download URL: %q", output)
	}
}

func TestCheckCmdAlreadyLatest(t *testing.T) {
	srv := manifestServer(t, update.Manifest{Version: "1.0.0"})

	cmd := NewCheckCmd("1.0.0")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--manifest-url", srv.URL})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "Already the latest version") {
		t.Errorf("output = %q", out.String())
	}
}

func TestCheckCmdFeedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cmd := NewCheckCmd("1.0.0")
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--manifest-url", srv.URL})

	err := cmd.Execute()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != exitCheck {
		t.Errorf("exit code = %d, want %d", exitErr.Code, exitCheck)
	}
}

func TestCheckCmdRequiresManifestURL(t *testing.T) {
	cmd := NewCheckCmd("1.0.0")
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != exitConfig {
		t.Errorf("exit code = %d, want %d", exitErr.Code, exitConfig)
	}
}

func TestBuildStreamURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		replay  int
		want    string
		wantErr bool
	}{
		{
			name: "server root",
			base: "http://127.0.0.1:8190",
			want: "http://127.0.0.1:8190/api/events/stream",
		},
		{
			name: "event endpoint",
			base: "http://127.0.0.1:8190/api/events",
			want: "http://127.0.0.1:8190/api/events/stream",
		},
		{
			name:   "with replay",
			base:   "http://bridge.local:9000",
			replay: 25,
			want:   "http://bridge.local:9000/api/events/stream?replay=25",
		},
		{
			name:    "missing scheme",
			base:    "127.0.0.1:8190",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildStreamURL(tt.base, tt.replay)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildStreamURL: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintStream(t *testing.T) {
	input := strings.Join([]string{
		": ping",
		"",
		"id: abc",
		"event: tip",
		`data: {"content":"hello"}`,
		"",
		"id: def",
		"event: close_tab",
		`data: {"name":"conn-a"}`,
		"",
	}, "\n")

	var out bytes.Buffer
	if err := printStream(&out, strings.NewReader(input)); err != nil {
		t.Fatalf("printStream: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2: %q", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "tip\t") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "close_tab\t") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestTerminalPresenterDialogChoice(t *testing.T) {
	var out bytes.Buffer
	p := newTerminalPresenter(strings.NewReader("2\n"), &out)

	var accepted bool
	req := workbench.NewDialogRequest("Update Available", "New version 2.0.0 is available.")
	req.Actions = []workbench.DialogAction{
		{Label: "Cancel", Invoke: func() {}},
		{Label: "Install", Invoke: func() { accepted = true }},
	}

	p.handle(req)

	if !accepted {
		t.Error("expected second action to be invoked")
	}
	if !strings.Contains(out.String(), "Update Available") {
		t.Errorf("output missing title: %q", out.String())
	}
	if !strings.Contains(out.String(), "2) Install") {
		t.Errorf("output missing action menu: %q", out.String())
	}
}

func TestTerminalPresenterDialogDismiss(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "eof", input: ""},
		{name: "not a number", input: "nope\n"},
		{name: "out of range", input: "7\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTerminalPresenter(strings.NewReader(tt.input), &bytes.Buffer{})

			var dismissed, invoked bool
			req := workbench.NewDialogRequest("System", "Proceed?")
			req.Actions = []workbench.DialogAction{
				{Label: "Cancel", Invoke: func() { invoked = true }},
				{Label: "Confirm", Invoke: func() { invoked = true }},
			}
			req.OnDismiss = func() { dismissed = true }

			p.handle(req)

			if invoked {
				t.Error("no action should be invoked")
			}
			if !dismissed {
				t.Error("dialog should be dismissed")
			}
		})
	}
}

func TestTerminalPresenterTipAndLoading(t *testing.T) {
	var out bytes.Buffer
	p := newTerminalPresenter(strings.NewReader(""), &out)

	p.handle(workbench.NewTipRequest(workbench.SeveritySuccess, "Copied to clipboard."))
	p.handle(&workbench.Loading{Active: true, Text: "Installing..."})
	p.handle(&workbench.Loading{Active: false})

	output := out.String()
	if !strings.Contains(output, "[success] Copied to clipboard.") {
		t.Errorf("output missing tip: %q", output)
	}
	if !strings.Contains(output, "... Installing...") {
		t.Errorf("output missing loading line: %q", output)
	}
	if strings.Count(output, "\n") != 2 {
		t.Errorf("inactive loading should not print: %q", output)
	}
}

func TestBinaryInstallerRequiresURL(t *testing.T) {
	installer := &binaryInstaller{}
	err := installer.Install(context.Background(), &update.Manifest{Version: "2.0.0"})
	if err == nil {
		t.Fatal("expected error for manifest without URL")
	}
	if !strings.Contains(err.Error(), "download URL") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBridgeCmdServesAndShutsDown(t *testing.T) {
	dir := t.TempDir()

	cmd := NewBridgeCmd("1.0.0")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{
		"--listen", "127.0.0.1:0",
		"--journal-path", dir + "/journal.db",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("ExecuteContext: %v", err)
	}
	if !strings.Contains(out.String(), "listening on") {
		t.Errorf("output = %q", out.String())
	}
}

func TestExitErrorMessage(t *testing.T) {
	err := exitError(exitRuntime, "stream ended: %v", fmt.Errorf("reset"))
	if err.Code != exitRuntime {
		t.Errorf("code = %d", err.Code)
	}
	if err.Error() != "stream ended: reset" {
		t.Errorf("message = %q", err.Error())
	}
}

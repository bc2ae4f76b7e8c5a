package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/workbench-labs/workbench/bus"
	"github.com/workbench-labs/workbench/clipboard"
	"github.com/workbench-labs/workbench/interact"
)

// NewCopyCmd creates the "copy" subcommand.
func NewCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy [text]",
		Short: "Copy text to the system clipboard",
		Long:  "Copy text to the system clipboard. Reads stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCopy,
	}
}

func runCopy(cmd *cobra.Command, args []string) error {
	var text string
	if len(args) == 1 {
		text = args[0]
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return exitError(exitRuntime, "reading stdin: %v", err)
		}
		text = strings.TrimRight(string(data), "\n")
	}

	logger := newLogger(cmd)
	registry := bus.NewRegistry(bus.RegistryConfig{Logger: logger})
	presenter := newTerminalPresenter(cmd.InOrStdin(), cmd.OutOrStdout())
	for _, sub := range presenter.attach(registry) {
		defer sub.Close()
	}

	bridge, err := clipboard.NewBridge(clipboard.BridgeConfig{
		Writer:   &systemClipboard{},
		Interact: interact.New(interact.InteractorConfig{Bus: registry, Logger: logger}),
		Logger:   logger,
	})
	if err != nil {
		return exitError(exitRuntime, "%v", err)
	}

	bridge.Copy(cmd.Context(), text)
	return nil
}

// systemClipboard writes through the platform clipboard utility.
type systemClipboard struct{}

func (*systemClipboard) WriteText(ctx context.Context, text string) error {
	name, args, err := clipboardCommand()
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewBufferString(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func clipboardCommand() (string, []string, error) {
	switch runtime.GOOS {
	case "darwin":
		return "pbcopy", nil, nil
	case "windows":
		return "clip", nil, nil
	default:
		if _, err := exec.LookPath("wl-copy"); err == nil {
			return "wl-copy", nil, nil
		}
		if _, err := exec.LookPath("xclip"); err == nil {
			return "xclip", []string{"-selection", "clipboard"}, nil
		}
		return "", nil, fmt.Errorf("no clipboard utility found (need wl-copy or xclip)")
	}
}

var _ clipboard.Writer = (*systemClipboard)(nil)

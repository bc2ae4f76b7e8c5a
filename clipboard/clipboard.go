// Package clipboard wraps the platform clipboard-write capability with
// user-facing success and failure notifications.
package clipboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/workbench-labs/workbench/interact"
)

// Writer is the external clipboard capability. Write-only, text-only.
type Writer interface {
	WriteText(ctx context.Context, text string) error
}

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	// Writer performs the actual clipboard write.
	Writer Writer

	// Interact publishes the outcome notifications.
	Interact *interact.Interactor

	// Logger receives write-failure diagnostics. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Bridge copies values to the clipboard and notifies the user of the
// outcome.
type Bridge struct {
	writer   Writer
	interact *interact.Interactor
	logger   *slog.Logger
}

// NewBridge creates a Bridge. Writer and Interact are required.
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	if cfg.Writer == nil {
		return nil, fmt.Errorf("clipboard: writer is required")
	}
	if cfg.Interact == nil {
		return nil, fmt.Errorf("clipboard: interactor is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{writer: cfg.Writer, interact: cfg.Interact, logger: logger}, nil
}

// Copy coerces value to text, writes it to the clipboard, and publishes a
// success tip or an error tip. Failures are additionally logged; nothing is
// returned to the caller.
func (b *Bridge) Copy(ctx context.Context, value any) {
	text := coerce(value)
	if err := b.writer.WriteText(ctx, text); err != nil {
		b.logger.Error("clipboard write failed", "error", err)
		b.interact.TipError(fmt.Sprintf("Failed to copy: %s", err))
		return
	}
	b.interact.TipSuccess("Copied to clipboard.")
}

// coerce renders a non-text value as text.
func coerce(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

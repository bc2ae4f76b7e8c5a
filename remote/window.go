package remote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	workbench "github.com/workbench-labs/workbench"
)

// Window is a logical window's receiving end. Implementations deliver an
// event to the surface identified by the label it was attached under.
type Window interface {
	// Deliver hands an event to the window. It may block until delivery
	// completes or ctx ends.
	Deliver(ctx context.Context, event workbench.Event) error
}

// WindowsConfig configures a Windows registry.
type WindowsConfig struct {
	// DeliverTimeout bounds one delivery attempt (default 5s).
	DeliverTimeout time.Duration

	// Logger receives delivery diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Windows resolves window handles by logical label and delivers events to
// them. Delivery is best-effort: emitting to a label with no attached
// window is a logged no-op, never an error. A miss never creates a handle;
// windows are created by the shell, not by a message addressed to them.
type Windows struct {
	mu      sync.RWMutex
	byLabel map[string]Window

	timeout time.Duration
	logger  *slog.Logger
}

// NewWindows creates an empty window registry.
func NewWindows(cfg WindowsConfig) *Windows {
	timeout := cfg.DeliverTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Windows{
		byLabel: make(map[string]Window),
		timeout: timeout,
		logger:  logger,
	}
}

// Attach registers a window under a label, replacing any previous handle
// for that label.
func (w *Windows) Attach(label string, win Window) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.byLabel[label] = win
}

// Detach removes the handle for a label. Unknown labels are ignored.
func (w *Windows) Detach(label string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.byLabel, label)
}

// Lookup returns the window attached under label, if any.
func (w *Windows) Lookup(label string) (Window, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	win, ok := w.byLabel[label]
	return win, ok
}

// Labels returns the currently attached labels.
func (w *Windows) Labels() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	labels := make([]string, 0, len(w.byLabel))
	for label := range w.byLabel {
		labels = append(labels, label)
	}
	return labels
}

// Emit delivers an event to the window attached under label, asynchronously
// and fire-and-forget. A missing window or a failed delivery is recorded on
// the logger only.
func (w *Windows) Emit(label string, event workbench.Event) {
	win, ok := w.Lookup(label)
	if !ok {
		w.logger.Debug("no window for label, dropping event",
			"label", label,
			"kind", event.EventKind().String(),
		)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		if err := win.Deliver(ctx, event); err != nil {
			w.logger.Error("window delivery failed",
				"label", label,
				"kind", event.EventKind().String(),
				"error", err,
			)
		}
	}()
}

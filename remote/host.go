package remote

import (
	"io"
	"log/slog"
	"net/http"

	workbench "github.com/workbench-labs/workbench"
	"github.com/workbench-labs/workbench/bus"
)

const defaultMaxBody = 1 << 20

// HostHandlerConfig configures a HostHandler.
type HostHandlerConfig struct {
	// Bus receives every accepted event.
	Bus bus.Publisher

	// MaxBody bounds the request body size (default 1 MiB).
	MaxBody int64

	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// HostHandler is the receive side of the global channel: an http.Handler
// the host process mounts to accept globally-emitted events and republish
// them on its own dispatcher.
type HostHandler struct {
	bus     bus.Publisher
	maxBody int64
	logger  *slog.Logger
}

// NewHostHandler creates a HostHandler. cfg.Bus must be set.
func NewHostHandler(cfg HostHandlerConfig) *HostHandler {
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HostHandler{bus: cfg.Bus, maxBody: maxBody, logger: logger}
}

// ServeHTTP implements http.Handler. It accepts a POSTed event envelope,
// reconstructs the typed payload, and publishes it locally. The emitter is
// never waited on: a 202 is written as soon as the event is accepted.
func (h *HostHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	event, err := workbench.Decode(body)
	if err != nil {
		h.logger.Warn("rejecting malformed event", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.bus.Publish(event)
	w.WriteHeader(http.StatusAccepted)
}

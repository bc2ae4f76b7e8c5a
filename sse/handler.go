// Package sse provides a Server-Sent Events handler for streaming workbench
// events to HTTP clients. It supports replaying journaled events and
// subscribing to live events via the dispatcher.
package sse

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/workbench-labs/workbench"
	"github.com/workbench-labs/workbench/bus"
	"github.com/workbench-labs/workbench/journal"
)

// HeartbeatInterval is the interval between SSE heartbeat comments.
const HeartbeatInterval = 15 * time.Second

// liveBuffer is the per-client live event buffer. Events beyond it are
// dropped rather than blocking the dispatcher.
const liveBuffer = 256

// Replayer supplies recent journaled entries for stream catch-up.
type Replayer interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// Bus is the dispatcher to subscribe live events from. Required.
	Bus bus.Dispatcher

	// Journal supplies replayed entries for the optional ?replay=n query
	// parameter. Nil disables replay.
	Journal Replayer

	// Logger receives stream diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Handler serves an SSE stream of workbench events. It optionally replays
// the most recent journaled events first, then streams live events from
// the dispatcher.
//
// SSE format:
//
//	id: {event id}
//	event: {kind}
//	data: {json envelope payload}
//
// A heartbeat comment ": ping\n\n" is sent every 15 seconds. The stream
// closes when the client disconnects.
type Handler struct {
	bus     bus.Dispatcher
	journal Replayer
	logger  *slog.Logger
}

// NewHandler creates a Handler from cfg.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Bus == nil {
		return nil, fmt.Errorf("sse: bus is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		bus:     cfg.Bus,
		journal: cfg.Journal,
		logger:  logger,
	}, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Parse optional ?replay= count.
	var replay int
	if replayStr := r.URL.Query().Get("replay"); replayStr != "" {
		parsed, err := strconv.Atoi(replayStr)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid replay parameter", http.StatusBadRequest)
			return
		}
		replay = parsed
	}
	if replay > 0 && h.journal == nil {
		http.Error(w, "replay not available", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()

	// Subscribe before replaying so events arriving during catch-up are
	// not missed.
	handler, live := bus.NewChannelHandler(liveBuffer)
	sub := h.bus.SubscribeAll(handler)
	defer sub.Close()

	if replay > 0 {
		if err := h.replayJournal(ctx, w, flusher, replay); err != nil {
			h.logger.Debug("sse replay ended", "error", err)
			return
		}
	}

	h.streamLive(ctx, w, flusher, live)
}

// replayJournal writes the most recent journal entries, oldest first.
func (h *Handler) replayJournal(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, limit int) error {
	entries, err := h.journal.Recent(ctx, limit)
	if err != nil {
		return err
	}

	// Recent returns newest-first; the stream wants chronological order.
	for i := len(entries) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		entry := entries[i]
		if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", entry.ID, entry.Kind, entry.Payload); err != nil {
			return err
		}
		flusher.Flush()
	}
	return nil
}

// streamLive streams dispatcher events until the client disconnects.
func (h *Handler) streamLive(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, live <-chan workbench.Event) {
	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event := <-live:
			if err := writeEvent(w, event); err != nil {
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent writes a single event in SSE format.
func writeEvent(w http.ResponseWriter, event workbench.Event) error {
	env, err := workbench.Wrap(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", env.ID, env.Kind, env.Payload)
	return err
}

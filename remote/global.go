// Package remote provides the asynchronous delivery channels of the
// workbench client: global emission to the host process and addressable
// delivery to logical windows. Both channels are fire-and-forget: failures
// are recorded on the diagnostic logger and never surfaced to the caller.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	workbench "github.com/workbench-labs/workbench"
)

const defaultQueueSize = 128

// GlobalConfig configures a Global channel.
type GlobalConfig struct {
	// Endpoint is the host process URL events are posted to.
	Endpoint string

	// Client is the HTTP client used for delivery. Defaults to a client
	// with a 10 second timeout.
	Client *http.Client

	// QueueSize bounds the number of events waiting for delivery
	// (default 128). Emit drops events when the queue is full.
	QueueSize int

	// Logger receives delivery diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// OnDeliver, if set, is called after each delivery attempt with its
	// error (nil on success). Used for metrics.
	OnDeliver func(err error)
}

// Global forwards events to the host process asynchronously. Emit returns
// immediately; a sender goroutine delivers queued events one at a time.
// There is no per-event retry and no ordering guarantee relative to local
// dispatch; after a delivery failure the sender pauses with exponential
// backoff before attempting the next queued event.
type Global struct {
	endpoint  string
	client    *http.Client
	logger    *slog.Logger
	onDeliver func(error)

	queue chan workbench.Event

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewGlobal creates a Global channel. cfg.Endpoint must be set.
func NewGlobal(cfg GlobalConfig) (*Global, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("remote: global endpoint is required")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Global{
		endpoint:  cfg.Endpoint,
		client:    client,
		logger:    logger,
		onDeliver: cfg.OnDeliver,
		queue:     make(chan workbench.Event, queueSize),
	}, nil
}

// Emit queues an event for delivery to the host process and returns
// immediately. If the queue is full the event is dropped and the drop is
// logged; callers must not rely on delivery.
func (g *Global) Emit(event workbench.Event) {
	select {
	case g.queue <- event:
	default:
		g.logger.Warn("global emit queue full, dropping event",
			"kind", event.EventKind().String(),
		)
	}
}

// Start launches the sender goroutine. It returns immediately.
func (g *Global) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return
	}
	g.started = true

	ctx, g.cancel = context.WithCancel(ctx)
	g.done = make(chan struct{})
	go g.sendLoop(ctx)
}

// Close stops the sender goroutine. Queued, undelivered events are
// discarded.
func (g *Global) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.started {
		return nil
	}
	g.cancel()
	<-g.done
	g.started = false
	return nil
}

func (g *Global) sendLoop(ctx context.Context) {
	defer close(g.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 0

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-g.queue:
			err := g.deliver(ctx, event)
			if g.onDeliver != nil {
				g.onDeliver(err)
			}
			if err == nil {
				bo.Reset()
				continue
			}
			g.logger.Error("global emit failed",
				"kind", event.EventKind().String(),
				"error", err,
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(bo.NextBackOff()):
			}
		}
	}
}

func (g *Global) deliver(ctx context.Context, event workbench.Event) error {
	body, err := workbench.Encode(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("host returned status %d", resp.StatusCode)
	}
	return nil
}

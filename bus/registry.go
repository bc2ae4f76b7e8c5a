package bus

import (
	"log/slog"
	"sync"
	"sync/atomic"

	workbench "github.com/workbench-labs/workbench"
)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Logger receives diagnostics for contained handler panics.
	// Defaults to slog.Default().
	Logger *slog.Logger

	// OnPanic, if set, is called after a handler panic has been contained.
	OnPanic func(kind workbench.Kind, recovered any)
}

// Registry is the process-wide subscriber registry backing the local
// dispatcher. It is constructed explicitly at startup and passed to every
// component that publishes or subscribes; there is no package-level
// singleton.
//
// Handlers for a kind run in registration order. A panicking handler is
// contained and logged; delivery continues with the next handler.
type Registry struct {
	mu   sync.RWMutex
	subs map[workbench.Kind][]*registration
	all  []*registration

	logger  *slog.Logger
	onPanic func(workbench.Kind, any)

	published atomic.Uint64
	delivered atomic.Uint64
	panics    atomic.Uint64
}

type registration struct {
	handler Handler
	closed  atomic.Bool

	// remove detaches the registration from its registry list.
	remove func()
}

// Close implements Subscription.
func (r *registration) Close() error {
	if r.closed.CompareAndSwap(false, true) {
		r.remove()
	}
	return nil
}

// NewRegistry creates an empty subscriber registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		subs:    make(map[workbench.Kind][]*registration),
		logger:  logger,
		onPanic: cfg.OnPanic,
	}
}

// Subscribe registers a handler for one kind. Duplicate registrations of the
// same handler are kept; each is invoked per publish.
func (r *Registry) Subscribe(kind workbench.Kind, h Handler) Subscription {
	reg := &registration{handler: h}
	reg.remove = func() { r.removeKind(kind, reg) }

	r.mu.Lock()
	r.subs[kind] = append(r.subs[kind], reg)
	r.mu.Unlock()
	return reg
}

// SubscribeAll registers a handler for every kind.
func (r *Registry) SubscribeAll(h Handler) Subscription {
	reg := &registration{handler: h}
	reg.remove = func() { r.removeAll(reg) }

	r.mu.Lock()
	r.all = append(r.all, reg)
	r.mu.Unlock()
	return reg
}

// Publish invokes every registered handler for the event's kind,
// synchronously on the calling goroutine, then the subscribe-all handlers.
// The handler list is snapshotted before the first invocation: subscribing
// or unsubscribing from inside a handler is safe, and a subscriber added
// mid-publish does not receive the in-flight event.
func (r *Registry) Publish(event workbench.Event) {
	kind := event.EventKind()

	r.mu.RLock()
	snapshot := make([]*registration, 0, len(r.subs[kind])+len(r.all))
	snapshot = append(snapshot, r.subs[kind]...)
	snapshot = append(snapshot, r.all...)
	r.mu.RUnlock()

	r.published.Add(1)
	for _, reg := range snapshot {
		if reg.closed.Load() {
			continue
		}
		r.invoke(kind, reg.handler, event)
	}
}

// invoke runs one handler with panic containment.
func (r *Registry) invoke(kind workbench.Kind, h Handler, event workbench.Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.panics.Add(1)
			r.logger.Error("event handler panicked",
				"kind", kind.String(),
				"panic", recovered,
			)
			if r.onPanic != nil {
				r.onPanic(kind, recovered)
			}
		}
	}()
	h(event)
	r.delivered.Add(1)
}

func (r *Registry) removeKind(kind workbench.Kind, reg *registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[kind] = removeRegistration(r.subs[kind], reg)
	if len(r.subs[kind]) == 0 {
		delete(r.subs, kind)
	}
}

func (r *Registry) removeAll(reg *registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = removeRegistration(r.all, reg)
}

func removeRegistration(regs []*registration, target *registration) []*registration {
	for i, reg := range regs {
		if reg == target {
			return append(regs[:i:i], regs[i+1:]...)
		}
	}
	return regs
}

// Stats is a point-in-time snapshot of registry counters.
type Stats struct {
	Published     uint64
	Delivered     uint64
	HandlerPanics uint64
}

// Stats returns the registry's counters.
func (r *Registry) Stats() Stats {
	return Stats{
		Published:     r.published.Load(),
		Delivered:     r.delivered.Load(),
		HandlerPanics: r.panics.Load(),
	}
}

// Ensure interface compliance at compile time.
var _ Dispatcher = (*Registry)(nil)

// Package otel provides OpenTelemetry integration for the workbench
// dispatch layer.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	workbench "github.com/workbench-labs/workbench"
	"github.com/workbench-labs/workbench/bus"
)

// DispatchMetrics translates dispatch activity into OpenTelemetry metrics:
// events published per kind, contained handler panics, and global channel
// delivery outcomes.
type DispatchMetrics struct {
	published     metric.Int64Counter
	handlerPanics metric.Int64Counter
	globalEmits   metric.Int64Counter
	globalErrors  metric.Int64Counter
}

// NewDispatchMetrics creates a DispatchMetrics that uses the given meter to
// create its instruments.
func NewDispatchMetrics(meter metric.Meter) (*DispatchMetrics, error) {
	published, err := meter.Int64Counter("workbench.events.published",
		metric.WithDescription("Number of events published on the local dispatcher"),
	)
	if err != nil {
		return nil, err
	}

	panics, err := meter.Int64Counter("workbench.events.handler_panics",
		metric.WithDescription("Number of contained handler panics"),
	)
	if err != nil {
		return nil, err
	}

	emits, err := meter.Int64Counter("workbench.global.emits",
		metric.WithDescription("Number of delivery attempts on the global channel"),
	)
	if err != nil {
		return nil, err
	}

	emitErrors, err := meter.Int64Counter("workbench.global.emit_failures",
		metric.WithDescription("Number of failed deliveries on the global channel"),
	)
	if err != nil {
		return nil, err
	}

	return &DispatchMetrics{
		published:     published,
		handlerPanics: panics,
		globalEmits:   emits,
		globalErrors:  emitErrors,
	}, nil
}

// Handler returns a bus handler counting published events by kind.
// Register it with SubscribeAll.
func (m *DispatchMetrics) Handler() bus.Handler {
	return func(e workbench.Event) {
		m.published.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("kind", e.EventKind().String()),
		))
	}
}

// PanicHook returns a hook for RegistryConfig.OnPanic.
func (m *DispatchMetrics) PanicHook() func(kind workbench.Kind, recovered any) {
	return func(kind workbench.Kind, _ any) {
		m.handlerPanics.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("kind", kind.String()),
		))
	}
}

// DeliverHook returns a hook for GlobalConfig.OnDeliver.
func (m *DispatchMetrics) DeliverHook() func(err error) {
	return func(err error) {
		ctx := context.Background()
		m.globalEmits.Add(ctx, 1)
		if err != nil {
			m.globalErrors.Add(ctx, 1)
		}
	}
}

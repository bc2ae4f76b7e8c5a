// Package bus provides the in-process event dispatch layer of the workbench
// client. Components publish typed events and subscribe to the kinds they
// care about, decoupling UI surfaces and background workflows from each
// other. Dispatch is synchronous: handlers run on the publishing goroutine,
// in subscription order, before Publish returns.
package bus

import (
	workbench "github.com/workbench-labs/workbench"
)

// Handler processes a published event. The event is passed by reference;
// handlers of the same publish observe each other's mutations.
type Handler func(workbench.Event)

// Subscription is a registered handler's handle. Closing it removes the
// handler; it receives no further events.
type Subscription interface {
	// Close unsubscribes the handler.
	Close() error
}

// Dispatcher is the local publish/subscribe contract.
type Dispatcher interface {
	// Publish invokes every currently registered handler for the event's
	// kind, synchronously, in subscription order. Handlers registered
	// while a publish is in flight do not receive that event.
	Publish(event workbench.Event)

	// Subscribe registers a handler for one kind. The same handler may be
	// registered multiple times; it is invoked once per registration.
	Subscribe(kind workbench.Kind, h Handler) Subscription

	// SubscribeAll registers a handler for every kind.
	SubscribeAll(h Handler) Subscription
}

// Publisher is the publish-only side of a Dispatcher, for components that
// emit events but never subscribe.
type Publisher interface {
	Publish(event workbench.Event)
}

// NewChannelHandler returns a handler that forwards events to the returned
// channel. The channel is buffered; events are dropped when it is full, so
// slow consumers cannot stall dispatch.
func NewChannelHandler(buffer int) (Handler, <-chan workbench.Event) {
	if buffer <= 0 {
		buffer = 256
	}
	ch := make(chan workbench.Event, buffer)
	h := func(e workbench.Event) {
		select {
		case ch <- e:
		default:
			// Drop event if the consumer is behind.
		}
	}
	return h, ch
}

package events

import (
	"fmt"

	"github.com/rickchristie/spawncap"
)

// DefaultMaxRecursion bounds how deeply subscribers may publish from inside a dispatch.
const DefaultMaxRecursion = 10

// Registry fans published events out to subscribers.
//
// A subscriber is any value implementing one or more of the spawncap subscriber
// interfaces; it is called only for the event types it implements, in subscription order.
// Subscribers that are themselves a [spawncap.Dispatcher] (a [Feed], or another Registry)
// get every event once the typed subscribers have run.
//
//	registry := events.NewRegistry().
//	    Subscribe(&CompressionAudit{}).
//	    Subscribe(loggers.NewYAMLLogger(os.Stderr))
//	rt := spawncap.NewRuntime(spawncap.WithDispatcher(registry))
//
// The registry is driven from the host's update loop and is not safe for concurrent use.
// Subscribe everything before interception is installed.
type Registry struct {
	subscribers  []any
	maxRecursion int
	depth        int
}

func NewRegistry() *Registry {
	return &Registry{maxRecursion: DefaultMaxRecursion}
}

// Subscribe appends a subscriber.
func (r *Registry) Subscribe(subscriber any) *Registry {
	r.subscribers = append(r.subscribers, subscriber)
	return r
}

// SetMaxRecursion changes the nesting limit. A dispatch nested deeper than max panics,
// which catches subscribers that republish events in a cycle.
func (r *Registry) SetMaxRecursion(max int) *Registry {
	r.maxRecursion = max
	return r
}

func (r *Registry) MaxRecursion() int {
	return r.maxRecursion
}

// Dispatch implements [spawncap.Dispatcher].
func (r *Registry) Dispatch(rt *spawncap.Runtime, event spawncap.Event) {
	r.depth++
	defer func() { r.depth-- }()
	if r.depth > r.maxRecursion {
		panic(fmt.Sprintf("events: %s nested more than %d dispatches deep",
			event.EventName(), r.maxRecursion))
	}

	switch e := event.(type) {
	case *spawncap.ProbeEvent:
		notify(r.subscribers, func(s spawncap.ProbeSubscriber) { s.OnProbe(rt, e) })
	case *spawncap.RegistrationEvent:
		notify(r.subscribers, func(s spawncap.RegistrationSubscriber) { s.OnRegistration(rt, e) })
	case *spawncap.CompressionDecidedEvent:
		notify(r.subscribers, func(s spawncap.CompressionDecidedSubscriber) { s.OnCompressionDecided(rt, e) })
	case *spawncap.AgentEnhancedEvent:
		notify(r.subscribers, func(s spawncap.AgentEnhancedSubscriber) { s.OnAgentEnhanced(rt, e) })
	case *spawncap.ChannelAppliedEvent:
		notify(r.subscribers, func(s spawncap.ChannelAppliedSubscriber) { s.OnChannelApplied(rt, e) })
	case *spawncap.CompressionFinishedEvent:
		notify(r.subscribers, func(s spawncap.CompressionFinishedSubscriber) { s.OnCompressionFinished(rt, e) })
	case *spawncap.OriginalCallErrorEvent:
		notify(r.subscribers, func(s spawncap.OriginalCallErrorSubscriber) { s.OnOriginalCallError(rt, e) })
	}

	notify(r.subscribers, func(d spawncap.Dispatcher) { d.Dispatch(rt, event) })
}

// notify calls fn for every subscriber that implements S.
func notify[S any](subscribers []any, fn func(S)) {
	for _, s := range subscribers {
		if sub, ok := s.(S); ok {
			fn(sub)
		}
	}
}

func (r *Registry) Len() int {
	return len(r.subscribers)
}

// Clear drops every subscriber.
func (r *Registry) Clear() {
	r.subscribers = nil
}

var _ spawncap.Dispatcher = (*Registry)(nil)

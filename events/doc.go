// Package events routes the typed events spawncap publishes to the code that wants them.
//
// Probing, registration and every compression step call [spawncap.Runtime.Publish]. The
// runtime hands each event to its dispatcher, normally a [Registry] from this package, which
// calls the subscribers implementing the matching interface:
//
//	type CompressionAudit struct{}
//
//	func (a *CompressionAudit) OnCompressionDecided(
//	    rt *spawncap.Runtime,
//	    e *spawncap.CompressionDecidedEvent,
//	) {
//	    fmt.Printf("%d -> %d (order %d)\n",
//	        e.Decision.BaseCount, e.Decision.CappedCount, e.Decision.Order)
//	}
//
//	rt := spawncap.NewRuntime(spawncap.WithDispatcher(
//	    events.NewRegistry().Subscribe(&CompressionAudit{}),
//	))
//
// At startup the registry sees one ProbeEvent per probed target and one RegistrationEvent
// per patch attempt. Each spawn then produces a CompressionDecidedEvent, zero or more
// AgentEnhancedEvent and ChannelAppliedEvent values, and ends with either a
// CompressionFinishedEvent or an OriginalCallErrorEvent.
//
// A [Feed] turns the same stream into channels for consumers on other goroutines, such as
// a CLI printing events as they happen. Subscribe the feed to a registry, or pass it to
// [spawncap.WithDispatcher] directly.
//
// Subscribers may publish from inside a callback. The registry panics once nesting passes
// [Registry.SetMaxRecursion] (default 10).
package events

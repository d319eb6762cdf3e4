package spawncap

// Subscriber interfaces define type-safe event subscriptions.
//
// Implement any combination of these interfaces on a single struct to receive
// multiple event types. The events.Registry will automatically detect which
// interfaces your struct implements and call the appropriate methods.
//
// # Example
//
//	type AuditSubscriber struct {
//	    logger *zap.Logger
//	}
//
//	func (s *AuditSubscriber) OnCompressionFinished(
//	    rt *spawncap.Runtime,
//	    event *spawncap.CompressionFinishedEvent,
//	) {
//	    s.logger.Info("compressed", zap.Int("created", event.Created))
//	}
//
//	registry := events.NewRegistry()
//	registry.Subscribe(&AuditSubscriber{logger: logger})

// ProbeSubscriber receives ProbeEvent events.
type ProbeSubscriber interface {
	OnProbe(rt *Runtime, event *ProbeEvent)
}

// RegistrationSubscriber receives RegistrationEvent events.
type RegistrationSubscriber interface {
	OnRegistration(rt *Runtime, event *RegistrationEvent)
}

// CompressionDecidedSubscriber receives CompressionDecidedEvent events.
type CompressionDecidedSubscriber interface {
	OnCompressionDecided(rt *Runtime, event *CompressionDecidedEvent)
}

// AgentEnhancedSubscriber receives AgentEnhancedEvent events.
type AgentEnhancedSubscriber interface {
	OnAgentEnhanced(rt *Runtime, event *AgentEnhancedEvent)
}

// ChannelAppliedSubscriber receives ChannelAppliedEvent events.
type ChannelAppliedSubscriber interface {
	OnChannelApplied(rt *Runtime, event *ChannelAppliedEvent)
}

// CompressionFinishedSubscriber receives CompressionFinishedEvent events.
type CompressionFinishedSubscriber interface {
	OnCompressionFinished(rt *Runtime, event *CompressionFinishedEvent)
}

// OriginalCallErrorSubscriber receives OriginalCallErrorEvent events.
type OriginalCallErrorSubscriber interface {
	OnOriginalCallError(rt *Runtime, event *OriginalCallErrorEvent)
}

package spawncap

// -----------------------------------------------------------------------------
// Event Interface
// -----------------------------------------------------------------------------

// Event is implemented by every event published through [Runtime.Publish].
type Event interface {
	EventName() string
}

// Dispatcher delivers published events to subscribers. The events package provides the
// standard implementation.
type Dispatcher interface {
	Dispatch(rt *Runtime, event Event)
}

// -----------------------------------------------------------------------------
// Interception Events
// -----------------------------------------------------------------------------

// ProbeEvent is published once per probed target.
type ProbeEvent struct {
	Capability Capability
	Target     TargetDescriptor

	// State is the outcome for this target.
	State CapabilityState

	// Index is the matched instruction index, -1 when not matched.
	Index int

	// Err is the introspection failure, if any.
	Err error
}

func (*ProbeEvent) EventName() string { return EventNameProbe }

// RegistrationEvent is published once per registration attempt.
type RegistrationEvent struct {
	Capability Capability
	Target     TargetDescriptor

	// Strategy is the chosen interception strategy's name.
	Strategy string

	// Err is non-nil when patching failed.
	Err error
}

func (*RegistrationEvent) EventName() string { return EventNameRegistration }

// -----------------------------------------------------------------------------
// Compression Events
// -----------------------------------------------------------------------------

// CompressionDecidedEvent is published when the engine has decided a request.
type CompressionDecidedEvent struct {
	Request  SpawnRequest
	Decision CompressionDecision
}

func (*CompressionDecidedEvent) EventName() string { return EventNameCompressionDecided }

// AgentEnhancedEvent is published for every modifier successfully attached.
type AgentEnhancedEvent struct {
	AgentID  string
	Slot     int
	Order    int64
	Strength float64
}

func (*AgentEnhancedEvent) EventName() string { return EventNameAgentEnhanced }

// ChannelAppliedEvent is published after each auxiliary enhancement channel ran.
type ChannelAppliedEvent struct {
	Channel string
	Count   int
	Err     error
}

func (*ChannelAppliedEvent) EventName() string { return EventNameChannelApplied }

// CompressionFinishedEvent is published when a compression event reaches a terminal
// state: Finalized (Err == nil) or Aborted.
type CompressionFinishedEvent struct {
	Decision     CompressionDecision
	Created      int
	Enhanced     int
	ChannelTotal int
	Err          error
}

func (*CompressionFinishedEvent) EventName() string { return EventNameCompressionFinished }

// OriginalCallErrorEvent is published when an intercepted original call failed and
// redistribution was skipped.
type OriginalCallErrorEvent struct {
	Shape CallShape
	Err   error
}

func (*OriginalCallErrorEvent) EventName() string { return EventNameOriginalCallError }

package spawncap

import "context"

// -----------------------------------------------------------------------------
// Host Interfaces
// -----------------------------------------------------------------------------
//
// The host simulation owns agent generation, arrival, modifiers and its own method bodies.
// spawncap consumes those through the interfaces below and never reimplements them.
//
// All calls are made from the host's update loop; implementations do not need to be safe
// for concurrent use.
// -----------------------------------------------------------------------------

// AgentGenerator allocates new agents.
type AgentGenerator interface {
	// GenerateAgent creates one agent. Returning (nil, nil) means the host could not
	// produce an agent for this slot; the engine skips the slot and continues. A non-nil
	// error aborts the whole compression event.
	GenerateAgent(ctx context.Context, req AgentRequest) (Agent, error)
}

// Arriver places a batch of agents into the world.
type Arriver interface {
	// Arrive places agents according to the event's arrival parameters.
	Arrive(ctx context.Context, agents []Agent, arrival any) error
}

// ModifierHandle identifies one modifier attached to an agent.
type ModifierHandle interface {
	// Tag is the modifier kind tag passed to AddModifier.
	Tag() string

	// Order is the order token of the event that created the modifier, or 0.
	Order() int64

	// Strength is the current strength value.
	Strength() float64
}

// ModifierSink is the host's modifier system, used only as a sink.
type ModifierSink interface {
	// AddModifier attaches a modifier of the given kind tag. order is the event's order
	// token (0 for markers that do not belong to a redistribution pass). A nil handle
	// means the host refused the modifier.
	AddModifier(agent Agent, kindTag string, order int64) (ModifierHandle, error)

	// SetModifierStrength sets the modifier strength. Returns false if the host could not
	// apply it.
	SetModifierStrength(handle ModifierHandle, value float64) bool

	// RemoveModifier detaches a modifier previously returned by AddModifier.
	RemoveModifier(agent Agent, handle ModifierHandle)
}

// MethodIntrospector exposes the instruction bodies of host methods.
type MethodIntrospector interface {
	// Instructions returns the ordered instruction body of target. Fails when the method
	// cannot be found or introspection is unavailable.
	Instructions(target TargetDescriptor) ([]Instruction, error)
}

// Patcher applies interception to host methods.
//
// Hooks are function values whose parameters mirror the target's call shape exactly (see
// the sites package). The host is responsible for invoking them.
type Patcher interface {
	// ReplaceBody swaps the method body for a rewritten instruction sequence.
	ReplaceBody(target TargetDescriptor, body []Instruction) error

	// Prefix installs an entry-level override. The hook reports whether the original body
	// must be skipped.
	Prefix(target TargetDescriptor, hook any) error

	// Finalizer installs a completion hook that runs after the original (or replaced)
	// body, receiving the body's error.
	Finalizer(target TargetDescriptor, hook any) error
}

// Notifier shows user-facing summary messages.
type Notifier interface {
	Notify(summary Summary)
}

// Host is the full set of host primitives spawncap consumes.
type Host interface {
	AgentGenerator
	Arriver
	ModifierSink
	MethodIntrospector
	Patcher
	Notifier
}

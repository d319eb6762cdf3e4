package spawncap

import "fmt"

// Capability identifies one kind of precise interception that may or may not be
// applicable to the running host.
type Capability int

const (
	// CapNone tags interception that never depends on a probe, such as the whole-call
	// overrides that are installed on every host.
	CapNone Capability = iota

	// CapGeneratePawnsRewrite is the rewrite of the pawn-generation call site inside
	// group-kind workers.
	CapGeneratePawnsRewrite

	// CapGenerateAnimalsRewrite is the rewrite of the animal-count assignment inside the
	// aggressive-animal generator.
	CapGenerateAnimalsRewrite

	// CapEntitySwarmRewrite is the rewrite of the swarm-size call site inside the entity
	// swarm incident.
	CapEntitySwarmRewrite
)

// Capabilities lists every known capability in probe order.
var Capabilities = []Capability{
	CapGeneratePawnsRewrite,
	CapGenerateAnimalsRewrite,
	CapEntitySwarmRewrite,
}

func (c Capability) String() string {
	switch c {
	case CapNone:
		return "none"
	case CapGeneratePawnsRewrite:
		return "generate_pawns_rewrite"
	case CapGenerateAnimalsRewrite:
		return "generate_animals_rewrite"
	case CapEntitySwarmRewrite:
		return "entity_swarm_rewrite"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// CapabilityState is the probe outcome of a capability. The zero value is StateUntested.
//
// A state moves from StateUntested to one of the two terminal states exactly once per
// process and never changes afterwards.
type CapabilityState int

const (
	StateUntested CapabilityState = iota
	StateSupported
	StateUnsupported
)

func (s CapabilityState) String() string {
	switch s {
	case StateUntested:
		return "untested"
	case StateSupported:
		return "supported"
	case StateUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Supported reports whether the state is StateSupported.
func (s CapabilityState) Supported() bool {
	return s == StateSupported
}

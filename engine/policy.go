package engine

import (
	"math"

	"github.com/rickchristie/spawncap"
)

// Default modifier tags.
const (
	DefaultModifierTag      = "CR_Powerup"
	DefaultCompatibilityTag = "CR_DummyForCompatibility"
)

// Policy is the engine's read-only view of the settings. The config package builds one
// from the loaded settings file.
type Policy struct {
	// CompressionEnabled is the global switch. Off means every request passes through.
	CompressionEnabled bool

	// Cap is the maximum number of agents one event may spawn. Values below 1 are
	// treated as 1.
	Cap int

	AllowMechanoids bool
	AllowInsectoids bool

	// Per call shape switches.
	AllowManhunters  bool
	AllowEntitySwarm bool
	AllowHive        bool

	// EnhanceRatio is the share of the cap that receives enhancement.
	EnhanceRatio float64

	// GainFactor scales the power lost per enhanced slot.
	GainFactor float64

	// MaxGain bounds the gain value. Zero or less means unbounded.
	MaxGain float64

	// DisableFactors suppresses every enhancement while still compressing.
	DisableFactors bool

	// EnhanceFriendly lets non-hostile spawns be enhanced too.
	EnhanceFriendly bool

	// OptionsEnabled is the master switch for auxiliary enhancement channels.
	OptionsEnabled bool

	// Compatibility activates the marker scaffold around every compression event.
	Compatibility bool

	ModifierTag      string
	CompatibilityTag string

	// DisplayMessage shows a summary to the user after each compression event.
	DisplayMessage bool
}

// DefaultPolicy returns the policy used when no settings are loaded.
func DefaultPolicy() Policy {
	return Policy{
		CompressionEnabled: true,
		Cap:                20,
		AllowManhunters:    true,
		AllowEntitySwarm:   true,
		AllowHive:          true,
		EnhanceRatio:       0.5,
		GainFactor:         1,
		MaxGain:            10,
		OptionsEnabled:     true,
		ModifierTag:        DefaultModifierTag,
		CompatibilityTag:   DefaultCompatibilityTag,
		DisplayMessage:     true,
	}
}

// EffectiveCap is Cap clamped to at least 1.
func (p Policy) EffectiveCap() int {
	return max(p.Cap, 1)
}

// EnhanceSlotCount is how many slots of an event capped at capacity are enhanced:
// ceil(capacity * EnhanceRatio), clamped to [1, capacity]. It depends on capacity only.
func (p Policy) EnhanceSlotCount(capacity int) int {
	if capacity <= 0 {
		return 0
	}
	n := int(math.Ceil(float64(capacity) * p.EnhanceRatio))
	return min(max(n, 1), capacity)
}

// GainValue is the power redistributed onto each enhanced slot: the agents lost to
// compression, shared over the enhanced slots and scaled by GainFactor, bounded by
// MaxGain. It is 0 when requested <= capacity and never negative.
func (p Policy) GainValue(requested, capacity, slots int) float64 {
	if requested <= capacity || slots <= 0 {
		return 0
	}
	g := float64(requested-capacity) / float64(slots) * p.GainFactor
	if p.MaxGain > 0 {
		g = min(g, p.MaxGain)
	}
	return max(g, 0)
}

// AllowsKind reports whether agents of kind may be compressed and enhanced.
func (p Policy) AllowsKind(kind spawncap.Kind) bool {
	if kind.Mechanoid && !p.AllowMechanoids {
		return false
	}
	if kind.Insectoid && !p.AllowInsectoids {
		return false
	}
	return true
}

// AllowsShape reports whether the per-shape switch for shape is on.
func (p Policy) AllowsShape(shape spawncap.CallShape) bool {
	switch shape {
	case spawncap.ShapeAnimals:
		return p.AllowManhunters
	case spawncap.ShapeEntitySwarm:
		return p.AllowEntitySwarm
	case spawncap.ShapeHive:
		return p.AllowHive
	default:
		return true
	}
}

// DisableFactorsFor reports whether enhancement is suppressed for a spawn by faction:
// always when DisableFactors is set, and for non-hostile factions unless EnhanceFriendly.
// Factionless spawns count as hostile.
func (p Policy) DisableFactorsFor(faction *spawncap.Faction) bool {
	if p.DisableFactors {
		return true
	}
	if faction != nil && !faction.Hostile && !p.EnhanceFriendly {
		return true
	}
	return false
}

// Package channels implements the auxiliary enhancement channels that run after the core
// modifiers of a compression event: gear refinement, implant grafting and chemical buffs.
//
// Every channel decorates the same evenly spaced slots the engine enhances, choosing from
// a YAML catalog the entries the event's gain value unlocks, and attaches them as
// modifiers through the host's modifier sink.
//
//	catalog, err := channels.LoadCatalog("channels.yaml")
//	eng.WithChannels(channels.Enabled(settings.Channels(), host, catalog)...)
package channels

import (
	"context"
	"fmt"

	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/engine"
)

// Channel names.
const (
	NameGear      = "gear"
	NameImplants  = "implants"
	NameChemicals = "chemicals"
)

// Switches selects the channels to run.
type Switches struct {
	Gear      bool
	Implants  bool
	Chemicals bool
}

// Enabled returns the switched-on channels in their fixed order (gear, implants,
// chemicals). Channels without catalog entries are left out. A nil catalog means the
// built-in one.
func Enabled(sw Switches, sink spawncap.ModifierSink, cat *Catalog) []engine.Channel {
	if sink == nil {
		return nil
	}
	if cat == nil {
		cat = DefaultCatalog()
	}
	var out []engine.Channel
	if sw.Gear && len(cat.Gear) > 0 {
		out = append(out, NewGearRefiner(sink, cat.Gear))
	}
	if sw.Implants && len(cat.Implants) > 0 {
		out = append(out, NewImplantGrafter(sink, cat.Implants, cat.MaxImplants))
	}
	if sw.Chemicals && len(cat.Chemicals) > 0 {
		out = append(out, NewChemicalBuff(sink, cat.Chemicals))
	}
	return out
}

// -----------------------------------------------------------------------------
// GearRefiner
// -----------------------------------------------------------------------------

// GearRefiner raises the gear quality of enhanced agents to the best tier the gain
// unlocks.
type GearRefiner struct {
	sink  spawncap.ModifierSink
	tiers []Entry
}

func NewGearRefiner(sink spawncap.ModifierSink, tiers []Entry) *GearRefiner {
	return &GearRefiner{sink: sink, tiers: tiers}
}

func (g *GearRefiner) Name() string { return NameGear }

func (g *GearRefiner) Apply(ctx context.Context, agents []spawncap.Agent, gain float64, slots int) (int, error) {
	best, ok := bestTier(eligible(g.tiers, gain))
	if !ok {
		return 0, nil
	}
	return attach(ctx, g.sink, NameGear, agents, gain, slots, func(int) []Entry {
		return []Entry{best}
	})
}

func bestTier(entries []Entry) (Entry, bool) {
	if len(entries) == 0 {
		return Entry{}, false
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if e.MinGain > best.MinGain {
			best = e
		}
	}
	return best, true
}

// -----------------------------------------------------------------------------
// ImplantGrafter
// -----------------------------------------------------------------------------

// ImplantGrafter grafts up to perAgent implants onto every enhanced agent, rotating through
// the unlocked implants so that neighbouring slots get different ones.
type ImplantGrafter struct {
	sink     spawncap.ModifierSink
	implants []Entry
	perAgent int
}

func NewImplantGrafter(sink spawncap.ModifierSink, implants []Entry, perAgent int) *ImplantGrafter {
	return &ImplantGrafter{sink: sink, implants: implants, perAgent: perAgent}
}

func (g *ImplantGrafter) Name() string { return NameImplants }

func (g *ImplantGrafter) Apply(ctx context.Context, agents []spawncap.Agent, gain float64, slots int) (int, error) {
	pool := eligible(g.implants, gain)
	if len(pool) == 0 {
		return 0, nil
	}
	per := min(max(g.perAgent, 1), len(pool))
	return attach(ctx, g.sink, NameImplants, agents, gain, slots, func(k int) []Entry {
		out := make([]Entry, per)
		for j := range out {
			out[j] = pool[(k+j)%len(pool)]
		}
		return out
	})
}

// -----------------------------------------------------------------------------
// ChemicalBuff
// -----------------------------------------------------------------------------

// ChemicalBuff doses every enhanced agent with one unlocked chemical, in rotation.
type ChemicalBuff struct {
	sink      spawncap.ModifierSink
	chemicals []Entry
}

func NewChemicalBuff(sink spawncap.ModifierSink, chemicals []Entry) *ChemicalBuff {
	return &ChemicalBuff{sink: sink, chemicals: chemicals}
}

func (c *ChemicalBuff) Name() string { return NameChemicals }

func (c *ChemicalBuff) Apply(ctx context.Context, agents []spawncap.Agent, gain float64, slots int) (int, error) {
	pool := eligible(c.chemicals, gain)
	if len(pool) == 0 {
		return 0, nil
	}
	return attach(ctx, c.sink, NameChemicals, agents, gain, slots, func(k int) []Entry {
		return []Entry{pool[k%len(pool)]}
	})
}

// attach adds pick(k)'s entries to the k-th enhanced slot and returns how many agents
// received at least one modifier. A sink error stops the channel.
func attach(
	ctx context.Context,
	sink spawncap.ModifierSink,
	name string,
	agents []spawncap.Agent,
	gain float64,
	slots int,
	pick func(k int) []Entry,
) (int, error) {
	touched := 0
	for k, i := range spawncap.EnhancedSlots(len(agents), slots) {
		if err := ctx.Err(); err != nil {
			return touched, err
		}
		agent := agents[i]
		if agent == nil {
			continue
		}
		attached := false
		for _, e := range pick(k) {
			h, err := sink.AddModifier(agent, e.Tag, 0)
			if err != nil {
				return touched, fmt.Errorf("%s: attach %s to %s: %w", name, e.Name, agent.ID(), err)
			}
			if h == nil {
				continue
			}
			if !sink.SetModifierStrength(h, e.strength(gain)) {
				sink.RemoveModifier(agent, h)
				continue
			}
			attached = true
		}
		if attached {
			touched++
		}
	}
	return touched, nil
}

var (
	_ engine.Channel = (*GearRefiner)(nil)
	_ engine.Channel = (*ImplantGrafter)(nil)
	_ engine.Channel = (*ChemicalBuff)(nil)
)

// Package simhost is an in-memory host used by tests and the interactive harness. It
// implements every host primitive spawncap consumes and records what was done to it.
package simhost

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rickchristie/spawncap"
)

// Agent is a simulated agent.
type Agent struct {
	id      string
	kind    spawncap.Kind
	faction *spawncap.Faction
	dead    bool
	downed  bool
}

func (a *Agent) ID() string                 { return a.id }
func (a *Agent) Kind() spawncap.Kind        { return a.kind }
func (a *Agent) Faction() *spawncap.Faction { return a.faction }
func (a *Agent) Dead() bool                 { return a.dead }
func (a *Agent) Downed() bool               { return a.downed }

// Kill marks the agent dead.
func (a *Agent) Kill() *Agent {
	a.dead = true
	return a
}

// Down marks the agent downed.
func (a *Agent) Down() *Agent {
	a.downed = true
	return a
}

// NewAgent creates a free-standing agent, e.g. one already present on a map.
func NewAgent(id string, kind spawncap.Kind, faction *spawncap.Faction) *Agent {
	return &Agent{id: id, kind: kind, faction: faction}
}

// Modifier is a simulated modifier.
type Modifier struct {
	tag      string
	order    int64
	strength float64
	agentID  string
	removed  bool
}

func (m *Modifier) Tag() string       { return m.tag }
func (m *Modifier) Order() int64      { return m.order }
func (m *Modifier) Strength() float64 { return m.strength }

// PatchKind is the kind of a recorded patch operation.
type PatchKind string

const (
	PatchBody      PatchKind = "body"
	PatchPrefix    PatchKind = "prefix"
	PatchFinalizer PatchKind = "finalizer"
)

// Patch records one patch applied to the host.
type Patch struct {
	Target spawncap.TargetDescriptor
	Kind   PatchKind
	Hook   any
	Body   []spawncap.Instruction
}

// Host is the in-memory host.
//
// Failure injection fields can be set directly by tests before use.
type Host struct {
	// FailSlots makes the n-th GenerateAgent call (0-based, counted over the host's
	// lifetime) return no agent.
	FailSlots map[int]bool

	// ErrAtCall makes the n-th GenerateAgent call return an error. Negative disables.
	ErrAtCall int

	// RefuseModifiers makes AddModifier return a nil handle for this tag.
	RefuseModifiers map[string]bool

	// RefuseStrength makes SetModifierStrength fail.
	RefuseStrength bool

	// PatchErrors fails patch operations on the given target keys.
	PatchErrors map[string]error

	// IntrospectErrors fails introspection on the given target keys.
	IntrospectErrors map[string]error

	// IntrospectPanics makes introspection panic on the given target keys.
	IntrospectPanics map[string]bool

	bodies    map[string][]spawncap.Instruction
	modifiers map[string][]*Modifier
	calls     int

	Created      []*Agent
	Arrivals     [][]spawncap.Agent
	Notices      []spawncap.Summary
	Patches      []Patch
	Introspected map[string]int
}

// New creates an empty Host.
func New() *Host {
	return &Host{
		ErrAtCall:        -1,
		FailSlots:        make(map[int]bool),
		RefuseModifiers:  make(map[string]bool),
		PatchErrors:      make(map[string]error),
		IntrospectErrors: make(map[string]error),
		IntrospectPanics: make(map[string]bool),
		bodies:           make(map[string][]spawncap.Instruction),
		modifiers:        make(map[string][]*Modifier),
		Introspected:     make(map[string]int),
	}
}

// SetBody registers the instruction body of a host method.
func (h *Host) SetBody(target spawncap.TargetDescriptor, body []spawncap.Instruction) *Host {
	h.bodies[target.Key()] = body
	return h
}

// Body returns the current body of a host method (after any ReplaceBody).
func (h *Host) Body(target spawncap.TargetDescriptor) []spawncap.Instruction {
	return h.bodies[target.Key()]
}

// -----------------------------------------------------------------------------
// spawncap.AgentGenerator / Arriver
// -----------------------------------------------------------------------------

// GenerateAgent implements spawncap.AgentGenerator.
func (h *Host) GenerateAgent(ctx context.Context, req spawncap.AgentRequest) (spawncap.Agent, error) {
	call := h.calls
	h.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if call == h.ErrAtCall {
		return nil, fmt.Errorf("simhost: generator exploded at call %d", call)
	}
	if h.FailSlots[call] {
		return nil, nil
	}
	a := &Agent{
		id:      fmt.Sprintf("%s-%d", req.Kind.Name, len(h.Created)+1),
		kind:    req.Kind,
		faction: req.Faction,
	}
	h.Created = append(h.Created, a)
	return a, nil
}

// Arrive implements spawncap.Arriver.
func (h *Host) Arrive(_ context.Context, agents []spawncap.Agent, _ any) error {
	batch := make([]spawncap.Agent, len(agents))
	copy(batch, agents)
	h.Arrivals = append(h.Arrivals, batch)
	return nil
}

// -----------------------------------------------------------------------------
// spawncap.ModifierSink
// -----------------------------------------------------------------------------

// AddModifier implements spawncap.ModifierSink.
func (h *Host) AddModifier(agent spawncap.Agent, kindTag string, order int64) (spawncap.ModifierHandle, error) {
	if agent == nil {
		return nil, errors.New("simhost: nil agent")
	}
	if h.RefuseModifiers[kindTag] {
		return nil, nil
	}
	m := &Modifier{tag: kindTag, order: order, agentID: agent.ID()}
	h.modifiers[agent.ID()] = append(h.modifiers[agent.ID()], m)
	return m, nil
}

// SetModifierStrength implements spawncap.ModifierSink.
func (h *Host) SetModifierStrength(handle spawncap.ModifierHandle, value float64) bool {
	m, ok := handle.(*Modifier)
	if !ok || h.RefuseStrength || m.removed {
		return false
	}
	m.strength = value
	return true
}

// RemoveModifier implements spawncap.ModifierSink.
func (h *Host) RemoveModifier(agent spawncap.Agent, handle spawncap.ModifierHandle) {
	m, ok := handle.(*Modifier)
	if !ok {
		return
	}
	if m.removed {
		panic(fmt.Sprintf("simhost: modifier %q removed twice from %s", m.tag, agent.ID()))
	}
	m.removed = true
	list := h.modifiers[agent.ID()]
	for i, x := range list {
		if x == m {
			h.modifiers[agent.ID()] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
}

// Modifiers returns the live modifiers on an agent.
func (h *Host) Modifiers(agent spawncap.Agent) []*Modifier {
	return h.modifiers[agent.ID()]
}

// Tagged returns the IDs of agents carrying a live modifier with tag (and order, when
// order is non-zero), sorted.
func (h *Host) Tagged(tag string, order int64) []string {
	var ids []string
	for id, list := range h.modifiers {
		for _, m := range list {
			if m.tag == tag && (order == 0 || m.order == order) {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// ModifierCount counts live modifiers across all agents.
func (h *Host) ModifierCount() int {
	n := 0
	for _, list := range h.modifiers {
		n += len(list)
	}
	return n
}

// -----------------------------------------------------------------------------
// spawncap.MethodIntrospector / Patcher
// -----------------------------------------------------------------------------

// Instructions implements spawncap.MethodIntrospector.
func (h *Host) Instructions(target spawncap.TargetDescriptor) ([]spawncap.Instruction, error) {
	key := target.Key()
	h.Introspected[key]++
	if h.IntrospectPanics[key] {
		panic("simhost: introspection blew up on " + key)
	}
	if err := h.IntrospectErrors[key]; err != nil {
		return nil, err
	}
	body, ok := h.bodies[key]
	if !ok {
		return nil, fmt.Errorf("simhost: method %s not found", key)
	}
	out := make([]spawncap.Instruction, len(body))
	copy(out, body)
	return out, nil
}

// ReplaceBody implements spawncap.Patcher.
func (h *Host) ReplaceBody(target spawncap.TargetDescriptor, body []spawncap.Instruction) error {
	if err := h.patchErr(target); err != nil {
		return err
	}
	h.bodies[target.Key()] = body
	h.Patches = append(h.Patches, Patch{Target: target, Kind: PatchBody, Body: body})
	return nil
}

// Prefix implements spawncap.Patcher.
func (h *Host) Prefix(target spawncap.TargetDescriptor, hook any) error {
	if err := h.patchErr(target); err != nil {
		return err
	}
	h.Patches = append(h.Patches, Patch{Target: target, Kind: PatchPrefix, Hook: hook})
	return nil
}

// Finalizer implements spawncap.Patcher.
func (h *Host) Finalizer(target spawncap.TargetDescriptor, hook any) error {
	if err := h.patchErr(target); err != nil {
		return err
	}
	h.Patches = append(h.Patches, Patch{Target: target, Kind: PatchFinalizer, Hook: hook})
	return nil
}

func (h *Host) patchErr(target spawncap.TargetDescriptor) error {
	if _, known := h.bodies[target.Key()]; !known {
		return fmt.Errorf("simhost: method %s not found", target.Key())
	}
	return h.PatchErrors[target.Key()]
}

// PatchesFor returns the patches applied to target, optionally filtered by kind.
func (h *Host) PatchesFor(target spawncap.TargetDescriptor, kind PatchKind) []Patch {
	var out []Patch
	for _, p := range h.Patches {
		if p.Target.Key() == target.Key() && (kind == "" || p.Kind == kind) {
			out = append(out, p)
		}
	}
	return out
}

// Hook returns the single hook of the given kind on target, or nil.
func (h *Host) Hook(target spawncap.TargetDescriptor, kind PatchKind) any {
	ps := h.PatchesFor(target, kind)
	if len(ps) == 0 {
		return nil
	}
	return ps[len(ps)-1].Hook
}

// -----------------------------------------------------------------------------
// spawncap.Notifier
// -----------------------------------------------------------------------------

// Notify implements spawncap.Notifier.
func (h *Host) Notify(summary spawncap.Summary) {
	h.Notices = append(h.Notices, summary)
}

var _ spawncap.Host = (*Host)(nil)

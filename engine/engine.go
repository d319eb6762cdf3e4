// Package engine implements population compression and power redistribution.
//
// # Overview
//
// Every interception site normalizes its host call into a [spawncap.SpawnRequest] and
// hands it to the Engine. The Engine decides whether the request is compressed (see
// [Engine.Decide]), creates the capped number of agents, enhances an evenly spaced subset
// of them with a modifier carrying the event's order token, runs the auxiliary
// enhancement channels, and tells the user what happened.
//
//	eng := engine.New(rt, host, settings.Policy()).
//	    WithChannels(channels.Enabled(settings.Channels(), host, catalog)...)
//
//	res, err := eng.Spawn(ctx, spawncap.SpawnRequest{
//	    Shape:          spawncap.ShapeRaidThreats,
//	    Kind:           kind,
//	    Faction:        faction,
//	    RequestedCount: 100,
//	})
//
// # Event Lifecycle
//
//	Idle -> Decided(allowed?) -> [Creating(i=0..capped) -> Enhancing] -> Finalized
//
// A request that is not allowed never reaches Creating through the compressed path; the
// caller runs the original logic instead (or [Engine.Spawn] creates the requested count
// unmodified). A generator error aborts the event with [spawncap.ErrCreationAborted]; an
// auxiliary channel error aborts it with a [*spawncap.ChannelError]. In both cases the
// agents created so far are returned to the caller as they are and nothing is rolled
// back. Compatibility markers are removed on every path.
//
// # Thread Safety
//
// An Engine may be shared, but the host is expected to drive it from one update loop.
// The only state shared between events is the runtime's order sequence and stats.
package engine

import (
	"context"
	"fmt"

	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/scaffold"
	"go.uber.org/zap"
)

// Host is the subset of host primitives the engine uses.
type Host interface {
	spawncap.AgentGenerator
	spawncap.ModifierSink
	spawncap.Notifier
}

// Channel is an auxiliary enhancement channel (gear refinement, implants, chemical
// buffs). Apply decorates some of agents and returns how many it modified. An error
// aborts the compression event.
type Channel interface {
	Name() string
	Apply(ctx context.Context, agents []spawncap.Agent, gain float64, slots int) (int, error)
}

// Reasons a request is not compressed.
const (
	ReasonInvalid      = "invalid request"
	ReasonDisabled     = "compression disabled"
	ReasonShape        = "call shape disabled"
	ReasonWithinCap    = "within cap"
	ReasonKindExcluded = "kind excluded"
)

// Result is the outcome of one compression event.
type Result struct {
	Decision spawncap.CompressionDecision

	// Agents are the created (or redistributed) agents in creation order. Slots whose
	// creation failed are absent.
	Agents []spawncap.Agent

	// Enhanced counts the modifiers attached.
	Enhanced int

	// ChannelTotal counts the agents modified by auxiliary channels.
	ChannelTotal int
}

// EnhancedTotal is Enhanced plus ChannelTotal, the figure shown to users.
func (r *Result) EnhancedTotal() int {
	return r.Enhanced + r.ChannelTotal
}

// Engine runs compression events.
type Engine struct {
	rt       *spawncap.Runtime
	host     Host
	policy   Policy
	channels []Channel
}

// New creates an Engine.
func New(rt *spawncap.Runtime, host Host, policy Policy) *Engine {
	if policy.ModifierTag == "" {
		policy.ModifierTag = DefaultModifierTag
	}
	if policy.CompatibilityTag == "" {
		policy.CompatibilityTag = DefaultCompatibilityTag
	}
	return &Engine{rt: rt, host: host, policy: policy}
}

// WithChannels appends auxiliary channels, run in the given order.
func (e *Engine) WithChannels(chs ...Channel) *Engine {
	for _, ch := range chs {
		if ch != nil {
			e.channels = append(e.channels, ch)
		}
	}
	return e
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Runtime returns the engine's runtime.
func (e *Engine) Runtime() *spawncap.Runtime {
	return e.rt
}

// Host returns the engine's host.
func (e *Engine) Host() Host {
	return e.host
}

// EnhanceSlotCount is Policy.EnhanceSlotCount.
func (e *Engine) EnhanceSlotCount(capacity int) int {
	return e.policy.EnhanceSlotCount(capacity)
}

// GainValue is Policy.GainValue.
func (e *Engine) GainValue(requested, capacity, slots int) float64 {
	return e.policy.GainValue(requested, capacity, slots)
}

// DisableFactors reports whether enhancement is suppressed for req.
func (e *Engine) DisableFactors(req spawncap.SpawnRequest) bool {
	return e.policy.DisableFactorsFor(req.Faction)
}

// -----------------------------------------------------------------------------
// Decision
// -----------------------------------------------------------------------------

// Decide computes the decision for req. Allowed decisions consume one order token;
// rejected ones do not.
func (e *Engine) Decide(req spawncap.SpawnRequest) spawncap.CompressionDecision {
	return e.decide(req, 1)
}

// DecideScaled is Decide with the gain value multiplied by scale, for call shapes whose
// lost power is not proportional to the lost count (points-budget spawners).
func (e *Engine) DecideScaled(req spawncap.SpawnRequest, scale float64) spawncap.CompressionDecision {
	return e.decide(req, scale)
}

func (e *Engine) decide(req spawncap.SpawnRequest, scale float64) spawncap.CompressionDecision {
	capacity := e.policy.EffectiveCap()
	d := spawncap.CompressionDecision{
		BaseCount:   req.RequestedCount,
		CappedCount: req.RequestedCount,
		Cap:         capacity,
		Reason:      e.exclusion(req, capacity),
	}

	if d.Reason == "" {
		d.Allowed = true
		d.CappedCount = min(req.RequestedCount, capacity)
		d.EnhanceSlotCount = e.policy.EnhanceSlotCount(capacity)
		d.GainValue = e.policy.GainValue(req.RequestedCount, capacity, d.EnhanceSlotCount)
		if scale > 0 && scale != 1 {
			d.GainValue *= scale
			if e.policy.MaxGain > 0 {
				d.GainValue = min(d.GainValue, e.policy.MaxGain)
			}
		}
		d.Order = e.rt.Orders().Next()
		d.DisableFactors = e.policy.DisableFactorsFor(req.Faction)

		e.rt.Stats().IncrCounter(spawncap.SCCompressionEvents, 1)
		e.rt.Stats().SetGauge(spawncap.SGLastCap, float64(capacity))
		e.rt.Stats().SetGauge(spawncap.SGLastGainValue, d.GainValue)
	} else {
		e.rt.Stats().IncrCounter(spawncap.SCPassthroughEvents, 1)
	}

	e.rt.Logger().Debug("compression decided",
		zap.Stringer("shape", req.Shape),
		zap.String("kind", req.Kind.Name),
		zap.Int("requested", req.RequestedCount),
		zap.Int("capped", d.CappedCount),
		zap.Bool("allowed", d.Allowed),
		zap.String("reason", d.Reason),
		zap.Float64("gain", d.GainValue),
		zap.Int64("order", d.Order),
	)
	e.rt.Publish(&spawncap.CompressionDecidedEvent{Request: req, Decision: d})
	return d
}

func (e *Engine) exclusion(req spawncap.SpawnRequest, capacity int) string {
	switch {
	case req.Validate() != nil:
		return ReasonInvalid
	case !e.policy.CompressionEnabled:
		return ReasonDisabled
	case !e.policy.AllowsShape(req.Shape):
		return ReasonShape
	case req.RequestedCount <= capacity:
		return ReasonWithinCap
	case !e.policy.AllowsKind(req.Kind):
		return ReasonKindExcluded
	default:
		return ""
	}
}

// -----------------------------------------------------------------------------
// Creation
// -----------------------------------------------------------------------------

// Spawn decides req and creates its agents. Requests that are not compressed get their
// full requested count, unmodified.
func (e *Engine) Spawn(ctx context.Context, req spawncap.SpawnRequest) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return e.Create(ctx, req, e.Decide(req))
}

// Create executes an already decided request.
func (e *Engine) Create(
	ctx context.Context,
	req spawncap.SpawnRequest,
	d spawncap.CompressionDecision,
) (*Result, error) {
	if !d.Allowed {
		return e.passthrough(ctx, req, d)
	}

	res := &Result{Decision: d, Agents: make([]spawncap.Agent, 0, d.CappedCount)}
	sc := scaffold.New(e.host, e.policy.CompatibilityTag, e.policy.Compatibility)
	defer sc.Release()

	for i := 0; i < d.CappedCount; i++ {
		agent, err := e.generate(ctx, req, i)
		if err != nil {
			e.finished(res, err)
			return res, err
		}
		if agent == nil {
			continue
		}
		e.mark(sc, agent)
		e.enhance(res, agent, i, d.CappedCount)
		res.Agents = append(res.Agents, agent)
	}

	return res, e.complete(ctx, req.Shape, res, sc)
}

// Redistribute applies enhancement, channels and the summary to agents the host already
// created, e.g. from a finalizer after the original call completed. agents are not
// truncated; callers trim them to d.CappedCount first when needed.
func (e *Engine) Redistribute(
	ctx context.Context,
	shape spawncap.CallShape,
	d spawncap.CompressionDecision,
	agents []spawncap.Agent,
) (*Result, error) {
	res := &Result{Decision: d, Agents: agents}
	if !d.Allowed {
		return res, nil
	}

	sc := scaffold.New(e.host, e.policy.CompatibilityTag, e.policy.Compatibility)
	defer sc.Release()

	for i, agent := range agents {
		if agent == nil {
			continue
		}
		e.mark(sc, agent)
		e.enhance(res, agent, i, len(agents))
	}

	return res, e.complete(ctx, shape, res, sc)
}

// Buff enhances agents that exist already, such as the population of a freshly generated
// map, with a fixed gain. It allocates its own order token, enhances
// EnhanceSlotCount(len(agents)) evenly spaced agents and runs neither the channels nor
// the summary; callers report the result themselves.
func (e *Engine) Buff(agents []spawncap.Agent, gain float64) *Result {
	n := len(agents)
	d := spawncap.CompressionDecision{
		BaseCount:        n,
		CappedCount:      n,
		Cap:              n,
		Allowed:          n > 0 && gain > 0,
		EnhanceSlotCount: e.policy.EnhanceSlotCount(n),
		DisableFactors:   e.policy.DisableFactors,
	}
	if d.Allowed {
		d.GainValue = gain
		d.Order = e.rt.Orders().Next()
	}

	res := &Result{Decision: d, Agents: agents}
	for i, agent := range agents {
		if agent != nil {
			e.enhance(res, agent, i, n)
		}
	}
	e.finished(res, nil)
	return res
}

func (e *Engine) passthrough(
	ctx context.Context,
	req spawncap.SpawnRequest,
	d spawncap.CompressionDecision,
) (*Result, error) {
	res := &Result{Decision: d, Agents: make([]spawncap.Agent, 0, max(req.RequestedCount, 0))}
	for i := 0; i < req.RequestedCount; i++ {
		agent, err := e.generate(ctx, req, i)
		if err != nil {
			e.finished(res, err)
			return res, err
		}
		if agent != nil {
			res.Agents = append(res.Agents, agent)
		}
	}
	e.finished(res, nil)
	return res, nil
}

// generate returns (nil, nil) for a creation failure and a wrapped
// spawncap.ErrCreationAborted for a generator error.
func (e *Engine) generate(ctx context.Context, req spawncap.SpawnRequest, slot int) (spawncap.Agent, error) {
	agent, err := e.host.GenerateAgent(ctx, req.AgentRequest())
	if err != nil {
		e.rt.Logger().Warn("agent generation failed, aborting event",
			zap.String("kind", req.Kind.Name),
			zap.Int("slot", slot),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: slot %d: %w", spawncap.ErrCreationAborted, slot, err)
	}
	if agent == nil {
		e.rt.Stats().IncrCounter(spawncap.SCCreationFailures, 1)
		e.rt.Logger().Debug("host produced no agent, skipping slot",
			zap.String("kind", req.Kind.Name),
			zap.Int("slot", slot),
		)
		return nil, nil
	}
	e.rt.Stats().IncrCounter(spawncap.SCAgentsCreated, 1)
	return agent, nil
}

// -----------------------------------------------------------------------------
// Enhancement
// -----------------------------------------------------------------------------

func (e *Engine) mark(sc *scaffold.Scaffold, agent spawncap.Agent) {
	if err := sc.Mark(agent); err != nil {
		e.rt.Logger().Warn("compatibility marker not attached",
			zap.String("agent", agent.ID()),
			zap.Error(err),
		)
	}
}

// enhance attaches the order-tagged modifier to agent when slot i of total is one of the
// evenly spaced enhanced slots.
func (e *Engine) enhance(res *Result, agent spawncap.Agent, i, total int) {
	d := res.Decision
	if !d.Enhances() || !spawncap.Enhanced(i, d.EnhanceSlotCount, total) {
		return
	}
	if !e.policy.AllowsKind(agent.Kind()) {
		return
	}

	h, err := e.host.AddModifier(agent, e.policy.ModifierTag, d.Order)
	if err != nil || h == nil {
		e.rt.Logger().Debug("modifier refused",
			zap.String("agent", agent.ID()),
			zap.Int64("order", d.Order),
			zap.Error(err),
		)
		return
	}
	if !e.host.SetModifierStrength(h, d.GainValue) {
		e.host.RemoveModifier(agent, h)
		e.rt.Logger().Debug("modifier strength refused",
			zap.String("agent", agent.ID()),
			zap.Float64("gain", d.GainValue),
		)
		return
	}

	res.Enhanced++
	e.rt.Stats().IncrCounter(spawncap.SCAgentsEnhanced, 1)
	e.rt.Publish(&spawncap.AgentEnhancedEvent{
		AgentID:  agent.ID(),
		Slot:     i,
		Order:    d.Order,
		Strength: d.GainValue,
	})
}

// complete runs the channels, releases the scaffold and emits the summary.
func (e *Engine) complete(
	ctx context.Context,
	shape spawncap.CallShape,
	res *Result,
	sc *scaffold.Scaffold,
) error {
	d := res.Decision
	if e.policy.OptionsEnabled && d.GainValue > 0 && len(res.Agents) > 0 {
		for _, ch := range e.channels {
			n, err := ch.Apply(ctx, res.Agents, d.GainValue, d.EnhanceSlotCount)
			e.rt.Publish(&spawncap.ChannelAppliedEvent{Channel: ch.Name(), Count: n, Err: err})
			if err != nil {
				e.rt.Stats().IncrCounter(spawncap.SCChannelFailures, 1)
				err = &spawncap.ChannelError{Channel: ch.Name(), Err: err}
				e.finished(res, err)
				return err
			}
			res.ChannelTotal += n
			e.rt.Stats().IncrCounter(spawncap.SCChannelEnhanced, int64(n))
		}
	}
	sc.Release()

	if e.policy.DisplayMessage {
		e.host.Notify(spawncap.Summary{
			Shape:         shape,
			Enhanced:      d.Enhances() && res.EnhancedTotal() > 0,
			BaseCount:     d.BaseCount,
			Cap:           d.Cap,
			Multiplier:    d.Multiplier(),
			Slots:         d.EnhanceSlotCount,
			EnhancedTotal: res.EnhancedTotal(),
		})
	}
	e.finished(res, nil)
	return nil
}

func (e *Engine) finished(res *Result, err error) {
	d := res.Decision
	fields := []zap.Field{
		zap.Int("requested", d.BaseCount),
		zap.Int("created", len(res.Agents)),
		zap.Int("enhanced", res.Enhanced),
		zap.Int("channel_total", res.ChannelTotal),
		zap.Int64("order", d.Order),
	}
	if err != nil {
		e.rt.Logger().Warn("compression event aborted", append(fields, zap.Error(err))...)
	} else if d.Allowed {
		e.rt.Logger().Info("compression event finished", fields...)
	}
	e.rt.Publish(&spawncap.CompressionFinishedEvent{
		Decision:     d,
		Created:      len(res.Agents),
		Enhanced:     res.Enhanced,
		ChannelTotal: res.ChannelTotal,
		Err:          err,
	})
}

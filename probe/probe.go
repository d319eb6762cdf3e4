// Package probe determines, once per process, whether precise interception of a host
// method is structurally possible.
//
// A probe introspects the target's instruction body and runs a pattern against it. The
// outcome is cached per target and pattern and per capability; nothing is ever re-probed. Probe
// failures of any kind (target missing, introspection denied, host panics) are swallowed,
// logged and recorded as unsupported: a missing capability never aborts startup.
package probe

import (
	"fmt"
	"sync"

	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/pattern"
	"go.uber.org/zap"
)

// Outcome is the cached probe result for one target and pattern.
type Outcome struct {
	State spawncap.CapabilityState
	Index int
	Err   error
}

// scanKey identifies one scan. The same target scanned with two patterns yields two
// independent outcomes.
type scanKey struct {
	target  string
	pattern string
}

// Prober runs and caches capability probes.
//
// Safe for concurrent use. Each scan and each capability is written at most once;
// afterwards it is read-only.
type Prober struct {
	rt         *spawncap.Runtime
	introspect spawncap.MethodIntrospector

	mu           sync.Mutex
	scans        map[scanKey]Outcome
	capabilities map[spawncap.Capability]spawncap.CapabilityState
}

// New creates a Prober over the host's introspection primitive.
func New(rt *spawncap.Runtime, introspect spawncap.MethodIntrospector) *Prober {
	return &Prober{
		rt:           rt,
		introspect:   introspect,
		scans:        make(map[scanKey]Outcome),
		capabilities: make(map[spawncap.Capability]spawncap.CapabilityState),
	}
}

// Probe returns the capability state of target for pattern p. The first call scans the
// target's body; later calls return the cached outcome without rescanning.
func (p *Prober) Probe(target spawncap.TargetDescriptor, pat pattern.Pattern) spawncap.CapabilityState {
	return p.probe(0, target, pat).State
}

// Outcome returns the cached outcome for target scanned with pat, if it was probed.
func (p *Prober) Outcome(target spawncap.TargetDescriptor, pat pattern.Pattern) (Outcome, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.scans[scanKey{target: target.Key(), pattern: pat.Name}]
	return o, ok
}

// ProbeAll probes every target of a capability and records the aggregate state: the
// capability is supported only if every target matched. The aggregate is determined once;
// later calls return it unchanged, even with different targets.
//
// A capability with no targets is unsupported.
func (p *Prober) ProbeAll(
	c spawncap.Capability,
	targets []spawncap.TargetDescriptor,
	pat pattern.Pattern,
) spawncap.CapabilityState {
	if st := p.State(c); st != spawncap.StateUntested {
		return st
	}

	state := spawncap.StateUnsupported
	if len(targets) > 0 {
		state = spawncap.StateSupported
	}
	for _, target := range targets {
		if p.probe(c, target, pat).State != spawncap.StateSupported {
			state = spawncap.StateUnsupported
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.capabilities[c]; ok && prev != spawncap.StateUntested {
		return prev
	}
	p.capabilities[c] = state
	p.rt.Logger().Info("capability probed",
		zap.Stringer("capability", c),
		zap.Stringer("state", state),
		zap.Int("targets", len(targets)),
	)
	return state
}

// State returns the aggregate state of a capability, StateUntested before ProbeAll.
func (p *Prober) State(c spawncap.Capability) spawncap.CapabilityState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capabilities[c]
}

func (p *Prober) probe(
	c spawncap.Capability,
	target spawncap.TargetDescriptor,
	pat pattern.Pattern,
) Outcome {
	key := target.Key()
	sk := scanKey{target: key, pattern: pat.Name}

	p.mu.Lock()
	if o, ok := p.scans[sk]; ok {
		p.mu.Unlock()
		return o
	}
	p.mu.Unlock()

	o := p.scan(target, pat)

	p.mu.Lock()
	if prev, ok := p.scans[sk]; ok {
		p.mu.Unlock()
		return prev
	}
	p.scans[sk] = o
	p.mu.Unlock()

	p.rt.Stats().IncrCounter(spawncap.SCProbes, 1)
	if o.Err != nil {
		p.rt.Stats().IncrCounter(spawncap.SCProbeFailures, 1)
		p.rt.Logger().Warn("capability probe failed",
			zap.String("target", key),
			zap.String("pattern", pat.Name),
			zap.Error(o.Err),
		)
	} else {
		p.rt.Logger().Debug("target probed",
			zap.String("target", key),
			zap.String("pattern", pat.Name),
			zap.Stringer("state", o.State),
			zap.Int("index", o.Index),
		)
	}
	p.rt.Publish(&spawncap.ProbeEvent{
		Capability: c,
		Target:     target,
		State:      o.State,
		Index:      o.Index,
		Err:        o.Err,
	})
	return o
}

// scan never panics and never returns StateUntested.
func (p *Prober) scan(target spawncap.TargetDescriptor, pat pattern.Pattern) (o Outcome) {
	o = Outcome{State: spawncap.StateUnsupported, Index: -1}
	defer func() {
		if r := recover(); r != nil {
			o = Outcome{
				State: spawncap.StateUnsupported,
				Index: -1,
				Err:   fmt.Errorf("%w: %s: panic: %v", spawncap.ErrProbeFailed, target.Key(), r),
			}
		}
	}()

	if p.introspect == nil {
		o.Err = fmt.Errorf("%w: %s: no introspection available", spawncap.ErrProbeFailed, target.Key())
		return o
	}
	body, err := p.introspect.Instructions(target)
	if err != nil {
		o.Err = fmt.Errorf("%w: %s: %w", spawncap.ErrProbeFailed, target.Key(), err)
		return o
	}

	res := pat.Match(body)
	if res.Matched {
		o.State = spawncap.StateSupported
		o.Index = res.Index
	}
	return o
}

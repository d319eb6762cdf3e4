// Package intercept decides, per target, how host methods are intercepted and installs
// the patches.
//
// # Overview
//
// Install walks the strategy-selection table ([Plan]) once at startup. Each plan's
// capability is probed; supported capabilities get precise body rewrites plus
// finalizers, unsupported ones get the plan's coarse fallback. Registration is
// isolated per target: a target that cannot be found or patched is logged, counted and
// reported, and every other target is still registered.
//
//	reg := intercept.NewRegistry(rt, host, host)
//	inst := reg.Install(s.Plans(workerTargets...))
//	for _, r := range inst.Failed() {
//	    log.Printf("%s: %v", r.Target, r.Err)
//	}
//
// A (capability, target) pair is registered at most once per Registry; installing the
// same plan again is a no-op.
package intercept

import (
	"fmt"
	"sync"

	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/probe"
	"github.com/rickchristie/spawncap/rewrite"
	"go.uber.org/zap"
)

// Registry owns the registered-target set and the chosen strategies.
type Registry struct {
	rt         *spawncap.Runtime
	introspect spawncap.MethodIntrospector
	patcher    spawncap.Patcher
	prober     *probe.Prober

	mu         sync.Mutex
	registered map[regKey]Strategy
}

type regKey struct {
	capability spawncap.Capability
	target     string
}

// NewRegistry creates a Registry. The introspector is used both to probe and to read the
// body that gets rewritten.
func NewRegistry(
	rt *spawncap.Runtime,
	introspect spawncap.MethodIntrospector,
	patcher spawncap.Patcher,
) *Registry {
	return &Registry{
		rt:         rt,
		introspect: introspect,
		patcher:    patcher,
		prober:     probe.New(rt, introspect),
		registered: make(map[regKey]Strategy),
	}
}

// Prober exposes the registry's probe cache.
func (r *Registry) Prober() *probe.Prober {
	return r.prober
}

// Install registers every plan. It never panics and never stops early.
func (r *Registry) Install(plans []Plan) Installation {
	var inst Installation
	for _, p := range plans {
		if err := p.Validate(); err != nil {
			r.rt.Logger().Error("invalid interception plan", zap.Error(err))
			continue
		}
		r.install(p, &inst)
	}
	return inst
}

// InstallOverrides registers always-coarse overrides. Like Install, failures are isolated
// per target and a second registration of the same target is a no-op.
func (r *Registry) InstallOverrides(overrides []Override) Installation {
	var inst Installation
	for _, o := range overrides {
		if o.Hook == nil {
			r.rt.Logger().Error("override without hook", zap.String("target", o.Target.Key()))
			continue
		}
		r.register(spawncap.CapNone, o.Target, StrategyOverride, &inst, func() error {
			return r.patch(o.Target, "prefix", func() error {
				return r.patcher.Prefix(o.Target, o.Hook)
			})
		})
	}
	return inst
}

// Strategy returns the strategy registered for (c, target), StrategyNone if none.
func (r *Registry) Strategy(c spawncap.Capability, target spawncap.TargetDescriptor) Strategy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registered[regKey{c, target.Key()}]
}

func (r *Registry) install(p Plan, inst *Installation) {
	state := r.prober.ProbeAll(p.Capability, p.Targets, p.Pattern)

	if state.Supported() {
		for _, target := range p.Targets {
			r.register(p.Capability, target, StrategyRewrite, inst, func() error {
				return r.applyRewrite(p, target)
			})
		}
		return
	}

	r.rt.Logger().Info("precise interception unavailable, using fallback",
		zap.Stringer("capability", p.Capability),
		zap.Stringer("fallback", p.Fallback),
	)

	switch p.Fallback {
	case StrategyOverride:
		for _, target := range p.Targets {
			r.register(p.Capability, target, StrategyOverride, inst, func() error {
				return r.patch(target, "prefix", func() error {
					return r.patcher.Prefix(target, p.Override)
				})
			})
		}
	case StrategyFinalizer:
		for _, target := range p.Targets {
			r.register(p.Capability, target, StrategyFinalizer, inst, func() error {
				return r.patch(target, "finalizer", func() error {
					return r.patcher.Finalizer(target, p.Finalizer)
				})
			})
		}
		for _, target := range p.FallbackTargets {
			r.register(p.Capability, target, StrategyFinalizer, inst, func() error {
				return r.patch(target, "finalizer", func() error {
					return r.patcher.Finalizer(target, p.FallbackFinalizer)
				})
			})
		}
	default:
		for _, target := range p.Targets {
			r.register(p.Capability, target, StrategyNone, inst, func() error { return nil })
		}
	}
}

// register runs apply once per (c, target) and records the outcome.
func (r *Registry) register(
	c spawncap.Capability,
	target spawncap.TargetDescriptor,
	strategy Strategy,
	inst *Installation,
	apply func() error,
) {
	key := regKey{c, target.Key()}

	r.mu.Lock()
	if _, done := r.registered[key]; done {
		r.mu.Unlock()
		r.rt.Logger().Debug("target already registered",
			zap.Stringer("capability", c),
			zap.String("target", key.target),
		)
		return
	}
	// Claimed before patching so a failed target is not retried either.
	r.registered[key] = StrategyNone
	r.mu.Unlock()

	err := apply()
	if err == nil {
		r.mu.Lock()
		r.registered[key] = strategy
		r.mu.Unlock()
	}

	rec := Record{Capability: c, Target: target, Strategy: strategy, Err: err}
	inst.Records = append(inst.Records, rec)

	if err != nil {
		r.rt.Stats().IncrCounter(spawncap.SCRegistrationFailures, 1)
		r.rt.Logger().Warn("target registration failed",
			zap.Stringer("capability", c),
			zap.String("target", key.target),
			zap.Stringer("strategy", strategy),
			zap.Error(err),
		)
	} else {
		r.rt.Stats().IncrCounter(spawncap.SCRegistrations, 1)
		r.rt.Logger().Info("target registered",
			zap.Stringer("capability", c),
			zap.String("target", key.target),
			zap.Stringer("strategy", strategy),
		)
	}
	r.rt.Publish(&spawncap.RegistrationEvent{
		Capability: c,
		Target:     target,
		Strategy:   strategy.String(),
		Err:        err,
	})
}

// applyRewrite installs the finalizer first, then swaps in the rewritten body. A
// finalizer left behind by a failed body swap finds no pending work and does nothing.
func (r *Registry) applyRewrite(p Plan, target spawncap.TargetDescriptor) error {
	var body []spawncap.Instruction
	err := r.patch(target, "introspect", func() error {
		var err error
		body, err = r.introspect.Instructions(target)
		return err
	})
	if err != nil {
		return err
	}

	rewritten, err := rewrite.Rewrite(body, p.Pattern, p.Injection)
	if err != nil {
		return &spawncap.RegistrationError{Target: target, Operation: "rewrite", Err: err}
	}

	if err := r.patch(target, "finalizer", func() error {
		return r.patcher.Finalizer(target, p.Finalizer)
	}); err != nil {
		return err
	}
	if err := r.patch(target, "replace_body", func() error {
		return r.patcher.ReplaceBody(target, rewritten)
	}); err != nil {
		return err
	}

	r.rt.Stats().IncrCounter(spawncap.SCRewrites, 1)
	if ce := r.rt.Logger().Check(zap.DebugLevel, "body rewritten"); ce != nil {
		ce.Write(
			zap.String("target", target.Key()),
			zap.String("injection", p.Injection.Name),
			zap.String("diff", rewrite.Diff(target.Key(), body, rewritten)),
		)
	}
	return nil
}

// patch runs one host patch operation, converting errors and panics into
// *spawncap.RegistrationError.
func (r *Registry) patch(target spawncap.TargetDescriptor, op string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &spawncap.RegistrationError{
				Target:    target,
				Operation: op,
				Err:       fmt.Errorf("panic: %v", rec),
			}
		}
	}()
	if e := fn(); e != nil {
		return &spawncap.RegistrationError{Target: target, Operation: op, Err: e}
	}
	return nil
}

package intercept

import (
	"fmt"

	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/pattern"
	"github.com/rickchristie/spawncap/rewrite"
)

// Strategy is how one target is intercepted.
type Strategy int

const (
	// StrategyNone means the target is left alone for this session.
	StrategyNone Strategy = iota

	// StrategyRewrite splices a call into the body and installs a finalizer that skips
	// redistribution when the body fails.
	StrategyRewrite

	// StrategyOverride installs an entry-level prefix that replaces the whole call.
	StrategyOverride

	// StrategyFinalizer installs completion hooks only and corrects the result post hoc.
	StrategyFinalizer
)

func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case StrategyRewrite:
		return "rewrite"
	case StrategyOverride:
		return "override"
	case StrategyFinalizer:
		return "finalizer"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Plan is one row of the strategy-selection table: what to do with a capability's
// targets when the probe succeeds, and what to fall back to when it does not.
//
// When the capability is supported every target gets Finalizer and a body rewritten with
// Injection at Pattern. Otherwise Fallback decides:
//   - StrategyOverride: every target gets the Override prefix.
//   - StrategyFinalizer: every target gets Finalizer, and every FallbackTargets entry gets
//     FallbackFinalizer.
//   - StrategyNone: nothing is installed.
type Plan struct {
	Capability spawncap.Capability
	Targets    []spawncap.TargetDescriptor

	Pattern   pattern.Pattern
	Injection rewrite.Injection
	Finalizer any

	Fallback          Strategy
	Override          any
	FallbackTargets   []spawncap.TargetDescriptor
	FallbackFinalizer any
}

// Validate reports plans that could never be installed.
func (p Plan) Validate() error {
	if len(p.Pattern.Steps) == 0 {
		return fmt.Errorf("plan %s: no pattern", p.Capability)
	}
	if len(p.Injection.Instructions) == 0 {
		return fmt.Errorf("plan %s: no injection", p.Capability)
	}
	if p.Finalizer == nil {
		return fmt.Errorf("plan %s: rewrite needs a finalizer", p.Capability)
	}
	switch p.Fallback {
	case StrategyNone:
	case StrategyOverride:
		if p.Override == nil {
			return fmt.Errorf("plan %s: override fallback without override hook", p.Capability)
		}
	case StrategyFinalizer:
		if len(p.FallbackTargets) > 0 && p.FallbackFinalizer == nil {
			return fmt.Errorf("plan %s: fallback targets without fallback finalizer", p.Capability)
		}
	default:
		return fmt.Errorf("plan %s: %s is not a fallback strategy", p.Capability, p.Fallback)
	}
	return nil
}

// Override is an always-coarse interception: the target's whole call is replaced by Hook
// on every host, without probing. Overrides are registered under spawncap.CapNone.
type Override struct {
	Target spawncap.TargetDescriptor
	Hook   any
}

// Record is the outcome of registering one target.
type Record struct {
	Capability spawncap.Capability
	Target     spawncap.TargetDescriptor
	Strategy   Strategy

	// Err is a *spawncap.RegistrationError when patching failed.
	Err error
}

// Installation reports what one Install call did.
type Installation struct {
	Records []Record
}

// Failed returns the records whose registration failed.
func (in Installation) Failed() []Record {
	var out []Record
	for _, r := range in.Records {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Find returns the record for (c, target) from this installation.
func (in Installation) Find(c spawncap.Capability, target spawncap.TargetDescriptor) (Record, bool) {
	for _, r := range in.Records {
		if r.Capability == c && r.Target.Key() == target.Key() {
			return r, true
		}
	}
	return Record{}, false
}

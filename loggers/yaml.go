// Package loggers provides event subscribers that trace what spawncap does, for the
// interactive harness and for debugging a host integration.
package loggers

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rickchristie/spawncap"
	"gopkg.in/yaml.v3"
)

// YAMLLogger subscribes to every event and writes one header line plus a YAML block per
// event. Nothing is truncated.
//
//	registry.Subscribe(loggers.NewYAMLLogger(os.Stderr))
type YAMLLogger struct {
	out io.Writer
	now func() time.Time

	// Quiet suppresses the per-agent AgentEnhanced events.
	Quiet bool
}

// NewYAMLLogger creates a YAMLLogger writing to w, or to stdout when w is nil.
func NewYAMLLogger(w io.Writer) *YAMLLogger {
	if w == nil {
		w = os.Stdout
	}
	return &YAMLLogger{out: w, now: time.Now}
}

// WithClock replaces the timestamp source.
func (l *YAMLLogger) WithClock(now func() time.Time) *YAMLLogger {
	l.now = now
	return l
}

func (l *YAMLLogger) logEvent(name string) {
	fmt.Fprintf(l.out, "\n>>> [%s]: %s\n", name, l.now().Format("2006-01-02 15:04:05.000"))
}

func (l *YAMLLogger) logYAML(v any) {
	data, err := yaml.Marshal(v)
	if err != nil {
		fmt.Fprintf(l.out, "(failed to marshal: %v)\n", err)
		return
	}
	fmt.Fprint(l.out, string(data))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func decision(d spawncap.CompressionDecision) map[string]any {
	m := map[string]any{
		"base_count":   d.BaseCount,
		"capped_count": d.CappedCount,
		"cap":          d.Cap,
		"allowed":      d.Allowed,
	}
	if d.Allowed {
		m["gain_value"] = d.GainValue
		m["enhance_slots"] = d.EnhanceSlotCount
		m["order"] = d.Order
		m["disable_factors"] = d.DisableFactors
	} else {
		m["reason"] = d.Reason
	}
	return m
}

// OnProbe implements spawncap.ProbeSubscriber.
func (l *YAMLLogger) OnProbe(_ *spawncap.Runtime, e *spawncap.ProbeEvent) {
	l.logEvent(e.EventName())
	l.logYAML(map[string]any{
		"capability": e.Capability.String(),
		"target":     e.Target.Key(),
		"state":      e.State.String(),
		"index":      e.Index,
		"error":      errString(e.Err),
	})
}

// OnRegistration implements spawncap.RegistrationSubscriber.
func (l *YAMLLogger) OnRegistration(_ *spawncap.Runtime, e *spawncap.RegistrationEvent) {
	l.logEvent(e.EventName())
	l.logYAML(map[string]any{
		"capability": e.Capability.String(),
		"target":     e.Target.Key(),
		"strategy":   e.Strategy,
		"error":      errString(e.Err),
	})
}

// OnCompressionDecided implements spawncap.CompressionDecidedSubscriber.
func (l *YAMLLogger) OnCompressionDecided(_ *spawncap.Runtime, e *spawncap.CompressionDecidedEvent) {
	l.logEvent(e.EventName())
	req := map[string]any{
		"shape":     e.Request.Shape.String(),
		"kind":      e.Request.Kind.Name,
		"requested": e.Request.RequestedCount,
	}
	if e.Request.Faction != nil {
		req["faction"] = e.Request.Faction.Name
	}
	if e.Request.PointsBudget > 0 {
		req["points"] = e.Request.PointsBudget
	}
	l.logYAML(map[string]any{
		"request":  req,
		"decision": decision(e.Decision),
	})
}

// OnAgentEnhanced implements spawncap.AgentEnhancedSubscriber.
func (l *YAMLLogger) OnAgentEnhanced(_ *spawncap.Runtime, e *spawncap.AgentEnhancedEvent) {
	if l.Quiet {
		return
	}
	l.logEvent(e.EventName())
	l.logYAML(map[string]any{
		"agent":    e.AgentID,
		"slot":     e.Slot,
		"order":    e.Order,
		"strength": e.Strength,
	})
}

// OnChannelApplied implements spawncap.ChannelAppliedSubscriber.
func (l *YAMLLogger) OnChannelApplied(_ *spawncap.Runtime, e *spawncap.ChannelAppliedEvent) {
	l.logEvent(e.EventName())
	l.logYAML(map[string]any{
		"channel": e.Channel,
		"count":   e.Count,
		"error":   errString(e.Err),
	})
}

// OnCompressionFinished implements spawncap.CompressionFinishedSubscriber. The runtime's
// counters are included.
func (l *YAMLLogger) OnCompressionFinished(rt *spawncap.Runtime, e *spawncap.CompressionFinishedEvent) {
	l.logEvent(e.EventName())
	data := map[string]any{
		"decision":      decision(e.Decision),
		"created":       e.Created,
		"enhanced":      e.Enhanced,
		"channel_total": e.ChannelTotal,
		"error":         errString(e.Err),
	}
	if rt != nil {
		data["counters"] = rt.Stats().Counters()
	}
	l.logYAML(data)
}

// OnOriginalCallError implements spawncap.OriginalCallErrorSubscriber.
func (l *YAMLLogger) OnOriginalCallError(_ *spawncap.Runtime, e *spawncap.OriginalCallErrorEvent) {
	l.logEvent(e.EventName())
	l.logYAML(map[string]any{
		"shape": e.Shape.String(),
		"error": errString(e.Err),
	})
}

var (
	_ spawncap.ProbeSubscriber               = (*YAMLLogger)(nil)
	_ spawncap.RegistrationSubscriber        = (*YAMLLogger)(nil)
	_ spawncap.CompressionDecidedSubscriber  = (*YAMLLogger)(nil)
	_ spawncap.AgentEnhancedSubscriber       = (*YAMLLogger)(nil)
	_ spawncap.ChannelAppliedSubscriber      = (*YAMLLogger)(nil)
	_ spawncap.CompressionFinishedSubscriber = (*YAMLLogger)(nil)
	_ spawncap.OriginalCallErrorSubscriber   = (*YAMLLogger)(nil)
)

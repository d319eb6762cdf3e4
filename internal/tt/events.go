// Package tt provides test helpers shared by the spawncap packages.
package tt

import (
	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/events"
)

// -----------------------------------------------------------------------------
// Event Recording
// -----------------------------------------------------------------------------

// Recorder subscribes to every event and keeps them in publish order.
type Recorder struct {
	Events []spawncap.Event
}

// NewRuntime returns a runtime whose events are recorded by a new Recorder.
func NewRuntime(opts ...spawncap.RuntimeOption) (*spawncap.Runtime, *Recorder) {
	rec := &Recorder{}
	reg := events.NewRegistry().Subscribe(rec)
	opts = append(opts, spawncap.WithDispatcher(reg))
	return spawncap.NewRuntime(opts...), rec
}

func (r *Recorder) record(e spawncap.Event) { r.Events = append(r.Events, e) }

func (r *Recorder) OnProbe(_ *spawncap.Runtime, e *spawncap.ProbeEvent) { r.record(e) }
func (r *Recorder) OnRegistration(_ *spawncap.Runtime, e *spawncap.RegistrationEvent) {
	r.record(e)
}
func (r *Recorder) OnCompressionDecided(_ *spawncap.Runtime, e *spawncap.CompressionDecidedEvent) {
	r.record(e)
}
func (r *Recorder) OnAgentEnhanced(_ *spawncap.Runtime, e *spawncap.AgentEnhancedEvent) {
	r.record(e)
}
func (r *Recorder) OnChannelApplied(_ *spawncap.Runtime, e *spawncap.ChannelAppliedEvent) {
	r.record(e)
}
func (r *Recorder) OnCompressionFinished(_ *spawncap.Runtime, e *spawncap.CompressionFinishedEvent) {
	r.record(e)
}
func (r *Recorder) OnOriginalCallError(_ *spawncap.Runtime, e *spawncap.OriginalCallErrorEvent) {
	r.record(e)
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []string {
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.EventName())
	}
	return out
}

// CountByName counts the recorded events by name.
func (r *Recorder) CountByName() map[string]int {
	counts := make(map[string]int)
	for _, e := range r.Events {
		counts[e.EventName()]++
	}
	return counts
}

// Of returns the recorded events of type T.
func Of[T spawncap.Event](r *Recorder) []T {
	var out []T
	for _, e := range r.Events {
		if x, ok := e.(T); ok {
			out = append(out, x)
		}
	}
	return out
}

// Reset drops the recorded events.
func (r *Recorder) Reset() {
	r.Events = nil
}

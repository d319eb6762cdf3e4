package events

import (
	"errors"
	"testing"

	"github.com/rickchristie/spawncap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spy implements every subscriber interface and records what it saw.
type spy struct {
	label string
	log   *[]string
	seen  []spawncap.Event
}

func (s *spy) record(e spawncap.Event) {
	s.seen = append(s.seen, e)
	if s.log != nil {
		*s.log = append(*s.log, s.label)
	}
}

func (s *spy) OnProbe(_ *spawncap.Runtime, e *spawncap.ProbeEvent)               { s.record(e) }
func (s *spy) OnRegistration(_ *spawncap.Runtime, e *spawncap.RegistrationEvent) { s.record(e) }
func (s *spy) OnCompressionDecided(_ *spawncap.Runtime, e *spawncap.CompressionDecidedEvent) {
	s.record(e)
}
func (s *spy) OnAgentEnhanced(_ *spawncap.Runtime, e *spawncap.AgentEnhancedEvent)   { s.record(e) }
func (s *spy) OnChannelApplied(_ *spawncap.Runtime, e *spawncap.ChannelAppliedEvent) { s.record(e) }
func (s *spy) OnCompressionFinished(_ *spawncap.Runtime, e *spawncap.CompressionFinishedEvent) {
	s.record(e)
}
func (s *spy) OnOriginalCallError(_ *spawncap.Runtime, e *spawncap.OriginalCallErrorEvent) {
	s.record(e)
}

// mockProbeSubscriber only listens to probes.
type mockProbeSubscriber struct {
	called bool
	event  *spawncap.ProbeEvent
}

func (s *mockProbeSubscriber) OnProbe(_ *spawncap.Runtime, e *spawncap.ProbeEvent) {
	s.called = true
	s.event = e
}

type customUnhandledEvent struct{}

func (*customUnhandledEvent) EventName() string { return "custom" }

func TestRegistry_Configuration(t *testing.T) {
	r := NewRegistry()
	assert.Zero(t, r.Len())
	assert.Equal(t, DefaultMaxRecursion, r.MaxRecursion())

	assert.Same(t, r, r.Subscribe(&spy{}).Subscribe(&mockProbeSubscriber{}))
	assert.Equal(t, 2, r.Len())

	assert.Same(t, r, r.SetMaxRecursion(4))
	assert.Equal(t, 4, r.MaxRecursion())

	r.Clear()
	assert.Zero(t, r.Len())
}

func TestRegistry_Dispatch_EveryEventType(t *testing.T) {
	tests := []struct {
		name  string
		event spawncap.Event
	}{
		{
			name: "probe",
			event: &spawncap.ProbeEvent{
				Capability: spawncap.CapGenerateAnimalsRewrite,
				Target:     spawncap.Target("AggressiveAnimalIncidentUtility", "GenerateAnimals"),
				State:      spawncap.StateSupported,
				Index:      5,
			},
		},
		{
			name: "registration",
			event: &spawncap.RegistrationEvent{
				Capability: spawncap.CapEntitySwarmRewrite,
				Strategy:   "finalizer",
				Err:        errors.New("method not found"),
			},
		},
		{name: "decided", event: &spawncap.CompressionDecidedEvent{}},
		{
			name:  "agent enhanced",
			event: &spawncap.AgentEnhancedEvent{AgentID: "Centipede-1", Order: 3, Strength: 1.5},
		},
		{name: "channel applied", event: &spawncap.ChannelAppliedEvent{Channel: "gear", Count: 2}},
		{name: "finished", event: &spawncap.CompressionFinishedEvent{Created: 20, Enhanced: 10}},
		{
			name:  "original call error",
			event: &spawncap.OriginalCallErrorEvent{Shape: spawncap.ShapeAnimals, Err: errors.New("boom")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &spy{}
			NewRegistry().Subscribe(s).Dispatch(spawncap.NewRuntime(), tt.event)

			require.Len(t, s.seen, 1)
			assert.Same(t, tt.event, s.seen[0])
		})
	}
}

func TestRegistry_Dispatch_SkipsSubscribersWithoutInterface(t *testing.T) {
	probes := &mockProbeSubscriber{}
	r := NewRegistry().Subscribe(probes)

	r.Dispatch(spawncap.NewRuntime(), &spawncap.CompressionFinishedEvent{})
	assert.False(t, probes.called)

	r.Dispatch(spawncap.NewRuntime(), &spawncap.ProbeEvent{Index: 1})
	assert.True(t, probes.called)
}

func TestRegistry_Dispatch_SubscriptionOrder(t *testing.T) {
	var log []string
	r := NewRegistry().
		Subscribe(&spy{label: "first", log: &log}).
		Subscribe(&spy{label: "second", log: &log}).
		Subscribe(&spy{label: "third", log: &log})

	r.Dispatch(spawncap.NewRuntime(), &spawncap.CompressionDecidedEvent{})

	assert.Equal(t, []string{"first", "second", "third"}, log)
}

func TestRegistry_Dispatch_ThroughRuntime(t *testing.T) {
	probes := &mockProbeSubscriber{}
	rt := spawncap.NewRuntime(spawncap.WithDispatcher(NewRegistry().Subscribe(probes)))

	rt.Publish(&spawncap.ProbeEvent{Index: 2})

	require.True(t, probes.called)
	assert.Equal(t, 2, probes.event.Index)
}

func TestRegistry_Dispatch_UnknownEventType_DoesNotPanic(t *testing.T) {
	r := NewRegistry().Subscribe(&spy{})

	assert.NotPanics(t, func() {
		r.Dispatch(spawncap.NewRuntime(), &customUnhandledEvent{})
	})
}

func TestRegistry_Dispatch_NestedRegistryReceivesEverything(t *testing.T) {
	inner := &spy{}
	outer := NewRegistry().Subscribe(NewRegistry().Subscribe(inner))

	outer.Dispatch(spawncap.NewRuntime(), &spawncap.ProbeEvent{})
	outer.Dispatch(spawncap.NewRuntime(), &spawncap.CompressionFinishedEvent{})

	assert.Len(t, inner.seen, 2)
}

// republisher publishes a probe event from inside OnProbe, forever.
type republisher struct {
	calls int
}

func (s *republisher) OnProbe(rt *spawncap.Runtime, _ *spawncap.ProbeEvent) {
	s.calls++
	rt.Publish(&spawncap.ProbeEvent{})
}

func TestRegistry_Dispatch_RecursionLimit(t *testing.T) {
	registry := NewRegistry().SetMaxRecursion(3)
	sub := &republisher{}
	registry.Subscribe(sub)
	rt := spawncap.NewRuntime(spawncap.WithDispatcher(registry))

	assert.PanicsWithValue(t,
		"events: spawncap:probe nested more than 3 dispatches deep",
		func() { rt.Publish(&spawncap.ProbeEvent{}) },
	)
	assert.Equal(t, 3, sub.calls)
}

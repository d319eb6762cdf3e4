// Package scaffold brackets foreign-system-sensitive work with a transient marker
// modifier.
//
// Some third-party modifier systems react to every modifier change on an agent. While a
// compression event is still decorating its agents, a marker tells them to hold off; the
// marker is removed once the event is done. A Scaffold guarantees the removal happens on
// every exit path and happens exactly once per marker.
//
//	sc := scaffold.New(host, "CR_DummyForCompatibility", settings.Compatibility)
//	err := sc.Bracket(agents, func() error {
//	    return applyChannels(agents)
//	})
package scaffold

import (
	"errors"

	"github.com/rickchristie/spawncap"
)

type mark struct {
	agent  spawncap.Agent
	handle spawncap.ModifierHandle
}

// Scaffold tracks the markers it attached. An inactive Scaffold does nothing.
//
// Not safe for concurrent use; one Scaffold belongs to one compression event.
type Scaffold struct {
	sink   spawncap.ModifierSink
	tag    string
	active bool

	marks  []mark
	marked map[string]bool
}

// New creates a Scaffold that attaches tag through sink when active.
func New(sink spawncap.ModifierSink, tag string, active bool) *Scaffold {
	return &Scaffold{
		sink:   sink,
		tag:    tag,
		active: active && sink != nil && tag != "",
		marked: make(map[string]bool),
	}
}

// Active reports whether the scaffold attaches markers.
func (s *Scaffold) Active() bool {
	return s.active
}

// Mark attaches the marker to agent. Marking an agent twice is a no-op.
func (s *Scaffold) Mark(agent spawncap.Agent) error {
	if !s.active || agent == nil || s.marked[agent.ID()] {
		return nil
	}
	h, err := s.sink.AddModifier(agent, s.tag, 0)
	if err != nil {
		return err
	}
	if h == nil {
		return errors.New("scaffold: host refused marker " + s.tag)
	}
	s.marked[agent.ID()] = true
	s.marks = append(s.marks, mark{agent: agent, handle: h})
	return nil
}

// Len returns the number of markers currently attached.
func (s *Scaffold) Len() int {
	return len(s.marks)
}

// Release removes every marker attached so far. Calling it again only removes markers
// attached since the previous call.
func (s *Scaffold) Release() {
	marks := s.marks
	s.marks = nil
	clear(s.marked)
	for _, m := range marks {
		s.sink.RemoveModifier(m.agent, m.handle)
	}
}

// Bracket marks agents, runs fn and releases the markers on every exit path, including
// a panic in fn. Marker failures do not stop fn from running; they are joined onto fn's
// error.
func (s *Scaffold) Bracket(agents []spawncap.Agent, fn func() error) error {
	defer s.Release()

	var markErrs []error
	for _, a := range agents {
		if err := s.Mark(a); err != nil {
			markErrs = append(markErrs, err)
		}
	}
	return errors.Join(append([]error{fn()}, markErrs...)...)
}

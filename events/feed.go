package events

import (
	"sync"

	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/internal/buffer"
)

// Unsubscribe cancels a feed subscription. Its channel is closed once the events queued
// before the call were delivered. Safe to call more than once.
type Unsubscribe func()

type feedSubscription struct {
	id    uint64
	names map[string]bool
	queue *buffer.Queue[spawncap.Event]
}

func (s *feedSubscription) wants(name string) bool {
	return len(s.names) == 0 || s.names[name]
}

// Feed hands published events to channel subscribers, so they can be consumed away from
// the host's update loop. Dispatch never blocks: every subscription queues without
// bound.
//
// A Feed is a [spawncap.Dispatcher]. Install it directly with [spawncap.WithDispatcher]
// or register it on a Registry, which forwards every event to it:
//
//	feed := events.NewFeed()
//	registry.Subscribe(feed)
//
//	ch, unsubscribe := feed.Subscribe(spawncap.EventNameCompressionFinished)
//	defer unsubscribe()
//	go func() {
//	    for e := range ch {
//	        ...
//	    }
//	}()
//
// All methods are safe for concurrent use.
type Feed struct {
	mu     sync.RWMutex
	subs   []*feedSubscription
	nextID uint64
	closed bool
}

// NewFeed creates an empty Feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Subscribe returns a channel receiving the events whose names are listed, or every
// event when none are. On a closed feed the channel is already closed.
func (f *Feed) Subscribe(names ...string) (<-chan spawncap.Event, Unsubscribe) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		ch := make(chan spawncap.Event)
		close(ch)
		return ch, func() {}
	}

	sub := &feedSubscription{id: f.nextID, queue: buffer.NewQueue[spawncap.Event]()}
	f.nextID++
	if len(names) > 0 {
		sub.names = make(map[string]bool, len(names))
		for _, n := range names {
			sub.names[n] = true
		}
	}
	f.subs = append(f.subs, sub)

	return sub.queue.Out(), func() { f.unsubscribe(sub) }
}

func (f *Feed) unsubscribe(sub *feedSubscription) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub.queue.Close()
	for i, s := range f.subs {
		if s.id == sub.id {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			return
		}
	}
}

// Dispatch implements spawncap.Dispatcher.
func (f *Feed) Dispatch(_ *spawncap.Runtime, event spawncap.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed || event == nil {
		return
	}
	name := event.EventName()
	for _, sub := range f.subs {
		if sub.wants(name) {
			sub.queue.Push(event)
		}
	}
}

// Len returns the number of live subscriptions.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Close closes every subscription. Events dispatched afterwards are dropped.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for _, sub := range f.subs {
		sub.queue.Close()
	}
	f.subs = nil
}

var _ spawncap.Dispatcher = (*Feed)(nil)

package spawncap

import (
	"maps"
	"sync"
)

// StatKey names a counter or gauge. The keys spawncap writes itself are prefixed with
// "spawncap:" so hosts can keep their own keys in the same Stats.
type StatKey string

// Stats records what spawncap did since the runtime was created.
//
// Counters only grow: events decided, slots enhanced, fallbacks installed. Gauges hold
// the most recent value of something, for example the multiplier of the last event.
// Stats may be read from any goroutine while the host loop writes it.
type Stats struct {
	mu       sync.RWMutex
	counters map[string]int64
	gauges   map[string]float64
}

func NewStats() *Stats {
	return &Stats{counters: map[string]int64{}, gauges: map[string]float64{}}
}

// IncrCounter adds delta to the counter named by key. A negative delta panics.
func (s *Stats) IncrCounter(key StatKey, delta int64) {
	if delta < 0 {
		panic("spawncap: counter " + string(key) + " cannot decrease")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[string(key)] += delta
}

func (s *Stats) GetCounter(key StatKey) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[string(key)]
}

func (s *Stats) SetGauge(key StatKey, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gauges[string(key)] = value
}

func (s *Stats) GetGauge(key StatKey) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gauges[string(key)]
}

// Counters returns a snapshot; mutating it does not affect s.
func (s *Stats) Counters() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.counters)
}

// Gauges returns a snapshot; mutating it does not affect s.
func (s *Stats) Gauges() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.gauges)
}

package spawncap

import "sync/atomic"

// OrderSequence issues order tokens: one per compression event, strictly increasing for
// the lifetime of the process, never reused and never decremented. All modifiers created
// within one event carry the same token so consumers can group them by event.
//
// The zero value is ready to use; the first token issued is 1.
type OrderSequence struct {
	last atomic.Int64
}

// Next allocates a new token.
func (s *OrderSequence) Next() int64 {
	return s.last.Add(1)
}

// Last returns the most recently issued token, or 0 if none was issued.
func (s *OrderSequence) Last() int64 {
	return s.last.Load()
}

// Resume makes the sequence continue after token, for hosts that persist the last token
// across save/load. Tokens never move backwards: resuming below the current value is a
// no-op.
func (s *OrderSequence) Resume(token int64) {
	for {
		cur := s.last.Load()
		if token <= cur {
			return
		}
		if s.last.CompareAndSwap(cur, token) {
			return
		}
	}
}

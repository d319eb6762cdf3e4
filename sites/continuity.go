package sites

import (
	"sync"

	"github.com/rickchristie/spawncap"
)

// Continuity carries a decision from an injected helper call to the finalizer of the same
// host call. It holds at most one pending decision per call shape; Take clears it.
type Continuity struct {
	mu      sync.Mutex
	pending map[spawncap.CallShape]spawncap.CompressionDecision
}

// NewContinuity creates an empty store.
func NewContinuity() *Continuity {
	return &Continuity{pending: make(map[spawncap.CallShape]spawncap.CompressionDecision)}
}

// Put records d for shape and reports whether an unclaimed decision was replaced.
func (c *Continuity) Put(shape spawncap.CallShape, d spawncap.CompressionDecision) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, replaced := c.pending[shape]
	c.pending[shape] = d
	return replaced
}

// Take returns and clears the pending decision for shape.
func (c *Continuity) Take(shape spawncap.CallShape) (spawncap.CompressionDecision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.pending[shape]
	delete(c.pending, shape)
	return d, ok
}

// Pending reports whether shape has a pending decision.
func (c *Continuity) Pending(shape spawncap.CallShape) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[shape]
	return ok
}

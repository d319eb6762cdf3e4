package tt

import (
	"testing"

	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/internal/simhost"
	"github.com/stretchr/testify/assert"
)

// -----------------------------------------------------------------------------
// Enhancement Assertions
// -----------------------------------------------------------------------------

// AssertEnhancedSlots asserts that exactly the agents at the evenly spaced positions for
// slots carry one live tag modifier with the given order and strength, and that no other
// agent carries one.
func AssertEnhancedSlots(
	t *testing.T,
	h *simhost.Host,
	agents []spawncap.Agent,
	tag string,
	order int64,
	slots int,
	strength float64,
) {
	t.Helper()

	want := make(map[int]bool)
	for _, i := range spawncap.EnhancedSlots(len(agents), slots) {
		want[i] = true
	}
	for i, agent := range agents {
		var found []*simhost.Modifier
		for _, m := range h.Modifiers(agent) {
			if m.Tag() == tag {
				found = append(found, m)
			}
		}
		if !want[i] {
			assert.Empty(t, found, "agent[%d] %s must not be enhanced", i, agent.ID())
			continue
		}
		if !assert.Len(t, found, 1, "agent[%d] %s must carry one %s modifier", i, agent.ID(), tag) {
			continue
		}
		assert.Equal(t, order, found[0].Order(), "agent[%d] order", i)
		assert.InDelta(t, strength, found[0].Strength(), 1e-9, "agent[%d] strength", i)
	}
}

// AssertOrdersIncreasing asserts that every compression event that finished with an
// allowed decision carries a strictly greater order token than the one before it.
func AssertOrdersIncreasing(t *testing.T, rec *Recorder) {
	t.Helper()

	var last int64
	for i, e := range Of[*spawncap.CompressionFinishedEvent](rec) {
		if !e.Decision.Allowed {
			continue
		}
		assert.Greater(t, e.Decision.Order, last, "finished event %d", i)
		last = e.Decision.Order
	}
}

// AssertSummary asserts the single notice the host received.
func AssertSummary(t *testing.T, h *simhost.Host, expected spawncap.Summary) {
	t.Helper()

	if !assert.Len(t, h.Notices, 1, "notices") {
		return
	}
	got := h.Notices[0]
	assert.InDelta(t, expected.Multiplier, got.Multiplier, 1e-9, "multiplier")
	got.Multiplier = expected.Multiplier
	assert.Equal(t, expected, got)
}

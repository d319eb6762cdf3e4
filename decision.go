package spawncap

// CompressionDecision is computed once per SpawnRequest and is immutable afterwards.
//
// Invariants:
//   - CappedCount <= BaseCount
//   - CappedCount == BaseCount whenever !Allowed or BaseCount <= cap
//   - GainValue == 0 whenever !Allowed
type CompressionDecision struct {
	// BaseCount is the originally requested count.
	BaseCount int

	// CappedCount is the number of agents that will actually be spawned.
	CappedCount int

	// Cap is the configured cap the decision was made against.
	Cap int

	// Allowed is false when the original, uncompressed path must be used.
	Allowed bool

	// GainValue is the power redistributed onto each enhanced slot.
	GainValue float64

	// EnhanceSlotCount is how many of the CappedCount slots are eligible for enhancement.
	EnhanceSlotCount int

	// Order is the event's order token (0 when not allowed).
	Order int64

	// DisableFactors forces zero enhancement regardless of GainValue.
	DisableFactors bool

	// Reason explains why compression was not allowed. Empty when Allowed.
	Reason string
}

// Enhances reports whether this decision can attach any enhancement at all.
func (d CompressionDecision) Enhances() bool {
	return d.Allowed && d.GainValue > 0 && !d.DisableFactors
}

// Multiplier is the strength multiplier shown to users (gain + 1).
func (d CompressionDecision) Multiplier() float64 {
	return d.GainValue + 1
}

// -----------------------------------------------------------------------------
// Enhancement Assignment
// -----------------------------------------------------------------------------
//
// Enhanced slots are spread evenly across the creation order. With n = min(slots, total)
// the enhanced positions are floor(k*total/n) for k in [0, n). Positions are distinct and
// strictly increasing whenever n <= total, so exactly n slots are selected, and the set
// depends only on (total, slots).
// -----------------------------------------------------------------------------

// Enhanced reports whether creation slot i (0-based) out of total receives an
// enhancement when slots slots are to be enhanced.
func Enhanced(i, slots, total int) bool {
	n := min(slots, total)
	if n <= 0 || i < 0 || i >= total {
		return false
	}
	// smallest k with k*total/n >= i
	k := (i*n + total - 1) / total
	return k < n && k*total/n == i
}

// EnhancedSlots returns the enhanced slot indices in ascending order.
func EnhancedSlots(total, slots int) []int {
	n := min(slots, total)
	if n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	for k := 0; k < n; k++ {
		out = append(out, k*total/n)
	}
	return out
}

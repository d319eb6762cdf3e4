package spawncap

import "fmt"

// Summary is the user-facing outcome of one compression event. Hosts translate it; Text
// gives the English fallback.
type Summary struct {
	Shape CallShape

	// Enhanced selects the "enhanced" wording. False selects the "not enhanced" wording.
	Enhanced bool

	BaseCount  int
	Cap        int
	Multiplier float64
	Slots      int

	// EnhancedTotal counts modifiers plus agents touched by auxiliary channels.
	EnhancedTotal int

	// Label names the map of a map buff.
	Label string
}

// MessageKey returns the translation key for the summary's wording.
func (s Summary) MessageKey() string {
	if s.Shape == ShapeMapBuff {
		return "CR_MapBuffMessage"
	}
	if s.Enhanced {
		return "CR_RaidCompressedMessageEnhanced"
	}
	return "CR_RaidCompressedMessageNotEnhanced"
}

// Text renders the English message.
func (s Summary) Text() string {
	if s.Shape == ShapeMapBuff {
		return fmt.Sprintf("%d preexisting enemies buffed on %s.", s.EnhancedTotal, s.Label)
	}
	if s.Enhanced {
		return fmt.Sprintf(
			"Spawn compressed from %d to %d. Up to %d agents were enhanced to x%.2f strength.",
			s.BaseCount, s.Cap, s.Slots, s.Multiplier,
		)
	}
	return fmt.Sprintf("Spawn compressed from %d to %d.", s.BaseCount, s.Cap)
}

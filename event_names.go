package spawncap

// Event name constants define the EventName values for spawncap events.
//
// # Naming Convention
//
// Event names follow the pattern: "namespace:category:action"
//   - namespace: "spawncap" for library events
//   - category: what the event is about (probe, registration, compression, ...)
//   - action: what happened - omitted for single events
//
// # Examples
//
//	spawncap:probe                 // a target was probed
//	spawncap:compression:decided   // a decision was made for a request
//	spawncap:compression:finished  // an event reached a terminal state
const (
	EventNameProbe        = "spawncap:probe"
	EventNameRegistration = "spawncap:registration"

	EventNameCompressionDecided  = "spawncap:compression:decided"
	EventNameCompressionFinished = "spawncap:compression:finished"

	EventNameAgentEnhanced     = "spawncap:agent:enhanced"
	EventNameChannelApplied    = "spawncap:channel:applied"
	EventNameOriginalCallError = "spawncap:original_call_error"
)

package spawncap

// Standard key prefix for all spawncap keys.
// Hosts should use their own prefix (e.g., "mymod:") for custom stats.
const KeyPrefix = "spawncap:"

// Probe and registration tracking.
const (
	SCProbes               StatKey = "spawncap:probes"
	SCProbeFailures        StatKey = "spawncap:probe_failures"
	SCRegistrations        StatKey = "spawncap:registrations"
	SCRegistrationFailures StatKey = "spawncap:registration_failures"
	SCRewrites             StatKey = "spawncap:rewrites"
)

// Compression tracking.
const (
	SCCompressionEvents  StatKey = "spawncap:compression_events"
	SCPassthroughEvents  StatKey = "spawncap:passthrough_events"
	SCAgentsCreated      StatKey = "spawncap:agents_created"
	SCAgentsEnhanced     StatKey = "spawncap:agents_enhanced"
	SCCreationFailures   StatKey = "spawncap:creation_failures"
	SCChannelEnhanced    StatKey = "spawncap:channel_enhanced"
	SCChannelFailures    StatKey = "spawncap:channel_failures"
	SCOriginalCallErrors StatKey = "spawncap:original_call_errors"
)

// Gauges describing the most recent compression event.
const (
	SGLastCap       StatKey = "spawncap:last_cap"
	SGLastGainValue StatKey = "spawncap:last_gain_value"
)

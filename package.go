// Package spawncap caps the number of agents a host simulation spawns for a single event
// and redistributes the power lost by the missing agents onto a deterministic subset of
// the agents that were actually spawned.
//
// The library does not own the spawn logic. The host exposes its own generation, arrival
// and modifier primitives ([Host]) plus opportunistic interception points, and spawncap
// plugs into those points at startup.
//
// # Quick Start
//
//	settings, err := config.Load("spawncap.yaml")
//	if err != nil {
//	    return err
//	}
//
//	// 1. One runtime handle per process
//	rt := spawncap.NewRuntime(spawncap.WithLogger(logger))
//
//	// 2. Compression engine over the host primitives
//	catalog, err := settings.Catalog()
//	if err != nil {
//	    return err
//	}
//	eng := engine.New(rt, host, settings.Policy()).
//	    WithChannels(channels.Enabled(settings.Channels(), host, catalog)...)
//
//	// 3. Interception sites and their strategy table
//	s := sites.New(eng, host)
//
//	// 4. Probe capabilities once and install interception
//	reg := intercept.NewRegistry(rt, host, host)
//	report := reg.Install(s.Plans(workerTargets...))
//	reg.InstallOverrides(s.Overrides())
//
//	// 5. Buff the population of new maps from the host's tick
//	tracker := mapbuff.NewTracker(eng, settings.MapBuffConfig())
//
// # Capability Probing
//
// The host's internal method bodies are not a stable API. Before patching, every target is
// probed once with a declarative instruction pattern (see the pattern and probe packages).
// When the pattern is found, the precise rewrite is installed together with a finalizer;
// otherwise a coarse whole-call override (or a post-hoc finalizer) is used instead. The
// decision is cached for the lifetime of the process.
//
// # Compression
//
// The engine decides once per event whether compression applies, how many creation slots
// are eligible for enhancement, and how strong each enhancement is. Modifiers created in
// one event share an order token drawn from the runtime's [OrderSequence], which lets
// consumers group them by event.
//
// # Thread Safety
//
// The host drives spawncap from its single-threaded update loop. The order sequence and
// the probe cache are nevertheless safe for concurrent use; everything else assumes one
// compression event at a time.
package spawncap

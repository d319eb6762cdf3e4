package testutil

import (
	"context"
	"fmt"
	"io"

	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/channels"
	"github.com/rickchristie/spawncap/config"
	"github.com/rickchristie/spawncap/engine"
	"github.com/rickchristie/spawncap/events"
	"github.com/rickchristie/spawncap/intercept"
	"github.com/rickchristie/spawncap/internal/simhost"
	"github.com/rickchristie/spawncap/internal/tt"
	"github.com/rickchristie/spawncap/loggers"
	"github.com/rickchristie/spawncap/mapbuff"
	"github.com/rickchristie/spawncap/sites"
)

// Game is the full spawncap stack installed on a simulated host. Its methods play the
// host's side of each intercepted call: they look up the hooks the registry installed and
// run them the way the host's patching runtime would.
type Game struct {
	Settings     *config.Settings
	Host         *simhost.Host
	Runtime      *spawncap.Runtime
	Recorder     *tt.Recorder
	Engine       *engine.Engine
	Sites        *sites.Sites
	Registry     *intercept.Registry
	Installation intercept.Installation
	Tracker      *mapbuff.Tracker

	// ThrowInBody makes the next simulated original body fail with this error after its
	// injected helper ran. It is cleared once used.
	ThrowInBody error

	tick int64
}

// NewGame builds the stack from cfg and installs every interception.
func NewGame(cfg TestConfig) (*Game, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	logger := cfg.Logger()

	rec := &tt.Recorder{}
	reg := events.NewRegistry().Subscribe(rec)
	if cfg.LogWriter != nil {
		reg.Subscribe(loggers.NewYAMLLogger(cfg.LogWriter))
	}
	if cfg.Feed != nil {
		reg.Subscribe(cfg.Feed)
	}
	rt := spawncap.NewRuntime(spawncap.WithLogger(logger), spawncap.WithDispatcher(reg))

	h := simhost.New()
	setBodies(h, cfg.ChangedHost)

	catalog, err := settings.Catalog()
	if err != nil {
		return nil, err
	}
	eng := engine.New(rt, h, settings.Policy()).
		WithChannels(channels.Enabled(settings.Channels(), h, catalog)...)

	s := sites.New(eng, h)
	ir := intercept.NewRegistry(rt, h, h)
	inst := ir.Install(s.Plans())
	overrides := ir.InstallOverrides(s.Overrides())
	inst.Records = append(inst.Records, overrides.Records...)

	return &Game{
		Settings:     settings,
		Host:         h,
		Runtime:      rt,
		Recorder:     rec,
		Engine:       eng,
		Sites:        s,
		Registry:     ir,
		Installation: inst,
		Tracker:      mapbuff.NewTracker(eng, settings.MapBuffConfig()),
	}, nil
}

func setBodies(h *simhost.Host, changed bool) {
	body := func(current func() []spawncap.Instruction) []spawncap.Instruction {
		if changed {
			return simhost.ChangedBody()
		}
		return current()
	}
	for _, w := range sites.DefaultWorkerTargets() {
		h.SetBody(w, body(simhost.PawnsBody))
	}
	h.SetBody(sites.ChooseOptionsTarget, simhost.ChangedBody()).
		SetBody(sites.GenerateAnimalsTarget, body(simhost.AnimalsBody)).
		SetBody(sites.GenerateEntitiesTarget, body(simhost.SwarmBody)).
		SetBody(sites.RaidSpawnThreatsTarget, simhost.ChangedBody()).
		SetBody(sites.HiveSpawnTarget, simhost.ChangedBody())
}

// -----------------------------------------------------------------------------
// Host calls
// -----------------------------------------------------------------------------

// Raid spawns count agents of kind for faction the way a raid strategy would.
func (g *Game) Raid(ctx context.Context, kind spawncap.Kind, faction *spawncap.Faction, count int) ([]spawncap.Agent, error) {
	parms := &sites.IncidentParms{
		Kind:      &kind,
		Faction:   faction,
		PawnCount: count,
		Points:    float64(count) * kind.CombatPower,
		Tile:      1,
		Arrival:   "edge_walk_in",
	}
	if hook, ok := g.Host.Hook(sites.RaidSpawnThreatsTarget, simhost.PatchPrefix).(sites.RaidPrefix); ok {
		agents, outcome, err := hook(ctx, parms)
		if outcome == sites.SkipOriginal {
			return agents, err
		}
	}

	agents, err := g.original(ctx, spawncap.AgentRequest{Kind: kind, Faction: faction, Tile: 1}, parms.PawnCount)
	if err != nil {
		return agents, err
	}
	return agents, g.Host.Arrive(ctx, agents, parms.Arrival)
}

// GroupPawns generates one pawn per option through a group-kind worker.
func (g *Game) GroupPawns(
	ctx context.Context,
	worker spawncap.TargetDescriptor,
	faction *spawncap.Faction,
	options []sites.PawnOption,
) ([]spawncap.Agent, error) {
	parms := &sites.GroupParms{Faction: faction, Points: points(options), Tile: 1}

	chosen := options
	if fin, ok := g.Host.Hook(sites.ChooseOptionsTarget, simhost.PatchFinalizer).(sites.OptionsFinalizer); ok {
		if err := fin(ctx, nil, parms, &chosen); err != nil {
			return nil, err
		}
	}

	var pawns []spawncap.Agent
	err := g.body(worker, func(helper any) {
		if h, ok := helper.(sites.PawnOptionsHelper); ok {
			chosen = h(chosen, parms)
		}
	}, func() error {
		for _, opt := range chosen {
			a, err := g.Host.GenerateAgent(ctx, spawncap.AgentRequest{Kind: opt.Kind, Faction: faction, Tile: 1})
			if err != nil {
				return err
			}
			if a != nil {
				pawns = append(pawns, a)
			}
		}
		return nil
	})

	if fin, ok := g.Host.Hook(worker, simhost.PatchFinalizer).(sites.PawnsFinalizer); ok {
		err = fin(ctx, err, parms, pawns)
	}
	return pawns, err
}

// Animals generates an aggressive animal pack of count animals.
func (g *Game) Animals(ctx context.Context, kind spawncap.Kind, count int) ([]spawncap.Agent, error) {
	target := sites.GenerateAnimalsTarget
	if hook, ok := g.Host.Hook(target, simhost.PatchPrefix).(sites.AnimalsPrefix); ok {
		agents, outcome, err := hook(ctx, kind, 1, float64(count)*kind.CombatPower, count)
		if outcome == sites.SkipOriginal {
			return agents, err
		}
	}

	var pack []spawncap.Agent
	err := g.body(target, func(helper any) {
		if h, ok := helper.(sites.AnimalCountHelper); ok {
			count = h(kind, count)
		}
	}, func() error {
		var err error
		pack, err = g.original(ctx, spawncap.AgentRequest{Kind: kind, Tile: 1}, count)
		return err
	})

	if fin, ok := g.Host.Hook(target, simhost.PatchFinalizer).(sites.AnimalsFinalizer); ok {
		err = fin(ctx, err, kind, &pack)
	}
	return pack, err
}

// EntitySwarm generates count entities cycling through kinds.
func (g *Game) EntitySwarm(ctx context.Context, kinds []spawncap.Kind, count int) ([]spawncap.Agent, error) {
	target := sites.GenerateEntitiesTarget
	parms := &sites.IncidentParms{PawnCount: count, Tile: 1}

	var swarm []spawncap.Agent
	err := g.body(target, func(helper any) {
		if h, ok := helper.(sites.EntitySwarmHelper); ok {
			h(parms)
		}
	}, func() error {
		for i := 0; i < count; i++ {
			a, err := g.Host.GenerateAgent(ctx, spawncap.AgentRequest{Kind: kinds[i%len(kinds)], Tile: 1})
			if err != nil {
				return err
			}
			if a != nil {
				swarm = append(swarm, a)
			}
		}
		return nil
	})

	if fin, ok := g.Host.Hook(target, simhost.PatchFinalizer).(sites.SwarmFinalizer); ok {
		err = fin(ctx, err, parms, &swarm)
	}
	return swarm, err
}

// Hive spawns a hive's defenders from a points budget.
func (g *Game) Hive(ctx context.Context, points float64, kinds []spawncap.Kind, faction *spawncap.Faction) ([]spawncap.Agent, error) {
	parms := &sites.HiveParams{Points: points, Kinds: kinds, Faction: faction, Tile: 1, Arrival: "tunnel"}
	if hook, ok := g.Host.Hook(sites.HiveSpawnTarget, simhost.PatchPrefix).(sites.HivePrefix); ok {
		agents, outcome, err := hook(ctx, parms)
		if outcome == sites.SkipOriginal {
			return agents, err
		}
	}

	// original: spend the budget on the first affordable kind
	var agents []spawncap.Agent
	left := points
	for left > 0 {
		var kind *spawncap.Kind
		for i := range kinds {
			if kinds[i].CombatPower > 0 && kinds[i].CombatPower <= left {
				kind = &kinds[i]
				break
			}
		}
		if kind == nil {
			break
		}
		left -= kind.CombatPower
		a, err := g.Host.GenerateAgent(ctx, spawncap.AgentRequest{Kind: *kind, Faction: faction, Tile: 1})
		if err != nil {
			return agents, err
		}
		if a != nil {
			agents = append(agents, a)
		}
	}
	return agents, g.Host.Arrive(ctx, agents, parms.Arrival)
}

// VisitMap generates a map populated with agents and ticks it until the map buff handled
// it or maxTicks passed. It returns how many agents were buffed.
func (g *Game) VisitMap(ctx context.Context, m mapbuff.MapState, maxTicks int) (int, error) {
	total := 0
	for i := 0; i < maxTicks && !g.Tracker.Done(m.ID); i++ {
		g.tick++
		n, err := g.Tracker.Tick(ctx, g.tick, m)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// body runs a simulated original method body: every injected helper call found in the
// target's current body is resolved and handed to inject, then rest runs. A pending
// ThrowInBody replaces rest's result.
func (g *Game) body(target spawncap.TargetDescriptor, inject func(helper any), rest func() error) error {
	for _, in := range g.Host.Body(target) {
		ref, ok := in.Member()
		if !ok {
			continue
		}
		if helper, ok := g.Sites.Helper(ref); ok {
			inject(helper)
		}
	}
	if err := g.ThrowInBody; err != nil {
		g.ThrowInBody = nil
		return err
	}
	return rest()
}

func (g *Game) original(ctx context.Context, req spawncap.AgentRequest, count int) ([]spawncap.Agent, error) {
	out := make([]spawncap.Agent, 0, count)
	for i := 0; i < count; i++ {
		a, err := g.Host.GenerateAgent(ctx, req)
		if err != nil {
			return out, err
		}
		if a != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func points(options []sites.PawnOption) float64 {
	total := 0.0
	for _, o := range options {
		total += o.Selected
	}
	return total
}

// -----------------------------------------------------------------------------
// Reporting
// -----------------------------------------------------------------------------

// PrintInstallation prints the strategy chosen per target.
func (g *Game) PrintInstallation(w io.Writer) {
	PrintSection(w, "Interception")
	for _, r := range g.Installation.Records {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		fmt.Fprintf(w, "  %-26s %-10s %s (%s)\n", r.Capability, r.Strategy, r.Target.Key(), status)
	}
}

// PrintNotices prints the messages the host received, in English.
func (g *Game) PrintNotices(w io.Writer) {
	PrintSection(w, "Messages")
	if len(g.Host.Notices) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, n := range g.Host.Notices {
		fmt.Fprintf(w, "  [%s] %s\n", n.MessageKey(), n.Text())
	}
}

// PrintStats prints the runtime's counters.
func (g *Game) PrintStats(w io.Writer) {
	PrintSection(w, "Stats")
	PrintCounters(w, g.Runtime.Stats().Counters())
}

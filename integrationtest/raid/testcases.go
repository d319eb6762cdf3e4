// Package raid holds end-to-end spawn scenarios played on the simulated game.
package raid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/integrationtest/testutil"
	"github.com/rickchristie/spawncap/intercept"
	"github.com/rickchristie/spawncap/mapbuff"
	"github.com/rickchristie/spawncap/sites"
)

var (
	pirates = &spawncap.Faction{Name: "Pirates", Hostile: true}
	traders = &spawncap.Faction{Name: "Traders"}
	insects = &spawncap.Faction{Name: "Insects", Hostile: true}

	tribal   = spawncap.Kind{Name: "Tribal_Warrior", CombatPower: 35}
	gunner   = spawncap.Kind{Name: "Mercenary_Gunner", CombatPower: 85}
	warg     = spawncap.Kind{Name: "Warg", CombatPower: 65}
	lancer   = spawncap.Kind{Name: "Mech_Lancer", Mechanoid: true, CombatPower: 180}
	fingers  = spawncap.Kind{Name: "Fingerspike", CombatPower: 40}
	trispike = spawncap.Kind{Name: "Trispike", CombatPower: 75}

	megascarab = spawncap.Kind{Name: "Megascarab", Insectoid: true, CombatPower: 40}
	spelopede  = spawncap.Kind{Name: "Spelopede", Insectoid: true, CombatPower: 65}
	megaspider = spawncap.Kind{Name: "Megaspider", Insectoid: true, CombatPower: 150}
)

// ErrHostGeneration is raised by the simulated original body in RunFailedOriginalScenario.
var ErrHostGeneration = errors.New("host generation failed")

// GetRaidTestCases returns every scenario in this package.
func GetRaidTestCases() []testutil.TestCase {
	return []testutil.TestCase{
		{Name: "Large Raid", Description: "100 raiders compressed to the cap", Run: RunLargeRaidScenario},
		{Name: "Group Pawns", Description: "a rewritten group-kind worker trims its options", Run: RunGroupPawnsScenario},
		{Name: "Manhunter Pack", Description: "a rewritten animal generator loops to the cap", Run: RunManhunterScenario},
		{Name: "Entity Swarm", Description: "a generated swarm is truncated after the fact", Run: RunEntitySwarmScenario},
		{Name: "Insect Hive", Description: "a hive budget with insectoids allowed and disallowed", Run: RunHiveScenario},
		{Name: "Changed Host", Description: "fallback strategies on a host without the known patterns", Run: RunChangedHostScenario},
		{Name: "Failed Original", Description: "a host call that fails after the count was compressed", Run: RunFailedOriginalScenario},
		{Name: "Map Buff", Description: "pre-existing hostiles on a new map are buffed once", Run: RunMapBuffScenario},
		{Name: "Mechanoid Raid", Description: "excluded kinds pass through untouched", Run: RunMechanoidScenario},
	}
}

func newGame(w io.Writer, config testutil.TestConfig, title string) (*testutil.Game, error) {
	testutil.PrintHeader(w, title)
	g, err := testutil.NewGame(config)
	if err != nil {
		return nil, err
	}
	g.PrintInstallation(w)
	return g, nil
}

func finish(w io.Writer, config testutil.TestConfig, g *testutil.Game) {
	g.PrintNotices(w)
	if config.ShowStats {
		g.PrintStats(w)
	}
}

func pawnOptions(kinds []spawncap.Kind, n int) []sites.PawnOption {
	out := make([]sites.PawnOption, n)
	for i := range out {
		k := kinds[i%len(kinds)]
		out[i] = sites.PawnOption{Kind: k, Selected: k.CombatPower}
	}
	return out
}

// expectNotice checks the single notice the host received.
func expectNotice(g *testutil.Game, base, capped, slots int, multiplier float64) error {
	if err := testutil.Expect(len(g.Host.Notices) == 1, "want 1 notice, got %d", len(g.Host.Notices)); err != nil {
		return err
	}
	n := g.Host.Notices[0]
	return testutil.FirstError(
		testutil.Expect(n.BaseCount == base, "notice base count %d, want %d", n.BaseCount, base),
		testutil.Expect(n.Cap == capped, "notice cap %d, want %d", n.Cap, capped),
		testutil.Expect(n.Slots == slots, "notice slots %d, want %d", n.Slots, slots),
		testutil.Expect(math.Abs(n.Multiplier-multiplier) < 1e-9,
			"notice multiplier %.4f, want %.4f", n.Multiplier, multiplier),
	)
}

// expectEnhanced checks how many agents carry the core modifier.
func expectEnhanced(g *testutil.Game, agents []spawncap.Agent, want int) error {
	tag := g.Engine.Policy().ModifierTag
	got := 0
	for _, a := range agents {
		for _, m := range g.Host.Modifiers(a) {
			if m.Tag() == tag {
				got++
			}
		}
	}
	return testutil.Expect(got == want, "%d agents enhanced, want %d", got, want)
}

// -----------------------------------------------------------------------------
// Scenarios
// -----------------------------------------------------------------------------

// RunLargeRaidScenario: a pirate raid of 100 is replaced by 20 raiders, 10 of which
// carry the lost power (gain 8, x9).
func RunLargeRaidScenario(ctx context.Context, w io.Writer, config testutil.TestConfig) error {
	g, err := newGame(w, config, "LARGE RAID")
	if err != nil {
		return err
	}

	agents, err := g.Raid(ctx, tribal, pirates, 100)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nraid of 100 arrived with %d raiders\n", len(agents))
	finish(w, config, g)

	return testutil.FirstError(
		testutil.Expect(len(agents) == 20, "raid created %d agents, want 20", len(agents)),
		testutil.Expect(len(g.Host.Arrivals) == 1, "want 1 arrival, got %d", len(g.Host.Arrivals)),
		expectEnhanced(g, agents, 10),
		expectNotice(g, 100, 20, 10, 9),
	)
}

// RunGroupPawnsScenario: a trader caravan worker asked for 30 pawns generates 20.
func RunGroupPawnsScenario(ctx context.Context, w io.Writer, config testutil.TestConfig) error {
	g, err := newGame(w, config, "GROUP PAWNS")
	if err != nil {
		return err
	}

	worker := sites.DefaultWorkerTargets()[0]
	pawns, err := g.GroupPawns(ctx, worker, pirates, pawnOptions([]spawncap.Kind{tribal, gunner}, 30))
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\ngroup of 30 options generated %d pawns\n", len(pawns))
	finish(w, config, g)

	return testutil.FirstError(
		testutil.Expect(len(pawns) == 20, "generated %d pawns, want 20", len(pawns)),
		testutil.Expect(!g.Sites.Continuity().Pending(spawncap.ShapeGroupPawns), "pending decision left behind"),
		expectEnhanced(g, pawns, 10),
		expectNotice(g, 30, 20, 10, 2),
	)
}

// RunManhunterScenario: 45 wargs become 20 (gain 2.5).
func RunManhunterScenario(ctx context.Context, w io.Writer, config testutil.TestConfig) error {
	g, err := newGame(w, config, "MANHUNTER PACK")
	if err != nil {
		return err
	}

	pack, err := g.Animals(ctx, warg, 45)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\npack of 45 generated %d animals\n", len(pack))
	finish(w, config, g)

	return testutil.FirstError(
		testutil.Expect(len(pack) == 20, "generated %d animals, want 20", len(pack)),
		expectEnhanced(g, pack, 10),
		expectNotice(g, 45, 20, 10, 3.5),
	)
}

// RunEntitySwarmScenario: a swarm of 60 is truncated to 20 (gain 4).
func RunEntitySwarmScenario(ctx context.Context, w io.Writer, config testutil.TestConfig) error {
	g, err := newGame(w, config, "ENTITY SWARM")
	if err != nil {
		return err
	}

	swarm, err := g.EntitySwarm(ctx, []spawncap.Kind{fingers, trispike}, 60)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nswarm of 60 left %d entities\n", len(swarm))
	finish(w, config, g)

	return testutil.FirstError(
		testutil.Expect(len(swarm) == 20, "swarm has %d entities, want 20", len(swarm)),
		expectEnhanced(g, swarm, 10),
		expectNotice(g, 60, 20, 10, 5),
	)
}

// RunHiveScenario: with default settings insectoids are excluded and the hive spends its
// 3000 points on 75 megascarabs. With insectoids allowed it creates 20, the gain scaled
// by the budget share they used and bounded at 10.
func RunHiveScenario(ctx context.Context, w io.Writer, config testutil.TestConfig) error {
	g, err := newGame(w, config, "INSECT HIVE")
	if err != nil {
		return err
	}
	kinds := []spawncap.Kind{megascarab, spelopede, megaspider}

	original, err := g.Hive(ctx, 3000, kinds, insects)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\ninsectoids excluded: hive spawned %d\n", len(original))
	if err := testutil.FirstError(
		testutil.Expect(len(original) == 75, "original hive spawned %d, want 75", len(original)),
		testutil.Expect(len(g.Host.Notices) == 0, "original hive must not notify"),
	); err != nil {
		return err
	}

	settings := *g.Settings
	settings.Kinds.AllowInsectoids = true
	config.Settings = &settings
	if g, err = testutil.NewGame(config); err != nil {
		return err
	}

	agents, err := g.Hive(ctx, 3000, kinds, insects)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "insectoids allowed: hive spawned %d\n", len(agents))
	finish(w, config, g)

	return testutil.FirstError(
		testutil.Expect(len(agents) == 20, "hive spawned %d, want 20", len(agents)),
		expectEnhanced(g, agents, 10),
		expectNotice(g, 75, 20, 10, 11),
	)
}

// RunChangedHostScenario: on a host whose bodies changed, group pawns fall back to the
// options finalizer, animals to the whole-call override and swarms are left alone.
func RunChangedHostScenario(ctx context.Context, w io.Writer, config testutil.TestConfig) error {
	config.ChangedHost = true
	g, err := newGame(w, config, "CHANGED HOST")
	if err != nil {
		return err
	}

	strategies := []struct {
		c      spawncap.Capability
		target spawncap.TargetDescriptor
		want   intercept.Strategy
	}{
		{spawncap.CapGeneratePawnsRewrite, sites.DefaultWorkerTargets()[0], intercept.StrategyFinalizer},
		{spawncap.CapGenerateAnimalsRewrite, sites.GenerateAnimalsTarget, intercept.StrategyOverride},
		{spawncap.CapEntitySwarmRewrite, sites.GenerateEntitiesTarget, intercept.StrategyNone},
	}
	for _, s := range strategies {
		if got := g.Registry.Strategy(s.c, s.target); got != s.want {
			return fmt.Errorf("strategy for %s: got %s, want %s", s.c, got, s.want)
		}
	}

	pawns, err := g.GroupPawns(ctx, sites.DefaultWorkerTargets()[0], pirates, pawnOptions([]spawncap.Kind{tribal}, 30))
	if err != nil {
		return err
	}
	pack, err := g.Animals(ctx, warg, 45)
	if err != nil {
		return err
	}
	swarm, err := g.EntitySwarm(ctx, []spawncap.Kind{fingers}, 60)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\npawns %d, animals %d, entities %d\n", len(pawns), len(pack), len(swarm))
	finish(w, config, g)

	return testutil.FirstError(
		testutil.Expect(len(pawns) == 20, "generated %d pawns, want 20", len(pawns)),
		testutil.Expect(len(pack) == 20, "generated %d animals, want 20", len(pack)),
		testutil.Expect(len(swarm) == 60, "swarm has %d entities, want 60", len(swarm)),
		testutil.Expect(len(g.Host.Notices) == 2, "want 2 notices, got %d", len(g.Host.Notices)),
		expectEnhanced(g, pawns, 10),
		expectEnhanced(g, pack, 10),
		expectEnhanced(g, swarm, 0),
	)
}

// RunFailedOriginalScenario: the worker body fails after its options were compressed. The
// error surfaces unchanged and the pending decision is dropped.
func RunFailedOriginalScenario(ctx context.Context, w io.Writer, config testutil.TestConfig) error {
	g, err := newGame(w, config, "FAILED ORIGINAL")
	if err != nil {
		return err
	}

	g.ThrowInBody = ErrHostGeneration
	_, err = g.GroupPawns(ctx, sites.DefaultWorkerTargets()[1], traders, pawnOptions([]spawncap.Kind{gunner}, 40))
	fmt.Fprintf(w, "\ngroup generation returned: %v\n", err)
	finish(w, config, g)

	return testutil.FirstError(
		testutil.Expect(errors.Is(err, ErrHostGeneration), "want the host error, got %v", err),
		testutil.Expect(!g.Sites.Continuity().Pending(spawncap.ShapeGroupPawns), "pending decision left behind"),
		testutil.Expect(len(g.Host.Notices) == 0, "failed call must not notify"),
		testutil.Expect(g.Runtime.Stats().GetCounter(spawncap.SCOriginalCallErrors) == 1, "original call error not counted"),
	)
}

// RunMapBuffScenario: a new outpost map with 6 hostiles at 3000 threat buffs 3 of them
// once (gain 0.2). The player's home map is never buffed.
func RunMapBuffScenario(ctx context.Context, w io.Writer, config testutil.TestConfig) error {
	g, err := newGame(w, config, "MAP BUFF")
	if err != nil {
		return err
	}

	populate := func(n int, faction *spawncap.Faction) ([]spawncap.Agent, error) {
		out := make([]spawncap.Agent, 0, n)
		for i := 0; i < n; i++ {
			a, err := g.Host.GenerateAgent(ctx, spawncap.AgentRequest{Kind: gunner, Faction: faction})
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
		return out, nil
	}
	hostiles, err := populate(6, pirates)
	if err != nil {
		return err
	}
	friendlies, err := populate(2, traders)
	if err != nil {
		return err
	}

	home := mapbuff.MapState{ID: 1, Label: "Home", PlayerHome: true, Agents: hostiles, Threat: 3000}
	homeBuffed, err := g.VisitMap(ctx, home, 200)
	if err != nil {
		return err
	}

	outpost := mapbuff.MapState{ID: 2, Label: "Outpost", Agents: append(hostiles, friendlies...), Threat: 3000}
	buffed, err := g.VisitMap(ctx, outpost, 200)
	if err != nil {
		return err
	}
	again, err := g.VisitMap(ctx, outpost, 200)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nhome buffed %d, outpost buffed %d, revisit buffed %d\n", homeBuffed, buffed, again)
	finish(w, config, g)

	return testutil.FirstError(
		testutil.Expect(homeBuffed == 0, "home map buffed %d", homeBuffed),
		testutil.Expect(buffed == 3, "outpost buffed %d, want 3", buffed),
		testutil.Expect(again == 0, "revisit buffed %d", again),
		testutil.Expect(g.Tracker.Done(2), "outpost not marked done"),
		expectEnhanced(g, friendlies, 0),
		testutil.Expect(len(g.Host.Notices) == 1 &&
			g.Host.Notices[0].Text() == "3 preexisting enemies buffed on Outpost.",
			"unexpected notices %v", g.Host.Notices),
	)
}

// RunMechanoidScenario: a mechanoid raid of 50 is excluded by default and spawns in full.
func RunMechanoidScenario(ctx context.Context, w io.Writer, config testutil.TestConfig) error {
	g, err := newGame(w, config, "MECHANOID RAID")
	if err != nil {
		return err
	}

	agents, err := g.Raid(ctx, lancer, pirates, 50)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nmechanoid raid of 50 arrived with %d\n", len(agents))
	finish(w, config, g)

	return testutil.FirstError(
		testutil.Expect(len(agents) == 50, "raid created %d agents, want 50", len(agents)),
		testutil.Expect(len(g.Host.Notices) == 0, "excluded raid must not notify"),
		expectEnhanced(g, agents, 0),
	)
}

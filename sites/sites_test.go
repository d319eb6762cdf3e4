package sites

import (
	"context"
	"errors"
	"testing"

	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/engine"
	"github.com/rickchristie/spawncap/intercept"
	"github.com/rickchristie/spawncap/internal/simhost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tribal  = spawncap.Kind{Name: "Tribal", CombatPower: 35}
	boomrat = spawncap.Kind{Name: "Boomrat", CombatPower: 30}
	scyther = spawncap.Kind{Name: "Mech_Scyther", Mechanoid: true, CombatPower: 150}
	megaspi = spawncap.Kind{Name: "Megaspider", Insectoid: true, CombatPower: 10}
	pirates = &spawncap.Faction{Name: "Pirates", Hostile: true}
	insects = &spawncap.Faction{Name: "Insects", Hostile: true}
)

type fixture struct {
	host  *simhost.Host
	rt    *spawncap.Runtime
	eng   *engine.Engine
	sites *Sites
}

func newFixture(mutate func(*engine.Policy)) *fixture {
	p := engine.DefaultPolicy()
	if mutate != nil {
		mutate(&p)
	}
	h := simhost.New()
	rt := spawncap.NewRuntime()
	eng := engine.New(rt, h, p)
	return &fixture{host: h, rt: rt, eng: eng, sites: New(eng, h)}
}

func (f *fixture) generate(t *testing.T, kind spawncap.Kind, n int) []spawncap.Agent {
	t.Helper()
	out := make([]spawncap.Agent, 0, n)
	for i := 0; i < n; i++ {
		a, err := f.host.GenerateAgent(context.Background(), spawncap.AgentRequest{Kind: kind})
		require.NoError(t, err)
		out = append(out, a)
	}
	return out
}

func options(kind spawncap.Kind, n int) []PawnOption {
	out := make([]PawnOption, n)
	for i := range out {
		out[i] = PawnOption{Kind: kind, Selected: kind.CombatPower}
	}
	return out
}

// ----------------------------------------------------------------------------
// Installation
// ----------------------------------------------------------------------------

func currentHost(h *simhost.Host) {
	for _, w := range DefaultWorkerTargets() {
		h.SetBody(w, simhost.PawnsBody())
	}
	h.SetBody(ChooseOptionsTarget, simhost.ChangedBody()).
		SetBody(GenerateAnimalsTarget, simhost.AnimalsBody()).
		SetBody(GenerateEntitiesTarget, simhost.SwarmBody()).
		SetBody(RaidSpawnThreatsTarget, simhost.ChangedBody()).
		SetBody(HiveSpawnTarget, simhost.ChangedBody())
}

func changedHost(h *simhost.Host) {
	for _, w := range DefaultWorkerTargets() {
		h.SetBody(w, simhost.ChangedBody())
	}
	h.SetBody(ChooseOptionsTarget, simhost.ChangedBody()).
		SetBody(GenerateAnimalsTarget, simhost.ChangedBody()).
		SetBody(GenerateEntitiesTarget, simhost.ChangedBody()).
		SetBody(RaidSpawnThreatsTarget, simhost.ChangedBody()).
		SetBody(HiveSpawnTarget, simhost.ChangedBody())
}

// targetPatches is the patch kinds one target is expected to carry, in order.
type targetPatches struct {
	target spawncap.TargetDescriptor
	kinds  []simhost.PatchKind
}

func TestSites_Install(t *testing.T) {
	worker := DefaultWorkerTargets()[0]

	tests := []struct {
		name     string
		setup    func(*simhost.Host)
		expected []targetPatches
	}{
		{
			name:  "current host gets rewrites",
			setup: currentHost,
			expected: []targetPatches{
				{worker, []simhost.PatchKind{simhost.PatchFinalizer, simhost.PatchBody}},
				{ChooseOptionsTarget, nil},
				{GenerateAnimalsTarget, []simhost.PatchKind{simhost.PatchFinalizer, simhost.PatchBody}},
				{GenerateEntitiesTarget, []simhost.PatchKind{simhost.PatchFinalizer, simhost.PatchBody}},
				{RaidSpawnThreatsTarget, []simhost.PatchKind{simhost.PatchPrefix}},
				{HiveSpawnTarget, []simhost.PatchKind{simhost.PatchPrefix}},
			},
		},
		{
			name:  "changed host falls back",
			setup: changedHost,
			expected: []targetPatches{
				{worker, []simhost.PatchKind{simhost.PatchFinalizer}},
				{ChooseOptionsTarget, []simhost.PatchKind{simhost.PatchFinalizer}},
				{GenerateAnimalsTarget, []simhost.PatchKind{simhost.PatchPrefix}},
				{GenerateEntitiesTarget, nil},
				{RaidSpawnThreatsTarget, []simhost.PatchKind{simhost.PatchPrefix}},
				{HiveSpawnTarget, []simhost.PatchKind{simhost.PatchPrefix}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			tt.setup(f.host)
			reg := intercept.NewRegistry(f.rt, f.host, f.host)

			inst := reg.Install(f.sites.Plans())
			over := reg.InstallOverrides(f.sites.Overrides())
			require.Empty(t, inst.Failed())
			require.Empty(t, over.Failed())

			for _, want := range tt.expected {
				var got []simhost.PatchKind
				for _, p := range f.host.PatchesFor(want.target, "") {
					got = append(got, p.Kind)
				}
				assert.Equal(t, want.kinds, got, want.target.Key())
			}
		})
	}
}

func TestSites_UnsupportedNeverRewritten(t *testing.T) {
	f := newFixture(nil)
	changedHost(f.host)
	reg := intercept.NewRegistry(f.rt, f.host, f.host)

	for i := 0; i < 3; i++ {
		reg.Install(f.sites.Plans())
	}

	for _, target := range []spawncap.TargetDescriptor{GenerateAnimalsTarget, GenerateEntitiesTarget} {
		assert.Empty(t, f.host.PatchesFor(target, simhost.PatchBody), target.Key())
		assert.Equal(t, 1, f.host.Introspected[target.Key()], "probed once per process")
	}
	assert.Equal(t, intercept.StrategyOverride,
		reg.Strategy(spawncap.CapGenerateAnimalsRewrite, GenerateAnimalsTarget))
	assert.Equal(t, intercept.StrategyNone,
		reg.Strategy(spawncap.CapEntitySwarmRewrite, GenerateEntitiesTarget))
	assert.Len(t, f.host.PatchesFor(GenerateAnimalsTarget, simhost.PatchPrefix), 1)
}

func TestSites_InstalledHooksAreCallable(t *testing.T) {
	f := newFixture(nil)
	changedHost(f.host)
	reg := intercept.NewRegistry(f.rt, f.host, f.host)
	reg.Install(f.sites.Plans())
	reg.InstallOverrides(f.sites.Overrides())

	prefix, ok := f.host.Hook(GenerateAnimalsTarget, simhost.PatchPrefix).(AnimalsPrefix)
	require.True(t, ok)

	agents, outcome, err := prefix(context.Background(), boomrat, 3, 0, 60)
	require.NoError(t, err)
	assert.Equal(t, SkipOriginal, outcome)
	assert.Len(t, agents, 20)

	_, ok = f.host.Hook(RaidSpawnThreatsTarget, simhost.PatchPrefix).(RaidPrefix)
	assert.True(t, ok)
	_, ok = f.host.Hook(HiveSpawnTarget, simhost.PatchPrefix).(HivePrefix)
	assert.True(t, ok)
	_, ok = f.host.Hook(ChooseOptionsTarget, simhost.PatchFinalizer).(OptionsFinalizer)
	assert.True(t, ok)
}

func TestSites_Helper(t *testing.T) {
	s := newFixture(nil).sites

	tests := []struct {
		name   string
		member spawncap.MemberRef
		ok     bool
	}{
		{name: "pawn options", member: spawncap.MemberRef{Owner: "Continuity", Name: "CompressPawnOptions"}, ok: true},
		{name: "animal count", member: spawncap.MemberRef{Owner: "Continuity", Name: "CompressAnimalCount"}, ok: true},
		{name: "swarm", member: spawncap.MemberRef{Owner: "Continuity", Name: "MarkEntitySwarm"}, ok: true},
		{name: "unknown member", member: spawncap.MemberRef{Owner: "Continuity", Name: "Nope"}},
		{name: "foreign owner", member: spawncap.MemberRef{Owner: "PawnGenerator", Name: "CompressPawnOptions"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := s.Helper(tt.member)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ok, h != nil)
		})
	}
}

// ----------------------------------------------------------------------------
// Overrides
// ----------------------------------------------------------------------------

func TestSites_RaidSpawnThreats(t *testing.T) {
	type expected struct {
		outcome  Outcome
		agents   int
		arrivals int
		count    int
	}

	kind := tribal
	mech := scyther

	tests := []struct {
		name     string
		parms    *IncidentParms
		expected expected
	}{
		{
			name:     "over cap is replaced",
			parms:    &IncidentParms{Kind: &kind, Faction: pirates, PawnCount: 100, Arrival: "edge_walk_in"},
			expected: expected{outcome: SkipOriginal, agents: 20, arrivals: 1, count: 20},
		},
		{
			name:     "within cap runs original",
			parms:    &IncidentParms{Kind: &kind, Faction: pirates, PawnCount: 12, Arrival: "edge_walk_in"},
			expected: expected{outcome: RunOriginal, count: 12},
		},
		{
			name:     "no arrival runs original",
			parms:    &IncidentParms{Kind: &kind, Faction: pirates, PawnCount: 100},
			expected: expected{outcome: RunOriginal, count: 100},
		},
		{
			name:     "no faction runs original",
			parms:    &IncidentParms{Kind: &kind, PawnCount: 100, Arrival: "drop_pods"},
			expected: expected{outcome: RunOriginal, count: 100},
		},
		{
			name:     "excluded kind runs original",
			parms:    &IncidentParms{Kind: &mech, Faction: pirates, PawnCount: 100, Arrival: "drop_pods"},
			expected: expected{outcome: RunOriginal, count: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)

			agents, outcome, err := f.sites.RaidSpawnThreats(context.Background(), tt.parms)
			require.NoError(t, err)

			assert.Equal(t, tt.expected.outcome, outcome)
			assert.Len(t, agents, tt.expected.agents)
			assert.Len(t, f.host.Arrivals, tt.expected.arrivals)
			assert.Equal(t, tt.expected.count, tt.parms.PawnCount)
			if tt.expected.outcome == RunOriginal {
				assert.Empty(t, f.host.Created)
				assert.Zero(t, f.host.ModifierCount())
			}
		})
	}
}

func TestSites_RaidSpawnThreatsNilParms(t *testing.T) {
	_, outcome, err := newFixture(nil).sites.RaidSpawnThreats(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, RunOriginal, outcome)
}

func TestSites_RaidCreationErrorSkipsArrival(t *testing.T) {
	f := newFixture(nil)
	f.host.ErrAtCall = 4
	kind := tribal

	agents, outcome, err := f.sites.RaidSpawnThreats(context.Background(),
		&IncidentParms{Kind: &kind, Faction: pirates, PawnCount: 50, Arrival: "edge"})

	require.ErrorIs(t, err, spawncap.ErrCreationAborted)
	assert.Equal(t, SkipOriginal, outcome)
	assert.Len(t, agents, 4)
	assert.Empty(t, f.host.Arrivals)
}

func TestAnimalCount(t *testing.T) {
	tests := []struct {
		name     string
		kind     spawncap.Kind
		points   float64
		expected int
	}{
		{name: "rounds", kind: boomrat, points: 1000, expected: 33},
		{name: "at least one", kind: boomrat, points: 1, expected: 1},
		{name: "zero combat power", kind: spawncap.Kind{Name: "Ghost"}, points: 500, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AnimalCount(tt.kind, tt.points))
		})
	}
}

func TestSites_GenerateAnimals(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*engine.Policy)
		points   float64
		count    int
		outcome  Outcome
		agents   int
		enhanced int
	}{
		{name: "count from points", points: 1500, outcome: SkipOriginal, agents: 20, enhanced: 10},
		{name: "explicit count", points: 0, count: 40, outcome: SkipOriginal, agents: 20, enhanced: 10},
		{name: "within cap", points: 300, outcome: RunOriginal},
		{
			name:    "manhunters off",
			mutate:  func(p *engine.Policy) { p.AllowManhunters = false },
			points:  1500,
			outcome: RunOriginal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.mutate)

			agents, outcome, err := f.sites.GenerateAnimals(context.Background(), boomrat, 7, tt.points, tt.count)
			require.NoError(t, err)

			assert.Equal(t, tt.outcome, outcome)
			assert.Len(t, agents, tt.agents)
			assert.Equal(t, tt.enhanced, f.host.ModifierCount())
			assert.Empty(t, f.host.Arrivals, "animal packs are placed by the caller")
		})
	}
}

func TestSites_SpawnHive(t *testing.T) {
	allowInsects := func(p *engine.Policy) { p.AllowInsectoids = true }

	type expected struct {
		outcome  Outcome
		agents   int
		enhanced int
		strength float64
		notices  int
		base     int
	}

	tests := []struct {
		name     string
		mutate   func(*engine.Policy)
		parms    *HiveParams
		expected expected
	}{
		{
			name:   "budget past the cap is compressed with scaled gain",
			mutate: allowInsects,
			parms:  &HiveParams{Points: 500, Kinds: []spawncap.Kind{megaspi}, Faction: insects},
			// 50 iterations, 20 created using 200 of 500 points:
			// GainValue(50, 20, 10) = 3, scaled by 500/200
			expected: expected{outcome: SkipOriginal, agents: 20, enhanced: 10, strength: 7.5, notices: 1, base: 50},
		},
		{
			name:     "budget within cap",
			mutate:   allowInsects,
			parms:    &HiveParams{Points: 100, Kinds: []spawncap.Kind{megaspi}, Faction: insects},
			expected: expected{outcome: SkipOriginal, agents: 10},
		},
		{
			name:     "budget below cheapest kind buys one",
			mutate:   allowInsects,
			parms:    &HiveParams{Points: 4, Kinds: []spawncap.Kind{megaspi}, Faction: insects},
			expected: expected{outcome: SkipOriginal, agents: 1},
		},
		{
			name:     "insectoids not allowed",
			parms:    &HiveParams{Points: 500, Kinds: []spawncap.Kind{megaspi}},
			expected: expected{outcome: RunOriginal},
		},
		{
			name: "hive switch off",
			mutate: func(p *engine.Policy) {
				p.AllowInsectoids = true
				p.AllowHive = false
			},
			parms:    &HiveParams{Points: 500, Kinds: []spawncap.Kind{megaspi}},
			expected: expected{outcome: RunOriginal},
		},
		{
			name:     "no budget",
			mutate:   allowInsects,
			parms:    &HiveParams{Kinds: []spawncap.Kind{megaspi}},
			expected: expected{outcome: SkipOriginal},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.mutate)

			agents, outcome, err := f.sites.SpawnHive(context.Background(), tt.parms)
			require.NoError(t, err)

			assert.Equal(t, tt.expected.outcome, outcome)
			assert.Len(t, agents, tt.expected.agents)
			assert.Equal(t, tt.expected.enhanced, f.host.ModifierCount())
			require.Len(t, f.host.Notices, tt.expected.notices)
			if tt.expected.notices > 0 {
				assert.Equal(t, tt.expected.base, f.host.Notices[0].BaseCount)
			}
			if tt.expected.enhanced > 0 {
				for _, a := range agents {
					for _, m := range f.host.Modifiers(a) {
						assert.InDelta(t, tt.expected.strength, m.Strength(), 1e-9)
					}
				}
			}
			if tt.expected.agents > 0 {
				assert.Len(t, f.host.Arrivals, 1)
			}
		})
	}
}

func TestSites_SpawnHiveChoosesAmongAffordable(t *testing.T) {
	f := newFixture(func(p *engine.Policy) { p.AllowInsectoids = true })
	queen := spawncap.Kind{Name: "Megascarab", Insectoid: true, CombatPower: 40}
	var offered [][]spawncap.Kind

	agents, _, err := f.sites.SpawnHive(context.Background(), &HiveParams{
		Points: 50,
		Kinds:  []spawncap.Kind{megaspi, queen},
		Choose: func(c []spawncap.Kind) spawncap.Kind {
			offered = append(offered, c)
			return c[len(c)-1]
		},
	})
	require.NoError(t, err)

	// 40 for the scarab, then only the spider fits the remaining 10
	require.Len(t, agents, 2)
	assert.Equal(t, "Megascarab", agents[0].Kind().Name)
	assert.Equal(t, "Megaspider", agents[1].Kind().Name)
	assert.Len(t, offered[1], 1)
}

// ----------------------------------------------------------------------------
// Rewrite path: helpers and finalizers
// ----------------------------------------------------------------------------

func TestSites_PawnsRewritePath(t *testing.T) {
	f := newFixture(nil)
	parms := &GroupParms{Faction: pirates, Points: 3000}

	chosen := f.sites.CompressPawnOptions(options(tribal, 45), parms)
	require.Len(t, chosen, 20)
	assert.True(t, f.sites.Continuity().Pending(spawncap.ShapeGroupPawns))

	pawns := f.generate(t, tribal, len(chosen))
	err := f.sites.GeneratePawnsFinalizer(context.Background(), nil, parms, pawns)
	require.NoError(t, err)

	assert.False(t, f.sites.Continuity().Pending(spawncap.ShapeGroupPawns))
	assert.Len(t, f.host.Tagged(engine.DefaultModifierTag, 0), 10)
	require.Len(t, f.host.Notices, 1)
	assert.Equal(t, 45, f.host.Notices[0].BaseCount)
}

func TestSites_PawnOptionsWithinCapUntouched(t *testing.T) {
	f := newFixture(nil)

	chosen := f.sites.CompressPawnOptions(options(tribal, 8), &GroupParms{Faction: pirates})

	assert.Len(t, chosen, 8)
	assert.False(t, f.sites.Continuity().Pending(spawncap.ShapeGroupPawns))
	require.NoError(t, f.sites.GeneratePawnsFinalizer(context.Background(), nil, nil, f.generate(t, tribal, 8)))
	assert.Zero(t, f.host.ModifierCount())
}

func TestSites_PawnOptionsFinalizerFallback(t *testing.T) {
	f := newFixture(nil)
	parms := &GroupParms{Faction: pirates}
	result := options(tribal, 30)

	require.NoError(t, f.sites.PawnOptionsFinalizer(context.Background(), nil, parms, &result))
	assert.Len(t, result, 20)

	require.NoError(t, f.sites.GeneratePawnsFinalizer(context.Background(), nil, parms, f.generate(t, tribal, 20)))
	assert.Equal(t, 10, f.host.ModifierCount())
}

func TestSites_AnimalsRewritePath(t *testing.T) {
	f := newFixture(nil)

	n := f.sites.CompressAnimalCount(boomrat, 33)
	require.Equal(t, 20, n)

	pack := f.generate(t, boomrat, n)
	require.NoError(t, f.sites.GenerateAnimalsFinalizer(context.Background(), nil, boomrat, &pack))

	assert.Equal(t, 10, f.host.ModifierCount())
	assert.Equal(t, 12, f.sites.CompressAnimalCount(boomrat, 12), "within cap keeps the count")
}

func TestSites_EntitySwarmFinalizer(t *testing.T) {
	tests := []struct {
		name     string
		marked   bool
		kinds    []spawncap.Kind
		expected int
		enhanced int
	}{
		{name: "marked swarm over cap is truncated", marked: true, kinds: []spawncap.Kind{boomrat}, expected: 20, enhanced: 10},
		{name: "unmarked swarm untouched", kinds: []spawncap.Kind{boomrat}, expected: 30},
		{name: "swarm with a mechanoid untouched", marked: true, kinds: []spawncap.Kind{boomrat, scyther}, expected: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			parms := &IncidentParms{Points: 900}
			if tt.marked {
				f.sites.MarkEntitySwarm(parms)
			}
			var swarm []spawncap.Agent
			for i := 0; i < 30; i++ {
				swarm = append(swarm, f.generate(t, tt.kinds[i%len(tt.kinds)], 1)...)
			}

			require.NoError(t, f.sites.EntitySwarmFinalizer(context.Background(), nil, parms, &swarm))

			assert.Len(t, swarm, tt.expected)
			assert.Equal(t, tt.enhanced, f.host.ModifierCount())
		})
	}
}

func TestSites_FinalizerOnOriginalFailure(t *testing.T) {
	boom := errors.New("host body threw")

	tests := []struct {
		name  string
		shape spawncap.CallShape
		setup func(*Sites)
		call  func(*Sites) error
	}{
		{
			name:  "pawns",
			shape: spawncap.ShapeGroupPawns,
			setup: func(s *Sites) { s.CompressPawnOptions(options(tribal, 40), &GroupParms{Faction: pirates}) },
			call: func(s *Sites) error {
				return s.GeneratePawnsFinalizer(context.Background(), boom, nil, nil)
			},
		},
		{
			name:  "animals",
			shape: spawncap.ShapeAnimals,
			setup: func(s *Sites) { s.CompressAnimalCount(boomrat, 40) },
			call: func(s *Sites) error {
				var out []spawncap.Agent
				return s.GenerateAnimalsFinalizer(context.Background(), boom, boomrat, &out)
			},
		},
		{
			name:  "swarm",
			shape: spawncap.ShapeEntitySwarm,
			setup: func(s *Sites) { s.MarkEntitySwarm(nil) },
			call: func(s *Sites) error {
				var out []spawncap.Agent
				return s.EntitySwarmFinalizer(context.Background(), boom, nil, &out)
			},
		},
		{
			name:  "options",
			shape: spawncap.ShapeGroupPawns,
			setup: func(*Sites) {},
			call: func(s *Sites) error {
				return s.PawnOptionsFinalizer(context.Background(), boom, nil, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			tt.setup(f.sites)

			err := tt.call(f.sites)

			assert.Same(t, boom, err, "the original error is surfaced unchanged")
			assert.False(t, f.sites.Continuity().Pending(tt.shape), "pending work discarded")
			assert.Zero(t, f.host.ModifierCount())
			assert.Empty(t, f.host.Notices)
			assert.Equal(t, int64(1), f.rt.Stats().GetCounter(spawncap.SCOriginalCallErrors))
		})
	}
}

func TestContinuity_TakeClears(t *testing.T) {
	c := NewContinuity()
	d := spawncap.CompressionDecision{Allowed: true, Order: 7}

	assert.False(t, c.Put(spawncap.ShapeAnimals, d))
	assert.True(t, c.Put(spawncap.ShapeAnimals, d))

	got, ok := c.Take(spawncap.ShapeAnimals)
	require.True(t, ok)
	assert.Equal(t, int64(7), got.Order)

	_, ok = c.Take(spawncap.ShapeAnimals)
	assert.False(t, ok)
}

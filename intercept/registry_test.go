package intercept

import (
	"errors"
	"testing"

	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/internal/simhost"
	"github.com/rickchristie/spawncap/pattern"
	"github.com/rickchristie/spawncap/rewrite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	workerNormal = spawncap.Target("PawnGroupKindWorker_Normal", "GeneratePawns")
	workerTrader = spawncap.Target("PawnGroupKindWorker_Trader", "GeneratePawns")
	chooseOpts   = spawncap.Target("PawnGroupMakerUtility", "ChoosePawnGenOptionsByPoints")
	animals      = spawncap.Target("AggressiveAnimalIncidentUtility", "GenerateAnimals")
	swarm        = spawncap.Target("IncidentWorker_EntitySwarm", "GenerateEntities")
)

// hook stands in for the sites package's function values.
type hook string

func pawnsPlan() Plan {
	return Plan{
		Capability:        spawncap.CapGeneratePawnsRewrite,
		Targets:           []spawncap.TargetDescriptor{workerNormal, workerTrader},
		Pattern:           pattern.GeneratePawns,
		Injection:         rewrite.PawnsInjection(),
		Finalizer:         hook("pawns-finalizer"),
		Fallback:          StrategyFinalizer,
		FallbackTargets:   []spawncap.TargetDescriptor{chooseOpts},
		FallbackFinalizer: hook("options-finalizer"),
	}
}

func animalsPlan() Plan {
	return Plan{
		Capability: spawncap.CapGenerateAnimalsRewrite,
		Targets:    []spawncap.TargetDescriptor{animals},
		Pattern:    pattern.GenerateAnimals,
		Injection:  rewrite.AnimalsInjection(),
		Finalizer:  hook("animals-finalizer"),
		Fallback:   StrategyOverride,
		Override:   hook("animals-prefix"),
	}
}

func swarmPlan() Plan {
	return Plan{
		Capability: spawncap.CapEntitySwarmRewrite,
		Targets:    []spawncap.TargetDescriptor{swarm},
		Pattern:    pattern.EntitySwarm,
		Injection:  rewrite.SwarmInjection(),
		Finalizer:  hook("swarm-finalizer"),
		Fallback:   StrategyNone,
	}
}

func currentHost() *simhost.Host {
	return simhost.New().
		SetBody(workerNormal, simhost.PawnsBody()).
		SetBody(workerTrader, simhost.PawnsBody()).
		SetBody(chooseOpts, simhost.ChangedBody()).
		SetBody(animals, simhost.AnimalsBody()).
		SetBody(swarm, simhost.SwarmBody())
}

func changedHost() *simhost.Host {
	return simhost.New().
		SetBody(workerNormal, simhost.PawnsBody()).
		SetBody(workerTrader, simhost.ChangedBody()).
		SetBody(chooseOpts, simhost.ChangedBody()).
		SetBody(animals, simhost.ChangedBody()).
		SetBody(swarm, simhost.ChangedBody())
}

func TestRegistry_Install_Strategies(t *testing.T) {
	type expected struct {
		strategies map[string]Strategy
		bodies     map[string]int
		prefixes   map[string]int
		finalizers map[string]int
	}

	tests := []struct {
		name     string
		host     func() *simhost.Host
		expected expected
	}{
		{
			name: "patterns present everywhere",
			host: currentHost,
			expected: expected{
				strategies: map[string]Strategy{
					workerNormal.Key(): StrategyRewrite,
					workerTrader.Key(): StrategyRewrite,
					chooseOpts.Key():   StrategyNone,
					animals.Key():      StrategyRewrite,
					swarm.Key():        StrategyRewrite,
				},
				bodies:     map[string]int{workerNormal.Key(): 1, workerTrader.Key(): 1, animals.Key(): 1, swarm.Key(): 1},
				prefixes:   map[string]int{},
				finalizers: map[string]int{workerNormal.Key(): 1, workerTrader.Key(): 1, animals.Key(): 1, swarm.Key(): 1},
			},
		},
		{
			name: "patterns gone falls back per plan",
			host: changedHost,
			expected: expected{
				strategies: map[string]Strategy{
					workerNormal.Key(): StrategyFinalizer,
					workerTrader.Key(): StrategyFinalizer,
					chooseOpts.Key():   StrategyFinalizer,
					animals.Key():      StrategyOverride,
					swarm.Key():        StrategyNone,
				},
				bodies:     map[string]int{},
				prefixes:   map[string]int{animals.Key(): 1},
				finalizers: map[string]int{workerNormal.Key(): 1, workerTrader.Key(): 1, chooseOpts.Key(): 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.host()
			reg := NewRegistry(spawncap.NewRuntime(), h, h)

			inst := reg.Install([]Plan{pawnsPlan(), animalsPlan(), swarmPlan()})
			assert.Empty(t, inst.Failed())

			for _, target := range []spawncap.TargetDescriptor{
				workerNormal, workerTrader, chooseOpts, animals, swarm,
			} {
				key := target.Key()
				c := capabilityOf(target)
				assert.Equal(t, tt.expected.strategies[key], reg.Strategy(c, target), key)
				assert.Len(t, h.PatchesFor(target, simhost.PatchBody), tt.expected.bodies[key], key)
				assert.Len(t, h.PatchesFor(target, simhost.PatchPrefix), tt.expected.prefixes[key], key)
				assert.Len(t, h.PatchesFor(target, simhost.PatchFinalizer), tt.expected.finalizers[key], key)
			}
		})
	}
}

func capabilityOf(target spawncap.TargetDescriptor) spawncap.Capability {
	switch target.Key() {
	case animals.Key():
		return spawncap.CapGenerateAnimalsRewrite
	case swarm.Key():
		return spawncap.CapEntitySwarmRewrite
	default:
		return spawncap.CapGeneratePawnsRewrite
	}
}

func TestRegistry_Install_RewrittenBodyKeepsOriginal(t *testing.T) {
	h := currentHost()
	reg := NewRegistry(spawncap.NewRuntime(), h, h)
	reg.Install([]Plan{animalsPlan()})

	patched := h.Body(animals)
	want, err := rewrite.Rewrite(simhost.AnimalsBody(), pattern.GenerateAnimals, rewrite.AnimalsInjection())
	require.NoError(t, err)
	assert.Equal(t, want, patched)
	assert.Equal(t, hook("animals-finalizer"), h.Hook(animals, simhost.PatchFinalizer))
}

func TestRegistry_Install_UnsupportedNeverRewrites(t *testing.T) {
	h := changedHost()
	rt := spawncap.NewRuntime()
	reg := NewRegistry(rt, h, h)

	reg.Install([]Plan{animalsPlan()})
	// the host is updated afterwards; the cached probe keeps the coarse path
	h.SetBody(animals, simhost.AnimalsBody())
	reg.Install([]Plan{animalsPlan()})

	assert.Empty(t, h.PatchesFor(animals, simhost.PatchBody))
	assert.Equal(t, hook("animals-prefix"), h.Hook(animals, simhost.PatchPrefix))
	assert.Len(t, h.PatchesFor(animals, simhost.PatchPrefix), 1)
	assert.Zero(t, rt.Stats().GetCounter(spawncap.SCRewrites))
	assert.Equal(t, 1, h.Introspected[animals.Key()])
}

func TestRegistry_Install_SecondInstallIsNoop(t *testing.T) {
	h := currentHost()
	rt := spawncap.NewRuntime()
	reg := NewRegistry(rt, h, h)

	first := reg.Install([]Plan{pawnsPlan()})
	second := reg.Install([]Plan{pawnsPlan()})

	assert.Len(t, first.Records, 2)
	assert.Empty(t, second.Records)
	assert.Len(t, h.PatchesFor(workerNormal, ""), 2)
	assert.Equal(t, int64(2), rt.Stats().GetCounter(spawncap.SCRegistrations))
}

func TestRegistry_Install_FailuresAreIsolated(t *testing.T) {
	h := currentHost()
	h.PatchErrors[workerTrader.Key()] = errors.New("method is abstract")
	rt := spawncap.NewRuntime()
	reg := NewRegistry(rt, h, h)

	inst := reg.Install([]Plan{pawnsPlan(), animalsPlan()})

	failed := inst.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, workerTrader.Key(), failed[0].Target.Key())
	assert.ErrorIs(t, failed[0].Err, spawncap.ErrRegistrationFailed)

	var regErr *spawncap.RegistrationError
	require.ErrorAs(t, failed[0].Err, &regErr)
	assert.Equal(t, "finalizer", regErr.Operation)

	assert.Equal(t, StrategyNone, reg.Strategy(spawncap.CapGeneratePawnsRewrite, workerTrader))
	assert.Equal(t, StrategyRewrite, reg.Strategy(spawncap.CapGeneratePawnsRewrite, workerNormal))
	assert.Equal(t, StrategyRewrite, reg.Strategy(spawncap.CapGenerateAnimalsRewrite, animals))
	assert.Equal(t, int64(1), rt.Stats().GetCounter(spawncap.SCRegistrationFailures))
	assert.Equal(t, int64(2), rt.Stats().GetCounter(spawncap.SCRegistrations))
}

func TestRegistry_Install_MissingTarget(t *testing.T) {
	h := simhost.New() // nothing exists
	reg := NewRegistry(spawncap.NewRuntime(), h, h)

	var inst Installation
	assert.NotPanics(t, func() {
		inst = reg.Install([]Plan{pawnsPlan(), animalsPlan(), swarmPlan()})
	})

	// pawns: 2 worker finalizers + options finalizer fail; animals prefix fails; swarm
	// installs nothing and cannot fail
	assert.Len(t, inst.Failed(), 4)
	assert.Empty(t, h.Patches)
}

func TestRegistry_Install_SkipsInvalidPlans(t *testing.T) {
	h := currentHost()
	reg := NewRegistry(spawncap.NewRuntime(), h, h)

	bad := animalsPlan()
	bad.Override = nil
	bad.Fallback = StrategyOverride

	inst := reg.Install([]Plan{bad, swarmPlan()})

	assert.Len(t, inst.Records, 1)
	_, ok := inst.Find(spawncap.CapEntitySwarmRewrite, swarm)
	assert.True(t, ok)
}

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Plan)
		ok     bool
	}{
		{name: "valid", mutate: func(p *Plan) {}, ok: true},
		{name: "no pattern", mutate: func(p *Plan) { p.Pattern = pattern.Pattern{} }},
		{name: "no injection", mutate: func(p *Plan) { p.Injection = rewrite.Injection{} }},
		{name: "no finalizer", mutate: func(p *Plan) { p.Finalizer = nil }},
		{name: "rewrite is not a fallback", mutate: func(p *Plan) { p.Fallback = StrategyRewrite }},
		{
			name:   "fallback targets without hook",
			mutate: func(p *Plan) { p.FallbackFinalizer = nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := pawnsPlan()
			tt.mutate(&p)
			if tt.ok {
				assert.NoError(t, p.Validate())
			} else {
				assert.Error(t, p.Validate())
			}
		})
	}
}

func TestRegistry_InstallOverrides(t *testing.T) {
	raid := spawncap.Target("RaidStrategyWorker", "SpawnThreats", "IncidentParms")
	hive := spawncap.Target("TunnelHiveSpawner", "Spawn", "Map", "IntVec3")
	h := simhost.New().SetBody(raid, simhost.ChangedBody())
	reg := NewRegistry(spawncap.NewRuntime(), h, h)

	overrides := []Override{
		{Target: raid, Hook: hook("raid-prefix")},
		// hive is not present on this host.
		{Target: hive, Hook: hook("hive-prefix")},
		// No hook, skipped.
		{Target: raid},
	}
	inst := reg.InstallOverrides(overrides)
	again := reg.InstallOverrides(overrides)

	require.Len(t, inst.Records, 2)
	assert.Empty(t, again.Records)
	require.Len(t, inst.Failed(), 1)
	assert.Equal(t, hive.Key(), inst.Failed()[0].Target.Key())

	assert.Equal(t, StrategyOverride, reg.Strategy(spawncap.CapNone, raid))
	assert.Equal(t, StrategyNone, reg.Strategy(spawncap.CapNone, hive))
	assert.Equal(t, hook("raid-prefix"), h.Hook(raid, simhost.PatchPrefix))
	assert.Zero(t, h.Introspected[raid.Key()], "overrides never probe")
}

func TestStrategy_String(t *testing.T) {
	assert.Equal(t, "rewrite", StrategyRewrite.String())
	assert.Equal(t, "override", StrategyOverride.String())
	assert.Equal(t, "finalizer", StrategyFinalizer.String())
	assert.Equal(t, "none", StrategyNone.String())
	assert.Equal(t, "strategy(9)", Strategy(9).String())
}

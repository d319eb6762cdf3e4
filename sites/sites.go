// Package sites normalizes every intercepted host call into a [spawncap.SpawnRequest] and
// hands it to the compression engine.
//
// There is one entry point per call shape. Depending on what the capability probe found,
// an entry point is reached in one of three ways:
//
//   - Override hooks replace the whole host call (RaidSpawnThreats, GenerateAnimals,
//     SpawnHive) and report an [Outcome].
//   - Injected helpers are the targets of the call instructions the rewriter splices into
//     host bodies (CompressPawnOptions, CompressAnimalCount, MarkEntitySwarm). They only
//     decide and record the pending decision in [Continuity].
//   - Finalizers run after the host call and redistribute power onto the agents it
//     produced. When the host call failed they discard the pending decision and return
//     the error unchanged.
//
// [Sites.Plans] and [Sites.Overrides] bind these hooks to the host targets for the
// intercept package:
//
//	s := sites.New(eng, host)
//	reg := intercept.NewRegistry(rt, host, host)
//	reg.Install(s.Plans(sites.DefaultWorkerTargets()...))
//	reg.InstallOverrides(s.Overrides())
package sites

import (
	"context"

	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/engine"
	"github.com/rickchristie/spawncap/intercept"
	"github.com/rickchristie/spawncap/pattern"
	"github.com/rickchristie/spawncap/rewrite"
)

// Host targets.
var (
	RaidSpawnThreatsTarget = spawncap.Target("RaidStrategyWorker", "SpawnThreats", "IncidentParms")
	HiveSpawnTarget        = spawncap.Target("TunnelHiveSpawner", "Spawn", "Map", "IntVec3")

	ChooseOptionsTarget = spawncap.Target("PawnGroupMakerUtility", pattern.MemberChoosePawnGenOptions,
		"Single", "List`1", "PawnGroupMakerParms")
	GenerateAnimalsTarget = spawncap.Target("AggressiveAnimalIncidentUtility", "GenerateAnimals",
		"PawnKindDef", "Int32", "Single", "Int32")
	GenerateEntitiesTarget = spawncap.Target("IncidentWorker_EntitySwarm", "GenerateEntities",
		"IncidentParms", "Single")
)

// WorkerTarget is the GeneratePawns method of a group-kind worker type.
func WorkerTarget(worker string) spawncap.TargetDescriptor {
	return spawncap.Target(worker, "GeneratePawns",
		"PawnGroupMakerParms", "PawnGroupMaker", "List`1", "Boolean")
}

// DefaultWorkerTargets are the stock group-kind workers.
func DefaultWorkerTargets() []spawncap.TargetDescriptor {
	return []spawncap.TargetDescriptor{
		WorkerTarget("PawnGroupKindWorker_Normal"),
		WorkerTarget("PawnGroupKindWorker_Trader"),
	}
}

// -----------------------------------------------------------------------------
// Hook signatures
// -----------------------------------------------------------------------------
//
// Hooks are handed to the host's Patcher as these named function types. Their parameters
// mirror the intercepted call; finalizers additionally receive the call's error and
// return the error the call should surface.
// -----------------------------------------------------------------------------

type (
	RaidPrefix    func(ctx context.Context, parms *IncidentParms) ([]spawncap.Agent, Outcome, error)
	AnimalsPrefix func(ctx context.Context, kind spawncap.Kind, tile int, points float64, count int) ([]spawncap.Agent, Outcome, error)
	HivePrefix    func(ctx context.Context, parms *HiveParams) ([]spawncap.Agent, Outcome, error)

	PawnsFinalizer   func(ctx context.Context, err error, parms *GroupParms, outPawns []spawncap.Agent) error
	OptionsFinalizer func(ctx context.Context, err error, parms *GroupParms, result *[]PawnOption) error
	AnimalsFinalizer func(ctx context.Context, err error, kind spawncap.Kind, result *[]spawncap.Agent) error
	SwarmFinalizer   func(ctx context.Context, err error, parms *IncidentParms, result *[]spawncap.Agent) error

	PawnOptionsHelper func(options []PawnOption, parms *GroupParms) []PawnOption
	AnimalCountHelper func(kind spawncap.Kind, count int) int
	EntitySwarmHelper func(parms *IncidentParms)
)

// Sites holds the interception entry points.
type Sites struct {
	eng        *engine.Engine
	arriver    spawncap.Arriver
	continuity *Continuity
}

// New creates the interception sites over eng. arriver places agents created by the
// override hooks.
func New(eng *engine.Engine, arriver spawncap.Arriver) *Sites {
	return &Sites{eng: eng, arriver: arriver, continuity: NewContinuity()}
}

// Continuity returns the pending-work store shared by helpers and finalizers.
func (s *Sites) Continuity() *Continuity {
	return s.continuity
}

// Plans returns the strategy-selection table for the rewritable call sites. workers are
// the group-kind worker GeneratePawns targets; none means DefaultWorkerTargets.
func (s *Sites) Plans(workers ...spawncap.TargetDescriptor) []intercept.Plan {
	if len(workers) == 0 {
		workers = DefaultWorkerTargets()
	}
	return []intercept.Plan{
		{
			Capability:        spawncap.CapGeneratePawnsRewrite,
			Targets:           workers,
			Pattern:           pattern.GeneratePawns,
			Injection:         rewrite.PawnsInjection(),
			Finalizer:         PawnsFinalizer(s.GeneratePawnsFinalizer),
			Fallback:          intercept.StrategyFinalizer,
			FallbackTargets:   []spawncap.TargetDescriptor{ChooseOptionsTarget},
			FallbackFinalizer: OptionsFinalizer(s.PawnOptionsFinalizer),
		},
		{
			Capability: spawncap.CapGenerateAnimalsRewrite,
			Targets:    []spawncap.TargetDescriptor{GenerateAnimalsTarget},
			Pattern:    pattern.GenerateAnimals,
			Injection:  rewrite.AnimalsInjection(),
			Finalizer:  AnimalsFinalizer(s.GenerateAnimalsFinalizer),
			Fallback:   intercept.StrategyOverride,
			Override:   AnimalsPrefix(s.GenerateAnimals),
		},
		{
			Capability: spawncap.CapEntitySwarmRewrite,
			Targets:    []spawncap.TargetDescriptor{GenerateEntitiesTarget},
			Pattern:    pattern.EntitySwarm,
			Injection:  rewrite.SwarmInjection(),
			Finalizer:  SwarmFinalizer(s.EntitySwarmFinalizer),
			Fallback:   intercept.StrategyNone,
		},
	}
}

// Overrides returns the whole-call overrides installed on every host.
func (s *Sites) Overrides() []intercept.Override {
	return []intercept.Override{
		{Target: RaidSpawnThreatsTarget, Hook: RaidPrefix(s.RaidSpawnThreats)},
		{Target: HiveSpawnTarget, Hook: HivePrefix(s.SpawnHive)},
	}
}

// Helper resolves the operand of an injected call instruction to its helper.
func (s *Sites) Helper(member spawncap.MemberRef) (any, bool) {
	if member.Owner != rewrite.ContinuityOwner {
		return nil, false
	}
	switch member.Name {
	case rewrite.MemberCompressPawnOptions:
		return PawnOptionsHelper(s.CompressPawnOptions), true
	case rewrite.MemberCompressAnimalCount:
		return AnimalCountHelper(s.CompressAnimalCount), true
	case rewrite.MemberMarkEntitySwarm:
		return EntitySwarmHelper(s.MarkEntitySwarm), true
	default:
		return nil, false
	}
}

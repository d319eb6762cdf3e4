package sites

import (
	"context"

	"github.com/rickchristie/spawncap"
	"go.uber.org/zap"
)

// -----------------------------------------------------------------------------
// Injected helpers
// -----------------------------------------------------------------------------

// CompressPawnOptions is called from a rewritten group-kind worker with the pawn options
// it is about to enumerate. It decides the group and returns the options trimmed to the
// capped count; the decision waits in Continuity for GeneratePawnsFinalizer.
func (s *Sites) CompressPawnOptions(options []PawnOption, parms *GroupParms) []PawnOption {
	if len(options) == 0 {
		return options
	}
	kinds := make([]spawncap.Kind, len(options))
	for i, o := range options {
		kinds[i] = o.Kind
	}
	req := spawncap.SpawnRequest{
		Shape:          spawncap.ShapeGroupPawns,
		Kind:           mergedKind(kinds...),
		RequestedCount: len(options),
		Tile:           -1,
	}
	if parms != nil {
		req.Faction = parms.Faction
		req.PointsBudget = parms.Points
		req.Tile = parms.Tile
	}

	d := s.eng.Decide(req)
	if !d.Allowed {
		return options
	}
	s.put(spawncap.ShapeGroupPawns, d)
	return options[:d.CappedCount]
}

// CompressAnimalCount is called from a rewritten animal generator with the computed pack
// size and returns the count the generator loops to.
func (s *Sites) CompressAnimalCount(kind spawncap.Kind, count int) int {
	d := s.eng.Decide(spawncap.SpawnRequest{
		Shape:          spawncap.ShapeAnimals,
		Kind:           kind,
		RequestedCount: count,
		Tile:           -1,
	})
	if !d.Allowed {
		return count
	}
	s.put(spawncap.ShapeAnimals, d)
	return d.CappedCount
}

// MarkEntitySwarm is called from a rewritten entity swarm incident before the swarm is
// generated. The swarm size is only known afterwards, so it records a marker that lets
// EntitySwarmFinalizer act.
func (s *Sites) MarkEntitySwarm(parms *IncidentParms) {
	if parms != nil {
		s.logger().Debug("entity swarm marked", zap.Float64("points", parms.Points))
	}
	s.put(spawncap.ShapeEntitySwarm, spawncap.CompressionDecision{})
}

func (s *Sites) put(shape spawncap.CallShape, d spawncap.CompressionDecision) {
	if s.continuity.Put(shape, d) {
		s.logger().Debug("unclaimed pending decision replaced", zap.Stringer("shape", shape))
	}
}

// -----------------------------------------------------------------------------
// Finalizers
// -----------------------------------------------------------------------------

// GeneratePawnsFinalizer runs after a group-kind worker generated its pawns and enhances
// them with the decision CompressPawnOptions (or PawnOptionsFinalizer) recorded.
func (s *Sites) GeneratePawnsFinalizer(
	ctx context.Context,
	err error,
	_ *GroupParms,
	outPawns []spawncap.Agent,
) error {
	d, ok := s.continuity.Take(spawncap.ShapeGroupPawns)
	if err != nil {
		return s.originalFailed(spawncap.ShapeGroupPawns, ok, err)
	}
	if !ok {
		return nil
	}
	_, rerr := s.eng.Redistribute(ctx, spawncap.ShapeGroupPawns, d, outPawns)
	return rerr
}

// PawnOptionsFinalizer trims the options chosen by the host after the fact, on hosts
// whose workers cannot be rewritten.
func (s *Sites) PawnOptionsFinalizer(
	_ context.Context,
	err error,
	parms *GroupParms,
	result *[]PawnOption,
) error {
	if err != nil {
		return s.originalFailed(spawncap.ShapeGroupPawns, false, err)
	}
	if result != nil {
		*result = s.CompressPawnOptions(*result, parms)
	}
	return nil
}

// GenerateAnimalsFinalizer enhances the pack a rewritten animal generator produced.
func (s *Sites) GenerateAnimalsFinalizer(
	ctx context.Context,
	err error,
	_ spawncap.Kind,
	result *[]spawncap.Agent,
) error {
	d, ok := s.continuity.Take(spawncap.ShapeAnimals)
	if err != nil {
		return s.originalFailed(spawncap.ShapeAnimals, ok, err)
	}
	if !ok || result == nil {
		return nil
	}
	_, rerr := s.eng.Redistribute(ctx, spawncap.ShapeAnimals, d, *result)
	return rerr
}

// EntitySwarmFinalizer compresses a generated swarm: when it exceeds the cap and every
// generated kind may be compressed, the result is truncated to the cap and the remaining
// agents are enhanced.
func (s *Sites) EntitySwarmFinalizer(
	ctx context.Context,
	err error,
	parms *IncidentParms,
	result *[]spawncap.Agent,
) error {
	_, ok := s.continuity.Take(spawncap.ShapeEntitySwarm)
	if err != nil {
		return s.originalFailed(spawncap.ShapeEntitySwarm, ok, err)
	}
	if !ok || result == nil || len(*result) == 0 {
		return nil
	}

	agents := *result
	req := spawncap.SpawnRequest{
		Shape:          spawncap.ShapeEntitySwarm,
		Kind:           mergedKind(agentKinds(agents)...),
		RequestedCount: len(agents),
		Tile:           -1,
	}
	if parms != nil {
		req.Faction = parms.Faction
		req.PointsBudget = parms.Points
		req.Tile = parms.Tile
	}
	d := s.eng.Decide(req)
	if !d.Allowed {
		return nil
	}

	*result = agents[:d.CappedCount:d.CappedCount]
	_, rerr := s.eng.Redistribute(ctx, spawncap.ShapeEntitySwarm, d, *result)
	return rerr
}

// originalFailed handles a failed original call: the pending decision is dropped and the
// error is surfaced unchanged.
func (s *Sites) originalFailed(shape spawncap.CallShape, discarded bool, err error) error {
	s.eng.Runtime().Stats().IncrCounter(spawncap.SCOriginalCallErrors, 1)
	s.logger().Warn("intercepted call failed, skipping redistribution",
		zap.Stringer("shape", shape),
		zap.Bool("discarded_pending", discarded),
		zap.Error(err),
	)
	s.eng.Runtime().Publish(&spawncap.OriginalCallErrorEvent{Shape: shape, Err: err})
	return err
}

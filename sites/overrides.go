package sites

import (
	"context"
	"fmt"
	"math"

	"github.com/rickchristie/spawncap"
	"go.uber.org/zap"
)

// maxHiveIterations bounds the hive budget loop.
const maxHiveIterations = 1000

// RaidSpawnThreats replaces a raid strategy's threat spawning: it compresses the raid,
// creates and enhances the agents, and hands them to the host's arrival. Raids without a
// kind, a faction or an arrival, and raids the engine does not compress, run the original.
func (s *Sites) RaidSpawnThreats(ctx context.Context, parms *IncidentParms) ([]spawncap.Agent, Outcome, error) {
	if parms == nil || parms.Kind == nil || parms.Faction == nil || parms.Arrival == nil {
		return nil, RunOriginal, nil
	}

	req := spawncap.SpawnRequest{
		Shape:          spawncap.ShapeRaidThreats,
		Kind:           *parms.Kind,
		Faction:        parms.Faction,
		RequestedCount: parms.PawnCount,
		PointsBudget:   parms.Points,
		Tile:           -1,
		Arrival:        parms.Arrival,
		Options:        parms.Options,
	}
	d := s.eng.Decide(req)
	if !d.Allowed {
		return nil, RunOriginal, nil
	}
	parms.PawnCount = d.CappedCount

	res, err := s.eng.Create(ctx, req, d)
	if err != nil {
		return res.Agents, SkipOriginal, err
	}
	if err := s.arrive(ctx, res.Agents, parms.Arrival); err != nil {
		return res.Agents, SkipOriginal, err
	}
	return res.Agents, SkipOriginal, nil
}

// GenerateAnimals replaces the aggressive-animal generator on hosts where the count
// assignment cannot be rewritten. A count of zero or less is derived from the points:
// max(1, round(points / combat power)).
func (s *Sites) GenerateAnimals(
	ctx context.Context,
	kind spawncap.Kind,
	tile int,
	points float64,
	count int,
) ([]spawncap.Agent, Outcome, error) {
	if count <= 0 {
		count = AnimalCount(kind, points)
	}

	req := spawncap.SpawnRequest{
		Shape:          spawncap.ShapeAnimals,
		Kind:           kind,
		RequestedCount: count,
		PointsBudget:   points,
		Tile:           tile,
	}
	d := s.eng.Decide(req)
	if !d.Allowed {
		return nil, RunOriginal, nil
	}

	res, err := s.eng.Create(ctx, req, d)
	return res.Agents, SkipOriginal, err
}

// AnimalCount is the pack size the host derives from a points budget.
func AnimalCount(kind spawncap.Kind, points float64) int {
	if kind.CombatPower <= 0 {
		return 1
	}
	return max(int(math.Round(points/kind.CombatPower)), 1)
}

// SpawnHive replaces an insect hive's defender spawning. The budget is spent on kinds the
// host chooses among the affordable ones; past the cap, kinds are still paid for but not
// created. When that happened the created agents are enhanced with a gain scaled by how
// much of the budget the created agents used:
//
//	gain = GainValue(iterations, cap, slots) * budget / max(budget - leftAtCap, 1)
//
// Hives run the original when insectoid compression or the hive switch is off.
func (s *Sites) SpawnHive(ctx context.Context, parms *HiveParams) ([]spawncap.Agent, Outcome, error) {
	p := s.eng.Policy()
	if parms == nil || !p.CompressionEnabled || !p.AllowInsectoids || !p.AllowHive {
		return nil, RunOriginal, nil
	}
	if parms.Points <= 0 || len(parms.Kinds) == 0 {
		return nil, SkipOriginal, nil
	}

	capacity := p.EffectiveCap()
	budget := max(parms.Points, cheapest(parms.Kinds))
	left := budget
	leftAtCap := 0.0
	compressed := false
	host := s.eng.Host()

	var agents []spawncap.Agent
	n := 0
	for left > 0 {
		n++
		if n > maxHiveIterations {
			s.logger().Error("hive budget loop did not converge", zap.Float64("points", budget))
			break
		}
		candidates := affordable(parms.Kinds, left)
		if len(candidates) == 0 {
			n--
			break
		}
		kind := candidates[0]
		if parms.Choose != nil {
			kind = parms.Choose(candidates)
		}

		if n > capacity {
			compressed = true
			left -= kind.CombatPower
			continue
		}

		agent, err := host.GenerateAgent(ctx, spawncap.AgentRequest{
			Kind:    kind,
			Faction: parms.Faction,
			Tile:    parms.Tile,
		})
		if err != nil {
			return agents, SkipOriginal, fmt.Errorf("%w: hive slot %d: %w", spawncap.ErrCreationAborted, n-1, err)
		}
		if agent != nil {
			agents = append(agents, agent)
		}
		left -= kind.CombatPower
		leftAtCap = left
	}
	if len(agents) == 0 {
		return nil, SkipOriginal, nil
	}

	if compressed {
		req := spawncap.SpawnRequest{
			Shape:          spawncap.ShapeHive,
			Kind:           mergedKind(agentKinds(agents)...),
			Faction:        parms.Faction,
			RequestedCount: n,
			PointsBudget:   budget,
			Tile:           parms.Tile,
			Arrival:        parms.Arrival,
		}
		scale := budget / max(budget-leftAtCap, 1)
		d := s.eng.DecideScaled(req, scale)
		if _, err := s.eng.Redistribute(ctx, spawncap.ShapeHive, d, agents); err != nil {
			return agents, SkipOriginal, err
		}
	}

	if err := s.arrive(ctx, agents, parms.Arrival); err != nil {
		return agents, SkipOriginal, err
	}
	return agents, SkipOriginal, nil
}

func (s *Sites) arrive(ctx context.Context, agents []spawncap.Agent, arrival any) error {
	if len(agents) == 0 || s.arriver == nil {
		return nil
	}
	if err := s.arriver.Arrive(ctx, agents, arrival); err != nil {
		s.logger().Warn("arrival failed", zap.Int("agents", len(agents)), zap.Error(err))
		return fmt.Errorf("sites: arrive %d agents: %w", len(agents), err)
	}
	return nil
}

func (s *Sites) logger() *zap.Logger {
	return s.eng.Runtime().Logger()
}

func cheapest(kinds []spawncap.Kind) float64 {
	low := math.Inf(1)
	for _, k := range kinds {
		low = min(low, k.CombatPower)
	}
	if math.IsInf(low, 1) {
		return 0
	}
	return low
}

func affordable(kinds []spawncap.Kind, points float64) []spawncap.Kind {
	var out []spawncap.Kind
	for _, k := range kinds {
		if k.CombatPower <= points {
			out = append(out, k)
		}
	}
	return out
}

package sites

import "github.com/rickchristie/spawncap"

// Outcome tells the host what to do with the original call after an override hook ran.
type Outcome int

const (
	// RunOriginal means the hook did nothing and the original body must run.
	RunOriginal Outcome = iota

	// SkipOriginal means the hook replaced the call; the original body must not run.
	SkipOriginal
)

func (o Outcome) String() string {
	if o == SkipOriginal {
		return "skip_original"
	}
	return "run_original"
}

// IncidentParms are the arguments of an incident that spawns agents (raids, entity swarms).
type IncidentParms struct {
	// Kind is the agent kind to spawn. Nil when the incident picks kinds itself.
	Kind *spawncap.Kind

	Faction *spawncap.Faction

	// PawnCount is the requested count. RaidSpawnThreats lowers it to the capped count.
	PawnCount int

	Points float64
	Tile   int

	// Arrival is handed back to the host's Arriver unchanged. A raid without one is left
	// to the original call.
	Arrival any

	// Options are passed through to the host's generator.
	Options any
}

// GroupParms are the arguments of a group-kind worker generating a pawn group.
type GroupParms struct {
	Faction *spawncap.Faction
	Points  float64
	Tile    int
}

// PawnOption is one chosen pawn generation option. Each option yields one agent.
type PawnOption struct {
	Kind     spawncap.Kind
	Selected float64
}

// HiveParams are the arguments of an insect hive spawning its defenders from a points
// budget.
type HiveParams struct {
	// Points is the budget.
	Points float64

	// Kinds are the spawnable kinds.
	Kinds []spawncap.Kind

	// Choose picks one of candidates, all affordable. Defaults to the first candidate.
	Choose func(candidates []spawncap.Kind) spawncap.Kind

	Faction *spawncap.Faction
	Tile    int
	Arrival any
}

// mergedKind folds the traits of kinds into one kind used for policy checks: it is
// mechanoid (insectoid) when any of the kinds is.
func mergedKind(kinds ...spawncap.Kind) spawncap.Kind {
	var out spawncap.Kind
	for i, k := range kinds {
		if i == 0 {
			out = k
			continue
		}
		out.Mechanoid = out.Mechanoid || k.Mechanoid
		out.Insectoid = out.Insectoid || k.Insectoid
	}
	return out
}

func agentKinds(agents []spawncap.Agent) []spawncap.Kind {
	kinds := make([]spawncap.Kind, 0, len(agents))
	for _, a := range agents {
		if a != nil {
			kinds = append(kinds, a.Kind())
		}
	}
	return kinds
}

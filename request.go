package spawncap

import "fmt"

// CallShape identifies the interception site a SpawnRequest was normalized from. Each
// host call signature that funnels into the engine has its own shape; the engine itself is
// shape-agnostic except for per-shape policy switches.
type CallShape int

const (
	// ShapeRaidThreats is a raid strategy spawning threats for an incident.
	ShapeRaidThreats CallShape = iota + 1

	// ShapeGroupPawns is a group-kind worker generating a pawn group.
	ShapeGroupPawns

	// ShapeAnimals is an aggressive animal pack.
	ShapeAnimals

	// ShapeEntitySwarm is an entity swarm incident.
	ShapeEntitySwarm

	// ShapeHive is an insect hive spawner working from a points budget.
	ShapeHive

	// ShapeMapBuff is a buff of agents already present on a freshly generated map.
	ShapeMapBuff
)

func (s CallShape) String() string {
	switch s {
	case ShapeRaidThreats:
		return "raid_threats"
	case ShapeGroupPawns:
		return "group_pawns"
	case ShapeAnimals:
		return "animals"
	case ShapeEntitySwarm:
		return "entity_swarm"
	case ShapeHive:
		return "hive"
	case ShapeMapBuff:
		return "map_buff"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// SpawnRequest is the normalized form of one intercepted spawn call. It is created by an
// interception site from the original call's arguments and is read-only to the engine.
type SpawnRequest struct {
	Shape CallShape

	// Kind is the kind of agent to generate.
	Kind Kind

	// Faction is the spawning faction, nil for factionless spawns.
	Faction *Faction

	// RequestedCount is how many agents the host wanted to spawn.
	RequestedCount int

	// PointsBudget is the threat points the event was given.
	PointsBudget float64

	// Tile is the world tile agents are generated for, -1 when not applicable.
	Tile int

	// Arrival is the opaque arrival context handed back to the host's Arrive.
	Arrival any

	// Options is passed through to the host's generator unchanged.
	Options any
}

// Validate checks the request's numeric fields.
func (r SpawnRequest) Validate() error {
	if r.RequestedCount < 0 {
		return fmt.Errorf("%w: requested count %d is negative", ErrInvalidRequest, r.RequestedCount)
	}
	if r.PointsBudget < 0 {
		return fmt.Errorf("%w: points budget %v is negative", ErrInvalidRequest, r.PointsBudget)
	}
	return nil
}

// AgentRequest builds the generator request for one slot of this spawn.
func (r SpawnRequest) AgentRequest() AgentRequest {
	return AgentRequest{
		Kind:    r.Kind,
		Faction: r.Faction,
		Tile:    r.Tile,
		Options: r.Options,
	}
}

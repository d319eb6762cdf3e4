package spawncap

// Kind describes the kind of agent the host generates (a pawn kind, an animal kind, an
// entity kind). Only the traits the compression policy looks at are carried.
type Kind struct {
	// Name is the host's identifier for the kind.
	Name string

	// Mechanoid is true for mechanical kinds. Excluded from compression unless the
	// allow_mechanoids setting is on.
	Mechanoid bool

	// Insectoid is true for insect kinds. Excluded from compression unless the
	// allow_insectoids setting is on.
	Insectoid bool

	// CombatPower is the point cost of one agent of this kind.
	CombatPower float64
}

// Faction is the faction an event spawns agents for. A nil *Faction means "no faction"
// (wild animals, entities).
type Faction struct {
	Name    string
	Hostile bool
	Player  bool
}

// Agent is an opaque host-owned entity. spawncap never owns an agent's lifetime: agents
// are handed back to the host immediately after creation and decoration.
type Agent interface {
	// ID returns a host-unique identifier.
	ID() string

	// Kind returns the kind the agent was generated from.
	Kind() Kind

	// Faction returns the agent's faction, or nil.
	Faction() *Faction
}

// AgentRequest is what the engine hands to [AgentGenerator.GenerateAgent].
type AgentRequest struct {
	Kind    Kind
	Faction *Faction

	// Tile is the world tile the agent is generated for (-1 when not applicable).
	Tile int

	// Options carries the host's own generation options through unchanged.
	Options any
}

// Vitals is implemented by agents that can report their condition. Agents that do not
// implement it count as alive and standing.
type Vitals interface {
	Dead() bool
	Downed() bool
}

// Active reports whether agent is alive and not downed.
func Active(agent Agent) bool {
	if agent == nil {
		return false
	}
	if v, ok := agent.(Vitals); ok {
		return !v.Dead() && !v.Downed()
	}
	return true
}

package pattern

import "github.com/rickchristie/spawncap"

// MemberChoosePawnGenOptions is the host method whose result the group-kind workers
// enumerate right after choosing their pawn options.
const MemberChoosePawnGenOptions = "ChoosePawnGenOptionsByPoints"

// GeneratePawns matches the enumeration of the chosen pawn options inside a group-kind
// worker: the call to ChoosePawnGenOptionsByPoints immediately followed by a callvirt.
// The reported index is the callvirt.
var GeneratePawns = New("generate_pawns",
	Calls(spawncap.OpCall, MemberChoosePawnGenOptions),
	Op(spawncap.OpCallvirt),
)

// GenerateAnimals matches the loop initialisation right after the animal count has been
// stored into local 1: ldarg.3, stloc.1, ldc.i4.0. The reported index is the ldc.i4.0.
var GenerateAnimals = New("generate_animals",
	Op(spawncap.OpLdarg3),
	Op(spawncap.OpStloc1),
	Op(spawncap.OpLdcI4_0),
)

// EntitySwarm matches the swarm-size call site: ldarg.0, call, callvirt. The reported
// index is the callvirt.
var EntitySwarm = New("entity_swarm",
	Op(spawncap.OpLdarg0),
	Op(spawncap.OpCall),
	Op(spawncap.OpCallvirt),
)

// For returns the built-in pattern for a capability.
func For(c spawncap.Capability) (Pattern, bool) {
	switch c {
	case spawncap.CapGeneratePawnsRewrite:
		return GeneratePawns, true
	case spawncap.CapGenerateAnimalsRewrite:
		return GenerateAnimals, true
	case spawncap.CapEntitySwarmRewrite:
		return EntitySwarm, true
	default:
		return Pattern{}, false
	}
}

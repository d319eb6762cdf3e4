package simhost

import "github.com/rickchristie/spawncap"

// PawnsBody is a group-kind worker's GeneratePawns body: it chooses the pawn options and
// enumerates them, generating one pawn per option.
func PawnsBody() []spawncap.Instruction {
	return []spawncap.Instruction{
		{Op: spawncap.OpLdarg1},
		{Op: spawncap.OpLdarg2},
		spawncap.Call("PawnGroupMakerUtility", "ChoosePawnGenOptionsByPoints"),
		{Op: spawncap.OpCallvirt, Operand: spawncap.MemberRef{Owner: "IEnumerable", Name: "GetEnumerator"}},
		{Op: spawncap.OpStloc0},
		{Op: spawncap.OpBr},
		{Op: spawncap.OpLdloc0},
		{Op: spawncap.OpCallvirt, Operand: spawncap.MemberRef{Owner: "IEnumerator", Name: "get_Current"}},
		spawncap.Call("PawnGenerator", "GeneratePawn"),
		{Op: spawncap.OpRet},
	}
}

// AnimalsBody is the aggressive-animal generator's body: it computes the count into local
// 1 and loops from zero.
func AnimalsBody() []spawncap.Instruction {
	return []spawncap.Instruction{
		{Op: spawncap.OpLdarg0},
		{Op: spawncap.OpLdarg2},
		spawncap.Call("AggressiveAnimalIncidentUtility", "GetAnimalsCount"),
		{Op: spawncap.OpLdarg3},
		{Op: spawncap.OpStloc1},
		{Op: spawncap.OpLdcI4_0},
		{Op: spawncap.OpStloc0},
		{Op: spawncap.OpBr},
		{Op: spawncap.OpLdloc0},
		{Op: spawncap.OpLdcI4_1},
		{Op: spawncap.OpAdd},
		{Op: spawncap.OpStloc0},
		{Op: spawncap.OpLdloc0},
		{Op: spawncap.OpLdloc1},
		{Op: spawncap.OpBlt},
		{Op: spawncap.OpRet},
	}
}

// SwarmBody is the entity swarm incident's GenerateEntities body.
func SwarmBody() []spawncap.Instruction {
	return []spawncap.Instruction{
		{Op: spawncap.OpLdarg0},
		spawncap.Call("IncidentWorker_EntitySwarm", "get_EntityKinds"),
		{Op: spawncap.OpCallvirt, Operand: spawncap.MemberRef{Owner: "IEnumerable", Name: "GetEnumerator"}},
		{Op: spawncap.OpStloc0},
		{Op: spawncap.OpRet},
	}
}

// ChangedBody is a body from a host version where the expected patterns are gone.
func ChangedBody() []spawncap.Instruction {
	return []spawncap.Instruction{
		{Op: spawncap.OpNop},
		{Op: spawncap.OpLdarg1},
		spawncap.Call("Refactored", "DoEverything"),
		{Op: spawncap.OpRet},
	}
}

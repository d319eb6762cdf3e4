package spawncap

import (
	"fmt"
	"strings"
)

// OpCode is the operation tag of one instruction in a host method body.
type OpCode string

// Opcodes referenced by the built-in patterns and injections. Hosts may report any other
// opcode; unknown opcodes simply never match.
const (
	OpNop      OpCode = "nop"
	OpLdarg0   OpCode = "ldarg.0"
	OpLdarg1   OpCode = "ldarg.1"
	OpLdarg2   OpCode = "ldarg.2"
	OpLdarg3   OpCode = "ldarg.3"
	OpLdloc0   OpCode = "ldloc.0"
	OpLdloc1   OpCode = "ldloc.1"
	OpStloc0   OpCode = "stloc.0"
	OpStloc1   OpCode = "stloc.1"
	OpLdcI4_0  OpCode = "ldc.i4.0"
	OpLdcI4_1  OpCode = "ldc.i4.1"
	OpCall     OpCode = "call"
	OpCallvirt OpCode = "callvirt"
	OpBr       OpCode = "br"
	OpBlt      OpCode = "blt"
	OpAdd      OpCode = "add"
	OpRet      OpCode = "ret"
)

// MemberRef is the operand of call instructions.
type MemberRef struct {
	Owner string
	Name  string
}

func (m MemberRef) String() string {
	if m.Owner == "" {
		return m.Name
	}
	return m.Owner + "::" + m.Name
}

// Instruction is one opaque instruction token: an operation tag and an optional operand.
type Instruction struct {
	Op      OpCode
	Operand any
}

// Member returns the call operand, if the operand is a [MemberRef].
func (in Instruction) Member() (MemberRef, bool) {
	switch m := in.Operand.(type) {
	case MemberRef:
		return m, true
	case *MemberRef:
		if m != nil {
			return *m, true
		}
	}
	return MemberRef{}, false
}

func (in Instruction) String() string {
	if in.Operand == nil {
		return string(in.Op)
	}
	return fmt.Sprintf("%s %v", in.Op, in.Operand)
}

// Call builds a call instruction to owner::name.
func Call(owner, name string) Instruction {
	return Instruction{Op: OpCall, Operand: MemberRef{Owner: owner, Name: name}}
}

// FormatInstructions renders a listing with one "IL_nnnn: op operand" line per instruction.
func FormatInstructions(body []Instruction) string {
	var sb strings.Builder
	for i, in := range body {
		fmt.Fprintf(&sb, "IL_%04d: %s\n", i, in)
	}
	return sb.String()
}

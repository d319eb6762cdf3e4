// Package pattern finds short opcode sub-sequences in host method bodies.
//
// A [Pattern] is two or three [Step]s. The last step describes the instruction at the
// reported index; earlier steps describe the instructions immediately preceding it. The
// matcher scans once, left to right, remembering only the last two instructions it saw.
//
//	p := pattern.New("generate_animals",
//	    pattern.Op(spawncap.OpLdarg3),
//	    pattern.Op(spawncap.OpStloc1),
//	    pattern.Op(spawncap.OpLdcI4_0),
//	)
//	res := p.Match(body)
//	if res.Matched {
//	    // body[res.Index] is the ldc.i4.0
//	}
package pattern

import (
	"fmt"

	"github.com/rickchristie/spawncap"
)

// Step matches one instruction.
type Step struct {
	Op spawncap.OpCode

	// Operand optionally constrains the instruction's operand. Nil accepts any operand.
	Operand func(operand any) bool

	desc string
}

// Op matches any instruction with the given opcode.
func Op(op spawncap.OpCode) Step {
	return Step{Op: op, desc: string(op)}
}

// Calls matches a call-family instruction whose member name is name.
func Calls(op spawncap.OpCode, name string) Step {
	return Step{
		Op: op,
		Operand: func(operand any) bool {
			m, ok := spawncap.Instruction{Operand: operand}.Member()
			return ok && m.Name == name
		},
		desc: fmt.Sprintf("%s %s", op, name),
	}
}

func (s Step) matches(in *spawncap.Instruction) bool {
	if in == nil || in.Op != s.Op {
		return false
	}
	return s.Operand == nil || s.Operand(in.Operand)
}

func (s Step) String() string {
	return s.desc
}

// Pattern is a fixed sub-sequence of two or three steps.
type Pattern struct {
	Name  string
	Steps []Step
}

// New creates a pattern. Panics unless given two or three steps.
func New(name string, steps ...Step) Pattern {
	if len(steps) < 2 || len(steps) > 3 {
		panic(fmt.Sprintf("pattern %q: need 2 or 3 steps, got %d", name, len(steps)))
	}
	return Pattern{Name: name, Steps: steps}
}

// Result is the outcome of a scan.
type Result struct {
	Matched bool

	// Index is the position of the instruction matched by the last step, -1 when not
	// matched.
	Index int
}

// Match scans body for the first occurrence of the pattern. body is never mutated.
//
// Scanning continues past the first hit without reporting later occurrences, so callers
// that stream instructions through the matcher see every instruction exactly once.
func (p Pattern) Match(body []spawncap.Instruction) Result {
	res := Result{Index: -1}
	if len(p.Steps) == 0 {
		return res
	}

	var pre1, pre2 *spawncap.Instruction
	for i := range body {
		ci := &body[i]
		if !res.Matched && p.matchesAt(ci, pre1, pre2) {
			res.Matched = true
			res.Index = i
		}
		pre2 = pre1
		pre1 = ci
	}
	return res
}

func (p Pattern) matchesAt(ci, pre1, pre2 *spawncap.Instruction) bool {
	n := len(p.Steps)
	if !p.Steps[n-1].matches(ci) {
		return false
	}
	if !p.Steps[n-2].matches(pre1) {
		return false
	}
	if n == 3 && !p.Steps[0].matches(pre2) {
		return false
	}
	return true
}

func (p Pattern) String() string {
	return fmt.Sprintf("%s%v", p.Name, p.Steps)
}

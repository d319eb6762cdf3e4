// Package rewrite produces modified host method bodies that call into spawncap at the
// point a pattern identifies.
//
// A rewrite only ever inserts. Every original instruction is kept, in its original
// relative order, and the injection lands immediately before the instruction the pattern
// reported. Callers must only rewrite bodies whose capability probed as supported; a body
// without the pattern is rejected with [spawncap.ErrPatternNotFound] rather than patched
// somewhere else.
package rewrite

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/pattern"
)

// ContinuityOwner is the owner name of the injected helper calls. Hosts resolve
// "Continuity::<Member>" call operands to the sites package's continuity helpers.
const ContinuityOwner = "Continuity"

// Injected helper member names.
const (
	MemberCompressPawnOptions = "CompressPawnOptions"
	MemberCompressAnimalCount = "CompressAnimalCount"
	MemberMarkEntitySwarm     = "MarkEntitySwarm"
)

// Injection is the instruction sequence spliced into a body.
type Injection struct {
	Name         string
	Instructions []spawncap.Instruction
}

// PawnsInjection hands the group-maker parameters (argument 1) to the continuity helper
// while the chosen pawn options are on the stack. The helper returns the trimmed options
// so the enumeration that follows sees the compressed set.
func PawnsInjection() Injection {
	return Injection{
		Name: "compress_pawn_options",
		Instructions: []spawncap.Instruction{
			{Op: spawncap.OpLdarg1},
			spawncap.Call(ContinuityOwner, MemberCompressPawnOptions),
		},
	}
}

// AnimalsInjection replaces the animal count in local 1 with the compressed count,
// passing the animal kind (argument 0) along.
func AnimalsInjection() Injection {
	return Injection{
		Name: "compress_animal_count",
		Instructions: []spawncap.Instruction{
			{Op: spawncap.OpLdarg0},
			{Op: spawncap.OpLdloc1},
			spawncap.Call(ContinuityOwner, MemberCompressAnimalCount),
			{Op: spawncap.OpStloc1},
		},
	}
}

// SwarmInjection records the swarm's incident parameters (argument 1) before the swarm
// size is enumerated.
func SwarmInjection() Injection {
	return Injection{
		Name: "mark_entity_swarm",
		Instructions: []spawncap.Instruction{
			{Op: spawncap.OpLdarg1},
			spawncap.Call(ContinuityOwner, MemberMarkEntitySwarm),
		},
	}
}

// For returns the built-in injection for a capability.
func For(c spawncap.Capability) (Injection, bool) {
	switch c {
	case spawncap.CapGeneratePawnsRewrite:
		return PawnsInjection(), true
	case spawncap.CapGenerateAnimalsRewrite:
		return AnimalsInjection(), true
	case spawncap.CapEntitySwarmRewrite:
		return SwarmInjection(), true
	default:
		return Injection{}, false
	}
}

// Rewrite returns a new body with inj inserted immediately before the first instruction
// matched by pat. body is not modified.
func Rewrite(
	body []spawncap.Instruction,
	pat pattern.Pattern,
	inj Injection,
) ([]spawncap.Instruction, error) {
	res := pat.Match(body)
	if !res.Matched {
		return nil, fmt.Errorf("%w: %s", spawncap.ErrPatternNotFound, pat.Name)
	}

	out := make([]spawncap.Instruction, 0, len(body)+len(inj.Instructions))
	out = append(out, body[:res.Index]...)
	out = append(out, inj.Instructions...)
	out = append(out, body[res.Index:]...)
	return out, nil
}

// Diff renders a unified diff between two instruction listings.
func Diff(name string, before, after []spawncap.Instruction) string {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(listing(before)),
		B:        difflib.SplitLines(listing(after)),
		FromFile: name + " (original)",
		ToFile:   name + " (rewritten)",
		Context:  2,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return fmt.Sprintf("diff unavailable: %v", err)
	}
	return text
}

// listing is like FormatInstructions without offsets, so inserted instructions do not
// renumber every following line of the diff.
func listing(body []spawncap.Instruction) string {
	var sb strings.Builder
	for _, in := range body {
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

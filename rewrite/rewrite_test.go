package rewrite

import (
	"testing"

	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/internal/simhost"
	"github.com/rickchristie/spawncap/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewrite(t *testing.T) {
	type input struct {
		body      []spawncap.Instruction
		pattern   pattern.Pattern
		injection Injection
	}

	type expected struct {
		insertedAt int
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name: "pawns injection lands before the enumeration",
			input: input{
				body:      simhost.PawnsBody(),
				pattern:   pattern.GeneratePawns,
				injection: PawnsInjection(),
			},
			expected: expected{insertedAt: 3},
		},
		{
			name: "animals injection lands before the loop counter init",
			input: input{
				body:      simhost.AnimalsBody(),
				pattern:   pattern.GenerateAnimals,
				injection: AnimalsInjection(),
			},
			expected: expected{insertedAt: 5},
		},
		{
			name: "swarm injection lands before the size call",
			input: input{
				body:      simhost.SwarmBody(),
				pattern:   pattern.EntitySwarm,
				injection: SwarmInjection(),
			},
			expected: expected{insertedAt: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := spawncap.FormatInstructions(tt.input.body)

			out, err := Rewrite(tt.input.body, tt.input.pattern, tt.input.injection)
			require.NoError(t, err)

			n := len(tt.input.injection.Instructions)
			require.Len(t, out, len(tt.input.body)+n)
			assert.Equal(t, tt.input.injection.Instructions,
				out[tt.expected.insertedAt:tt.expected.insertedAt+n])

			// removing the injection gives back the original, in order
			var rest []spawncap.Instruction
			rest = append(rest, out[:tt.expected.insertedAt]...)
			rest = append(rest, out[tt.expected.insertedAt+n:]...)
			assert.Equal(t, tt.input.body, rest)

			assert.Equal(t, original, spawncap.FormatInstructions(tt.input.body),
				"input body must not be mutated")
		})
	}
}

func TestRewrite_PatternNotFound(t *testing.T) {
	out, err := Rewrite(simhost.ChangedBody(), pattern.GenerateAnimals, AnimalsInjection())

	assert.ErrorIs(t, err, spawncap.ErrPatternNotFound)
	assert.Nil(t, out)
}

func TestRewrite_OnlyFirstOccurrence(t *testing.T) {
	body := append(simhost.SwarmBody(), simhost.SwarmBody()...)

	out, err := Rewrite(body, pattern.EntitySwarm, SwarmInjection())
	require.NoError(t, err)

	calls := 0
	for _, in := range out {
		if m, ok := in.Member(); ok && m.Name == MemberMarkEntitySwarm {
			calls++
		}
	}
	assert.Equal(t, 1, calls)
}

func TestFor(t *testing.T) {
	for _, c := range spawncap.Capabilities {
		inj, ok := For(c)
		assert.True(t, ok, c.String())
		assert.NotEmpty(t, inj.Instructions)
	}
	_, ok := For(spawncap.Capability(0))
	assert.False(t, ok)
}

func TestDiff(t *testing.T) {
	before := simhost.AnimalsBody()
	after, err := Rewrite(before, pattern.GenerateAnimals, AnimalsInjection())
	require.NoError(t, err)

	diff := Diff("GenerateAnimals", before, after)

	assert.Contains(t, diff, "--- GenerateAnimals (original)")
	assert.Contains(t, diff, "+++ GenerateAnimals (rewritten)")
	assert.Contains(t, diff, "+call Continuity::CompressAnimalCount")
	assert.Contains(t, diff, "+ldloc.1")
	assert.NotContains(t, diff, "\n-", "a rewrite never removes instructions")
}

func TestDiff_Identical(t *testing.T) {
	assert.Empty(t, Diff("x", simhost.PawnsBody(), simhost.PawnsBody()))
}

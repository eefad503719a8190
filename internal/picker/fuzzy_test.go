package picker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreEmptyQueryReturnsOriginalOrder(t *testing.T) {
	candidates := []string{"b.go", "a.go", "c.go"}
	results := Score("", candidates)
	require.Len(t, results, 3)
	assert.Equal(t, "b.go", results[0].Text)
	assert.Equal(t, "a.go", results[1].Text)
	assert.Equal(t, "c.go", results[2].Text)
}

func TestScoreCapsAtMaxResults(t *testing.T) {
	candidates := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		candidates = append(candidates, "main.go")
	}
	results := Score("main", candidates)
	assert.LessOrEqual(t, len(results), MaxResults)
}

func TestScoreBreaksEqualScoresByShorterCandidate(t *testing.T) {
	candidates := []string{"makefile", "main.rs"}
	results := Score("ma", candidates)
	require.Len(t, results, 2)
	assert.Equal(t, "main.rs", results[0].Text)
}

func TestScorePrefersPrefixMatch(t *testing.T) {
	candidates := []string{"xmain.go", "main.go"}
	results := Score("main", candidates)
	require.Len(t, results, 2)
	assert.Equal(t, "main.go", results[0].Text)
}

func TestIsBoundaryDetectsCamelCaseTransition(t *testing.T) {
	assert.True(t, isBoundary("mainConfig", 4))
	assert.False(t, isBoundary("mainconfig", 4))
	assert.True(t, isBoundary("main", 0))
}

func TestParseModeRejectsUnknown(t *testing.T) {
	_, err := ParseMode("bogus")
	assert.Error(t, err)

	mode, err := ParseMode("workspace_symbol")
	require.NoError(t, err)
	assert.Equal(t, ModeWorkspaceSymbol, mode)
}

package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreReflexive(t *testing.T) {
	fp := mustParse(t, strings.Join([]string{hexMixed, hexOnes, hexZeros}, "_"))

	score, err := Score(fp, fp)
	require.NoError(t, err)
	assert.Equal(t, 100.0, score)
}

func TestScoreSymmetric(t *testing.T) {
	a := mustParse(t, strings.Join([]string{hexMixed, hexOnes, hexZeros}, "_"))
	b := mustParse(t, strings.Join([]string{hexZeros, hexMixed, hexOnes}, "_"))

	ab, err := Score(a, b)
	require.NoError(t, err)
	ba, err := Score(b, a)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
}

func TestScoreSingleBitDifference(t *testing.T) {
	a := mustParse(t, strings.Join([]string{hexZeros, hexZeros, hexZeros}, "_"))
	// One flipped bit in the first component only.
	b := mustParse(t, strings.Join([]string{"8000000000000000", hexZeros, hexZeros}, "_"))

	score, err := Score(a, b)
	require.NoError(t, err)

	// (1 - 1/64)*100 for the first component, 100 for the other two.
	expected := (100.0*(1-1.0/64) + 100 + 100) / 3
	assert.InDelta(t, expected, score, 1e-9)
}

func TestScoreFullyOpposite(t *testing.T) {
	a := mustParse(t, strings.Join([]string{hexZeros, hexZeros, hexZeros}, "_"))
	b := mustParse(t, strings.Join([]string{hexOnes, hexOnes, hexOnes}, "_"))

	score, err := Score(a, b)
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestScoreRange(t *testing.T) {
	a := mustParse(t, strings.Join([]string{hexMixed, "fedcba9876543210", hexZeros}, "_"))
	b := mustParse(t, strings.Join([]string{hexOnes, hexMixed, "00ff00ff00ff00ff"}, "_"))

	score, err := Score(a, b)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 100.0)
}

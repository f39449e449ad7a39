package decode_test

import (
	"testing"

	"github.com/book-expert/captcha-lab/internal/decode"
	"github.com/book-expert/captcha-lab/internal/symbols"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAlphabet(t *testing.T, s string) symbols.Alphabet {
	t.Helper()

	alphabet, err := symbols.Parse(s)
	require.NoError(t, err)

	return alphabet
}

func TestGreedy_KnownArgMax(t *testing.T) {
	t.Parallel()

	probabilities := [][]float64{
		{0.8, 0.1, 0.1},
		{0.1, 0.2, 0.7},
		{0.2, 0.6, 0.2},
	}

	label, err := decode.Greedy(mustAlphabet(t, "abc"), probabilities)
	require.NoError(t, err)
	assert.Equal(t, "acb", label)
}

func TestGreedy_Deterministic(t *testing.T) {
	t.Parallel()

	alphabet := mustAlphabet(t, "0123456789")
	probabilities := [][]float64{
		{0.05, 0.05, 0.05, 0.05, 0.05, 0.05, 0.05, 0.05, 0.05, 0.55},
		{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1},
		{0, 0, 0, 1, 0, 0, 0, 0, 0, 0},
	}

	first, err := decode.Greedy(alphabet, probabilities)
	require.NoError(t, err)

	for range 10 {
		again, againErr := decode.Greedy(alphabet, probabilities)
		require.NoError(t, againErr)
		assert.Equal(t, first, again)
	}

	// The all-equal position resolves to the first symbol.
	assert.Equal(t, "903", first)
}

func TestGreedy_Errors(t *testing.T) {
	t.Parallel()

	alphabet := mustAlphabet(t, "ab")

	_, err := decode.Greedy(alphabet, nil)
	require.ErrorIs(t, err, decode.ErrNoPositions)

	_, err = decode.Greedy(alphabet, [][]float64{{1, 0}, {}})
	require.ErrorIs(t, err, decode.ErrEmptyDistribution)

	_, err = decode.Greedy(alphabet, [][]float64{{0, 0, 1}})
	require.ErrorIs(t, err, decode.ErrIndexOutOfAlphabet)
}

func TestArgMax(t *testing.T) {
	t.Parallel()

	indices, err := decode.ArgMax([][]float64{{0.3, 0.7}, {0.9, 0.1}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, indices)
}

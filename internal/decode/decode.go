// Package decode turns per-position class probabilities into CAPTCHA labels.
package decode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/captcha-lab/internal/symbols"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrNoPositions is returned when the model produced no output positions.
	ErrNoPositions = errors.New("no output positions to decode")
	// ErrEmptyDistribution is returned when a position has no class probabilities.
	ErrEmptyDistribution = errors.New("empty probability vector")
	// ErrIndexOutOfAlphabet is returned when the arg-max does not name a known symbol.
	ErrIndexOutOfAlphabet = errors.New("arg-max index outside symbol alphabet")
)

// ArgMax returns the arg-max of every position. Ties resolve to the lowest index.
func ArgMax(probabilities [][]float64) ([]int, error) {
	if len(probabilities) == 0 {
		return nil, ErrNoPositions
	}

	indices := make([]int, len(probabilities))

	for position, distribution := range probabilities {
		if len(distribution) == 0 {
			return nil, fmt.Errorf("%w at position %d", ErrEmptyDistribution, position)
		}

		indices[position] = floats.MaxIdx(distribution)
	}

	return indices, nil
}

// Greedy decodes each position independently by arg-max and maps the winners
// onto the alphabet, in position order.
func Greedy(alphabet symbols.Alphabet, probabilities [][]float64) (string, error) {
	indices, err := ArgMax(probabilities)
	if err != nil {
		return "", err
	}

	var label strings.Builder

	for position, index := range indices {
		symbol, ok := alphabet.Symbol(index)
		if !ok {
			return "", fmt.Errorf("%w: index %d at position %d, alphabet has %d symbols",
				ErrIndexOutOfAlphabet, index, position, alphabet.Len())
		}

		label.WriteRune(symbol)
	}

	return label.String(), nil
}

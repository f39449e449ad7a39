// Package symbols loads the CAPTCHA symbol alphabet.
package symbols

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// ErrEmptyAlphabet is returned when the symbols file has no symbols on its first line.
var ErrEmptyAlphabet = errors.New("symbol alphabet is empty")

// Alphabet is the ordered output vocabulary of a CAPTCHA model.
type Alphabet []rune

// Parse builds an Alphabet from a string, one symbol per rune.
func Parse(s string) (Alphabet, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, ErrEmptyAlphabet
	}

	return Alphabet([]rune(trimmed)), nil
}

// Load reads the alphabet from the first line of the file at path.
func Load(path string) (Alphabet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbols file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)

	var firstLine string
	if scanner.Scan() {
		firstLine = scanner.Text()
	}

	scanErr := scanner.Err()
	if scanErr != nil {
		return nil, fmt.Errorf("failed to read symbols file: %w", scanErr)
	}

	alphabet, err := Parse(firstLine)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return alphabet, nil
}

// Len returns the number of symbols.
func (a Alphabet) Len() int {
	return len(a)
}

// Symbol returns the i-th symbol and whether i is in range.
func (a Alphabet) Symbol(i int) (rune, bool) {
	if i < 0 || i >= len(a) {
		return utf8.RuneError, false
	}

	return a[i], true
}

// String returns the symbols in order.
func (a Alphabet) String() string {
	return string(a)
}

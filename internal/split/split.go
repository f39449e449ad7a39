// Package split samples a validation set out of a training directory.
package split

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"github.com/book-expert/captcha-lab/internal/fsutil"
	"github.com/book-expert/logger"
)

const (
	maxPercentage = 100
	logFmtCopied  = "Copied %s to validation set"
	logFmtSummary = "Copied %d of %d files (%.1f%%) to %s"
)

// ErrInvalidPercentage is returned for percentages outside [0, 100].
var ErrInvalidPercentage = errors.New("split percentage must be between 0 and 100")

// Result reports how many files were considered and copied.
type Result struct {
	Total  int
	Copied int
}

// Splitter copies each training file into the validation directory with a
// fixed probability.
type Splitter struct {
	rng *rand.Rand
	log *logger.Logger
}

// New returns a Splitter drawing from rng.
func New(rng *rand.Rand, log *logger.Logger) *Splitter {
	return &Splitter{rng: rng, log: log}
}

// NewSeeded returns a Splitter with a deterministic PCG source.
func NewSeeded(seed uint64, log *logger.Logger) *Splitter {
	return New(rand.New(rand.NewPCG(seed, seed)), log)
}

// Split copies every file of trainingDir into validationDir with probability
// percentage/100. The validation directory is created when missing. Files are
// visited in name order so a seeded Splitter is reproducible.
func (s *Splitter) Split(trainingDir, validationDir string, percentage int) (Result, error) {
	if percentage < 0 || percentage > maxPercentage {
		return Result{}, fmt.Errorf("%w: got %d", ErrInvalidPercentage, percentage)
	}

	names, err := fsutil.ListFiles(trainingDir)
	if err != nil {
		return Result{}, err
	}

	err = fsutil.EnsureDir(validationDir)
	if err != nil {
		return Result{}, err
	}

	result := Result{Total: len(names)}
	probability := float64(percentage) / maxPercentage

	for _, name := range names {
		if s.rng.Float64() >= probability {
			continue
		}

		copyErr := fsutil.CopyFile(filepath.Join(trainingDir, name), filepath.Join(validationDir, name))
		if copyErr != nil {
			return result, copyErr
		}

		result.Copied++
		s.log.Info(logFmtCopied, name)
	}

	s.log.Info(logFmtSummary, result.Copied, result.Total, result.Ratio()*maxPercentage, validationDir)

	return result, nil
}

// Ratio returns the fraction of files copied.
func (r Result) Ratio() float64 {
	if r.Total == 0 {
		return 0
	}

	return float64(r.Copied) / float64(r.Total)
}

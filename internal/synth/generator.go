package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/book-expert/captcha-lab/internal/core"
	"github.com/book-expert/captcha-lab/internal/fsutil"
	"github.com/book-expert/captcha-lab/internal/pool"
	"github.com/book-expert/captcha-lab/internal/symbols"
	"github.com/book-expert/logger"
)

// Log and diagnostic formats.
const (
	logFmtVoice        = "%s voice %s for %q"
	logFmtWritten      = "Audio content written to file %s"
	logFmtVoiceFailed  = "Synthesis for %q with voice %s failed: %v"
	logFmtFinished     = "Generated %d captchas, %d failed"
	diagnosticFmtWrite = "writing synthesized audio to %s\n"
	diagnosticFmtError = "synthesis of %q with voice %s failed: %v\n"
)

// ErrInvalidLength is returned for non-positive CAPTCHA lengths.
var ErrInvalidLength = errors.New("captcha length must be positive")

// GeneratorConfig configures a Generator.
type GeneratorConfig struct {
	OutputDir string
	Length    int
	Scramble  bool
	Workers   int
	// Pacing is slept after each CAPTCHA to stay under provider rate limits.
	Pacing time.Duration
}

// Generator produces labelled audio CAPTCHAs with a Synthesizer.
type Generator struct {
	synthesizer core.Synthesizer
	alphabet    symbols.Alphabet
	config      GeneratorConfig
	rng         *rand.Rand
	log         *logger.Logger
	diagnostics io.Writer
	mutex       sync.Mutex
}

// NewGenerator returns a Generator. Progress and failures are also written to
// diagnostics when it is not nil.
func NewGenerator(
	synthesizer core.Synthesizer,
	alphabet symbols.Alphabet,
	config GeneratorConfig,
	rng *rand.Rand,
	log *logger.Logger,
	diagnostics io.Writer,
) (*Generator, error) {
	if config.Length <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLength, config.Length)
	}

	if alphabet.Len() == 0 {
		return nil, symbols.ErrEmptyAlphabet
	}

	return &Generator{
		synthesizer: synthesizer,
		alphabet:    alphabet,
		config:      config,
		rng:         rng,
		log:         log,
		diagnostics: diagnostics,
	}, nil
}

// RandomText draws length symbols uniformly from the alphabet.
func RandomText(rng *rand.Rand, alphabet symbols.Alphabet, length int) string {
	var builder strings.Builder

	for range length {
		builder.WriteRune(alphabet[rng.IntN(alphabet.Len())])
	}

	return builder.String()
}

// Generate synthesizes count random CAPTCHAs, one file per provider voice.
// A CAPTCHA fails when any of its voices fails; failures are reported and the
// run continues. Only a failure to list voices is returned as an error.
func (g *Generator) Generate(ctx context.Context, count int) (pool.Result, error) {
	err := fsutil.EnsureDir(g.config.OutputDir)
	if err != nil {
		return pool.Result{}, err
	}

	voices, err := g.synthesizer.Voices(ctx)
	if err != nil {
		return pool.Result{}, err
	}

	texts := make([]string, count)
	for i := range texts {
		texts[i] = RandomText(g.rng, g.alphabet, g.config.Length)
	}

	result := pool.Run(ctx, g.config.Workers, texts, func(ctx context.Context, text string) error {
		generateErr := g.generateOne(ctx, text, voices)

		pause(ctx, g.config.Pacing)

		return generateErr
	})

	g.log.Info(logFmtFinished, result.Succeeded, result.Failed)

	return result, nil
}

func (g *Generator) generateOne(ctx context.Context, text string, voices []string) error {
	var lastErr error

	for _, voice := range voices {
		g.log.Info(logFmtVoice, g.synthesizer.Name(), voice, text)

		audio, err := g.synthesizer.Synthesize(ctx, text, voice)
		if err == nil {
			err = g.store(text, audio)
		}

		if err != nil {
			lastErr = err
			g.log.Error(logFmtVoiceFailed, text, voice, err)
			g.printf(diagnosticFmtError, text, voice, err)
		}
	}

	return lastErr
}

func (g *Generator) store(text string, audio []byte) error {
	path, err := WriteAudioFile(g.config.OutputDir, text, g.config.Scramble, audio)
	if err != nil {
		return err
	}

	g.printf(diagnosticFmtWrite, path)
	g.log.Info(logFmtWritten, path)

	return nil
}

func (g *Generator) printf(format string, args ...any) {
	if g.diagnostics != nil {
		g.mutex.Lock()
		defer g.mutex.Unlock()

		fmt.Fprintf(g.diagnostics, format, args...)
	}
}

func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Package classify labels CAPTCHA files with a pre-trained model.
package classify

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/book-expert/captcha-lab/internal/core"
	"github.com/book-expert/captcha-lab/internal/decode"
	"github.com/book-expert/captcha-lab/internal/fsutil"
	"github.com/book-expert/captcha-lab/internal/imaging"
	"github.com/book-expert/captcha-lab/internal/model"
	"github.com/book-expert/captcha-lab/internal/spectrogram"
	"github.com/book-expert/captcha-lab/internal/symbols"
	"github.com/book-expert/logger"
)

// Log and output formats.
const (
	outputLineFormat   = "%s, %s\n"
	progressFormat     = "Classified %s\n"
	logFmtClassified   = "Classified %s as %q"
	logFmtSymbolSet    = "Classifying captchas with symbol set {%s}"
	errFmtClassifyFile = "failed to classify %s: %w"
	errFmtWriteOutput  = "failed to write result for %s: %w"
)

// Options select the pipeline for NewFromOptions.
type Options struct {
	CaptchaType core.CaptchaType
	ModelName   string
	SymbolsPath string
	// Threshold is the binarization for image CAPTCHAs.
	Threshold imaging.Mode
	// Audio holds the spectrogram settings for audio CAPTCHAs.
	Audio spectrogram.Settings
	// RuntimeLibrary is the onnxruntime shared library for .onnx models.
	RuntimeLibrary string
}

// Classifier combines a preprocessor, a model and the symbol alphabet.
type Classifier struct {
	captchaType  core.CaptchaType
	preprocessor core.Preprocessor
	model        core.Model
	alphabet     symbols.Alphabet
	log          *logger.Logger
}

// New returns a Classifier from already-built parts.
func New(
	captchaType core.CaptchaType,
	preprocessor core.Preprocessor,
	m core.Model,
	alphabet symbols.Alphabet,
	log *logger.Logger,
) *Classifier {
	return &Classifier{
		captchaType:  captchaType,
		preprocessor: preprocessor,
		model:        m,
		alphabet:     alphabet,
		log:          log,
	}
}

// NewFromOptions loads the symbols and model and builds the preprocessor for
// the requested CAPTCHA type.
func NewFromOptions(opts Options, log *logger.Logger) (*Classifier, error) {
	alphabet, err := symbols.Load(opts.SymbolsPath)
	if err != nil {
		return nil, err
	}

	preprocessor, err := newPreprocessor(opts)
	if err != nil {
		return nil, err
	}

	m, err := model.Open(opts.ModelName, opts.RuntimeLibrary)
	if err != nil {
		return nil, err
	}

	return New(opts.CaptchaType, preprocessor, m, alphabet, log), nil
}

func newPreprocessor(opts Options) (core.Preprocessor, error) {
	switch opts.CaptchaType {
	case core.CaptchaImage:
		return imaging.NewPreprocessor(opts.Threshold)
	case core.CaptchaAudio:
		return spectrogram.NewGenerator(opts.Audio)
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownCaptchaType, opts.CaptchaType)
	}
}

// Close releases the model when it holds runtime resources.
func (c *Classifier) Close() error {
	closer, ok := c.model.(io.Closer)
	if !ok {
		return nil
	}

	return closer.Close()
}

// CaptchaType returns the kind of CAPTCHA the classifier accepts.
func (c *Classifier) CaptchaType() core.CaptchaType {
	return c.captchaType
}

// Alphabet returns the symbol alphabet labels are decoded with.
func (c *Classifier) Alphabet() symbols.Alphabet {
	return c.alphabet
}

// Classify preprocesses data, runs the model and greedily decodes the label.
func (c *Classifier) Classify(name string, data []byte) (string, error) {
	input, err := c.preprocessor.Preprocess(name, data)
	if err != nil {
		return "", err
	}

	probabilities, err := c.model.Predict(input)
	if err != nil {
		return "", err
	}

	return decode.Greedy(c.alphabet, probabilities)
}

// ClassifyFile reads and classifies a single file.
func (c *Classifier) ClassifyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf(errFmtClassifyFile, path, err)
	}

	label, err := c.Classify(filepath.Base(path), data)
	if err != nil {
		return "", fmt.Errorf(errFmtClassifyFile, path, err)
	}

	return label, nil
}

// ClassifyDir classifies every regular file in dir in name order. Each result
// is written to out as "filename, label" and a "Classified filename" line goes
// to progress when it is not nil. The first failure stops the run; the number
// of files classified before it is returned either way.
func (c *Classifier) ClassifyDir(ctx context.Context, dir string, out, progress io.Writer) (int, error) {
	names, err := fsutil.ListFiles(dir)
	if err != nil {
		return 0, err
	}

	c.log.Info(logFmtSymbolSet, c.alphabet.String())

	for count, name := range names {
		ctxErr := ctx.Err()
		if ctxErr != nil {
			return count, ctxErr
		}

		label, classifyErr := c.ClassifyFile(filepath.Join(dir, name))
		if classifyErr != nil {
			return count, classifyErr
		}

		_, writeErr := fmt.Fprintf(out, outputLineFormat, name, label)
		if writeErr != nil {
			return count, fmt.Errorf(errFmtWriteOutput, name, writeErr)
		}

		c.log.Info(logFmtClassified, name, label)

		if progress != nil {
			fmt.Fprintf(progress, progressFormat, name)
		}
	}

	return len(names), nil
}

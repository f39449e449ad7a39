package imaging

import (
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/captcha-lab/internal/tensor"
)

// Mode selects the binarization applied to CAPTCHA images.
type Mode string

const (
	// ModeOtsu applies a global Otsu threshold followed by a 2x2 dilation.
	ModeOtsu Mode = "otsu"
	// ModeAdaptive applies an 11x11 adaptive mean threshold with C=2.
	ModeAdaptive Mode = "adaptive"
)

// Adaptive threshold and denoising defaults.
const (
	DefaultBlockSize      = 11
	DefaultC              = 2
	DefaultDilateKernel   = 2
	DefaultDilateIterates = 1
)

// ErrUnknownMode is returned for unsupported threshold modes.
var ErrUnknownMode = errors.New("unknown threshold mode")

// ParseMode parses a threshold mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeOtsu:
		return ModeOtsu, nil
	case ModeAdaptive:
		return ModeAdaptive, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Preprocessor converts encoded CAPTCHA images into normalized model inputs.
type Preprocessor struct {
	mode   Mode
	dilate bool
}

// NewPreprocessor returns a Preprocessor for the given mode. Otsu mode dilates
// the binarized image; adaptive mode does not.
func NewPreprocessor(mode Mode) (*Preprocessor, error) {
	switch mode {
	case ModeOtsu:
		return &Preprocessor{mode: mode, dilate: true}, nil
	case ModeAdaptive:
		return &Preprocessor{mode: mode, dilate: false}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// Preprocess decodes data and returns the binarized, normalized tensor.
// The name is only used in error messages.
func (p *Preprocessor) Preprocess(name string, data []byte) (*tensor.Tensor, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	gray := ToGray(img)

	switch p.mode {
	case ModeOtsu:
		gray = Binarize(gray, OtsuThreshold(gray))
	case ModeAdaptive:
		gray, err = AdaptiveMeanThreshold(gray, DefaultBlockSize, DefaultC)
		if err != nil {
			return nil, err
		}
	}

	if p.dilate {
		gray, err = Dilate(gray, DefaultDilateKernel, DefaultDilateKernel, DefaultDilateIterates)
		if err != nil {
			return nil, err
		}
	}

	return tensor.FromGray(gray), nil
}

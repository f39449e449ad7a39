// Package core defines the interfaces and events shared by the CAPTCHA tools
// and the classification service.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/captcha-lab/internal/tensor"
)

// CaptchaType names the kind of CAPTCHA a classifier accepts.
type CaptchaType string

// Supported CAPTCHA types.
const (
	CaptchaImage CaptchaType = "image"
	CaptchaAudio CaptchaType = "audio"
)

// ErrUnknownCaptchaType is returned for anything other than image or audio.
var ErrUnknownCaptchaType = errors.New("unknown captcha type")

// ParseCaptchaType parses a CAPTCHA type name, case-insensitively.
func ParseCaptchaType(s string) (CaptchaType, error) {
	switch CaptchaType(strings.ToLower(strings.TrimSpace(s))) {
	case CaptchaImage:
		return CaptchaImage, nil
	case CaptchaAudio:
		return CaptchaAudio, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCaptchaType, s)
	}
}

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// Preprocessor turns an encoded CAPTCHA file into a model input tensor. The
// name is the file name and selects the decoder where the format matters.
type Preprocessor interface {
	Preprocess(name string, data []byte) (*tensor.Tensor, error)
}

// Model maps an input tensor to one probability vector per CAPTCHA position.
type Model interface {
	Predict(input *tensor.Tensor) ([][]float64, error)
}

// Classifier decodes a CAPTCHA file into its label.
type Classifier interface {
	Classify(name string, data []byte) (string, error)
	CaptchaType() CaptchaType
}

// Synthesizer renders text to MP3 audio with one of its voices.
type Synthesizer interface {
	Name() string
	Voices(ctx context.Context) ([]string, error)
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

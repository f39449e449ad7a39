// Package synth generates labelled audio CAPTCHAs with cloud text-to-speech
// services.
//
// Each provider implements core.Synthesizer. The Generator draws random
// CAPTCHA texts, asks the provider for one MP3 per voice and files them under
// <output>/<text>/.
package synth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/captcha-lab/internal/core"
)

// Provider names accepted by New.
const (
	APIGoogleCloud = "gc"
	APIAzure       = "azure"
	APIAWS         = "aws"
	APIGTTS        = "gtts"
)

// Pacing between CAPTCHAs per provider.
const (
	googleCloudPacing = 200 * time.Millisecond
	azurePacing       = 500 * time.Millisecond
	defaultTimeout    = 30 * time.Second
)

// Errors shared by the providers.
var (
	ErrUnknownAPI      = errors.New("unknown text-to-speech api")
	ErrMissingAPIKey   = errors.New("api key is required")
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrEmptyAudio      = errors.New("received empty audio data")
	ErrNoVoices        = errors.New("provider offers no usable voices")
	ErrServiceNonOK    = errors.New("text-to-speech service returned non-OK status")
	ErrMissingAPIKeyID = errors.New("aws access key id is required")
)

const errFmtServiceStatus = "%w: %s, body: %s"

// Options configure a provider.
type Options struct {
	API string
	// APIKey is the Azure subscription key, the AWS secret access key, or for
	// Google Cloud either an API key or a path to a service account file.
	APIKey string
	// APIKeyID is the AWS access key id.
	APIKeyID string
	// Region is the Azure or AWS region.
	Region string
	// Endpoint overrides the provider's base URL.
	Endpoint string
	// HTTPClient is used for every request when set.
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New returns the synthesizer named by opts.API.
func New(ctx context.Context, opts Options) (core.Synthesizer, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	switch strings.ToLower(opts.API) {
	case APIGoogleCloud:
		return NewGoogleCloud(ctx, opts)
	case APIAzure:
		return NewAzure(opts)
	case APIAWS:
		return NewPolly(opts)
	case APIGTTS:
		return NewGTTS(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q (choose gc, azure, aws or gtts)", ErrUnknownAPI, opts.API)
	}
}

// PacingFor returns the pause the provider needs between CAPTCHAs.
func PacingFor(api string) time.Duration {
	switch strings.ToLower(api) {
	case APIGoogleCloud:
		return googleCloudPacing
	case APIAzure:
		return azurePacing
	default:
		return 0
	}
}

// SpaceOut separates characters with spaces so each is read individually.
func SpaceOut(text string) string {
	return strings.Join(strings.Split(text, ""), " ")
}

func httpClient(opts Options) *http.Client {
	if opts.HTTPClient != nil {
		return opts.HTTPClient
	}

	return &http.Client{Timeout: opts.Timeout}
}
